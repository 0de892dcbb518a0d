package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/valetops/leads-service/internal/auth"
	"github.com/valetops/leads-service/internal/config"
	"github.com/valetops/leads-service/internal/excel"
	"github.com/valetops/leads-service/internal/http/middleware"
	"github.com/valetops/leads-service/internal/model"
	"github.com/valetops/leads-service/internal/pdf"
	"github.com/valetops/leads-service/internal/service"
)

type memRepo struct {
	mu         sync.Mutex
	leads      map[uuid.UUID]*model.Lead
	lastFilter model.LeadFilter
}

func newMemRepo() *memRepo {
	return &memRepo{leads: make(map[uuid.UUID]*model.Lead)}
}

func (r *memRepo) Create(_ context.Context, lead model.Lead) (*model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead.ID = uuid.New()
	lead.CreatedAt = time.Now()
	lead.UpdatedAt = lead.CreatedAt
	for i := range lead.Attachments {
		lead.Attachments[i].LeadID = lead.ID
	}
	stored := lead
	r.leads[lead.ID] = &stored
	copied := stored
	return &copied, nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lead, ok := r.leads[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *lead
	copied.Attachments = append([]model.Attachment{}, lead.Attachments...)
	return &copied, nil
}

func (r *memRepo) GetByReference(_ context.Context, code string) (*model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lead := range r.leads {
		if lead.ReferenceCode == code {
			copied := *lead
			copied.Attachments = append([]model.Attachment{}, lead.Attachments...)
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) GetByIdempotencyKey(_ context.Context, key string) (*model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lead := range r.leads {
		if lead.IdempotencyKey != nil && *lead.IdempotencyKey == key {
			copied := *lead
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memRepo) List(_ context.Context, filter model.LeadFilter) (*model.LeadPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}

	var matched []model.Lead
	for _, lead := range r.leads {
		if filter.Status != "" && filter.Status != "all" && string(lead.Status) != filter.Status {
			continue
		}
		if filter.Search != "" && !leadMatches(*lead, filter.Search) {
			continue
		}
		matched = append(matched, *lead)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	totalPages := total / int64(filter.Limit)
	if total%int64(filter.Limit) != 0 {
		totalPages++
	}

	start := (filter.Page - 1) * filter.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}

	page := matched[start:end]
	if page == nil {
		page = []model.Lead{}
	}
	return &model.LeadPage{
		Leads:      page,
		Page:       filter.Page,
		Limit:      filter.Limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

func leadMatches(lead model.Lead, search string) bool {
	search = strings.ToLower(search)
	for _, value := range []string{lead.AdminName, lead.AdminEmail, lead.AdminPhone, lead.LocationName} {
		if strings.Contains(strings.ToLower(value), search) {
			return true
		}
	}
	return false
}

func (r *memRepo) UpdateFields(_ context.Context, id uuid.UUID, lead model.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.leads[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	lead.ID = id
	lead.ReferenceCode = stored.ReferenceCode
	lead.Status = stored.Status
	lead.Attachments = stored.Attachments
	lead.CreatedAt = stored.CreatedAt
	lead.UpdatedAt = time.Now()
	*stored = lead
	return nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.LeadStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.leads[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Status = status
	return nil
}

func (r *memRepo) ReplaceAttachments(_ context.Context, leadID uuid.UUID, incoming []model.Attachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.leads[leadID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for _, attachment := range incoming {
		var kept []model.Attachment
		for _, existing := range stored.Attachments {
			if existing.Fieldname != attachment.Fieldname {
				kept = append(kept, existing)
			}
		}
		attachment.LeadID = leadID
		stored.Attachments = append(kept, attachment)
	}
	return nil
}

func (r *memRepo) GetAttachment(_ context.Context, id uuid.UUID) (*model.Attachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, lead := range r.leads {
		for _, attachment := range lead.Attachments {
			if attachment.ID == id {
				copied := attachment
				return &copied, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (b *memBlobs) Put(_ context.Context, key string, r io.Reader, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *memBlobs) NewReader(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("no blob %q", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type testEnv struct {
	router *gin.Engine
	repo   *memRepo
	blobs  *memBlobs
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Environment: "test",
		Leads: config.LeadsConfig{
			ReferencePrefix: "VAL",
			MaxUploadBytes:  500 * 1024,
			PublicBaseURL:   "http://localhost:7090",
		},
	}

	repo := newMemRepo()
	blobs := newMemBlobs()
	leadService := service.NewLeadService(repo, blobs, excel.NewGenerator(), pdf.NewGenerator(), cfg, zerolog.Nop())

	issuer := auth.NewIssuer("test-secret")
	token, err := issuer.Issue(model.User{ID: uuid.New(), Email: "admin@valetops.ae", Role: model.RoleAdmin})
	require.NoError(t, err)

	handler := NewHandler(leadService, nil, zerolog.Nop())
	router := NewRouter(handler, middleware.Auth(auth.NewParser("test-secret")), "test", []string{"*"})

	return &testEnv{router: router, repo: repo, blobs: blobs, token: token}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	e.router.ServeHTTP(recorder, req)
	return recorder
}

func (e *testEnv) doAdmin(req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("Authorization", "Bearer "+e.token)
	return e.do(req)
}

type filePart struct {
	field    string
	filename string
	mime     string
	content  string
}

func multipartBody(t *testing.T, fields map[string]string, files []filePart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for _, file := range files {
		header := map[string][]string{
			"Content-Disposition": {fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.filename)},
			"Content-Type":        {file.mime},
		}
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(file.content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func validFields() map[string]string {
	return map[string]string{
		"locationName": "Grand Hyatt Dubai",
		"capacity":     "200",
		"adminName":    "Aisha",
		"adminEmail":   "a@b.com",
		"adminPhone":   "971521234567",
		"ticketTypes":  "paper,digital",
	}
}

func decode(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func TestCreateLeadEndpoint(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, validFields(), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/leads", body)
	req.Header.Set("Content-Type", contentType)

	recorder := env.do(req)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	parsed := decode(t, recorder)
	assert.Equal(t, true, parsed["success"])
	assert.Regexp(t, `^VAL-\d{6}$`, parsed["referenceId"])
	assert.Contains(t, parsed["editUrl"], parsed["referenceId"])

	lead := parsed["lead"].(map[string]interface{})
	assert.Equal(t, "pending", lead["status"])
	assert.Equal(t, "Grand Hyatt Dubai", lead["locationName"])
	assert.Equal(t, float64(200), lead["capacity"])
}

func TestCreateLeadIdempotencyHeader(t *testing.T) {
	env := newTestEnv(t)

	for i, wantStatus := range []int{http.StatusCreated, http.StatusOK} {
		body, contentType := multipartBody(t, validFields(), nil)
		req := httptest.NewRequest(http.MethodPost, "/api/leads", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Idempotency-Key", "token-42")

		recorder := env.do(req)
		assert.Equal(t, wantStatus, recorder.Code, "request %d", i)
	}
	assert.Len(t, env.repo.leads, 1)
}

func TestCreateLeadRejectsWrongMIME(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, validFields(), []filePart{
		{field: "vatCertificate", filename: "cert.png", mime: "image/png", content: "nope"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/leads", body)
	req.Header.Set("Content-Type", contentType)

	recorder := env.do(req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	parsed := decode(t, recorder)
	assert.Equal(t, false, parsed["success"])
	assert.Contains(t, parsed["error"], "vatCertificate")
	assert.Empty(t, env.blobs.objects)
}

func TestGetLeadByReferenceNotFound(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.do(httptest.NewRequest(http.MethodGet, "/api/leads/VAL-000000", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	parsed := decode(t, recorder)
	assert.Equal(t, false, parsed["success"])
	assert.NotEmpty(t, parsed["message"])
}

func TestAdminListRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.do(httptest.NewRequest(http.MethodGet, "/api/admin/leads", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestAdminListEmptyResultConvention(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.doAdmin(httptest.NewRequest(http.MethodGet, "/api/admin/leads?search=nobody", nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	parsed := decode(t, recorder)
	assert.Equal(t, true, parsed["success"])
	assert.Empty(t, parsed["leads"])

	pagination := parsed["pagination"].(map[string]interface{})
	assert.Equal(t, float64(0), pagination["total"])
	assert.Equal(t, float64(0), pagination["totalPages"])
}

func TestAdminListDefaultsAndFilterPassthrough(t *testing.T) {
	env := newTestEnv(t)

	recorder := env.doAdmin(httptest.NewRequest(http.MethodGet, "/api/admin/leads", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 1, env.repo.lastFilter.Page)
	assert.Equal(t, 50, env.repo.lastFilter.Limit)

	recorder = env.doAdmin(httptest.NewRequest(http.MethodGet, "/api/admin/leads?page=3&limit=10&search=hyatt&status=pending", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 3, env.repo.lastFilter.Page)
	assert.Equal(t, 10, env.repo.lastFilter.Limit)
	assert.Equal(t, "hyatt", env.repo.lastFilter.Search)
	assert.Equal(t, "pending", env.repo.lastFilter.Status)
}

func createLead(t *testing.T, env *testEnv, files []filePart) map[string]interface{} {
	t.Helper()
	body, contentType := multipartBody(t, validFields(), files)
	req := httptest.NewRequest(http.MethodPost, "/api/leads", body)
	req.Header.Set("Content-Type", contentType)
	recorder := env.do(req)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	return decode(t, recorder)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	created := createLead(t, env, nil)
	leadID := created["lead"].(map[string]interface{})["id"].(string)

	// Invalid value is a 400, not a 200 with a failure payload.
	req := httptest.NewRequest(http.MethodPut, "/api/admin/leads/"+leadID+"/status", strings.NewReader(`{"status":"archived"}`))
	req.Header.Set("Content-Type", "application/json")
	recorder := env.doAdmin(req)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	parsed := decode(t, recorder)
	assert.Equal(t, "Invalid status", parsed["message"])

	req = httptest.NewRequest(http.MethodPut, "/api/admin/leads/"+leadID+"/status", strings.NewReader(`{"status":"completed"}`))
	req.Header.Set("Content-Type", "application/json")
	recorder = env.doAdmin(req)
	require.Equal(t, http.StatusOK, recorder.Code)
	parsed = decode(t, recorder)
	assert.Equal(t, "completed", parsed["lead"].(map[string]interface{})["status"])
}

func TestPublicUpdateRefusedAfterCompletion(t *testing.T) {
	env := newTestEnv(t)
	created := createLead(t, env, nil)
	lead := created["lead"].(map[string]interface{})
	leadID := lead["id"].(string)
	reference := lead["referenceCode"].(string)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/leads/"+leadID+"/status", strings.NewReader(`{"status":"completed"}`))
	req.Header.Set("Content-Type", "application/json")
	require.Equal(t, http.StatusOK, env.doAdmin(req).Code)

	body, contentType := multipartBody(t, validFields(), nil)
	req = httptest.NewRequest(http.MethodPut, "/api/leads/"+reference, body)
	req.Header.Set("Content-Type", contentType)
	recorder := env.do(req)

	assert.Equal(t, http.StatusConflict, recorder.Code)
	parsed := decode(t, recorder)
	assert.Equal(t, false, parsed["success"])
	assert.Contains(t, parsed["message"], "already completed")

	// The admin route may still edit the completed lead.
	body, contentType = multipartBody(t, validFields(), nil)
	req = httptest.NewRequest(http.MethodPut, "/api/admin/leads/"+leadID, body)
	req.Header.Set("Content-Type", contentType)
	assert.Equal(t, http.StatusOK, env.doAdmin(req).Code)
}

func TestFileServingDisposition(t *testing.T) {
	env := newTestEnv(t)
	created := createLead(t, env, []filePart{
		{field: "companyLogo", filename: "logo.png", mime: "image/png", content: "png-bytes"},
		{field: "vatCertificate", filename: "cert.pdf", mime: "application/pdf", content: "%PDF-1.4"},
	})

	attachments := created["lead"].(map[string]interface{})["attachments"].([]interface{})
	require.Len(t, attachments, 2)

	for _, raw := range attachments {
		attachment := raw.(map[string]interface{})
		recorder := env.do(httptest.NewRequest(http.MethodGet, "/api/files/"+attachment["id"].(string), nil))
		require.Equal(t, http.StatusOK, recorder.Code)

		disposition := recorder.Header().Get("Content-Disposition")
		if attachment["contentType"] == "application/pdf" {
			assert.Contains(t, disposition, "attachment")
			assert.Contains(t, disposition, "cert.pdf")
			assert.Equal(t, "%PDF-1.4", recorder.Body.String())
		} else {
			assert.Equal(t, "inline", disposition)
			assert.Equal(t, "png-bytes", recorder.Body.String())
		}
	}
}

func TestExportEndpoints(t *testing.T) {
	env := newTestEnv(t)
	created := createLead(t, env, nil)
	leadID := created["lead"].(map[string]interface{})["id"].(string)

	recorder := env.doAdmin(httptest.NewRequest(http.MethodGet, "/api/admin/leads/export", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotEmpty(t, recorder.Body.Bytes())

	recorder = env.doAdmin(httptest.NewRequest(http.MethodGet, "/api/admin/leads/"+leadID+"/pdf", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, bytes.HasPrefix(recorder.Body.Bytes(), []byte("%PDF")))
}
