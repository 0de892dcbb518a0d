package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/valetops/leads-service/internal/config"
	"github.com/valetops/leads-service/internal/model"
	"github.com/valetops/leads-service/internal/storage"
)

// storageCallTimeout bounds every blob upload, blob delete and record write.
const storageCallTimeout = 30 * time.Second

// LeadRepo is the record store surface the service needs.
type LeadRepo interface {
	Create(ctx context.Context, lead model.Lead) (*model.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Lead, error)
	GetByReference(ctx context.Context, code string) (*model.Lead, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*model.Lead, error)
	List(ctx context.Context, filter model.LeadFilter) (*model.LeadPage, error)
	UpdateFields(ctx context.Context, id uuid.UUID, lead model.Lead) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.LeadStatus) error
	ReplaceAttachments(ctx context.Context, leadID uuid.UUID, incoming []model.Attachment) error
	GetAttachment(ctx context.Context, id uuid.UUID) (*model.Attachment, error)
}

// BlobStore is the attachment store surface.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	NewReader(ctx context.Context, key string) (io.ReadCloser, error)
}

// Upload is one incoming file part.
type Upload struct {
	Field       model.AttachmentField
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// ExcelGenerator renders an admin lead listing to a workbook.
type ExcelGenerator interface {
	Generate(leads []model.Lead) ([]byte, error)
}

// PDFGenerator renders a single lead summary.
type PDFGenerator interface {
	Generate(lead model.Lead) ([]byte, error)
}

type LeadService struct {
	repo  LeadRepo
	blobs BlobStore
	excel ExcelGenerator
	pdf   PDFGenerator
	cfg   *config.Config
	log   zerolog.Logger
}

func NewLeadService(repo LeadRepo, blobs BlobStore, excel ExcelGenerator, pdf PDFGenerator, cfg *config.Config, log zerolog.Logger) *LeadService {
	return &LeadService{repo: repo, blobs: blobs, excel: excel, pdf: pdf, cfg: cfg, log: log}
}

type CreateLeadInput struct {
	Lead           model.Lead
	Uploads        []Upload
	IdempotencyKey string
}

type CreateLeadResult struct {
	Lead    *model.Lead
	Created bool
	EditURL string
}

// CreateLead stores a new lead. When an idempotency key is supplied and a
// lead already carries it, that lead is returned instead of creating a
// duplicate.
func (s *LeadService) CreateLead(ctx context.Context, input CreateLeadInput) (*CreateLeadResult, error) {
	key := strings.TrimSpace(input.IdempotencyKey)
	if key != "" {
		existing, err := s.repo.GetByIdempotencyKey(ctx, key)
		if err == nil {
			return &CreateLeadResult{Lead: existing, Created: false, EditURL: s.editURL(existing.ReferenceCode)}, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}

	if err := validateUploads(input.Uploads, s.cfg.Leads.MaxUploadBytes); err != nil {
		return nil, err
	}

	attachments, err := s.uploadAll(ctx, input.Uploads)
	if err != nil {
		return nil, err
	}

	lead := input.Lead
	lead.Status = model.LeadStatusPending
	lead.Attachments = attachments
	if key != "" {
		lead.IdempotencyKey = &key
	}

	reference, err := newReferenceCode(s.cfg.Leads.ReferencePrefix)
	if err != nil {
		return nil, err
	}
	lead.ReferenceCode = reference

	writeCtx, cancel := context.WithTimeout(ctx, storageCallTimeout)
	defer cancel()

	saved, err := s.repo.Create(writeCtx, lead)
	if err != nil {
		// A reference collision trips the unique index; the create fails
		// rather than silently overwriting.
		s.cleanupBlobs(attachments)
		return nil, err
	}

	return &CreateLeadResult{Lead: saved, Created: true, EditURL: s.editURL(saved.ReferenceCode)}, nil
}

type UpdateLeadInput struct {
	Lead    model.Lead
	Uploads []Upload
	// Public marks the unauthenticated edit-by-reference route, which must
	// refuse completed leads.
	Public bool
}

// UpdateLead applies the wizard fields and reconciles incoming files against
// the stored attachment list: a new file for an occupied slot supersedes the
// old entry, whose blob is deleted best-effort after the record is persisted.
func (s *LeadService) UpdateLead(ctx context.Context, existing *model.Lead, input UpdateLeadInput) (*model.Lead, error) {
	if input.Public && existing.Status == model.LeadStatusCompleted {
		return nil, ErrAlreadyCompleted
	}

	if err := validateUploads(input.Uploads, s.cfg.Leads.MaxUploadBytes); err != nil {
		return nil, err
	}

	attachments, err := s.uploadAll(ctx, input.Uploads)
	if err != nil {
		return nil, err
	}

	var superseded []model.Attachment
	for _, incoming := range attachments {
		if old, ok := existing.AttachmentFor(incoming.Fieldname); ok {
			superseded = append(superseded, old)
		}
	}

	writeCtx, cancel := context.WithTimeout(ctx, storageCallTimeout)
	defer cancel()

	if err := s.repo.UpdateFields(writeCtx, existing.ID, input.Lead); err != nil {
		s.cleanupBlobs(attachments)
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.repo.ReplaceAttachments(writeCtx, existing.ID, attachments); err != nil {
		s.cleanupBlobs(attachments)
		return nil, err
	}

	// The new list is durably referenced now; old blobs are cleanup only.
	s.deleteBlobs(superseded)

	return s.repo.GetByID(ctx, existing.ID)
}

// UpdateStatus switches a lead between pending and completed.
func (s *LeadService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*model.Lead, error) {
	parsed := model.LeadStatus(strings.TrimSpace(status))
	if parsed != model.LeadStatusPending && parsed != model.LeadStatusCompleted {
		return nil, fmt.Errorf("%w: invalid status", ErrInvalidInput)
	}
	if err := s.repo.UpdateStatus(ctx, id, parsed); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *LeadService) GetByID(ctx context.Context, id uuid.UUID) (*model.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return lead, nil
}

func (s *LeadService) GetByReference(ctx context.Context, code string) (*model.Lead, error) {
	lead, err := s.repo.GetByReference(ctx, strings.TrimSpace(code))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return lead, nil
}

func (s *LeadService) List(ctx context.Context, filter model.LeadFilter) (*model.LeadPage, error) {
	return s.repo.List(ctx, filter)
}

// OpenAttachment resolves an attachment and opens its blob for streaming.
func (s *LeadService) OpenAttachment(ctx context.Context, id uuid.UUID) (*model.Attachment, io.ReadCloser, error) {
	attachment, err := s.repo.GetAttachment(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	reader, err := s.blobs.NewReader(ctx, attachment.Path)
	if err != nil {
		return nil, nil, err
	}
	return attachment, reader, nil
}

// ExportResult is a generated file ready to stream to the caller.
type ExportResult struct {
	FileName string
	Content  []byte
}

// ExportExcel renders every lead matching the filter (ignoring pagination)
// into a workbook.
func (s *LeadService) ExportExcel(ctx context.Context, filter model.LeadFilter) (*ExportResult, error) {
	filter.Page = 1
	filter.Limit = 10000
	page, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	content, err := s.excel.Generate(page.Leads)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("leads-%s.xlsx", time.Now().Format("20060102-150405"))
	return &ExportResult{FileName: name, Content: content}, nil
}

// ExportPDF renders a one-lead summary document.
func (s *LeadService) ExportPDF(ctx context.Context, id uuid.UUID) (*ExportResult, error) {
	lead, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	content, err := s.pdf.Generate(*lead)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("lead-%s.pdf", lead.ReferenceCode)
	return &ExportResult{FileName: name, Content: content}, nil
}

// allowedContentTypes maps each slot to the MIME types it accepts: images
// for logos, PDF for certificate and license.
var allowedContentTypes = map[model.AttachmentField][]string{
	model.FieldCompanyLogo:    {"image/png", "image/jpeg"},
	model.FieldClientLogo:     {"image/png", "image/jpeg"},
	model.FieldVATCertificate: {"application/pdf"},
	model.FieldTradeLicense:   {"application/pdf"},
}

// validateUploads gates the whole request before any blob is written.
func validateUploads(uploads []Upload, maxBytes int64) error {
	seen := make(map[model.AttachmentField]bool, len(uploads))
	for _, upload := range uploads {
		allowed, ok := allowedContentTypes[upload.Field]
		if !ok {
			return fmt.Errorf("%w: unknown field %q", ErrInvalidInput, upload.Field)
		}
		if seen[upload.Field] {
			return fmt.Errorf("%w: duplicate file for %s", ErrInvalidInput, upload.Field)
		}
		seen[upload.Field] = true

		match := false
		for _, contentType := range allowed {
			if strings.EqualFold(upload.ContentType, contentType) {
				match = true
				break
			}
		}
		if !match {
			return fmt.Errorf("%w: %s must be %s", ErrUnsupportedFile, upload.Field, strings.Join(allowed, " or "))
		}
		if maxBytes > 0 && upload.Size > maxBytes {
			return fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidInput, upload.Field, maxBytes)
		}
	}
	return nil
}

// uploadAll pushes every file to the blob store concurrently and waits for
// all of them before the caller persists the attachment list. When any
// upload fails, blobs the sibling goroutines already wrote are deleted so
// the bucket does not keep orphans from the failed request.
func (s *LeadService) uploadAll(ctx context.Context, uploads []Upload) ([]model.Attachment, error) {
	if len(uploads) == 0 {
		return nil, nil
	}

	attachments := make([]model.Attachment, len(uploads))
	group, groupCtx := errgroup.WithContext(ctx)
	now := time.Now()

	for i, upload := range uploads {
		group.Go(func() error {
			reader, err := upload.Open()
			if err != nil {
				return fmt.Errorf("open %s: %w", upload.Field, err)
			}
			defer reader.Close()

			key := storage.BuildKey(upload.Filename, now)
			putCtx, cancel := context.WithTimeout(groupCtx, storageCallTimeout)
			defer cancel()

			if err := s.blobs.Put(putCtx, key, reader, upload.ContentType); err != nil {
				return fmt.Errorf("upload %s: %w", upload.Field, err)
			}
			attachments[i] = model.Attachment{
				ID:          uuid.New(),
				Fieldname:   upload.Field,
				Filename:    upload.Filename,
				Path:        key,
				ContentType: upload.ContentType,
				SizeBytes:   upload.Size,
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		var written []model.Attachment
		for _, attachment := range attachments {
			if attachment.Path != "" {
				written = append(written, attachment)
			}
		}
		s.cleanupBlobs(written)
		return nil, err
	}
	return attachments, nil
}

// deleteBlobs removes superseded blobs concurrently. Failures are logged and
// never fail the enclosing update.
func (s *LeadService) deleteBlobs(attachments []model.Attachment) {
	if len(attachments) == 0 {
		return
	}
	var group errgroup.Group
	for _, attachment := range attachments {
		group.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), storageCallTimeout)
			defer cancel()
			if err := s.blobs.Delete(ctx, attachment.Path); err != nil {
				s.log.Warn().Err(err).
					Str("fieldname", string(attachment.Fieldname)).
					Str("key", attachment.Path).
					Msg("attachment cleanup failed")
			}
			return nil
		})
	}
	_ = group.Wait()
}

// cleanupBlobs removes blobs uploaded for a request whose record write
// failed, so the bucket does not accumulate orphans.
func (s *LeadService) cleanupBlobs(attachments []model.Attachment) {
	s.deleteBlobs(attachments)
}

func (s *LeadService) editURL(reference string) string {
	return fmt.Sprintf("%s/register/edit/%s", strings.TrimRight(s.cfg.Leads.PublicBaseURL, "/"), reference)
}

// newReferenceCode builds PREFIX-NNNNNN with six random digits. Uniqueness
// is not guaranteed here; the database index is the safety net.
func newReferenceCode(prefix string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%06d", prefix, n.Int64()), nil
}
