package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/valetops/leads-service/internal/model"
	"github.com/valetops/leads-service/internal/service"
)

const multipartMemoryLimit = 8 << 20

type Handler struct {
	leads *service.LeadService
	auth  *service.AuthService
	log   zerolog.Logger
}

func NewHandler(leads *service.LeadService, auth *service.AuthService, log zerolog.Logger) *Handler {
	return &Handler{leads: leads, auth: auth, log: log}
}

func (h *Handler) createLead(c *gin.Context) {
	lead, uploads, err := parseLeadForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	result, err := h.leads.CreateLead(c.Request.Context(), service.CreateLeadInput{
		Lead:           lead,
		Uploads:        uploads,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	status := http.StatusCreated
	if !result.Created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"success":     true,
		"lead":        result.Lead,
		"referenceId": result.Lead.ReferenceCode,
		"editUrl":     result.EditURL,
	})
}

func (h *Handler) getLeadByReference(c *gin.Context) {
	lead, err := h.leads.GetByReference(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "lead": lead})
}

// updateLeadPublic is the edit-by-reference-link route. Completed leads are
// refused here; the admin route below has no such restriction.
func (h *Handler) updateLeadPublic(c *gin.Context) {
	existing, err := h.leads.GetByReference(c.Request.Context(), c.Param("ref"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	lead, uploads, err := parseLeadForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	updated, err := h.leads.UpdateLead(c.Request.Context(), existing, service.UpdateLeadInput{
		Lead:    lead,
		Uploads: uploads,
		Public:  true,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Lead updated", "lead": updated})
}

func (h *Handler) listLeads(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	result, err := h.leads.List(c.Request.Context(), model.LeadFilter{
		Page:   page,
		Limit:  limit,
		Search: c.Query("search"),
		Status: c.Query("status"),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"leads":   result.Leads,
		"pagination": gin.H{
			"page":       result.Page,
			"limit":      result.Limit,
			"total":      result.Total,
			"totalPages": result.TotalPages,
		},
	})
}

func (h *Handler) getLead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid lead id"})
		return
	}
	lead, err := h.leads.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "lead": lead})
}

func (h *Handler) updateLead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid lead id"})
		return
	}
	existing, err := h.leads.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	lead, uploads, err := parseLeadForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	updated, err := h.leads.UpdateLead(c.Request.Context(), existing, service.UpdateLeadInput{
		Lead:    lead,
		Uploads: uploads,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Lead updated", "lead": updated})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) updateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid lead id"})
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid status"})
		return
	}

	lead, err := h.leads.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid status"})
			return
		}
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Status updated", "lead": lead})
}

func (h *Handler) serveFile(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid file id"})
		return
	}

	attachment, reader, err := h.leads.OpenAttachment(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer reader.Close()

	// PDFs force a download; everything else renders in the browser.
	disposition := "inline"
	if strings.EqualFold(attachment.ContentType, "application/pdf") {
		disposition = fmt.Sprintf("attachment; filename=%q", attachment.Filename)
	}

	c.DataFromReader(http.StatusOK, attachment.SizeBytes, attachment.ContentType, reader, map[string]string{
		"Content-Disposition": disposition,
	})
}

func (h *Handler) exportLeads(c *gin.Context) {
	result, err := h.leads.ExportExcel(c.Request.Context(), model.LeadFilter{
		Search: c.Query("search"),
		Status: c.Query("status"),
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", result.Content)
}

func (h *Handler) exportLeadPDF(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid lead id"})
		return
	}
	result, err := h.leads.ExportPDF(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, "application/pdf", result.Content)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Lead not found"})
	case errors.Is(err, service.ErrAlreadyCompleted):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "This registration is already completed"})
	case errors.Is(err, service.ErrUnsupportedFile), errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
	}
}

// parseLeadForm reads the flat multipart field set the wizard serializes to,
// plus up to one file per document slot.
func parseLeadForm(c *gin.Context) (model.Lead, []service.Upload, error) {
	if err := c.Request.ParseMultipartForm(multipartMemoryLimit); err != nil {
		return model.Lead{}, nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	lead := model.Lead{
		LocationName:     c.PostForm("locationName"),
		Capacity:         formInt(c, "capacity"),
		WaitTime:         c.PostForm("waitTime"),
		Latitude:         c.PostForm("latitude"),
		Longitude:        c.PostForm("longitude"),
		MapURL:           c.PostForm("mapUrl"),
		Timing:           c.PostForm("timing"),
		Address:          c.PostForm("address"),
		LobbyCount:       formInt(c, "lobbyCount"),
		KeyRoomCount:     formInt(c, "keyRoomCount"),
		Distance:         c.PostForm("distance"),
		ValetBooth:       formBool(c, "valetBooth"),
		CCTVCoverage:     formBool(c, "cctvCoverage"),
		CoveredParking:   formBool(c, "coveredParking"),
		TicketTypes:      formList(c, "ticketTypes"),
		FeeTypes:         formList(c, "feeTypes"),
		PricingNotes:     c.PostForm("pricingNotes"),
		VATInclusive:     formBool(c, "vatInclusive"),
		DriverCount:      formInt(c, "driverCount"),
		DriverRoster:     c.PostForm("driverRoster"),
		AdminName:        c.PostForm("adminName"),
		AdminEmail:       c.PostForm("adminEmail"),
		AdminPhone:       c.PostForm("adminPhone"),
		TrainingRequired: formBool(c, "trainingRequired"),
		SubmissionNotes:  c.PostForm("submissionNotes"),
	}

	uploads := uploadsFromForm(c.Request.MultipartForm)
	return lead, uploads, nil
}

func uploadsFromForm(form *multipart.Form) []service.Upload {
	if form == nil {
		return nil
	}
	var uploads []service.Upload
	for _, field := range model.AttachmentFields {
		headers := form.File[string(field)]
		if len(headers) == 0 {
			continue
		}
		header := headers[0]
		uploads = append(uploads, service.Upload{
			Field:       field,
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Open: func() (io.ReadCloser, error) {
				return header.Open()
			},
		})
	}
	return uploads
}

func formInt(c *gin.Context, key string) int {
	value, err := strconv.Atoi(strings.TrimSpace(c.PostForm(key)))
	if err != nil {
		return 0
	}
	return value
}

func formBool(c *gin.Context, key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(c.PostForm(key)))
	if err != nil {
		return false
	}
	return value
}

func formList(c *gin.Context, key string) []string {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	return values
}
