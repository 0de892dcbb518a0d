package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/valetops/leads-service/internal/model"
)

type LeadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// leadRow mirrors the leads table for raw scans. Multi-select sets are
// stored comma-joined.
type leadRow struct {
	ID               uuid.UUID `gorm:"column:id"`
	ReferenceCode    string    `gorm:"column:reference_code"`
	IdempotencyKey   *string   `gorm:"column:idempotency_key"`
	Status           string    `gorm:"column:status"`
	LocationName     string    `gorm:"column:location_name"`
	Capacity         int       `gorm:"column:capacity"`
	WaitTime         string    `gorm:"column:wait_time"`
	Latitude         string    `gorm:"column:latitude"`
	Longitude        string    `gorm:"column:longitude"`
	MapURL           string    `gorm:"column:map_url"`
	Timing           string    `gorm:"column:timing"`
	Address          string    `gorm:"column:address"`
	LobbyCount       int       `gorm:"column:lobby_count"`
	KeyRoomCount     int       `gorm:"column:key_room_count"`
	Distance         string    `gorm:"column:distance"`
	ValetBooth       bool      `gorm:"column:valet_booth"`
	CCTVCoverage     bool      `gorm:"column:cctv_coverage"`
	CoveredParking   bool      `gorm:"column:covered_parking"`
	TicketTypes      string    `gorm:"column:ticket_types"`
	FeeTypes         string    `gorm:"column:fee_types"`
	PricingNotes     string    `gorm:"column:pricing_notes"`
	VATInclusive     bool      `gorm:"column:vat_inclusive"`
	DriverCount      int       `gorm:"column:driver_count"`
	DriverRoster     string    `gorm:"column:driver_roster"`
	AdminName        string    `gorm:"column:admin_name"`
	AdminEmail       string    `gorm:"column:admin_email"`
	AdminPhone       string    `gorm:"column:admin_phone"`
	TrainingRequired bool      `gorm:"column:training_required"`
	SubmissionNotes  string    `gorm:"column:submission_notes"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

const leadColumns = `
	id, reference_code, idempotency_key, status,
	location_name, capacity, wait_time, latitude, longitude, map_url, timing, address,
	lobby_count, key_room_count, distance, valet_booth, cctv_coverage, covered_parking,
	ticket_types, fee_types, pricing_notes, vat_inclusive,
	driver_count, driver_roster,
	admin_name, admin_email, admin_phone, training_required,
	submission_notes, created_at, updated_at`

func (row leadRow) toLead() model.Lead {
	return model.Lead{
		ID:               row.ID,
		ReferenceCode:    row.ReferenceCode,
		IdempotencyKey:   row.IdempotencyKey,
		Status:           model.LeadStatus(row.Status),
		LocationName:     row.LocationName,
		Capacity:         row.Capacity,
		WaitTime:         row.WaitTime,
		Latitude:         row.Latitude,
		Longitude:        row.Longitude,
		MapURL:           row.MapURL,
		Timing:           row.Timing,
		Address:          row.Address,
		LobbyCount:       row.LobbyCount,
		KeyRoomCount:     row.KeyRoomCount,
		Distance:         row.Distance,
		ValetBooth:       row.ValetBooth,
		CCTVCoverage:     row.CCTVCoverage,
		CoveredParking:   row.CoveredParking,
		TicketTypes:      splitList(row.TicketTypes),
		FeeTypes:         splitList(row.FeeTypes),
		PricingNotes:     row.PricingNotes,
		VATInclusive:     row.VATInclusive,
		DriverCount:      row.DriverCount,
		DriverRoster:     row.DriverRoster,
		AdminName:        row.AdminName,
		AdminEmail:       row.AdminEmail,
		AdminPhone:       row.AdminPhone,
		TrainingRequired: row.TrainingRequired,
		SubmissionNotes:  row.SubmissionNotes,
		Attachments:      []model.Attachment{},
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}
}

func (r *LeadRepository) Create(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	var row leadRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Raw(`
			INSERT INTO leads (
				reference_code, idempotency_key, status,
				location_name, capacity, wait_time, latitude, longitude, map_url, timing, address,
				lobby_count, key_room_count, distance, valet_booth, cctv_coverage, covered_parking,
				ticket_types, fee_types, pricing_notes, vat_inclusive,
				driver_count, driver_roster,
				admin_name, admin_email, admin_phone, training_required,
				submission_notes
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING `+leadColumns,
			lead.ReferenceCode,
			lead.IdempotencyKey,
			lead.Status,
			lead.LocationName,
			lead.Capacity,
			lead.WaitTime,
			lead.Latitude,
			lead.Longitude,
			lead.MapURL,
			lead.Timing,
			lead.Address,
			lead.LobbyCount,
			lead.KeyRoomCount,
			lead.Distance,
			lead.ValetBooth,
			lead.CCTVCoverage,
			lead.CoveredParking,
			joinList(lead.TicketTypes),
			joinList(lead.FeeTypes),
			lead.PricingNotes,
			lead.VATInclusive,
			lead.DriverCount,
			lead.DriverRoster,
			lead.AdminName,
			lead.AdminEmail,
			lead.AdminPhone,
			lead.TrainingRequired,
			lead.SubmissionNotes,
		).Scan(&row).Error
		if err != nil {
			return err
		}

		for _, attachment := range lead.Attachments {
			if err := insertAttachment(tx, row.ID, attachment); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, row.ID)
}

func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Lead, error) {
	var row leadRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+leadColumns+`
		FROM leads
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return r.withAttachments(ctx, row)
}

func (r *LeadRepository) GetByReference(ctx context.Context, code string) (*model.Lead, error) {
	var row leadRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+leadColumns+`
		FROM leads
		WHERE reference_code = ?
		LIMIT 1
	`, code).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return r.withAttachments(ctx, row)
}

func (r *LeadRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.Lead, error) {
	var row leadRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT `+leadColumns+`
		FROM leads
		WHERE idempotency_key = ?
		LIMIT 1
	`, key).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return r.withAttachments(ctx, row)
}

// List returns one page of leads, newest first, with the total count for the
// filter. An empty result set is not an error.
func (r *LeadRepository) List(ctx context.Context, filter model.LeadFilter) (*model.LeadPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}

	where := "1=1"
	var args []interface{}

	search := strings.TrimSpace(filter.Search)
	if search != "" {
		pattern := "%" + search + "%"
		where += ` AND (admin_name ILIKE ? OR admin_email ILIKE ? OR admin_phone ILIKE ? OR location_name ILIKE ?)`
		args = append(args, pattern, pattern, pattern, pattern)
	}

	status := strings.TrimSpace(filter.Status)
	if status != "" && status != "all" {
		where += ` AND status = ?`
		args = append(args, status)
	}

	var total int64
	if err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM leads WHERE `+where, args...,
	).Scan(&total).Error; err != nil {
		return nil, err
	}

	offset := (filter.Page - 1) * filter.Limit
	pageArgs := append(append([]interface{}{}, args...), filter.Limit, offset)

	var rows []leadRow
	if err := r.db.WithContext(ctx).Raw(`
		SELECT `+leadColumns+`
		FROM leads
		WHERE `+where+`
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, pageArgs...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	leads := make([]model.Lead, 0, len(rows))
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		leads = append(leads, row.toLead())
		ids = append(ids, row.ID)
	}

	if len(ids) > 0 {
		attachments, err := r.listAttachments(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range leads {
			if list, ok := attachments[leads[i].ID]; ok {
				leads[i].Attachments = list
			}
		}
	}

	totalPages := total / int64(filter.Limit)
	if total%int64(filter.Limit) != 0 {
		totalPages++
	}

	return &model.LeadPage{
		Leads:      leads,
		Page:       filter.Page,
		Limit:      filter.Limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// UpdateFields overwrites every wizard-collected text field of the lead.
// Attachments and status are managed separately.
func (r *LeadRepository) UpdateFields(ctx context.Context, id uuid.UUID, lead model.Lead) error {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE leads SET
			location_name = ?,
			capacity = ?,
			wait_time = ?,
			latitude = ?,
			longitude = ?,
			map_url = ?,
			timing = ?,
			address = ?,
			lobby_count = ?,
			key_room_count = ?,
			distance = ?,
			valet_booth = ?,
			cctv_coverage = ?,
			covered_parking = ?,
			ticket_types = ?,
			fee_types = ?,
			pricing_notes = ?,
			vat_inclusive = ?,
			driver_count = ?,
			driver_roster = ?,
			admin_name = ?,
			admin_email = ?,
			admin_phone = ?,
			training_required = ?,
			submission_notes = ?,
			updated_at = NOW()
		WHERE id = ?
	`,
		lead.LocationName,
		lead.Capacity,
		lead.WaitTime,
		lead.Latitude,
		lead.Longitude,
		lead.MapURL,
		lead.Timing,
		lead.Address,
		lead.LobbyCount,
		lead.KeyRoomCount,
		lead.Distance,
		lead.ValetBooth,
		lead.CCTVCoverage,
		lead.CoveredParking,
		joinList(lead.TicketTypes),
		joinList(lead.FeeTypes),
		lead.PricingNotes,
		lead.VATInclusive,
		lead.DriverCount,
		lead.DriverRoster,
		lead.AdminName,
		lead.AdminEmail,
		lead.AdminPhone,
		lead.TrainingRequired,
		lead.SubmissionNotes,
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *LeadRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.LeadStatus) error {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE leads SET status = ?, updated_at = NOW() WHERE id = ?
	`, status, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ReplaceAttachments swaps in the new attachment rows atomically: any
// existing row with the same fieldname is removed before the insert, so the
// one-attachment-per-fieldname invariant holds throughout.
func (r *LeadRepository) ReplaceAttachments(ctx context.Context, leadID uuid.UUID, incoming []model.Attachment) error {
	if len(incoming) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, attachment := range incoming {
			if err := tx.Exec(`
				DELETE FROM lead_attachments WHERE lead_id = ? AND fieldname = ?
			`, leadID, attachment.Fieldname).Error; err != nil {
				return err
			}
			if err := insertAttachment(tx, leadID, attachment); err != nil {
				return err
			}
		}
		return tx.Exec(`UPDATE leads SET updated_at = NOW() WHERE id = ?`, leadID).Error
	})
}

func (r *LeadRepository) GetAttachment(ctx context.Context, id uuid.UUID) (*model.Attachment, error) {
	var attachment model.Attachment
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, lead_id, fieldname, filename, storage_key AS path, content_type, size_bytes, created_at
		FROM lead_attachments
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&attachment).Error
	if err != nil {
		return nil, err
	}
	if attachment.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &attachment, nil
}

func (r *LeadRepository) withAttachments(ctx context.Context, row leadRow) (*model.Lead, error) {
	lead := row.toLead()
	attachments, err := r.listAttachments(ctx, []uuid.UUID{row.ID})
	if err != nil {
		return nil, err
	}
	if list, ok := attachments[row.ID]; ok {
		lead.Attachments = list
	}
	return &lead, nil
}

func (r *LeadRepository) listAttachments(ctx context.Context, leadIDs []uuid.UUID) (map[uuid.UUID][]model.Attachment, error) {
	placeholders := make([]string, len(leadIDs))
	args := make([]interface{}, len(leadIDs))
	for i, id := range leadIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	var attachments []model.Attachment
	err := r.db.WithContext(ctx).Raw(`
		SELECT id, lead_id, fieldname, filename, storage_key AS path, content_type, size_bytes, created_at
		FROM lead_attachments
		WHERE lead_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY created_at ASC
	`, args...).Scan(&attachments).Error
	if err != nil {
		return nil, err
	}

	grouped := make(map[uuid.UUID][]model.Attachment, len(leadIDs))
	for _, attachment := range attachments {
		grouped[attachment.LeadID] = append(grouped[attachment.LeadID], attachment)
	}
	return grouped, nil
}

func insertAttachment(tx *gorm.DB, leadID uuid.UUID, attachment model.Attachment) error {
	return tx.Exec(`
		INSERT INTO lead_attachments (id, lead_id, fieldname, filename, storage_key, content_type, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		attachment.ID,
		leadID,
		attachment.Fieldname,
		attachment.Filename,
		attachment.Path,
		attachment.ContentType,
		attachment.SizeBytes,
	).Error
}

func joinList(values []string) string {
	return strings.Join(values, ",")
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
