package wizard

import (
	"github.com/valetops/leads-service/internal/model"
)

// FileState distinguishes the three renderings of a document slot.
type FileState string

const (
	// FileStateNew: a local file chosen this session, not yet uploaded.
	FileStateNew FileState = "new"
	// FileStateExisting: a previously persisted file.
	FileStateExisting FileState = "existing"
	// FileStateAbsent: nothing chosen or stored.
	FileStateAbsent FileState = "absent"
)

// FileReview is one document slot as shown on the review screen.
type FileReview struct {
	Field     model.AttachmentField
	State     FileState
	Filename  string
	SizeBytes int64
	Link      string
}

// Review is an immutable rendering of the wizard state for confirmation.
type Review struct {
	Location     LocationStep
	Setup        SetupStep
	TicketTypes  []string
	FeeTypes     []string
	PricingNotes string
	VATInclusive bool
	Drivers      DriversStep
	Contact      ContactStep
	Notes        string
	Files        []FileReview
	ReadOnly     bool
}

// Snapshot renders the current form for the confirmation screen. A new
// unsaved selection takes precedence over a stored file in the same slot,
// since submitting would replace it.
func (m *Machine) Snapshot() Review {
	form := m.form
	files := make([]FileReview, 0, len(model.AttachmentFields))
	for _, field := range model.AttachmentFields {
		review := FileReview{Field: field, State: FileStateAbsent}
		if selection, ok := form.Documents.New[field]; ok && selection != nil {
			review.State = FileStateNew
			review.Filename = selection.Filename
			review.SizeBytes = selection.Size
		} else if attachment, ok := form.Documents.Existing[field]; ok {
			review.State = FileStateExisting
			review.Filename = attachment.Filename
			review.Link = "/api/files/" + attachment.ID.String()
		}
		files = append(files, review)
	}

	return Review{
		Location:     form.Location,
		Setup:        form.Setup,
		TicketTypes:  sortedTicketTypes(form.Pricing.TicketTypes),
		FeeTypes:     sortedFeeTypes(form.Pricing.FeeTypes),
		PricingNotes: form.Pricing.Notes,
		VATInclusive: form.Pricing.VATInclusive,
		Drivers:      form.Drivers,
		Contact:      form.Contact,
		Notes:        form.Documents.Notes,
		Files:        files,
		ReadOnly:     m.readOnly,
	}
}
