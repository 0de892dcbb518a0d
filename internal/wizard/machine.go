package wizard

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/valetops/leads-service/internal/model"
)

var (
	// ErrIncompleteSteps is the single aggregate message shown when forward
	// navigation or submission hits an invalid step. It deliberately does
	// not say which step failed.
	ErrIncompleteSteps = errors.New("finish required fields before moving ahead")

	// ErrReadOnly is returned when a completed lead's public edit form is
	// asked to mutate or submit.
	ErrReadOnly = errors.New("this registration is already completed")

	// ErrSubmitting makes re-entrant submit clicks no-ops.
	ErrSubmitting = errors.New("submission already in flight")

	// ErrInvalidStep is returned for navigation targets outside the flow.
	ErrInvalidStep = errors.New("no such step")
)

// Submission is the flat key/value + file set the machine serializes to.
type Submission struct {
	Fields map[string]string
	Files  []FilePart
}

type FilePart struct {
	Field       model.AttachmentField
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// LeadClient posts submissions to the record layer.
type LeadClient interface {
	CreateLead(ctx context.Context, submission Submission) (reference string, err error)
	UpdateLead(ctx context.Context, reference string, submission Submission) error
}

// Machine drives the six-step intake flow. It is not safe for concurrent
// use; the interaction model is one logical thread of control.
type Machine struct {
	form    Form
	current Step

	editMode  bool
	readOnly  bool
	reference string

	maxUploadBytes int64

	submitting bool
	submitted  bool

	fieldErrors FieldErrors
}

// NewMachine starts a blank new-lead wizard.
func NewMachine(maxUploadBytes int64) *Machine {
	return &Machine{
		form:           newForm(),
		current:        firstStep,
		maxUploadBytes: maxUploadBytes,
	}
}

// NewEditMachine starts the wizard pre-populated from a fetched lead.
// Completed leads open read-only on the public route.
func NewEditMachine(lead model.Lead, maxUploadBytes int64) *Machine {
	return &Machine{
		form:           formFromLead(lead),
		current:        firstStep,
		editMode:       true,
		readOnly:       lead.Status == model.LeadStatusCompleted,
		reference:      lead.ReferenceCode,
		maxUploadBytes: maxUploadBytes,
	}
}

func (m *Machine) Current() Step { return m.current }

func (m *Machine) Submitted() bool { return m.submitted }

func (m *Machine) Reference() string { return m.reference }

func (m *Machine) ReadOnly() bool { return m.readOnly }

func (m *Machine) Form() Form { return m.form }

func (m *Machine) Errors() FieldErrors { return m.fieldErrors }

// Edit applies a free-form mutation to the form. In read-only mode it is a
// no-op.
func (m *Machine) Edit(mutate func(*Form)) {
	if m.readOnly {
		return
	}
	mutate(&m.form)
}

// SetMapURL handles an edit of the map-URL field (urlEdited).
func (m *Machine) SetMapURL(url string) {
	if m.readOnly {
		return
	}
	m.form.applyMapURL(url)
}

// SetCoordinates handles an edit of either coordinate field (coordEdited).
func (m *Machine) SetCoordinates(latitude, longitude string) {
	if m.readOnly {
		return
	}
	m.form.applyCoordinates(latitude, longitude)
}

// ToggleTicketType adds or removes one ticket type; the selections are
// independent, with no mutual exclusion.
func (m *Machine) ToggleTicketType(value model.TicketType, checked bool) {
	if m.readOnly {
		return
	}
	m.form.toggleTicketType(value, checked)
}

func (m *Machine) ToggleFeeType(value model.FeeType, checked bool) {
	if m.readOnly {
		return
	}
	m.form.toggleFeeType(value, checked)
}

// ChooseFile selects a new local file for a document slot, replacing any
// prior unsaved selection for that slot.
func (m *Machine) ChooseFile(field model.AttachmentField, selection FileSelection) {
	if m.readOnly {
		return
	}
	m.form.Documents.New[field] = &selection
}

func (m *Machine) ClearFile(field model.AttachmentField) {
	if m.readOnly {
		return
	}
	delete(m.form.Documents.New, field)
}

// GoTo jumps to a step. Backward jumps are unconditional; a forward jump
// validates every step in [current, target) in order and aborts on the
// first failure, leaving the current step unchanged. A blocked jump
// surfaces only the aggregate message: per-field errors are kept only when
// the failing step is the one on screen, so a later step's fields are not
// revealed.
func (m *Machine) GoTo(target Step) error {
	if target < firstStep || target > lastStep {
		return ErrInvalidStep
	}
	if target <= m.current {
		m.current = target
		return nil
	}
	for step := m.current; step < target; step++ {
		if errs := m.validateStep(step); len(errs) > 0 {
			if step == m.current {
				m.fieldErrors = errs
			} else {
				m.fieldErrors = nil
			}
			return ErrIncompleteSteps
		}
	}
	m.fieldErrors = nil
	m.current = target
	return nil
}

// Next advances one step, validating only the step being left. This is
// looser than GoTo on purpose: tab-jumping checks the whole range, Next
// does not.
func (m *Machine) Next() error {
	if m.current >= lastStep {
		return nil
	}
	if errs := m.validateStep(m.current); len(errs) > 0 {
		m.fieldErrors = errs
		return ErrIncompleteSteps
	}
	m.fieldErrors = nil
	m.current++
	return nil
}

func (m *Machine) Back() {
	if m.current > firstStep {
		m.current--
	}
}

// Submit re-runs every step validator and, only when all pass, serializes
// the form and sends it. A validation failure aborts before any network
// call; a transport failure leaves the wizard state intact for retry.
func (m *Machine) Submit(ctx context.Context, client LeadClient) error {
	if m.readOnly {
		return ErrReadOnly
	}
	if m.submitting {
		return ErrSubmitting
	}

	for step := firstStep; step <= lastStep; step++ {
		if errs := m.validateStep(step); len(errs) > 0 {
			m.fieldErrors = errs
			return ErrIncompleteSteps
		}
	}
	m.fieldErrors = nil

	m.submitting = true
	defer func() { m.submitting = false }()

	submission := m.serialize()
	if m.editMode {
		if err := client.UpdateLead(ctx, m.reference, submission); err != nil {
			return err
		}
		m.submitted = true
		return nil
	}

	reference, err := client.CreateLead(ctx, submission)
	if err != nil {
		return err
	}
	m.reference = reference
	m.submitted = true
	return nil
}

// serialize flattens the form to the wire shape the record layer accepts.
func (m *Machine) serialize() Submission {
	form := m.form
	fields := map[string]string{
		"locationName":     form.Location.Name,
		"capacity":         strings.TrimSpace(form.Location.Capacity),
		"waitTime":         form.Location.WaitTime,
		"latitude":         form.Location.Latitude,
		"longitude":        form.Location.Longitude,
		"mapUrl":           form.Location.MapURL,
		"timing":           form.Location.Timing,
		"address":          form.Location.Address,
		"lobbyCount":       strconv.Itoa(form.Setup.LobbyCount),
		"keyRoomCount":     strconv.Itoa(form.Setup.KeyRoomCount),
		"distance":         form.Setup.Distance,
		"valetBooth":       strconv.FormatBool(form.Setup.ValetBooth),
		"cctvCoverage":     strconv.FormatBool(form.Setup.CCTVCoverage),
		"coveredParking":   strconv.FormatBool(form.Setup.CoveredParking),
		"ticketTypes":      strings.Join(sortedTicketTypes(form.Pricing.TicketTypes), ","),
		"feeTypes":         strings.Join(sortedFeeTypes(form.Pricing.FeeTypes), ","),
		"pricingNotes":     form.Pricing.Notes,
		"vatInclusive":     strconv.FormatBool(form.Pricing.VATInclusive),
		"driverCount":      strconv.Itoa(form.Drivers.Count),
		"driverRoster":     form.Drivers.Roster,
		"adminName":        form.Contact.Name,
		"adminEmail":       form.Contact.Email,
		"adminPhone":       form.Contact.Phone,
		"trainingRequired": strconv.FormatBool(form.Contact.TrainingRequired),
		"submissionNotes":  form.Documents.Notes,
	}

	files := make([]FilePart, 0, len(form.Documents.New))
	for _, field := range model.AttachmentFields {
		selection, ok := form.Documents.New[field]
		if !ok || selection == nil {
			continue
		}
		files = append(files, FilePart{
			Field:       field,
			Filename:    selection.Filename,
			ContentType: selection.ContentType,
			Size:        selection.Size,
			Open:        selection.Open,
		})
	}

	return Submission{Fields: fields, Files: files}
}
