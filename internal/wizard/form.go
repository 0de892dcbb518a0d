// Package wizard implements the six-step lead intake flow: typed per-step
// form state, step validation, navigation rules and submission.
package wizard

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/valetops/leads-service/internal/model"
)

type Step int

const (
	StepLocation  Step = 1
	StepSetup     Step = 2
	StepPricing   Step = 3
	StepDrivers   Step = 4
	StepContact   Step = 5
	StepDocuments Step = 6

	firstStep = StepLocation
	lastStep  = StepDocuments
)

// FileSelection is a new, not-yet-uploaded local file chosen for a slot.
type FileSelection struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

type LocationStep struct {
	Name      string
	Capacity  string
	WaitTime  string
	Latitude  string
	Longitude string
	MapURL    string
	Timing    string
	Address   string
}

type SetupStep struct {
	LobbyCount     int
	KeyRoomCount   int
	Distance       string
	ValetBooth     bool
	CCTVCoverage   bool
	CoveredParking bool
}

type PricingStep struct {
	TicketTypes  map[model.TicketType]struct{}
	FeeTypes     map[model.FeeType]struct{}
	Notes        string
	VATInclusive bool
}

type DriversStep struct {
	Count  int
	Roster string
}

type ContactStep struct {
	Name             string
	Email            string
	Phone            string
	TrainingRequired bool
}

type DocumentsStep struct {
	New      map[model.AttachmentField]*FileSelection
	Existing map[model.AttachmentField]model.Attachment
	Notes    string
}

// Form aggregates the six step records.
type Form struct {
	Location  LocationStep
	Setup     SetupStep
	Pricing   PricingStep
	Drivers   DriversStep
	Contact   ContactStep
	Documents DocumentsStep
}

func newForm() Form {
	return Form{
		Pricing: PricingStep{
			TicketTypes: make(map[model.TicketType]struct{}),
			FeeTypes:    make(map[model.FeeType]struct{}),
		},
		Documents: DocumentsStep{
			New:      make(map[model.AttachmentField]*FileSelection),
			Existing: make(map[model.AttachmentField]model.Attachment),
		},
	}
}

// formFromLead pre-populates a form from a fetched record (edit mode).
func formFromLead(lead model.Lead) Form {
	form := newForm()
	form.Location = LocationStep{
		Name:      lead.LocationName,
		Capacity:  strconv.Itoa(lead.Capacity),
		WaitTime:  lead.WaitTime,
		Latitude:  lead.Latitude,
		Longitude: lead.Longitude,
		MapURL:    lead.MapURL,
		Timing:    lead.Timing,
		Address:   lead.Address,
	}
	form.Setup = SetupStep{
		LobbyCount:     lead.LobbyCount,
		KeyRoomCount:   lead.KeyRoomCount,
		Distance:       lead.Distance,
		ValetBooth:     lead.ValetBooth,
		CCTVCoverage:   lead.CCTVCoverage,
		CoveredParking: lead.CoveredParking,
	}
	for _, value := range lead.TicketTypes {
		form.Pricing.TicketTypes[model.TicketType(value)] = struct{}{}
	}
	for _, value := range lead.FeeTypes {
		form.Pricing.FeeTypes[model.FeeType(value)] = struct{}{}
	}
	form.Pricing.Notes = lead.PricingNotes
	form.Pricing.VATInclusive = lead.VATInclusive
	form.Drivers = DriversStep{Count: lead.DriverCount, Roster: lead.DriverRoster}
	form.Contact = ContactStep{
		Name:             lead.AdminName,
		Email:            lead.AdminEmail,
		Phone:            lead.AdminPhone,
		TrainingRequired: lead.TrainingRequired,
	}
	form.Documents.Notes = lead.SubmissionNotes
	for _, attachment := range lead.Attachments {
		form.Documents.Existing[attachment.Fieldname] = attachment
	}
	return form
}

// coordPair matches a decimal latitude,longitude pair inside a maps URL.
var coordPair = regexp.MustCompile(`(-?\d{1,3}\.\d+)\s*,\s*(-?\d{1,3}\.\d+)`)

// applyMapURL is the urlEdited transition: it writes the coordinate fields
// from the URL and never re-enters the coordinate handler.
func (f *Form) applyMapURL(url string) {
	f.Location.MapURL = url
	if match := coordPair.FindStringSubmatch(url); match != nil {
		f.Location.Latitude = match[1]
		f.Location.Longitude = match[2]
	}
}

// applyCoordinates is the coordEdited transition: it regenerates the
// canonical map URL from the pair and never re-enters the URL handler.
func (f *Form) applyCoordinates(latitude, longitude string) {
	f.Location.Latitude = latitude
	f.Location.Longitude = longitude
	if strings.TrimSpace(latitude) != "" && strings.TrimSpace(longitude) != "" {
		f.Location.MapURL = fmt.Sprintf("https://www.google.com/maps?q=%s,%s", latitude, longitude)
	}
}

func (f *Form) toggleTicketType(value model.TicketType, checked bool) {
	if checked {
		f.Pricing.TicketTypes[value] = struct{}{}
		return
	}
	delete(f.Pricing.TicketTypes, value)
}

func (f *Form) toggleFeeType(value model.FeeType, checked bool) {
	if checked {
		f.Pricing.FeeTypes[value] = struct{}{}
		return
	}
	delete(f.Pricing.FeeTypes, value)
}

func sortedTicketTypes(set map[model.TicketType]struct{}) []string {
	values := make([]string, 0, len(set))
	for _, candidate := range []model.TicketType{model.TicketPaper, model.TicketDigital, model.TicketValidation} {
		if _, ok := set[candidate]; ok {
			values = append(values, string(candidate))
		}
	}
	return values
}

func sortedFeeTypes(set map[model.FeeType]struct{}) []string {
	values := make([]string, 0, len(set))
	for _, candidate := range []model.FeeType{model.FeeHourly, model.FeeFlat, model.FeeDaily, model.FeeMonthly} {
		if _, ok := set[candidate]; ok {
			values = append(values, string(candidate))
		}
	}
	return values
}
