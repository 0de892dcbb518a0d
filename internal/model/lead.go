package model

import (
	"time"

	"github.com/google/uuid"
)

type LeadStatus string

const (
	LeadStatusPending   LeadStatus = "pending"
	LeadStatusCompleted LeadStatus = "completed"
)

// AttachmentField is one of the four fixed document slots a lead can carry.
type AttachmentField string

const (
	FieldCompanyLogo    AttachmentField = "companyLogo"
	FieldClientLogo     AttachmentField = "clientLogo"
	FieldVATCertificate AttachmentField = "vatCertificate"
	FieldTradeLicense   AttachmentField = "tradeLicense"
)

// AttachmentFields lists the slots in wire order.
var AttachmentFields = []AttachmentField{
	FieldCompanyLogo,
	FieldClientLogo,
	FieldVATCertificate,
	FieldTradeLicense,
}

type TicketType string

const (
	TicketPaper      TicketType = "paper"
	TicketDigital    TicketType = "digital"
	TicketValidation TicketType = "validation"
)

type FeeType string

const (
	FeeHourly  FeeType = "hourly"
	FeeFlat    FeeType = "flat"
	FeeDaily   FeeType = "daily"
	FeeMonthly FeeType = "monthly"
)

type Lead struct {
	ID             uuid.UUID  `json:"id"`
	ReferenceCode  string     `json:"referenceCode"`
	IdempotencyKey *string    `json:"-"`
	Status         LeadStatus `json:"status"`

	// Step 1: location
	LocationName string  `json:"locationName"`
	Capacity     int     `json:"capacity"`
	WaitTime     string  `json:"waitTime"`
	Latitude     string  `json:"latitude"`
	Longitude    string  `json:"longitude"`
	MapURL       string  `json:"mapUrl"`
	Timing       string  `json:"timing"`
	Address      string  `json:"address"`

	// Step 2: on-site setup
	LobbyCount     int    `json:"lobbyCount"`
	KeyRoomCount   int    `json:"keyRoomCount"`
	Distance       string `json:"distance"`
	ValetBooth     bool   `json:"valetBooth"`
	CCTVCoverage   bool   `json:"cctvCoverage"`
	CoveredParking bool   `json:"coveredParking"`

	// Step 3: pricing
	TicketTypes  []string `json:"ticketTypes"`
	FeeTypes     []string `json:"feeTypes"`
	PricingNotes string   `json:"pricingNotes"`
	VATInclusive bool     `json:"vatInclusive"`

	// Step 4: drivers
	DriverCount  int    `json:"driverCount"`
	DriverRoster string `json:"driverRoster"`

	// Step 5: admin contact
	AdminName        string `json:"adminName"`
	AdminEmail       string `json:"adminEmail"`
	AdminPhone       string `json:"adminPhone"`
	TrainingRequired bool   `json:"trainingRequired"`

	// Step 6: documents
	SubmissionNotes string       `json:"submissionNotes"`
	Attachments     []Attachment `json:"attachments"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Attachment is one stored document. Path is the blob storage key; clients
// fetch bytes through the file endpoint by ID.
type Attachment struct {
	ID          uuid.UUID       `json:"id"`
	LeadID      uuid.UUID       `json:"-"`
	Fieldname   AttachmentField `json:"fieldname"`
	Filename    string          `json:"filename"`
	Path        string          `json:"path"`
	ContentType string          `json:"contentType"`
	SizeBytes   int64           `json:"sizeBytes"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// AttachmentFor returns the attachment occupying the given slot, if any.
func (l *Lead) AttachmentFor(field AttachmentField) (Attachment, bool) {
	for _, a := range l.Attachments {
		if a.Fieldname == field {
			return a, true
		}
	}
	return Attachment{}, false
}

// LeadFilter selects a page of the admin listing. Page is 1-based; Search
// is matched as a case-insensitive substring across admin name, email,
// phone and location name; Status "" or "all" means no status filter.
type LeadFilter struct {
	Page   int
	Limit  int
	Search string
	Status string
}

// LeadPage is one page of the admin listing.
type LeadPage struct {
	Leads      []Lead
	Page       int
	Limit      int
	Total      int64
	TotalPages int64
}
