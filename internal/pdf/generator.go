package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/valetops/leads-service/internal/model"
)

type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

// Generate renders a one-page summary of a lead for the admin dashboard.
func (g *Generator) Generate(lead model.Lead) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, "Valet Parking Registration Summary", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Reference %s - %s", lead.ReferenceCode, strings.ToUpper(string(lead.Status))), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Submitted %s", formatDate(lead.CreatedAt)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	g.section(pdf, "Location", [][2]string{
		{"Name", lead.LocationName},
		{"Capacity", fmt.Sprintf("%d", lead.Capacity)},
		{"Wait time", lead.WaitTime},
		{"Coordinates", joinPair(lead.Latitude, lead.Longitude)},
		{"Map", lead.MapURL},
		{"Timing", lead.Timing},
		{"Address", lead.Address},
	})

	g.section(pdf, "On-site Setup", [][2]string{
		{"Lobbies", fmt.Sprintf("%d", lead.LobbyCount)},
		{"Key rooms", fmt.Sprintf("%d", lead.KeyRoomCount)},
		{"Distance", lead.Distance},
		{"Valet booth", yesNo(lead.ValetBooth)},
		{"CCTV coverage", yesNo(lead.CCTVCoverage)},
		{"Covered parking", yesNo(lead.CoveredParking)},
	})

	g.section(pdf, "Pricing", [][2]string{
		{"Ticket types", strings.Join(lead.TicketTypes, ", ")},
		{"Fee types", strings.Join(lead.FeeTypes, ", ")},
		{"Notes", lead.PricingNotes},
		{"VAT", vatLabel(lead.VATInclusive)},
	})

	g.section(pdf, "Drivers", [][2]string{
		{"Count", fmt.Sprintf("%d", lead.DriverCount)},
		{"Roster", lead.DriverRoster},
	})

	g.section(pdf, "Admin Contact", [][2]string{
		{"Name", lead.AdminName},
		{"Email", lead.AdminEmail},
		{"Phone", lead.AdminPhone},
		{"Training required", yesNo(lead.TrainingRequired)},
	})

	documents := make([][2]string, 0, len(model.AttachmentFields)+1)
	for _, field := range model.AttachmentFields {
		if attachment, ok := lead.AttachmentFor(field); ok {
			documents = append(documents, [2]string{string(field), attachment.Filename})
		} else {
			documents = append(documents, [2]string{string(field), "-"})
		}
	}
	documents = append(documents, [2]string{"Submission notes", lead.SubmissionNotes})
	g.section(pdf, "Documents", documents)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) section(pdf *gofpdf.Fpdf, title string, rows [][2]string) {
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 10)
	for _, row := range rows {
		pdf.CellFormat(45, 6, row[0], "", 0, "L", false, 0, "")
		pdf.MultiCell(0, 6, safeValue(row[1]), "", "L", false)
	}
	pdf.Ln(2)
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func yesNo(value bool) string {
	if value {
		return "Yes"
	}
	return "No"
}

func vatLabel(inclusive bool) string {
	if inclusive {
		return "Inclusive"
	}
	return "Exclusive"
}

func joinPair(latitude, longitude string) string {
	if strings.TrimSpace(latitude) == "" && strings.TrimSpace(longitude) == "" {
		return ""
	}
	return fmt.Sprintf("%s, %s", latitude, longitude)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02.01.2006")
}
