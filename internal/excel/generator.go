package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/valetops/leads-service/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate writes the lead listing to a workbook, one row per lead.
func (g *Generator) Generate(leads []model.Lead) ([]byte, error) {
	file := excelize.NewFile()

	sheet := "Leads"
	file.SetSheetName("Sheet1", sheet)

	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	headers := []string{
		"Reference",
		"Status",
		"Location",
		"Capacity",
		"Admin Name",
		"Admin Email",
		"Admin Phone",
		"Ticket Types",
		"Fee Types",
		"Drivers",
		"Documents",
		"Created",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	for i, lead := range leads {
		row := i + 2
		set(fmt.Sprintf("A%d", row), lead.ReferenceCode)
		set(fmt.Sprintf("B%d", row), string(lead.Status))
		set(fmt.Sprintf("C%d", row), lead.LocationName)
		set(fmt.Sprintf("D%d", row), lead.Capacity)
		set(fmt.Sprintf("E%d", row), lead.AdminName)
		set(fmt.Sprintf("F%d", row), lead.AdminEmail)
		set(fmt.Sprintf("G%d", row), lead.AdminPhone)
		set(fmt.Sprintf("H%d", row), strings.Join(lead.TicketTypes, ", "))
		set(fmt.Sprintf("I%d", row), strings.Join(lead.FeeTypes, ", "))
		set(fmt.Sprintf("J%d", row), lead.DriverCount)
		set(fmt.Sprintf("K%d", row), documentSummary(lead))
		set(fmt.Sprintf("L%d", row), formatDateTime(lead.CreatedAt))
	}

	_ = file.SetColWidth(sheet, "A", "A", 14)
	_ = file.SetColWidth(sheet, "B", "B", 11)
	_ = file.SetColWidth(sheet, "C", "C", 32)
	_ = file.SetColWidth(sheet, "E", "G", 24)
	_ = file.SetColWidth(sheet, "H", "I", 20)
	_ = file.SetColWidth(sheet, "K", "L", 26)

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func documentSummary(lead model.Lead) string {
	parts := make([]string, 0, len(lead.Attachments))
	for _, attachment := range lead.Attachments {
		parts = append(parts, string(attachment.Fieldname))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
