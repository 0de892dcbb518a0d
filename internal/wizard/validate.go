package wizard

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
)

const (
	capacityMin = 1
	capacityMax = 1500

	phoneDigitsMin = 8
	phoneDigitsMax = 14
)

// FieldErrors maps field name to a user-facing message.
type FieldErrors map[string]string

// validateStep runs the validator for one step. Steps 2-4 have no required
// fields and always pass.
func (m *Machine) validateStep(step Step) FieldErrors {
	errs := FieldErrors{}
	switch step {
	case StepLocation:
		if strings.TrimSpace(m.form.Location.Name) == "" {
			errs["locationName"] = "location name is required"
		}
		capacity, err := strconv.Atoi(strings.TrimSpace(m.form.Location.Capacity))
		if err != nil || capacity < capacityMin || capacity > capacityMax {
			errs["capacity"] = fmt.Sprintf("capacity must be a number between %d and %d", capacityMin, capacityMax)
		}
	case StepContact:
		if strings.TrimSpace(m.form.Contact.Name) == "" {
			errs["adminName"] = "name is required"
		}
		if _, err := mail.ParseAddress(strings.TrimSpace(m.form.Contact.Email)); err != nil {
			errs["adminEmail"] = "enter a valid email address"
		}
		digits := countDigits(m.form.Contact.Phone)
		if digits < phoneDigitsMin || digits > phoneDigitsMax {
			errs["adminPhone"] = fmt.Sprintf("phone must contain %d to %d digits", phoneDigitsMin, phoneDigitsMax)
		}
	case StepDocuments:
		for field, selection := range m.form.Documents.New {
			if selection != nil && selection.Size > m.maxUploadBytes {
				errs[string(field)] = fmt.Sprintf("file exceeds %d KB", m.maxUploadBytes/1024)
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// countDigits strips non-digits and counts what remains, so formatted
// numbers like "+971 52-123-4567" validate on their digit length.
func countDigits(phone string) int {
	count := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			count++
		}
	}
	return count
}
