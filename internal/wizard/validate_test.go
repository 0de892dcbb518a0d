package wizard

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateLocationStep(t *testing.T) {
	tests := []struct {
		name     string
		location LocationStep
		wantErrs []string
	}{
		{
			name:     "valid",
			location: LocationStep{Name: "Grand Hyatt Dubai", Capacity: "200"},
		},
		{
			name:     "missing name",
			location: LocationStep{Capacity: "200"},
			wantErrs: []string{"locationName"},
		},
		{
			name:     "capacity not numeric",
			location: LocationStep{Name: "Hotel", Capacity: "lots"},
			wantErrs: []string{"capacity"},
		},
		{
			name:     "capacity below range",
			location: LocationStep{Name: "Hotel", Capacity: "0"},
			wantErrs: []string{"capacity"},
		},
		{
			name:     "capacity above range",
			location: LocationStep{Name: "Hotel", Capacity: "1501"},
			wantErrs: []string{"capacity"},
		},
		{
			name:     "capacity at bounds",
			location: LocationStep{Name: "Hotel", Capacity: "1500"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(500 * 1024)
			m.Edit(func(f *Form) { f.Location = tt.location })

			errs := m.validateStep(StepLocation)
			if len(tt.wantErrs) == 0 {
				assert.Empty(t, errs)
				return
			}
			for _, field := range tt.wantErrs {
				assert.Contains(t, errs, field)
			}
		})
	}
}

func TestCapacityBounds(t *testing.T) {
	for _, capacity := range []int{1, 2, 750, 1499, 1500} {
		m := NewMachine(500 * 1024)
		m.Edit(func(f *Form) {
			f.Location = LocationStep{Name: "Hotel", Capacity: fmt.Sprintf("%d", capacity)}
		})
		assert.Empty(t, m.validateStep(StepLocation), "capacity %d should pass", capacity)
	}
	for _, capacity := range []int{-1, 0, 1501, 99999} {
		m := NewMachine(500 * 1024)
		m.Edit(func(f *Form) {
			f.Location = LocationStep{Name: "Hotel", Capacity: fmt.Sprintf("%d", capacity)}
		})
		assert.Contains(t, m.validateStep(StepLocation), "capacity", "capacity %d should fail", capacity)
	}
}

func TestMiddleStepsAlwaysValid(t *testing.T) {
	m := NewMachine(500 * 1024)
	for _, step := range []Step{StepSetup, StepPricing, StepDrivers} {
		assert.Empty(t, m.validateStep(step))
	}
}

func TestValidateContactStep(t *testing.T) {
	base := ContactStep{Name: "Aisha", Email: "a@b.com", Phone: "971521234567"}

	tests := []struct {
		name    string
		mutate  func(*ContactStep)
		wantErr string
	}{
		{name: "valid", mutate: func(c *ContactStep) {}},
		{name: "missing name", mutate: func(c *ContactStep) { c.Name = " " }, wantErr: "adminName"},
		{name: "bad email", mutate: func(c *ContactStep) { c.Email = "not-an-email" }, wantErr: "adminEmail"},
		{name: "phone too short", mutate: func(c *ContactStep) { c.Phone = "1234567" }, wantErr: "adminPhone"},
		{name: "phone too long", mutate: func(c *ContactStep) { c.Phone = "123456789012345" }, wantErr: "adminPhone"},
		{name: "formatted phone strips to valid", mutate: func(c *ContactStep) { c.Phone = "+971 52-123-4567" }},
		{name: "formatting does not rescue short phone", mutate: func(c *ContactStep) { c.Phone = "+1 (23) 45-67" }, wantErr: "adminPhone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contact := base
			tt.mutate(&contact)

			m := NewMachine(500 * 1024)
			m.Edit(func(f *Form) { f.Contact = contact })

			errs := m.validateStep(StepContact)
			if tt.wantErr == "" {
				assert.Empty(t, errs)
			} else {
				assert.Contains(t, errs, tt.wantErr)
			}
		})
	}
}

func TestValidateDocumentsStep(t *testing.T) {
	m := NewMachine(500 * 1024)

	m.ChooseFile("companyLogo", FileSelection{Filename: "logo.png", ContentType: "image/png", Size: 400 * 1024})
	assert.Empty(t, m.validateStep(StepDocuments))

	m.ChooseFile("companyLogo", FileSelection{Filename: "logo.png", ContentType: "image/png", Size: 600 * 1024})
	errs := m.validateStep(StepDocuments)
	assert.Contains(t, errs, "companyLogo")
}

func TestValidateDocumentsStepExistingFilesExempt(t *testing.T) {
	// Pre-existing stored files never hit the size check, only new picks do.
	m := NewMachine(500 * 1024)
	m.Edit(func(f *Form) {
		f.Documents.Existing["vatCertificate"] = existingAttachment("vatCertificate", "cert.pdf")
	})
	assert.Empty(t, m.validateStep(StepDocuments))
}

func TestCountDigits(t *testing.T) {
	assert.Equal(t, 12, countDigits("+971 52-123-4567"))
	assert.Equal(t, 0, countDigits("no digits"))
	assert.Equal(t, 8, countDigits("12345678"))
}
