package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GTDGit/passport_api/internal/models"
)

func payloadWith(bio, mrz models.Section, visas []models.Section) *models.Payload {
	p := &models.Payload{BiographicalPage: bio, MRZ: mrz, Visas: visas}
	p.EnsureDefaults()
	return p
}

func TestValidatePayloadGender(t *testing.T) {
	tests := []struct {
		gender string
		want   string
	}{
		{"K/M", "Gender field contains extra characters: 'K/M' -> suggested: 'M'"},
		{"Ж/F", "Gender field contains extra characters: 'Ж/F' -> suggested: 'F'"},
		{"M / Ж", "Gender field contains extra characters: 'M / Ж' -> suggested: 'Ж'"},
	}
	for _, tt := range tests {
		t.Run(tt.gender, func(t *testing.T) {
			warnings := ValidatePayload(payloadWith(models.Section{"gender": tt.gender}, nil, nil))
			assert.Contains(t, warnings, tt.want)
		})
	}

	for _, clean := range []string{"M", "F", "X/Y", ""} {
		warnings := ValidatePayload(payloadWith(models.Section{"gender": clean}, nil, nil))
		for _, w := range warnings {
			assert.NotContains(t, w, "Gender", "gender %q", clean)
		}
	}
}

func TestValidatePayloadVisaDates(t *testing.T) {
	warnings := ValidatePayload(payloadWith(nil, nil, []models.Section{
		{"issue_date": "01.01.2020", "expiry_date": "01.01.2021"},
		{"issue_date": "01.01.2020"},
		{"issue_date": "02.02.2022", "expiry_date": "02.03.2022"},
	}))

	assert.Contains(t, warnings, "Visa 1: verify dates - issue: 01.01.2020, expiry: 01.01.2021")
	assert.Contains(t, warnings, "Visa 3: verify dates - issue: 02.02.2022, expiry: 02.03.2022")
	for _, w := range warnings {
		assert.NotContains(t, w, "Visa 2")
	}
}

func TestValidatePayloadMRZ(t *testing.T) {
	line1 := "P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<"
	line2 := "L898902C36UTO7408122F1204159ZE184226B<<<<<10"

	warnings := ValidatePayload(payloadWith(
		models.Section{"passport_number": "L898902C3"},
		models.Section{"mrz_line1": line1, "mrz_line2": line2},
		nil,
	))
	for _, w := range warnings {
		assert.NotContains(t, w, "MRZ")
	}

	short := ValidatePayload(payloadWith(nil, models.Section{"mrz_line1": "P<UTO"}, nil))
	assert.Contains(t, short, "MRZ line 1 has 5 characters, expected 44")

	badDigit := "L898902C35" + line2[10:]
	mismatch := ValidatePayload(payloadWith(
		models.Section{"passport_number": "X0000000"},
		models.Section{"mrz_line2": badDigit},
		nil,
	))
	joined := strings.Join(mismatch, "\n")
	assert.Contains(t, joined, "check digit mismatch: got 5, expected 6")
	assert.Contains(t, joined, "differs from passport number X0000000")
}

func TestMRZCheckDigit(t *testing.T) {
	d, ok := mrzCheckDigit("L898902C3")
	assert.True(t, ok)
	assert.Equal(t, byte('6'), d)

	d, ok = mrzCheckDigit("740812")
	assert.True(t, ok)
	assert.Equal(t, byte('2'), d)

	_, ok = mrzCheckDigit("ab!")
	assert.False(t, ok)
}

func TestValidatePayloadShape(t *testing.T) {
	clean := ValidatePayload(payloadWith(models.Section{"full_name": "DOE"}, nil, nil))
	assert.Empty(t, clean)

	nested := payloadWith(models.Section{"full_name": map[string]any{"en": "DOE"}}, nil, nil)
	warnings := ValidatePayload(nested)
	assert.NotEmpty(t, warnings)
	assert.True(t, strings.HasPrefix(warnings[len(warnings)-1], "Payload shape:"))
}

func TestValidatePayloadDoesNotMutate(t *testing.T) {
	p := payloadWith(models.Section{"gender": "K/M"}, nil, nil)
	ValidatePayload(p)
	assert.Equal(t, "K/M", p.BiographicalPage["gender"])
}
