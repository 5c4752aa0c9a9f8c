package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/GTDGit/passport_api/internal/models"
)

// TD3 machine readable lines are 44 characters each.
const mrzTD3LineLength = 44

var flatValue = map[string]any{"type": []string{"string", "number", "boolean", "null"}}

var flatSection = map[string]any{
	"type":                 "object",
	"additionalProperties": flatValue,
}

var payloadSchema = map[string]any{
	"$schema":  "http://json-schema.org/draft-07/schema#",
	"type":     "object",
	"required": []string{models.SectionBiographical, models.SectionMRZ, models.SectionVisas, models.SectionStamps},
	"properties": map[string]any{
		models.SectionBiographical: flatSection,
		models.SectionMRZ:          flatSection,
		models.SectionVisas:        map[string]any{"type": "array", "items": flatSection},
		models.SectionStamps:       map[string]any{"type": "array", "items": flatSection},
	},
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadPayloadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(payloadSchema)
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("payload.json", bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("payload.json")
	})
	return compiledSchema, schemaErr
}

// ValidatePayload returns advisory warnings about likely OCR mistakes.
// It never modifies the payload.
func ValidatePayload(p *models.Payload) []string {
	if p == nil {
		return nil
	}
	warnings := []string{}

	gender := strings.TrimSpace(p.BiographicalPage.String("gender"))
	if len([]rune(gender)) > 1 && strings.Contains(gender, "/") {
		parts := strings.Split(gender, "/")
		clean := strings.TrimSpace(parts[len(parts)-1])
		switch clean {
		case "M", "F", "М", "Ж":
			warnings = append(warnings, fmt.Sprintf("Gender field contains extra characters: '%s' -> suggested: '%s'", gender, clean))
		}
	}

	for i, visa := range p.Visas {
		issue, expiry := visa.String("issue_date"), visa.String("expiry_date")
		if issue != "" && expiry != "" {
			warnings = append(warnings, fmt.Sprintf("Visa %d: verify dates - issue: %s, expiry: %s", i+1, issue, expiry))
		}
	}

	warnings = append(warnings, checkMRZ(p)...)

	if err := checkShape(p); err != nil {
		warnings = append(warnings, fmt.Sprintf("Payload shape: %v", err))
	}

	return warnings
}

func checkMRZ(p *models.Payload) []string {
	var warnings []string
	line1 := strings.TrimSpace(p.MRZ.String("mrz_line1"))
	line2 := strings.TrimSpace(p.MRZ.String("mrz_line2"))

	for i, line := range []string{line1, line2} {
		if line != "" && len(line) != mrzTD3LineLength {
			warnings = append(warnings, fmt.Sprintf("MRZ line %d has %d characters, expected %d", i+1, len(line), mrzTD3LineLength))
		}
	}

	if len(line2) == mrzTD3LineLength {
		number := line2[0:9]
		if want, ok := mrzCheckDigit(number); ok && line2[9] != want {
			warnings = append(warnings, fmt.Sprintf("MRZ document number check digit mismatch: got %c, expected %c", line2[9], want))
		}
		printed := strings.ReplaceAll(p.PassportNumber(), " ", "")
		if printed != "" && strings.TrimRight(number, "<") != printed {
			warnings = append(warnings, fmt.Sprintf("MRZ document number %s differs from passport number %s", strings.TrimRight(number, "<"), printed))
		}
	}
	return warnings
}

// mrzCheckDigit computes the ICAO 9303 check digit (weights 7, 3, 1).
func mrzCheckDigit(field string) (byte, bool) {
	weights := [3]int{7, 3, 1}
	sum := 0
	for i := 0; i < len(field); i++ {
		c := field[i]
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c >= 'A' && c <= 'Z':
			v = int(c-'A') + 10
		case c == '<':
			v = 0
		default:
			return 0, false
		}
		sum += v * weights[i%3]
	}
	return byte('0' + sum%10), true
}

func checkShape(p *models.Payload) error {
	schema, err := loadPayloadSchema()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return schema.Validate(v)
}
