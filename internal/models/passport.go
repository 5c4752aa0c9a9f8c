package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Section names used by the extraction model and the stored payload.
const (
	SectionBiographical = "biographical_page"
	SectionMRZ          = "mrz"
	SectionVisas        = "visas"
	SectionStamps       = "stamps"
	SectionPages        = "pages"
)

// Section is a flat mapping of field name to a scalar display value.
type Section map[string]any

// String returns the field as display text, or "" when absent or null.
func (s Section) String(key string) string {
	v, ok := s[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// PageRef records that the uploaded document had a page with this number.
type PageRef struct {
	PageNumber int `json:"page_number"`
}

// Payload is the normalized extraction result stored with every record.
type Payload struct {
	BiographicalPage Section   `json:"biographical_page"`
	MRZ              Section   `json:"mrz"`
	Visas            []Section `json:"visas"`
	Stamps           []Section `json:"stamps"`
	Pages            []PageRef `json:"pages,omitempty"`
}

// EnsureDefaults replaces absent sections with empty ones so nothing serializes as null.
func (p *Payload) EnsureDefaults() {
	if p.BiographicalPage == nil {
		p.BiographicalPage = Section{}
	}
	if p.MRZ == nil {
		p.MRZ = Section{}
	}
	if p.Visas == nil {
		p.Visas = []Section{}
	}
	if p.Stamps == nil {
		p.Stamps = []Section{}
	}
}

// FullName is the denormalized name summary kept on the record row.
func (p *Payload) FullName() string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.BiographicalPage.String("full_name"))
}

// PassportNumber is the denormalized document number kept on the record row.
func (p *Payload) PassportNumber() string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.BiographicalPage.String("passport_number"))
}

// Clone returns a deep copy made through a JSON round trip.
func (p *Payload) Clone() (*Payload, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out Payload
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	out.EnsureDefaults()
	return &out, nil
}

// Value implements driver.Valuer for database storage
func (p Payload) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner for database retrieval
func (p *Payload) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("failed to scan Payload")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(p); err != nil {
		return err
	}
	p.EnsureDefaults()
	return nil
}

// PassportRecord represents a processed passport in database
type PassportRecord struct {
	ID             int64     `db:"id" json:"id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
	Filename       string    `db:"filename" json:"filename"`
	FullName       *string   `db:"full_name" json:"full_name"`
	PassportNumber *string   `db:"passport_number" json:"passport_number"`
	FileHash       string    `db:"file_hash" json:"-"`
	Data           *Payload  `db:"data" json:"-"`
}

// PassportSummary is the list view of a record.
type PassportSummary struct {
	ID             int64     `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Filename       string    `json:"filename"`
	FullName       *string   `json:"full_name"`
	PassportNumber *string   `json:"passport_number"`
}

// Summary builds the list view of the record.
func (r *PassportRecord) Summary() PassportSummary {
	return PassportSummary{
		ID:             r.ID,
		CreatedAt:      r.CreatedAt,
		Filename:       r.Filename,
		FullName:       r.FullName,
		PassportNumber: r.PassportNumber,
	}
}

// PassportPage is one page of records, newest first.
type PassportPage struct {
	Items []*PassportRecord
	Total int
	Page  int
	Limit int
	Pages int
}

// NullableString turns "" into nil for optional columns.
func NullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
