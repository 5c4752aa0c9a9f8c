package models

// Canonical placeholder names a template may reference.
const (
	FieldDocumentNumber = "documentNumber"
	FieldSurname        = "surname"
	FieldGivenNames     = "givenNames"
	FieldPatronymic     = "patronymic"
	FieldBirthDate      = "birthDate"
	FieldSex            = "sex"
	FieldPlaceOfBirth   = "placeOfBirth"
	FieldIssueDate      = "issueDate"
	FieldExpiryDate     = "expiryDate"
	FieldAuthority      = "authority"
	FieldMRZLine1       = "mrzLine1"
	FieldMRZLine2       = "mrzLine2"
)

// CanonicalFieldNames lists every placeholder name in display order.
var CanonicalFieldNames = []string{
	FieldDocumentNumber,
	FieldSurname,
	FieldGivenNames,
	FieldPatronymic,
	FieldBirthDate,
	FieldSex,
	FieldPlaceOfBirth,
	FieldIssueDate,
	FieldExpiryDate,
	FieldAuthority,
	FieldMRZLine1,
	FieldMRZLine2,
}

// IsCanonicalField reports whether name is a known placeholder.
func IsCanonicalField(name string) bool {
	for _, f := range CanonicalFieldNames {
		if f == name {
			return true
		}
	}
	return false
}

// CanonicalFields is the template-facing view of a payload, keyed by placeholder name.
type CanonicalFields map[string]string

// TemplateDescriptor describes a registered template.
type TemplateDescriptor struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Country      string   `json:"country" yaml:"country"`
	Placeholders []string `json:"placeholders" yaml:"-"`
}

// FilledTemplate is the result of a template fill request.
type FilledTemplate struct {
	TemplateID    string `json:"template_id"`
	Filename      string `json:"filename"`
	ContentType   string `json:"content_type"`
	ContentBase64 string `json:"content_base64"`
}
