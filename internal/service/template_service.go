package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/GTDGit/passport_api/internal/metrics"
	"github.com/GTDGit/passport_api/internal/models"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// FieldTranslator translates canonical field values.
type FieldTranslator interface {
	TranslateFields(ctx context.Context, fields models.CanonicalFields) (models.CanonicalFields, error)
}

type templateManifest struct {
	Templates []struct {
		ID      string `yaml:"id"`
		Name    string `yaml:"name"`
		Country string `yaml:"country"`
		File    string `yaml:"file"`
	} `yaml:"templates"`
}

type registeredTemplate struct {
	descriptor models.TemplateDescriptor
	content    string
}

// TemplateRegistry is the read-only set of templates loaded at startup.
type TemplateRegistry struct {
	order     []string
	templates map[string]registeredTemplate
}

// LoadTemplateRegistry reads the YAML manifest and every template file it names.
// Template paths are relative to the manifest directory.
func LoadTemplateRegistry(manifestPath string) (*TemplateRegistry, error) {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read template manifest: %w", err)
	}
	var manifest templateManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("parse template manifest: %w", err)
	}

	dir := filepath.Dir(manifestPath)
	reg := &TemplateRegistry{templates: make(map[string]registeredTemplate, len(manifest.Templates))}
	for _, entry := range manifest.Templates {
		if entry.ID == "" || entry.File == "" {
			return nil, fmt.Errorf("template manifest entry needs id and file: %+v", entry)
		}
		if _, dup := reg.templates[entry.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %q", entry.ID)
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.File))
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", entry.ID, err)
		}
		reg.add(models.TemplateDescriptor{ID: entry.ID, Name: entry.Name, Country: entry.Country}, string(content))
	}

	log.Info().Int("templates", len(reg.order)).Str("manifest", manifestPath).Msg("Template registry loaded")
	return reg, nil
}

// TemplateSource is one template held in memory.
type TemplateSource struct {
	Descriptor models.TemplateDescriptor
	Content    string
}

// NewTemplateRegistry builds a registry from in-memory templates, keeping their order.
func NewTemplateRegistry(sources ...TemplateSource) *TemplateRegistry {
	reg := &TemplateRegistry{templates: make(map[string]registeredTemplate, len(sources))}
	for _, src := range sources {
		reg.add(src.Descriptor, src.Content)
	}
	return reg
}

func (r *TemplateRegistry) add(desc models.TemplateDescriptor, content string) {
	desc.Placeholders = ScanPlaceholders(content)
	var unknown []string
	for _, p := range desc.Placeholders {
		if !models.IsCanonicalField(p) {
			unknown = append(unknown, p)
		}
	}
	if len(unknown) > 0 {
		log.Warn().Str("template_id", desc.ID).Strs("placeholders", unknown).Msg("Template contains unknown placeholders")
	}
	r.order = append(r.order, desc.ID)
	r.templates[desc.ID] = registeredTemplate{descriptor: desc, content: content}
}

// List returns the descriptors in registration order.
func (r *TemplateRegistry) List() []models.TemplateDescriptor {
	out := make([]models.TemplateDescriptor, 0, len(r.order))
	for _, id := range r.order {
		d := r.templates[id].descriptor
		d.Placeholders = append([]string(nil), d.Placeholders...)
		out = append(out, d)
	}
	return out
}

// Get returns the descriptor for id.
func (r *TemplateRegistry) Get(id string) (models.TemplateDescriptor, bool) {
	t, ok := r.templates[id]
	return t.descriptor, ok
}

// ScanPlaceholders returns the sorted, unique {name} tokens in content.
func ScanPlaceholders(content string) []string {
	seen := map[string]struct{}{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		seen[m[1]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CanonicalFieldsFrom maps a normalized payload onto the template field set.
// When neither surname nor given names are present the full name is split on
// whitespace: first token surname, remaining tokens given names.
func CanonicalFieldsFrom(p *models.Payload) models.CanonicalFields {
	if p == nil {
		p = &models.Payload{}
	}
	bio, mrz := p.BiographicalPage, p.MRZ

	surname := bio.String("surname")
	givenNames := bio.String("given_names")
	if surname == "" && givenNames == "" {
		fullName := strings.ReplaceAll(bio.String("full_name"), " / ", " ")
		if parts := strings.Fields(fullName); len(parts) > 0 {
			surname = parts[0]
			givenNames = strings.Join(parts[1:], " ")
		}
	}

	return models.CanonicalFields{
		models.FieldDocumentNumber: bio.String("passport_number"),
		models.FieldSurname:        surname,
		models.FieldGivenNames:     givenNames,
		models.FieldPatronymic:     bio.String("patronymic"),
		models.FieldBirthDate:      bio.String("date_of_birth"),
		models.FieldSex:            bio.String("gender"),
		models.FieldPlaceOfBirth:   bio.String("place_of_birth"),
		models.FieldIssueDate:      bio.String("issue_date"),
		models.FieldExpiryDate:     bio.String("expiry_date"),
		models.FieldAuthority:      bio.String("issuing_authority"),
		models.FieldMRZLine1:       mrz.String("mrz_line1"),
		models.FieldMRZLine2:       mrz.String("mrz_line2"),
	}
}

// TemplateService renders registered templates. It never touches stored state.
type TemplateService struct {
	registry   *TemplateRegistry
	translator FieldTranslator
	metrics    *metrics.Metrics
}

// NewTemplateService creates a new TemplateService. translator may be nil.
func NewTemplateService(registry *TemplateRegistry, translator FieldTranslator, m *metrics.Metrics) *TemplateService {
	return &TemplateService{registry: registry, translator: translator, metrics: m}
}

// ListTemplates returns all registered templates.
func (s *TemplateService) ListTemplates() []models.TemplateDescriptor {
	return s.registry.List()
}

// Render substitutes every placeholder of the template with the escaped field value.
// Unknown placeholders become empty strings. Translation failures fall back to the source values.
func (s *TemplateService) Render(ctx context.Context, templateID string, p *models.Payload, translate bool) (string, error) {
	tpl, ok := s.registry.templates[templateID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, templateID)
	}

	fields := CanonicalFieldsFrom(p)
	if translate && s.translator != nil {
		translated, err := s.translator.TranslateFields(ctx, fields)
		if err != nil {
			log.Warn().Err(err).Str("template_id", templateID).Msg("Field translation failed, using original values")
		} else {
			fields = translated
		}
	}

	return placeholderPattern.ReplaceAllStringFunc(tpl.content, func(token string) string {
		name := token[1 : len(token)-1]
		return html.EscapeString(fields[name])
	}), nil
}

// Fill renders the template and wraps the result for download.
func (s *TemplateService) Fill(ctx context.Context, templateID string, p *models.Payload, translate bool) (*models.FilledTemplate, error) {
	text, err := s.Render(ctx, templateID, p, translate)
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementTemplateFill(templateID)
	return &models.FilledTemplate{
		TemplateID:    templateID,
		Filename:      strings.ToLower(templateID) + "_filled.xml",
		ContentType:   "application/xml",
		ContentBase64: base64.StdEncoding.EncodeToString([]byte(text)),
	}, nil
}
