// Package normalize collapses nested extraction output into flat display strings.
//
// The extraction model sometimes returns multi-language value objects
// ({"en": "Smith", "ru": "Смит"}) or lists where a single string is expected.
// Every section value is reduced to a scalar so the stored payload stays flat.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/GTDGit/passport_api/internal/models"
)

const (
	mappingSeparator  = " / "
	sequenceSeparator = ", "
)

// ErrNotObject is returned when a payload document is valid JSON but not an object.
var ErrNotObject = errors.New("payload is not a JSON object")

type member struct {
	key   string
	value any
}

// object is a decoded JSON object that keeps the source key order.
type object []member

// Value flattens a mapping into its non-empty values joined by " / " and a
// sequence into its non-empty entries joined by ", ". Scalars are returned unchanged.
func Value(v any) any {
	switch t := v.(type) {
	case object:
		parts := make([]string, 0, len(t))
		for _, m := range t {
			parts = appendPart(parts, m.value)
		}
		return strings.Join(parts, mappingSeparator)
	case map[string]any:
		return joinMap(t)
	case models.Section:
		return joinMap(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = appendPart(parts, item)
		}
		return strings.Join(parts, sequenceSeparator)
	case []string:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = appendPart(parts, item)
		}
		return strings.Join(parts, sequenceSeparator)
	default:
		return v
	}
}

// Go maps have no order, so already-decoded mappings are joined in key order.
func joinMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = appendPart(parts, m[k])
	}
	return strings.Join(parts, mappingSeparator)
}

func appendPart(parts []string, v any) []string {
	if s := text(Value(v)); s != "" {
		parts = append(parts, s)
	}
	return parts
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Section returns a new section with every value flattened. Anything that is
// not a mapping yields an empty section.
func Section(v any) models.Section {
	out := models.Section{}
	switch t := v.(type) {
	case object:
		for _, m := range t {
			out[m.key] = Value(m.value)
		}
	case map[string]any:
		for k, val := range t {
			out[k] = Value(val)
		}
	case models.Section:
		for k, val := range t {
			out[k] = Value(val)
		}
	}
	return out
}

// List flattens each mapping entry of a sequence, dropping entries that are not
// mappings. Order is preserved and the result is never nil.
func List(v any) []models.Section {
	out := []models.Section{}
	switch t := v.(type) {
	case []any:
		for _, entry := range t {
			if isMapping(entry) {
				out = append(out, Section(entry))
			}
		}
	case []models.Section:
		for _, entry := range t {
			if entry != nil {
				out = append(out, Section(entry))
			}
		}
	case []map[string]any:
		for _, entry := range t {
			if entry != nil {
				out = append(out, Section(entry))
			}
		}
	}
	return out
}

func isMapping(v any) bool {
	switch t := v.(type) {
	case object:
		return true
	case map[string]any:
		return t != nil
	case models.Section:
		return t != nil
	default:
		return false
	}
}

// Payload normalizes an already-decoded payload. It is idempotent.
func Payload(p *models.Payload) *models.Payload {
	if p == nil {
		p = &models.Payload{}
	}
	out := &models.Payload{
		BiographicalPage: Section(p.BiographicalPage),
		MRZ:              Section(p.MRZ),
		Visas:            List(p.Visas),
		Stamps:           List(p.Stamps),
	}
	if len(p.Pages) > 0 {
		out.Pages = append([]models.PageRef(nil), p.Pages...)
	}
	return out
}

// Decode parses a raw payload document and normalizes its four sections.
// Key order of multi-valued fields follows the source text. Unknown top-level
// keys are ignored; a "pages" list is kept for page bookkeeping.
func Decode(raw []byte) (*models.Payload, error) {
	if !json.Valid(raw) {
		var probe any
		if err := json.Unmarshal(raw, &probe); err != nil {
			return nil, err
		}
		return nil, errors.New("invalid JSON")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	root, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err == nil {
		return nil, errors.New("unexpected data after JSON value")
	}

	obj, ok := root.(object)
	if !ok {
		return nil, ErrNotObject
	}

	p := &models.Payload{}
	for _, m := range obj {
		switch m.key {
		case models.SectionBiographical:
			p.BiographicalPage = Section(m.value)
		case models.SectionMRZ:
			p.MRZ = Section(m.value)
		case models.SectionVisas:
			p.Visas = List(m.value)
		case models.SectionStamps:
			p.Stamps = List(m.value)
		case models.SectionPages:
			p.Pages = pageRefs(m.value)
		}
	}
	p.EnsureDefaults()
	return p, nil
}

func pageRefs(v any) []models.PageRef {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var refs []models.PageRef
	for _, item := range items {
		obj, ok := item.(object)
		if !ok {
			continue
		}
		for _, m := range obj {
			if m.key != "page_number" {
				continue
			}
			if n, ok := m.value.(json.Number); ok {
				if i, err := n.Int64(); err == nil {
					refs = append(refs, models.PageRef{PageNumber: int(i)})
				}
			}
		}
	}
	return refs
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		obj := object{}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", keyTok)
			}
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj = append(obj, member{key: key, value: val})
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			val, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %v", delim)
	}
}
