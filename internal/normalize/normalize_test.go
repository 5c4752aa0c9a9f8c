package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/passport_api/internal/models"
)

func TestValueFlattening(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"ordered mapping", object{{"en", "Smith"}, {"ru", "Смит"}}, "Smith / Смит"},
		{"mapping drops empty", object{{"en", "Smith"}, {"fr", ""}, {"ru", nil}}, "Smith"},
		{"sequence drops empty", []any{"A", "", "B"}, "A, B"},
		{"sequence trims", []any{" A ", "  ", "B"}, "A, B"},
		{"scalar unchanged", "X", "X"},
		{"scalar keeps whitespace", " X ", " X "},
		{"number unchanged", json.Number("7"), json.Number("7")},
		{"nil unchanged", nil, nil},
		{"numbers joined", []any{json.Number("1"), json.Number("2")}, "1, 2"},
		{"nested flattened", object{{"a", []any{"x", "y"}}, {"b", "z"}}, "x, y / z"},
		{"go map sorted", map[string]any{"ru": "Смит", "en": "Smith"}, "Smith / Смит"},
		{"empty mapping", object{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Value(tt.in))
		})
	}
}

func TestValueIdempotent(t *testing.T) {
	inputs := []any{
		object{{"en", "Smith"}, {"ru", "Смит"}},
		[]any{"A", "", object{{"k", "B"}}},
		"X",
		json.Number("3"),
		true,
		nil,
		map[string]any{"a": []any{"1", "2"}},
	}
	for _, in := range inputs {
		once := Value(in)
		assert.Equal(t, once, Value(once))
	}
}

func TestSection(t *testing.T) {
	got := Section(map[string]any{
		"field1": "value1",
		"field2": map[string]any{"a": "1", "b": "2"},
	})
	assert.Equal(t, "value1", got["field1"])
	assert.Equal(t, "1 / 2", got["field2"])

	assert.Equal(t, models.Section{}, Section("not a mapping"))
	assert.Equal(t, models.Section{}, Section(nil))
}

func TestListDropsNonMappings(t *testing.T) {
	got := List([]any{
		object{{"country", "ITALY"}},
		"garbage",
		json.Number("4"),
		object{{"country", object{{"en", "SPAIN"}, {"es", "ESPAÑA"}}}},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "ITALY", got[0]["country"])
	assert.Equal(t, "SPAIN / ESPAÑA", got[1]["country"])

	assert.Equal(t, []models.Section{}, List(nil))
	assert.Equal(t, []models.Section{}, List("nope"))
}

func TestDecode(t *testing.T) {
	raw := []byte(`{
		"biographical_page": {
			"full_name": {"en": "IVANOV IVAN", "ru": "ИВАНОВ ИВАН"},
			"passport_number": "AB123",
			"gender": "M"
		},
		"mrz": {"mrz_line1": "P<UZBIVANOV<<IVAN", "mrz_line2": ["A", "B"]},
		"visas": [{"country": "RUSSIA", "page_number": 4}, "noise"],
		"extra": {"ignored": true}
	}`)

	p, err := Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, "IVANOV IVAN / ИВАНОВ ИВАН", p.BiographicalPage["full_name"])
	assert.Equal(t, "AB123", p.PassportNumber())
	assert.Equal(t, "A, B", p.MRZ["mrz_line2"])
	require.Len(t, p.Visas, 1)
	assert.Equal(t, json.Number("4"), p.Visas[0]["page_number"])
	assert.NotNil(t, p.Stamps)
	assert.Empty(t, p.Stamps)
}

func TestDecodeDefaultsMissingSections(t *testing.T) {
	p, err := Decode([]byte(`{"biographical_page": {}}`))
	require.NoError(t, err)

	encoded, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"biographical_page":{},"mrz":{},"visas":[],"stamps":[]}`, string(encoded))
}

func TestDecodeKeepsPages(t *testing.T) {
	p, err := Decode([]byte(`{"pages": [{"page_number": 1}, {"page_number": 2}, "x"]}`))
	require.NoError(t, err)
	assert.Equal(t, []models.PageRef{{PageNumber: 1}, {PageNumber: 2}}, p.Pages)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`{"biographical_page": `))
	require.Error(t, err)

	_, err = Decode([]byte(`["not", "an", "object"]`))
	require.ErrorIs(t, err, ErrNotObject)
}

func TestPayloadIdempotent(t *testing.T) {
	p, err := Decode([]byte(`{
		"biographical_page": {"full_name": {"en": "DOE", "ru": "ДОУ"}},
		"stamps": [{"country": ["A", "B"], "date": "01.01.2020"}]
	}`))
	require.NoError(t, err)

	again := Payload(p)
	assert.Equal(t, p.BiographicalPage, again.BiographicalPage)
	assert.Equal(t, p.Stamps, again.Stamps)
	assert.Equal(t, p.MRZ, again.MRZ)
	assert.Equal(t, p.Visas, again.Visas)
}

func TestPayloadNil(t *testing.T) {
	p := Payload(nil)
	assert.NotNil(t, p.BiographicalPage)
	assert.NotNil(t, p.MRZ)
	assert.NotNil(t, p.Visas)
	assert.NotNil(t, p.Stamps)
}
