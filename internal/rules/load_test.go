package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biglexj/prisma-vtuber/internal/config"
)

const yamlRules = `
saludo:
  phrasings: [hola, buenas]
  responses: ["¡Hola!"]
nombre:
  pregunta: ["cual es tu nombre", "como te llamas"]
  respuesta: "Me llamo Ely"
edad:
  pregunta: ["cuantos años tienes"]
  respuesta_2: "Dos"
  respuesta_10: "Diez"
  respuesta_1: "Uno"
roto:
  pregunta: ["algo"]
`

const jsonRules = `{
  "zeta": {"pregunta": ["ultima letra"], "respuesta": "zeta"},
  "alfa": {"pregunta": ["primera letra"], "respuesta_1": "alfa", "respuesta_2": "a"},
  "vacia": {"pregunta": [], "respuesta": "nada"}
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseYAML(t *testing.T) {
	set, err := Parse([]byte(yamlRules), FormatYAML)
	require.NoError(t, err)

	require.Equal(t, []string{"saludo", "nombre", "edad"}, set.Keys())
	assert.Equal(t, []string{"hola", "buenas"}, set[0].Phrasings)
	assert.Equal(t, []string{"Me llamo Ely"}, set[1].Responses)
	assert.Equal(t, []string{"Uno", "Dos", "Diez"}, set[2].Responses)
}

func TestNumberedResponsesReplacePlainOnes(t *testing.T) {
	const doc = `
mixto:
  pregunta: ["de donde eres"]
  respuesta: "ignorada"
  respuesta_2: "de Lima"
  respuesta_1: "de Perú"
simple:
  pregunta: ["que haces"]
  respuesta: "hablo con el chat"
`
	set, err := Parse([]byte(doc), FormatYAML)
	require.NoError(t, err)

	require.Equal(t, []string{"mixto", "simple"}, set.Keys())
	assert.Equal(t, []string{"de Perú", "de Lima"}, set[0].Responses)
	assert.Equal(t, []string{"hablo con el chat"}, set[1].Responses)
}

func TestParseJSONKeepsOrder(t *testing.T) {
	set, err := Parse([]byte(jsonRules), FormatJSON)
	require.NoError(t, err)

	require.Equal(t, []string{"zeta", "alfa"}, set.Keys())
	assert.Equal(t, []string{"alfa", "a"}, set[1].Responses)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"yaml sequence", "- a\n- b\n", FormatYAML},
		{"yaml syntax", "a: [b\n", FormatYAML},
		{"json array", `["a"]`, FormatJSON},
		{"json truncated", `{"a": {"pregunta": ["x"]`, FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			assert.Error(t, err)
		})
	}
}

func TestParseEmptyDocument(t *testing.T) {
	set, err := Parse(nil, FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestLoad(t *testing.T) {
	set, err := Load(writeFile(t, "rules.json", jsonRules))
	require.NoError(t, err)
	assert.Len(t, set, 2)

	set, err = Load(writeFile(t, "rules.yml", yamlRules))
	require.NoError(t, err)
	assert.Len(t, set, 3)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)

	var ce *config.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "rules", ce.What)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadOrEmptyDegrades(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.json") }},
		{"malformed", func(t *testing.T) string { return writeFile(t, "bad.json", "{not json") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := LoadOrEmpty(tt.path(t))
			require.NotNil(t, set)
			assert.Empty(t, set)

			_, ok := NewMatcher(set).Match("hola")
			assert.False(t, ok)
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFromPath("rules.JSON"))
	assert.Equal(t, FormatYAML, FormatFromPath("rules.yml"))
	assert.Equal(t, FormatYAML, FormatFromPath("rules"))
}

func TestFilter(t *testing.T) {
	set, err := Parse([]byte(yamlRules), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, set, Filter(set, ""))
	assert.Equal(t, []string{"nombre"}, Filter(set, "nom").Keys())
	assert.Empty(t, Filter(set, "zzz"))
}

func TestSuggest(t *testing.T) {
	set, err := Parse([]byte(yamlRules), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, []string{"nombre"}, Suggest(set, "Te llamas?", 3))
	assert.Empty(t, Suggest(set, "zzz", 3))
	assert.Nil(t, Suggest(set, "llamas", 0))
}
