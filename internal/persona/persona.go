// Package persona loads the character the agent plays and renders it into
// the system prompt given to the language model.
package persona

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/biglexj/prisma-vtuber/internal/config"
)

// GenericPrompt is used when no personality is available.
const GenericPrompt = "Eres un asistente útil."

// DefaultName is used when the personality record has no name.
const DefaultName = "Ely"

// Personality is a flat string-keyed record. The known keys are nombre,
// personalidad, tono_de_voz and mision; any other key is kept and ignored.
type Personality map[string]string

// Name returns the character's name.
func (p Personality) Name() string {
	if n := strings.TrimSpace(p["nombre"]); n != "" {
		return n
	}
	return DefaultName
}

// Empty reports whether the record has no usable field.
func (p Personality) Empty() bool {
	for _, v := range p {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// SystemPrompt renders the instruction for the language model. An empty
// record yields GenericPrompt.
func (p Personality) SystemPrompt() string {
	if p.Empty() {
		return GenericPrompt
	}

	var sb strings.Builder
	sb.WriteString("Actúa como un VTuber con la siguiente personalidad:\n")
	fmt.Fprintf(&sb, "- Nombre: %s\n", p.Name())
	fmt.Fprintf(&sb, "- Personalidad: %s\n", p["personalidad"])
	fmt.Fprintf(&sb, "- Tono de voz: %s\n", p["tono_de_voz"])
	fmt.Fprintf(&sb, "- Misión: %s\n", p["mision"])
	sb.WriteString("Responde a los mensajes del chat de forma concisa, amigable y enérgica, manteniendo siempre tu personaje.")
	return sb.String()
}

// Markdown renders the record for display.
func (p Personality) Markdown() string {
	if p.Empty() {
		return "# Sin personalidad\n\nSe usa el prompt genérico: _" + GenericPrompt + "_\n"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", p.Name())
	for _, f := range []struct{ key, title string }{
		{"personalidad", "Personalidad"},
		{"tono_de_voz", "Tono de voz"},
		{"mision", "Misión"},
	} {
		if v := strings.TrimSpace(p[f.key]); v != "" {
			fmt.Fprintf(&sb, "## %s\n\n%s\n\n", f.title, v)
		}
	}
	return sb.String()
}

// Parse decodes a YAML or JSON personality document. Non-string scalar
// values are kept in their text form; nested values are rejected.
func Parse(data []byte) (Personality, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	p := make(Personality, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case nil:
		case map[string]any, []any:
			return nil, fmt.Errorf("field %q must be a string", k)
		default:
			p[k] = fmt.Sprint(v)
		}
	}
	return p, nil
}

// Load reads a personality file. Failures are *config.ConfigurationError.
func Load(path string) (Personality, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &config.ConfigurationError{What: "personality", Path: path, Err: err}
	}
	p, err := Parse(data)
	if err != nil {
		return nil, &config.ConfigurationError{What: "personality", Path: path, Err: err}
	}
	return p, nil
}

// LoadOrDefault reads a personality file and degrades to an empty record,
// and so to GenericPrompt, when it is missing or malformed.
func LoadOrDefault(path string) Personality {
	p, err := Load(path)
	if err != nil {
		log.Warn("Could not load personality, using the generic prompt", "err", err)
		return Personality{}
	}
	if p.Empty() {
		log.Warn("Personality is empty, using the generic prompt", "path", path)
	} else {
		log.Debug("Loaded personality", "path", path, "name", p.Name())
	}
	return p
}
