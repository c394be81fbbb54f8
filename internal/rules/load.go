package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/biglexj/prisma-vtuber/internal/config"
)

// Format is the encoding of a rules document.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// entry is one top-level key of a rules document before validation.
type entry struct {
	key    string
	fields map[string]any
}

// Load reads a rules file. Any failure is returned as a
// *config.ConfigurationError.
func Load(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &config.ConfigurationError{What: "rules", Path: path, Err: err}
	}

	set, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, &config.ConfigurationError{What: "rules", Path: path, Err: err}
	}
	return set, nil
}

// LoadOrEmpty reads a rules file and degrades to an empty RuleSet when it is
// missing or malformed. Every message then goes to the language model.
func LoadOrEmpty(path string) RuleSet {
	set, err := Load(path)
	if err != nil {
		log.Warn("Could not load rules, continuing without canned responses", "err", err)
		return RuleSet{}
	}
	log.Debug("Loaded rules", "path", path, "count", len(set))
	return set
}

// Parse decodes a rules document, keeping declaration order. Each top-level
// key names a rule:
//
//	nombre:
//	  phrasings: ["cual es tu nombre", "como te llamas"]
//	  responses: ["Me llamo Ely"]
//
// The Spanish keys pregunta, respuesta and respuesta_1, respuesta_2, ... are
// accepted as well. Rules without phrasings or responses are skipped.
func Parse(data []byte, format Format) (RuleSet, error) {
	var (
		entries []entry
		err     error
	)
	switch format {
	case FormatJSON:
		entries, err = parseJSON(data)
	default:
		entries, err = parseYAML(data)
	}
	if err != nil {
		return nil, err
	}

	set := make(RuleSet, 0, len(entries))
	for _, e := range entries {
		rule := Rule{
			Key:       e.key,
			Phrasings: nonEmpty(phrasingsOf(e.fields)),
			Responses: nonEmpty(responsesOf(e.fields)),
		}
		if err := rule.Validate(); err != nil {
			log.Warn("Skipping rule", "key", e.key, "err", err)
			continue
		}
		set = append(set, rule)
	}
	return set, nil
}

func parseYAML(data []byte) ([]entry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("rules document must be a mapping of rule names")
	}

	entries := make([]entry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		var fields map[string]any
		if err := root.Content[i+1].Decode(&fields); err != nil {
			return nil, fmt.Errorf("rule %q: %w", key, err)
		}
		entries = append(entries, entry{key: key, fields: fields})
	}
	return entries, nil
}

func parseJSON(data []byte) ([]entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("rules document must be a JSON object")
	}

	var entries []entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("invalid json: %w", err)
		}
		key, _ := tok.(string)

		var fields map[string]any
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("rule %q: %w", key, err)
		}
		entries = append(entries, entry{key: key, fields: fields})
	}
	return entries, nil
}

func phrasingsOf(fields map[string]any) []string {
	var out []string
	for _, k := range []string{"phrasings", "pregunta", "preguntas"} {
		out = append(out, stringsOf(fields[k])...)
	}
	return out
}

// responsesOf reads the answers of one rule. Numbered respuesta_N keys,
// when present, replace the plain ones.
func responsesOf(fields map[string]any) []string {
	type numbered struct {
		n    int
		text []string
	}
	var keyed []numbered
	for k, v := range fields {
		suffix, ok := strings.CutPrefix(k, "respuesta_")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		keyed = append(keyed, numbered{n: n, text: stringsOf(v)})
	}

	var out []string
	if len(keyed) > 0 {
		sort.Slice(keyed, func(i, j int) bool { return keyed[i].n < keyed[j].n })
		for _, e := range keyed {
			out = append(out, e.text...)
		}
		return out
	}

	for _, k := range []string{"responses", "respuesta", "respuestas"} {
		out = append(out, stringsOf(fields[k])...)
	}
	return out
}

func stringsOf(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	default:
		return nil
	}
}
