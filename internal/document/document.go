// Package document reads and writes rule documents.
//
// A document carries a rule set, the tape list it was exported with and
// optionally the initial tape content. It is read from JSON, YAML or CUE
// and written as indented JSON (or YAML) under a dated filename.
//
// Parsing never trusts records: each one is decoded field by field and a
// record with the wrong shape is dropped and counted. Semantic validation
// (states, write symbol, tape index) is left to machine.Import.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/turingloom/internal/machine"
)

// Version is the newest document version this package reads and the one it
// writes. Documents without a version are read as version 1.
const Version = 1

// Document is the exported form of a machine's rules.
type Document struct {
	Version        int            `json:"version"`
	InitialContent string         `json:"initialContent,omitempty"`
	Rules          []machine.Rule `json:"rules"`
	TapeTypes      []TapeType     `json:"tapeTypes"`
}

// TapeType describes one exported tape.
type TapeType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Export builds a document from a machine's rules and tapes.
func Export(rules []machine.Rule, tapes []machine.Tape, initialContent string) Document {
	doc := Document{
		Version:        Version,
		InitialContent: initialContent,
		Rules:          append([]machine.Rule{}, rules...),
		TapeTypes:      make([]TapeType, len(tapes)),
	}
	for i, t := range tapes {
		doc.TapeTypes[i] = TapeType{ID: t.ID, Name: t.Name, Type: machine.TapeType}
	}
	return doc
}

// ExportMachine exports the current rules, tapes and initial content of m.
func ExportMachine(m *machine.Machine) Document {
	snap := m.Snapshot()
	return Export(snap.Rules, snap.Tapes, snap.InitialContent)
}

// Filename returns the download name for a document exported at t,
// e.g. "turing-machine-rules-2024-03-09.json".
func Filename(t time.Time) string {
	return "turing-machine-rules-" + t.Format("2006-01-02") + ".json"
}

// Encode serializes doc in the given format. JSON output is indented with
// two spaces, does not escape HTML and ends with a newline.
func Encode(doc Document, format Format) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	switch format {
	case FormatJSON:
		return buf.Bytes(), nil
	case FormatYAML:
		// Go through JSON so field names match the JSON document.
		var tree any
		if err := json.Unmarshal(buf.Bytes(), &tree); err != nil {
			return nil, fmt.Errorf("encode document: %w", err)
		}
		out, err := yaml.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("encode document as yaml: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("encode document: unsupported format %q", format)
	}
}
