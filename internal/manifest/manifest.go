// Package manifest reads and writes declaration manifests.
//
// A manifest is a decl.Document authored on disk either as YAML or as
// JSONC (JSON extended with comments and trailing commas). The format is
// chosen by file extension:
//
//	classes:
//	  - name: app.Repo
//	    params: [T]
//	    fields:
//	      - {name: items, type: "list[T]"}
//	  - name: app.UserRepo
//	    bases: ["app.Repo[app.User]"]
//	    provided: {scope: singleton}
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/funvibe/typebind/internal/config"
	"github.com/funvibe/typebind/internal/decl"
)

// Format is a manifest encoding.
type Format int

const (
	YAML Format = iota
	JSONC
)

func (f Format) String() string {
	if f == JSONC {
		return "jsonc"
	}
	return "yaml"
}

// FormatOf picks the format from a file extension. Unknown extensions are
// read as YAML.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return JSONC
	default:
		return YAML
	}
}

// Parse decodes manifest content. Unknown keys are rejected. The path
// argument is used for error messages only.
func Parse(data []byte, format Format, path string) (*decl.Document, error) {
	var doc decl.Document
	switch format {
	case JSONC:
		stripped := jsonc.ToJSON(data)
		if err := json.Unmarshal(stripped, &doc, json.RejectUnknownMembers(true)); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return &doc, nil
}

// Load reads a manifest file.
func Load(path string) (*decl.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	return Parse(data, FormatOf(path), path)
}

// LoadRegistry reads every manifest and builds one registry from their
// combined declarations, so a manifest may refer to classes declared in
// another.
func LoadRegistry(paths ...string) (*decl.Registry, error) {
	docs := make([]*decl.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := Load(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return decl.FromDocument(Combine(docs...), strings.Join(paths, ", "))
}

// Combine concatenates documents in order.
func Combine(docs ...*decl.Document) *decl.Document {
	out := &decl.Document{}
	for _, doc := range docs {
		out.Params = append(out.Params, doc.Params...)
		out.Classes = append(out.Classes, doc.Classes...)
	}
	return out
}

// Encode renders a document in the given format.
func Encode(doc *decl.Document, format Format) ([]byte, error) {
	switch format {
	case JSONC:
		data, err := json.Marshal(doc, jsontext.WithIndent("  "))
		if err != nil {
			return nil, fmt.Errorf("encoding manifest: %w", err)
		}
		return append(data, '\n'), nil
	default:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encoding manifest: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encoding manifest: %w", err)
		}
		return buf.Bytes(), nil
	}
}

// Write stores a document at path in the format its extension selects.
func Write(path string, doc *decl.Document) error {
	data, err := Encode(doc, FormatOf(path))
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

// Find searches for a manifest starting from dir and walking up to parent
// directories. Returns the path to the manifest, or empty string if not
// found.
func Find(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range config.ManifestFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
