package querydoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/feature"
)

// Format names a query document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// FormatOf infers the document format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported query document extension %q", filepath.Ext(path))
	}
}

// Document is a decoded query document.
type Document struct {
	Name     string
	Settings map[string]any
	Select   *ast.Select
}

// Metadata builds compile metadata for the document. Document settings are
// layered over the given base settings.
func (d *Document) Metadata(reg *feature.Registry, base map[string]any, logger *slog.Logger) *feature.Metadata {
	settings := make(map[string]any, len(base)+len(d.Settings))
	for k, v := range base {
		settings[k] = v
	}
	for k, v := range d.Settings {
		settings[k] = v
	}
	opts := []feature.MetadataOption{feature.WithSettings(settings)}
	if logger != nil {
		opts = append(opts, feature.WithLogger(logger.With("query", d.Name)))
	}
	return feature.NewMetadata(d.Select, reg, opts...)
}

// Load reads and decodes a query document from disk.
func Load(path string) (*Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read query document: %w", err)
	}
	doc, err := Parse(data, format, path)
	if err != nil {
		return nil, err
	}
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return doc, nil
}

// Parse decodes a query document. The filename is only used for positions
// in CUE errors.
func Parse(data []byte, format Format, filename string) (*Document, error) {
	raw, err := parseRaw(data, format, filename)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

func parseRaw(data []byte, format Format, filename string) (any, error) {
	switch format {
	case FormatYAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse YAML query document: %w", err)
		}
		return raw, nil

	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse JSON query document: %w", err)
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return nil, errors.New("parse JSON query document: trailing data after document")
		}
		return raw, nil

	case FormatCUE:
		ctx := cuecontext.New()
		v := ctx.CompileBytes(data, cue.Filename(filename))
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		if err := v.Validate(cue.Concrete(true)); err != nil {
			return nil, formatCUEError(err)
		}
		var raw any
		if err := v.Decode(&raw); err != nil {
			return nil, formatCUEError(err)
		}
		return raw, nil

	default:
		return nil, fmt.Errorf("unsupported query document format %q", format)
	}
}

// Decode converts a generic document tree, as produced by YAML, JSON or CUE
// decoders, into a Document.
func Decode(raw any) (*Document, error) {
	if raw == nil {
		return nil, errorf("", "empty query document")
	}
	top, err := object("", raw, "name", "settings", "select")
	if err != nil {
		return nil, err
	}

	doc := &Document{}
	if v, ok := top["name"]; ok {
		if doc.Name, err = text("name", v); err != nil {
			return nil, err
		}
	}
	if v, ok := top["settings"]; ok && v != nil {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, errorf("settings", "expected a map, got %s", kindOf(v))
		}
		doc.Settings = normalize(m).(map[string]any)
	}
	v, ok := top["select"]
	if !ok || v == nil {
		return nil, errorf("select", "required")
	}
	if doc.Select, err = decodeSelect("select", v); err != nil {
		return nil, err
	}
	return doc, nil
}
