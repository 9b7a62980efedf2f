package defs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/joeycumines/npc-planner/internal/catalog"
	"github.com/joeycumines/npc-planner/internal/facts"
	"github.com/joeycumines/npc-planner/internal/goals"
	"github.com/joeycumines/npc-planner/internal/worldstate"
)

// ErrUnknownFormat is returned for files that are neither YAML nor TOML.
var ErrUnknownFormat = errors.New("unknown document format")

// Format is a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Action is the document form of an action template.
type Action struct {
	ID            string          `yaml:"id" toml:"id"`
	Cost          float64         `yaml:"cost" toml:"cost"`
	Preconditions map[string]any  `yaml:"preconditions,omitempty" toml:"preconditions"`
	Effects       map[string]any  `yaml:"effects,omitempty" toml:"effects"`
	Target        *facts.Criteria `yaml:"target,omitempty" toml:"target"`
}

// Template converts a to a catalog template with normalised values.
func (a Action) Template() *catalog.Template {
	t := &catalog.Template{
		ID:            a.ID,
		Cost:          a.Cost,
		Preconditions: worldstate.FromMap(a.Preconditions),
		Effects:       worldstate.FromMap(a.Effects),
	}
	if a.Target != nil {
		c := *a.Target
		if c.States != nil {
			c.States = worldstate.FromMap(c.States)
		}
		t.Target = &c
	}
	return t
}

// Document is a definition file.
type Document struct {
	// Needs, when present, is the closed set of need names goals may link to.
	Needs   []string            `yaml:"needs,omitempty" toml:"needs"`
	Goals   []*goals.Definition `yaml:"goals" toml:"goals"`
	Actions []Action            `yaml:"actions" toml:"actions"`
}

// Registry builds the definition table described by d.
func (d *Document) Registry(logger *slog.Logger) *Registry {
	gs := make([]*goals.Definition, 0, len(d.Goals))
	for _, g := range d.Goals {
		if g == nil {
			continue
		}
		c := *g
		c.Preconditions = worldstate.FromMap(g.Preconditions)
		gs = append(gs, &c)
	}
	as := make([]*catalog.Template, 0, len(d.Actions))
	for _, a := range d.Actions {
		as = append(as, a.Template())
	}
	return NewRegistry(gs, as, d.Needs, logger)
}

// DecodeDocument parses a definition document.
func DecodeDocument(data []byte, format Format) (*Document, error) {
	var d Document
	if err := decode(data, format, &d); err != nil {
		return nil, fmt.Errorf("decode definitions: %w", err)
	}
	return &d, nil
}

// LoadDocument reads a definition document, picking the format from the
// file extension.
func LoadDocument(path string) (*Document, error) {
	data, format, err := read(path)
	if err != nil {
		return nil, err
	}
	d, err := DecodeDocument(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func read(path string) ([]byte, Format, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, format, nil
}

func decode(data []byte, format Format, v any) error {
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case FormatTOML:
		md, err := toml.Decode(string(data), v)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("unknown keys: %v", undecoded)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}
