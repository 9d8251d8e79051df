// Package templates is the library of starter form configurations. Built-in
// templates are embedded; a directory of .json, .yaml or .yml files can add
// to them or override one by name.
package templates

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"onboarding-forms/internal/formschema"
	"onboarding-forms/internal/importer"
	"onboarding-forms/internal/patch"
)

//go:embed builtin/*.yaml
var builtin embed.FS

// ErrUnknownTemplate is returned by Apply for a name not in the library.
var ErrUnknownTemplate = errors.New("unknown template")

// Template is a named starter document.
type Template struct {
	Name        string                        `json:"name"`
	Description string                        `json:"description,omitempty"`
	Source      string                        `json:"source"`
	Document    *formschema.FormConfiguration `json:"-"`
}

// Library holds templates by name.
type Library struct {
	byName map[string]Template
}

// envelope is the optional wrapper. A file without a "document" key is the
// document itself.
type envelope struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Document    any    `yaml:"document"`
}

// Load reads the built-in templates and then dir, if set. A template with
// blocking structural errors fails the load.
func Load(dir string) (*Library, error) {
	lib := &Library{byName: make(map[string]Template)}

	entries, err := fs.ReadDir(builtin, "builtin")
	if err != nil {
		return nil, fmt.Errorf("reading built-in templates: %w", err)
	}
	for _, e := range entries {
		data, err := builtin.ReadFile(path.Join("builtin", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading built-in template %s: %w", e.Name(), err)
		}
		if err := lib.add(e.Name(), "builtin", data); err != nil {
			return nil, err
		}
	}

	if dir == "" {
		return lib, nil
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading templates directory: %w", err)
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(f.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		full := filepath.Join(dir, f.Name())
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", full, err)
		}
		if err := lib.add(f.Name(), full, data); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

func (l *Library) add(filename, source string, data []byte) error {
	// JSON is valid YAML, so one decoder covers every extension.
	var env envelope
	if err := yaml.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("parsing template %s: %w", filename, err)
	}

	body := data
	if env.Document != nil {
		raw, err := yaml.Marshal(env.Document)
		if err != nil {
			return fmt.Errorf("re-encoding template %s: %w", filename, err)
		}
		body = raw
	}
	doc, report, err := importer.Document(importer.FormatYAML, body)
	if err != nil {
		return fmt.Errorf("loading template %s: %w", filename, err)
	}
	if report.HasErrors() {
		return fmt.Errorf("loading template %s: %w", filename, report.Err())
	}

	name := env.Name
	if name == "" {
		name = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	l.byName[name] = Template{Name: name, Description: env.Description, Source: source, Document: doc}
	return nil
}

// List returns the templates sorted by name.
func (l *Library) List() []Template {
	out := make([]Template, 0, len(l.byName))
	for _, t := range l.byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns a template with its own copy of the document.
func (l *Library) Get(name string) (Template, bool) {
	t, ok := l.byName[name]
	if !ok {
		return Template{}, false
	}
	t.Document = t.Document.Clone()
	return t, true
}

// Apply replaces current with the named template's document. Loading a
// template is a whole-document replacement and never merges.
func (l *Library) Apply(current *formschema.FormConfiguration, name string) (*formschema.FormConfiguration, formschema.Report, error) {
	t, ok := l.Get(name)
	if !ok {
		return current, formschema.Report{}, fmt.Errorf("%w %q", ErrUnknownTemplate, name)
	}
	return patch.ReplaceWholeDocument(current, t.Document)
}
