// Package prompts holds the prompt templates sent to the LLM. Defaults are
// embedded from prompts.yaml and can be overridden by a YAML file with the
// same shape.
package prompts

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"

	"go.yaml.in/yaml/v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Template is a system prompt plus a user message template.
type Template struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`

	user *template.Template
}

// Set is every prompt the researcher uses.
type Set struct {
	Situate Template `yaml:"situate"`
	Answer  Template `yaml:"answer"`
}

// SituateData fills the situate user template.
type SituateData struct {
	Document string
	Chunk    string
}

// Excerpt is one numbered retrieval result in the answer prompt.
type Excerpt struct {
	N          int
	Source     string
	Content    string
	Similarity float32
}

// AnswerData fills the answer user template.
type AnswerData struct {
	Question string
	Excerpts []Excerpt
}

var loadDefault = sync.OnceValues(func() (*Set, error) {
	return Parse(defaultPrompts, nil)
})

// Default returns the embedded prompts. The embedded file is validated by
// tests, so a parse failure is a build defect and panics.
func Default() *Set {
	set, err := loadDefault()
	if err != nil {
		panic(fmt.Sprintf("embedded prompts: %v", err))
	}
	return set
}

// Load reads prompt overrides from path on top of the defaults. Templates
// the file leaves empty keep their default text.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompts: %w", err)
	}
	return Parse(data, Default())
}

// Parse decodes a prompt set. Fields missing from data are taken from base
// when it is non-nil.
func Parse(data []byte, base *Set) (*Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decoding prompts: %w", err)
	}

	if base != nil {
		set.Situate.fill(base.Situate)
		set.Answer.fill(base.Answer)
	}

	for name, t := range map[string]*Template{"situate": &set.Situate, "answer": &set.Answer} {
		if err := t.compile(name); err != nil {
			return nil, err
		}
	}
	return &set, nil
}

func (t *Template) fill(base Template) {
	if strings.TrimSpace(t.System) == "" {
		t.System = base.System
	}
	if strings.TrimSpace(t.User) == "" {
		t.User = base.User
	}
}

func (t *Template) compile(name string) error {
	if t.User == "" {
		return fmt.Errorf("prompt %q has no user template", name)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(t.User)
	if err != nil {
		return fmt.Errorf("parsing %s template: %w", name, err)
	}
	t.user = tmpl
	return nil
}

// Render executes the user template with data.
func (t *Template) Render(data any) (string, error) {
	if t.user == nil {
		return "", errors.New("prompt template not compiled")
	}
	var b strings.Builder
	if err := t.user.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.user.Name(), err)
	}
	return strings.TrimSpace(b.String()), nil
}
