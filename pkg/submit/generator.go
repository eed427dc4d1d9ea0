package submit

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"text/template"

	"github.com/doclift/doclift/pkg/batch"
	"github.com/doclift/doclift/pkg/manifest"
)

// Generator produces the prompt content for one queued item.
//
// The free-form prompt text itself is deliberately swappable: the
// coordinator only cares that each item yields one request body.
type Generator interface {
	Generate(ctx context.Context, item batch.JobItem, source string) (string, error)
}

// promptInput is the data available to prompt templates.
type promptInput struct {
	Path       string
	Source     string
	EntryPoint bool
}

// Built-in templates per generation mode. Operators override them with
// generate.template_path in the manifest.
var builtinTemplates = map[string]string{
	manifest.ModeDocs: `Add documentation comments to every exported symbol in the following file.
Return the complete updated file and nothing else.

File: {{.Path}}

{{.Source}}`,
	manifest.ModeTests: `Write a unit test file covering the public behavior of the following file.
Return the complete test file and nothing else.

File: {{.Path}}

{{.Source}}`,
}

// TemplateGenerator renders a text/template per item.
type TemplateGenerator struct {
	tmpl *template.Template
}

var _ Generator = (*TemplateGenerator)(nil)

// NewTemplateGenerator builds a generator for the given mode, optionally
// loading a custom template file.
func NewTemplateGenerator(mode, templatePath string) (*TemplateGenerator, error) {
	text, ok := builtinTemplates[mode]
	if !ok {
		return nil, fmt.Errorf("unknown generation mode: %q", mode)
	}
	if templatePath != "" {
		b, err := os.ReadFile(templatePath)
		if err != nil {
			return nil, fmt.Errorf("read prompt template: %w", err)
		}
		text = string(b)
	}
	tmpl, err := template.New("prompt").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &TemplateGenerator{tmpl: tmpl}, nil
}

func (g *TemplateGenerator) Generate(ctx context.Context, item batch.JobItem, source string) (string, error) {
	var buf bytes.Buffer
	err := g.tmpl.Execute(&buf, promptInput{
		Path:       item.FilePath,
		Source:     source,
		EntryPoint: item.EntryPoint,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt for %s: %w", item.FilePath, err)
	}
	return buf.String(), nil
}
