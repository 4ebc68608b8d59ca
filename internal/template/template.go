package template

import (
	"fmt"
	"strings"
	"text/template"
)

// Context holds all variables available for prompt rendering.
type Context struct {
	Role         string
	Stage        string
	Focus        string
	Instructions string
	Dimensions   []string
	Schema       string
	Content      string

	// Debate rounds only.
	Round       int
	PriorRounds string

	// User-defined variables from the override file.
	Vars map[string]string
}

var funcs = template.FuncMap{
	"join": strings.Join,
	// bullets renders items as a markdown list, one per line.
	"bullets": func(items []string) string {
		var b strings.Builder
		for _, it := range items {
			b.WriteString("- ")
			b.WriteString(it)
			b.WriteByte('\n')
		}
		return strings.TrimSuffix(b.String(), "\n")
	},
}

// Prompt is a parsed prompt template. It is safe for concurrent use.
type Prompt struct {
	name   string
	source string
	tmpl   *template.Template // nil when source has no actions
}

// Compile parses source once so it can be executed for every role.
// Referencing a missing field or Vars key is an execution error.
func Compile(name, source string) (*Prompt, error) {
	p := &Prompt{name: name, source: source}
	if !strings.Contains(source, "{{") {
		return p, nil
	}
	t, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(source)
	if err != nil {
		return nil, fmt.Errorf("template: parse %s: %w", name, err)
	}
	p.tmpl = t
	return p, nil
}

// Source returns the template text.
func (p *Prompt) Source() string { return p.source }

// Execute renders the prompt for ctx.
func (p *Prompt) Execute(ctx *Context) (string, error) {
	if p.tmpl == nil {
		return p.source, nil
	}
	var b strings.Builder
	if err := p.tmpl.Execute(&b, ctx); err != nil {
		return "", fmt.Errorf("template: render %s: %w", p.name, err)
	}
	return b.String(), nil
}

// Render compiles and executes tmpl in one step.
func Render(tmpl string, ctx *Context) (string, error) {
	p, err := Compile("inline", tmpl)
	if err != nil {
		return "", err
	}
	return p.Execute(ctx)
}
