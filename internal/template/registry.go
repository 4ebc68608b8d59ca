package template

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
	"github.com/ErikCohenDev/consensus-council-sub001/schemas"
)

//go:embed builtin
var builtin embed.FS

// Provider supplies the roles and prompts for a stage audit.
type Provider interface {
	// RequiredRoles returns the roles to schedule for stage, in order.
	RequiredRoles(stage models.DocumentStage) ([]models.AuditorRole, error)
	BuildPrompt(role models.AuditorRole, stage models.DocumentStage, content string) (string, error)
	// TemplateHash identifies everything besides the document that shapes the
	// prompts for stage. It changes whenever those inputs change.
	TemplateHash(stage models.DocumentStage) string
}

// ErrUnknownStage is returned for a stage with no definition.
var ErrUnknownStage = errors.New("no template for stage")

// StageDefinition is one stage entry in stages.yaml or an override file.
type StageDefinition struct {
	Roles []string `yaml:"roles"`
	Focus string   `yaml:"focus"`
}

// File is the on-disk template override format. Every field is optional and
// replaces the built-in value it names.
type File struct {
	Stages        map[string]StageDefinition `yaml:"stages"`
	Instructions  map[string]string          `yaml:"instructions"`
	Vars          map[string]string          `yaml:"vars"`
	AuditTemplate string                     `yaml:"auditTemplate"`
}

type stageEntry struct {
	roles []models.AuditorRole
	focus string
}

// Registry is the built-in Provider, optionally overlaid with a File.
type Registry struct {
	stages       map[models.DocumentStage]stageEntry
	instructions map[models.AuditorRole]string
	vars         map[string]string
	audit        *Prompt
	initial      *Prompt
	peer         *Prompt
}

// NewRegistry returns the built-in templates.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		stages:       map[models.DocumentStage]stageEntry{},
		instructions: map[models.AuditorRole]string{},
		vars:         map[string]string{},
	}
	for name, dst := range map[string]**Prompt{
		"builtin/audit.tmpl":          &r.audit,
		"builtin/debate_initial.tmpl": &r.initial,
		"builtin/debate_peer.tmpl":    &r.peer,
	} {
		data, err := builtin.ReadFile(name)
		if err != nil {
			return nil, err
		}
		if *dst, err = Compile(name, string(data)); err != nil {
			return nil, err
		}
	}

	roles, err := builtin.ReadFile("builtin/roles.md")
	if err != nil {
		return nil, err
	}
	for name, body := range ParseRoleSections(roles) {
		role, err := models.ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("builtin/roles.md: %w", err)
		}
		r.instructions[role] = body
	}

	stages, err := builtin.ReadFile("builtin/stages.yaml")
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(stages, &f); err != nil {
		return nil, fmt.Errorf("builtin/stages.yaml: %w", err)
	}
	if err := r.apply(&f); err != nil {
		return nil, fmt.Errorf("builtin/stages.yaml: %w", err)
	}
	return r, nil
}

// LoadRegistry returns the built-in templates overlaid with the YAML file at
// path. An empty path means no override.
func LoadRegistry(path string) (*Registry, error) {
	r, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template override: %w", err)
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing template override %s: %w", path, err)
	}
	if err := r.apply(&f); err != nil {
		return nil, fmt.Errorf("template override %s: %w", path, err)
	}
	return r, nil
}

func (r *Registry) apply(f *File) error {
	for name, def := range f.Stages {
		stage, err := models.ParseStage(name)
		if err != nil {
			return err
		}
		entry := r.stages[stage]
		if def.Roles != nil {
			if len(def.Roles) == 0 {
				return fmt.Errorf("stage %s: roles must not be empty", stage)
			}
			entry.roles = entry.roles[:0:0]
			for _, s := range def.Roles {
				role, err := models.ParseRole(s)
				if err != nil {
					return fmt.Errorf("stage %s: %w", stage, err)
				}
				if slices.Contains(entry.roles, role) {
					return fmt.Errorf("stage %s: duplicate role %s", stage, role)
				}
				entry.roles = append(entry.roles, role)
			}
		}
		if def.Focus != "" {
			entry.focus = def.Focus
		}
		r.stages[stage] = entry
	}
	for name, text := range f.Instructions {
		role, err := models.ParseRole(name)
		if err != nil {
			return err
		}
		r.instructions[role] = strings.TrimSpace(text)
	}
	for k, v := range f.Vars {
		r.vars[k] = v
	}
	if f.AuditTemplate != "" {
		p, err := Compile("auditTemplate", f.AuditTemplate)
		if err != nil {
			return err
		}
		if _, err := p.Execute(r.context(models.RolePM, models.StagePRD, "")); err != nil {
			return err
		}
		r.audit = p
	}
	return nil
}

func (r *Registry) RequiredRoles(stage models.DocumentStage) ([]models.AuditorRole, error) {
	entry, ok := r.stages[stage]
	if !ok || len(entry.roles) == 0 {
		return nil, fmt.Errorf("%w %q", ErrUnknownStage, stage)
	}
	return slices.Clone(entry.roles), nil
}

func (r *Registry) BuildPrompt(role models.AuditorRole, stage models.DocumentStage, content string) (string, error) {
	if _, ok := r.stages[stage]; !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownStage, stage)
	}
	return r.audit.Execute(r.context(role, stage, content))
}

// InitialReviewPrompt renders the opening debate prompt for role.
func (r *Registry) InitialReviewPrompt(role models.AuditorRole, stage models.DocumentStage, document string) (string, error) {
	return r.initial.Execute(r.context(role, stage, document))
}

// PeerResponsePrompt renders a peer-response debate prompt for role.
func (r *Registry) PeerResponsePrompt(role models.AuditorRole, stage models.DocumentStage, document string, round int, priorRoundsJSON string) (string, error) {
	ctx := r.context(role, stage, document)
	ctx.Round = round
	ctx.PriorRounds = priorRoundsJSON
	return r.peer.Execute(ctx)
}

func (r *Registry) TemplateHash(stage models.DocumentStage) string {
	h := sha256.New()
	entry := r.stages[stage]
	fmt.Fprintf(h, "stage=%s\nfocus=%s\n", stage, entry.focus)
	for _, role := range entry.roles {
		fmt.Fprintf(h, "role=%s\n%s\n", role, r.instructions[role])
	}
	keys := make([]string, 0, len(r.vars))
	for k := range r.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "var=%s=%s\n", k, r.vars[k])
	}
	io.WriteString(h, r.audit.Source())
	io.WriteString(h, schemas.AuditorResponseSchemaJSON)
	return hex.EncodeToString(h.Sum(nil))
}

func (r *Registry) context(role models.AuditorRole, stage models.DocumentStage, content string) *Context {
	dims := make([]string, len(models.AllDimensions))
	for i, d := range models.AllDimensions {
		dims[i] = string(d)
	}
	return &Context{
		Role:         string(role),
		Stage:        string(stage),
		Focus:        r.stages[stage].focus,
		Instructions: r.instructions[role],
		Dimensions:   dims,
		Schema:       schemas.AuditorResponseSchemaJSON,
		Content:      content,
		Vars:         r.vars,
	}
}
