package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErikCohenDev/consensus-council-sub001/internal/models"
	"github.com/ErikCohenDev/consensus-council-sub001/internal/models/modeltest"
)

const projectYAML = `provider: scripted
cache:
  backend: file
  dir: cache
events:
  enabled: true
  path: events/audit.jsonl
orchestrator:
  maxRetries: 1
`

// newProject writes a .council.yaml, a document and one scripted reply per
// role. It returns the project dir, the document path and the replies dir.
func newProject(t *testing.T, scores map[models.AuditorRole]int) (string, string, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".council.yaml"), []byte(projectYAML), 0644))

	doc := filepath.Join(dir, "prd.md")
	require.NoError(t, os.WriteFile(doc, []byte("# Product requirements\n\nShip the thing.\n"), 0644))

	replies := filepath.Join(dir, "replies")
	require.NoError(t, os.MkdirAll(replies, 0755))
	for role, score := range scores {
		resp := modeltest.Response(role, models.StagePRD, score)
		if score < 3 {
			modeltest.WithIssue(resp, models.SeverityCritical, "No rollback plan for the migration")
		}
		require.NoError(t, os.WriteFile(filepath.Join(replies, string(role)+".json"), []byte(modeltest.Fenced(resp)), 0644))
	}
	return dir, doc, replies
}

func allPRDRoles(score int) map[models.AuditorRole]int {
	return map[models.AuditorRole]int{
		models.RolePM:       score,
		models.RoleUX:       score,
		models.RoleSecurity: score,
		models.RoleDataEval: score,
	}
}

func TestRunAuditPasses(t *testing.T) {
	dir, doc, replies := newProject(t, allPRDRoles(4))
	f := &auditFlags{
		projectDir: dir,
		repliesDir: replies,
		format:     "text",
		outputPath: filepath.Join(dir, "result.json"),
		junitPath:  filepath.Join(dir, "junit.xml"),
	}

	var out bytes.Buffer
	require.NoError(t, runAudit(context.Background(), &out, f, "prd", doc))
	assert.Contains(t, out.String(), "=== Council audit: prd ===")
	assert.Contains(t, out.String(), "Decision:      PASS")

	data, err := os.ReadFile(f.outputPath)
	require.NoError(t, err)
	var result models.AuditResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.True(t, result.Success)
	assert.Len(t, result.Responses, 4)
	assert.Equal(t, 4, result.Calls)

	junit, err := os.ReadFile(f.junitPath)
	require.NoError(t, err)
	assert.Contains(t, string(junit), `name="consensus"`)

	entries, err := os.ReadDir(filepath.Join(dir, "cache"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	events, err := os.ReadFile(filepath.Join(dir, "events", "audit.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(events), `"audit_completed"`)
}

func TestRunAuditUsesCache(t *testing.T) {
	dir, doc, replies := newProject(t, allPRDRoles(4))
	f := &auditFlags{projectDir: dir, repliesDir: replies, format: "json"}

	var first bytes.Buffer
	require.NoError(t, runAudit(context.Background(), &first, f, "prd", doc))
	var second bytes.Buffer
	require.NoError(t, runAudit(context.Background(), &second, f, "prd", doc))

	var a, b models.AuditResult
	require.NoError(t, json.Unmarshal(first.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Bytes(), &b))
	assert.False(t, a.Cached)
	assert.True(t, b.Cached)
	assert.Equal(t, a.RequestID, b.RequestID)

	f.noCache = true
	var third bytes.Buffer
	require.NoError(t, runAudit(context.Background(), &third, f, "prd", doc))
	assert.NotContains(t, third.String(), `"cached": true`)
}

func TestRunAuditFails(t *testing.T) {
	scores := allPRDRoles(4)
	scores[models.RoleSecurity] = 2
	dir, doc, replies := newProject(t, scores)
	f := &auditFlags{projectDir: dir, repliesDir: replies, format: "text", noDebate: true}

	var out bytes.Buffer
	err := runAudit(context.Background(), &out, f, "prd", doc)
	var auditErr *AuditFailureError
	require.True(t, errors.As(err, &auditErr), "got %v", err)
	assert.Equal(t, ExitAuditFailed, exitCode(err))
	assert.Contains(t, err.Error(), "FAIL")
	assert.Contains(t, out.String(), "No rollback plan for the migration")
}

func TestRunAuditMissingRole(t *testing.T) {
	scores := allPRDRoles(4)
	delete(scores, models.RoleDataEval)
	dir, doc, replies := newProject(t, scores)
	f := &auditFlags{projectDir: dir, repliesDir: replies, format: "text"}

	var out bytes.Buffer
	require.NoError(t, runAudit(context.Background(), &out, f, "prd", doc), "three of four is a quorum")
	assert.Contains(t, out.String(), "3 responded, 1 failed")
	assert.Contains(t, out.String(), "! data_eval")
}

func TestRunAuditErrors(t *testing.T) {
	dir, doc, replies := newProject(t, allPRDRoles(4))

	tests := []struct {
		name  string
		flags auditFlags
		stage string
		doc   string
		want  string
	}{
		{"unknown stage", auditFlags{projectDir: dir, repliesDir: replies, format: "text"}, "roadmap", doc, "invalid document stage"},
		{"missing document", auditFlags{projectDir: dir, repliesDir: replies, format: "text"}, "prd", filepath.Join(dir, "nope.md"), "reading document"},
		{"bad format", auditFlags{projectDir: dir, repliesDir: replies, format: "xml"}, "prd", doc, "unknown format"},
		{"no replies", auditFlags{projectDir: dir, format: "text"}, "prd", doc, "--replies"},
		{"unknown provider", auditFlags{projectDir: dir, provider: "openai", format: "text"}, "prd", doc, "unknown provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runAudit(context.Background(), &bytes.Buffer{}, &tt.flags, tt.stage, tt.doc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, ExitError, exitCode(err))
		})
	}
}

func TestLoadOptionsFlagsWin(t *testing.T) {
	dir, _, _ := newProject(t, nil)
	t.Setenv("COUNCIL_MAX_PARALLEL", "2")

	pcFlags := &auditFlags{projectDir: dir, model: "gpt-5", maxCalls: 7, noDebate: true}
	pc := mustLoadProject(t, dir)
	opts, err := loadOptions(pc, pcFlags)
	require.NoError(t, err)
	assert.Equal(t, "gpt-5", opts.Model)
	assert.Equal(t, 7, opts.MaxCallsTotal)
	assert.Equal(t, 2, opts.MaxParallel, "environment applies when no flag is set")
	assert.Equal(t, 1, opts.MaxRetries, "from .council.yaml")
	assert.False(t, opts.EnableDebate)

	pcFlags.maxParallel = 6
	opts, err = loadOptions(pc, pcFlags)
	require.NoError(t, err)
	assert.Equal(t, 6, opts.MaxParallel)
}

func TestPrintStages(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"stages", "--project-dir", t.TempDir()})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, len(models.AllStages))
	assert.Equal(t, "prd                  pm, ux, security, data_eval", lines[3])
}
