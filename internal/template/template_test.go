package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    string
		ctx     *Context
		want    string
		wantErr bool
	}{
		{
			name: "role and stage",
			tmpl: "Auditing {{.Stage}} as {{.Role}}",
			ctx:  &Context{Role: "pm", Stage: "prd"},
			want: "Auditing prd as pm",
		},
		{
			name: "round number",
			tmpl: "round={{.Round}}",
			ctx:  &Context{Round: 2},
			want: "round=2",
		},
		{
			name: "dimension list",
			tmpl: `{{range $i, $d := .Dimensions}}{{if $i}}, {{end}}{{$d}}{{end}}`,
			ctx:  &Context{Dimensions: []string{"simplicity", "readability"}},
			want: "simplicity, readability",
		},
		{
			name: "user-defined Vars",
			tmpl: "Team {{.Vars.team}}, product={{.Vars.product}}",
			ctx: &Context{
				Vars: map[string]string{
					"team":    "payments",
					"product": "checkout",
				},
			},
			want: "Team payments, product=checkout",
		},
		{
			name: "no templates passthrough",
			tmpl: "plain string with no templates",
			ctx:  &Context{Role: "ignored"},
			want: "plain string with no templates",
		},
		{
			name: "empty string input",
			tmpl: "",
			ctx:  &Context{},
			want: "",
		},
		{
			name:    "missing field",
			tmpl:    "{{.NoSuchField}}",
			ctx:     &Context{},
			wantErr: true,
		},
		{
			name:    "missing Vars key",
			tmpl:    "{{.Vars.missing}}",
			ctx:     &Context{Vars: map[string]string{}},
			wantErr: true,
		},
		{
			name: "conditional",
			tmpl: `{{if eq .Role "security"}}YES{{else}}NO{{end}}`,
			ctx:  &Context{Role: "security"},
			want: "YES",
		},
		{
			name:    "invalid template syntax",
			tmpl:    "bad {{.Unclosed",
			ctx:     &Context{},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Render(tc.tmpl, tc.ctx)
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "template:")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCompile(t *testing.T) {
	p, err := Compile("risks", "{{.Role}} risks:\n{{bullets .Dimensions}}\nall: {{join .Dimensions \"/\"}}")
	require.NoError(t, err)

	got, err := p.Execute(&Context{Role: "cost", Dimensions: []string{"latency", "spend"}})
	require.NoError(t, err)
	assert.Equal(t, "cost risks:\n- latency\n- spend\nall: latency/spend", got)

	again, err := p.Execute(&Context{Role: "ux"})
	require.NoError(t, err)
	assert.Equal(t, "ux risks:\n\nall: ", again, "a compiled prompt is reusable")

	plain, err := Compile("plain", "no actions")
	require.NoError(t, err)
	assert.Equal(t, "no actions", plain.Source())
	out, err := plain.Execute(nil)
	require.NoError(t, err)
	assert.Equal(t, "no actions", out)

	_, err = Compile("broken", "{{join")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse broken")
}

func TestParseRoleSections(t *testing.T) {
	src := []byte("# Title\n\nintro text\n\n## PM\n\nFirst line.\n\n- a bullet\n\n## security\nLocked down.\n### detail\nnested\n")
	sections := ParseRoleSections(src)
	assert.Equal(t, map[string]string{
		"pm":       "First line.\n\n- a bullet",
		"security": "Locked down.\n### detail\nnested",
	}, sections)

	assert.Empty(t, ParseRoleSections([]byte("no headings at all")))
}
