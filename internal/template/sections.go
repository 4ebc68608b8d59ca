package template

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ParseRoleSections splits a markdown document into level-2 sections keyed by
// lowercased heading text. Content before the first level-2 heading is ignored.
func ParseRoleSections(source []byte) map[string]string {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	type mark struct {
		name      string
		lineStart int
		bodyStart int
	}
	var marks []mark
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level != 2 || h.Lines().Len() == 0 {
			continue
		}
		seg := h.Lines().At(0)
		lineStart := bytes.LastIndexByte(source[:seg.Start], '\n') + 1
		bodyStart := len(source)
		if nl := bytes.IndexByte(source[seg.Stop:], '\n'); nl >= 0 {
			bodyStart = seg.Stop + nl + 1
		}
		marks = append(marks, mark{
			name:      strings.ToLower(strings.TrimSpace(string(seg.Value(source)))),
			lineStart: lineStart,
			bodyStart: bodyStart,
		})
	}

	sections := make(map[string]string, len(marks))
	for i, m := range marks {
		end := len(source)
		if i+1 < len(marks) {
			end = marks[i+1].lineStart
		}
		if m.bodyStart > end {
			m.bodyStart = end
		}
		sections[m.name] = strings.TrimSpace(string(source[m.bodyStart:end]))
	}
	return sections
}
