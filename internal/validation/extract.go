package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ErrNoJSON is returned when a reply contains no parseable JSON object.
var ErrNoJSON = errors.New("no JSON object found in reply")

// ExtractJSON returns the JSON object carried by an LLM reply. The reply may be
// bare JSON or markdown containing a fenced block tagged json (or untagged).
// As a last resort the outermost brace-delimited span is tried.
func ExtractJSON(reply string) ([]byte, error) {
	trimmed := strings.TrimSpace(reply)
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return []byte(trimmed), nil
	}

	for _, block := range fencedBlocks([]byte(reply)) {
		if json.Valid(block) {
			return block, nil
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		candidate := []byte(trimmed[start : end+1])
		if json.Valid(candidate) {
			return candidate, nil
		}
	}
	return nil, ErrNoJSON
}

// fencedBlocks returns the bodies of fenced code blocks whose info string is
// json or empty, in document order.
func fencedBlocks(source []byte) [][]byte {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var blocks [][]byte
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lang := strings.ToLower(string(fcb.Language(source)))
		if lang != "" && lang != "json" {
			return ast.WalkSkipChildren, nil
		}
		var buf bytes.Buffer
		lines := fcb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		blocks = append(blocks, bytes.TrimSpace(buf.Bytes()))
		return ast.WalkSkipChildren, nil
	})
	return blocks
}
