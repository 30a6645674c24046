package domain

import (
	"testing"

	m "github.com/livngcorpse/jarvis/internal/model"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string {
	return &s
}

func TestChangeExtractor_Extract(t *testing.T) {
	tests := []struct {
		name string
		resp m.GenerationResponse
		want m.ChangeSet
	}{
		{
			name: "content entries",
			resp: m.GenerationResponse{Files: []m.FileEntry{
				{Path: "app/util.py", Content: strPtr("def ok(): return 1")},
				{Path: "./app\\other.py", Content: strPtr("x = 2")},
			}},
			want: m.ChangeSet{"app/util.py": "def ok(): return 1", "app/other.py": "x = 2"},
		},
		{
			name: "mixed content and diff entries",
			resp: m.GenerationResponse{Files: []m.FileEntry{
				{Path: "a.py", Content: strPtr("print(1)")},
				{Path: "b.py", Diff: strPtr("print(2)")},
			}},
			want: m.ChangeSet{"a.py": "print(1)", "b.py": "print(2)"},
		},
		{
			name: "content wins over diff in one entry",
			resp: m.GenerationResponse{Files: []m.FileEntry{
				{Path: "a.py", Content: strPtr("full"), Diff: strPtr("@@ -1 +1 @@")},
			}},
			want: m.ChangeSet{"a.py": "full"},
		},
		{
			name: "diff used as content",
			resp: m.GenerationResponse{Files: []m.FileEntry{
				{Path: "a.py", Diff: strPtr("-old\n+new")},
			}},
			want: m.ChangeSet{"a.py": "-old\n+new"},
		},
		{
			name: "header lines",
			resp: m.GenerationResponse{Text: "--- a.py ---\nprint(1)\n--- b.py ---\nprint(2)\n"},
			want: m.ChangeSet{"a.py": "print(1)", "b.py": "print(2)"},
		},
		{
			name: "fenced body",
			resp: m.GenerationResponse{Text: "--- a.py ---\n```python\nprint(1)\n```\n"},
			want: m.ChangeSet{"a.py": "print(1)"},
		},
		{
			name: "markers inside prose",
			resp: m.GenerationResponse{Text: "Sure! --- a.py ---\nprint(1)\n--- b.py ---\nprint(2)"},
			want: m.ChangeSet{"a.py": "print(1)", "b.py": "print(2)"},
		},
		{
			name: "unrecognized text",
			resp: m.GenerationResponse{Text: "I cannot help with that."},
			want: m.ChangeSet{},
		},
		{
			name: "entries without payload",
			resp: m.GenerationResponse{Files: []m.FileEntry{{Path: "a.py"}, {Path: "", Content: strPtr("x")}}},
			want: m.ChangeSet{},
		},
	}

	extractor := NewChangeExtractor()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractor.Extract(tt.resp)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseGenerationResponse(t *testing.T) {
	t.Run("json object in fence", func(t *testing.T) {
		raw := "```json\n{\"files\": [{\"path\": \"a.py\", \"content\": \"x = 1\"}]}\n```"

		resp := ParseGenerationResponse(raw)

		assert.Equal(t, raw, resp.Text)
		if assert.Len(t, resp.Files, 1) {
			assert.Equal(t, "a.py", resp.Files[0].Path)
			assert.Equal(t, "x = 1", *resp.Files[0].Content)
			assert.Nil(t, resp.Files[0].Diff)
		}
	})

	t.Run("json array", func(t *testing.T) {
		resp := ParseGenerationResponse(`[{"path": "a.py", "diff": "+x"}]`)

		if assert.Len(t, resp.Files, 1) {
			assert.Equal(t, "+x", *resp.Files[0].Diff)
		}
	})

	t.Run("free text", func(t *testing.T) {
		resp := ParseGenerationResponse("--- a.py ---\nprint(1)")

		assert.Empty(t, resp.Files)
		assert.Equal(t, "--- a.py ---\nprint(1)", resp.Text)
	})

	t.Run("broken json falls back to text", func(t *testing.T) {
		resp := ParseGenerationResponse(`{"files": [`)

		assert.Empty(t, resp.Files)
	})
}
