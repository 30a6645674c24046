package domain

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	m "github.com/livngcorpse/jarvis/internal/model"
)

// ChangeExtractor turns a generator reply into a ChangeSet.
type ChangeExtractor interface {
	// Extract returns the recognized changes. An empty ChangeSet means no
	// shape matched; it is never nil.
	Extract(resp m.GenerationResponse) m.ChangeSet
}

type changeExtractor struct{}

// NewChangeExtractor returns the default ChangeExtractor.
func NewChangeExtractor() ChangeExtractor {
	return &changeExtractor{}
}

// headerLine matches a line that consists solely of a "--- path ---" header.
var headerLine = regexp.MustCompile(`^---\s+(\S+)\s+---\s*$`)

// headerAnywhere finds "--- path ---" markers anywhere in the text.
var headerAnywhere = regexp.MustCompile(`---[ \t]+([^\s]+?)[ \t]+---`)

var fencedBlock = regexp.MustCompile("(?s)^```[A-Za-z0-9_+-]*[ \t]*\r?\n(.*?)\r?\n?```\\s*$")

func (e *changeExtractor) Extract(resp m.GenerationResponse) m.ChangeSet {
	if cs := fromEntries(resp.Files); len(cs) > 0 {
		slog.Debug("Extracted changes from structured entries", "files", len(cs))
		return cs
	}

	byLines := splitOnHeaderLines(resp.Text)
	byMarkers := scanForMarkers(resp.Text)

	// Headers glued to prose are only found by the marker scan.
	if len(byLines) > 0 && len(byLines) >= len(byMarkers) {
		slog.Debug("Extracted changes from header-delimited text", "files", len(byLines))
		return byLines
	}

	if len(byMarkers) > 0 {
		slog.Debug("Extracted changes from inline markers", "files", len(byMarkers))
		return byMarkers
	}

	slog.Warn("No file changes recognized in generator response", "textLength", len(resp.Text), "entries", len(resp.Files))

	return m.ChangeSet{}
}

// fromEntries maps each entry to its content, falling back to the diff
// payload. A diff is stored verbatim as the new file content; no patch is
// applied.
func fromEntries(entries []m.FileEntry) m.ChangeSet {
	cs := m.ChangeSet{}

	for _, entry := range entries {
		path := m.NormalizePath(entry.Path)
		if path == "" {
			continue
		}

		switch {
		case entry.Content != nil:
			cs[path] = *entry.Content
		case entry.Diff != nil:
			slog.Warn("Using diff payload as full replacement content", "path", path)
			cs[path] = *entry.Diff
		}
	}

	return cs
}

func splitOnHeaderLines(text string) m.ChangeSet {
	cs := m.ChangeSet{}

	var (
		current string
		body    []string
		started bool
	)

	flush := func() {
		if current == "" || !started {
			return
		}

		cs[current] = finishContent(strings.Join(body, "\n"))
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if match := headerLine.FindStringSubmatch(strings.TrimSpace(line)); match != nil {
			flush()

			current = m.NormalizePath(match[1])
			body = body[:0]
			started = false

			continue
		}

		if current != "" {
			body = append(body, line)
			started = true
		}
	}

	flush()

	return cs
}

func scanForMarkers(text string) m.ChangeSet {
	cs := m.ChangeSet{}

	matches := headerAnywhere.FindAllStringSubmatchIndex(text, -1)
	for i, match := range matches {
		path := m.NormalizePath(text[match[2]:match[3]])
		if path == "" {
			continue
		}

		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		content := finishContent(strings.TrimLeft(text[match[1]:end], " \t\r\n"))
		if content == "" {
			continue
		}

		cs[path] = content
	}

	return cs
}

// finishContent drops trailing newlines and unwraps a single fenced code
// block around the whole body.
func finishContent(body string) string {
	body = strings.TrimRight(body, "\r\n")

	if match := fencedBlock.FindStringSubmatch(strings.TrimSpace(body)); match != nil {
		return match[1]
	}

	return body
}

var jsonFence = regexp.MustCompile("(?s)^```(?:json)?\\s*\n(.*?)\n?```\\s*$")

func stripFence(raw string) string {
	candidate := strings.TrimSpace(raw)
	if match := jsonFence.FindStringSubmatch(candidate); match != nil {
		candidate = strings.TrimSpace(match[1])
	}

	return candidate
}

// ParseGenerationResponse decodes a raw reply. Structured replies may be
// wrapped in a json code fence; anything else is kept as free text.
func ParseGenerationResponse(raw string) m.GenerationResponse {
	resp := m.GenerationResponse{Text: raw}
	candidate := stripFence(raw)

	switch {
	case strings.HasPrefix(candidate, "{"):
		var payload struct {
			Files []m.FileEntry `json:"files"`
		}

		if err := json.Unmarshal([]byte(candidate), &payload); err == nil {
			resp.Files = payload.Files
		}
	case strings.HasPrefix(candidate, "["):
		var files []m.FileEntry
		if err := json.Unmarshal([]byte(candidate), &files); err == nil {
			resp.Files = files
		}
	}

	return resp
}
