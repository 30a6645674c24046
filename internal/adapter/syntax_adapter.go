package adapter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/scanner"
	"go/token"
	"path/filepath"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
)

// Language identifies how a source file is parsed.
type Language string

// Supported languages.
const (
	LangUnknown    Language = ""
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
)

// SyntaxError locates the first syntax problem in a file.
type SyntaxError struct {
	Path   string
	Line   int
	Column int
	Detail string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Detail)
}

// SourceParser encapsulates the language-specific parsing the pipeline needs:
// syntax validity and import discovery.
type SourceParser interface {
	// Detect returns the language of path, or LangUnknown for non-source files.
	Detect(path string) Language

	// CheckSyntax returns a *SyntaxError when content does not parse.
	CheckSyntax(ctx context.Context, path string, content []byte) error

	// Imports lists the top-level module or import paths referenced by content.
	Imports(ctx context.Context, path string, content []byte) ([]string, error)
}

// LocalSourceParser uses go/parser for Go and tree-sitter grammars otherwise.
type LocalSourceParser struct{}

// NewLocalSourceParser constructs a LocalSourceParser.
func NewLocalSourceParser() *LocalSourceParser {
	return &LocalSourceParser{}
}

// Detect maps file extensions to languages.
func (a *LocalSourceParser) Detect(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return LangGo
	case ".py", ".pyi":
		return LangPython
	case ".js", ".mjs", ".cjs", ".jsx":
		return LangJavaScript
	default:
		return LangUnknown
	}
}

// CheckSyntax parses content according to the language of path.
func (a *LocalSourceParser) CheckSyntax(ctx context.Context, path string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch a.Detect(path) {
	case LangGo:
		return checkGoSyntax(path, content)
	case LangPython:
		return checkTreeSitterSyntax(ctx, python.GetLanguage(), path, content)
	case LangJavaScript:
		return checkTreeSitterSyntax(ctx, javascript.GetLanguage(), path, content)
	default:
		return nil
	}
}

func checkGoSyntax(path string, content []byte) error {
	fset := token.NewFileSet()

	_, err := parser.ParseFile(fset, path, content, parser.AllErrors)
	if err == nil {
		return nil
	}

	var list scanner.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		return &SyntaxError{
			Path:   path,
			Line:   list[0].Pos.Line,
			Column: list[0].Pos.Column,
			Detail: list[0].Msg,
		}
	}

	return &SyntaxError{Path: path, Detail: err.Error()}
}

func checkTreeSitterSyntax(ctx context.Context, lang *sitter.Language, path string, content []byte) error {
	p := sitter.NewParser()
	defer p.Close()

	p.SetLanguage(lang)

	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil {
		return &SyntaxError{Path: path, Detail: "failed to parse: " + err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil
	}

	node := firstErrorNode(root)
	if node == nil {
		return &SyntaxError{Path: path, Line: 1, Detail: "invalid syntax"}
	}

	start := node.StartPoint()
	detail := "invalid syntax near " + strconv.Quote(snippet(content, node.StartByte(), node.EndByte()))

	if node.IsMissing() {
		detail = "missing " + node.Type()
	}

	return &SyntaxError{
		Path:   path,
		Line:   int(start.Row) + 1,
		Column: int(start.Column) + 1,
		Detail: detail,
	}
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if found := firstErrorNode(node.Child(i)); found != nil {
			return found
		}
	}

	return nil
}

func snippet(content []byte, start, end uint32) string {
	if end > uint32(len(content)) {
		end = uint32(len(content))
	}

	if start > end {
		start = end
	}

	s := string(content[start:end])
	if len(s) > 40 {
		s = s[:40] + "..."
	}

	return s
}

// Imports lists referenced modules. Go files are parsed with ImportsOnly;
// Python files are scanned line by line for import statements. Relative
// Python imports are skipped.
func (a *LocalSourceParser) Imports(_ context.Context, path string, content []byte) ([]string, error) {
	switch a.Detect(path) {
	case LangGo:
		fset := token.NewFileSet()

		file, err := parser.ParseFile(fset, path, content, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}

		imports := make([]string, 0, len(file.Imports))

		for _, spec := range file.Imports {
			p, err := strconv.Unquote(spec.Path.Value)
			if err != nil {
				continue
			}

			imports = append(imports, p)
		}

		return imports, nil
	case LangPython:
		return pythonImports(content)
	default:
		return nil, nil
	}
}

func pythonImports(content []byte) ([]string, error) {
	var imports []string

	sc := bufio.NewScanner(bytes.NewReader(content))
	// A single line may span the whole file.
	sc.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), max(len(content)+1, bufio.MaxScanTokenSize))

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		switch {
		case strings.HasPrefix(line, "import "):
			for _, part := range strings.Split(strings.TrimPrefix(line, "import "), ",") {
				fields := strings.Fields(part)
				if len(fields) == 0 {
					continue
				}

				imports = append(imports, topModule(fields[0]))
			}
		case strings.HasPrefix(line, "from "):
			fields := strings.Fields(strings.TrimPrefix(line, "from "))
			if len(fields) == 0 || strings.HasPrefix(fields[0], ".") {
				continue
			}

			imports = append(imports, topModule(fields[0]))
		}
	}

	if err := sc.Err(); err != nil {
		return imports, fmt.Errorf("failed to scan python imports: %w", err)
	}

	return imports, nil
}

func topModule(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}

	return name
}
