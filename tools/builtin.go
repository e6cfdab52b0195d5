package tools

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"byom/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/sahilm/fuzzy"
)

const (
	defaultReadLimit = 2000
	maxOutputBytes   = 64 * 1024
	maxMatches       = 200
	maxFuzzyResults  = 20
)

// skippedDirs are never descended into by the search tools.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
}

// RegisterBuiltins adds the read-only workspace tools: read_file, list_dir,
// glob, grep and find_file.
func RegisterBuiltins(r *Registry) error {
	builtins := []struct {
		tool    mcptypes.Tool
		handler Handler
	}{
		{
			mcptypes.NewTool("read_file",
				mcptypes.WithDescription("Read a text file. Returns line-numbered content."),
				mcptypes.WithString("path", mcptypes.Required(), mcptypes.Description("File path, absolute or relative to the working directory")),
				mcptypes.WithNumber("offset", mcptypes.Description("1-based line to start from")),
				mcptypes.WithNumber("limit", mcptypes.Description("Maximum number of lines (default 2000)")),
			),
			readFile,
		},
		{
			mcptypes.NewTool("list_dir",
				mcptypes.WithDescription("List the entries of a directory. Directories end with '/'."),
				mcptypes.WithString("path", mcptypes.Description("Directory path (default: working directory)")),
			),
			listDir,
		},
		{
			mcptypes.NewTool("glob",
				mcptypes.WithDescription("Find files whose relative path matches a glob pattern. '**' matches any number of directories."),
				mcptypes.WithString("pattern", mcptypes.Required(), mcptypes.Description("Glob pattern, e.g. **/*.go")),
				mcptypes.WithString("path", mcptypes.Description("Directory to search (default: working directory)")),
			),
			globFiles,
		},
		{
			mcptypes.NewTool("grep",
				mcptypes.WithDescription("Search file contents with a regular expression. Returns path:line: text."),
				mcptypes.WithString("pattern", mcptypes.Required(), mcptypes.Description("Regular expression (RE2 syntax)")),
				mcptypes.WithString("path", mcptypes.Description("File or directory to search (default: working directory)")),
				mcptypes.WithString("include", mcptypes.Description("Only search files whose name matches this glob, e.g. *.go")),
			),
			grepFiles,
		},
		{
			mcptypes.NewTool("find_file",
				mcptypes.WithDescription("Fuzzy-find files by name when the exact path is unknown."),
				mcptypes.WithString("query", mcptypes.Required(), mcptypes.Description("Approximate file name or path")),
				mcptypes.WithString("path", mcptypes.Description("Directory to search (default: working directory)")),
			),
			findFile,
		},
	}

	for _, b := range builtins {
		if err := r.Register(b.tool, b.handler); err != nil {
			return err
		}
	}
	return nil
}

func readFile(ctx context.Context, args map[string]any, workDir string) model.ToolResult {
	p := resolvePath(workDir, stringArg(args, "path"))
	offset := intArg(args, "offset")
	if offset < 1 {
		offset = 1
	}
	limit := intArg(args, "limit")
	if limit <= 0 {
		limit = defaultReadLimit
	}

	f, err := os.Open(p)
	if err != nil {
		return model.ErrorResult(fmt.Sprintf("cannot read %s: %v", p, err), "")
	}
	defer f.Close()

	var out strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if line < offset {
			continue
		}
		if line >= offset+limit {
			fmt.Fprintf(&out, "... (truncated at %d lines)\n", limit)
			break
		}
		fmt.Fprintf(&out, "%6d\t%s\n", line, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return model.ErrorResult(fmt.Sprintf("cannot read %s: %v", p, err), out.String())
	}
	return model.SuccessResult(capOutput(out.String()))
}

func listDir(ctx context.Context, args map[string]any, workDir string) model.ToolResult {
	p := resolvePath(workDir, stringArg(args, "path"))
	entries, err := os.ReadDir(p)
	if err != nil {
		return model.ErrorResult(fmt.Sprintf("cannot list %s: %v", p, err), "")
	}

	var out strings.Builder
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		out.WriteString(name)
		out.WriteByte('\n')
	}
	return model.SuccessResult(capOutput(out.String()))
}

func globFiles(ctx context.Context, args map[string]any, workDir string) model.ToolResult {
	pattern := filepath.ToSlash(stringArg(args, "pattern"))
	root := resolvePath(workDir, stringArg(args, "path"))
	if _, err := path.Match(strings.ReplaceAll(pattern, "**", "*"), ""); err != nil {
		return model.ErrorResult(fmt.Sprintf("invalid glob pattern %q: %v", pattern, err), "")
	}

	var matches []string
	err := walkFiles(ctx, root, func(rel string) bool {
		if matchGlob(pattern, rel) {
			matches = append(matches, rel)
		}
		return len(matches) < maxMatches
	})
	if err != nil {
		return model.ErrorResult(err.Error(), strings.Join(matches, "\n"))
	}
	if len(matches) == 0 {
		return model.SuccessResult("no files matched")
	}
	sort.Strings(matches)
	return model.SuccessResult(capOutput(strings.Join(matches, "\n")))
}

func grepFiles(ctx context.Context, args map[string]any, workDir string) model.ToolResult {
	re, err := regexp.Compile(stringArg(args, "pattern"))
	if err != nil {
		return model.ErrorResult(fmt.Sprintf("invalid pattern: %v", err), "")
	}
	include := stringArg(args, "include")
	root := resolvePath(workDir, stringArg(args, "path"))

	var out strings.Builder
	count := 0
	search := func(rel, full string) {
		f, err := os.Open(full)
		if err != nil {
			return
		}
		defer f.Close()
		scanner := bufio.NewScanner(f)
		line := 0
		for scanner.Scan() && count < maxMatches {
			line++
			if re.MatchString(scanner.Text()) {
				fmt.Fprintf(&out, "%s:%d: %s\n", rel, line, scanner.Text())
				count++
			}
		}
	}

	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		search(filepath.Base(root), root)
	} else {
		err := walkFiles(ctx, root, func(rel string) bool {
			if include != "" {
				if ok, _ := path.Match(include, path.Base(rel)); !ok {
					return true
				}
			}
			search(rel, filepath.Join(root, filepath.FromSlash(rel)))
			return count < maxMatches
		})
		if err != nil {
			return model.ErrorResult(err.Error(), out.String())
		}
	}

	if count == 0 {
		return model.SuccessResult("no matches")
	}
	if count >= maxMatches {
		fmt.Fprintf(&out, "... (stopped after %d matches)\n", maxMatches)
	}
	return model.SuccessResult(capOutput(out.String()))
}

func findFile(ctx context.Context, args map[string]any, workDir string) model.ToolResult {
	query := stringArg(args, "query")
	root := resolvePath(workDir, stringArg(args, "path"))

	var files []string
	if err := walkFiles(ctx, root, func(rel string) bool {
		files = append(files, rel)
		return true
	}); err != nil {
		return model.ErrorResult(err.Error(), "")
	}

	found := fuzzy.Find(query, files)
	if len(found) == 0 {
		return model.SuccessResult("no files matched")
	}
	if len(found) > maxFuzzyResults {
		found = found[:maxFuzzyResults]
	}

	var out strings.Builder
	for _, m := range found {
		out.WriteString(m.Str)
		out.WriteByte('\n')
	}
	return model.SuccessResult(out.String())
}

// walkFiles visits regular files under root as slash-separated relative
// paths until visit returns false.
func walkFiles(ctx context.Context, root string, visit func(rel string) bool) error {
	errStop := errors.New("stop")
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if p != root && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		if !visit(filepath.ToSlash(rel)) {
			return errStop
		}
		return nil
	})
	if err == errStop {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot search %s: %w", root, err)
	}
	return nil
}

// matchGlob matches a slash-separated path against pattern, where a "**"
// segment matches zero or more directories.
func matchGlob(pattern, name string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pat, parts []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			for i := 0; i <= len(parts); i++ {
				if matchSegments(pat[1:], parts[i:]) {
					return true
				}
			}
			return false
		}
		if len(parts) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], parts[0]); !ok {
			return false
		}
		pat, parts = pat[1:], parts[1:]
	}
	return len(parts) == 0
}

func resolvePath(workDir, p string) string {
	if p == "" {
		p = "."
	}
	if filepath.IsAbs(p) || workDir == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(workDir, p)
}

func stringArg(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

func capOutput(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "\n... (output truncated)"
}
