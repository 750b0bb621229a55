package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/saturnines/commerce-export/pkg/errors"
)

// RenameTable maps old tag names to new ones. Apply replaces whole words
// only, so "g_id" never touches "g_item_group_id".
type RenameTable struct {
	names   map[string]string
	pattern *regexp.Regexp
}

// ParseRenameTable reads "old: new" lines. Blank lines and lines starting
// with '#' are skipped.
func ParseRenameTable(r io.Reader) (*RenameTable, error) {
	names := make(map[string]string)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		old, repl, ok := strings.Cut(line, ":")
		old, repl = strings.TrimSpace(old), strings.TrimSpace(repl)
		if !ok || old == "" {
			return nil, errors.Config("rename table line %d: expected \"old: new\", got %q", lineNo, line)
		}
		names[old] = repl
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WrapError(err, errors.ErrConfiguration, "failed to read rename table")
	}
	return NewRenameTable(names), nil
}

// LoadRenameTable parses the rename table file at path.
func LoadRenameTable(path string) (*RenameTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrConfiguration, "failed to open rename table")
	}
	defer f.Close()
	return ParseRenameTable(f)
}

func NewRenameTable(names map[string]string) *RenameTable {
	t := &RenameTable{names: names}
	if len(names) == 0 {
		return t
	}

	// Longest first so a name never loses to one of its prefixes.
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	t.pattern = regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
	return t
}

// Len returns the number of renames
func (t *RenameTable) Len() int { return len(t.names) }

func (t *RenameTable) Apply(text string) string {
	if t.pattern == nil {
		return text
	}
	return t.pattern.ReplaceAllStringFunc(text, func(m string) string {
		return t.names[m]
	})
}

// RewriteFile applies the table to the file at path in place.
func (t *RenameTable) RewriteFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.WrapError(err, errors.ErrExport, "failed to stat "+path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapError(err, errors.ErrExport, "failed to read "+path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return errors.WrapError(err, errors.ErrExport, "failed to rewrite "+path)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		return errors.WrapError(err, errors.ErrExport, "failed to rewrite "+path)
	}
	if _, err := io.WriteString(tmp, t.Apply(string(data))); err != nil {
		tmp.Close()
		return errors.WrapError(err, errors.ErrExport, "failed to rewrite "+path)
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapError(err, errors.ErrExport, "failed to rewrite "+path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.WrapError(err, errors.ErrExport, fmt.Sprintf("failed to replace %s", path))
	}
	return nil
}
