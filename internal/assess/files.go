package assess

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sqlbridge/internal/domain"
)

// LoadFiles reads SQL scripts into source queries. Each argument may be a
// .sql file, a directory (scanned non-recursively for *.sql), or a glob
// pattern. Query IDs are the file names, so re-assessments of the same tree
// stay comparable across runs.
func LoadFiles(args ...string) ([]domain.SourceQuery, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		switch {
		case err == nil && info.IsDir():
			matches, err := filepath.Glob(filepath.Join(arg, "*.sql"))
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", arg, err)
			}
			paths = append(paths, matches...)
		case err == nil:
			paths = append(paths, arg)
		default:
			matches, globErr := filepath.Glob(arg)
			if globErr != nil || len(matches) == 0 {
				return nil, fmt.Errorf("no SQL files match %q", arg)
			}
			paths = append(paths, matches...)
		}
	}
	sort.Strings(paths)

	queries := make([]domain.SourceQuery, 0, len(paths))
	seen := make(map[string]bool)
	for _, path := range paths {
		if seen[path] {
			continue
		}
		seen[path] = true
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		queries = append(queries, domain.SourceQuery{
			ID:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Dialect: domain.DialectTSQL,
			SQL:     string(data),
		})
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no SQL files found")
	}
	return queries, nil
}
