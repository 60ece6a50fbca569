package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var (
	fileNameRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	unsafeRe   = regexp.MustCompile(`[^a-z0-9_]+`)
)

const (
	markerUp   = "-- +goose Up"
	markerDown = "-- +goose Down"
)

// CreateSQLMigration writes an empty goose migration named
// <YYYYMMDDHHMMSS>_<name>.sql into dir and returns its path.
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := slugify(name)
	if slug == "" {
		return "", fmt.Errorf("name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", time.Now().UTC().Format(versionLayout), slug))
	body := fmt.Sprintf("%s\n-- +goose StatementBegin\n-- %s\n-- +goose StatementEnd\n\n%s\n-- +goose StatementBegin\n-- rollback %s\n-- +goose StatementEnd\n",
		markerUp, slug, markerDown, slug)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(body); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = unsafeRe.ReplaceAllString(slug, "_")
	return strings.Trim(slug, "_")
}

// ValidateDir checks the migrations in dir. See ValidateFS.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks that every .sql file is named <version>_<slug>.sql, that
// versions are unique, and that each file has an Up section before its Down
// section.
func ValidateFS(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	seen := make(map[string]string, len(names))
	for _, name := range names {
		m := fileNameRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if _, err := time.Parse(versionLayout, m[1]); err != nil {
			return fmt.Errorf("migration %q has an invalid timestamp: %w", name, err)
		}
		if prev, ok := seen[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		up := strings.Index(string(body), markerUp)
		down := strings.Index(string(body), markerDown)
		switch {
		case up < 0:
			return fmt.Errorf("migration %q missing %q", name, markerUp)
		case down < 0:
			return fmt.Errorf("migration %q missing %q", name, markerDown)
		case down < up:
			return fmt.Errorf("migration %q declares Down before Up", name)
		}
	}
	return nil
}
