// Package migrations applies the embedded PostgreSQL and ClickHouse schemas.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// ErrUnknownDialect is returned by Load for a directory with no embedded schema.
var ErrUnknownDialect = errors.New("unknown migration dialect")

// Dialects with embedded schema files.
const (
	DialectPostgres   = "postgres"
	DialectClickhouse = "clickhouse"
)

//go:embed postgres/*.sql clickhouse/*.sql
var schema embed.FS

// Migration is one schema file.
type Migration struct {
	Name string
	SQL  string
}

// Load returns the non-blank migrations of a dialect ordered by file name.
func Load(dialect string) ([]Migration, error) {
	if dialect != DialectPostgres && dialect != DialectClickhouse {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}

	names, err := fs.Glob(schema, dialect+"/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list %s migrations: %w", dialect, err)
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(schema, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, Migration{Name: strings.TrimPrefix(name, dialect+"/"), SQL: string(data)})
	}
	return out, nil
}
