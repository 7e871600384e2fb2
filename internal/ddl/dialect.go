package ddl

import (
	"fmt"
	"strings"
)

// Dialect selects identifier quoting, type mapping, placeholders and the
// CREATE TABLE guard for one SQL backend.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
	MSSQL    Dialect = "mssql"
	MySQL    Dialect = "mysql"
)

// ParseDialect validates a dialect name.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case Postgres, SQLite, MSSQL, MySQL:
		return d, nil
	}
	return "", fmt.Errorf("ddl: unknown dialect %q", s)
}

// QuoteIdent quotes a single identifier segment.
//
//	postgres, sqlite: "name"
//	mssql:            [name]
//	mysql:            `name`
func (d Dialect) QuoteIdent(id string) string {
	switch d {
	case MSSQL:
		return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
	case MySQL:
		return "`" + strings.ReplaceAll(id, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
	}
}

// QuoteFQN quotes each dotted segment of a possibly schema-qualified name.
// Empty segments are dropped.
func (d Dialect) QuoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, d.QuoteIdent(p))
	}
	return strings.Join(out, ".")
}

// Placeholder returns the bind parameter marker for the 1-based position i.
func (d Dialect) Placeholder(i int) string {
	switch d {
	case Postgres:
		return fmt.Sprintf("$%d", i)
	case MSSQL:
		return fmt.Sprintf("@p%d", i)
	default:
		return "?"
	}
}

// MapType maps a logical column kind to the dialect's SQL type. Unknown kinds
// are treated as "text".
func (d Dialect) MapType(kind string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch d {
	case Postgres:
		switch kind {
		case "json":
			return "JSONB"
		case "int":
			return "INTEGER"
		case "timestamp":
			return "TIMESTAMPTZ"
		default:
			return "TEXT"
		}
	case MSSQL:
		switch kind {
		case "key":
			return "NVARCHAR(450)"
		case "int":
			return "INT"
		case "timestamp":
			return "DATETIME2"
		default:
			return "NVARCHAR(MAX)"
		}
	case MySQL:
		switch kind {
		case "key":
			return "VARCHAR(255)"
		case "json":
			return "JSON"
		case "int":
			return "INT"
		case "timestamp":
			return "DATETIME(6)"
		default:
			return "TEXT"
		}
	default:
		// SQLite: store timestamps and JSON as TEXT.
		if kind == "int" {
			return "INTEGER"
		}
		return "TEXT"
	}
}
