// Package ddl defines a small table model and renders CREATE TABLE statements
// for the SQL backends used by the audit sinks and the SQL document stores.
//
// Rules shared by all dialects:
//
//   - TableDef.FQN must be non-empty; each dotted segment is quoted.
//   - Each column must have a non-empty Name; Kind is mapped via MapType.
//   - NOT NULL is emitted when Nullable == false.
//   - PrimaryKey columns are rendered as a separate PRIMARY KEY clause.
//   - The statement is idempotent: CREATE TABLE IF NOT EXISTS, or an
//     OBJECT_ID guard for SQL Server which has no IF NOT EXISTS form.
package ddl

import (
	"fmt"
	"strings"
)

// BuildCreateTableSQL renders t for dialect d.
func BuildCreateTableSQL(d Dialect, t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("%s ddl: table FQN must not be empty", d)
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("%s ddl: at least one column is required", d)
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("%s ddl: column with empty name in table %s", d, fqn)
		}

		var sb strings.Builder
		sb.WriteString(d.QuoteIdent(name))
		sb.WriteByte(' ')
		sb.WriteString(d.MapType(c.Kind))
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, d.QuoteIdent(name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	quoted := d.QuoteFQN(fqn)
	if d == MSSQL {
		return fmt.Sprintf(
			"IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n  CREATE TABLE %s (\n    %s\n  );\nEND;",
			strings.ReplaceAll(quoted, "'", "''"),
			quoted,
			strings.Join(cols, ",\n    "),
		), nil
	}
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		quoted,
		strings.Join(cols, ",\n  "),
	), nil
}

// BuildInsertSQL renders a single-row INSERT for the columns of t.
func BuildInsertSQL(d Dialect, t TableDef) string {
	names := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = d.QuoteIdent(c.Name)
		marks[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteFQN(t.FQN),
		strings.Join(names, ", "),
		strings.Join(marks, ", "),
	)
}
