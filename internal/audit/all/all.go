// Package all registers every built-in audit backend. Import it for side
// effects.
package all

import (
	_ "docmigrate/internal/audit/bigquery"
	_ "docmigrate/internal/audit/postgres"
	_ "docmigrate/internal/audit/sqlsink"
)
