// Package all registers every built-in source backend. Import it for side
// effects:
//
//	import _ "docmigrate/internal/source/all"
package all

import (
	_ "docmigrate/internal/source/bigquery"
	_ "docmigrate/internal/source/postgres"
	_ "docmigrate/internal/source/sqlsrc"
)
