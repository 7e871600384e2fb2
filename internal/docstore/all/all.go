// Package all registers every built-in document store backend. Import it for
// side effects.
package all

import (
	_ "docmigrate/internal/docstore/firestore"
	_ "docmigrate/internal/docstore/mongo"
	_ "docmigrate/internal/docstore/postgres"
	_ "docmigrate/internal/docstore/sqlite"
)
