package ddl

// ColumnDef describes a single column in a table definition.
//
// Kind is a logical type ("text", "key", "json", "int", "timestamp") that the
// target Dialect maps to its own SQL type at render time.
type ColumnDef struct {
	Name       string
	Kind       string
	Nullable   bool
	PrimaryKey bool
}

// TableDef holds the table name in dotted form ("schema.table" or "table")
// and an ordered list of columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// ColumnNames returns the column names in order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Audit table columns, in insert order.
const (
	ColSkuInput    = "sku_input"
	ColData        = "data"
	ColBatchID     = "batch_id"
	ColChecksum    = "checksum"
	ColDestination = "destination"
	ColRunID       = "run_id"
	ColFlushedAt   = "flushed_at"
)

// Document table columns.
const (
	ColDocID    = "doc_id"
	ColDocument = "data"
)

// AuditTable is the definition of the flattened audit table written by the
// SQL sinks.
func AuditTable(fqn string) TableDef {
	return TableDef{
		FQN: fqn,
		Columns: []ColumnDef{
			{Name: ColSkuInput, Kind: "text"},
			{Name: ColData, Kind: "json"},
			{Name: ColBatchID, Kind: "int"},
			{Name: ColChecksum, Kind: "text"},
			{Name: ColDestination, Kind: "text"},
			{Name: ColRunID, Kind: "text"},
			{Name: ColFlushedAt, Kind: "timestamp"},
		},
	}
}

// DocumentTable is the definition of a destination table used by the SQL
// document stores: one row per document key.
func DocumentTable(fqn string) TableDef {
	return TableDef{
		FQN: fqn,
		Columns: []ColumnDef{
			{Name: ColDocID, Kind: "key", PrimaryKey: true},
			{Name: ColDocument, Kind: "json"},
		},
	}
}
