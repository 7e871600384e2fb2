// Package model defines the flat rows read from the analytical source and the
// nested documents assembled from them.
//
// Struct tags carry the field names used in the stored documents. The same
// names are used by every document store (json, firestore, bson) and by the
// audit table in the analytical store (bigquery), so a document read back from
// any of them has the same shape.
package model

// Row is one record from the source stream. All values are already rendered
// to strings by the source (dates included).
type Row struct {
	InputKey        string
	LineCode        string
	LineDescription string
	SkuCode         string
	SkuDescription  string
	ProcessDate     string
	LoadDate        string
	ProjectCode     string
	ProjectName     string
}

// SkuEntry is the leaf of a Document.
type SkuEntry struct {
	Sku         string `json:"sku" firestore:"sku" bson:"sku" bigquery:"sku"`
	Description string `json:"descripcion" firestore:"descripcion" bson:"descripcion" bigquery:"descripcion"`
}

// LineItem groups the SKUs of one line code. Skus keep the order in which
// rows were consumed; duplicates are kept.
type LineItem struct {
	Line        string     `json:"linea" firestore:"linea" bson:"linea" bigquery:"linea"`
	Description string     `json:"descripcion" firestore:"descripcion" bson:"descripcion" bigquery:"descripcion"`
	Skus        []SkuEntry `json:"skus" firestore:"skus" bson:"skus" bigquery:"skus"`
}

// Document is the nested record stored under its InputKey.
type Document struct {
	ProcessDate string     `json:"processDate" firestore:"processDate" bson:"processDate" bigquery:"processDate"`
	LoadDate    string     `json:"loadDate" firestore:"loadDate" bson:"loadDate" bigquery:"loadDate"`
	ProjectCode string     `json:"codProyecto" firestore:"codProyecto" bson:"codProyecto" bigquery:"codProyecto"`
	ProjectName string     `json:"nombreProyecto" firestore:"nombreProyecto" bson:"nombreProyecto" bigquery:"nombreProyecto"`
	InputKey    string     `json:"skuInput" firestore:"skuInput" bson:"skuInput" bigquery:"skuInput"`
	Items       []LineItem `json:"items" firestore:"items" bson:"items" bigquery:"items"`
}

// NewDocument seeds a Document from the document-level fields of r.
func NewDocument(r Row) *Document {
	return &Document{
		ProcessDate: r.ProcessDate,
		LoadDate:    r.LoadDate,
		ProjectCode: r.ProjectCode,
		ProjectName: r.ProjectName,
		InputKey:    r.InputKey,
		Items:       []LineItem{},
	}
}

// KeyedDocument pairs a document with the key it is stored under.
type KeyedDocument struct {
	Key      string
	Document *Document
}

// FlushedRecord is the snapshot taken when a document is flushed to the
// document store. The ordered sequence of FlushedRecords of a run is what the
// audit sink appends to the analytical store.
type FlushedRecord struct {
	InputKey string    `json:"sku_input"`
	Document *Document `json:"data"`
	BatchID  int       `json:"batch_id"`
}
