// Package aggregate folds flat source rows into nested documents.
//
// A Batch holds one Document per distinct input key seen since it was last
// reset. Rows for the same (key, line) append to the same LineItem; a new line
// code appends a new LineItem. Both keep first-seen order.
package aggregate

import "docmigrate/internal/model"

// entry is a document plus its line index. lines maps a line code to its
// position in doc.Items so lookups do not scan the item list.
type entry struct {
	doc   *model.Document
	lines map[string]int
}

// Batch is the open, in-memory set of documents awaiting a flush. It is not
// safe for concurrent use.
type Batch struct {
	order   []string
	entries map[string]*entry
}

// NewBatch returns an empty Batch.
func NewBatch() *Batch {
	return &Batch{entries: make(map[string]*entry)}
}

// Ingest folds r into the batch. It never fails.
func (b *Batch) Ingest(r model.Row) {
	e, ok := b.entries[r.InputKey]
	if !ok {
		e = &entry{doc: model.NewDocument(r), lines: make(map[string]int)}
		b.entries[r.InputKey] = e
		b.order = append(b.order, r.InputKey)
	}

	sku := model.SkuEntry{Sku: r.SkuCode, Description: r.SkuDescription}
	if i, ok := e.lines[r.LineCode]; ok {
		e.doc.Items[i].Skus = append(e.doc.Items[i].Skus, sku)
		return
	}
	e.lines[r.LineCode] = len(e.doc.Items)
	e.doc.Items = append(e.doc.Items, model.LineItem{
		Line:        r.LineCode,
		Description: r.LineDescription,
		Skus:        []model.SkuEntry{sku},
	})
}

// Has reports whether key has a document in the batch.
func (b *Batch) Has(key string) bool {
	_, ok := b.entries[key]
	return ok
}

// Get returns the document for key.
func (b *Batch) Get(key string) (*model.Document, bool) {
	e, ok := b.entries[key]
	if !ok {
		return nil, false
	}
	return e.doc, true
}

// Len is the number of documents in the batch.
func (b *Batch) Len() int { return len(b.order) }

// Documents returns the batch contents in key insertion order.
func (b *Batch) Documents() []model.KeyedDocument {
	out := make([]model.KeyedDocument, 0, len(b.order))
	for _, k := range b.order {
		out = append(out, model.KeyedDocument{Key: k, Document: b.entries[k].doc})
	}
	return out
}

// Reset discards every document. Documents previously returned by Documents
// or Get are not touched by later Ingest calls.
func (b *Batch) Reset() {
	b.order = nil
	b.entries = make(map[string]*entry)
}
