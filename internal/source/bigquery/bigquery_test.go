package bigquery

import (
	"context"
	"errors"
	"testing"

	"docmigrate/internal/model"
	"docmigrate/internal/source"

	bq "cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
)

// fakeValues replays canned rows through the bigquery value-map protocol.
type fakeValues struct {
	rows []map[string]bq.Value
	err  error
}

func (f *fakeValues) Next(dst interface{}) error {
	if len(f.rows) == 0 {
		if f.err != nil {
			return f.err
		}
		return iterator.Done
	}
	*(dst.(*map[string]bq.Value)) = f.rows[0]
	f.rows = f.rows[1:]
	return nil
}

func TestRowIteratorMapsColumns(t *testing.T) {
	t.Parallel()

	it := &rowIterator{
		it: &fakeValues{rows: []map[string]bq.Value{{
			"skuInput":         "K1",
			"codLinea":         "L1",
			"descripcionLinea": "Linea",
			"codSku":           int64(42),
			"nomSku":           "Sku",
			"processDate":      civil.Date{Year: 2024, Month: 3, Day: 1},
			"loadDate":         nil,
			"codProyecto":      "P",
			"nombreProyecto":   "Proyecto",
		}}},
		mapping: source.DefaultMapping(),
	}

	got, err := it.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	want := model.Row{
		InputKey: "K1", LineCode: "L1", LineDescription: "Linea",
		SkuCode: "42", SkuDescription: "Sku", ProcessDate: "2024-03-01",
		ProjectCode: "P", ProjectName: "Proyecto",
	}
	if got != want {
		t.Fatalf("row = %+v\nwant %+v", got, want)
	}
	if _, err := it.Next(context.Background()); !errors.Is(err, source.Done) {
		t.Fatalf("second Next err = %v, want source.Done", err)
	}
}

func TestRowIteratorWrapsErrors(t *testing.T) {
	t.Parallel()

	it := &rowIterator{it: &fakeValues{err: errors.New("quota")}, mapping: source.DefaultMapping()}
	if _, err := it.Next(context.Background()); !errors.Is(err, source.ErrRead) {
		t.Fatalf("err = %v, want ErrRead", err)
	}

	missing := &rowIterator{
		it:      &fakeValues{rows: []map[string]bq.Value{{"codLinea": "L"}}},
		mapping: source.DefaultMapping(),
	}
	if _, err := missing.Next(context.Background()); !errors.Is(err, source.ErrRead) {
		t.Fatalf("missing key err = %v, want ErrRead", err)
	}
}

func TestFactoryRequiresProject(t *testing.T) {
	t.Parallel()

	if _, err := source.New(context.Background(), source.Config{Kind: "bigquery"}); err == nil {
		t.Fatal("expected error without project")
	}
}
