package google

import (
	"context"
	"errors"
	"testing"

	"fonreal/internal/backoff"
	"fonreal/internal/core"
)

type fakeReader struct {
	values [][]interface{}
	err    error
	gotID  string
	gotRng string
}

func (f *fakeReader) Values(ctx context.Context, id, rng string) ([][]interface{}, error) {
	f.gotID, f.gotRng = id, rng
	return f.values, f.err
}

var sheet = [][]interface{}{
	{"normalization", "fonitem", "provname", "provabb", "date", "val"},
	{"Real dollars, 2015=100", "Total revenue", "Ontario", "ON", float64(2001), float64(12.5)},
	{"Real dollars, 2015=100", "Total revenue", "Ontario", "ON", float64(2002), "1,000"},
	{"Real dollars, 2015=100", "Total revenue", "Ontario", "ON", float64(2003), nil},
}

func TestSourceFetch(t *testing.T) {
	r := &fakeReader{values: sheet}
	src := newSource(r, Config{SpreadsheetID: "sheet-1"}, nil)

	tbl, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if r.gotID != "sheet-1" || r.gotRng != DefaultRange {
		t.Errorf("read %s!%s", r.gotID, r.gotRng)
	}
	// Blank value row is kept as a missing observation.
	if tbl.Len() != 3 {
		t.Fatalf("rows = %d, want 3", tbl.Len())
	}
	if !tbl.At(2).Missing() {
		t.Errorf("row 2 = %+v, want missing value", tbl.At(2))
	}
	if r0 := tbl.At(0); r0.DateLabel != "2001" || r0.Value != 12.5 {
		t.Errorf("row 0 = %+v", r0)
	}
	if tbl.At(1).Value != 1000 {
		t.Errorf("row 1 value = %v", tbl.At(1).Value)
	}
	if src.Name() != "sheets" {
		t.Errorf("name = %q", src.Name())
	}
}

func TestSourceFetchErrors(t *testing.T) {
	upstream := errors.New("quota exceeded")
	_, err := newSource(&fakeReader{err: upstream}, Config{SpreadsheetID: "x", Range: "Data!A:F"}, nil).Fetch(context.Background())
	if !errors.Is(err, upstream) || backoff.IsPermanent(err) {
		t.Errorf("upstream err = %v", err)
	}

	_, err = newSource(&fakeReader{values: [][]interface{}{{"a", "b"}}}, Config{SpreadsheetID: "x"}, nil).Fetch(context.Background())
	if !errors.Is(err, core.ErrMissingColumn) || !backoff.IsPermanent(err) {
		t.Errorf("bad header err = %v", err)
	}
}

func TestParseValuesEmpty(t *testing.T) {
	if _, err := parseValues(nil); !errors.Is(err, core.ErrEmptyDataset) {
		t.Errorf("err = %v", err)
	}
}

func TestToStrings(t *testing.T) {
	got := toStrings([]interface{}{"a", float64(2001), 1.5, nil, true, 7})
	want := []string{"a", "2001", "1.5", "", "true", "7"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cell %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Config{}, nil); err == nil {
		t.Fatal("expected error")
	}
}
