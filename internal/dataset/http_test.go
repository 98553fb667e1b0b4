package dataset

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fonreal/internal/backoff"
)

func TestHTTPSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, sampleCSV)
	}))
	defer srv.Close()

	src := NewHTTPSource(srv.URL, srv.Client(), time.Second)
	tbl, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if tbl.Len() != 3 {
		t.Errorf("rows = %d", tbl.Len())
	}
	if src.Name() != "http" {
		t.Errorf("name = %q", src.Name())
	}
}

func TestHTTPSourceStatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		permanent bool
	}{
		{http.StatusInternalServerError, false},
		{http.StatusBadGateway, false},
		{http.StatusTooManyRequests, false},
		{http.StatusNotFound, true},
		{http.StatusForbidden, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			_, err := NewHTTPSource(srv.URL, srv.Client(), time.Second).Fetch(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if backoff.IsPermanent(err) != tt.permanent {
				t.Errorf("permanent = %v, want %v (%v)", backoff.IsPermanent(err), tt.permanent, err)
			}
		})
	}
}

func TestHTTPSourceMalformedBodyIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "a,b,c\n1,2,3\n")
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL, nil, time.Second).Fetch(context.Background())
	if !backoff.IsPermanent(err) {
		t.Fatalf("err = %v, want permanent", err)
	}
}
