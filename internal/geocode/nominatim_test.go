package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolvePicksFirstMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if q := r.URL.Query().Get("q"); q != "12 Main St" {
			t.Errorf("unexpected query %q", q)
		}
		w.Write([]byte(`[{"lat":"40.4168","lon":"-3.7038"},{"lat":"1.0","lon":"2.0"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	coord, err := c.Resolve(context.Background(), "12 Main St")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if coord.Lat != 40.4168 || coord.Lon != -3.7038 {
		t.Fatalf("wrong coord: %+v", coord)
	}
}

func TestResolveNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Resolve(context.Background(), "nowhere at all"); err == nil {
		t.Fatal("expected error for empty result")
	}
}

func TestResolveBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Resolve(context.Background(), "12 Main St"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
