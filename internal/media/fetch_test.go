package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"adscope/internal/domain"
)

func TestFetchReturnsExactBytes(t *testing.T) {
	payload := []byte("raw media bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), 1024)
	got, err := f.Fetch(context.Background(), srv.URL+"/ad.png")
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("Fetch bytes = %q, want %q", got, payload)
	}
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), 16)
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("Fetch accepted oversized body")
	}
}

func TestFetchRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), 1024)
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("Fetch accepted 404 response")
	}
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	f := NewFetcher(nil, 1024)
	for _, u := range []string{"", "ftp://example.com/file", "not a url", "file:///etc/passwd"} {
		_, err := f.Fetch(context.Background(), u)
		if !errors.Is(err, domain.ErrInvalidMediaURL) {
			t.Fatalf("Fetch(%q) err = %v, want ErrInvalidMediaURL", u, err)
		}
	}
}

func TestHashIsStableOverBytes(t *testing.T) {
	a := Hash([]byte("same bytes"))
	b := Hash([]byte("same bytes"))
	c := Hash([]byte("different bytes"))
	if a != b {
		t.Fatalf("Hash not deterministic: %q vs %q", a, b)
	}
	if a == c {
		t.Fatal("Hash collision between different inputs")
	}
	if len(a) != 64 {
		t.Fatalf("Hash length = %d, want 64 hex chars", len(a))
	}
}
