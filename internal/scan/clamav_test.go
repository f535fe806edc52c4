package scan

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestScanClean(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parse multipart failed: %v", err)
		}
		if _, _, err := r.FormFile("FILES"); err != nil {
			t.Errorf("missing FILES part: %v", err)
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"result":[{"name":"doc.txt","is_infected":false}]}}`))
	}))
	defer server.Close()

	client := NewClamAVClient(server.URL)
	if err := client.Scan(context.Background(), "doc.txt", []byte("content")); err != nil {
		t.Fatalf("Scan returned error for clean file: %v", err)
	}
}

func TestScanInfected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"result":[{"name":"doc.txt","is_infected":true}]}}`))
	}))
	defer server.Close()

	client := NewClamAVClient(server.URL)
	err := client.Scan(context.Background(), "doc.txt", []byte("content"))
	if !errors.Is(err, ErrInfected) {
		t.Fatalf("err = %v, want ErrInfected", err)
	}
}

func TestScanScannerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer server.Close()

	client := NewClamAVClient(server.URL)
	err := client.Scan(context.Background(), "doc.txt", []byte("content"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestScanBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClamAVClient(server.URL)
	err := client.Scan(context.Background(), "doc.txt", []byte("content"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestScanUnreachable(t *testing.T) {
	client := NewClamAVClient("http://127.0.0.1:1/scan")
	err := client.Scan(context.Background(), "doc.txt", []byte("content"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
