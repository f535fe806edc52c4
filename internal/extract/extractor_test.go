package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExtractPlainText(t *testing.T) {
	extractor := NewExtractor(nil)

	text, err := extractor.Extract(context.Background(), []byte("hello document"), MIMEPlainText)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if text != "hello document" {
		t.Fatalf("text = %q, want %q", text, "hello document")
	}
}

func TestExtractPlainTextInvalidUTF8(t *testing.T) {
	extractor := NewExtractor(nil)

	blob := append([]byte("val"), 0xff, 0xfe)
	blob = append(blob, []byte("id")...)
	text, err := extractor.Extract(context.Background(), blob, MIMEPlainText)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if text != "valid" {
		t.Fatalf("text = %q, want invalid bytes dropped", text)
	}
}

func TestExtractOfficeRequiresDocIntel(t *testing.T) {
	extractor := NewExtractor(nil)

	for _, m := range []MIMEType{MIMEDocx, MIMEXlsx, MIMEPptx} {
		if _, err := extractor.Extract(context.Background(), []byte("x"), m); err == nil {
			t.Errorf("Extract(%v) without a document service should fail", m)
		}
	}
}

func TestExtractUnknownType(t *testing.T) {
	extractor := NewExtractor(nil)
	if _, err := extractor.Extract(context.Background(), []byte("x"), MIMEUnknown); err == nil {
		t.Fatal("Extract(MIMEUnknown) should fail")
	}
}

func newDocIntelTestServer(t *testing.T, statuses []string, content string) *httptest.Server {
	t.Helper()
	call := 0
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if got := r.Header.Get("Ocp-Apim-Subscription-Key"); got != "test-key" {
				t.Errorf("subscription key header = %q", got)
			}
			var body struct {
				Base64Source string `json:"base64Source"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Base64Source == "" {
				t.Errorf("analyze request missing base64Source")
			}
			w.Header().Set("Operation-Location", server.URL+"/operations/1")
			w.WriteHeader(http.StatusAccepted)
			return
		}

		status := statuses[call]
		if call < len(statuses)-1 {
			call++
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": status,
			"analyzeResult": map[string]string{
				"content": content,
			},
		})
	}))
	return server
}

func TestDocIntelAnalyzeSucceeds(t *testing.T) {
	server := newDocIntelTestServer(t, []string{"running", "succeeded"}, "extracted body text")
	defer server.Close()

	client := NewDocIntelClient(server.URL, "test-key", "prebuilt-read", "2024-02-29-preview", 10*time.Second)
	client.pollInterval = time.Millisecond

	text, err := client.Analyze(context.Background(), []byte("%PDF-1.4 fake"))
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if text != "extracted body text" {
		t.Fatalf("text = %q", text)
	}
}

func TestDocIntelAnalyzeFailedStatus(t *testing.T) {
	server := newDocIntelTestServer(t, []string{"failed"}, "")
	defer server.Close()

	client := NewDocIntelClient(server.URL, "test-key", "prebuilt-read", "2024-02-29-preview", 10*time.Second)
	client.pollInterval = time.Millisecond

	if _, err := client.Analyze(context.Background(), []byte("x")); err == nil {
		t.Fatal("Analyze should fail when the operation reports failed")
	}
}

func TestDocIntelAnalyzeRejectedSubmit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad model", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewDocIntelClient(server.URL, "test-key", "prebuilt-read", "2024-02-29-preview", 10*time.Second)

	_, err := client.Analyze(context.Background(), []byte("x"))
	if err == nil {
		t.Fatal("Analyze should fail on a rejected submission")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("error should carry the upstream status, got %v", err)
	}
}

func TestDocIntelAnalyzeStalledOperationHitsDeadline(t *testing.T) {
	server := newDocIntelTestServer(t, []string{"running"}, "")
	defer server.Close()

	client := NewDocIntelClient(server.URL, "test-key", "prebuilt-read", "2024-02-29-preview", 100*time.Millisecond)
	client.pollInterval = 5 * time.Millisecond

	start := time.Now()
	_, err := client.Analyze(context.Background(), []byte("x"))
	if err == nil {
		t.Fatal("an operation that never finishes must fail at the configured timeout")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Analyze returned after %v, the timeout did not bound the poll loop", elapsed)
	}
}

func TestDocIntelAnalyzeContextCancelled(t *testing.T) {
	server := newDocIntelTestServer(t, []string{"running"}, "")
	defer server.Close()

	client := NewDocIntelClient(server.URL, "test-key", "prebuilt-read", "2024-02-29-preview", 10*time.Second)
	client.pollInterval = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := client.Analyze(ctx, []byte("x")); err == nil {
		t.Fatal("Analyze should fail once the context expires")
	}
}
