package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

func TestFetchRun(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("page body"))
	}))
	defer server.Close()

	tool := NewFetch(0, 0)

	result := tool.Run(context.Background(), map[string]string{"url": server.URL})
	if result.Status != StatusOK {
		t.Fatalf("Status = %q, metadata %v", result.Status, result.Metadata)
	}
	if result.Output != "page body" {
		t.Errorf("Output = %q", result.Output)
	}
	if result.Metadata["http_status"] != http.StatusOK {
		t.Errorf("http_status = %v", result.Metadata["http_status"])
	}
}

func TestFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	tool := NewFetch(0, 0)

	result := tool.Run(context.Background(), map[string]string{"url": server.URL})
	if result.Status != StatusError {
		t.Fatalf("Status = %q, want error for 404", result.Status)
	}
	if result.Metadata["http_status"] != http.StatusNotFound {
		t.Errorf("http_status = %v", result.Metadata["http_status"])
	}
}

func TestFetchBodyCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 1000)))
	}))
	defer server.Close()

	tool := NewFetch(0, 64)

	result := tool.Run(context.Background(), map[string]string{"url": server.URL})
	if result.Status != StatusOK {
		t.Fatalf("Status = %q", result.Status)
	}
	if len(result.Output) != 64 {
		t.Errorf("body length = %d, want capped at 64", len(result.Output))
	}
}

func TestFetchBadInput(t *testing.T) {
	tool := NewFetch(0, 0)

	result := tool.Run(context.Background(), nil)
	if result.Status != StatusError {
		t.Error("missing url accepted")
	}

	result = tool.Run(context.Background(), map[string]string{"url": "ftp://example.com"})
	if result.Status != StatusError {
		t.Error("non-http scheme accepted")
	}
}

func TestFetchExtractArgs(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   map[string]string
	}{
		{name: "plain url", prompt: "fetch https://example.com/page", want: map[string]string{"url": "https://example.com/page"}},
		{name: "quoted", prompt: `download page "http://host/x"`, want: map[string]string{"url": "http://host/x"}},
		{name: "no url", prompt: "fetch the page", want: map[string]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := (&Fetch{}).ExtractArgs(tt.prompt)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractArgs(%q) = %v, want %v", tt.prompt, got, tt.want)
			}
		})
	}
}
