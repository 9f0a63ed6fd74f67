package ocrclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestProcessImage_ParsesWords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ocrWireResponse{
			Words: []ocrWireWord{
				{Text: "apple", Box: []float64{160, 440, 240, 510}, Type: "handwritten", Confidence: 0.92},
			},
		})
	}))
	defer srv.Close()

	client := NewHTTPOCRClient(HTTPOCRConfig{Endpoint: srv.URL, APIKey: "test"})
	result, err := client.ProcessImage(context.Background(), []byte("fake-jpeg"), 0)
	if err != nil {
		t.Fatalf("ProcessImage() error = %v", err)
	}
	if !result.Success || len(result.Words) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Words[0].Text != "apple" || result.Words[0].Type != "handwritten" {
		t.Fatalf("unexpected word: %+v", result.Words[0])
	}
}

func TestProcessImage_RetriesOn429ThenSucceeds(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("rate limited"))
			return
		}
		_ = json.NewEncoder(w).Encode(ocrWireResponse{Words: []ocrWireWord{{Text: "ok", Box: []float64{0, 0, 1, 1}, Type: "printed", Confidence: 0.9}}})
	}))
	defer srv.Close()

	client := NewHTTPOCRClient(HTTPOCRConfig{Endpoint: srv.URL, APIKey: "test", MaxRetries: 1, RetryDelay: time.Millisecond})
	result, err := client.ProcessImage(context.Background(), []byte("fake"), 0)
	if err != nil {
		t.Fatalf("ProcessImage() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected exactly one retry (2 calls total), got %d", calls.Load())
	}
	if !result.Success {
		t.Fatalf("expected eventual success, got %+v", result)
	}
}

func TestProcessImage_SurfacesFailureAfterRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("still limited"))
	}))
	defer srv.Close()

	client := NewHTTPOCRClient(HTTPOCRConfig{Endpoint: srv.URL, APIKey: "test", MaxRetries: 1, RetryDelay: time.Millisecond})
	result, err := client.ProcessImage(context.Background(), []byte("fake"), 0)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if result.Success {
		t.Fatalf("expected failed result, got %+v", result)
	}
}

func TestProcessImage_NonRetryableErrorFailsImmediately(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad request"))
	}))
	defer srv.Close()

	client := NewHTTPOCRClient(HTTPOCRConfig{Endpoint: srv.URL, APIKey: "test", MaxRetries: 3, RetryDelay: time.Millisecond})
	_, err := client.ProcessImage(context.Background(), []byte("fake"), 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected no retries for a non-retryable error, got %d calls", calls.Load())
	}
}
