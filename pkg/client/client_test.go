package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gridtrack/gridtrack/pkg/reading"
)

// ingestRecorder captures batches posted to a fake ingest endpoint.
type ingestRecorder struct {
	mu      sync.Mutex
	batches [][]reading.Reading
}

func (rec *ingestRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Readings []reading.Reading `json:"readings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec.mu.Lock()
	rec.batches = append(rec.batches, payload.Readings)
	rec.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (rec *ingestRecorder) total() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	n := 0
	for _, b := range rec.batches {
		n += len(b)
	}
	return n
}

func TestClientCreation(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if c == nil {
		t.Fatal("Client is nil")
	}
	if c.config.Endpoint == "" {
		t.Error("Expected default endpoint")
	}
	if c.config.FlushEvery == 0 || c.config.MaxBatchSize == 0 {
		t.Error("Expected defaults for flush interval and batch size")
	}
}

func TestClientStartStop(t *testing.T) {
	rec := &ingestRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	c, err := New(Config{Endpoint: srv.URL, FlushEvery: time.Second})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Start(ctx); err != nil {
		t.Fatalf("Failed to start client: %v", err)
	}
	if err := c.Start(ctx); err == nil {
		t.Error("Expected error on second Start")
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Failed to stop client: %v", err)
	}
}

func TestClientFlushesOnStop(t *testing.T) {
	rec := &ingestRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	c, err := New(Config{Endpoint: srv.URL, FlushEvery: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start client: %v", err)
	}

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.Record("solar", ts, 120.5)
	c.Record("nuclear", ts, 900)

	if err := c.Stop(); err != nil {
		t.Fatalf("Failed to stop client: %v", err)
	}
	if got := rec.total(); got != 2 {
		t.Errorf("Expected 2 readings shipped, got %d", got)
	}
}

func TestClientFlushesFullBatch(t *testing.T) {
	rec := &ingestRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	c, err := New(Config{Endpoint: srv.URL, FlushEvery: time.Hour, MaxBatchSize: 5})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start client: %v", err)
	}
	defer c.Stop()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		c.Record("solar", ts.Add(time.Duration(i)*30*time.Minute), float64(i))
	}

	// The early flush runs in the background
	deadline := time.Now().Add(2 * time.Second)
	for rec.total() < 5 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := rec.total(); got != 5 {
		t.Errorf("Expected 5 readings shipped, got %d", got)
	}
}

func TestClientRecordBeforeStartIsDropped(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	c.Record("solar", time.Now(), 1)
	if len(c.readings) != 0 {
		t.Error("Expected reading recorded before Start to be dropped")
	}
}
