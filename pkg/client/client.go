// Package client is a small push client for feeding generation readings
// into a GridTrack server. Readings are buffered locally and shipped to
// the ingest endpoint in batches.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gridtrack/gridtrack/pkg/reading"
)

// Config holds configuration for the GridTrack client
type Config struct {
	// Endpoint is the ingest URL. Defaults to the local server.
	Endpoint string `json:"endpoint"`

	// APIKey, if set, is sent as a bearer token.
	APIKey string `json:"api_key"`

	// FlushEvery is how often buffered readings are shipped.
	FlushEvery time.Duration `json:"flush_every"`

	// MaxBatchSize triggers an early flush when the buffer fills.
	MaxBatchSize int `json:"max_batch_size"`
}

// Client buffers readings and pushes them to a GridTrack server.
type Client struct {
	config Config
	http   *http.Client

	readings []reading.Reading
	mu       sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	started bool

	flushing atomic.Bool // Prevents concurrent flushes
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:8080/v1/ingest"
	}
	if cfg.FlushEvery == 0 {
		cfg.FlushEvery = 5 * time.Second
	}
	if cfg.MaxBatchSize == 0 {
		cfg.MaxBatchSize = 1000
	}

	return &Client{
		config:   cfg,
		http:     &http.Client{Timeout: 10 * time.Second},
		readings: make([]reading.Reading, 0, cfg.MaxBatchSize),
		done:     make(chan struct{}),
	}, nil
}

// Start begins the periodic flush loop.
func (c *Client) Start(ctx context.Context) error {
	if c.started {
		return fmt.Errorf("client already started")
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true

	go c.flushLoop()
	return nil
}

// Record buffers one reading. A full buffer triggers an early background
// flush; CompareAndSwap ensures only one flush goroutine runs at a time.
func (c *Client) Record(source string, ts time.Time, value float64) {
	if !c.started {
		return
	}

	c.mu.Lock()
	c.readings = append(c.readings, reading.Reading{
		Source:    source,
		Timestamp: ts,
		Value:     value,
	})
	shouldFlush := len(c.readings) >= c.config.MaxBatchSize
	c.mu.Unlock()

	if shouldFlush && c.flushing.CompareAndSwap(false, true) {
		go func() {
			c.flush()
			c.flushing.Store(false)
		}()
	}
}

// Flush synchronously ships all buffered readings.
func (c *Client) Flush() error {
	c.mu.Lock()
	if len(c.readings) == 0 {
		c.mu.Unlock()
		return nil
	}
	batch := make([]reading.Reading, len(c.readings))
	copy(batch, c.readings)
	c.readings = c.readings[:0]
	c.mu.Unlock()

	return c.send(batch)
}

// Stop stops the flush loop and ships any remaining readings.
func (c *Client) Stop() error {
	if !c.started {
		return nil
	}
	c.cancel()
	<-c.done

	c.started = false
	return c.Flush()
}

// flushLoop periodically flushes buffered readings.
func (c *Client) flushLoop() {
	defer close(c.done)

	ticker := time.NewTicker(c.config.FlushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if c.flushing.CompareAndSwap(false, true) {
				c.flush()
				c.flushing.Store(false)
			}
		}
	}
}

// flush ships buffered readings without blocking the caller.
func (c *Client) flush() {
	c.mu.Lock()
	if len(c.readings) == 0 {
		c.mu.Unlock()
		return
	}
	batch := make([]reading.Reading, len(c.readings))
	copy(batch, c.readings)
	c.readings = c.readings[:0]
	c.mu.Unlock()

	go c.send(batch)
}

// send posts one batch to the ingest endpoint.
func (c *Client) send(batch []reading.Reading) error {
	if len(batch) == 0 {
		return nil
	}

	payload := map[string]interface{}{
		"readings": batch,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal readings: %w", err)
	}

	// The final flush runs after the run context is cancelled, so fall
	// back to a fresh context rather than failing the shutdown flush.
	ctx := c.ctx
	if ctx == nil || ctx.Err() != nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}
