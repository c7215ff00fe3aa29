// Package sender implements the HTTP report sender with retry logic.
// It marshals reports to JSON, compresses with gzip, and POSTs them to the
// API report endpoint with exponential backoff on failure. Reports that
// cannot be delivered are kept in the local store.
package sender

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/memdiag/crashreport/internal/config"
	"github.com/memdiag/crashreport/internal/report"
	"github.com/memdiag/crashreport/internal/store"
)

const (
	// maxRetries is the maximum number of retry attempts before storing locally.
	maxRetries = 3

	// baseRetryDelay is the base delay for exponential backoff between retries.
	baseRetryDelay = 2 * time.Second

	// requestTimeout is the HTTP request timeout for each send attempt.
	requestTimeout = 10 * time.Second
)

// Sender delivers reports to the API, falling back to the local store when
// the server is unreachable.
type Sender struct {
	client     *http.Client
	cfg        *config.Config
	logger     *zap.Logger
	store      *store.Store
	retryDelay time.Duration
}

// New creates a new Sender with the given configuration, logger, and store.
// A nil store means undeliverable reports are dropped.
func New(cfg *config.Config, logger *zap.Logger, st *store.Store) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{
		client: &http.Client{
			Timeout: requestTimeout,
		},
		cfg:        cfg,
		logger:     logger,
		store:      st,
		retryDelay: baseRetryDelay,
	}
}

// Send attempts to deliver a report. On failure after all retries, the
// report is stored locally for later transmission.
func (s *Sender) Send(ctx context.Context, data report.Data) {
	payload, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("Failed to marshal report", zap.Error(err))
		return
	}

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(payload); err != nil {
		s.logger.Error("Failed to compress report", zap.Error(err))
		s.storeReport(data)
		return
	}
	if err := gz.Close(); err != nil {
		s.logger.Error("Failed to finalize gzip compression", zap.Error(err))
		s.storeReport(data)
		return
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * s.retryDelay
			s.logger.Warn("Retrying send",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				s.logger.Warn("Send cancelled, storing report", zap.Error(ctx.Err()))
				s.storeReport(data)
				return
			case <-time.After(delay):
			}
		}

		err := s.doSend(ctx, compressed.Bytes())
		if err == nil {
			s.logger.Debug("Report sent", zap.String("report_id", data.ID()))
			return
		}

		// Rate limited — store immediately without further retries
		if isRateLimited(err) {
			s.logger.Warn("Rate limited by server, storing report", zap.Error(err))
			s.storeReport(data)
			return
		}

		s.logger.Warn("Send failed",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	s.logger.Error("All retries exhausted, storing report",
		zap.String("report_id", data.ID()))
	s.storeReport(data)
}

// doSend performs a single HTTP POST to the report endpoint.
func (s *Sender) doSend(ctx context.Context, compressedData []byte) error {
	url := fmt.Sprintf("%s/api/reports", s.cfg.Server.URL)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		url,
		bytes.NewReader(compressedData),
	)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Authorization", "Bearer "+s.cfg.Server.Token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &rateLimitError{statusCode: resp.StatusCode}
	}

	return fmt.Errorf("server returned %d", resp.StatusCode)
}

// storeReport keeps an undelivered report in the local store.
func (s *Sender) storeReport(data report.Data) {
	if s.store == nil {
		s.logger.Warn("No report store available, dropping report",
			zap.String("report_id", data.ID()))
		return
	}
	if err := s.store.Store(data); err != nil {
		s.logger.Error("Failed to store report", zap.Error(err))
	}
}

// FlushStore attempts to send all previously stored reports.
func (s *Sender) FlushStore(ctx context.Context) {
	if s.store == nil {
		return
	}

	reports, err := s.store.RetrieveAll()
	if err != nil {
		s.logger.Error("Failed to retrieve stored reports", zap.Error(err))
		return
	}

	if len(reports) == 0 {
		return
	}

	s.logger.Info("Flushing stored reports", zap.Int("reports", len(reports)))

	for _, data := range reports {
		s.Send(ctx, data)
	}
}

// rateLimitError indicates the server returned HTTP 429.
type rateLimitError struct {
	statusCode int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (%d)", e.statusCode)
}

// isRateLimited checks whether an error is a rate limit response.
func isRateLimited(err error) bool {
	var rl *rateLimitError
	return errors.As(err, &rl)
}
