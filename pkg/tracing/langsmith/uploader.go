package langsmith

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"
)

type batch struct {
	Data     []byte
	Boundary string
	Runs     int
}

// uploader posts batches to /runs/multipart with at most inFlight uploads
// at once, retrying retryable failures with exponential backoff and jitter.
type uploader struct {
	cfg      Config
	sem      *semaphore.Weighted
	inFlight int64
	client   *http.Client
	logger   *slog.Logger
}

func newUploader(cfg Config, logger *slog.Logger) *uploader {
	inFlight := int64(max(1, cfg.InFlight))
	return &uploader{
		cfg:      cfg,
		sem:      semaphore.NewWeighted(inFlight),
		inFlight: inFlight,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// sendAsync returns once the batch holds an upload slot.
func (u *uploader) sendAsync(ctx context.Context, b batch) error {
	if err := u.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer u.sem.Release(1)
		u.send(context.Background(), b)
	}()
	return nil
}

// wait blocks until every in-flight upload has finished.
func (u *uploader) wait(ctx context.Context) error {
	if err := u.sem.Acquire(ctx, u.inFlight); err != nil {
		return err
	}
	u.sem.Release(u.inFlight)
	return nil
}

func (u *uploader) send(ctx context.Context, b batch) {
	url := u.cfg.Endpoint + "/runs/multipart"
	var attempt int
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b.Data))
		if err != nil {
			u.logger.Error("building upload request", "error", err)
			return
		}
		req.Header.Set("Content-Type", "multipart/form-data; boundary="+b.Boundary)
		req.Header.Set("Content-Encoding", "zstd")
		req.Header.Set("X-API-Key", u.cfg.APIKey)

		resp, err := u.client.Do(req)
		if err == nil && (resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted) {
			resp.Body.Close()
			u.logger.Debug("batch uploaded", "runs", b.Runs)
			return
		}

		shouldRetry := err != nil
		status := 0
		if resp != nil {
			status = resp.StatusCode
			shouldRetry = retryableStatus(status)
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			u.logger.Warn("upload failed",
				"attempt", attempt+1, "status", status,
				"response", string(body), "will_retry", shouldRetry)
		}

		if !shouldRetry {
			u.logger.Error("upload failed; dropping batch (non-retryable error)",
				"runs", b.Runs, "status", status, "error", err)
			return
		}

		attempt++
		if attempt >= u.cfg.MaxAttempts {
			u.logger.Error("upload failed; dropping batch (max attempts reached)",
				"runs", b.Runs, "attempts", attempt, "error", err)
			return
		}
		select {
		case <-time.After(backoff(u.cfg.BackoffInitial, u.cfg.BackoffMax, attempt)):
		case <-ctx.Done():
			return
		}
	}
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusRequestTimeout,
		http.StatusTooEarly,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		499:
		return true
	}
	return false
}

// backoff returns a delay in [d/2, d) where d doubles per attempt up to
// maxDelay.
func backoff(base, maxDelay time.Duration, attempt int) time.Duration {
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if d > maxDelay {
		d = maxDelay
	}
	if d < 2 {
		return d
	}
	var b [8]byte
	_, _ = rand.Read(b[:])
	r := binary.BigEndian.Uint64(b[:])
	jitter := time.Duration(r % uint64(d/2))
	return d/2 + jitter
}
