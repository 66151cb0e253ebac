package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/foxseedlab/aivideoplayer/internal/webhook"
)

const (
	webhookTimeout     = 10 * time.Second
	maxDeliveryAttempt = 3
	jobFinishedEvent   = "transcription.job.finished"
	errorBodyLimit     = 512
)

type HTTPSender struct {
	webhookURL string
	client     *http.Client
	backoff    time.Duration
}

func NewHTTPSender(webhookURL string) webhook.Sender {
	return &HTTPSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: webhookTimeout},
		backoff:    time.Second,
	}
}

// SendJobSummary posts payload, retrying transport errors and 5xx responses.
// 4xx responses are not retried.
func (s *HTTPSender) SendJobSummary(ctx context.Context, payload webhook.JobSummaryPayload) error {
	if s.webhookURL == "" {
		return nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode job summary: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxDeliveryAttempt; attempt++ {
		retry, err := s.post(ctx, payload, b)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt == maxDeliveryAttempt {
			break
		}
		slog.Warn("webhook delivery failed; retrying", "error", err, "job_id", payload.JobID, "attempt", attempt)
		select {
		case <-time.After(s.backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (s *HTTPSender) post(ctx context.Context, payload webhook.JobSummaryPayload, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", jobFinishedEvent)
	req.Header.Set("X-Webhook-Schema-Version", strconv.Itoa(payload.SchemaVersion))
	req.Header.Set("X-Job-ID", payload.JobID)

	resp, err := s.client.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if isHTTPSuccessStatus(resp.StatusCode) {
		return false, nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return resp.StatusCode >= http.StatusInternalServerError,
		fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
