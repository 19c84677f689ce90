package health

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ledgermate/governor/internal/core"
)

const defaultProbeTimeout = 10 * time.Second

// ChatProbe pings the chat platform's liveness endpoint (a getMe-style
// round trip that also identifies the bot account).
type ChatProbe struct {
	Token   string
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
	Clock   func() time.Time
}

func (p *ChatProbe) Name() core.Dependency { return core.DepChat }

func (p *ChatProbe) Probe(ctx context.Context) Result {
	if p.Token == "" {
		return Result{Status: StatusNotConfigured, Message: "chat bot token not configured", Healthy: false}
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(p.Timeout))
	defer cancel()

	url := fmt.Sprintf("%s/bot%s/getMe", p.BaseURL, p.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errorResult(err)
	}

	start := now(p.Clock)
	resp, err := client(p.Client).Do(req)
	if err != nil {
		return errorResult(err)
	}
	defer resp.Body.Close()
	elapsed := now(p.Clock).Sub(start)

	if resp.StatusCode != http.StatusOK {
		return Result{
			Status:  StatusError,
			Message: fmt.Sprintf("HTTP %d", resp.StatusCode),
			Healthy: false,
		}
	}

	var body struct {
		Result struct {
			Username string `json:"username"`
		} `json:"result"`
	}
	username := "unknown"
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Result.Username != "" {
		username = body.Result.Username
	}

	return Result{
		Status:       StatusHealthy,
		Message:      fmt.Sprintf("bot @%s reachable", username),
		Healthy:      true,
		ResponseTime: roundSeconds(elapsed),
	}
}

// AIProbe performs a minimal no-op completion round trip against the AI
// provider.
type AIProbe struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
	Client   *http.Client
	Clock    func() time.Time
}

func (p *AIProbe) Name() core.Dependency { return core.DepAI }

func (p *AIProbe) Probe(ctx context.Context) Result {
	if p.APIKey == "" || p.Endpoint == "" {
		return Result{Status: StatusNotConfigured, Message: "AI API key or endpoint not configured", Healthy: false}
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(p.Timeout))
	defer cancel()

	payload := map[string]any{
		"model":      p.Model,
		"max_tokens": 10,
		"messages": []map[string]string{
			{"role": "user", "content": "ping"},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return errorResult(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(raw))
	if err != nil {
		return errorResult(err)
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := now(p.Clock)
	resp, err := client(p.Client).Do(req)
	if err != nil {
		return errorResult(err)
	}
	defer resp.Body.Close()
	elapsed := now(p.Clock).Sub(start)

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 100))
		return Result{
			Status:  StatusDegraded,
			Message: Truncate(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, snippet)),
			Healthy: false,
		}
	}

	return Result{
		Status:       StatusHealthy,
		Message:      "AI API reachable",
		Healthy:      true,
		ResponseTime: roundSeconds(elapsed),
	}
}

// SpeechProbe is credential-presence only: the transcription provider has
// no cheap liveness endpoint worth burning quota on.
type SpeechProbe struct {
	APIKey string
}

func (p *SpeechProbe) Name() core.Dependency { return core.DepSpeech }

func (p *SpeechProbe) Probe(ctx context.Context) Result {
	if p.APIKey == "" {
		return Result{Status: StatusNotConfigured, Message: "speech API key not configured", Healthy: false}
	}
	return Result{Status: StatusConfigured, Message: "speech API key configured", Healthy: true}
}

// StorageProbe wraps the storage backend's connectivity check behind a
// narrow function so this package stays ignorant of the client library.
type StorageProbe struct {
	// Ping performs a minimal round trip and returns a human detail line.
	Ping    func(ctx context.Context) (string, error)
	Timeout time.Duration
	Clock   func() time.Time
}

func (p *StorageProbe) Name() core.Dependency { return core.DepStorage }

func (p *StorageProbe) Probe(ctx context.Context) Result {
	if p.Ping == nil {
		return Result{Status: StatusNotConfigured, Message: "storage backend not configured", Healthy: false}
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(p.Timeout))
	defer cancel()

	start := now(p.Clock)
	detail, err := p.Ping(ctx)
	if err != nil {
		return errorResult(err)
	}
	elapsed := now(p.Clock).Sub(start)

	return Result{
		Status:       StatusHealthy,
		Message:      detail,
		Healthy:      true,
		ResponseTime: roundSeconds(elapsed),
	}
}

func errorResult(err error) Result {
	if errors.Is(err, context.DeadlineExceeded) {
		return Result{Status: StatusTimeout, Message: "probe timed out", Healthy: false}
	}
	return Result{Status: StatusError, Message: Truncate(err.Error()), Healthy: false}
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultProbeTimeout
	}
	return d
}

func client(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}

func now(clock func() time.Time) time.Time {
	if clock != nil {
		return clock()
	}
	return time.Now()
}

func roundSeconds(d time.Duration) float64 {
	return float64(d.Round(time.Millisecond)) / float64(time.Second)
}
