package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/formwork/platform/internal/domain"
	"github.com/formwork/platform/internal/guard"
)

// WebRequestKind delivers the event's property snapshot to a configured
// HTTP endpoint. Deliveries are guarded per destination host by a rate
// limiter and a circuit breaker. At-least-once delivery means the endpoint
// may see duplicates; the X-Correlation-ID and X-Action-ID headers carry
// the idempotency key for downstream dedup.
type WebRequestKind struct {
	client      *http.Client
	rateLimiter *guard.RateLimiter
	circuitBkr  *guard.CircuitBreaker
}

// NewWebRequestKind creates the send_web_request kind.
func NewWebRequestKind(client *http.Client, rl *guard.RateLimiter, cb *guard.CircuitBreaker) *WebRequestKind {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebRequestKind{client: client, rateLimiter: rl, circuitBkr: cb}
}

func (k *WebRequestKind) Type() domain.ActionType { return domain.ActionSendWebRequest }

func (k *WebRequestKind) ResponseRelevant() bool { return false }

func (k *WebRequestKind) Run(ctx context.Context, job domain.ActionJob) (json.RawMessage, error) {
	var cfg domain.WebRequestConfig
	if err := json.Unmarshal(job.Config, &cfg); err != nil {
		return nil, domain.ErrConfig("send_web_request config: " + err.Error())
	}
	if err := domain.ValidateWebRequestURL(cfg.URL); err != nil {
		return nil, domain.ErrInvalidTarget(err.Error())
	}

	target, _ := url.Parse(cfg.URL)
	host := target.Host

	if k.rateLimiter != nil {
		if res := k.rateLimiter.Check(ctx, host); !res.Allowed {
			return nil, domain.ErrTransient(res.Reason, nil)
		}
	}
	if k.circuitBkr != nil {
		if res := k.circuitBkr.Check(ctx, host); !res.Allowed {
			return nil, domain.ErrTransient(res.Reason, nil)
		}
	}

	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if method != http.MethodGet && method != http.MethodDelete {
		payload, err := json.Marshal(job.Event.Properties)
		if err != nil {
			return nil, domain.ErrPermanent("marshal payload", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, body)
	if err != nil {
		return nil, domain.ErrInvalidTarget(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-ID", job.CorrelationID.String())
	req.Header.Set("X-Action-ID", job.ActionDefinitionID.String())
	for key, val := range cfg.Headers {
		req.Header.Set(key, val)
	}

	resp, err := k.client.Do(req)
	if err != nil {
		k.recordFailure(host)
		return nil, domain.ErrTransient("web request failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if k.circuitBkr != nil {
			k.circuitBkr.RecordSuccess(host)
		}
		effect, _ := json.Marshal(map[string]any{"url": cfg.URL, "status_code": resp.StatusCode})
		return effect, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		k.recordFailure(host)
		return nil, domain.ErrTransient(fmt.Sprintf("endpoint returned %d", resp.StatusCode), nil)
	default:
		// 4xx: the endpoint rejected the delivery, retrying will not help.
		return nil, domain.ErrPermanent(fmt.Sprintf("endpoint returned %d", resp.StatusCode), nil)
	}
}

func (k *WebRequestKind) recordFailure(host string) {
	if k.circuitBkr != nil {
		k.circuitBkr.RecordFailure(host)
	}
}
