package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/jwalitptl/queue-api/internal/config"
	"github.com/jwalitptl/queue-api/pkg/circuitbreaker"
	"github.com/jwalitptl/queue-api/pkg/logger"
	"github.com/jwalitptl/queue-api/pkg/metrics"
)

type gatewayRequest struct {
	Recipient  string `json:"recipient"`
	SenderName string `json:"sender_name"`
	Message    string `json:"message"`
}

type gatewayResponse struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

// GatewayDispatcher posts messages to an HTTP SMS gateway. Calls are throttled
// to the configured rate and short-circuited while the gateway keeps failing.
type GatewayDispatcher struct {
	url        string
	apiKey     string
	senderName string
	client     *http.Client
	limiter    *rate.Limiter
	cb         *circuitbreaker.CircuitBreaker
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewGatewayDispatcher(cfg config.SMSConfig, client *http.Client, log *logger.Logger, m *metrics.Metrics) *GatewayDispatcher {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = logger.Nop()
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &GatewayDispatcher{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		senderName: cfg.SenderName,
		client:     client,
		limiter:    rate.NewLimiter(limit, burst),
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "sms-gateway",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed", "name", name, "from", from, "to", to)
				m.SetCircuitOpen(name, to != circuitbreaker.StateClosed)
			},
		}),
		logger:  log,
		metrics: m,
	}
}

func (d *GatewayDispatcher) Send(ctx context.Context, phone, message string) error {
	start := time.Now()
	err := d.send(ctx, phone, message)
	d.metrics.ObserveSMS(ProviderGateway, time.Since(start).Seconds(), err)
	if err != nil {
		d.logger.Error(err, "sms gateway send failed", "phone", maskPhone(phone))
	}
	return err
}

func (d *GatewayDispatcher) send(ctx context.Context, phone, message string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	payload, err := json.Marshal(gatewayRequest{
		Recipient:  phone,
		SenderName: d.senderName,
		Message:    message,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	return d.cb.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", d.apiKey))
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		}

		var out gatewayResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		if out.Code != 0 {
			return fmt.Errorf("gateway rejected message: %s", out.Msg)
		}
		return nil
	})
}
