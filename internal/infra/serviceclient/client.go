package serviceclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/core/domain"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/config"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/logger"
	"github.com/Mukeshmehta2041/crm-micro-sub001/internal/infra/telemetry"
)

const (
	defaultConnectTimeout      = 10 * time.Second
	defaultReadTimeout         = 30 * time.Second
	defaultRetryMaxAttempts    = 3
	defaultRetryInitialBackoff = time.Second
	defaultRetryMaxBackoff     = 5 * time.Second
	defaultBreakerThreshold    = 5
	defaultBreakerOpenTimeout  = 30 * time.Second

	requestIDHeader = "X-Request-ID"
)

// Config holds the connection and resilience settings of one downstream.
type Config struct {
	BaseURL                 string
	ServiceName             string
	ConnectTimeout          time.Duration
	ReadTimeout             time.Duration
	RetryMaxAttempts        int
	RetryInitialBackoff     time.Duration
	RetryMaxBackoff         time.Duration
	BreakerFailureThreshold uint32
	BreakerOpenTimeout      time.Duration
}

// ConfigFromSettings converts loaded settings into a client config.
func ConfigFromSettings(s config.ServiceClientSettings) Config {
	return Config{
		BaseURL:                 s.BaseURL,
		ServiceName:             s.ServiceName,
		ConnectTimeout:          s.ConnectTimeout,
		ReadTimeout:             s.ReadTimeout,
		RetryMaxAttempts:        s.RetryMaxAttempts,
		RetryInitialBackoff:     s.RetryInitialBackoff,
		RetryMaxBackoff:         s.RetryMaxBackoff,
		BreakerFailureThreshold: s.BreakerFailureThreshold,
		BreakerOpenTimeout:      s.BreakerOpenTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = defaultRetryMaxAttempts
	}
	if c.RetryInitialBackoff <= 0 {
		c.RetryInitialBackoff = defaultRetryInitialBackoff
	}
	if c.RetryMaxBackoff < c.RetryInitialBackoff {
		c.RetryMaxBackoff = defaultRetryMaxBackoff
		if c.RetryMaxBackoff < c.RetryInitialBackoff {
			c.RetryMaxBackoff = c.RetryInitialBackoff
		}
	}
	if c.BreakerFailureThreshold == 0 {
		c.BreakerFailureThreshold = defaultBreakerThreshold
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = defaultBreakerOpenTimeout
	}
	return c
}

// retryDelay is the wait before the given retry (1-based).
func (c Config) retryDelay(retry int) time.Duration {
	delay := c.RetryInitialBackoff
	for i := 1; i < retry && delay < c.RetryMaxBackoff; i++ {
		delay *= 2
	}
	if delay > c.RetryMaxBackoff {
		delay = c.RetryMaxBackoff
	}
	return delay
}

// CallBudget is the longest one Invoke can take: every attempt running to the connect plus read timeout,
// with the backoff between retries. Only retrying operations make more than one attempt.
func (c Config) CallBudget(retrying bool) time.Duration {
	c = c.withDefaults()
	perAttempt := c.ConnectTimeout + c.ReadTimeout
	if !retrying {
		return perAttempt
	}

	budget := time.Duration(c.RetryMaxAttempts) * perAttempt
	for retry := 1; retry < c.RetryMaxAttempts; retry++ {
		budget += c.retryDelay(retry)
	}
	return budget
}

// Operation describes one downstream call.
type Operation struct {
	// Name labels the call in logs, metrics and fallback stats, e.g. "create_tenant".
	Name     string
	Resource string
	Method   string
	// Path is relative to the base URL and may contain {placeholders} filled from PathParams.
	Path       string
	PathParams map[string]string
	Body       any
	// Result receives the decoded 2xx body when non-nil.
	Result any
	// Read marks a lookup; its fallback is NotFound instead of Unavailable.
	Read bool
	// Idempotent allows the client to retry the call. Reads are always idempotent.
	Idempotent bool
}

func (o Operation) retries() bool {
	return o.Read || o.Idempotent
}

// FallbackStats lets operators tell degraded lookups apart from truly absent records.
type FallbackStats struct {
	Count             uint64                   `json:"count"`
	LastUnavailableAt *time.Time               `json:"lastUnavailableAt,omitempty"`
	LastReason        domain.DegradationReason `json:"lastReason,omitempty"`
	LastOperation     string                   `json:"lastOperation,omitempty"`
}

// Status is a point-in-time view of a downstream's health as seen by this client.
type Status struct {
	Service      string        `json:"service"`
	BaseURL      string        `json:"baseUrl"`
	BreakerState string        `json:"breakerState"`
	Fallbacks    FallbackStats `json:"fallbacks"`
}

// Client is a resilient HTTP client for one sibling service. Idempotent operations are retried with
// capped backoff; creates are attempted once. A circuit breaker short-circuits calls while the
// downstream keeps failing, and every exhausted or short-circuited call resolves to a fallback error.
type Client struct {
	cfg      Config
	retrying *resty.Client
	single   *resty.Client
	breaker  *gobreaker.CircuitBreaker
	metrics  *telemetry.Metrics
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	stats FallbackStats
}

// New builds a client. metrics may be nil.
func New(cfg Config, log *zap.Logger, metrics *telemetry.Metrics) *Client {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("downstream", cfg.ServiceName))

	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
	// spans per downstream call; trace context is injected into outgoing headers
	transport := otelhttp.NewTransport(base)

	c := &Client{
		cfg:     cfg,
		metrics: metrics,
		logger:  log,
		now:     time.Now,
	}

	c.single = c.newResty(transport)
	c.retrying = c.newResty(transport).
		SetRetryCount(cfg.RetryMaxAttempts - 1).
		SetRetryWaitTime(cfg.RetryInitialBackoff).
		SetRetryMaxWaitTime(cfg.RetryMaxBackoff).
		// replaces resty's jittered backoff with initial, 2x initial, ... capped at the max
		SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			retry := 1
			if resp != nil && resp.Request != nil && resp.Request.Attempt > 0 {
				retry = resp.Request.Attempt
			}
			return cfg.retryDelay(retry), nil
		}).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			status := 0
			if resp != nil {
				status = resp.StatusCode()
			}
			return retryable(status, err)
		}).
		AddRetryHook(func(resp *resty.Response, err error) {
			fields := []zap.Field{zap.Error(err)}
			if resp != nil {
				fields = append(fields, zap.Int("status_code", resp.StatusCode()), zap.Int("attempt", resp.Request.Attempt))
			}
			c.logger.Warn("retrying downstream call", fields...)
			c.metrics.ObserveRetry(cfg.ServiceName)
		})

	threshold := cfg.BreakerFailureThreshold
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    cfg.ServiceName,
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			var f *failure
			if errors.As(err, &f) {
				return !f.countsAgainstBreaker()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return c
}

func (c *Client) newResty(transport http.RoundTripper) *resty.Client {
	return resty.New().
		SetTransport(transport).
		SetBaseURL(c.cfg.BaseURL).
		SetTimeout(c.cfg.ConnectTimeout+c.cfg.ReadTimeout).
		SetLogger(c.logger.Sugar()).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
}

// ServiceName returns the name reported in errors and fallback responses.
func (c *Client) ServiceName() string {
	return c.cfg.ServiceName
}

// Invoke performs op. Failures come back as *domain.ServiceError: Conflict, Validation and NotFound
// for authoritative answers, Ambiguous for writes with an unknown outcome, and a fallback error when
// the downstream is unavailable.
func (c *Client) Invoke(ctx context.Context, op Operation) error {
	// an expired caller deadline bypasses the breaker and records no fallback
	if err := ctx.Err(); err != nil {
		return &domain.ServiceError{
			Kind:     domain.ErrorKindUnavailable,
			Service:  c.cfg.ServiceName,
			Resource: op.Resource,
			Message:  fmt.Sprintf("%s was not attempted, the request deadline has passed", op.Name),
			Reason:   domain.DegradationReasonTimeout,
			Err:      err,
		}
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		if f := c.exchange(ctx, op); f != nil {
			return nil, f
		}
		return nil, nil
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return c.fallback(op, domain.DegradationReasonBreakerOpen, err)
	}

	var f *failure
	if !errors.As(err, &f) {
		return domain.NewServiceError(domain.ErrorKindInternal, c.cfg.ServiceName, op.Resource, op.Name, err)
	}

	switch f.kind {
	case domain.ErrorKindUnavailable:
		reason := f.reason
		if op.retries() && c.cfg.RetryMaxAttempts > 1 {
			reason = domain.DegradationReasonRetriesExhausted
		}
		return c.fallback(op, reason, f)
	case domain.ErrorKindAmbiguous:
		c.logger.Warn("downstream write outcome unknown",
			zap.String("operation", op.Name),
			zap.String("reason", string(f.reason)),
			zap.Error(f),
		)
	}

	return &domain.ServiceError{
		Kind:     f.kind,
		Service:  c.cfg.ServiceName,
		Resource: op.Resource,
		Field:    f.field,
		Message:  f.message,
		Err:      f.cause,
	}
}

// exchange runs the HTTP request, returning nil on 2xx.
func (c *Client) exchange(ctx context.Context, op Operation) *failure {
	client := c.single
	if op.retries() {
		client = c.retrying
	}

	req := client.R().SetContext(ctx)
	if reqID := logger.RequestIDFromContext(ctx); reqID != "" {
		req.SetHeader(requestIDHeader, reqID)
	}
	if len(op.PathParams) > 0 {
		req.SetPathParams(op.PathParams)
	}
	if op.Body != nil {
		req.SetBody(op.Body)
	}
	if op.Result != nil {
		req.SetResult(op.Result)
	}

	resp, err := req.Execute(op.Method, op.Path)
	if err != nil {
		return classifyTransportError(err, op.Read)
	}
	if resp.IsSuccess() {
		return nil
	}
	return classifyStatus(resp.StatusCode(), resp.Body(), op.Read)
}

// fallback records the degradation and returns the declared fallback error for op.
func (c *Client) fallback(op Operation, reason domain.DegradationReason, cause error) error {
	now := c.now().UTC()

	c.mu.Lock()
	c.stats.Count++
	c.stats.LastUnavailableAt = &now
	c.stats.LastReason = reason
	c.stats.LastOperation = op.Name
	c.mu.Unlock()

	c.metrics.ObserveFallback(c.cfg.ServiceName, op.Name)
	c.logger.Warn("downstream call fell back",
		zap.String("operation", op.Name),
		zap.String("reason", string(reason)),
		zap.Error(cause),
	)

	if op.Read {
		return &domain.ServiceError{
			Kind:     domain.ErrorKindNotFound,
			Service:  c.cfg.ServiceName,
			Resource: op.Resource,
			Message:  fmt.Sprintf("%s could not be looked up while %s is degraded", op.Resource, c.cfg.ServiceName),
			Fallback: true,
			Reason:   reason,
			Err:      cause,
		}
	}

	return &domain.ServiceError{
		Kind:     domain.ErrorKindUnavailable,
		Service:  c.cfg.ServiceName,
		Resource: op.Resource,
		Message:  fmt.Sprintf("%s is temporarily unavailable, %s was not completed", c.cfg.ServiceName, op.Name),
		Fallback: true,
		Reason:   reason,
		Err:      cause,
	}
}

// Stats returns a copy of the fallback counters.
func (c *Client) Stats() FallbackStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	if stats.LastUnavailableAt != nil {
		at := *stats.LastUnavailableAt
		stats.LastUnavailableAt = &at
	}
	return stats
}

// Status reports the breaker state alongside the fallback counters.
func (c *Client) Status() Status {
	return Status{
		Service:      c.cfg.ServiceName,
		BaseURL:      c.cfg.BaseURL,
		BreakerState: c.breaker.State().String(),
		Fallbacks:    c.Stats(),
	}
}
