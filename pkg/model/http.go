package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// HTTPConfig configures the remote inference server backend.
type HTTPConfig struct {
	// BaseURL of the inference server, e.g. http://localhost:5000.
	BaseURL string
	// Timeout bounds each request.
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// HTTPLoader talks to an inference server that hosts the model and exposes
// one POST endpoint per operation. Each endpoint accepts the same JSON
// request and answers with the same envelope as the subprocess worker.
type HTTPLoader struct {
	cfg     HTTPConfig
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewHTTPLoader creates an HTTP backend loader.
func NewHTTPLoader(cfg HTTPConfig, logger *logrus.Logger) *HTTPLoader {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:5000"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	l := &HTTPLoader{
		cfg:    cfg,
		client: resty.New().SetTimeout(cfg.Timeout),
		logger: logger,
	}
	l.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "inference-server",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// A caller that gave up says nothing about the server.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
	return l
}

// Name implements Loader.
func (l *HTTPLoader) Name() string {
	return string(BackendHTTP)
}

// Load asks the server to load the artifact and returns a handle bound to it.
func (l *HTTPLoader) Load(ctx context.Context, artifact, cacheDir string) (*Handle, error) {
	r := &remote{call: l.call}
	if err := r.do(ctx, workerRequest{Op: opLoad, Model: artifact, CacheDir: cacheDir}, nil); err != nil {
		return nil, err
	}
	l.logger.WithFields(logrus.Fields{
		"artifact": artifact,
		"url":      l.cfg.BaseURL,
	}).Info("Inference server ready")
	return NewHandle(artifact, l.Name(), r, r, nil), nil
}

// call posts one operation. Transport errors and non-2xx statuses count
// against the breaker; an error envelope or a cancelled caller does not.
func (l *HTTPLoader) call(ctx context.Context, req workerRequest) (workerResponse, error) {
	url := strings.TrimRight(l.cfg.BaseURL, "/") + "/" + req.Op

	out, err := l.breaker.Execute(func() (interface{}, error) {
		var resp workerResponse
		rr, err := l.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(req).
			SetResult(&resp).
			Post(url)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("inference server %s: %w", req.Op, ctxErr)
			}
			return nil, err
		}
		if rr.IsError() {
			return nil, fmt.Errorf("inference server %s: %s; body: %s", req.Op, rr.Status(), rr.String())
		}
		return resp, nil
	})
	if err != nil {
		return workerResponse{}, err
	}
	return out.(workerResponse), nil
}
