// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/telekom/account-notifier/pkg/config"
	"github.com/telekom/account-notifier/pkg/metrics"
	"github.com/telekom/account-notifier/pkg/system"
)

// hopHeaders are connection-scoped and never forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Route proxies every request under an upstream's path prefix. Transport
// errors and 5xx responses count as breaker failures and are answered with
// the upstream's fallback, as are requests rejected by an open breaker.
type Route struct {
	upstream Upstream
	target   *url.URL
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	log      *zap.SugaredLogger
}

// NewRoutes builds the account and notification routes from the gateway
// configuration.
func NewRoutes(cfg config.Gateway, log *zap.SugaredLogger) ([]*Route, error) {
	client := &http.Client{Timeout: cfg.UpstreamTimeout}
	users, err := NewRoute(UserService, cfg.AccountsURL, client, cfg.Breaker, log)
	if err != nil {
		return nil, err
	}
	notifications, err := NewRoute(NotificationService, cfg.NotificationsURL, client, cfg.Breaker, log)
	if err != nil {
		return nil, err
	}
	return []*Route{users, notifications}, nil
}

func NewRoute(up Upstream, target string, client *http.Client, bc config.Breaker, log *zap.SugaredLogger) (*Route, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s upstream url %q: %w", up.Key, target, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s upstream url %q must be absolute", up.Key, target)
	}

	failures := bc.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	r := &Route{
		upstream: up,
		target:   u,
		client:   client,
		log:      log.Named("gateway").With("service", up.Key),
	}
	r.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        up.Key,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A client hanging up says nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.log.Warnw("Circuit breaker state changed", "from", from.String(), "to", to.String())
			metrics.GatewayBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	metrics.GatewayBreakerState.WithLabelValues(up.Key).Set(float64(gobreaker.StateClosed))
	return r, nil
}

// BasePath is the upstream path below /api.
func (r *Route) BasePath() string { return strings.TrimPrefix(r.upstream.Path, "/api/") }

func (r *Route) Handlers() []gin.HandlerFunc { return nil }

func (r *Route) Register(rg *gin.RouterGroup) error {
	rg.Any("", r.forward)
	rg.Any("/*path", r.forward)
	return nil
}

// State reports the breaker state.
func (r *Route) State() gobreaker.State { return r.breaker.State() }

func (r *Route) forward(c *gin.Context) {
	log := system.GetReqLogger(c, r.log)

	out, err := r.outboundRequest(c)
	if err != nil {
		log.Errorw("Failed to build upstream request", "error", err)
		RespondFallback(c, r.upstream.Key)
		return
	}

	resp, err := r.breaker.Execute(func() (*http.Response, error) {
		resp, err := r.client.Do(out)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("upstream returned %d", resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		log.Warnw("Upstream unavailable, serving fallback", "error", err, "breaker", r.breaker.State().String())
		RespondFallback(c, r.upstream.Key)
		return
	}
	defer resp.Body.Close()

	header := c.Writer.Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	for _, h := range hopHeaders {
		header.Del(h)
	}
	c.Status(resp.StatusCode)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		log.Warnw("Failed to copy upstream response", "error", err)
	}
}

func (r *Route) outboundRequest(c *gin.Context) (*http.Request, error) {
	u := *r.target
	u.Path = strings.TrimSuffix(r.target.Path, "/") + c.Request.URL.Path
	u.RawQuery = c.Request.URL.RawQuery

	out, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, u.String(), c.Request.Body)
	if err != nil {
		return nil, err
	}
	out.ContentLength = c.Request.ContentLength
	out.Header = c.Request.Header.Clone()
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}
	out.Header.Set("X-Forwarded-For", c.ClientIP())
	out.Header.Set("X-Forwarded-Host", c.Request.Host)
	if id := c.Writer.Header().Get(system.RequestIDHeader); id != "" {
		out.Header.Set(system.RequestIDHeader, id)
	}
	return out, nil
}
