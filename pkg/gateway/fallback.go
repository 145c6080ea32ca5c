// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/telekom/account-notifier/pkg/metrics"
)

// StatusServiceUnavailable is the symbolic status carried in fallback bodies.
const StatusServiceUnavailable = "SERVICE_UNAVAILABLE"

// Upstream describes a service behind the gateway.
type Upstream struct {
	// Key is the service identifier used in /fallback/:service.
	Key string
	// DisplayName is used in the fallback message.
	DisplayName string
	// Path is the public path prefix routed to the service.
	Path string
}

var (
	UserService         = Upstream{Key: "user-service", DisplayName: "User Service", Path: "/api/users"}
	NotificationService = Upstream{Key: "notification-service", DisplayName: "Notification Service", Path: "/api/notifications"}
)

var knownUpstreams = map[string]Upstream{
	UserService.Key:         UserService,
	NotificationService.Key: NotificationService,
}

// Fallback is the body returned when an upstream cannot serve a request.
type Fallback struct {
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}

// NewFallback builds the fallback body for service. Unknown services use the
// raw service name and the fallback path itself.
func NewFallback(service string) Fallback {
	up, ok := knownUpstreams[service]
	if !ok {
		up = Upstream{Key: service, DisplayName: service, Path: "/fallback/" + service}
	}
	return Fallback{
		Timestamp: time.Now().UTC(),
		Status:    StatusServiceUnavailable,
		Error:     http.StatusText(http.StatusServiceUnavailable),
		Message:   fmt.Sprintf("%s is temporarily unavailable. Please try again later.", up.DisplayName),
		Path:      up.Path,
	}
}

// RespondFallback writes a 503 with the fallback body for service.
func RespondFallback(c *gin.Context, service string) {
	metrics.GatewayFallbacks.WithLabelValues(service).Inc()
	c.JSON(http.StatusServiceUnavailable, NewFallback(service))
}

// FallbackController serves /fallback/:service.
type FallbackController struct{}

func NewFallbackController() *FallbackController { return &FallbackController{} }

func (FallbackController) BasePath() string { return "fallback" }

func (FallbackController) Handlers() []gin.HandlerFunc { return nil }

func (ctrl FallbackController) Register(rg *gin.RouterGroup) error {
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		rg.Handle(method, "/:service", ctrl.handle)
	}
	return nil
}

func (FallbackController) handle(c *gin.Context) {
	RespondFallback(c, c.Param("service"))
}
