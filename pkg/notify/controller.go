package notify

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/account-notifier/pkg/events"
	"github.com/telekom/account-notifier/pkg/metrics"
	"github.com/telekom/account-notifier/pkg/system"
)

// HealthMessage is the plain text body of the health endpoint.
const HealthMessage = "Notification Service is running"

// Request is the body of POST /api/notifications/send.
type Request struct {
	Email     string `json:"email"`
	Operation string `json:"operation"`
	Name      string `json:"name"`
}

// Response is returned for every direct send, successful or not.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Controller serves the direct notification endpoint. Requests are handled
// synchronously on the request goroutine; there is no ordering relative to
// broker-driven notifications for the same account.
type Controller struct {
	notifier   *Notifier
	log        *zap.SugaredLogger
	middleware []gin.HandlerFunc
}

// NewController creates the controller. Middleware, e.g. a rate limiter, is
// applied to every route of the group.
func NewController(n *Notifier, log *zap.SugaredLogger, middleware ...gin.HandlerFunc) *Controller {
	return &Controller{notifier: n, log: log.Named("notifications"), middleware: middleware}
}

func (ctrl *Controller) BasePath() string { return "notifications" }

func (ctrl *Controller) Handlers() []gin.HandlerFunc { return ctrl.middleware }

func (ctrl *Controller) Register(rg *gin.RouterGroup) error {
	rg.POST("/send", ctrl.handleSend)
	rg.GET("/health", ctrl.handleHealth)
	return nil
}

func (ctrl *Controller) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, HealthMessage)
}

func (ctrl *Controller) handleSend(c *gin.Context) {
	log := system.GetReqLogger(c, ctrl.log)

	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnw("Invalid notification request body", "error", err)
		ctrl.respond(c, "invalid", http.StatusBadRequest, "Invalid request body")
		return
	}
	log.Infow("Received notification request", "email", req.Email, "operation", req.Operation)

	if req.Email == "" {
		ctrl.respond(c, "invalid", http.StatusBadRequest, "Email must not be empty")
		return
	}
	if req.Operation == "" {
		ctrl.respond(c, "invalid", http.StatusBadRequest, "Operation must not be empty")
		return
	}
	op, err := ParseOperation(req.Operation)
	if err != nil {
		ctrl.respond(c, "invalid", http.StatusBadRequest, err.Error())
		return
	}

	ev := events.NewLifecycleEvent(op.Kind(), 0, req.Email, req.Name, nil)
	if err := ctrl.notifier.Notify(c.Request.Context(), ev); err != nil {
		log.Errorw("Failed to send notification", "operation", op, "email", req.Email, "error", err)
		ctrl.respond(c, op.String(), http.StatusInternalServerError, "Error sending email: "+err.Error())
		return
	}

	switch op {
	case OperationDelete:
		ctrl.respond(c, op.String(), http.StatusOK, "Account deletion notification successfully sent to "+req.Email)
	default:
		ctrl.respond(c, op.String(), http.StatusOK, "Account creation notification successfully sent to "+req.Email)
	}
}

func (ctrl *Controller) respond(c *gin.Context, operation string, status int, message string) {
	metrics.DirectNotifications.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	c.JSON(status, Response{Success: status == http.StatusOK, Message: message})
}
