package accounts

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/telekom/account-notifier/pkg/apiresponses"
	"github.com/telekom/account-notifier/pkg/system"
)

// Link is a hypermedia reference in a response.
type Link struct {
	Href string `json:"href"`
}

// Resource is an account with its links.
type Resource struct {
	Account
	Links map[string]Link `json:"_links"`
}

// Collection is the list response.
type Collection struct {
	Embedded struct {
		Users []Resource `json:"users"`
	} `json:"_embedded"`
	Links map[string]Link `json:"_links"`
}

// Controller serves /api/users.
type Controller struct {
	service  *Service
	validate *validator.Validate
	log      *zap.SugaredLogger
	basePath string
}

func NewController(service *Service, log *zap.SugaredLogger) *Controller {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Controller{
		service:  service,
		validate: v,
		log:      log.Named("accounts-api"),
		basePath: "/api/users",
	}
}

func (ctrl *Controller) BasePath() string { return "users" }

func (ctrl *Controller) Handlers() []gin.HandlerFunc { return nil }

func (ctrl *Controller) Register(rg *gin.RouterGroup) error {
	rg.POST("", ctrl.handleCreate)
	rg.GET("", ctrl.handleList)
	rg.GET("/count", ctrl.handleCount)
	rg.GET("/by-email", ctrl.handleGetByEmail)
	rg.GET("/:id", ctrl.handleGet)
	rg.PUT("/:id", ctrl.handleUpdate)
	rg.PATCH("/:id", ctrl.handleUpdate)
	rg.DELETE("/:id", ctrl.handleDelete)
	return nil
}

func (ctrl *Controller) handleCreate(c *gin.Context) {
	log := system.GetReqLogger(c, ctrl.log)

	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		apiresponses.RespondBadRequest(c, "Invalid request body")
		return
	}
	if fields := ctrl.validationErrors(in); fields != nil {
		apiresponses.RespondValidationFailed(c, fields)
		return
	}

	a, err := ctrl.service.Create(c.Request.Context(), in)
	if err != nil {
		ctrl.respondServiceError(c, log, "create account", err)
		return
	}
	apiresponses.RespondCreated(c, ctrl.resource(a))
}

func (ctrl *Controller) handleList(c *gin.Context) {
	log := system.GetReqLogger(c, ctrl.log)

	accounts, err := ctrl.service.List(c.Request.Context())
	if err != nil {
		ctrl.respondServiceError(c, log, "list accounts", err)
		return
	}

	var out Collection
	out.Embedded.Users = make([]Resource, 0, len(accounts))
	for _, a := range accounts {
		out.Embedded.Users = append(out.Embedded.Users, ctrl.resource(a))
	}
	out.Links = map[string]Link{
		"self":   {Href: ctrl.basePath},
		"create": {Href: ctrl.basePath},
		"count":  {Href: ctrl.basePath + "/count"},
	}
	apiresponses.RespondOK(c, out)
}

func (ctrl *Controller) handleCount(c *gin.Context) {
	n, err := ctrl.service.Count(c.Request.Context())
	if err != nil {
		ctrl.respondServiceError(c, system.GetReqLogger(c, ctrl.log), "count accounts", err)
		return
	}
	apiresponses.RespondOK(c, n)
}

func (ctrl *Controller) handleGetByEmail(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		apiresponses.RespondBadRequest(c, "Query parameter email is required")
		return
	}
	a, err := ctrl.service.GetByEmail(c.Request.Context(), email)
	if err != nil {
		ctrl.respondServiceError(c, system.GetReqLogger(c, ctrl.log), "find account by email", err)
		return
	}
	res := ctrl.resource(a)
	res.Links["user"] = res.Links["self"]
	res.Links["self"] = Link{Href: ctrl.basePath + "/by-email?email=" + email}
	apiresponses.RespondOK(c, res)
}

func (ctrl *Controller) handleGet(c *gin.Context) {
	id, ok := ctrl.pathID(c)
	if !ok {
		return
	}
	a, err := ctrl.service.Get(c.Request.Context(), id)
	if err != nil {
		ctrl.respondServiceError(c, system.GetReqLogger(c, ctrl.log), "get account", err)
		return
	}
	apiresponses.RespondOK(c, ctrl.resource(a))
}

func (ctrl *Controller) handleUpdate(c *gin.Context) {
	id, ok := ctrl.pathID(c)
	if !ok {
		return
	}
	var in UpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		apiresponses.RespondBadRequest(c, "Invalid request body")
		return
	}
	if fields := ctrl.validationErrors(in); fields != nil {
		apiresponses.RespondValidationFailed(c, fields)
		return
	}

	a, err := ctrl.service.Update(c.Request.Context(), id, in)
	if err != nil {
		ctrl.respondServiceError(c, system.GetReqLogger(c, ctrl.log), "update account", err)
		return
	}
	apiresponses.RespondOK(c, ctrl.resource(a))
}

func (ctrl *Controller) handleDelete(c *gin.Context) {
	id, ok := ctrl.pathID(c)
	if !ok {
		return
	}
	if err := ctrl.service.Delete(c.Request.Context(), id); err != nil {
		ctrl.respondServiceError(c, system.GetReqLogger(c, ctrl.log), "delete account", err)
		return
	}
	apiresponses.RespondNoContent(c)
}

func (ctrl *Controller) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		apiresponses.RespondBadRequest(c, fmt.Sprintf("Invalid account id: %s", c.Param("id")))
		return 0, false
	}
	return id, true
}

func (ctrl *Controller) resource(a Account) Resource {
	self := fmt.Sprintf("%s/%d", ctrl.basePath, a.ID)
	return Resource{
		Account: a,
		Links: map[string]Link{
			"self":   {Href: self},
			"update": {Href: self},
			"delete": {Href: self},
			"users":  {Href: ctrl.basePath},
		},
	}
}

func (ctrl *Controller) respondServiceError(c *gin.Context, log *zap.SugaredLogger, operation string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		log.Infow("Account not found", "error", err)
		apiresponses.RespondNotFound(c, err.Error())
	case errors.Is(err, ErrEmailTaken):
		log.Infow("Account email conflict", "error", err)
		apiresponses.RespondConflict(c, err.Error())
	default:
		apiresponses.RespondInternalError(c, operation, err, log)
	}
}

// validationErrors returns field name to message for every failed rule, or
// nil when v is valid.
func (ctrl *Controller) validationErrors(v any) map[string]string {
	err := ctrl.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"_": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "name":
		if fe.Tag() == "required" {
			return "Name must not be empty"
		}
		return "Name must be between 2 and 30 characters"
	case "email":
		switch fe.Tag() {
		case "required":
			return "Email must not be empty"
		case "email":
			return "Invalid email format"
		default:
			return "Email must be between 5 and 50 characters"
		}
	case "age":
		if fe.Tag() == "min" {
			return "Age must not be negative"
		}
		return "Age must not be greater than 110"
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}
