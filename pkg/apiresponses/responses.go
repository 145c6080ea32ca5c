/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package apiresponses

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIError is the standard error body.
type APIError struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
}

// ValidationError is returned when request fields fail validation.
// FieldErrors maps the JSON field name to a human-readable reason.
type ValidationError struct {
	APIError
	FieldErrors map[string]string `json:"fieldErrors"`
}

func newAPIError(status int, message string) APIError {
	return APIError{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
	}
}

// RespondError sends an APIError with the given status.
func RespondError(c *gin.Context, status int, message string) {
	c.JSON(status, newAPIError(status, message))
}

// RespondNotFound sends a 404 Not Found response.
func RespondNotFound(c *gin.Context, message string) {
	RespondError(c, http.StatusNotFound, message)
}

// RespondBadRequest sends a 400 Bad Request response.
// Use this for malformed JSON or invalid path and query parameters.
func RespondBadRequest(c *gin.Context, message string) {
	RespondError(c, http.StatusBadRequest, message)
}

// RespondValidationFailed sends a 400 response listing the failed fields.
func RespondValidationFailed(c *gin.Context, fieldErrors map[string]string) {
	body := ValidationError{
		APIError:    newAPIError(http.StatusBadRequest, "Invalid data"),
		FieldErrors: fieldErrors,
	}
	body.Error = "Validation Failed"
	c.JSON(http.StatusBadRequest, body)
}

// RespondConflict sends a 409 Conflict response.
// Use this when the request conflicts with current state (e.g., email already in use).
func RespondConflict(c *gin.Context, message string) {
	RespondError(c, http.StatusConflict, message)
}

// RespondInternalError sends a 500 Internal Server Error response.
// It logs the error with full details but returns a sanitized message to the client.
func RespondInternalError(c *gin.Context, operation string, err error, log *zap.SugaredLogger) {
	if log != nil {
		log.Errorw(fmt.Sprintf("Failed to %s", operation), "error", err)
	}
	RespondError(c, http.StatusInternalServerError, "An unexpected error occurred")
}

// RespondOK sends a 200 OK response with the given data.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// RespondCreated sends a 201 Created response with the given data.
func RespondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// RespondNoContent sends a 204 No Content response.
func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
