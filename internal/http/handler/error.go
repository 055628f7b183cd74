package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"docsign/internal/http/middleware"
	"docsign/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_ID", "NotFound", "OtpInvalid")
// - message: human-readable safe message (no internal details)
// - details: offending keys, when the caller can fix them
func writeError(c *fiber.Ctx, status int, code, message string, details map[string][]string) error {
	res := errorPayload{
		RequestID: middleware.GetRequestID(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	return c.Status(status).JSON(res)
}

var kindStatus = map[service.Kind]int{
	service.KindValidation:   fiber.StatusUnprocessableEntity,
	service.KindNotFound:     fiber.StatusNotFound,
	service.KindUnauthorized: fiber.StatusUnauthorized,
	service.KindForbidden:    fiber.StatusForbidden,
	service.KindConflict:     fiber.StatusUnprocessableEntity,
	service.KindBusy:         fiber.StatusConflict,
}

// writeServiceError maps a service error to its status and envelope.
// Internal failures are logged and reported as 500, keeping the code of a
// *service.Error and hiding anything else.
func writeServiceError(c *fiber.Ctx, err error) error {
	var se *service.Error
	if errors.As(err, &se) {
		if status, ok := kindStatus[se.Kind]; ok {
			return writeError(c, status, se.Code, se.Message, se.Details)
		}
	}
	logFailure(c, err)
	if se != nil {
		return writeError(c, fiber.StatusInternalServerError, se.Code, se.Message, se.Details)
	}
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
}

func logFailure(c *fiber.Ctx, err error) {
	zap.L().Error("request failed",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request", nil)
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", "authentication required", nil)
		case fiber.StatusForbidden:
			return writeError(c, status, "FORBIDDEN", "access denied", nil)
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found", nil)
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed", nil)
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large", nil)
		default:
			return writeServiceError(c, err)
		}
	}
}
