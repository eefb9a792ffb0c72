package response

import "github.com/gofiber/fiber/v2"

// Error codes
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotAllowed      = "NOT_ALLOWED"
	CodeNotFound        = "NOT_FOUND"
	CodeRemoteError     = "REMOTE_ERROR"
	CodeStreamError     = "STREAM_ERROR"
	CodeServiceError    = "SERVICE_ERROR"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

// NotAllowed covers stage-gate violations and concurrent triggers.
func NotAllowed(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, CodeNotAllowed, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

// RemoteError reports a failed call to the Yapper API, carrying the remote
// status code as detail.
func RemoteError(c *fiber.Ctx, remoteStatus int, message string) error {
	return Error(c, fiber.StatusBadGateway, CodeRemoteError, message, fiber.Map{
		"remote_status": remoteStatus,
	})
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
