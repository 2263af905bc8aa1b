package response

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/omoinjm/njmtech-mail-oauth-api/pkg/errors"
)

// ErrorHandler is the Fiber error handler that converts errors to the
// standard response format. Provider error bodies never reach the caller;
// only the AppError code, message and details do.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		details := make([]string, 0)
		if appErr.Details != nil {
			switch d := appErr.Details.(type) {
			case string:
				details = append(details, d)
			case []string:
				details = d
			}
		}

		return c.Status(appErr.HTTPStatus).JSON(Response{
			Error: &ErrorBody{
				Code:    appErr.Code,
				Message: appErr.Message,
				Details: details,
			},
			Meta: buildMeta(c),
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(Response{
			Error: &ErrorBody{
				Code:    httpStatusToErrorCode(fiberErr.Code),
				Message: fiberErr.Message,
			},
			Meta: buildMeta(c),
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(Response{
		Error: &ErrorBody{
			Code:    "INTERNAL_ERROR",
			Message: "An unexpected error occurred",
		},
		Meta: buildMeta(c),
	})
}

func httpStatusToErrorCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusTooManyRequests:
		return "RATE_LIMITED"
	case fiber.StatusBadGateway:
		return "BAD_GATEWAY"
	case fiber.StatusInternalServerError:
		return "INTERNAL_ERROR"
	case fiber.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}
