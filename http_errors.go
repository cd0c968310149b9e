package defects

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Detail   string `json:"detail"`
	TextCode string `json:"code,omitempty"`
}

// ErrorHandler renders errors as {"detail": message} using the error's HTTP code
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = normalizeLogger(logger)
	return func(c *fiber.Ctx, err error) error {
		status, body := errorResponse(err)

		if status >= http.StatusInternalServerError {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				logger.Error("request failed",
					"path", c.Path(),
					"error", err,
					"category", richErr.Category,
					"details", print.MaybePrettyJSON(richErr.Metadata),
				)
			} else {
				logger.Error("request failed", "path", c.Path(), "error", err)
			}
		} else {
			logger.Debug("request rejected", "path", c.Path(), "status", status, "error", err)
		}

		return c.Status(status).JSON(body)
	}
}

func errorResponse(err error) (int, ErrorResponse) {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code, ErrorResponse{Detail: fiberErr.Message}
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError, ErrorResponse{Detail: "internal server error"}
	}

	status := richErr.Code
	if status == 0 {
		status = statusForCategory(richErr)
	}

	if status >= http.StatusInternalServerError && richErr.TextCode != TextCodeEmailSendFailed {
		return status, ErrorResponse{Detail: "internal server error"}
	}

	return status, ErrorResponse{Detail: richErr.Message, TextCode: richErr.TextCode}
}

func statusForCategory(richErr *goerrors.Error) int {
	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput, goerrors.CategoryConflict:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func statusForError(err error) int {
	status, _ := errorResponse(err)
	return status
}
