package handlers

import (
	"github.com/bookcircle/backend/internal/apperr"
	"github.com/bookcircle/backend/internal/http/dto"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// statusForCode maps operation failure codes onto HTTP statuses.
func statusForCode(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation:
		return fiber.StatusBadRequest
	case apperr.CodeForbidden:
		return fiber.StatusForbidden
	case apperr.CodeNotFound:
		return fiber.StatusNotFound
	case apperr.CodeInvalidState, apperr.CodeExpired, apperr.CodeInsufficientCredit:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	code := apperr.CodeOf(err)
	status := statusForCode(code)
	message := err.Error()
	if status == fiber.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		message = "internal error"
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: message, Code: string(code)})
}
