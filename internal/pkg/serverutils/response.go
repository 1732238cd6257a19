package serverutils

import (
	"errors"

	"marketplace-be/internal/pkg/apperror"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

func SuccessResponse[T any](message string, data T) APIResponse[T] {
	return APIResponse[T]{
		Success: true,
		Message: message,
		Data:    data,
	}
}

type errorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorHandlerMiddleware maps errors returned by downstream handlers to
// coded JSON responses. Typed application errors keep their status and
// code; anything else becomes a 500 with the detail withheld.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		if appErr, ok := apperror.From(err); ok {
			return ctx.Status(appErr.Status).JSON(errorBody{
				Success: false,
				Code:    appErr.Code,
				Message: appErr.Message,
			})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(errorBody{
				Success: false,
				Code:    "HTTP_ERROR",
				Message: fiberErr.Message,
			})
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(errorBody{
			Success: false,
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		})
	}
}

var validate = validator.New()

// ValidateRequest runs struct validation on an already-parsed request body,
// returning a typed validation error the error middleware can map.
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperror.NewValidation("Field '" + verrs[0].Field() + "' failed on '" + verrs[0].Tag() + "' validation")
		}
		return apperror.NewValidation("Invalid request payload")
	}
	return nil
}
