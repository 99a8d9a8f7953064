package http

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/harborpay/reconciler/internal/usecase"
	apperrors "github.com/harborpay/reconciler/pkg/errors"
)

type CheckoutHandler struct {
	checkout *usecase.CheckoutUsecase
	validate *validator.Validate
	logger   *zap.Logger
}

func NewCheckoutHandler(checkout *usecase.CheckoutUsecase, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		validate: validator.New(),
		logger:   logger,
	}
}

// CreateCheckout creates the order and its provider checkout preference.
func (h *CheckoutHandler) CreateCheckout(c echo.Context) error {
	var input usecase.CheckoutInput
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.validate.Struct(&input); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	result, err := h.checkout.CreateCheckout(c.Request().Context(), &input)
	if err != nil {
		h.logger.Error("Failed to create checkout",
			zap.String("provider", input.Provider),
			zap.Error(err))
		return apperrors.ToHTTPError(err)
	}

	return c.JSON(http.StatusCreated, result)
}
