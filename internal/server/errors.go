package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/oakline/storefront/internal/checkout/domain"
	entitlementdomain "github.com/oakline/storefront/internal/entitlement/domain"
	guildconfigdomain "github.com/oakline/storefront/internal/guildconfig/domain"
	"github.com/oakline/storefront/internal/money"
	productdomain "github.com/oakline/storefront/internal/product/domain"
	"github.com/oakline/storefront/internal/providers/stripe"
	refunddomain "github.com/oakline/storefront/internal/refund/domain"
	ticketdomain "github.com/oakline/storefront/internal/ticket/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, ticketdomain.ErrUnauthorized),
		errors.Is(err, refunddomain.ErrUnauthorized):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, refunddomain.ErrAlreadyDecided),
		errors.Is(err, entitlementdomain.ErrLifetimeOwned),
		errors.Is(err, entitlementdomain.ErrAlreadyOwned),
		errors.Is(err, entitlementdomain.ErrUpgradeSourcePlan),
		errors.Is(err, entitlementdomain.ErrUpgradeTargetPlan),
		errors.Is(err, entitlementdomain.ErrSubscriptionPresent):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case errors.Is(err, checkoutdomain.ErrCooldownActive):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "cooldown_active",
			Message: "checkout cooldown active",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, stripe.ErrInvalidSignature):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_signature",
			Message: "invalid signature",
		}
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, productdomain.ErrInvalidGuild),
		errors.Is(err, productdomain.ErrInvalidName),
		errors.Is(err, productdomain.ErrInvalidRole),
		errors.Is(err, productdomain.ErrInvalidID),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrInvalidPlan),
		errors.Is(err, checkoutdomain.ErrInvalidGuild),
		errors.Is(err, checkoutdomain.ErrInvalidUser),
		errors.Is(err, checkoutdomain.ErrPlanUnavailable),
		errors.Is(err, checkoutdomain.ErrAmountBelowMinimum),
		errors.Is(err, ticketdomain.ErrInvalidGuild),
		errors.Is(err, ticketdomain.ErrInvalidOwner),
		errors.Is(err, ticketdomain.ErrInvalidKind),
		errors.Is(err, ticketdomain.ErrNotOpen),
		errors.Is(err, refunddomain.ErrPurchaseNotPaid),
		errors.Is(err, refunddomain.ErrWindowExpired),
		errors.Is(err, guildconfigdomain.ErrInvalidGuild),
		errors.Is(err, guildconfigdomain.ErrEmptyPatch):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, ticketdomain.ErrNotFound),
		errors.Is(err, refunddomain.ErrNotFound),
		errors.Is(err, refunddomain.ErrPurchaseNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	if errors.Is(err, refunddomain.ErrAlreadyDecided) {
		return "refund request already decided"
	}
	return err.Error()
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
