package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/virtupay-ledger/internal/api_gateway/service"
	"github.com/virtupay-ledger/internal/domain/account"
	"github.com/virtupay-ledger/internal/domain/approval"
	"github.com/virtupay-ledger/internal/domain/card"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// respondError maps a service error onto the HTTP error envelope. Anything it does
// not recognise is logged and reported as a 500.
func respondError(c *gin.Context, logger *slog.Logger, op string, err error) {
	var (
		validationErrs validator.ValidationErrors
		limitErr       card.ErrLimitExceeded
		fundsErr       shared.ErrInsufficientFunds
		transitionErr  card.ErrInvalidTransition
	)

	switch {
	case errors.Is(err, shared.ErrReconciliationRequired):
		logger.Error("Ledgers need reconciliation", "operation", op, "error", err, "correlation_id", correlationID(c))
		RespondWithError(c, http.StatusInternalServerError, "RECONCILIATION_REQUIRED",
			"The operation failed and could not be fully undone; it has been flagged for reconciliation")

	case errors.Is(err, shared.ErrUnauthorized):
		RespondForbidden(c, "You are not allowed to perform this action")

	case errors.As(err, &validationErrs),
		errors.Is(err, approval.ErrInvalidPayload),
		errors.Is(err, approval.ErrUnknownAction),
		errors.Is(err, org.ErrInvalidOrganization),
		errors.Is(err, org.ErrInvalidMembership),
		errors.Is(err, org.ErrInvalidDepartment),
		errors.Is(err, org.ErrInvalidManager),
		errors.Is(err, shared.ErrInvalidAmount),
		errors.Is(err, shared.ErrInvalidCurrency),
		errors.Is(err, service.ErrUnsupportedFormat):
		RespondBadRequest(c, err.Error())

	case errors.Is(err, card.ErrCardNotFound{}):
		RespondNotFound(c, "Card not found")
	case errors.Is(err, card.ErrBalanceNotFound{}):
		RespondNotFound(c, "Card balance not found")
	case errors.Is(err, card.ErrTransactionNotFound{}):
		RespondNotFound(c, "Card transaction not found")
	case errors.Is(err, account.ErrAccountNotFound{}):
		RespondNotFound(c, "Account balance not found")
	case errors.Is(err, account.ErrTransactionNotFound{}):
		RespondNotFound(c, "Account transaction not found")
	case errors.Is(err, approval.ErrApprovalNotFound{}):
		RespondNotFound(c, "Approval not found")
	case errors.Is(err, org.ErrMembershipNotFound{}):
		RespondNotFound(c, "Membership not found")
	case errors.Is(err, org.ErrOrganizationNotFound{}):
		RespondNotFound(c, "Organization not found")
	case errors.Is(err, org.ErrDepartmentNotFound{}):
		RespondNotFound(c, "Department not found")

	case errors.As(err, &fundsErr):
		RespondUnprocessable(c, "INSUFFICIENT_FUNDS", fundsErr.Error())
	case errors.As(err, &limitErr):
		RespondUnprocessable(c, "LIMIT_EXCEEDED", limitErr.Error())
	case errors.Is(err, card.ErrMerchantBlocked):
		RespondUnprocessable(c, "MERCHANT_BLOCKED", err.Error())
	case errors.Is(err, card.ErrInternationalOff):
		RespondUnprocessable(c, "INTERNATIONAL_DISABLED", err.Error())
	case errors.Is(err, card.ErrCardNotActive),
		errors.Is(err, card.ErrCardNotFrozen),
		errors.Is(err, card.ErrCardCancelled):
		RespondUnprocessable(c, "CARD_STATE", err.Error())
	case errors.Is(err, card.ErrNotDisputable), errors.As(err, &transitionErr):
		RespondUnprocessable(c, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, approval.ErrNotPending),
		errors.Is(err, approval.ErrNotApproved),
		errors.Is(err, approval.ErrAlreadyApplied):
		RespondUnprocessable(c, "APPROVAL_STATE", err.Error())

	case errors.Is(err, org.ErrLastOwner), errors.Is(err, org.ErrMembershipInactive):
		RespondUnprocessable(c, "MEMBERSHIP_STATE", err.Error())
	case errors.Is(err, org.ErrDepartmentDeleted):
		RespondUnprocessable(c, "DEPARTMENT_STATE", err.Error())
	case errors.Is(err, org.ErrMembershipExists{}):
		RespondConflict(c, err.Error())

	case isConcurrentModification(err), errors.Is(err, card.ErrInsufficientHold{}):
		RespondConflict(c, "The resource was modified concurrently, please retry")

	default:
		logger.Error("Request failed", "operation", op, "error", err, "correlation_id", correlationID(c))
		RespondInternalError(c)
	}
}

func isConcurrentModification(err error) bool {
	var (
		accountErr  account.ErrConcurrentModification
		cardErr     card.ErrConcurrentModification
		approvalErr approval.ErrConcurrentModification
	)
	return errors.As(err, &accountErr) || errors.As(err, &cardErr) || errors.As(err, &approvalErr)
}
