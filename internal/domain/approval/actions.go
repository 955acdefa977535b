package approval

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// ErrInvalidPayload marks action data that does not decode or validate
var ErrInvalidPayload = errors.New("invalid approval payload")

// FreezeCardAction is the payload of a FREEZE_CARD approval
type FreezeCardAction struct {
	Reason string `json:"reason" validate:"required,max=255"`
}

// DeleteCardAction is the payload of a DELETE_CARD approval
type DeleteCardAction struct {
	Reason string `json:"reason" validate:"max=255"`
}

// LimitSpec describes one card limit to install
type LimitSpec struct {
	Type      string `json:"limit_type" validate:"required,oneof=PER_TRANSACTION DAILY MONTHLY"`
	Amount    int64  `json:"amount" validate:"gt=0"`
	Threshold int    `json:"threshold" validate:"omitempty,min=1,max=100"`
}

// ChangeLimitsAction is the payload of a CHANGE_LIMITS approval. It replaces the card's limits.
type ChangeLimitsAction struct {
	Limits []LimitSpec `json:"limits" validate:"required,min=1,dive"`
}

// ChangeMerchantsAction is the payload of a CHANGE_MERCHANTS approval
type ChangeMerchantsAction struct {
	BlockedMCCs []string `json:"blocked_mccs" validate:"dive,len=4,numeric"`
}

// EnableInternationalAction is the payload of an ENABLE_INTERNATIONAL approval
type EnableInternationalAction struct {
	Enabled bool `json:"enabled"`
}

// CreateCardAction is the payload of a CREATE_CARD approval
type CreateCardAction struct {
	OwnerMembershipID uuid.UUID `json:"owner_membership_id" validate:"required"`
	InitialAmount     int64     `json:"initial_amount" validate:"gte=0"`
	Currency          string    `json:"currency" validate:"omitempty,len=3"`
}

// DecodeAction parses and validates the payload stored for action
func DecodeAction(action ActionType, data json.RawMessage) (any, error) {
	var target any
	switch action {
	case ActionFreezeCard:
		target = &FreezeCardAction{}
	case ActionDeleteCard:
		target = &DeleteCardAction{}
	case ActionChangeLimits:
		target = &ChangeLimitsAction{}
	case ActionChangeMerchants:
		target = &ChangeMerchantsAction{}
	case ActionEnableInternational:
		target = &EnableInternationalAction{Enabled: true}
	case ActionCreateCard:
		target = &CreateCardAction{}
	default:
		return nil, fmt.Errorf("unknown approval action %q", action)
	}

	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, target); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPayload, action, err)
		}
	}
	if err := validate.Struct(target); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPayload, action, err)
	}
	return target, nil
}

// EncodeAction validates payload and renders it for storage
func EncodeAction(payload any) (json.RawMessage, error) {
	if err := validate.Struct(payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode approval payload: %w", err)
	}
	return data, nil
}
