package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/domain/shared"
)

// TransactionType defines account ledger movements
type TransactionType string

const (
	TransactionTypeFunding    TransactionType = "FUNDING"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
)

// Transaction is the log entry written with every balance mutation
type Transaction struct {
	ID                       uuid.UUID                `json:"id"`
	BalanceID                uuid.UUID                `json:"account_balance_id"`
	Type                     TransactionType          `json:"type"`
	Amount                   int64                    `json:"amount"`
	BalanceBefore            int64                    `json:"balance_before"`
	BalanceAfter             int64                    `json:"balance_after"`
	Status                   shared.TransactionStatus `json:"status"`
	Reason                   string                   `json:"reason,omitempty"`
	ReferenceID              string                   `json:"reference_id,omitempty"`
	RelatedCardID            *uuid.UUID               `json:"related_card_id,omitempty"`
	RelatedCardTransactionID *uuid.UUID               `json:"related_card_transaction_id,omitempty"`
	InitiatedBy              *uuid.UUID               `json:"initiated_by,omitempty"`
	ReversalReason           string                   `json:"reversal_reason,omitempty"`
	CreatedAt                time.Time                `json:"created_at"`
	CompletedAt              *time.Time               `json:"completed_at,omitempty"`
	ReversedAt               *time.Time               `json:"reversed_at,omitempty"`
}

// newCompletedTransaction records a mutation that has already been applied to b
func newCompletedTransaction(b *Balance, t TransactionType, amount, before int64) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		ID:            uuid.New(),
		BalanceID:     b.ID,
		Type:          t,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  b.Available,
		Status:        shared.TransactionStatusCompleted,
		CreatedAt:     now,
		CompletedAt:   &now,
	}
}

// FundBalance credits b and returns the matching log entry
func FundBalance(b *Balance, amount int64) (*Transaction, error) {
	before := b.Available
	if err := b.Fund(amount); err != nil {
		return nil, err
	}
	return newCompletedTransaction(b, TransactionTypeFunding, amount, before), nil
}

// WithdrawBalance debits b and returns the matching log entry
func WithdrawBalance(b *Balance, amount int64) (*Transaction, error) {
	before := b.Available
	if err := b.Withdraw(amount); err != nil {
		return nil, err
	}
	return newCompletedTransaction(b, TransactionTypeWithdrawal, amount, before), nil
}

// IsReversible reports whether the entry may still be reversed
func (t *Transaction) IsReversible() bool {
	return t.Status == shared.TransactionStatusCompleted
}

// MarkReversed flips a completed entry to REVERSED
func (t *Transaction) MarkReversed(reason string) error {
	if !t.IsReversible() {
		return ErrNotReversible{TransactionID: t.ID, Status: t.Status}
	}
	now := time.Now().UTC()
	t.Status = shared.TransactionStatusReversed
	t.ReversalReason = reason
	t.ReversedAt = &now
	return nil
}

// Summary aggregates a balance and its log
type Summary struct {
	Available           int64  `json:"available_balance"`
	TotalFunded         int64  `json:"total_funded"`
	TotalWithdrawn      int64  `json:"total_withdrawn"`
	Currency            string `json:"currency"`
	DistinctCardsFunded int    `json:"distinct_cards_funded"`
	ActiveTransactions  int    `json:"active_transactions"`
}

// ListFilter narrows a transaction listing; results are newest first
type ListFilter struct {
	Type   *TransactionType
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
