package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/virtupay-ledger/internal/domain/card"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/domain/shared"
	"github.com/virtupay-ledger/internal/ledger"
)

// TransactionServiceImpl implements the TransactionService interface
type TransactionServiceImpl struct {
	cards       CardManager
	cardLedger  CardLedger
	coordinator Coordinator
	logger      *slog.Logger
}

// NewTransactionService creates a new card transaction service
func NewTransactionService(logger *slog.Logger, cards CardManager, cardLedger CardLedger, coordinator Coordinator) TransactionService {
	return &TransactionServiceImpl{
		cards:       cards,
		cardLedger:  cardLedger,
		coordinator: coordinator,
		logger:      logger,
	}
}

// Create authorizes a spend. The card owner may spend on their own card;
// anyone else needs at least Approver.
func (s *TransactionServiceImpl) Create(ctx context.Context, actor org.Actor, req ledger.CardTransactionRequest) (*card.Transaction, error) {
	c, err := s.cards.Get(ctx, actor, req.CardID)
	if err != nil {
		return nil, err
	}
	if !ownerOrRole(actor, c, org.RoleApprover) {
		return nil, shared.ErrUnauthorized
	}

	initiator := actor.MembershipID
	req.InitiatedBy = &initiator
	txn, err := s.coordinator.CreateCardTransaction(ctx, req)
	if err != nil {
		s.logger.Warn("Card transaction rejected",
			"card_id", req.CardID.String(),
			"amount", req.Amount,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("Card transaction created",
		"transaction_id", txn.ID.String(),
		"card_id", txn.CardID.String(),
		"amount", txn.Amount,
	)
	return txn, nil
}

// Get returns a transaction on a card of the actor's organization
func (s *TransactionServiceImpl) Get(ctx context.Context, actor org.Actor, transactionID uuid.UUID) (*card.Transaction, error) {
	txn, _, err := s.load(ctx, actor, transactionID)
	return txn, err
}

// ListByCard pages through a card's transactions, newest first
func (s *TransactionServiceImpl) ListByCard(ctx context.Context, actor org.Actor, cardID uuid.UUID, page, perPage int) ([]*card.Transaction, int64, error) {
	if !actor.HasRole(org.RoleAuditor) {
		return nil, 0, shared.ErrUnauthorized
	}
	if _, err := s.cards.Get(ctx, actor, cardID); err != nil {
		return nil, 0, err
	}
	return s.cardLedger.ListTransactions(ctx, cardID, perPage, (page-1)*perPage)
}

func (s *TransactionServiceImpl) Complete(ctx context.Context, actor org.Actor, transactionID uuid.UUID) (*card.Transaction, error) {
	if !actor.HasRole(org.RoleAdmin) {
		return nil, shared.ErrUnauthorized
	}
	if _, _, err := s.load(ctx, actor, transactionID); err != nil {
		return nil, err
	}
	return s.coordinator.CompleteTransaction(ctx, transactionID)
}

func (s *TransactionServiceImpl) Reverse(ctx context.Context, actor org.Actor, transactionID uuid.UUID, reason string) (*card.Transaction, error) {
	if !actor.HasRole(org.RoleAdmin) {
		return nil, shared.ErrUnauthorized
	}
	if _, _, err := s.load(ctx, actor, transactionID); err != nil {
		return nil, err
	}
	initiator := actor.MembershipID
	return s.coordinator.ReverseTransaction(ctx, transactionID, reason, &initiator)
}

// Dispute is open to the card owner and to Approver and above
func (s *TransactionServiceImpl) Dispute(ctx context.Context, actor org.Actor, transactionID uuid.UUID, reason string) (*card.Transaction, error) {
	_, c, err := s.load(ctx, actor, transactionID)
	if err != nil {
		return nil, err
	}
	if !ownerOrRole(actor, c, org.RoleApprover) {
		return nil, shared.ErrUnauthorized
	}
	return s.coordinator.DisputeTransaction(ctx, transactionID, reason)
}

// load fetches a transaction and checks its card belongs to the actor's organization
func (s *TransactionServiceImpl) load(ctx context.Context, actor org.Actor, transactionID uuid.UUID) (*card.Transaction, *card.Card, error) {
	if !actor.HasRole(org.RoleAuditor) {
		return nil, nil, shared.ErrUnauthorized
	}
	txn, err := s.cardLedger.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.cards.Get(ctx, actor, txn.CardID)
	if err != nil {
		return nil, nil, err
	}
	return txn, c, nil
}

func ownerOrRole(actor org.Actor, c *card.Card, required org.Role) bool {
	if actor.Role == org.RoleAuditor {
		return false
	}
	return c.OwnerMembershipID == actor.MembershipID || actor.HasRole(required)
}
