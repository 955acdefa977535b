package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/virtupay-ledger/internal/domain/account"
	"github.com/virtupay-ledger/internal/domain/approval"
	"github.com/virtupay-ledger/internal/domain/card"
	"github.com/virtupay-ledger/internal/domain/notification"
	"github.com/virtupay-ledger/internal/domain/org"
	"github.com/virtupay-ledger/internal/domain/outbox"
	"github.com/virtupay-ledger/internal/domain/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory database shared by the fake repositories. Rows read
// through a Lock method stay locked until the memTx transaction ends, and a failed
// transaction undoes its own writes.
type memStore struct {
	mu sync.Mutex

	balances     map[uuid.UUID]account.Balance
	accountTxns  map[uuid.UUID]account.Transaction
	cards        map[uuid.UUID]card.Card
	limits       map[uuid.UUID][]card.Limit
	cardBalances map[uuid.UUID]card.Balance // keyed by card id
	cardTxns     map[uuid.UUID]card.Transaction
	approvals    map[uuid.UUID]approval.Approval
	members      map[uuid.UUID]org.Membership
	orgs         map[uuid.UUID]org.Organization
	departments  map[uuid.UUID]org.Department
	outbox       []outbox.Message
	outboxSeq    int64

	rowLocks map[uuid.UUID]*sync.Mutex

	// failOn makes the named operation fail once with err
	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		balances:     map[uuid.UUID]account.Balance{},
		accountTxns:  map[uuid.UUID]account.Transaction{},
		cards:        map[uuid.UUID]card.Card{},
		limits:       map[uuid.UUID][]card.Limit{},
		cardBalances: map[uuid.UUID]card.Balance{},
		cardTxns:     map[uuid.UUID]card.Transaction{},
		approvals:    map[uuid.UUID]approval.Approval{},
		members:      map[uuid.UUID]org.Membership{},
		orgs:         map[uuid.UUID]org.Organization{},
		departments:  map[uuid.UUID]org.Department{},
		rowLocks:     map[uuid.UUID]*sync.Mutex{},
		failOn:       map[string]error{},
	}
}

func (s *memStore) fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[op] = err
}

// injected must be called with mu held
func (s *memStore) injected(op string) error {
	if err, ok := s.failOn[op]; ok {
		delete(s.failOn, op)
		return err
	}
	return nil
}

func (s *memStore) outboxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outbox)
}

// memTxHandle is the pgx.Tx handed to the fake repositories. Only its row
// locks and undo journal are used.
type memTxHandle struct {
	pgx.Tx
	store *memStore
	held  map[uuid.UUID]*sync.Mutex
	undo  []func()
}

func handleOf(tx pgx.Tx) *memTxHandle {
	h, _ := tx.(*memTxHandle)
	return h
}

// lock blocks until the row is free. It must be called without the store mutex held.
func (h *memTxHandle) lock(id uuid.UUID) {
	if h == nil {
		return
	}
	if _, ok := h.held[id]; ok {
		return
	}
	h.store.mu.Lock()
	l, ok := h.store.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		h.store.rowLocks[id] = l
	}
	h.store.mu.Unlock()

	l.Lock()
	h.held[id] = l
}

// journal records how to undo a write to m[k]. It must be called with the store mutex held.
func journal[K comparable, V any](h *memTxHandle, m map[K]V, k K) {
	if h == nil {
		return
	}
	old, existed := m[k]
	h.undo = append(h.undo, func() {
		if existed {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
}

func (h *memTxHandle) finish(failed bool) {
	if failed {
		h.store.mu.Lock()
		for i := len(h.undo) - 1; i >= 0; i-- {
			h.undo[i]()
		}
		h.store.mu.Unlock()
	}
	for _, l := range h.held {
		l.Unlock()
	}
}

type memTx struct {
	store *memStore
}

func (m *memTx) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	h := &memTxHandle{store: m.store, held: map[uuid.UUID]*sync.Mutex{}}
	defer func() { h.finish(err != nil) }()
	return fn(h)
}

// account.Repository

type memAccounts struct {
	s  *memStore
	tx *memTxHandle
}

func (r memAccounts) WithTx(tx pgx.Tx) account.Repository {
	return memAccounts{s: r.s, tx: handleOf(tx)}
}

func (r memAccounts) CreateIfNotExists(_ context.Context, b *account.Balance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.balances {
		if sameScope(existing.Scope(), b.Scope()) {
			return nil
		}
	}
	journal(r.tx, r.s.balances, b.ID)
	r.s.balances[b.ID] = *b
	return nil
}

func sameScope(a, b account.Scope) bool {
	if a.OrganizationID != b.OrganizationID {
		return false
	}
	if a.MembershipID == nil || b.MembershipID == nil {
		return a.MembershipID == nil && b.MembershipID == nil
	}
	return *a.MembershipID == *b.MembershipID
}

func (r memAccounts) GetByScope(_ context.Context, scope account.Scope) (*account.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.balances {
		if sameScope(b.Scope(), scope) {
			return &b, nil
		}
	}
	return nil, account.ErrAccountNotFound{OrganizationID: scope.OrganizationID}
}

func (r memAccounts) LockForUpdate(ctx context.Context, scope account.Scope) (*account.Balance, error) {
	b, err := r.GetByScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	return r.LockByID(ctx, b.ID)
}

func (r memAccounts) LockByID(_ context.Context, id uuid.UUID) (*account.Balance, error) {
	r.tx.lock(id)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.balances[id]
	if !ok {
		return nil, account.ErrAccountNotFound{}
	}
	return &b, nil
}

func (r memAccounts) Update(_ context.Context, b *account.Balance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("account.update"); err != nil {
		return err
	}
	stored, ok := r.s.balances[b.ID]
	if !ok || stored.Version != b.Version-1 {
		return account.ErrConcurrentModification{BalanceID: b.ID}
	}
	journal(r.tx, r.s.balances, b.ID)
	r.s.balances[b.ID] = *b
	return nil
}

func (r memAccounts) CreateTransaction(_ context.Context, t *account.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("account.create_transaction"); err != nil {
		return err
	}
	journal(r.tx, r.s.accountTxns, t.ID)
	r.s.accountTxns[t.ID] = *t
	return nil
}

func (r memAccounts) LockTransactionForUpdate(_ context.Context, id uuid.UUID) (*account.Transaction, error) {
	r.tx.lock(id)
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.accountTxns[id]
	if !ok {
		return nil, account.ErrTransactionNotFound{TransactionID: id}
	}
	return &t, nil
}

func (r memAccounts) UpdateTransaction(_ context.Context, t *account.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	journal(r.tx, r.s.accountTxns, t.ID)
	r.s.accountTxns[t.ID] = *t
	return nil
}

func (r memAccounts) ListTransactions(_ context.Context, balanceID uuid.UUID, f account.ListFilter) ([]*account.Transaction, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*account.Transaction
	for _, t := range r.s.accountTxns {
		if t.BalanceID != balanceID || (f.Type != nil && t.Type != *f.Type) {
			continue
		}
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r memAccounts) CountActivity(_ context.Context, balanceID uuid.UUID) (int, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cards := map[uuid.UUID]struct{}{}
	pending := 0
	for _, t := range r.s.accountTxns {
		if t.BalanceID != balanceID {
			continue
		}
		if t.Status == shared.TransactionStatusCompleted && t.RelatedCardID != nil {
			cards[*t.RelatedCardID] = struct{}{}
		}
		if t.Status == shared.TransactionStatusPending {
			pending++
		}
	}
	return len(cards), pending, nil
}

// card.Repository

type memCards struct {
	s  *memStore
	tx *memTxHandle
}

func (r memCards) WithTx(tx pgx.Tx) card.Repository { return memCards{s: r.s, tx: handleOf(tx)} }

func (r memCards) Create(_ context.Context, c *card.Card) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	journal(r.tx, r.s.cards, c.ID)
	r.s.cards[c.ID] = *c
	return nil
}

func (r memCards) GetByID(_ context.Context, id uuid.UUID) (*card.Card, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cards[id]
	if !ok {
		return nil, card.ErrCardNotFound{CardID: id}
	}
	return &c, nil
}

func (r memCards) LockForUpdate(ctx context.Context, id uuid.UUID) (*card.Card, error) {
	r.tx.lock(id)
	return r.GetByID(ctx, id)
}

func (r memCards) Update(_ context.Context, c *card.Card) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.cards[c.ID]
	if !ok || stored.Version != c.Version-1 {
		return card.ErrConcurrentModification{ID: c.ID}
	}
	journal(r.tx, r.s.cards, c.ID)
	r.s.cards[c.ID] = *c
	return nil
}

func (r memCards) ListByOrganization(_ context.Context, orgID uuid.UUID, _, _ int) ([]*card.Card, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*card.Card
	for _, c := range r.s.cards {
		if c.OrganizationID == orgID {
			out = append(out, &c)
		}
	}
	return out, int64(len(out)), nil
}

func (r memCards) ListLimits(_ context.Context, cardID uuid.UUID) ([]*card.Limit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*card.Limit
	for _, l := range r.s.limits[cardID] {
		out = append(out, &l)
	}
	return out, nil
}

func (r memCards) ReplaceLimits(_ context.Context, cardID uuid.UUID, limits []*card.Limit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := make([]card.Limit, 0, len(limits))
	for _, l := range limits {
		stored = append(stored, *l)
	}
	journal(r.tx, r.s.limits, cardID)
	r.s.limits[cardID] = stored
	return nil
}

// card.LedgerRepository

type memCardLedger struct {
	s  *memStore
	tx *memTxHandle
}

func (r memCardLedger) WithTx(tx pgx.Tx) card.LedgerRepository {
	return memCardLedger{s: r.s, tx: handleOf(tx)}
}

func (r memCardLedger) CreateBalance(_ context.Context, b *card.Balance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	journal(r.tx, r.s.cardBalances, b.CardID)
	r.s.cardBalances[b.CardID] = *b
	return nil
}

func (r memCardLedger) GetBalance(_ context.Context, cardID uuid.UUID) (*card.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.cardBalances[cardID]
	if !ok {
		return nil, card.ErrBalanceNotFound{CardID: cardID}
	}
	return &b, nil
}

func (r memCardLedger) LockBalanceForUpdate(ctx context.Context, cardID uuid.UUID) (*card.Balance, error) {
	b, err := r.GetBalance(ctx, cardID)
	if err != nil {
		return nil, err
	}
	r.tx.lock(b.ID)
	return r.GetBalance(ctx, cardID)
}

func (r memCardLedger) UpdateBalance(_ context.Context, b *card.Balance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("card.update_balance"); err != nil {
		return err
	}
	stored, ok := r.s.cardBalances[b.CardID]
	if !ok || stored.Version != b.Version-1 {
		return card.ErrConcurrentModification{ID: b.ID}
	}
	journal(r.tx, r.s.cardBalances, b.CardID)
	r.s.cardBalances[b.CardID] = *b
	return nil
}

func (r memCardLedger) CreateTransaction(_ context.Context, t *card.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	journal(r.tx, r.s.cardTxns, t.ID)
	r.s.cardTxns[t.ID] = *t
	return nil
}

func (r memCardLedger) GetTransaction(_ context.Context, id uuid.UUID) (*card.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.cardTxns[id]
	if !ok {
		return nil, card.ErrTransactionNotFound{TransactionID: id}
	}
	return &t, nil
}

func (r memCardLedger) LockTransactionForUpdate(ctx context.Context, id uuid.UUID) (*card.Transaction, error) {
	r.tx.lock(id)
	return r.GetTransaction(ctx, id)
}

func (r memCardLedger) UpdateTransaction(_ context.Context, t *card.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("card.update_transaction"); err != nil {
		return err
	}
	journal(r.tx, r.s.cardTxns, t.ID)
	r.s.cardTxns[t.ID] = *t
	return nil
}

func (r memCardLedger) ListTransactions(_ context.Context, cardID uuid.UUID, _, _ int) ([]*card.Transaction, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*card.Transaction
	for _, t := range r.s.cardTxns {
		if t.CardID == cardID {
			out = append(out, &t)
		}
	}
	return out, int64(len(out)), nil
}

func (r memCardLedger) SumBuckets(_ context.Context, cardID uuid.UUID) (int64, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var reserved, used int64
	for _, t := range r.s.cardTxns {
		if t.CardID != cardID {
			continue
		}
		switch {
		case t.Status == shared.TransactionStatusPending:
			reserved += t.Amount
		case t.Status == shared.TransactionStatusCompleted,
			t.Status == shared.TransactionStatusDisputed && t.ReversedAt == nil:
			used += t.Amount
		}
	}
	return reserved, used, nil
}

func (r memCardLedger) SpentSince(_ context.Context, cardID uuid.UUID, since time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total int64
	for _, t := range r.s.cardTxns {
		if t.CardID == cardID && t.Status != shared.TransactionStatusReversed && t.ReversedAt == nil && !t.CreatedAt.Before(since) {
			total += t.Amount
		}
	}
	return total, nil
}

// approval.Repository

type memApprovals struct {
	s  *memStore
	tx *memTxHandle
}

func (r memApprovals) WithTx(tx pgx.Tx) approval.Repository {
	return memApprovals{s: r.s, tx: handleOf(tx)}
}

func (r memApprovals) Create(_ context.Context, a *approval.Approval) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	journal(r.tx, r.s.approvals, a.ID)
	r.s.approvals[a.ID] = *a
	return nil
}

func (r memApprovals) GetByID(_ context.Context, id uuid.UUID) (*approval.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.approvals[id]
	if !ok {
		return nil, approval.ErrApprovalNotFound{ApprovalID: id}
	}
	return &a, nil
}

func (r memApprovals) LockForUpdate(ctx context.Context, id uuid.UUID) (*approval.Approval, error) {
	r.tx.lock(id)
	return r.GetByID(ctx, id)
}

func (r memApprovals) Update(_ context.Context, a *approval.Approval) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.approvals[a.ID]
	if !ok || stored.Version != a.Version-1 {
		return approval.ErrConcurrentModification{ApprovalID: a.ID}
	}
	journal(r.tx, r.s.approvals, a.ID)
	r.s.approvals[a.ID] = *a
	return nil
}

func (r memApprovals) ListByCard(_ context.Context, cardID uuid.UUID) ([]*approval.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*approval.Approval
	for _, a := range r.s.approvals {
		if a.CardID != nil && *a.CardID == cardID {
			out = append(out, &a)
		}
	}
	return out, nil
}

func (r memApprovals) ListPending(_ context.Context, orgID uuid.UUID, now time.Time) ([]*approval.Approval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*approval.Approval
	for _, a := range r.s.approvals {
		if a.OrganizationID == orgID && a.IsPending(now) {
			out = append(out, &a)
		}
	}
	return out, nil
}

// org.Repository

type memMembers struct {
	s  *memStore
	tx *memTxHandle
}

func (r memMembers) WithTx(tx pgx.Tx) org.Repository { return memMembers{s: r.s, tx: handleOf(tx)} }

func (r memMembers) GetMembership(_ context.Context, id uuid.UUID) (*org.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.members[id]
	if !ok {
		return nil, org.ErrMembershipNotFound{MembershipID: id}
	}
	return &m, nil
}

func (r memMembers) GetMembershipByUser(_ context.Context, orgID, userID uuid.UUID) (*org.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.members {
		if m.OrganizationID == orgID && m.UserID == userID {
			return &m, nil
		}
	}
	return nil, org.ErrMembershipNotFound{}
}

// org.DirectoryRepository

type memDirectory struct {
	s  *memStore
	tx *memTxHandle
}

func (r memDirectory) WithTx(tx pgx.Tx) org.DirectoryRepository {
	return memDirectory{s: r.s, tx: handleOf(tx)}
}

func (r memDirectory) CreateOrganization(_ context.Context, o *org.Organization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	journal(r.tx, r.s.orgs, o.ID)
	r.s.orgs[o.ID] = *o
	return nil
}

func (r memDirectory) GetOrganization(_ context.Context, id uuid.UUID) (*org.Organization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orgs[id]
	if !ok {
		return nil, org.ErrOrganizationNotFound{OrganizationID: id}
	}
	return &o, nil
}

func (r memDirectory) LockOrganization(ctx context.Context, id uuid.UUID) (*org.Organization, error) {
	r.tx.lock(id)
	return r.GetOrganization(ctx, id)
}

func (r memDirectory) UpdateOrganization(_ context.Context, o *org.Organization) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orgs[o.ID]; !ok {
		return org.ErrOrganizationNotFound{OrganizationID: o.ID}
	}
	journal(r.tx, r.s.orgs, o.ID)
	r.s.orgs[o.ID] = *o
	return nil
}

func (r memDirectory) CountOrganizations(context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.orgs)), nil
}

func (r memDirectory) CreateMembership(_ context.Context, m *org.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.members {
		if existing.OrganizationID == m.OrganizationID && existing.UserID == m.UserID {
			return org.ErrMembershipExists{OrganizationID: m.OrganizationID, UserID: m.UserID}
		}
	}
	journal(r.tx, r.s.members, m.ID)
	r.s.members[m.ID] = *m
	return nil
}

func (r memDirectory) LockMembership(ctx context.Context, orgID, userID uuid.UUID) (*org.Membership, error) {
	m, err := memMembers{s: r.s}.GetMembershipByUser(ctx, orgID, userID)
	if err != nil {
		return nil, err
	}
	r.tx.lock(m.ID)
	return memMembers{s: r.s}.GetMembership(ctx, m.ID)
}

func (r memDirectory) UpdateMembership(_ context.Context, m *org.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.members[m.ID]; !ok {
		return org.ErrMembershipNotFound{MembershipID: m.ID}
	}
	journal(r.tx, r.s.members, m.ID)
	r.s.members[m.ID] = *m
	return nil
}

func (r memDirectory) ListMembers(_ context.Context, orgID uuid.UUID, includeInactive bool) ([]*org.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*org.Membership
	for _, m := range r.s.members {
		if m.OrganizationID == orgID && (includeInactive || m.IsActive()) {
			out = append(out, &m)
		}
	}
	slices.SortFunc(out, func(a, b *org.Membership) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// org.DepartmentRepository

type memDepartments struct {
	s  *memStore
	tx *memTxHandle
}

func (r memDepartments) WithTx(tx pgx.Tx) org.DepartmentRepository {
	return memDepartments{s: r.s, tx: handleOf(tx)}
}

func (r memDepartments) CreateDepartment(_ context.Context, d *org.Department) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	journal(r.tx, r.s.departments, d.ID)
	r.s.departments[d.ID] = *d
	return nil
}

func (r memDepartments) GetDepartment(_ context.Context, id uuid.UUID) (*org.Department, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.departments[id]
	if !ok || d.DeletedAt != nil {
		return nil, org.ErrDepartmentNotFound{DepartmentID: id}
	}
	return &d, nil
}

func (r memDepartments) LockDepartment(ctx context.Context, id uuid.UUID) (*org.Department, error) {
	r.tx.lock(id)
	return r.GetDepartment(ctx, id)
}

func (r memDepartments) UpdateDepartment(_ context.Context, d *org.Department) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("departments.update"); err != nil {
		return err
	}
	existing, ok := r.s.departments[d.ID]
	if !ok || existing.DeletedAt != nil {
		return org.ErrDepartmentNotFound{DepartmentID: d.ID}
	}
	journal(r.tx, r.s.departments, d.ID)
	r.s.departments[d.ID] = *d
	return nil
}

func (r memDepartments) ListDepartments(_ context.Context, orgID uuid.UUID, limit, offset int) ([]*org.Department, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*org.Department
	for _, d := range r.s.departments {
		if d.OrganizationID == orgID && d.DeletedAt == nil {
			all = append(all, &d)
		}
	}
	slices.SortFunc(all, func(a, b *org.Department) int { return b.CreatedAt.Compare(a.CreatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	return all[offset:min(offset+limit, len(all))], total, nil
}

// outbox.Repository

type memOutbox struct {
	s  *memStore
	tx *memTxHandle
}

func (r memOutbox) WithTx(tx pgx.Tx) outbox.Repository { return memOutbox{s: r.s, tx: handleOf(tx)} }

func (r memOutbox) Create(_ context.Context, m *outbox.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("outbox.create"); err != nil {
		return err
	}
	r.s.outboxSeq++
	m.ID = r.s.outboxSeq
	r.s.outbox = append(r.s.outbox, *m)
	if r.tx != nil {
		id := m.ID
		r.tx.undo = append(r.tx.undo, func() {
			r.s.outbox = slices.DeleteFunc(r.s.outbox, func(msg outbox.Message) bool { return msg.ID == id })
		})
	}
	return nil
}

func (r memOutbox) GetPending(context.Context, int) ([]*outbox.Message, error) {
	return nil, errors.New("not implemented")
}

func (r memOutbox) UpdateStatus(context.Context, int64, shared.OutboxStatus) error { return nil }
func (r memOutbox) IncrementAttempts(context.Context, int64) error                 { return nil }
func (r memOutbox) PurgeProcessed(context.Context, time.Time) (int64, error)       { return 0, nil }

func (r memOutbox) GetByEventID(context.Context, uuid.UUID) (*outbox.Message, error) {
	return nil, errors.New("not implemented")
}

// recordingSink captures notification intents

type recordingSink struct {
	mu      sync.Mutex
	intents []notification.Intent
}

func (s *recordingSink) Notify(_ context.Context, i notification.Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents = append(s.intents, i)
}

func (s *recordingSink) kinds() []notification.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notification.Kind, 0, len(s.intents))
	for _, i := range s.intents {
		out = append(out, i.Kind)
	}
	return out
}

// harness wires the ledger core over one memStore
type harness struct {
	store       *memStore
	db          *memTx
	accounts    *AccountLedger
	cardLedger  *CardLedger
	coordinator *Coordinator
	workflow    *ApprovalWorkflow
	cards       *CardManager
	directory   *Directory
	departments *Departments
	sink        *recordingSink
}

func newHarness() *harness {
	store := newMemStore()
	db := &memTx{store: store}
	logger := discardLogger()
	events := NewEventRecorder(db, memOutbox{s: store}, logger)
	sink := &recordingSink{}

	accounts := NewAccountLedger(db, memAccounts{s: store}, events, logger)
	cardLedger := NewCardLedger(db, memCards{s: store}, memCardLedger{s: store}, events, logger)
	return &harness{
		store:       store,
		db:          db,
		accounts:    accounts,
		cardLedger:  cardLedger,
		coordinator: NewCoordinator(memCards{s: store}, cardLedger, accounts, events, sink, logger),
		workflow:    NewApprovalWorkflow(db, memApprovals{s: store}, memCards{s: store}, memMembers{s: store}, events, sink, 0, logger),
		cards:       NewCardManager(db, memCards{s: store}, memMembers{s: store}, cardLedger, events, sink, logger),
		directory:   NewDirectory(db, memDirectory{s: store}, memMembers{s: store}, events, logger),
		departments: NewDepartments(db, memDepartments{s: store}, memMembers{s: store}, events, logger),
		sink:        sink,
	}
}

func (h *harness) addOrg() uuid.UUID {
	o, err := org.NewOrganization("Acme", "Travel")
	if err != nil {
		panic(err)
	}
	h.store.mu.Lock()
	h.store.orgs[o.ID] = *o
	h.store.mu.Unlock()
	return o.ID
}

func (h *harness) addMember(orgID uuid.UUID, role org.Role) org.Actor {
	m := org.Membership{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         uuid.New(),
		Role:           role,
		Status:         org.MembershipStatusActive,
	}
	h.store.mu.Lock()
	h.store.members[m.ID] = m
	h.store.mu.Unlock()
	return m.Actor()
}

func (h *harness) addCard(orgID, owner uuid.UUID) *card.Card {
	c, err := card.NewCard(orgID, owner, "")
	if err != nil {
		panic(err)
	}
	h.store.mu.Lock()
	h.store.cards[c.ID] = *c
	h.store.mu.Unlock()
	return c
}
