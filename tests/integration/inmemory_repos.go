package integration

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"marketplace-wallet/internal/core/domain"
	"marketplace-wallet/internal/core/ports"
	"marketplace-wallet/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// The in-memory repos back the integration suite instead of PostgreSQL.
// The transactor below serializes units of work with a global mutex and
// keeps an undo journal per transaction, so the pessimistic-locking and
// rollback semantics the services rely on hold here too and the tests
// can assert exact balances.

// --- Serializing transactor with undo journal ---

type inMemoryTransactor struct {
	mu sync.Mutex
}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &memTx{mu: &t.mu}, nil
}

// memTx is a pgx.Tx implementation backed by the transactor's mutex.
// Writes register undo closures; Rollback replays them in reverse.
type memTx struct {
	mu   *sync.Mutex
	undo []func()
	done bool
}

func (t *memTx) addUndo(fn func()) {
	t.undo = append(t.undo, fn)
}

// addUndo registers an undo closure when tx is a memTx. Repos call it from
// their tx-scoped write methods.
func addUndo(tx pgx.Tx, fn func()) {
	if m, ok := tx.(*memTx); ok {
		m.addUndo(fn)
	}
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	t.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.mu.Unlock()
	return nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *memTx) Conn() *pgx.Conn                                               { return nil }

// --- In-memory account repo ---

type inMemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[domain.AccountID]*domain.Account
}

func newInMemoryAccountRepo() *inMemoryAccountRepo {
	return &inMemoryAccountRepo{accounts: make(map[domain.AccountID]*domain.Account)}
}

func (r *inMemoryAccountRepo) Create(ctx context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.accounts[a.ID] = &cp
	return nil
}

func (r *inMemoryAccountRepo) GetByID(ctx context.Context, id domain.AccountID) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryAccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id domain.AccountID) (*domain.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryAccountRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id domain.AccountID, balance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("account not found: %s", id)
	}
	prev := a.Balance
	a.Balance = balance
	a.UpdatedAt = time.Now().UTC()
	addUndo(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		a.Balance = prev
	})
	return nil
}

// --- In-memory ledger repo ---

type inMemoryLedgerRepo struct {
	mu      sync.RWMutex
	entries []*domain.LedgerEntry
	byKey   map[string]*domain.LedgerEntry
}

func newInMemoryLedgerRepo() *inMemoryLedgerRepo {
	return &inMemoryLedgerRepo{byKey: make(map[string]*domain.LedgerEntry)}
}

func (r *inMemoryLedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Mirrors the unique constraint on idempotency_key.
	if _, exists := r.byKey[e.IdempotencyKey]; exists {
		return apperror.ErrDuplicateEntry()
	}
	cp := *e
	r.entries = append(r.entries, &cp)
	r.byKey[cp.IdempotencyKey] = &cp
	addUndo(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.byKey, cp.IdempotencyKey)
		for i, stored := range r.entries {
			if stored == &cp {
				r.entries = append(r.entries[:i], r.entries[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (r *inMemoryLedgerRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byKey[key]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *inMemoryLedgerRepo) ListByAccount(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.LedgerEntry
	for _, e := range r.entries {
		if e.AccountID != params.AccountID {
			continue
		}
		if params.Source != nil && e.Source != *params.Source {
			continue
		}
		if params.Status != nil && e.Status != *params.Status {
			continue
		}
		if params.From != nil && e.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && e.CreatedAt.After(*params.To) {
			continue
		}
		matched = append(matched, *e)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start >= len(matched) {
		return []domain.LedgerEntry{}, total, nil
	}
	end := start + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *inMemoryLedgerRepo) SumCompletedByAccount(ctx context.Context, accountID domain.AccountID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, e := range r.entries {
		if e.AccountID == accountID && e.Status == domain.EntryStatusCompleted {
			sum += e.Direction.Signed(e.Amount)
		}
	}
	return sum, nil
}

func (r *inMemoryLedgerRepo) CountByAccount(ctx context.Context, accountID domain.AccountID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, e := range r.entries {
		if e.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

// --- In-memory referral repo ---

type inMemoryReferralRepo struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*domain.ReferralRecord
}

func newInMemoryReferralRepo() *inMemoryReferralRepo {
	return &inMemoryReferralRepo{records: make(map[uuid.UUID]*domain.ReferralRecord)}
}

func (r *inMemoryReferralRepo) Create(ctx context.Context, rec *domain.ReferralRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.records[rec.ID] = &cp
	return nil
}

func (r *inMemoryReferralRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ReferralRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *inMemoryReferralRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.ReferralRecord, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryReferralRepo) FindCreditableByReferee(ctx context.Context, refereeID domain.AccountID, refType domain.ReferralType) (*domain.ReferralRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var oldest *domain.ReferralRecord
	for _, rec := range r.records {
		if rec.RefereeID != refereeID || rec.ReferralType != refType || rec.Status == domain.ReferralStatusBonusPaid {
			continue
		}
		if oldest == nil || rec.CreatedAt.Before(oldest.CreatedAt) {
			oldest = rec
		}
	}
	if oldest == nil {
		return nil, nil
	}
	cp := *oldest
	return &cp, nil
}

func (r *inMemoryReferralRepo) MarkBonusPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, referrerBonus, refereeBonus int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Status == domain.ReferralStatusBonusPaid {
		return fmt.Errorf("referral %s not in a creditable status", id)
	}
	prev := *rec
	now := time.Now().UTC()
	rec.Status = domain.ReferralStatusBonusPaid
	rec.ReferrerBonus = referrerBonus
	rec.RefereeBonus = refereeBonus
	rec.BonusPaidAt = &now
	rec.UpdatedAt = now
	addUndo(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		*rec = prev
	})
	return nil
}

// --- In-memory referral settings repo ---

type inMemoryReferralSettingsRepo struct {
	mu   sync.RWMutex
	docs map[string]*domain.ReferralSettings // keyed by type|region
}

func newInMemoryReferralSettingsRepo() *inMemoryReferralSettingsRepo {
	return &inMemoryReferralSettingsRepo{docs: make(map[string]*domain.ReferralSettings)}
}

func settingsKey(refType domain.ReferralType, region string) string {
	return string(refType) + "|" + region
}

func (r *inMemoryReferralSettingsRepo) Upsert(ctx context.Context, s *domain.ReferralSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.docs[settingsKey(s.ReferralType, s.Region)] = &cp
	return nil
}

func (r *inMemoryReferralSettingsRepo) Get(ctx context.Context, refType domain.ReferralType, region string) (*domain.ReferralSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.docs[settingsKey(refType, region)]; ok {
		cp := *s
		return &cp, nil
	}
	// Global fallback.
	if s, ok := r.docs[settingsKey(refType, "")]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (r *inMemoryReferralSettingsRepo) List(ctx context.Context) ([]domain.ReferralSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.docs))
	for k := range r.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	all := make([]domain.ReferralSettings, 0, len(keys))
	for _, k := range keys {
		all = append(all, *r.docs[k])
	}
	return all, nil
}

// --- In-memory wallet settings repo ---

type inMemoryWalletSettingsRepo struct {
	mu       sync.RWMutex
	settings *domain.WalletSettings
}

func newInMemoryWalletSettingsRepo() *inMemoryWalletSettingsRepo {
	return &inMemoryWalletSettingsRepo{}
}

func (r *inMemoryWalletSettingsRepo) Get(ctx context.Context) (*domain.WalletSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.settings == nil {
		return nil, nil
	}
	cp := *r.settings
	return &cp, nil
}

func (r *inMemoryWalletSettingsRepo) Save(ctx context.Context, s *domain.WalletSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.settings = &cp
	return nil
}

// --- In-memory withdrawal repo ---

type inMemoryWithdrawalRepo struct {
	mu       sync.RWMutex
	requests []*domain.WithdrawalRequest
	byID     map[uuid.UUID]*domain.WithdrawalRequest
}

func newInMemoryWithdrawalRepo() *inMemoryWithdrawalRepo {
	return &inMemoryWithdrawalRepo{byID: make(map[uuid.UUID]*domain.WithdrawalRequest)}
}

func (r *inMemoryWithdrawalRepo) Create(ctx context.Context, w *domain.WithdrawalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.requests = append(r.requests, &cp)
	r.byID[cp.ID] = &cp
	return nil
}

func (r *inMemoryWithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WithdrawalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWithdrawalRepo) GetByReference(ctx context.Context, reference string) (*domain.WithdrawalRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.requests {
		if w.Reference == reference {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWithdrawalRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.WithdrawalStatus, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("withdrawal not found: %s", id)
	}
	prev := *w
	now := time.Now().UTC()
	w.Status = status
	w.Reason = reason
	if w.ProcessedAt == nil {
		w.ProcessedAt = &now
	}
	if status == domain.WithdrawalStatusCompleted {
		w.CompletedAt = &now
	}
	addUndo(tx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		*w = prev
	})
	return nil
}

func (r *inMemoryWithdrawalRepo) List(ctx context.Context, params ports.WithdrawalListParams) ([]domain.WithdrawalRequest, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.WithdrawalRequest
	for _, w := range r.requests {
		if params.AccountID != nil && w.AccountID != *params.AccountID {
			continue
		}
		if params.Status != nil && w.Status != *params.Status {
			continue
		}
		matched = append(matched, *w)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].RequestedAt.After(matched[j].RequestedAt)
	})

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start >= len(matched) {
		return []domain.WithdrawalRequest{}, total, nil
	}
	end := start + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *inMemoryWithdrawalRepo) CountSince(ctx context.Context, accountID domain.AccountID, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, w := range r.requests {
		if w.AccountID == accountID && !w.RequestedAt.Before(since) && w.Status != domain.WithdrawalStatusRejected {
			count++
		}
	}
	return count, nil
}

func (r *inMemoryWithdrawalRepo) SumCompletedSince(ctx context.Context, accountID domain.AccountID, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, w := range r.requests {
		if w.AccountID != accountID || w.RequestedAt.Before(since) {
			continue
		}
		switch w.Status {
		case domain.WithdrawalStatusProcessing, domain.WithdrawalStatusCompleted, domain.WithdrawalStatusPending:
			sum += w.Amount
		}
	}
	return sum, nil
}

func (r *inMemoryWithdrawalRepo) LatestRequestedAt(ctx context.Context, accountID domain.AccountID) (*time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *time.Time
	for _, w := range r.requests {
		if w.AccountID != accountID || w.Status == domain.WithdrawalStatusRejected {
			continue
		}
		if latest == nil || w.RequestedAt.After(*latest) {
			at := w.RequestedAt
			latest = &at
		}
	}
	return latest, nil
}

// --- In-memory operator repo ---

type inMemoryOperatorRepo struct {
	mu        sync.RWMutex
	operators map[uuid.UUID]*domain.Operator
}

func newInMemoryOperatorRepo() *inMemoryOperatorRepo {
	return &inMemoryOperatorRepo{operators: make(map[uuid.UUID]*domain.Operator)}
}

func (r *inMemoryOperatorRepo) Create(ctx context.Context, o *domain.Operator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.operators {
		if strings.EqualFold(existing.Username, o.Username) {
			return fmt.Errorf("username already exists")
		}
	}
	cp := *o
	r.operators[o.ID] = &cp
	return nil
}

func (r *inMemoryOperatorRepo) GetByUsername(ctx context.Context, username string) (*domain.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.operators {
		if o.Username == username {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryOperatorRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.operators[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

// --- In-memory payment event / transfer repos ---

type inMemoryPaymentEventRepo struct {
	mu     sync.RWMutex
	events []*domain.PaymentEvent
}

func newInMemoryPaymentEventRepo() *inMemoryPaymentEventRepo {
	return &inMemoryPaymentEventRepo{}
}

func (r *inMemoryPaymentEventRepo) Create(ctx context.Context, e *domain.PaymentEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	r.events = append(r.events, &cp)
	return nil
}

func (r *inMemoryPaymentEventRepo) ListByWindow(ctx context.Context, from, to time.Time, vendorID *domain.AccountID) ([]domain.PaymentEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []domain.PaymentEvent
	for _, e := range r.events {
		if e.PaidAt.Before(from) || e.PaidAt.After(to) {
			continue
		}
		if vendorID != nil && e.VendorID != *vendorID {
			continue
		}
		matched = append(matched, *e)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].PaidAt.Before(matched[j].PaidAt)
	})
	return matched, nil
}

type inMemoryTransferRepo struct {
	mu        sync.RWMutex
	transfers []*domain.TransferRecord
}

func newInMemoryTransferRepo() *inMemoryTransferRepo {
	return &inMemoryTransferRepo{}
}

func (r *inMemoryTransferRepo) Create(ctx context.Context, t *domain.TransferRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.transfers = append(r.transfers, &cp)
	return nil
}

func (r *inMemoryTransferRepo) ListByWindow(ctx context.Context, from, to time.Time, vendorID *domain.AccountID) ([]domain.TransferRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matched []domain.TransferRecord
	for _, t := range r.transfers {
		if t.TransferredAt.Before(from) || t.TransferredAt.After(to) {
			continue
		}
		if vendorID != nil && t.VendorID != *vendorID {
			continue
		}
		matched = append(matched, *t)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].TransferredAt.Before(matched[j].TransferredAt)
	})
	return matched, nil
}
