//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"saas-billing-backend/internal/domain"
	"saas-billing-backend/internal/domain/model"
	"saas-billing-backend/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// MockUserRepo is an in-memory UserRepository. Behavior can be overridden
// per test through the *Func hooks.
type MockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User // keyed by subject id

	FindBySubjectIDFunc  func(ctx context.Context, subjectID string) (*model.User, error)
	FindByCustomerIDFunc func(ctx context.Context, provider model.Provider, customerID string) (*model.User, error)
	UpdatePlanFunc       func(ctx context.Context, userID string, tier model.PlanTier, credits int64, renewalAt *time.Time) error
	SetCustomerIDFunc    func(ctx context.Context, userID string, provider model.Provider, customerID string) error

	UpsertCalls int
}

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{users: make(map[string]*model.User)}
}

func (m *MockUserRepo) Seed(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.SubjectID] = u
}

func (m *MockUserRepo) FindBySubjectID(ctx context.Context, subjectID string) (*model.User, error) {
	if m.FindBySubjectIDFunc != nil {
		return m.FindBySubjectIDFunc(ctx, subjectID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[subjectID]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) FindByCustomerID(ctx context.Context, provider model.Provider, customerID string) (*model.User, error) {
	if m.FindByCustomerIDFunc != nil {
		return m.FindByCustomerIDFunc(ctx, provider, customerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.CustomerID(provider) == customerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) UpsertBySubjectID(ctx context.Context, u *model.User) (*model.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if existing, ok := m.users[u.SubjectID]; ok {
		existing.Email = u.Email
		existing.Name = u.Name
		existing.UpdatedAt = time.Now().UTC()
		cp := *existing
		return &cp, false, nil
	}
	cp := *u
	m.users[u.SubjectID] = &cp
	out := cp
	return &out, true, nil
}

func (m *MockUserRepo) UpdatePlan(ctx context.Context, userID string, tier model.PlanTier, credits int64, renewalAt *time.Time) error {
	if m.UpdatePlanFunc != nil {
		return m.UpdatePlanFunc(ctx, userID, tier, credits, renewalAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == userID {
			u.PlanTier = tier
			u.Credits = credits
			u.RenewalAt = renewalAt
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockUserRepo) SetCustomerID(ctx context.Context, userID string, provider model.Provider, customerID string) error {
	if m.SetCustomerIDFunc != nil {
		return m.SetCustomerIDFunc(ctx, userID, provider, customerID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == userID {
			u.SetCustomerID(provider, customerID)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockUserRepo) Get(subjectID string) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[subjectID]
}

func (m *MockUserRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

// MockPaymentRepo is an in-memory PaymentHistoryRepository enforcing the
// unique (provider, provider event id) constraint.
type MockPaymentRepo struct {
	mu   sync.Mutex
	rows map[string]*model.PaymentHistory // keyed by provider + "/" + event id

	InsertFunc       func(ctx context.Context, p *model.PaymentHistory) error
	UpdateStatusFunc func(ctx context.Context, id string, status model.PaymentStatus) error
	SetReconcileFunc func(ctx context.Context, id string, state model.ReconcileState) error

	InsertCalls       int
	UpdateStatusCalls int
	ReconciledIDs     []string
}

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{rows: make(map[string]*model.PaymentHistory)}
}

func paymentKey(provider model.Provider, eventID string) string {
	return string(provider) + "/" + eventID
}

func (m *MockPaymentRepo) Seed(p *model.PaymentHistory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[paymentKey(p.Provider, p.ProviderEventID)] = p
}

func (m *MockPaymentRepo) Insert(ctx context.Context, p *model.PaymentHistory) error {
	m.mu.Lock()
	m.InsertCalls++
	m.mu.Unlock()
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := paymentKey(p.Provider, p.ProviderEventID)
	if _, ok := m.rows[k]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *p
	m.rows[k] = &cp
	return nil
}

func (m *MockPaymentRepo) FindByProviderEvent(ctx context.Context, provider model.Provider, eventID string) (*model.PaymentHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.rows[paymentKey(provider, eventID)]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) UpdateStatus(ctx context.Context, id string, status model.PaymentStatus) error {
	m.mu.Lock()
	m.UpdateStatusCalls++
	m.mu.Unlock()
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.ID == id {
			p.Status = status
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockPaymentRepo) SetReconcile(ctx context.Context, id string, state model.ReconcileState) error {
	if m.SetReconcileFunc != nil {
		return m.SetReconcileFunc(ctx, id, state)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if state == model.ReconcileSynced {
		m.ReconciledIDs = append(m.ReconciledIDs, id)
	}
	for _, p := range m.rows {
		if p.ID == id {
			p.Reconcile = state
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockPaymentRepo) ListUnreconciled(ctx context.Context, cutoff time.Time, limit int64) ([]*model.PaymentHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentHistory
	for _, p := range m.rows {
		if p.Reconcile == model.ReconcilePending && p.CreatedAt.Before(cutoff) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPaymentRepo) Get(provider model.Provider, eventID string) *model.PaymentHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[paymentKey(provider, eventID)]
}

// MockTxManager runs transaction bodies inline. It mirrors the real
// manager's contract: afterCommit only runs when fn committed, and its
// error is returned alongside fn's result.
type MockTxManager struct {
	CommitCount int
	AbortCount  int
}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	res, err := fn(ctx)
	if err != nil {
		m.AbortCount++
		return nil, err
	}
	m.CommitCount++
	return res, nil
}

func (m *MockTxManager) WithTransactionAndExternal(
	ctx context.Context,
	fn func(ctx context.Context) (any, error),
	afterCommit func(ctx context.Context, result any) error,
) (any, error) {
	res, err := m.WithTransaction(ctx, fn)
	if err != nil {
		return nil, err
	}
	if afterCommit != nil {
		if err := afterCommit(ctx, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (m *MockTxManager) WithRetryTransaction(ctx context.Context, opts repository.RetryOptions, fn func(ctx context.Context) (any, error)) (any, error) {
	return m.WithTransaction(ctx, fn)
}

// MockIdentitySyncer records plan sync calls.
type MockIdentitySyncer struct {
	mu    sync.Mutex
	calls []string // subjectID + ":" + tier

	SyncPlanFunc func(ctx context.Context, subjectID string, tier model.PlanTier) error
}

func (m *MockIdentitySyncer) SyncPlan(ctx context.Context, subjectID string, tier model.PlanTier) error {
	m.mu.Lock()
	m.calls = append(m.calls, subjectID+":"+string(tier))
	m.mu.Unlock()
	if m.SyncPlanFunc != nil {
		return m.SyncPlanFunc(ctx, subjectID, tier)
	}
	return nil
}

func (m *MockIdentitySyncer) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
