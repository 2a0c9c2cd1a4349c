//go:build !integration

package usecase_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/kungfukitty/project-angeL/internal/domain"
	"github.com/kungfukitty/project-angeL/internal/domain/model"
	"github.com/kungfukitty/project-angeL/internal/domain/ports/adapter"
	"github.com/kungfukitty/project-angeL/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// =============================
// Repositories
// =============================

// memUserRepo is a small in-memory implementation used by unit tests.
type memUserRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.User // by user ID
	saveErr error                  // simulate save failures
}

var _ repository.UserRepository = (*memUserRepo)(nil)

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{store: make(map[string]*model.User)}
}

func (m *memUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.store {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) FindByDiscordID(ctx context.Context, tx repository.Tx, discordID string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.store {
		if u.DiscordID != nil && *u.DiscordID == discordID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) UpdateMembershipTier(ctx context.Context, tx repository.Tx, userID string, tier model.MembershipTier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.MembershipTier = tier
	u.UpdatedAt = time.Now()
	return nil
}

func (m *memUserRepo) UpdateDiscordID(ctx context.Context, tx repository.Tx, userID, discordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.store {
		if u.DiscordID != nil && *u.DiscordID == discordID && id != userID {
			return domain.ErrDiscordAlreadyLinked
		}
	}
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	cp := discordID
	u.DiscordID = &cp
	u.UpdatedAt = time.Now()
	return nil
}

// memMembershipRepo mirrors the Postgres repo's guarantees: unique
// subscription ids, at most one active membership per user, and the
// sequence-guarded compare-and-swap.
type memMembershipRepo struct {
	mu    sync.RWMutex
	bySub map[string]*model.Membership
}

var _ repository.MembershipRepository = (*memMembershipRepo)(nil)

func newMemMembershipRepo() *memMembershipRepo {
	return &memMembershipRepo{bySub: make(map[string]*model.Membership)}
}

func (m *memMembershipRepo) Create(ctx context.Context, tx repository.Tx, mem *model.Membership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bySub[mem.ExternalSubscriptionID]; ok {
		return domain.ErrAlreadyExists
	}
	if mem.Status == model.MembershipStatusActive {
		for _, other := range m.bySub {
			if other.UserID == mem.UserID && other.Status == model.MembershipStatusActive {
				return domain.ErrAlreadyExists
			}
		}
	}
	cp := *mem
	m.bySub[mem.ExternalSubscriptionID] = &cp
	return nil
}

func (m *memMembershipRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []*model.Membership
	for _, mem := range m.bySub {
		if mem.UserID == userID {
			all = append(all, mem)
		}
	}
	if len(all) == 0 {
		return nil, domain.ErrNotFound
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	cp := *all[0]
	return &cp, nil
}

func (m *memMembershipRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mem := range m.bySub {
		if mem.UserID == userID && mem.Status == model.MembershipStatusActive {
			cp := *mem
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memMembershipRepo) FindBySubscriptionID(ctx context.Context, tx repository.Tx, subID string) (*model.Membership, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.bySub[subID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *mem
	return &cp, nil
}

func (m *memMembershipRepo) ApplyTransition(ctx context.Context, tx repository.Tx, subID string, change model.MembershipChange, seq int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.bySub[subID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if seq <= mem.LastEventSeq || mem.Status == model.MembershipStatusCanceled {
		return false, nil
	}
	mem.Status = change.Status
	if change.CurrentPeriodEnd != nil {
		cp := *change.CurrentPeriodEnd
		mem.CurrentPeriodEnd = &cp
	}
	if change.CancelAtPeriodEnd != nil {
		mem.CancelAtPeriodEnd = *change.CancelAtPeriodEnd
	}
	mem.LastEventSeq = seq
	mem.UpdatedAt = time.Now()
	return true, nil
}

// countActive reports how many active memberships a user holds; tests use it
// to assert the at-most-one-active invariant.
func (m *memMembershipRepo) countActive(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, mem := range m.bySub {
		if mem.UserID == userID && mem.Status == model.MembershipStatusActive {
			n++
		}
	}
	return n
}

// =============================
// Adapters
// =============================

type accessCall struct {
	DiscordID string
	Granted   bool
}

// MockAccessAdapter records every sync call so tests can assert access
// mirrors membership status.
type MockAccessAdapter struct {
	mu    sync.Mutex
	Calls []accessCall

	SetAccessFunc    func(ctx context.Context, discordID string, granted bool) error
	CreateInviteFunc func(ctx context.Context) (string, error)
}

var _ adapter.AccessSyncAdapter = (*MockAccessAdapter)(nil)

func (m *MockAccessAdapter) Name() string { return "mock" }

func (m *MockAccessAdapter) SetAccess(ctx context.Context, discordID string, granted bool) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, accessCall{DiscordID: discordID, Granted: granted})
	m.mu.Unlock()
	if m.SetAccessFunc != nil {
		return m.SetAccessFunc(ctx, discordID, granted)
	}
	return nil
}

func (m *MockAccessAdapter) CreateInvite(ctx context.Context) (string, error) {
	if m.CreateInviteFunc != nil {
		return m.CreateInviteFunc(ctx)
	}
	return "https://discord.gg/test", nil
}

func (m *MockAccessAdapter) calls() []accessCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]accessCall, len(m.Calls))
	copy(out, m.Calls)
	return out
}

// MockCheckoutGateway returns canned sessions and captures params.
type MockCheckoutGateway struct {
	LastParams *adapter.CheckoutParams

	CreateSessionFunc func(ctx context.Context, p adapter.CheckoutParams) (*adapter.CheckoutSession, error)
	PortalFunc        func(ctx context.Context, customerID, returnURL string) (string, error)
}

var _ adapter.CheckoutGateway = (*MockCheckoutGateway)(nil)

func (m *MockCheckoutGateway) Name() string { return "mock" }

func (m *MockCheckoutGateway) CreateSession(ctx context.Context, p adapter.CheckoutParams) (*adapter.CheckoutSession, error) {
	cp := p
	m.LastParams = &cp
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, p)
	}
	return &adapter.CheckoutSession{ID: "cs_test", URL: "https://checkout.example/cs_test"}, nil
}

func (m *MockCheckoutGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if m.PortalFunc != nil {
		return m.PortalFunc(ctx, customerID, returnURL)
	}
	return "https://portal.example/" + customerID, nil
}

// =============================
// Infra
// =============================

// memRetryQueue buffers access sync jobs in a slice.
type memRetryQueue struct {
	mu   sync.Mutex
	jobs []*model.AccessSyncJob
}

var _ repository.AccessRetryQueue = (*memRetryQueue)(nil)

func (q *memRetryQueue) Enqueue(ctx context.Context, job *model.AccessSyncJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := *job
	q.jobs = append(q.jobs, &cp)
	return nil
}

func (q *memRetryQueue) Dequeue(ctx context.Context) (*model.AccessSyncJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, domain.ErrNotFound
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *memRetryQueue) Depth(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.jobs)), nil
}

type noTx struct{}

// MockTxManager runs the callback without a real transaction.
type MockTxManager struct{}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, noTx{})
}
