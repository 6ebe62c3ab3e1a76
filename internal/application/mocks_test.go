package application_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
	"github.com/ericfisherdev/cloudpanel/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockAccountStore struct {
	mu       sync.Mutex
	accounts map[string]model.Account
	secrets  map[string]model.EncryptedBlob
	lastSync map[string]time.Time
}

func newMockAccountStore(accounts ...model.Account) *mockAccountStore {
	m := &mockAccountStore{
		accounts: make(map[string]model.Account),
		secrets:  make(map[string]model.EncryptedBlob),
		lastSync: make(map[string]time.Time),
	}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return m
}

func (m *mockAccountStore) Create(_ context.Context, account model.Account, secret model.EncryptedBlob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[account.ID]; ok {
		return fmt.Errorf("create account %s: %w", account.ID, model.ErrConflict)
	}
	account.HasCredentials = len(secret) > 0
	m.accounts[account.ID] = account
	if len(secret) > 0 {
		m.secrets[account.ID] = secret
	}
	return nil
}

func (m *mockAccountStore) Get(_ context.Context, id string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("get account %s: %w", id, model.ErrNotFound)
	}
	return &a, nil
}

func (m *mockAccountStore) List(_ context.Context) ([]model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockAccountStore) Update(ctx context.Context, id string, u model.AccountUpdate) (*model.Account, error) {
	m.mu.Lock()
	a, ok := m.accounts[id]
	if !ok {
		m.mu.Unlock()
		return nil, model.ErrNotFound
	}
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.Region != nil {
		a.Region = *u.Region
	}
	if u.IsActive != nil {
		a.IsActive = *u.IsActive
	}
	m.accounts[id] = a
	m.mu.Unlock()
	return m.Get(ctx, id)
}

func (m *mockAccountStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.accounts, id)
	delete(m.secrets, id)
	return nil
}

func (m *mockAccountStore) GetSecret(_ context.Context, id string) (model.EncryptedBlob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return nil, model.ErrNotFound
	}
	return m.secrets[id], nil
}

func (m *mockAccountStore) SetSecret(_ context.Context, id string, secret model.EncryptedBlob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return model.ErrNotFound
	}
	if len(secret) == 0 {
		delete(m.secrets, id)
	} else {
		m.secrets[id] = secret
	}
	a.HasCredentials = len(secret) > 0
	m.accounts[id] = a
	return nil
}

func (m *mockAccountStore) UpdateLastSync(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSync[id] = at
	return nil
}

func (m *mockAccountStore) lastSyncOf(id string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.lastSync[id]
	return t, ok
}

type pair struct {
	account string
	kind    model.ServiceKind
}

// mockResourceStore keeps the last reconciled inventory per pair.
type mockResourceStore struct {
	mu        sync.Mutex
	inventory map[pair][]model.NormalizedResource
	failKinds map[model.ServiceKind]error
	calls     []pair
	pruned    []time.Time
}

func newMockResourceStore() *mockResourceStore {
	return &mockResourceStore{
		inventory: make(map[pair][]model.NormalizedResource),
		failKinds: make(map[model.ServiceKind]error),
	}
}

func (m *mockResourceStore) Reconcile(_ context.Context, accountID string, kind model.ServiceKind, fetched []model.NormalizedResource, _ time.Time) (model.ReconcileResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := pair{accountID, kind}
	m.calls = append(m.calls, p)
	if err := m.failKinds[kind]; err != nil {
		return model.ReconcileResult{}, err
	}
	prev := len(m.inventory[p])
	m.inventory[p] = fetched
	res := model.ReconcileResult{Inserted: len(fetched)}
	if prev > len(fetched) {
		res.Removed = prev - len(fetched)
	}
	return res, nil
}

func (m *mockResourceStore) List(_ context.Context, f model.ResourceFilter) ([]model.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Resource
	for p, res := range m.inventory {
		if p.account != f.AccountID || (f.Kind != "" && f.Kind != p.kind) {
			continue
		}
		for _, r := range res {
			out = append(out, model.Resource{AccountID: p.account, Kind: p.kind, ExternalID: r.ExternalID, Status: model.ResourcePresent})
		}
	}
	return out, nil
}

func (m *mockResourceStore) PruneRemoved(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned = append(m.pruned, before)
	return 1, nil
}

func (m *mockResourceStore) snapshot(accountID string, kind model.ServiceKind) []model.NormalizedResource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inventory[pair{accountID, kind}]
}

func (m *mockResourceStore) reconcileCalls() []pair {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pair(nil), m.calls...)
}

// mockRunStore allows one running run per account, like the sqlite index.
type mockRunStore struct {
	mu        sync.Mutex
	started   []model.SyncRun
	finalized []model.SyncRun
	running   map[string]string
	stale     int64
	staleCuts []time.Time
}

func (m *mockRunStore) Start(_ context.Context, run model.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running == nil {
		m.running = make(map[string]string)
	}
	if _, busy := m.running[run.AccountID]; busy {
		return fmt.Errorf("start sync run: %w", model.ErrAlreadyInProgress)
	}
	m.running[run.AccountID] = run.ID
	m.started = append(m.started, run)
	return nil
}

func (m *mockRunStore) FailStale(_ context.Context, startedBefore, _ time.Time, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleCuts = append(m.staleCuts, startedBefore)
	if m.stale > 0 {
		clear(m.running)
	}
	return m.stale, nil
}

func (m *mockRunStore) Finalize(_ context.Context, run model.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.finalized {
		if f.ID == run.ID {
			return model.ErrRunFinalized
		}
	}
	if m.running[run.AccountID] == run.ID {
		delete(m.running, run.AccountID)
	}
	m.finalized = append(m.finalized, run)
	return nil
}

func (m *mockRunStore) ListByAccount(_ context.Context, accountID string, _ int) ([]model.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SyncRun
	for _, r := range m.finalized {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRunStore) counts() (started, finalized int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.started), len(m.finalized)
}

// mockVault stores credentials in the clear; sealing is the vault package's concern.
type mockVault struct {
	mu     sync.Mutex
	creds  map[string]model.Credential
	err    map[string]error
	stored int
}

func newMockVault() *mockVault {
	return &mockVault{creds: make(map[string]model.Credential), err: make(map[string]error)}
}

func (m *mockVault) Store(_ context.Context, accountID string, cred model.Credential) (model.EncryptedBlob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored++
	m.creds[accountID] = cred
	return model.EncryptedBlob("sealed:" + accountID), nil
}

func (m *mockVault) Retrieve(_ context.Context, accountID string) (model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.err[accountID]; err != nil {
		return model.Credential{}, err
	}
	cred, ok := m.creds[accountID]
	if !ok {
		return model.Credential{}, &model.CredentialError{Kind: model.CredentialNotFound, AccountID: accountID}
	}
	return cred, nil
}

type mockSource struct {
	kind  model.ServiceKind
	fetch func(ctx context.Context) ([]model.NormalizedResource, error)
	calls atomic.Int32
}

func (m *mockSource) Kind() model.ServiceKind { return m.kind }

func (m *mockSource) FetchAll(ctx context.Context) ([]model.NormalizedResource, error) {
	m.calls.Add(1)
	return m.fetch(ctx)
}

func staticSource(kind model.ServiceKind, ids ...string) *mockSource {
	return &mockSource{kind: kind, fetch: func(context.Context) ([]model.NormalizedResource, error) {
		out := make([]model.NormalizedResource, 0, len(ids))
		for _, id := range ids {
			out = append(out, model.NormalizedResource{Kind: kind, ExternalID: id})
		}
		return out, nil
	}}
}

// blockingSource signals entered on its first fetch and then waits for
// release before returning one resource.
func blockingSource(kind model.ServiceKind, entered chan<- struct{}, release <-chan struct{}) *mockSource {
	var once sync.Once
	return &mockSource{kind: kind, fetch: func(context.Context) ([]model.NormalizedResource, error) {
		once.Do(func() { close(entered) })
		<-release
		return []model.NormalizedResource{{Kind: kind, ExternalID: string(kind) + "-1"}}, nil
	}}
}

func failingSource(kind model.ServiceKind, errKind model.AdapterErrorKind) *mockSource {
	return &mockSource{kind: kind, fetch: func(context.Context) ([]model.NormalizedResource, error) {
		return nil, model.NewAdapterError(kind, errKind, fmt.Errorf("%s from fake", errKind))
	}}
}

type mockFactory struct {
	mu      sync.Mutex
	sources []driven.ResourceSource
	creds   []model.Credential
}

func (m *mockFactory) Sources(_ context.Context, _ model.Account, cred model.Credential) ([]driven.ResourceSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = append(m.creds, cred)
	return m.sources, nil
}

func (m *mockFactory) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.creds)
}

type mockProber struct {
	identity *model.Identity
	err      error
	regions  []string
}

func (m *mockProber) Probe(_ context.Context, region string, _ model.Credential) (*model.Identity, error) {
	m.regions = append(m.regions, region)
	return m.identity, m.err
}
