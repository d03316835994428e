package application_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/pagesdns/internal/domain/model"
	"github.com/ericfisherdev/pagesdns/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockMappingStore struct {
	mu       sync.Mutex
	mappings map[string]model.DomainMapping
	saves    int
	getErr   error
	saveErr  error
}

func newMockMappingStore() *mockMappingStore {
	return &mockMappingStore{mappings: make(map[string]model.DomainMapping)}
}

func (m *mockMappingStore) Get(_ context.Context, repo string) (*model.DomainMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	mapping, ok := m.mappings[repo]
	if !ok {
		return nil, nil
	}
	return &mapping, nil
}

func (m *mockMappingStore) Save(_ context.Context, mapping model.DomainMapping) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return fmt.Errorf("save: %w", driven.ErrPersistence)
	}
	m.saves++
	m.mappings[mapping.RepoName] = mapping
	return nil
}

func (m *mockMappingStore) Remove(_ context.Context, repo string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.mappings[repo]
	delete(m.mappings, repo)
	return ok, nil
}

func (m *mockMappingStore) List(_ context.Context) ([]model.DomainMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.DomainMapping, 0, len(m.mappings))
	for _, v := range m.mappings {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RepoName < out[j].RepoName })
	return out, nil
}

func (m *mockMappingStore) get(repo string) (model.DomainMapping, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.mappings[repo]
	return v, ok
}

// mockDNS is an in-memory zone that records the order of calls.
type mockDNS struct {
	mu        sync.Mutex
	records   map[string]string
	calls     []string
	nextID    int
	createErr error
	deleteErr error
	degraded  bool
}

func newMockDNS() *mockDNS {
	return &mockDNS{records: make(map[string]string)}
}

func (m *mockDNS) FindByName(_ context.Context, domain string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "find:"+domain)
	return m.records[domain], nil
}

func (m *mockDNS) Create(_ context.Context, domain, _ string) (model.RecordResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "create:"+domain)
	if m.createErr != nil {
		return model.RecordResult{}, m.createErr
	}
	if m.degraded {
		return model.NewDegradedRecord(domain, "already exists", time.Now()), nil
	}
	m.nextID++
	id := fmt.Sprintf("rec-%d", m.nextID)
	m.records[domain] = id
	return model.NewCreatedRecord(id, domain), nil
}

func (m *mockDNS) Update(_ context.Context, recordID, domain, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "update:"+domain)
	m.records[domain] = recordID
	return nil
}

func (m *mockDNS) Delete(_ context.Context, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete-id:"+recordID)
	for name, id := range m.records {
		if id == recordID {
			delete(m.records, name)
		}
	}
	return nil
}

func (m *mockDNS) DeleteByName(_ context.Context, domain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "delete:"+domain)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.records, domain)
	return nil
}

func (m *mockDNS) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockDNS) resetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *mockDNS) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.records))
	for name := range m.records {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type staticProviders struct {
	provider driven.DNSProvider
}

func (s staticProviders) ForInstallation(context.Context, int64) (driven.DNSProvider, error) {
	return s.provider, nil
}

type mockPagesSource struct {
	pages         map[string]*model.PagesInfo
	pagesErr      error
	files         map[string]string // keyed by branch
	fileErr       map[string]error
	defaultBranch string
	branchErr     error
	fileReads     []string
}

func (m *mockPagesSource) GetPagesInfo(_ context.Context, repo string) (*model.PagesInfo, error) {
	if m.pagesErr != nil {
		return nil, m.pagesErr
	}
	return m.pages[repo], nil
}

func (m *mockPagesSource) GetFileContent(_ context.Context, _, _, branch string) (string, bool, error) {
	m.fileReads = append(m.fileReads, branch)
	if err := m.fileErr[branch]; err != nil {
		return "", false, err
	}
	content, ok := m.files[branch]
	return content, ok, nil
}

func (m *mockPagesSource) GetDefaultBranch(context.Context, string) (string, error) {
	return m.defaultBranch, m.branchErr
}

type mockExchanger struct {
	calls   atomic.Int32
	release chan struct{}
	errs    []error
	token   model.AccessToken
	mu      sync.Mutex
}

func (m *mockExchanger) Exchange(ctx context.Context) (model.AccessToken, error) {
	n := int(m.calls.Add(1))
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return model.AccessToken{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= len(m.errs) && m.errs[n-1] != nil {
		return model.AccessToken{}, m.errs[n-1]
	}
	return m.token, nil
}

type mockTokenStore struct {
	mu     sync.Mutex
	token  *model.AccessToken
	puts   int
	getErr error
}

func (m *mockTokenStore) Get(context.Context) (*model.AccessToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.token == nil {
		return nil, nil
	}
	tok := *m.token
	return &tok, nil
}

func (m *mockTokenStore) Put(_ context.Context, token model.AccessToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.token = &token
	return nil
}

type mockInstallationStore struct {
	configs map[int64]model.InstallationConfig
	err     error
	gets    int
}

func (m *mockInstallationStore) Put(_ context.Context, cfg model.InstallationConfig) error {
	m.configs[cfg.InstallationID] = cfg
	return nil
}

func (m *mockInstallationStore) Get(_ context.Context, id int64) (*model.InstallationConfig, error) {
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	cfg, ok := m.configs[id]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (m *mockInstallationStore) Update(context.Context, int64, model.InstallationPatch) error {
	return errors.New("not implemented")
}

func transientErr(service string) error {
	return &model.UpstreamError{Service: service, Op: "test", StatusCode: 503, Transient: true, Err: errors.New("unavailable")}
}

func permanentErr(service string) error {
	return &model.UpstreamError{Service: service, Op: "test", StatusCode: 401, Err: errors.New("bad credentials")}
}
