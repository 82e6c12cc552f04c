package oauthinfra

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/oauth"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
)

// MemoryStore implements the client and code repositories for tests and
// single process deployments. Tokens and Authorizations expose the audit
// repositories.
type MemoryStore struct {
	mu             sync.Mutex
	clients        map[kernel.ClientID]oauth.Client
	codes          map[codeKey]oauth.Code
	tokens         []oauth.TokenRecord
	authorizations []oauth.Authorization
}

type codeKey struct {
	hash  string
	state string
}

var (
	_ oauth.ClientRepository = (*MemoryStore)(nil)
	_ oauth.CodeRepository   = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients: make(map[kernel.ClientID]oauth.Client),
		codes:   make(map[codeKey]oauth.Code),
	}
}

// Clients

func (m *MemoryStore) Create(_ context.Context, c *oauth.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.clients[c.ClientID]; exists {
		return errx.Conflict("client already exists").WithDetail("client_id", c.ClientID)
	}
	m.clients[c.ClientID] = cloneClient(*c)
	return nil
}

func (m *MemoryStore) FindByID(_ context.Context, id kernel.ClientID) (*oauth.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok {
		return nil, oauth.ErrClientNotFound()
	}
	out := cloneClient(c)
	return &out, nil
}

func (m *MemoryStore) Update(_ context.Context, c *oauth.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[c.ClientID]; !ok {
		return oauth.ErrClientNotFound()
	}
	m.clients[c.ClientID] = cloneClient(*c)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id kernel.ClientID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clients[id]; !ok {
		return oauth.ErrClientNotFound()
	}
	delete(m.clients, id)
	return nil
}

func (m *MemoryStore) List(_ context.Context, opts kernel.PaginationOptions) (kernel.Paginated[oauth.Client], error) {
	m.mu.Lock()
	items := make([]oauth.Client, 0, len(m.clients))
	for _, c := range m.clients {
		items = append(items, cloneClient(c))
	}
	m.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return kernel.PageOf(items, opts), nil
}

// Codes

func (m *MemoryStore) Save(_ context.Context, code *oauth.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[codeKey{code.CodeHash, code.State}] = *code
	return nil
}

func (m *MemoryStore) Consume(_ context.Context, codeHash, state string) (*oauth.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := codeKey{codeHash, state}
	code, ok := m.codes[key]
	if !ok {
		return nil, oauth.ErrCodeExpiredOrInvalid()
	}
	delete(m.codes, key)
	return &code, nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, c := range m.codes {
		if c.IsExpired(now) {
			delete(m.codes, k)
			n++
		}
	}
	return n, nil
}

// CodeCount reports pending codes
func (m *MemoryStore) CodeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.codes)
}

// Audit records

func (m *MemoryStore) Tokens() oauth.TokenRepository { return memoryTokens{m} }

func (m *MemoryStore) Authorizations() oauth.AuthorizationRepository { return memoryAuthorizations{m} }

func (m *MemoryStore) TokenRecords() []oauth.TokenRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.tokens)
}

func (m *MemoryStore) AuthorizationRecords() []oauth.Authorization {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.authorizations)
}

type memoryTokens struct{ m *MemoryStore }

func (t memoryTokens) Save(_ context.Context, r *oauth.TokenRecord) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.tokens = append(t.m.tokens, *r)
	return nil
}

type memoryAuthorizations struct{ m *MemoryStore }

func (a memoryAuthorizations) Save(_ context.Context, r *oauth.Authorization) error {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	a.m.authorizations = append(a.m.authorizations, *r)
	return nil
}

func cloneClient(c oauth.Client) oauth.Client {
	c.RedirectURIs = slices.Clone(c.RedirectURIs)
	c.AllowedScopes = slices.Clone(c.AllowedScopes)
	c.AllowedGrantTypes = slices.Clone(c.AllowedGrantTypes)
	c.AuthorizedDomains = slices.Clone(c.AuthorizedDomains)
	return c
}
