package auth_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orbitcrm/orbit/internal/auth"
	"github.com/orbitcrm/orbit/internal/organization"
	"github.com/orbitcrm/orbit/internal/principal"
)

// fakeKeyRepo is an in-memory auth.KeyRepository.
type fakeKeyRepo struct {
	mu      sync.Mutex
	keys    map[uuid.UUID]*auth.APIKey
	touched chan uuid.UUID
}

func newFakeKeyRepo() *fakeKeyRepo {
	return &fakeKeyRepo{
		keys:    make(map[uuid.UUID]*auth.APIKey),
		touched: make(chan uuid.UUID, 16),
	}
}

func (r *fakeKeyRepo) Create(_ context.Context, key *auth.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key.ID = uuid.New()
	key.CreatedAt = time.Now()
	cp := *key
	r.keys[key.ID] = &cp
	return nil
}

func (r *fakeKeyRepo) GetByDigest(_ context.Context, digest string) (*auth.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.KeyDigest == digest {
			cp := *k
			return &cp, nil
		}
	}
	return nil, auth.ErrKeyNotFound
}

func (r *fakeKeyRepo) GetByID(_ context.Context, id uuid.UUID) (*auth.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.keys[id]; ok {
		cp := *k
		return &cp, nil
	}
	return nil, auth.ErrKeyNotFound
}

func (r *fakeKeyRepo) ListByOrganization(_ context.Context, orgID int64) ([]auth.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []auth.APIKey
	for _, k := range r.keys {
		if k.OrganizationID != nil && *k.OrganizationID == orgID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (r *fakeKeyRepo) Revoke(_ context.Context, id uuid.UUID, orgID *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return auth.ErrKeyNotFound
	}
	if orgID != nil && (k.OrganizationID == nil || *k.OrganizationID != *orgID) {
		return auth.ErrKeyNotFound
	}
	if k.RevokedAt == nil {
		now := time.Now()
		k.RevokedAt = &now
	}
	return nil
}

func (r *fakeKeyRepo) TouchLastUsed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.keys[id]; ok {
		now := time.Now()
		k.LastUsedAt = &now
	}
	select {
	case r.touched <- id:
	default:
	}
	return nil
}

func (r *fakeKeyRepo) CountAll(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys), nil
}

// setRevoked marks a stored key revoked directly.
func (r *fakeKeyRepo) setRevoked(digest string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.KeyDigest == digest {
			now := time.Now()
			k.RevokedAt = &now
		}
	}
}

// setExpired backdates a stored key's expiry.
func (r *fakeKeyRepo) setExpired(digest string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k.KeyDigest == digest {
			past := time.Now().Add(-time.Hour)
			k.ExpiresAt = &past
		}
	}
}

// fakePrincipalRepo is an in-memory principal.Repository.
type fakePrincipalRepo struct {
	mu         sync.Mutex
	principals map[string]*principal.Principal
	nextID     int64
}

func newFakePrincipalRepo() *fakePrincipalRepo {
	return &fakePrincipalRepo{principals: make(map[string]*principal.Principal)}
}

func (r *fakePrincipalRepo) Create(_ context.Context, p *principal.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.principals[p.AuthSubject]; ok {
		return principal.ErrDuplicateSubject
	}
	r.nextID++
	p.ID = r.nextID
	cp := *p
	r.principals[p.AuthSubject] = &cp
	return nil
}

func (r *fakePrincipalRepo) GetByID(_ context.Context, id int64) (*principal.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.principals {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, principal.ErrPrincipalNotFound
}

func (r *fakePrincipalRepo) GetByAuthSubject(_ context.Context, subject string) (*principal.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.principals[subject]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, principal.ErrPrincipalNotFound
}

func (r *fakePrincipalRepo) ListByOrganization(_ context.Context, orgID int64) ([]principal.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []principal.Principal
	for _, p := range r.principals {
		if p.OrganizationID == orgID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakePrincipalRepo) UpdateFlags(_ context.Context, orgID, id int64, flags principal.Flags) (*principal.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.principals {
		if p.ID == id && p.OrganizationID == orgID {
			if flags.Administrator != nil {
				p.Administrator = *flags.Administrator
			}
			if flags.Disabled != nil {
				p.Disabled = *flags.Disabled
			}
			cp := *p
			return &cp, nil
		}
	}
	return nil, principal.ErrPrincipalNotFound
}

func (r *fakePrincipalRepo) CountAll(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.principals), nil
}

// fakeOrgRepo is an in-memory organization.Repository.
type fakeOrgRepo struct {
	mu     sync.Mutex
	orgs   map[int64]*organization.Organization
	nextID int64
}

func newFakeOrgRepo() *fakeOrgRepo {
	return &fakeOrgRepo{orgs: make(map[int64]*organization.Organization)}
}

func (r *fakeOrgRepo) Create(_ context.Context, org *organization.Organization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orgs {
		if existing.Slug == org.Slug {
			return organization.ErrDuplicateSlug
		}
	}
	r.nextID++
	org.ID = r.nextID
	org.CreatedAt = time.Now()
	cp := *org
	r.orgs[org.ID] = &cp
	return nil
}

func (r *fakeOrgRepo) GetByID(_ context.Context, id int64) (*organization.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if org, ok := r.orgs[id]; ok {
		cp := *org
		return &cp, nil
	}
	return nil, organization.ErrOrganizationNotFound
}

func (r *fakeOrgRepo) GetBySlug(_ context.Context, slug string) (*organization.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, org := range r.orgs {
		if org.Slug == slug {
			cp := *org
			return &cp, nil
		}
	}
	return nil, organization.ErrOrganizationNotFound
}

func (r *fakeOrgRepo) List(_ context.Context) ([]organization.Organization, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []organization.Organization
	for _, org := range r.orgs {
		out = append(out, *org)
	}
	return out, nil
}

func (r *fakeOrgRepo) UpdateSettings(_ context.Context, id int64, settings []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if org, ok := r.orgs[id]; ok {
		org.Settings = settings
		return nil
	}
	return organization.ErrOrganizationNotFound
}

func (r *fakeOrgRepo) SetDisabled(_ context.Context, id int64, disabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if org, ok := r.orgs[id]; ok {
		org.Disabled = disabled
		return nil
	}
	return organization.ErrOrganizationNotFound
}
