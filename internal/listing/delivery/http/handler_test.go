package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"github.com/tair/marketplace-listing/internal/listing/domain"
	"github.com/tair/marketplace-listing/internal/listing/pager"
	"github.com/tair/marketplace-listing/internal/listing/usecase/command"
	"github.com/tair/marketplace-listing/internal/listing/usecase/query"
	"github.com/tair/marketplace-listing/pkg/auth"
)

const testSecret = "test-secret"

type fakeRepo struct {
	mu       sync.Mutex
	products []domain.Product
	deleted  []string
}

func (r *fakeRepo) set(products []domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products = products
	r.deleted = nil
}

func (r *fakeRepo) FindPage(ctx context.Context, params domain.ListParams, page int) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		if params.PublishedOnly && p.ProductStatus != domain.StatusPublished {
			continue
		}
		if params.OwnerOnly && p.UserID != params.OwnerID {
			continue
		}
		matched = append(matched, p)
	}

	offset := params.Offset(page)
	if offset >= len(matched) {
		return []domain.Product{}, nil
	}
	end := offset + params.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *fakeRepo) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.ID == id {
			out := p
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.products {
		if p.ID == id {
			r.products = append(r.products[:i], r.products[i+1:]...)
			r.deleted = append(r.deleted, id)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *fakeRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.products)), nil
}

type fakeIdentity struct {
	mu     sync.Mutex
	admins map[string]bool
}

func (f *fakeIdentity) setAdmin(userID string, isAdmin bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.admins == nil {
		f.admins = make(map[string]bool)
	}
	f.admins[userID] = isAdmin
}

func (f *fakeIdentity) IsAdmin(ctx context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.admins[userID], nil
}

// Prometheus collectors register globally, so the handler is built once and
// shared; each test resets the fakes it needs.
var (
	envOnce     sync.Once
	envRepo     *fakeRepo
	envIdentity *fakeIdentity
	envRouter   *mux.Router
)

func setup(t *testing.T) (*fakeRepo, *fakeIdentity, *mux.Router) {
	t.Helper()
	envOnce.Do(func() {
		envRepo = &fakeRepo{}
		envIdentity = &fakeIdentity{}

		p := pager.New(envRepo, pager.DefaultOptions())
		mw := NewMiddleware(testSecret, envIdentity)
		handler := NewListingHandler(
			command.NewDeleteProductHandler(envRepo, nil),
			query.NewListProductsHandler(p),
			query.NewGetProductHandler(envRepo),
			envRepo,
			envIdentity,
			mw,
		)

		envRouter = mux.NewRouter()
		handler.RegisterRoutes(envRouter)
	})
	return envRepo, envIdentity, envRouter
}

func bearer(t *testing.T, userID, username, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, userID, username, role)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return "Bearer " + token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestListListings_Public(t *testing.T) {
	repo, _, router := setup(t)
	repo.set([]domain.Product{
		{ID: "p1", Title: "Bike", ProductStatus: domain.StatusPublished},
		{ID: "p2", Title: "Drafted", ProductStatus: domain.StatusDraft},
		{ID: "p3", Title: "Lamp", ProductStatus: domain.StatusPublished},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/listings?search=public-list", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	resp := decode(t, rec)
	if !resp.Success {
		t.Fatalf("success = false: %s", resp.Error)
	}

	data, _ := resp.Data.(map[string]interface{})
	products, _ := data["products"].([]interface{})
	if len(products) != 2 {
		t.Errorf("len(products) = %d, want 2 published", len(products))
	}
	if hasMore, _ := data["has_more"].(bool); hasMore {
		t.Error("has_more = true for a short page")
	}
}

func TestListListings_MineWithoutTokenIsUnauthorized(t *testing.T) {
	repo, _, router := setup(t)
	repo.set(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/listings?mine=true&search=mine-anon", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestListListings_MineReturnsOnlyOwnListings(t *testing.T) {
	repo, _, router := setup(t)
	repo.set([]domain.Product{
		{ID: "p1", UserID: "u1", ProductStatus: domain.StatusDraft},
		{ID: "p2", UserID: "u2", ProductStatus: domain.StatusPublished},
		{ID: "p3", UserID: "u1", ProductStatus: domain.StatusPublished},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/listings?mine=true&search=mine-u1", nil)
	req.Header.Set("Authorization", bearer(t, "u1", "karl", "user"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	resp := decode(t, rec)
	data, _ := resp.Data.(map[string]interface{})
	products, _ := data["products"].([]interface{})
	// Drafts included for the owner.
	if len(products) != 2 {
		t.Errorf("len(products) = %d, want 2 owned (drafts included)", len(products))
	}
}

func TestGetListing(t *testing.T) {
	repo, _, router := setup(t)
	repo.set([]domain.Product{{ID: "p1", Title: "Bike"}})

	req := httptest.NewRequest(http.MethodGet, "/api/listings/p1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/listings/missing", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteListing_RequiresToken(t *testing.T) {
	repo, _, router := setup(t)
	repo.set([]domain.Product{{ID: "p1", UserID: "u1"}})

	req := httptest.NewRequest(http.MethodDelete, "/api/listings/p1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(repo.deleted) != 0 {
		t.Errorf("deleted = %v, want nothing", repo.deleted)
	}
}

func TestDeleteListing_Owner(t *testing.T) {
	repo, _, router := setup(t)
	repo.set([]domain.Product{{ID: "p1", UserID: "u1"}})

	req := httptest.NewRequest(http.MethodDelete, "/api/listings/p1", nil)
	req.Header.Set("Authorization", bearer(t, "u1", "karl", "user"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "p1" {
		t.Errorf("deleted = %v, want [p1]", repo.deleted)
	}
}

func TestDeleteListing_NonOwnerForbidden(t *testing.T) {
	repo, _, router := setup(t)
	repo.set([]domain.Product{{ID: "p1", UserID: "u1"}})

	req := httptest.NewRequest(http.MethodDelete, "/api/listings/p1", nil)
	req.Header.Set("Authorization", bearer(t, "u2", "mari", "user"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if len(repo.deleted) != 0 {
		t.Errorf("deleted = %v, want nothing", repo.deleted)
	}
}

func TestDeleteListing_AdminVerifiedByIdentityService(t *testing.T) {
	repo, identity, router := setup(t)
	repo.set([]domain.Product{{ID: "p1", UserID: "u1"}})
	identity.setAdmin("admin-1", true)

	req := httptest.NewRequest(http.MethodDelete, "/api/listings/p1", nil)
	req.Header.Set("Authorization", bearer(t, "admin-1", "root", "admin"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(repo.deleted) != 1 {
		t.Errorf("deleted = %v, want [p1]", repo.deleted)
	}
}

func TestDeleteListing_ForgedAdminClaimRejected(t *testing.T) {
	repo, identity, router := setup(t)
	repo.set([]domain.Product{{ID: "p1", UserID: "u1"}})
	identity.setAdmin("u3", false)

	// The token claims admin but the identity service disagrees.
	req := httptest.NewRequest(http.MethodDelete, "/api/listings/p1", nil)
	req.Header.Set("Authorization", bearer(t, "u3", "liis", "admin"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
