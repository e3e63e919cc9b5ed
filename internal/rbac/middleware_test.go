package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mofad-energy/mofad-erp/internal/shared"
)

type fakeSource struct {
	perms map[int64][]string
	err   error
}

func (f fakeSource) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.perms[userID], nil
}

func call(t *testing.T, mw func(http.Handler) http.Handler, actorID int64) *httptest.ResponseRecorder {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if actorID != 0 {
		req = req.WithContext(shared.ContextWithActor(req.Context(), actorID))
	}
	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)
	return rr
}

func TestRequireAny(t *testing.T) {
	m := Middleware{Source: fakeSource{perms: map[int64][]string{
		7: {PermPurchasingView},
		8: {PermPurchasingReceive},
	}}}
	mw := m.RequireAny(PermPurchasingView, PermPurchasingEdit)

	require.Equal(t, http.StatusOK, call(t, mw, 7).Code)
	require.Equal(t, http.StatusForbidden, call(t, mw, 8).Code)
	require.Equal(t, http.StatusForbidden, call(t, mw, 0).Code)
}

func TestRequireAll(t *testing.T) {
	m := Middleware{Source: fakeSource{perms: map[int64][]string{
		7: {PermPurchasingView, PermPurchasingEdit},
		8: {PermPurchasingView},
	}}}
	mw := m.RequireAll(PermPurchasingView, PermPurchasingEdit)

	require.Equal(t, http.StatusOK, call(t, mw, 7).Code)
	require.Equal(t, http.StatusForbidden, call(t, mw, 8).Code)
}

func TestRequireNormalizesCase(t *testing.T) {
	m := Middleware{Source: fakeSource{perms: map[int64][]string{
		7: {"PURCHASING.VIEW"},
	}}}
	mw := m.RequireAny(" Purchasing.View ")

	require.Equal(t, http.StatusOK, call(t, mw, 7).Code)
}

func TestRequireNoPermissionsPassesThrough(t *testing.T) {
	m := Middleware{Source: fakeSource{}}
	require.Equal(t, http.StatusOK, call(t, m.RequireAny(), 0).Code)
}

func TestRequireLookupFailure(t *testing.T) {
	m := Middleware{Source: fakeSource{err: errors.New("db down")}}
	mw := m.RequireAll(PermPurchasingView)

	require.Equal(t, http.StatusInternalServerError, call(t, mw, 7).Code)
}
