package purchasing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mofad-energy/mofad-erp/internal/observability"
	"github.com/mofad-energy/mofad-erp/internal/rbac"
	"github.com/mofad-energy/mofad-erp/internal/shared"
)

type stubPermissions struct {
	grants map[int64][]string
}

func (s stubPermissions) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	return s.grants[userID], nil
}

func newTestServer(t *testing.T) (*httptest.Server, *Service) {
	t.Helper()
	svc, _, _, _, _ := newTestService()
	perms := stubPermissions{grants: map[int64][]string{
		1: {rbac.PermPurchasingView, rbac.PermPurchasingEdit},
		2: {rbac.PermPurchasingView, rbac.PermPurchasingReview},
		3: {rbac.PermPurchasingView, rbac.PermPurchasingApprove},
		4: {rbac.PermPurchasingView, rbac.PermPurchasingReceive},
	}}
	handler := NewHandler(slog.Default(), svc, rbac.Middleware{Source: perms}, observability.NewMetrics())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if raw := req.Header.Get(shared.ActorHeader); raw != "" {
				if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
					req = req.WithContext(shared.ContextWithActor(req.Context(), id))
				}
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/purchasing", handler.MountRoutes)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc
}

func doJSON(t *testing.T, method, url string, actor int64, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if actor != 0 {
		req.Header.Set(shared.ActorHeader, strconv.FormatInt(actor, 10))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHandlerLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL + "/purchasing"

	resp := doJSON(t, http.MethodPost, base+"/pros", 1, map[string]any{
		"supplier": "Port Harcourt Fuels",
		"lines": []map[string]any{
			{"product_id": 5, "uom": "LTR", "unit_price": "500", "quantity": "100"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created PurchaseOrder
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.Equal(t, StatusDraft, created.Status)
	require.NotEmpty(t, created.Number)

	id := created.ID
	path := func(suffix string) string { return fmt.Sprintf("%s/pros/%d%s", base, id, suffix) }

	resp = doJSON(t, http.MethodPost, path("/submit"), 1, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, path("/review"), 2, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, path("/approve"), 3, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, path("/send"), 3, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodPost, path("/confirm"), 4, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lineID := created.Lines[0].ID
	resp = doJSON(t, http.MethodPost, path("/record-delivery"), 4, map[string]any{
		"line_id": lineID, "quantity": "60",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var delivery DeliveryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&delivery))
	require.Equal(t, StatusPartiallyDelivered, delivery.PurchaseOrder.Status)
	require.True(t, delivery.Reconciliation.PendingValue.Equal(decimal.NewFromInt(20000)))

	resp = doJSON(t, http.MethodGet, path("/reconciliation"), 1, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var recon Reconciliation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recon))
	require.Equal(t, DeliveryPartial, recon.DeliveryStatus)
}

func TestHandlerStatusMapping(t *testing.T) {
	srv, svc := newTestServer(t)
	base := srv.URL + "/purchasing"
	ctx := context.Background()

	po := createTestOrder(t, svc)

	// Transition not legal from DRAFT.
	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/pros/%d/approve", base, po.ID), 3, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Unknown order.
	resp = doJSON(t, http.MethodGet, base+"/pros/99999", 1, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Malformed id.
	resp = doJSON(t, http.MethodGet, base+"/pros/abc", 1, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Rejection without a reason.
	_, err := svc.SubmitForReview(ctx, po.ID, 1)
	require.NoError(t, err)
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/pros/%d/review-reject", base, po.ID), 2, map[string]any{"reason": ""})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Validation failure on create.
	resp = doJSON(t, http.MethodPost, base+"/pros", 1, map[string]any{"supplier": ""})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerPermissions(t *testing.T) {
	srv, svc := newTestServer(t)
	base := srv.URL + "/purchasing"

	po := createTestOrder(t, svc)
	_, err := svc.SubmitForReview(context.Background(), po.ID, 1)
	require.NoError(t, err)

	// No actor header.
	resp := doJSON(t, http.MethodGet, base+"/pros", 0, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Editor lacks the review permission.
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/pros/%d/review", base, po.ID), 1, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Reviewer lacks the approve permission.
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/pros/%d/approve", base, po.ID), 2, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandlerQueues(t *testing.T) {
	srv, svc := newTestServer(t)
	base := srv.URL + "/purchasing"
	ctx := context.Background()

	po := createTestOrder(t, svc)
	_, err := svc.SubmitForReview(ctx, po.ID, 1)
	require.NoError(t, err)

	resp := doJSON(t, http.MethodGet, base+"/queue/reviewer", 2, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out ListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Items, 1)
	require.Equal(t, po.ID, out.Items[0].ID)

	resp = doJSON(t, http.MethodGet, base+"/queue/approver", 2, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out = ListResponse{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Empty(t, out.Items)

	resp = doJSON(t, http.MethodGet, base+"/queue/warehouse", 2, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
