package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abgdnv/bazaar/internal/backend"
	"github.com/abgdnv/bazaar/internal/cart"
	"github.com/abgdnv/bazaar/internal/catalog"
	"github.com/abgdnv/bazaar/internal/connectivity"
	perrors "github.com/abgdnv/bazaar/internal/errors"
	"github.com/abgdnv/bazaar/internal/kv"
	"github.com/abgdnv/bazaar/internal/notify"
	"github.com/abgdnv/bazaar/internal/service"
	"github.com/abgdnv/bazaar/pkg/auth"
	"github.com/abgdnv/bazaar/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	skilletID = "a0000000-0000-4000-8000-000000000005"
	vaseID    = "a0000000-0000-4000-8000-000000000007"
	shirtsID  = "c0000000-0000-4000-8000-000000000012"
	shoesID   = "c0000000-0000-4000-8000-000000000011"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type fixture struct {
	router  http.Handler
	monitor *connectivity.Monitor
	inbox   *notify.Inbox
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	ds, err := backend.MockDataset()
	require.NoError(t, err)
	mem := backend.NewMemoryBackend(ds)

	svc := service.NewService(mem, time.Minute, 50, logger)
	monitor := connectivity.NewMonitor(mem, time.Second, time.Second, logger)
	inbox := notify.NewInbox(10)
	manager := cart.NewManager(cart.ManagerDeps{
		KV:           kv.NewMemory(),
		Backend:      mem,
		Connectivity: monitor,
		Resolver:     svc,
		Notifier:     inbox,
		Logger:       logger,
	})
	h := NewHandler(svc, manager, inbox, auth.HeaderIdentifier{Header: web.XUserId}, monitor, logger)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return &fixture{router: r, monitor: monitor, inbox: inbox}
}

func (f *fixture) do(t *testing.T, method, path, session, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if session != "" {
		req.Header.Set(web.XSessionId, session)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func Test_SearchProducts(t *testing.T) {
	testCases := []struct {
		name          string
		query         string
		expectedCode  int
		expectedNames []string
		expectedTotal int
	}{
		{
			name:          "Success - category sorted by price",
			query:         "?category=" + shirtsID + "&sort=price-desc",
			expectedCode:  http.StatusOK,
			expectedNames: []string{"Oxford Shirt", "Linen Shirt"},
			expectedTotal: 2,
		},
		{
			name:          "Success - price bounds inclusive",
			query:         "?minPrice=3900&maxPrice=4200&sort=price-asc",
			expectedCode:  http.StatusOK,
			expectedNames: []string{"Cast Iron Skillet", "Linen Shirt"},
			expectedTotal: 2,
		},
		{
			name:          "Success - text query",
			query:         "?q=speaker",
			expectedCode:  http.StatusOK,
			expectedNames: []string{"Bookshelf Speaker"},
			expectedTotal: 1,
		},
		{
			name:          "Success - paginated",
			query:         "?limit=3&offset=9",
			expectedCode:  http.StatusOK,
			expectedTotal: 10,
		},
		{
			name:          "Success - inverted price range matches nothing",
			query:         "?minPrice=500&maxPrice=100",
			expectedCode:  http.StatusOK,
			expectedNames: []string{},
			expectedTotal: 0,
		},
		{
			name:         "Failure - unknown sort",
			query:        "?sort=cheapest",
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "Failure - invalid category",
			query:        "?category=shirts",
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "Failure - zero limit",
			query:        "?limit=0",
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "Failure - invalid inStock",
			query:        "?inStock=maybe",
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			f := newFixture(t)

			// when
			rec := f.do(t, http.MethodGet, "/api/v1/products"+tc.query, "", "")

			// then
			require.Equal(t, tc.expectedCode, rec.Code, rec.Body.String())
			if tc.expectedCode != http.StatusOK {
				return
			}
			page := decode[catalog.Page](t, rec)
			assert.Equal(t, tc.expectedTotal, page.Total)
			if tc.expectedNames != nil {
				names := make([]string, 0, len(page.Items))
				for _, p := range page.Items {
					names = append(names, p.Name)
				}
				assert.Equal(t, tc.expectedNames, names)
			}
		})
	}
}

func Test_FindProduct(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/products/"+skilletID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cast Iron Skillet", decode[catalog.Product](t, rec).Name)

	rec = f.do(t, http.MethodGet, "/api/v1/products/a0000000-0000-4000-8000-0000000000ff", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/products/not-a-uuid", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_Categories(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/categories", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]service.CategoryDto](t, rec), 8)

	rec = f.do(t, http.MethodGet, "/api/v1/categories/"+shoesID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	shoes := decode[service.CategoryDto](t, rec)
	require.Len(t, shoes.Breadcrumb, 2)
	assert.Equal(t, "apparel", shoes.Breadcrumb[0].Slug)

	rec = f.do(t, http.MethodGet, "/api/v1/categories/slug/home-kitchen", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Kitchen", decode[service.CategoryDto](t, rec).Name)

	rec = f.do(t, http.MethodGet, "/api/v1/categories/slug/garden", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_GuestCart(t *testing.T) {
	f := newFixture(t)
	const session = "tab-1"

	// add
	rec := f.do(t, http.MethodPost, "/api/v1/cart/items", session,
		fmt.Sprintf(`{"product_id":%q,"quantity":2}`, skilletID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	line := decode[CartLineDto](t, rec)
	assert.Equal(t, int32(2), line.Quantity)
	assert.Equal(t, "Cast Iron Skillet", line.Name)
	assert.Equal(t, session, rec.Header().Get(web.XSessionId))

	// view
	rec = f.do(t, http.MethodGet, "/api/v1/cart", session, "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[CartDto](t, rec)
	assert.Equal(t, "guest", view.State)
	assert.Equal(t, int64(7800), view.Subtotal)
	require.Len(t, view.Lines, 1)

	// update
	rec = f.do(t, http.MethodPatch, "/api/v1/cart/items/"+line.ID.String(), session, `{"quantity":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodGet, "/api/v1/cart", session, "")
	assert.Equal(t, int64(11700), decode[CartDto](t, rec).Subtotal)

	// remove
	rec = f.do(t, http.MethodDelete, "/api/v1/cart/items/"+line.ID.String(), session, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodDelete, "/api/v1/cart/items/"+line.ID.String(), session, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// other sessions are isolated
	rec = f.do(t, http.MethodGet, "/api/v1/cart", "tab-2", "")
	assert.Empty(t, decode[CartDto](t, rec).Lines)
}

func Test_AddItem_Invalid(t *testing.T) {
	testCases := []struct {
		name         string
		body         string
		expectedCode int
	}{
		{name: "zero quantity", body: fmt.Sprintf(`{"product_id":%q,"quantity":0}`, skilletID), expectedCode: http.StatusBadRequest},
		{name: "missing product", body: `{"quantity":1}`, expectedCode: http.StatusBadRequest},
		{name: "malformed body", body: `{"product_id":`, expectedCode: http.StatusBadRequest},
		{name: "unknown product", body: `{"product_id":"a0000000-0000-4000-8000-0000000000ff","quantity":1}`, expectedCode: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)

			rec := f.do(t, http.MethodPost, "/api/v1/cart/items", "s", tc.body)

			assert.Equal(t, tc.expectedCode, rec.Code, rec.Body.String())
		})
	}
}

func Test_SessionIDAssigned(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/session", "", "")

	require.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get(web.XSessionId)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, decode[SessionDto](t, rec).SessionID)
}

func Test_ToggleWishlist(t *testing.T) {
	f := newFixture(t)
	path := "/api/v1/wishlist/" + vaseID + "/toggle"

	rec := f.do(t, http.MethodPost, path, "s", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[ToggleDto](t, rec).Saved)

	rec = f.do(t, http.MethodGet, "/api/v1/wishlist", "s", "")
	assert.Len(t, decode[WishlistDto](t, rec).Items, 1)

	rec = f.do(t, http.MethodPost, path, "s", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ToggleDto](t, rec).Saved)

	rec = f.do(t, http.MethodGet, "/api/v1/wishlist", "s", "")
	assert.Empty(t, decode[WishlistDto](t, rec).Items)

	rec = f.do(t, http.MethodPost, "/api/v1/wishlist/a0000000-0000-4000-8000-0000000000ff/toggle", "s", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_SignInAndOut(t *testing.T) {
	f := newFixture(t)
	const session = "s"
	f.do(t, http.MethodPost, "/api/v1/cart/items", session, fmt.Sprintf(`{"product_id":%q,"quantity":1}`, skilletID))

	rec := f.do(t, http.MethodPost, "/api/v1/session/signin", session, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/session/signin", session, "", web.XUserId, "user-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[CartDto](t, rec)
	assert.Equal(t, "authenticated", view.State)
	assert.Equal(t, "user-1", view.Owner)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, int64(3900), view.Subtotal)

	rec = f.do(t, http.MethodPost, "/api/v1/session/signin", session, "", web.XUserId, "user-1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/session/signout", session, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/v1/session/signout", session, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/cart", session, "")
	assert.Empty(t, decode[CartDto](t, rec).Lines)
}

func Test_OfflineChangesSyncOnDemand(t *testing.T) {
	f := newFixture(t)
	const session = "s"
	rec := f.do(t, http.MethodPost, "/api/v1/session/signin", session, "", web.XUserId, "user-1")
	require.Equal(t, http.StatusOK, rec.Code)
	// load the catalog while online
	f.do(t, http.MethodGet, "/api/v1/products", "", "")

	rec = f.do(t, http.MethodPut, "/api/v1/connectivity", "", `{"online":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ConnectivityDto{Online: false, Overridden: true}, decode[ConnectivityDto](t, rec))

	rec = f.do(t, http.MethodPost, "/api/v1/cart/items", session, fmt.Sprintf(`{"product_id":%q,"quantity":2}`, skilletID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodGet, "/api/v1/cart", session, "")
	assert.Equal(t, 1, decode[CartDto](t, rec).PendingSync)

	rec = f.do(t, http.MethodPost, "/api/v1/session/sync", session, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/v1/connectivity", "", `{"online":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/v1/session/sync", session, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, SyncDto{Replayed: 1, Discarded: 0, Pending: 0}, decode[SyncDto](t, rec))

	rec = f.do(t, http.MethodGet, "/api/v1/cart", session, "")
	view := decode[CartDto](t, rec)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, int32(2), view.Lines[0].Quantity)
	assert.Equal(t, 0, view.PendingSync)

	rec = f.do(t, http.MethodGet, "/api/v1/connectivity", "", "")
	assert.True(t, decode[ConnectivityDto](t, rec).Overridden)
	rec = f.do(t, http.MethodPut, "/api/v1/connectivity", "", `{"online":null}`)
	assert.False(t, decode[ConnectivityDto](t, rec).Overridden)
}

func Test_Notifications(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/session/notifications", "s", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	require.NoError(t, f.inbox.Notify(context.Background(), notify.New("s", notify.LevelError, "Could not update your cart")))
	rec = f.do(t, http.MethodGet, "/api/v1/session/notifications", "s", "")
	list := decode[[]notify.Notification](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "Could not update your cart", list[0].Message)

	rec = f.do(t, http.MethodGet, "/api/v1/session/notifications", "s", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func Test_respondErr(t *testing.T) {
	testCases := []struct {
		name         string
		err          error
		expectedCode int
	}{
		{name: "not found", err: perrors.ErrLineNotFound, expectedCode: http.StatusNotFound},
		{name: "validation", err: perrors.ErrInvalidQuantity, expectedCode: http.StatusBadRequest},
		{name: "unauthenticated", err: auth.ErrUnauthenticated, expectedCode: http.StatusUnauthorized},
		{name: "invalid transition", err: fmt.Errorf("sign in: %w", perrors.ErrInvalidTransition), expectedCode: http.StatusConflict},
		{name: "rejected", err: fmt.Errorf("%w: %w", perrors.ErrRejected, backend.NewError("add", backend.KindSemantic, nil)), expectedCode: http.StatusUnprocessableEntity},
		{name: "unreachable", err: backend.NewError("list", backend.KindTransient, errors.New("refused")), expectedCode: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("boom"), expectedCode: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := &Handler{logger: slog.New(slog.DiscardHandler)}
			rec := httptest.NewRecorder()

			h.respondErr(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err, "Failed")

			assert.Equal(t, tc.expectedCode, rec.Code)
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func Test_HealthCheck(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
