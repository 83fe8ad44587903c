package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/orders"
	"github.com/fjod/go_storefront/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type app struct {
	router chi.Router
	docs   *store.MemoryStore
	carts  *cart.Service
	lookup *orders.Lookup
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func setupApp(t *testing.T) *app {
	return setupAppWithTimeout(t, 5*time.Second)
}

func setupAppWithTimeout(t *testing.T, timeout time.Duration) *app {
	docs := store.NewMemoryStore()
	t.Cleanup(func() { docs.Close() })

	ctx := context.Background()
	require.NoError(t, docs.Set(ctx, store.Path(catalog.ProductsCollection, "f1"), domain.Product{
		ID: "f1", Code: "HK-01", Name: "Hoa Hồng Đỏ", Price: 400_000, SalePrice: ptr(int64(320_000)), Category: "ky-niem",
	}))
	require.NoError(t, docs.Set(ctx, store.Path(catalog.ProductsCollection, "f2"), domain.Product{
		ID: "f2", Code: "SN-02", Name: "Hoa Cúc", Price: 90_000, Category: "sinh-nhat",
	}))
	require.NoError(t, docs.Set(ctx, store.Path(catalog.CategoriesCollection, "ky-niem"), domain.Category{
		Name: "Hoa Kỷ Niệm", Slug: "hoa-ky-niem",
	}))

	log := testLogger()
	products := catalog.NewStore(docs, log)
	carts := cart.NewService(cart.NewMemoryStorage(), log)
	lookup := orders.NewLookup(docs, log)
	service := orders.NewService(docs, carts, nil, log)

	router := NewRouter(RouterConfig{
		Catalog:            NewCatalogHandler(products, nil, log, timeout),
		Cart:               NewCartHandler(carts, products, log, timeout),
		Checkout:           NewCheckoutHandler(service, carts, log, timeout),
		Orders:             NewOrdersHandler(lookup, log, "https://shop.example.vn/tracking/%s", timeout),
		Admin:              NewAdminHandler(service, lookup, log, timeout),
		Log:                log,
		JWTSecret:          testSecret,
		RequestTimeout:     timeout,
		MaxRequestBodySize: 1 << 20,
	})

	return &app{router: router, docs: docs, carts: carts, lookup: lookup}
}

// client keeps the cart session cookie and an optional bearer token across calls.
type client struct {
	t       *testing.T
	app     *app
	token   string
	session *http.Cookie
}

func (a *app) client(t *testing.T) *client {
	return &client{t: t, app: a}
}

func (a *app) userClient(t *testing.T, uid, role string) *client {
	c := a.client(t)
	c.token = signToken(t, uid, role)
	return c
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.session != nil {
		req.AddCookie(c.session)
	}

	rec := httptest.NewRecorder()
	c.app.router.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == CartSessionCookie {
			c.session = ck
		}
	}
	return rec
}

func signToken(t *testing.T, uid, role string) string {
	t.Helper()
	claims := Claims{
		Email:       uid + "@example.vn",
		DisplayName: "Khách " + uid,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func shippingBody(phone string) map[string]any {
	return map[string]any{
		"shipping": map[string]any{
			"fullName": "Lê Thị Hoa",
			"phone":    phone,
			"email":    "hoa.le@example.vn",
			"address":  "45 Trần Hưng Đạo, Hà Nội",
		},
		"paymentMethod": "COD",
	}
}
