package http

import (
	"bytes"
	"image/png"
	"net/http"
	"testing"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placeOrder(t *testing.T, c *client) *domain.Order {
	t.Helper()
	fillGuestCart(t, c)
	rec := c.do(http.MethodPost, "/api/v1/checkout", shippingBody("0987654321"))
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode[CheckoutResponse](t, rec).Order
}

func TestListOrders_RequiresUser(t *testing.T) {
	rec := setupApp(t).client(t).do(http.MethodGet, "/api/v1/orders/", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListOrders_OnlyOwnOrders(t *testing.T) {
	a := setupApp(t)
	alice := a.userClient(t, "alice", "")
	bob := a.userClient(t, "bob", "")
	first := placeOrder(t, alice)
	second := placeOrder(t, alice)
	placeOrder(t, bob)

	rec := alice.do(http.MethodGet, "/api/v1/orders/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[OrderListResponse](t, rec)
	require.Equal(t, 2, resp.TotalCount)
	ids := []string{resp.Orders[0].ID, resp.Orders[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
	assert.False(t, resp.Orders[0].OrderDate.Before(resp.Orders[1].OrderDate))
}

func TestGetOrder_Visibility(t *testing.T) {
	a := setupApp(t)
	alice := a.userClient(t, "alice", "")
	order := placeOrder(t, alice)
	guestOrder := placeOrder(t, a.client(t))

	tests := []struct {
		name string
		c    *client
		id   string
		want int
	}{
		{"owner", alice, order.ID, http.StatusOK},
		{"admin", a.userClient(t, "root", domain.RoleAdmin), order.ID, http.StatusOK},
		{"other user", a.userClient(t, "mallory", ""), order.ID, http.StatusNotFound},
		{"anonymous", a.client(t), order.ID, http.StatusNotFound},
		{"guest order by link", a.client(t), guestOrder.ID, http.StatusOK},
		{"unknown id", alice, "missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.c.do(http.MethodGet, "/api/v1/orders/"+tt.id, nil)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestGetOrderQR(t *testing.T) {
	a := setupApp(t)
	c := a.client(t)
	order := placeOrder(t, c)

	rec := c.do(http.MethodGet, "/api/v1/orders/"+order.ID+"/qr?size=256", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())

	rec = c.do(http.MethodGet, "/api/v1/orders/"+order.ID+"/qr?size=5000", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
