package http

import (
	"net/http"
	"testing"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillGuestCart(t *testing.T, c *client) {
	t.Helper()
	rec := c.do(http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductRef: "f1", Quantity: 1})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = c.do(http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{ProductRef: "f2", Quantity: 2})
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestCheckout_GuestOrder(t *testing.T) {
	a := setupApp(t)
	c := a.client(t)
	fillGuestCart(t, c)
	c.do(http.MethodPost, "/api/v1/cart/coupon", ApplyCouponRequestDTO{Code: "GIAM10"})

	rec := c.do(http.MethodGet, "/api/v1/checkout/quote", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	quote := decode[QuoteResponse](t, rec)
	assert.True(t, quote.FreeShipping)
	assert.True(t, quote.CouponApplied)
	assert.Equal(t, int64(450_000), quote.Totals.Total)

	rec = c.do(http.MethodPost, "/api/v1/checkout", shippingBody("0987 654 321"))
	require.Equal(t, http.StatusCreated, rec.Code)
	order := decode[CheckoutResponse](t, rec).Order
	require.NotNil(t, order)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, domain.GuestUserID, order.UserID)
	assert.Equal(t, "0987654321", order.Phone)
	assert.Equal(t, int64(500_000), order.Subtotal)
	assert.Zero(t, order.Shipping)
	assert.Equal(t, int64(50_000), order.Discount)
	assert.Equal(t, int64(450_000), order.Total)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentUnpaid, order.PaymentStatus)

	stored, err := a.lookup.GetByID(t.Context(), order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)

	rec = c.do(http.MethodGet, "/api/v1/cart/", nil)
	assert.Empty(t, decode[cartBody](t, rec).Lines)
}

func TestCheckout_SignedInUser(t *testing.T) {
	a := setupApp(t)
	c := a.userClient(t, "u-9", "")
	fillGuestCart(t, c)

	rec := c.do(http.MethodPost, "/api/v1/checkout", shippingBody("0912345678"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "u-9", decode[CheckoutResponse](t, rec).Order.UserID)

	list, err := a.lookup.ListByUser(t.Context(), "u-9")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCheckout_Rejections(t *testing.T) {
	a := setupApp(t)

	t.Run("invalid phone", func(t *testing.T) {
		c := a.client(t)
		fillGuestCart(t, c)

		rec := c.do(http.MethodPost, "/api/v1/checkout", shippingBody("12345"))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "phone", decode[ErrorResponse](t, rec).Details)

		rec = c.do(http.MethodGet, "/api/v1/cart/", nil)
		assert.Len(t, decode[cartBody](t, rec).Lines, 2)
	})

	t.Run("invalid payment method", func(t *testing.T) {
		c := a.client(t)
		fillGuestCart(t, c)
		body := shippingBody("0987654321")
		body["paymentMethod"] = "bitcoin"

		rec := c.do(http.MethodPost, "/api/v1/checkout", body)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "paymentMethod", decode[ErrorResponse](t, rec).Details)
	})

	t.Run("empty cart", func(t *testing.T) {
		rec := a.client(t).do(http.MethodPost, "/api/v1/checkout", shippingBody("0987654321"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "empty_cart", decode[ErrorResponse](t, rec).Code)
	})

	list, err := a.lookup.Query(t.Context(), orders.Criteria{})
	require.NoError(t, err)
	assert.Empty(t, list)
}
