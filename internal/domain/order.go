package domain

import "time"

// OrderItem is a copy of a cart line taken at checkout. It shares nothing with the cart.
type OrderItem struct {
	ProductRef        string `json:"productRef"`
	Code              string `json:"code,omitempty"`
	Name              string `json:"name"`
	UnitPrice         int64  `json:"unitPrice"`
	OriginalUnitPrice int64  `json:"originalUnitPrice"`
	ImageURL          string `json:"imageUrl,omitempty"`
	Quantity          int    `json:"quantity"`
}

func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// ShippingInfo is the contact data entered at checkout.
type ShippingInfo struct {
	FullName string `json:"fullName" validate:"required"`
	Phone    string `json:"phone" validate:"required,vnphone"`
	Email    string `json:"email" validate:"required,basicemail"`
	Address  string `json:"address" validate:"required"`
	Note     string `json:"note,omitempty"`
}

type Order struct {
	ID            string        `json:"id,omitempty"`
	UserID        string        `json:"userId"`
	CustomerName  string        `json:"customerName"`
	Phone         string        `json:"phone"`
	Email         string        `json:"email"`
	Address       string        `json:"address"`
	Note          string        `json:"note,omitempty"`
	Items         []OrderItem   `json:"items"`
	Subtotal      int64         `json:"subtotal"`
	Shipping      int64         `json:"shipping"`
	Discount      int64         `json:"discount"`
	Total         int64         `json:"total"`
	Coupon        string        `json:"coupon,omitempty"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"paymentMethod"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	OrderDate     time.Time     `json:"orderDate"`
	ProcessedDate *time.Time    `json:"processedDate"`
	ShippingDate  *time.Time    `json:"shippingDate"`
	DeliveryDate  *time.Time    `json:"deliveryDate"`
	CancelledDate *time.Time    `json:"cancelledDate"`
}

func (o *Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// TimestampField names the write-once timestamp stamped on entering status,
// or "" for the initial status.
func TimestampField(status OrderStatus) string {
	switch status {
	case OrderStatusProcessing:
		return "processedDate"
	case OrderStatusShipping:
		return "shippingDate"
	case OrderStatusCompleted:
		return "deliveryDate"
	case OrderStatusCancelled:
		return "cancelledDate"
	}
	return ""
}

// Timestamp returns the pointer currently held for status' timestamp field.
func (o *Order) Timestamp(status OrderStatus) *time.Time {
	switch status {
	case OrderStatusProcessing:
		return o.ProcessedDate
	case OrderStatusShipping:
		return o.ShippingDate
	case OrderStatusCompleted:
		return o.DeliveryDate
	case OrderStatusCancelled:
		return o.CancelledDate
	}
	return nil
}

// SetTimestamp stamps status' timestamp if it is still unset and reports whether it did.
func (o *Order) SetTimestamp(status OrderStatus, at time.Time) bool {
	if o.Timestamp(status) != nil {
		return false
	}
	t := at
	switch status {
	case OrderStatusProcessing:
		o.ProcessedDate = &t
	case OrderStatusShipping:
		o.ShippingDate = &t
	case OrderStatusCompleted:
		o.DeliveryDate = &t
	case OrderStatusCancelled:
		o.CancelledDate = &t
	default:
		return false
	}
	return true
}
