package domain

import (
	"fmt"
	"strings"
)

type PaymentMethod string

const (
	PaymentCOD     PaymentMethod = "COD"
	PaymentBanking PaymentMethod = "banking"
	PaymentMomo    PaymentMethod = "momo"
	PaymentZaloPay PaymentMethod = "zalopay"
)

// ParsePaymentMethod accepts the canonical spelling; COD is matched case-insensitively.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	if strings.EqualFold(s, string(PaymentCOD)) {
		return PaymentCOD, nil
	}
	switch m := PaymentMethod(strings.ToLower(s)); m {
	case PaymentBanking, PaymentMomo, PaymentZaloPay:
		return m, nil
	}
	return "", fmt.Errorf("unknown payment method %q", s)
}

// InitialPaymentStatus derives the payment status at order creation. There is
// no gateway callback: every non-COD method is recorded as paid immediately.
func (m PaymentMethod) InitialPaymentStatus() PaymentStatus {
	if m == PaymentCOD {
		return PaymentUnpaid
	}
	return PaymentPaid
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(strings.ToLower(s)); st {
	case PaymentUnpaid, PaymentPaid, PaymentRefunded:
		return st, nil
	}
	return "", fmt.Errorf("unknown payment status %q", s)
}
