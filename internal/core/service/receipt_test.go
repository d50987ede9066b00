package service

import (
	"strings"
	"testing"
	"time"

	"github.com/zeshalondrag/sorapc-checkout/internal/core/domain"
)

func TestFormatReceipt(t *testing.T) {
	placedAt := time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC)
	order := domain.NewOrder("order-1", "user-1", []domain.LineItem{
		{Article: "A1", Title: "Gaming PC", UnitPrice: 10000, Quantity: 2},
		{Article: "B2", Title: "Office PC", UnitPrice: 555000, Quantity: 1},
	}, domain.PaymentCard, placedAt)

	subject, body := formatReceipt(order, "buyer@example.com")

	if subject != "Чек покупки" {
		t.Errorf("unexpected subject: %q", subject)
	}

	for _, want := range []string{
		"SORAPC",
		"14.03.2026 15:09",
		"buyer@example.com",
		"Карта",
		"Gaming PC (x2)",
		"Office PC (x1)",
		"Сумма товаров: 5 750 ₽",
		"Комиссия: 57.50 ₽",
		"Итого: 5 807.50 ₽",
		"Спасибо за покупку в SORAPC!",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("receipt body missing %q", want)
		}
	}
}

func TestFormatReceipt_CashLabel(t *testing.T) {
	order := domain.NewOrder("order-1", "user-1", []domain.LineItem{
		{Article: "A1", Title: "Gaming PC", UnitPrice: 10000, Quantity: 1},
	}, domain.PaymentCash, time.Now())

	_, body := formatReceipt(order, "buyer@example.com")

	if !strings.Contains(body, "Наличные") {
		t.Error("expected cash payment label")
	}
	if !strings.Contains(body, "Комиссия: 0 ₽") {
		t.Error("expected zero commission line")
	}
}

func TestFormatMinor(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 ₽"},
		{50, "0.50 ₽"},
		{100, "1 ₽"},
		{20000, "200 ₽"},
		{20200, "202 ₽"},
		{123456789, "1 234 567.89 ₽"},
		{100000000, "1 000 000 ₽"},
	}

	for _, c := range cases {
		if got := formatMinor(c.in); got != c.want {
			t.Errorf("formatMinor(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}
