package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zeshalondrag/sorapc-checkout/internal/core/domain"
)

const receiptSubject = "Чек покупки"

type receiptJob struct {
	order domain.Order
}

// enqueueReceipt hands the order to the dispatch workers without
// blocking the checkout path. A full queue drops the receipt; the
// order already stands.
func (s *CheckoutService) enqueueReceipt(order domain.Order) bool {
	select {
	case s.receiptQueue <- receiptJob{order: order}:
		return true
	default:
		s.countReceipt("dropped")
		s.log.Error("receipt queue full, receipt dropped", "order_id", order.ID)
		return false
	}
}

// DispatchReceipts consumes the receipt queue until Close is called.
// Run one goroutine per worker.
func (s *CheckoutService) DispatchReceipts(workerID int) {
	for job := range s.receiptQueue {
		s.deliverReceipt(workerID, job.order)
	}
}

// Close stops the receipt workers. Call after the HTTP surface is down.
func (s *CheckoutService) Close() {
	close(s.receiptQueue)
}

// deliverReceipt resolves the buyer's address and sends the summary,
// retrying with exponential backoff. Delivery failure never touches
// the recorded order or the cart.
func (s *CheckoutService) deliverReceipt(workerID int, order domain.Order) {
	emailCtx, cancel := s.storeCtx(context.Background())
	email, err := s.identity.Email(emailCtx, order.UserID)
	cancel()
	if err != nil {
		s.countReceipt("failure")
		s.log.Error("receipt address lookup failed",
			"worker", workerID,
			"order_id", order.ID,
			"user_id", order.UserID,
			"error", err,
		)
		return
	}

	subject, body := formatReceipt(order, email)

	for attempt := 0; attempt <= s.receiptRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(s.retryBackoff * time.Duration(1<<(attempt-1)))
		}

		sendCtx, cancel := s.storeCtx(context.Background())
		err = s.mailer.Send(sendCtx, email, subject, body)
		cancel()
		if err == nil {
			s.countReceipt("success")
			s.log.Info("receipt delivered", "worker", workerID, "order_id", order.ID)
			return
		}
	}

	s.countReceipt("failure")
	s.log.Error("receipt delivery failed, order stands",
		"worker", workerID,
		"order_id", order.ID,
		"error", err,
	)
}

// formatReceipt renders the purchase summary the storefront has always
// mailed: header, buyer and date, itemized lines, totals block, footer.
func formatReceipt(order domain.Order, email string) (subject, body string) {
	var b strings.Builder

	b.WriteString("<html><body>")
	b.WriteString("<h1>SORAPC</h1>")
	b.WriteString("<h2>Чек покупки</h2>")
	fmt.Fprintf(&b, "<p>Дата: %s<br>", order.PlacedAt.Format("02.01.2006 15:04"))
	fmt.Fprintf(&b, "Пользователь: %s<br>", email)
	fmt.Fprintf(&b, "Способ оплаты: %s</p>", paymentLabel(order.Payment))

	b.WriteString("<h3>Товары:</h3><ul>")
	for _, it := range order.Items {
		fmt.Fprintf(&b, "<li>%s (x%d) — %s</li>", it.Title, it.Quantity, formatMinor(it.LineTotal()))
	}
	b.WriteString("</ul>")

	fmt.Fprintf(&b, "<p>Сумма товаров: %s<br>", formatMinor(order.TotalPrice))
	fmt.Fprintf(&b, "Комиссия: %s<br>", formatMinor(order.Commission))
	fmt.Fprintf(&b, "<b>Итого: %s</b></p>", formatMinor(order.FinalTotal))

	b.WriteString("<p>Спасибо за покупку в SORAPC!<br>")
	b.WriteString("Свяжитесь с нами: sorapc.store@gmail.com | +7 (999) 123-45-67</p>")
	b.WriteString("</body></html>")

	return receiptSubject, b.String()
}

func paymentLabel(m domain.PaymentMethod) string {
	if m == domain.PaymentCard {
		return "Карта"
	}
	return "Наличные"
}

// formatMinor renders a minor-unit amount as rubles with space
// thousand-grouping; kopeks show only when nonzero.
func formatMinor(v int64) string {
	rubles := v / 100
	kopeks := v % 100

	s := groupThousands(rubles)
	if kopeks != 0 {
		s += fmt.Sprintf(".%02d", kopeks)
	}
	return s + " ₽"
}

func groupThousands(n int64) string {
	digits := fmt.Sprintf("%d", n)
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
