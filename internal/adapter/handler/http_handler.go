package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zeshalondrag/sorapc-checkout/internal/core/domain"
	"github.com/zeshalondrag/sorapc-checkout/internal/core/service"
)

const (
	userIDHeader         = "X-User-ID"
	idempotencyKeyHeader = "Idempotency-Key"
)

type HTTPHandler struct {
	checkout *service.CheckoutService
}

func NewHTTPHandler(checkout *service.CheckoutService) *HTTPHandler {
	return &HTTPHandler{checkout: checkout}
}

// Register mounts every route on the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/checkout", h.Checkout)
	mux.HandleFunc("/api/orders", h.Orders)
	mux.HandleFunc("/api/orders/purchased", h.Purchased)
	mux.HandleFunc("/api/cart", h.Cart)
	mux.HandleFunc("/api/cart/items", h.CartItems)
}

type CheckoutHTTPRequest struct {
	PaymentMethod string `json:"payment_method"`
}

type CheckoutHTTPResponse struct {
	OrderID       string `json:"order_id,omitempty"`
	TotalPrice    int64  `json:"total_price,omitempty"`
	Commission    int64  `json:"commission"`
	FinalTotal    int64  `json:"final_total,omitempty"`
	State         string `json:"state"`
	ReceiptQueued bool   `json:"receipt_queued"`
	Message       string `json:"message,omitempty"`
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, CheckoutHTTPResponse{Message: "missing user identity"})
		return
	}

	var req CheckoutHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, CheckoutHTTPResponse{Message: "invalid request body"})
		return
	}

	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, CheckoutHTTPResponse{Message: err.Error()})
		return
	}

	idemKey := r.Header.Get(idempotencyKeyHeader)

	result, err := h.checkout.Checkout(r.Context(), userID, idemKey, method)
	if err != nil {
		status := http.StatusInternalServerError
		message := "internal error"

		switch {
		case errors.Is(err, service.ErrDuplicateRequest):
			status = http.StatusConflict
			message = "duplicate request"
		case errors.Is(err, service.ErrEmptyCart):
			status = http.StatusBadRequest
			message = "cart is empty"
		case errors.Is(err, domain.ErrArticleNotFound):
			status = http.StatusNotFound
			message = err.Error()
		case errors.Is(err, domain.ErrInsufficientStock):
			status = http.StatusGone
			message = err.Error()
		case errors.Is(err, service.ErrInconsistentState):
			message = err.Error()
		case errors.Is(err, service.ErrOrderPersistFailure):
			message = "order could not be recorded"
		}

		writeJSON(w, status, CheckoutHTTPResponse{
			State:   string(result.State),
			Message: message,
		})
		return
	}

	writeJSON(w, http.StatusOK, CheckoutHTTPResponse{
		OrderID:       result.Order.ID,
		TotalPrice:    result.Order.TotalPrice,
		Commission:    result.Order.Commission,
		FinalTotal:    result.Order.FinalTotal,
		State:         string(result.State),
		ReceiptQueued: result.ReceiptQueued,
	})
}

type OrderHTTPItem struct {
	Article   string `json:"article"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

type OrderHTTPResponse struct {
	ID         string          `json:"id"`
	Items      []OrderHTTPItem `json:"items"`
	TotalPrice int64           `json:"total_price"`
	Commission int64           `json:"commission"`
	FinalTotal int64           `json:"final_total"`
	Payment    string          `json:"payment_method"`
	PlacedAt   string          `json:"placed_at"`
	Articles   []string        `json:"articles"`
}

func (h *HTTPHandler) Orders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing user identity"})
		return
	}

	orders, err := h.checkout.Orders(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
		return
	}

	out := make([]OrderHTTPResponse, 0, len(orders))
	for _, o := range orders {
		items := make([]OrderHTTPItem, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, OrderHTTPItem{
				Article:   it.Article,
				Title:     it.Title,
				UnitPrice: it.UnitPrice,
				Quantity:  it.Quantity,
			})
		}
		out = append(out, OrderHTTPResponse{
			ID:         o.ID,
			Items:      items,
			TotalPrice: o.TotalPrice,
			Commission: o.Commission,
			FinalTotal: o.FinalTotal,
			Payment:    string(o.Payment),
			PlacedAt:   o.PlacedAt.Format("2006-01-02T15:04:05Z07:00"),
			Articles:   o.Articles,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) Purchased(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing user identity"})
		return
	}

	article := r.URL.Query().Get("article")
	if article == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "article is required"})
		return
	}

	purchased, err := h.checkout.HasPurchased(r.Context(), userID, article)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"purchased": purchased})
}

type CartItemHTTPRequest struct {
	Article  string `json:"article"`
	Quantity int    `json:"quantity"`
}

func (h *HTTPHandler) Cart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing user identity"})
		return
	}

	items, err := h.checkout.CartItems(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
		return
	}

	out := make([]OrderHTTPItem, 0, len(items))
	for _, it := range items {
		out = append(out, OrderHTTPItem{
			Article:   it.Article,
			Title:     it.Title,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) CartItems(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing user identity"})
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req CartItemHTTPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
			return
		}
		if req.Article == "" || req.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "article and positive quantity are required"})
			return
		}

		err := h.checkout.AddCartItem(r.Context(), userID, req.Article, req.Quantity)
		if errors.Is(err, domain.ErrArticleNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": err.Error()})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "item added"})

	case http.MethodDelete:
		article := r.URL.Query().Get("article")
		if article == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "article is required"})
			return
		}
		if err := h.checkout.RemoveCartItem(r.Context(), userID, article); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "item removed"})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
