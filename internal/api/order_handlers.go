package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/merchware/backpay/internal/middleware"
	"github.com/merchware/backpay/internal/order"
	"github.com/merchware/backpay/internal/validate"
)

// OrderHandlers holds dependencies for order-related HTTP handlers.
type OrderHandlers struct {
	orders order.Repository
}

// NewOrderHandlers creates a new OrderHandlers instance.
func NewOrderHandlers(orders order.Repository) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// GetOrder returns a single order with its transaction record and notes.
// GET /orders/{id}
func (h *OrderHandlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodGet {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	orderID := strings.TrimPrefix(r.URL.Path, "/orders/")
	if orderID == "" || strings.Contains(orderID, "/") {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Order ID is required")
		return
	}

	ord, err := h.orders.GetByID(orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Order not found")
			return
		}
		slog.ErrorContext(ctx, "failed to get order", "order_id", orderID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve order")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(ord); err != nil {
		slog.ErrorContext(ctx, "failed to encode order response", "error", err)
	}
}

// NotesResponse wraps an order's audit notes.
type NotesResponse struct {
	OrderID string       `json:"order_id"`
	Notes   []order.Note `json:"notes"`
}

// AddNoteRequest represents the body for appending a manual audit note.
type AddNoteRequest struct {
	Content string `json:"content"`
}

// Notes handles the order notes collection.
// GET /orders/{id}/notes lists the audit trail; POST appends a manual note.
func (h *OrderHandlers) Notes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID := orderIDFromPath(r.URL.Path, "/notes")
	if orderID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Order ID is required")
		return
	}

	ord, err := h.orders.GetByID(orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			ctx = middleware.SetErrorCode(ctx, ErrCodeNotFound)
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Order not found")
			return
		}
		slog.ErrorContext(ctx, "failed to get order", "order_id", orderID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to retrieve order")
		return
	}

	switch r.Method {
	case http.MethodGet:
		notes := ord.Notes
		if notes == nil {
			notes = []order.Note{}
		}
		response := NotesResponse{OrderID: ord.ID, Notes: notes}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(response); err != nil {
			slog.ErrorContext(ctx, "failed to encode notes response", "error", err)
		}

	case http.MethodPost:
		var req AddNoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
			return
		}
		content, err := validate.NoteContent(req.Content)
		if err != nil {
			ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Note content is required and must be at most 2000 characters")
			return
		}

		ord.AddNote(content)
		if err := h.orders.Update(ord); err != nil {
			if errors.Is(err, order.ErrVersionConflict) {
				ctx = middleware.SetErrorCode(ctx, ErrCodeConflict)
				WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "Order was updated concurrently; retry")
				return
			}
			slog.ErrorContext(ctx, "failed to save order note", "order_id", orderID, "error", err)
			ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to save note")
			return
		}

		slog.InfoContext(ctx, "order note added",
			"order_id", orderID,
			"admin_id", middleware.GetAdminID(ctx))

		response := NotesResponse{OrderID: ord.ID, Notes: ord.Notes}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(response); err != nil {
			slog.ErrorContext(ctx, "failed to encode notes response", "error", err)
		}

	default:
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	}
}
