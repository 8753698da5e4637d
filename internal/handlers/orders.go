package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"printmatch/db"
	"printmatch/internal/callback"
	"printmatch/models"

	"github.com/go-chi/chi/v5"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams парсит limit и offset из query, с дефолтами и ограничениями
func parsePaginationParams(r *http.Request) PaginationParams {
	var params PaginationParams
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	params.Limit = 5 // дефолт
	params.Offset = 0

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 50 {
			params.Limit = l
		}
	}
	if offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}

type orderResponse struct {
	models.Order
	// nil, пока исполнитель не выбран
	ExecutorID *int64 `json:"executorId"`
}

type bidResponse struct {
	models.Bid
	ProviderName string `json:"providerName"`
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := callback.PositiveID(chi.URLParam(r, "orderId"))
	if err != nil {
		http.Error(w, "Invalid orderId", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// GetOrderHandler возвращает заказ и его исполнителя
func (h *Handler) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.Store.GetOrder(r.Context(), orderID)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to get order", http.StatusInternalServerError)
		return
	}

	resp := orderResponse{Order: *order}
	if order.Assigned() {
		resp.ExecutorID = &order.ExecutorID.Int64
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetBidsForOrderHandler возвращает предложения по заказу в порядке поступления
func (h *Handler) GetBidsForOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	params := parsePaginationParams(r)

	if _, err := h.Store.GetOrder(r.Context(), orderID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get order", http.StatusInternalServerError)
		return
	}

	bids, err := h.Store.BidsForOrder(r.Context(), orderID)
	if err != nil {
		http.Error(w, "Failed to get bids", http.StatusInternalServerError)
		return
	}

	page := []bidResponse{}
	for i := params.Offset; i < len(bids) && len(page) < params.Limit; i++ {
		page = append(page, bidResponse{Bid: bids[i].Bid, ProviderName: bids[i].ProviderLabel()})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}
