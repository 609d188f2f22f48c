package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"loyalty/internal/auth"
	"loyalty/internal/middleware"
	"loyalty/internal/points"
	"loyalty/internal/services"
	"loyalty/internal/websocket"
)

type saleRequest struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Amount    string `json:"amount"`
}

func (h *Handler) RecordSale(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req saleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	ref, err := accountRef(req.AccountID, req.Email)
	if err != nil {
		respondError(w, http.StatusBadRequest, "account reference required")
		return
	}
	amount, err := points.ParseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	result, err := h.service.RecordSale(r.Context(), services.SaleRequest{
		ActorID:    identity.AccountID,
		AccountRef: ref,
		Amount:     amount,
	})
	if err != nil {
		respondServiceError(w, err, "sale_failed")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"account_id":    result.AccountID,
		"amount":        points.Format(amount),
		"points_earned": points.Format(result.PointsEarned),
		"new_balance":   points.Format(result.NewBalance),
	})
}

type refundRequest struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Amount    string `json:"amount"`
}

func (h *Handler) RecordRefund(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	ref, err := accountRef(req.AccountID, req.Email)
	if err != nil {
		respondError(w, http.StatusBadRequest, "account reference required")
		return
	}
	amount, err := points.ParseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	result, err := h.service.RecordRefund(r.Context(), services.RefundRequest{
		ActorID:    identity.AccountID,
		AccountRef: ref,
		Amount:     amount,
	})
	if err != nil {
		respondServiceError(w, err, "refund_failed")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"account_id":     result.AccountID,
		"amount":         points.Format(amount),
		"points_removed": points.Format(result.PointsRemoved),
		"new_balance":    points.Format(result.NewBalance),
		"partial":        result.Partial,
	})
}

type redeemRequest struct {
	Points string `json:"points"`
}

func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	pts, err := points.ParseAmount(req.Points)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	result, err := h.service.Redeem(r.Context(), services.RedeemRequest{
		AccountID: identity.AccountID,
		Points:    pts,
	})
	if err != nil {
		respondServiceError(w, err, "redeem_failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"redeem_value": points.Format(result.RedeemValue),
		"new_balance":  points.Format(result.NewBalance),
	})
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	page := parseInt(query.Get("page"), 1)
	limit := parseInt(query.Get("limit"), 20)
	offset := (page - 1) * limit
	dashboard, err := h.service.Dashboard(r.Context(), identity.AccountID, limit, offset)
	if err != nil {
		respondServiceError(w, err, "dashboard_failed")
		return
	}
	transactions := make([]map[string]any, 0, len(dashboard.Entries))
	for _, entry := range dashboard.Entries {
		transactions = append(transactions, map[string]any{
			"id":           entry.ID,
			"kind":         entry.Kind,
			"amount":       points.Format(entry.Amount),
			"points_delta": points.Format(entry.PointsDelta),
			"description":  entry.Description,
			"created_at":   entry.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"account_id":   dashboard.Account.ID,
		"display_name": dashboard.Account.DisplayName,
		"balance":      points.Format(dashboard.Account.Balance),
		"transactions": transactions,
	})
}

func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.AccountID)
}

func accountRef(accountID, email string) (string, error) {
	if trimmed := strings.TrimSpace(accountID); trimmed != "" {
		return trimmed, nil
	}
	if trimmed := strings.TrimSpace(email); trimmed != "" {
		return trimmed, nil
	}
	return "", errors.New("account reference required")
}

func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrAccountNotFound):
		respondError(w, http.StatusNotFound, "account_not_found")
	case errors.Is(err, services.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, "invalid_amount")
	case errors.Is(err, services.ErrInsufficientBalance):
		respondError(w, http.StatusBadRequest, "insufficient_balance")
	case errors.Is(err, services.ErrDuplicateAccount):
		respondError(w, http.StatusConflict, "duplicate_account")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout")
	default:
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
