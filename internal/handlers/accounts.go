package handlers

import (
	"encoding/json"
	"net/http"

	"loyalty/internal/auth"
	"loyalty/internal/middleware"
	"loyalty/internal/points"
	"loyalty/internal/services"
	"loyalty/internal/validator"
)

type createAccountRequest struct {
	IdentityRef string `json:"identity_ref"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Role == "" {
		req.Role = "customer"
	}
	if err := validator.ValidateRole(req.Role); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidateEmail(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidateDisplayName(req.DisplayName); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to secure password")
		return
	}
	accountID, err := h.service.CreateAccount(r.Context(), services.CreateAccountRequest{
		ActorID:      identity.AccountID,
		IdentityRef:  req.IdentityRef,
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: passwordHash,
		Role:         req.Role,
	})
	if err != nil {
		if err == services.ErrDuplicateAccount {
			respondError(w, http.StatusConflict, "duplicate_account")
			return
		}
		respondError(w, http.StatusInternalServerError, "account_creation_failed")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"account_id": accountID})
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAll(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load accounts")
		return
	}
	normalized := make([]map[string]any, 0, len(accounts))
	for _, account := range accounts {
		normalized = append(normalized, map[string]any{
			"id":           account.ID,
			"identity_ref": account.IdentityRef,
			"email":        account.Email,
			"display_name": account.DisplayName,
			"role":         account.Role,
			"balance":      points.Format(account.Balance),
			"created_at":   account.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

// SelfCheck reports every account whose stored balance is compared
// against the sum of its ledger entries. The difference column should
// always read zero.
func (h *Handler) SelfCheck(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.accounts.BalanceSummaries(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to self_check")
		return
	}
	normalized := make([]map[string]any, 0, len(summaries))
	for _, item := range summaries {
		normalized = append(normalized, map[string]any{
			"account_id":         item.ID,
			"email":              item.Email,
			"display_name":       item.DisplayName,
			"stored_balance":     points.Format(item.StoredBalance),
			"calculated_balance": points.Format(item.CalculatedBalance),
			"difference":         points.Format(item.Difference),
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	page := parseInt(query.Get("page"), 1)
	offset := (page - 1) * limit
	rows, err := h.audit.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, rows)
}
