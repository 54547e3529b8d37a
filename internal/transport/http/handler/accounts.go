package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-onboarding/internal/application/pool"
	"github.com/go-onboarding/internal/domain"
)

// AccountHandler exposes read access to the account pool.
type AccountHandler struct {
	svc pool.Service
}

func NewAccountHandler(svc pool.Service) *AccountHandler { return &AccountHandler{svc: svc} }

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	acct, err := h.svc.Get(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "account not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, acct)
}
