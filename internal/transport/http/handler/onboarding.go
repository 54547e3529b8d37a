package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-onboarding/internal/application/onboarding"
	"github.com/go-onboarding/internal/domain"
	"github.com/go-onboarding/internal/pkg/id"
	"github.com/go-onboarding/internal/pkg/validate"
	"github.com/go-onboarding/internal/transport/http/middleware"
	"github.com/rs/zerolog"
)

type startBody struct {
	Username string  `json:"username" validate:"required,max=64"`
	Password string  `json:"password" validate:"required,max=256"`
	Proxy    *string `json:"proxy,omitempty" validate:"omitempty,max=512"`
}

type codeBody struct {
	Code string `json:"code" validate:"required,max=16"`
}

// OnboardingHandler exposes the onboarding state machine over HTTP.
type OnboardingHandler struct {
	svc onboarding.Service
	log zerolog.Logger
}

func NewOnboardingHandler(svc onboarding.Service, log zerolog.Logger) *OnboardingHandler {
	return &OnboardingHandler{svc: svc, log: log}
}

func (h *OnboardingHandler) Start(w http.ResponseWriter, r *http.Request) {
	var body startBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := onboarding.StartRequest{Username: body.Username, Password: body.Password, Proxy: body.Proxy}
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		req.OwnerID = claims.OperatorID
	}
	out, err := h.svc.Start(r.Context(), req)
	h.respond(w, r, out, err)
}

func (h *OnboardingHandler) SubmitCode(w http.ResponseWriter, r *http.Request) {
	onbID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	var body codeBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.Resume(r.Context(), onbID, body.Code)
	h.respond(w, r, out, err)
}

func (h *OnboardingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	onbID, ok := h.authorize(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Cancel(r.Context(), onbID)
	h.respond(w, r, out, err)
}

func (h *OnboardingHandler) Get(w http.ResponseWriter, r *http.Request) {
	onbID := chi.URLParam(r, "id")
	view, ok := h.lookup(w, r, onbID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// authorize resolves the {id} URL parameter to a session visible to the
// caller. Sessions of other operators are reported as not found.
func (h *OnboardingHandler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	onbID := chi.URLParam(r, "id")
	if _, ok := h.lookup(w, r, onbID); !ok {
		return "", false
	}
	return onbID, true
}

func (h *OnboardingHandler) lookup(w http.ResponseWriter, r *http.Request, onbID string) (*onboarding.SessionView, bool) {
	if !id.Valid(onbID) {
		writeNotFound(w, onbID)
		return nil, false
	}
	view, err := h.svc.Get(r.Context(), onbID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeNotFound(w, onbID)
			return nil, false
		}
		h.log.Error().Err(err).Str("onboarding_id", onbID).Msg("load onboarding session")
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil, false
	}
	if !visible(r, view) {
		writeNotFound(w, onbID)
		return nil, false
	}
	return view, true
}

func visible(r *http.Request, view *onboarding.SessionView) bool {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || claims.Role == domain.RoleAdmin {
		return true
	}
	return view.OwnerID == claims.OperatorID
}

func (h *OnboardingHandler) respond(w http.ResponseWriter, r *http.Request, out *onboarding.Outcome, err error) {
	if err != nil {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("onboarding operation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, statusFor(out.Kind), out)
}

func writeNotFound(w http.ResponseWriter, onbID string) {
	writeJSON(w, http.StatusNotFound, onboarding.Outcome{
		Kind:      onboarding.OutcomeNotFound,
		SessionID: onbID,
		Message:   "onboarding session not found or expired",
	})
}

func statusFor(k onboarding.OutcomeKind) int {
	switch k {
	case onboarding.OutcomeSuccess, onboarding.OutcomeCanceled:
		return http.StatusOK
	case onboarding.OutcomeNeedsChallenge, onboarding.OutcomeNeedsTwoFactor:
		return http.StatusAccepted
	case onboarding.OutcomeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}
