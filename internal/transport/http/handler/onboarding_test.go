package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-onboarding/internal/application/onboarding"
	"github.com/go-onboarding/internal/domain"
	jwtinfra "github.com/go-onboarding/internal/infrastructure/jwt"
	"github.com/go-onboarding/internal/pkg/id"
	"github.com/go-onboarding/internal/transport/http/middleware"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockOnboardingSvc struct{ mock.Mock }

func (m *mockOnboardingSvc) Start(ctx context.Context, req onboarding.StartRequest) (*onboarding.Outcome, error) {
	args := m.Called(ctx, req)
	out, _ := args.Get(0).(*onboarding.Outcome)
	return out, args.Error(1)
}

func (m *mockOnboardingSvc) Resume(ctx context.Context, onboardingID, code string) (*onboarding.Outcome, error) {
	args := m.Called(ctx, onboardingID, code)
	out, _ := args.Get(0).(*onboarding.Outcome)
	return out, args.Error(1)
}

func (m *mockOnboardingSvc) Cancel(ctx context.Context, onboardingID string) (*onboarding.Outcome, error) {
	args := m.Called(ctx, onboardingID)
	out, _ := args.Get(0).(*onboarding.Outcome)
	return out, args.Error(1)
}

func (m *mockOnboardingSvc) Get(ctx context.Context, onboardingID string) (*onboarding.SessionView, error) {
	args := m.Called(ctx, onboardingID)
	v, _ := args.Get(0).(*onboarding.SessionView)
	return v, args.Error(1)
}

// --- helpers ---

// withOperator injects claims the way middleware.Auth would.
func withOperator(operatorID, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithClaims(r.Context(), &jwtinfra.Claims{OperatorID: operatorID, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newOnboardingRouter(svc onboarding.Service, operatorID, role string) http.Handler {
	h := NewOnboardingHandler(svc, zerolog.Nop())
	r := chi.NewRouter()
	if operatorID != "" {
		r.Use(withOperator(operatorID, role))
	}
	r.Post("/v1/onboarding", h.Start)
	r.Get("/v1/onboarding/{id}", h.Get)
	r.Post("/v1/onboarding/{id}/code", h.SubmitCode)
	r.Post("/v1/onboarding/{id}/cancel", h.Cancel)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeOutcome(t *testing.T, rr *httptest.ResponseRecorder) onboarding.Outcome {
	t.Helper()
	var out onboarding.Outcome
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

// --- tests ---

func TestStart_PassesOwnerAndMapsAccepted(t *testing.T) {
	svc := &mockOnboardingSvc{}
	onbID := id.New()
	svc.On("Start", mock.Anything, mock.MatchedBy(func(req onboarding.StartRequest) bool {
		return req.Username == "alice" && req.Password == "pw" && req.OwnerID == "op-1" && req.Proxy == nil
	})).Return(&onboarding.Outcome{Kind: onboarding.OutcomeNeedsChallenge, SessionID: onbID}, nil)

	rr := do(t, newOnboardingRouter(svc, "op-1", domain.RoleOperator), http.MethodPost, "/v1/onboarding",
		map[string]string{"username": "alice", "password": "pw"})

	assert.Equal(t, http.StatusAccepted, rr.Code)
	out := decodeOutcome(t, rr)
	assert.Equal(t, onboarding.OutcomeNeedsChallenge, out.Kind)
	assert.Equal(t, onbID, out.SessionID)
}

func TestStart_Validation(t *testing.T) {
	svc := &mockOnboardingSvc{}
	router := newOnboardingRouter(svc, "op-1", domain.RoleOperator)

	rr := do(t, router, http.MethodPost, "/v1/onboarding", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "password is required")

	rr = do(t, router, http.MethodPost, "/v1/onboarding", map[string]string{"username": "a", "password": "b", "extra": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	svc.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
}

func TestStart_OutcomeStatuses(t *testing.T) {
	cases := []struct {
		kind   onboarding.OutcomeKind
		status int
	}{
		{onboarding.OutcomeSuccess, http.StatusOK},
		{onboarding.OutcomeNeedsTwoFactor, http.StatusAccepted},
		{onboarding.OutcomeFailure, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			svc := &mockOnboardingSvc{}
			svc.On("Start", mock.Anything, mock.Anything).Return(&onboarding.Outcome{Kind: tc.kind}, nil)

			rr := do(t, newOnboardingRouter(svc, "", ""), http.MethodPost, "/v1/onboarding",
				map[string]string{"username": "alice", "password": "pw"})
			assert.Equal(t, tc.status, rr.Code)
		})
	}
}

func TestStart_InfrastructureErrorIs500(t *testing.T) {
	svc := &mockOnboardingSvc{}
	svc.On("Start", mock.Anything, mock.Anything).Return(nil, errors.New("dynamo unreachable"))

	rr := do(t, newOnboardingRouter(svc, "", ""), http.MethodPost, "/v1/onboarding",
		map[string]string{"username": "alice", "password": "pw"})

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "dynamo")
}

func TestSubmitCode_Success(t *testing.T) {
	svc := &mockOnboardingSvc{}
	onbID := id.New()
	svc.On("Get", mock.Anything, onbID).Return(&onboarding.SessionView{ID: onbID, OwnerID: "op-1"}, nil)
	svc.On("Resume", mock.Anything, onbID, "123456").Return(&onboarding.Outcome{Kind: onboarding.OutcomeSuccess, SessionID: onbID, Added: true}, nil)

	rr := do(t, newOnboardingRouter(svc, "op-1", domain.RoleOperator), http.MethodPost, "/v1/onboarding/"+onbID+"/code",
		map[string]string{"code": "123456"})

	assert.Equal(t, http.StatusOK, rr.Code)
	out := decodeOutcome(t, rr)
	assert.True(t, out.Added)
}

func TestSubmitCode_OtherOperatorSeesNotFound(t *testing.T) {
	svc := &mockOnboardingSvc{}
	onbID := id.New()
	svc.On("Get", mock.Anything, onbID).Return(&onboarding.SessionView{ID: onbID, OwnerID: "op-1"}, nil)

	rr := do(t, newOnboardingRouter(svc, "op-2", domain.RoleOperator), http.MethodPost, "/v1/onboarding/"+onbID+"/code",
		map[string]string{"code": "123456"})

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, onboarding.OutcomeNotFound, decodeOutcome(t, rr).Kind)
	svc.AssertNotCalled(t, "Resume", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitCode_AdminSeesAll(t *testing.T) {
	svc := &mockOnboardingSvc{}
	onbID := id.New()
	svc.On("Get", mock.Anything, onbID).Return(&onboarding.SessionView{ID: onbID, OwnerID: "op-1"}, nil)
	svc.On("Resume", mock.Anything, onbID, "1").Return(&onboarding.Outcome{Kind: onboarding.OutcomeFailure, SessionID: onbID, Message: "two-factor code not accepted"}, nil)

	rr := do(t, newOnboardingRouter(svc, "root", domain.RoleAdmin), http.MethodPost, "/v1/onboarding/"+onbID+"/code",
		map[string]string{"code": "1"})

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, "two-factor code not accepted", decodeOutcome(t, rr).Message)
}

func TestSubmitCode_MalformedIDNeverReachesService(t *testing.T) {
	svc := &mockOnboardingSvc{}

	rr := do(t, newOnboardingRouter(svc, "", ""), http.MethodPost, "/v1/onboarding/nonexistent-id/code",
		map[string]string{"code": "000000"})

	assert.Equal(t, http.StatusNotFound, rr.Code)
	svc.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestSubmitCode_UnknownID(t *testing.T) {
	svc := &mockOnboardingSvc{}
	onbID := id.New()
	svc.On("Get", mock.Anything, onbID).Return(nil, domain.ErrNotFound)

	rr := do(t, newOnboardingRouter(svc, "", ""), http.MethodPost, "/v1/onboarding/"+onbID+"/code",
		map[string]string{"code": "000000"})

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, onbID, decodeOutcome(t, rr).SessionID)
}

func TestCancel_TwiceNeverFails(t *testing.T) {
	svc := &mockOnboardingSvc{}
	onbID := id.New()
	svc.On("Get", mock.Anything, onbID).Return(&onboarding.SessionView{ID: onbID}, nil).Once()
	svc.On("Get", mock.Anything, onbID).Return(nil, domain.ErrNotFound)
	svc.On("Cancel", mock.Anything, onbID).Return(&onboarding.Outcome{Kind: onboarding.OutcomeCanceled, SessionID: onbID}, nil).Once()
	router := newOnboardingRouter(svc, "", "")

	first := do(t, router, http.MethodPost, "/v1/onboarding/"+onbID+"/cancel", nil)
	second := do(t, router, http.MethodPost, "/v1/onboarding/"+onbID+"/cancel", nil)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, onboarding.OutcomeCanceled, decodeOutcome(t, first).Kind)
	assert.Equal(t, http.StatusNotFound, second.Code)
	assert.Equal(t, onboarding.OutcomeNotFound, decodeOutcome(t, second).Kind)
}

func TestGet_ReturnsViewWithoutCredential(t *testing.T) {
	svc := &mockOnboardingSvc{}
	onbID := id.New()
	flow := domain.FlowTwoFactor
	svc.On("Get", mock.Anything, onbID).Return(&onboarding.SessionView{
		ID:       onbID,
		OwnerID:  "op-1",
		Username: "bob",
		Status:   domain.StatusNeedCode,
		Flow:     &flow,
		Logs:     []string{"[09:00:01] Starting login for @bob"},
	}, nil)

	rr := do(t, newOnboardingRouter(svc, "op-1", domain.RoleOperator), http.MethodGet, "/v1/onboarding/"+onbID, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var view map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, "NEED_CODE", view["status"])
	assert.Equal(t, "TWO_FACTOR", view["flow"])
	assert.NotContains(t, view, "credential")
	assert.NotContains(t, view, "password")
}

func TestGet_BackendErrorIs500(t *testing.T) {
	svc := &mockOnboardingSvc{}
	onbID := id.New()
	svc.On("Get", mock.Anything, onbID).Return(nil, errors.New("redis down"))

	rr := do(t, newOnboardingRouter(svc, "", ""), http.MethodGet, "/v1/onboarding/"+onbID, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
