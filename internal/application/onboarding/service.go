package onboarding

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-onboarding/internal/domain"
	"github.com/go-onboarding/internal/metrics"
	"github.com/go-onboarding/internal/pkg/id"
	"github.com/rs/zerolog"
)

var (
	errLoginWithoutChallenge = errors.New("login failed without an explicit challenge")
	errTwoFactorNotAccepted  = errors.New("two-factor code not accepted")
	errChallengeNotAccepted  = errors.New("challenge code not accepted")
	errNotAwaitingCode       = errors.New("session is not awaiting a code")
)

// OutcomeKind is the observable result of an onboarding operation.
type OutcomeKind string

const (
	OutcomeSuccess        OutcomeKind = "SUCCESS"
	OutcomeNeedsChallenge OutcomeKind = "NEEDS_CHALLENGE"
	OutcomeNeedsTwoFactor OutcomeKind = "NEEDS_TWO_FACTOR"
	OutcomeFailure        OutcomeKind = "FAILURE"
	OutcomeNotFound       OutcomeKind = "NOT_FOUND"
	OutcomeCanceled       OutcomeKind = "CANCELED"
)

// Outcome is returned by Start, Resume and Cancel. SessionID is empty only
// when no session could be created.
type Outcome struct {
	Kind      OutcomeKind `json:"outcome"`
	SessionID string      `json:"id,omitempty"`
	Username  string      `json:"username,omitempty"`
	Message   string      `json:"message,omitempty"`
	Added     bool        `json:"added,omitempty"`
	Logs      []string    `json:"logs,omitempty"`
}

type StartRequest struct {
	Username string  `json:"username" validate:"required"`
	Password string  `json:"password" validate:"required"`
	Proxy    *string `json:"proxy"`
	OwnerID  string  `json:"-"`
}

// SessionView is the user-visible projection of a pending session. It never
// carries the credential.
type SessionView struct {
	ID        string                  `json:"id"`
	OwnerID   string                  `json:"owner_id,omitempty"`
	Username  string                  `json:"username"`
	Proxy     *string                 `json:"proxy"`
	Status    domain.OnboardingStatus `json:"status"`
	Flow      *domain.OnboardingFlow  `json:"flow"`
	Logs      []string                `json:"logs"`
	CreatedAt time.Time               `json:"created"`
}

// Registrar receives successfully authenticated accounts. It reports false
// when the account was already registered.
type Registrar interface {
	Register(ctx context.Context, username, credential string, proxy *string) (bool, error)
}

// Archiver keeps the full transcript of a finished session.
type Archiver interface {
	Archive(ctx context.Context, s *domain.OnboardingSession) error
}

// Notifier announces onboarded accounts.
type Notifier interface {
	NotifyOnboarded(ctx context.Context, username string) error
}

type Service interface {
	Start(ctx context.Context, req StartRequest) (*Outcome, error)
	Resume(ctx context.Context, onboardingID, code string) (*Outcome, error)
	Cancel(ctx context.Context, onboardingID string) (*Outcome, error)
	Get(ctx context.Context, onboardingID string) (*SessionView, error)
}

// ServiceDeps wires the onboarding service. Archiver and Notifier are optional.
type ServiceDeps struct {
	Store       SessionStore
	NewProvider ProviderFactory
	Registrar   Registrar
	Archiver    Archiver
	Notifier    Notifier
	Logger      zerolog.Logger
	SessionTTL  time.Duration
	LogTail     int
	Now         func() time.Time
}

type service struct {
	store       SessionStore
	events      *EventLog
	newProvider ProviderFactory
	registrar   Registrar
	archiver    Archiver
	notifier    Notifier
	log         zerolog.Logger
	ttl         time.Duration
	tail        int
	now         func() time.Time
}

func NewService(d ServiceDeps) Service {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	tail := d.LogTail
	if tail <= 0 {
		tail = DefaultLogTail
	}
	return &service{
		store:       d.Store,
		events:      NewEventLog(d.Store, now, d.Logger),
		newProvider: d.NewProvider,
		registrar:   d.Registrar,
		archiver:    d.Archiver,
		notifier:    d.Notifier,
		log:         d.Logger,
		ttl:         d.SessionTTL,
		tail:        tail,
		now:         now,
	}
}

func (s *service) Start(ctx context.Context, req StartRequest) (*Outcome, error) {
	username := strings.TrimSpace(req.Username)
	proxy := normalizeProxy(req.Proxy)

	sess, err := s.createSession(ctx, username, req.Password, proxy, req.OwnerID)
	if err != nil {
		return nil, err
	}
	onbID := sess.OnboardingID
	s.events.Append(ctx, onbID, "Starting login for @"+username)
	if proxy != nil {
		s.events.Append(ctx, onbID, "Proxy provided: "+redactProxy(*proxy))
	}

	cl := s.newProvider()
	s.configureProxy(ctx, cl, onbID, proxy, "Proxy configured successfully", "[WARN] Invalid proxy")
	cl.SetChallengeCodeHandler(s.abortOnChallenge(onbID))

	s.events.Append(ctx, onbID, "Attempting direct login...")
	ok, err := s.call("login", func() (bool, error) { return cl.Login(ctx, username, req.Password) })

	var out *Outcome
	switch {
	case err == nil && ok:
		s.events.Append(ctx, onbID, "Login completed successfully")
		out, err = s.complete(ctx, onbID, username, req.Password, proxy)
	case err == nil:
		out, err = s.fail(ctx, onbID, username, "Failed to start login", errLoginWithoutChallenge)
	case errors.Is(err, domain.ErrTwoFactorRequired):
		out, err = s.suspend(ctx, onbID, username, domain.FlowTwoFactor,
			"Two-factor authentication required (use the code from the authenticator app or SMS)")
	case errors.Is(err, domain.ErrChallengeRequired):
		out, err = s.suspend(ctx, onbID, username, domain.FlowChallenge,
			"Challenge required: the provider will send a code by email or SMS",
			"Tip: also check the spam and promotions folders of the inbox.")
	default:
		out, err = s.fail(ctx, onbID, username, "Failed to start login", err)
	}
	if err != nil {
		return nil, err
	}
	s.record("start", out)
	return out, nil
}

func (s *service) Resume(ctx context.Context, onboardingID, code string) (*Outcome, error) {
	sess, err := s.store.Get(ctx, onboardingID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			out := notFound(onboardingID)
			s.record("resume", out)
			return out, nil
		}
		return nil, err
	}

	// Only a suspended session can be resumed; an INIT session needs a fresh Start.
	if sess.Status != domain.StatusNeedCode || sess.Flow == nil {
		out, err := s.fail(ctx, onboardingID, sess.Username, "Code confirmation refused", errNotAwaitingCode)
		if err != nil {
			return nil, err
		}
		s.record("resume", out)
		return out, nil
	}

	flow := *sess.Flow
	s.events.Append(ctx, onboardingID, fmt.Sprintf("Code received for @%s. Trying to complete %s...", sess.Username, flow))

	cl := s.newProvider()
	s.configureProxy(ctx, cl, onboardingID, sess.Proxy,
		"Proxy configured again to complete verification", "[WARN] Invalid proxy on confirmation")

	var verr error
	if flow == domain.FlowTwoFactor {
		verr = s.resolveTwoFactor(ctx, cl, sess, code)
	} else {
		verr = s.resolveChallenge(ctx, cl, sess, code)
	}

	var out *Outcome
	if verr != nil {
		out, err = s.fail(ctx, onboardingID, sess.Username, "Code confirmation failed", verr)
	} else {
		out, err = s.complete(ctx, onboardingID, sess.Username, sess.Credential, sess.Proxy)
	}
	if err != nil {
		return nil, err
	}
	s.record("resume", out)
	return out, nil
}

func (s *service) Cancel(ctx context.Context, onboardingID string) (*Outcome, error) {
	if _, err := s.store.Get(ctx, onboardingID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			out := notFound(onboardingID)
			s.record("cancel", out)
			return out, nil
		}
		return nil, err
	}
	s.events.Append(ctx, onboardingID, "Session canceled by user")
	s.finish(ctx, onboardingID, domain.StatusCanceled)
	if err := s.store.Delete(ctx, onboardingID); err != nil {
		return nil, fmt.Errorf("delete onboarding session: %w", err)
	}
	out := &Outcome{Kind: OutcomeCanceled, SessionID: onboardingID, Message: "onboarding session canceled"}
	s.record("cancel", out)
	return out, nil
}

func (s *service) Get(ctx context.Context, onboardingID string) (*SessionView, error) {
	sess, err := s.store.Get(ctx, onboardingID)
	if err != nil {
		return nil, err
	}
	return &SessionView{
		ID:        sess.OnboardingID,
		OwnerID:   sess.OwnerID,
		Username:  sess.Username,
		Proxy:     sess.Proxy,
		Status:    sess.Status,
		Flow:      sess.Flow,
		Logs:      Tail(sess.Logs, s.tail),
		CreatedAt: sess.CreatedAt,
	}, nil
}

// resolveTwoFactor re-triggers the two-factor state, which is only resolvable
// right after a login attempt, and submits the code.
func (s *service) resolveTwoFactor(ctx context.Context, cl Provider, sess *domain.OnboardingSession, code string) error {
	_, err := s.call("login", func() (bool, error) { return cl.Login(ctx, sess.Username, sess.Credential) })
	if err != nil && !errors.Is(err, domain.ErrTwoFactorRequired) {
		s.events.Append(ctx, sess.OnboardingID, fmt.Sprintf("[WARN] Login before two-factor failed: %v", err))
		return fmt.Errorf("%w: %v", errTwoFactorNotAccepted, err)
	}

	ok, err := s.call("two_factor", func() (bool, error) { return cl.TwoFactorLogin(ctx, code) })
	if err != nil {
		s.events.Append(ctx, sess.OnboardingID, fmt.Sprintf("[WARN] Two-factor login failed: %v", err))
		ok = false
	}
	if !ok {
		return errTwoFactorNotAccepted
	}
	s.events.Append(ctx, sess.OnboardingID, "Two-factor code accepted")
	return nil
}

// resolveChallenge first lets the provider resolve the challenge inline during
// login, then falls back to an explicit resolution call.
func (s *service) resolveChallenge(ctx context.Context, cl Provider, sess *domain.OnboardingSession, code string) error {
	cl.SetChallengeCodeHandler(s.supplyCode(sess.OnboardingID, code))

	ok, err := s.call("login", func() (bool, error) { return cl.Login(ctx, sess.Username, sess.Credential) })
	if err != nil {
		if !errors.Is(err, domain.ErrChallengeRequired) {
			s.events.Append(ctx, sess.OnboardingID, fmt.Sprintf("[WARN] Login with code handler failed: %v", err))
		}
		ok = false
	}

	if !ok {
		ok, err = s.call("challenge", func() (bool, error) { return cl.ResolveChallenge(ctx, code) })
		if err != nil {
			s.events.Append(ctx, sess.OnboardingID, fmt.Sprintf("[WARN] Challenge resolution failed: %v", err))
			ok = false
		}
	}
	if !ok {
		return errChallengeNotAccepted
	}
	s.events.Append(ctx, sess.OnboardingID, "Challenge accepted")
	return nil
}

func (s *service) createSession(ctx context.Context, username, credential string, proxy *string, ownerID string) (*domain.OnboardingSession, error) {
	now := s.now().UTC()
	sess := &domain.OnboardingSession{
		OnboardingID: id.New(),
		OwnerID:      ownerID,
		Username:     username,
		Credential:   credential,
		Proxy:        proxy,
		Status:       domain.StatusInit,
		Logs:         []string{},
		CreatedAt:    now,
	}
	if s.ttl > 0 {
		sess.ExpiresAt = now.Add(s.ttl).Unix()
	}
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("create onboarding session: %w", err)
	}
	return sess, nil
}

func (s *service) configureProxy(ctx context.Context, cl Provider, onbID string, proxy *string, okMsg, warnMsg string) {
	if proxy == nil {
		return
	}
	if err := cl.SetProxy(*proxy); err != nil {
		s.events.Append(ctx, onbID, fmt.Sprintf("%s: %v", warnMsg, err))
		s.log.Warn().Err(err).Str("onboarding_id", onbID).Msg("proxy configuration failed, continuing without it")
		return
	}
	s.events.Append(ctx, onbID, okMsg)
}

// suspend moves the session to NEED_CODE on flow and logs msgs.
func (s *service) suspend(ctx context.Context, onbID, username string, flow domain.OnboardingFlow, msgs ...string) (*Outcome, error) {
	sess, err := s.store.Get(ctx, onbID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return notFound(onbID), nil
		}
		return nil, err
	}
	sess.SetNeedCode(flow)
	if err := s.store.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("suspend onboarding session: %w", err)
	}
	for _, m := range msgs {
		s.events.Append(ctx, onbID, m)
	}

	kind := OutcomeNeedsChallenge
	if flow == domain.FlowTwoFactor {
		kind = OutcomeNeedsTwoFactor
	}
	return &Outcome{Kind: kind, SessionID: onbID, Username: username, Logs: s.logs(ctx, onbID)}, nil
}

// complete forwards the account to the registrar and discards the session.
func (s *service) complete(ctx context.Context, onbID, username, credential string, proxy *string) (*Outcome, error) {
	added, err := s.registrar.Register(ctx, username, credential, proxy)
	if err != nil {
		return s.fail(ctx, onbID, username, "Failed to register account", err)
	}
	metrics.RecordRegistration(added)
	if added {
		s.events.Append(ctx, onbID, "Account added to pool")
	} else {
		s.events.Append(ctx, onbID, "Account already in pool or could not be registered again")
	}

	logs := s.finish(ctx, onbID, domain.StatusDone)
	if err := s.store.Delete(ctx, onbID); err != nil {
		return nil, fmt.Errorf("delete onboarding session: %w", err)
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyOnboarded(ctx, username); err != nil {
			s.log.Warn().Err(err).Str("onboarding_id", onbID).Msg("failed to publish onboarding notification")
		}
	}
	return &Outcome{Kind: OutcomeSuccess, SessionID: onbID, Username: username, Added: added, Logs: logs}, nil
}

// finish archives the transcript of a session about to be deleted and returns
// its visible log tail.
func (s *service) finish(ctx context.Context, onbID string, status domain.OnboardingStatus) []string {
	sess, err := s.store.Get(ctx, onbID)
	if err != nil {
		return nil
	}
	if s.archiver != nil {
		sess.Status = status
		sess.Flow = nil
		if err := s.archiver.Archive(ctx, sess); err != nil {
			s.log.Warn().Err(err).Str("onboarding_id", onbID).Msg("failed to archive onboarding transcript")
		}
	}
	return Tail(sess.Logs, s.tail)
}

func (s *service) fail(ctx context.Context, onbID, username, prefix string, cause error) (*Outcome, error) {
	s.events.Append(ctx, onbID, fmt.Sprintf("[ERROR] %s: %v", prefix, cause))
	s.log.Info().Err(cause).Str("onboarding_id", onbID).Str("username", username).Msg(prefix)
	return &Outcome{
		Kind:      OutcomeFailure,
		SessionID: onbID,
		Username:  username,
		Message:   cause.Error(),
		Logs:      s.logs(ctx, onbID),
	}, nil
}

func (s *service) logs(ctx context.Context, onbID string) []string {
	sess, err := s.store.Get(ctx, onbID)
	if err != nil {
		return nil
	}
	return Tail(sess.Logs, s.tail)
}

// call runs one provider call and records its duration.
func (s *service) call(name string, fn func() (bool, error)) (bool, error) {
	start := time.Now()
	ok, err := fn()
	result := "ok"
	switch {
	case errors.Is(err, domain.ErrChallengeRequired):
		result = "challenge"
	case errors.Is(err, domain.ErrTwoFactorRequired):
		result = "two_factor"
	case err != nil:
		result = "error"
	case !ok:
		result = "rejected"
	}
	metrics.ObserveProviderCall(name, result, time.Since(start))
	return ok, err
}

func (s *service) record(operation string, out *Outcome) {
	metrics.RecordOutcome(operation, string(out.Kind))
	s.log.Info().
		Str("operation", operation).
		Str("onboarding_id", out.SessionID).
		Str("outcome", string(out.Kind)).
		Msg("onboarding operation finished")
}

func notFound(onbID string) *Outcome {
	return &Outcome{Kind: OutcomeNotFound, SessionID: onbID, Message: "onboarding session not found or expired"}
}

func normalizeProxy(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

// redactProxy hides the password of a proxy URL before it reaches the log.
func redactProxy(p string) string {
	u, err := url.Parse(p)
	if err != nil || u.User == nil {
		return p
	}
	return u.Redacted()
}
