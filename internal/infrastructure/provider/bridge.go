package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-onboarding/internal/domain"
	"github.com/rs/zerolog"
)

// Login statuses reported by the bridge.
const (
	statusOK                = "ok"
	statusChallengeRequired = "challenge_required"
	statusTwoFactorRequired = "two_factor_required"
	statusFailed            = "failed"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Proxy    string `json:"proxy,omitempty"`
}

type codeRequest struct {
	State    string `json:"state"`
	Code     string `json:"code"`
	Username string `json:"username,omitempty"`
	Proxy    string `json:"proxy,omitempty"`
}

type bridgeResponse struct {
	Status          string `json:"status"`
	ChallengeMethod string `json:"challenge_method,omitempty"`
	State           string `json:"state,omitempty"`
	Message         string `json:"message,omitempty"`
}

// Client talks to an HTTP bridge in front of the remote account provider.
// One Client holds the state of a single login conversation: the opaque state
// token the bridge returns with a challenge or two-factor response is replayed
// on the follow-up call.
type Client struct {
	baseURL  string
	http     *http.Client
	log      zerolog.Logger
	proxy    string
	handler  domain.ChallengeCodeHandler
	username string
	state    string
}

func NewClient(baseURL string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, log: log}
}

// SetProxy validates and records a proxy URL forwarded with every call.
// Accepted schemes are http, https, socks5 and socks5h.
func (c *Client) SetProxy(proxy string) error {
	u, err := url.Parse(strings.TrimSpace(proxy))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidProxy, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidProxy, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", domain.ErrInvalidProxy)
	}
	c.proxy = u.String()
	return nil
}

func (c *Client) SetChallengeCodeHandler(h domain.ChallengeCodeHandler) {
	c.handler = h
}

// Login submits the credential. When the bridge asks for a challenge code and
// a handler is installed, the handler is consulted and its code is submitted
// within the same call.
func (c *Client) Login(ctx context.Context, username, password string) (bool, error) {
	c.username = username
	var resp bridgeResponse
	if err := c.post(ctx, "/login", loginRequest{Username: username, Password: password, Proxy: c.proxy}, &resp); err != nil {
		return false, err
	}
	c.state = resp.State

	switch resp.Status {
	case statusOK:
		return true, nil
	case statusTwoFactorRequired:
		return false, fmt.Errorf("%s: %w", orDefault(resp.Message, "login"), domain.ErrTwoFactorRequired)
	case statusChallengeRequired:
		if c.handler == nil || resp.ChallengeMethod == "" {
			return false, fmt.Errorf("%s: %w", orDefault(resp.Message, "login"), domain.ErrChallengeRequired)
		}
		code, err := c.handler(ctx, username, domain.ChallengeMethod(resp.ChallengeMethod))
		if err != nil {
			return false, err
		}
		return c.ResolveChallenge(ctx, code)
	case statusFailed:
		if resp.Message != "" {
			return false, fmt.Errorf("provider rejected login: %s", resp.Message)
		}
		return false, nil
	default:
		return false, fmt.Errorf("unexpected bridge status %q", resp.Status)
	}
}

func (c *Client) TwoFactorLogin(ctx context.Context, code string) (bool, error) {
	return c.submitCode(ctx, "/two-factor", code)
}

func (c *Client) ResolveChallenge(ctx context.Context, code string) (bool, error) {
	return c.submitCode(ctx, "/challenge/resolve", code)
}

func (c *Client) submitCode(ctx context.Context, path, code string) (bool, error) {
	var resp bridgeResponse
	req := codeRequest{State: c.state, Code: code, Username: c.username, Proxy: c.proxy}
	if err := c.post(ctx, path, req, &resp); err != nil {
		return false, err
	}
	switch resp.Status {
	case statusOK:
		return true, nil
	case statusFailed:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected bridge status %q on %s: %s", resp.Status, path, resp.Message)
	}
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal bridge request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build bridge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bridge %s: %w", path, err)
	}
	defer resp.Body.Close()
	c.log.Debug().Str("path", path).Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("provider bridge call")

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read bridge response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var br bridgeResponse
		_ = json.Unmarshal(data, &br)
		return fmt.Errorf("bridge %s: status %d: %s", path, resp.StatusCode, orDefault(br.Message, http.StatusText(resp.StatusCode)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode bridge response: %w", err)
	}
	return nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
