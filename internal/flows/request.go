package flows

import (
	"context"
	"net/http"
)

// State is a step of one logical request.
type State uint8

const (
	StateIdle State = iota
	StateSending
	StateSuccess
	StateAuthFailed
	StateOtherFailed
	StateRefreshing
	StateRetrying
	StateRefreshFailed
	StateLoggedOut
)

var stateNames = [...]string{
	StateIdle:          "idle",
	StateSending:       "sending",
	StateSuccess:       "success",
	StateAuthFailed:    "auth_failed",
	StateOtherFailed:   "other_failed",
	StateRefreshing:    "refreshing",
	StateRetrying:      "retrying",
	StateRefreshFailed: "refresh_failed",
	StateLoggedOut:     "logged_out",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether the machine stops in s.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateOtherFailed || s == StateLoggedOut
}

// Response is the outcome of one transport attempt.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// RequestDeps captures request flow dependencies.
type RequestDeps struct {
	// Token returns the access token for the first attempt; "" sends none. An error
	// means the session was already given up, so nothing is sent.
	Token func() (string, error)
	// Send performs one attempt with token.
	Send func(ctx context.Context, token string) (*Response, error)
	// Refresh returns a replacement for staleToken after a 401.
	Refresh func(ctx context.Context, staleToken string) (string, error)
	// OnTransition, when set, observes every state change.
	OnTransition func(from, to State)
}

// RequestResult carries the terminal state and what led to it.
type RequestResult struct {
	State State
	// Response is the last response received; nil after a transport error.
	Response *Response
	// AuthFailure is the 401 response that triggered the refresh, if any.
	AuthFailure *Response
	// Err is the transport error (OtherFailed) or the refresh error (LoggedOut).
	// AuthFailure is nil when the refresh failed before anything was sent.
	Err       error
	Attempts  int
	Refreshed bool
}

// RejectedAfterRefresh reports whether the retry with a freshly refreshed token was
// itself answered with 401.
func (r RequestResult) RejectedAfterRefresh() bool {
	return r.Refreshed && r.Err == nil && r.Response != nil && r.Response.Status == http.StatusUnauthorized
}

type requestMachine struct {
	deps    RequestDeps
	state   State
	token   string
	isRetry bool
	result  RequestResult
}

// RunRequest drives one logical request to a terminal state. A 401 on the first
// attempt triggers one refresh and one retry; a 401 on the retry is final.
func RunRequest(ctx context.Context, deps RequestDeps) RequestResult {
	m := &requestMachine{deps: deps, state: StateIdle}
	for !m.state.Terminal() {
		m.transition(m.step(ctx))
	}
	m.result.State = m.state
	return m.result
}

func (m *requestMachine) transition(next State) {
	if m.deps.OnTransition != nil {
		m.deps.OnTransition(m.state, next)
	}
	m.state = next
}

func (m *requestMachine) step(ctx context.Context) State {
	switch m.state {
	case StateIdle:
		if m.deps.Token != nil {
			token, err := m.deps.Token()
			if err != nil {
				m.result.Err = err
				return StateRefreshFailed
			}
			m.token = token
		}
		return StateSending

	case StateSending, StateRetrying:
		return m.send(ctx)

	case StateAuthFailed:
		m.result.AuthFailure = m.result.Response
		return StateRefreshing

	case StateRefreshing:
		token, err := m.deps.Refresh(ctx, m.token)
		if err != nil {
			m.result.Err = err
			if ctx.Err() != nil {
				// The caller gave up while waiting; the session was not touched.
				return StateOtherFailed
			}
			return StateRefreshFailed
		}
		m.token = token
		m.isRetry = true
		m.result.Refreshed = true
		return StateRetrying

	case StateRefreshFailed:
		return StateLoggedOut
	}
	return StateOtherFailed
}

func (m *requestMachine) send(ctx context.Context) State {
	m.result.Attempts++
	resp, err := m.deps.Send(ctx, m.token)
	m.result.Response = resp
	if err != nil {
		m.result.Err = err
		return StateOtherFailed
	}

	switch {
	case resp.Status >= 200 && resp.Status < 300:
		return StateSuccess
	case resp.Status == http.StatusUnauthorized && !m.isRetry && m.deps.Refresh != nil:
		return StateAuthFailed
	default:
		return StateOtherFailed
	}
}
