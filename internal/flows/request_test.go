package flows

import (
	"context"
	"errors"
	"testing"
)

type scriptedTransport struct {
	statuses []int
	tokens   []string
	err      error
}

func (s *scriptedTransport) send(_ context.Context, token string) (*Response, error) {
	s.tokens = append(s.tokens, token)
	if s.err != nil {
		return nil, s.err
	}
	status := s.statuses[0]
	if len(s.statuses) > 1 {
		s.statuses = s.statuses[1:]
	}
	return &Response{Status: status, Body: []byte("body")}, nil
}

func collectTransitions(dst *[]State) func(from, to State) {
	return func(_, to State) { *dst = append(*dst, to) }
}

func assertStates(t *testing.T, got []State, want ...State) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, got)
		}
	}
}

func TestRunRequestSuccess(t *testing.T) {
	tr := &scriptedTransport{statuses: []int{200}}
	var seen []State
	res := RunRequest(context.Background(), RequestDeps{
		Token:        func() (string, error) { return "A", nil },
		Send:         tr.send,
		Refresh:      func(context.Context, string) (string, error) { t.Fatal("unexpected refresh"); return "", nil },
		OnTransition: collectTransitions(&seen),
	})

	if res.State != StateSuccess || res.Attempts != 1 || res.Refreshed {
		t.Fatalf("unexpected result %+v", res)
	}
	assertStates(t, seen, StateSending, StateSuccess)
}

func TestRunRequestRefreshesAndRetries(t *testing.T) {
	tr := &scriptedTransport{statuses: []int{401, 200}}
	var seen []State
	res := RunRequest(context.Background(), RequestDeps{
		Token: func() (string, error) { return "A", nil },
		Send:  tr.send,
		Refresh: func(_ context.Context, stale string) (string, error) {
			if stale != "A" {
				t.Fatalf("expected stale token A, got %q", stale)
			}
			return "B", nil
		},
		OnTransition: collectTransitions(&seen),
	})

	if res.State != StateSuccess || res.Attempts != 2 || !res.Refreshed {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.AuthFailure == nil || res.AuthFailure.Status != 401 {
		t.Fatalf("expected original 401 to be kept, got %+v", res.AuthFailure)
	}
	if tr.tokens[0] != "A" || tr.tokens[1] != "B" {
		t.Fatalf("expected tokens [A B], got %v", tr.tokens)
	}
	assertStates(t, seen, StateSending, StateAuthFailed, StateRefreshing, StateRetrying, StateSuccess)
}

func TestRetryHappensAtMostOnce(t *testing.T) {
	tr := &scriptedTransport{statuses: []int{401, 401, 401}}
	refreshes := 0
	res := RunRequest(context.Background(), RequestDeps{
		Token: func() (string, error) { return "A", nil },
		Send:  tr.send,
		Refresh: func(context.Context, string) (string, error) {
			refreshes++
			return "B", nil
		},
	})

	if res.State != StateOtherFailed || res.Response.Status != 401 {
		t.Fatalf("expected terminal 401, got %+v", res)
	}
	if res.Attempts != 2 || refreshes != 1 {
		t.Fatalf("expected 2 attempts and 1 refresh, got %d and %d", res.Attempts, refreshes)
	}
}

func TestRunRequestRefreshFailure(t *testing.T) {
	tr := &scriptedTransport{statuses: []int{401}}
	refreshErr := errors.New("refresh rejected")
	var seen []State
	res := RunRequest(context.Background(), RequestDeps{
		Token:        func() (string, error) { return "A", nil },
		Send:         tr.send,
		Refresh:      func(context.Context, string) (string, error) { return "", refreshErr },
		OnTransition: collectTransitions(&seen),
	})

	if res.State != StateLoggedOut || !errors.Is(res.Err, refreshErr) {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.AuthFailure == nil || string(res.AuthFailure.Body) != "body" {
		t.Fatalf("expected original 401 body, got %+v", res.AuthFailure)
	}
	assertStates(t, seen, StateSending, StateAuthFailed, StateRefreshing, StateRefreshFailed, StateLoggedOut)
}

func TestRunRequestTokenFailureSendsNothing(t *testing.T) {
	tr := &scriptedTransport{statuses: []int{200}}
	expired := errors.New("session expired")
	var seen []State
	res := RunRequest(context.Background(), RequestDeps{
		Token: func() (string, error) { return "", expired },
		Send:  tr.send,
		Refresh: func(context.Context, string) (string, error) {
			t.Fatal("unexpected second refresh")
			return "", nil
		},
		OnTransition: collectTransitions(&seen),
	})

	if res.State != StateLoggedOut || !errors.Is(res.Err, expired) {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Attempts != 0 || len(tr.tokens) != 0 || res.AuthFailure != nil {
		t.Fatalf("expected nothing sent, got %d attempts", res.Attempts)
	}
	assertStates(t, seen, StateRefreshFailed, StateLoggedOut)
}

func TestRejectedAfterRefresh(t *testing.T) {
	tr := &scriptedTransport{statuses: []int{401, 401}}
	res := RunRequest(context.Background(), RequestDeps{
		Token:   func() (string, error) { return "A", nil },
		Send:    tr.send,
		Refresh: func(context.Context, string) (string, error) { return "B", nil },
	})
	if !res.RejectedAfterRefresh() {
		t.Fatalf("expected the retry to count as rejected, got %+v", res)
	}

	first := RunRequest(context.Background(), RequestDeps{Send: (&scriptedTransport{statuses: []int{401}}).send})
	if first.RejectedAfterRefresh() {
		t.Fatalf("a 401 without a refresh is not a rejected retry")
	}
}

func TestRunRequestCallerGivesUpDuringRefresh(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := &scriptedTransport{statuses: []int{401}}
	res := RunRequest(ctx, RequestDeps{
		Token: func() (string, error) { return "A", nil },
		Send:  tr.send,
		Refresh: func(ctx context.Context, _ string) (string, error) {
			cancel()
			return "", ctx.Err()
		},
	})

	if res.State != StateOtherFailed || !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected OtherFailed with context.Canceled, got %+v", res)
	}
}

func TestRunRequestTransportError(t *testing.T) {
	boom := errors.New("connection refused")
	tr := &scriptedTransport{err: boom}
	res := RunRequest(context.Background(), RequestDeps{Send: tr.send})

	if res.State != StateOtherFailed || !errors.Is(res.Err, boom) || res.Response != nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if tr.tokens[0] != "" {
		t.Fatalf("expected no token without Token dep, got %q", tr.tokens[0])
	}
}

func TestRunRequest401WithoutRefresherIsFinal(t *testing.T) {
	tr := &scriptedTransport{statuses: []int{401}}
	res := RunRequest(context.Background(), RequestDeps{Send: tr.send})
	if res.State != StateOtherFailed || res.Attempts != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestStateNames(t *testing.T) {
	if StateRefreshFailed.String() != "refresh_failed" || State(200).String() != "unknown" {
		t.Fatalf("unexpected state names")
	}
	if !StateLoggedOut.Terminal() || StateRetrying.Terminal() {
		t.Fatalf("unexpected terminal states")
	}
}
