package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Khatrip009/adminsprada-sub000/apierr"
	"github.com/Khatrip009/adminsprada-sub000/refresh"
	"golang.org/x/sync/singleflight"
)

// ErrNoRefreshToken is the cause of the Unauthorized error returned by Refresh when the
// session holds no refresh token.
var ErrNoRefreshToken = errors.New("no refresh token")

// ErrNoRefresher is the cause when the store was built without a [Refresher].
var ErrNoRefresher = errors.New("no refresher configured")

const refreshFlightKey = "refresh"

// DefaultRefreshTimeout bounds the shared refresh call when no timeout is configured.
const DefaultRefreshTimeout = 10 * time.Second

type subscriber struct {
	id uint64
	fn Listener
}

// Store is the single source of truth for the session. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	state State

	// writeMu serializes mutation and persistence so storage never observes an older
	// state after a newer one.
	writeMu sync.Mutex

	subsMu sync.Mutex
	subs   []subscriber
	nextID uint64

	// pending holds snapshots in Version order until one goroutine delivers them.
	notifyMu   sync.Mutex
	pending    []State
	delivering bool

	storage        Storage
	refresher      Refresher
	flight         singleflight.Group
	logger         *slog.Logger
	hook           func(Event)
	refreshTimeout time.Duration
}

// Option configures a [Store].
type Option func(*Store)

// WithLogger sets the logger used for storage warnings. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEventHook installs fn to observe lifecycle events. fn runs synchronously and must
// not block.
func WithEventHook(fn func(Event)) Option {
	return func(s *Store) {
		s.hook = fn
	}
}

// WithRefreshTimeout bounds the shared refresh call. Non-positive values keep the default.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.refreshTimeout = d
		}
	}
}

// NewStore returns an empty store. A nil storage means [NewMemoryStorage]. Call
// [Store.Restore] to load a persisted session.
func NewStore(storage Storage, refresher Refresher, opts ...Option) *Store {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	s := &Store{
		storage:        storage,
		refresher:      refresher,
		logger:         slog.Default(),
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AccessToken returns the current access token, "" when logged out.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AccessToken
}

// User returns a copy of the cached user, nil when absent.
func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User.Clone()
}

// IsAuthenticated reports whether an access token is present.
func (s *Store) IsAuthenticated() bool {
	return s.AccessToken() != ""
}

// State returns a complete snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Login replaces the whole session, persists it and notifies subscribers.
func (s *Store) Login(ctx context.Context, creds Credentials) {
	next := s.mutate(ctx, allKeys, func(st *State) bool {
		st.AccessToken = creds.AccessToken
		st.RefreshToken = creds.RefreshToken
		st.User = creds.User.Clone()
		return true
	})
	s.emit(Event{Type: EventLogin, UserID: userID(next.User)})
}

// Logout clears the session and its persisted keys and notifies subscribers. Calling it
// on an empty session still notifies.
func (s *Store) Logout(ctx context.Context) {
	prev := s.State()
	s.mutate(ctx, allKeys, func(st *State) bool {
		st.AccessToken = ""
		st.RefreshToken = ""
		st.User = nil
		return true
	})
	s.emit(Event{Type: EventLogout, UserID: userID(prev.User)})
}

// SetUser replaces only the cached user.
func (s *Store) SetUser(ctx context.Context, user *User) {
	s.mutate(ctx, []string{KeyUser}, func(st *State) bool {
		st.User = user.Clone()
		return true
	})
	s.emit(Event{Type: EventUserUpdated, UserID: userID(user)})
}

// Subscribe registers fn for every subsequent mutation. The returned function removes
// it and may be called more than once, including from inside a notification.
//
// Listeners see snapshots one at a time in Version order. Each runs on a mutating
// goroutine; when mutations race, the goroutine already delivering also delivers the
// later snapshots, so a mutation can return before its own notification. A listener
// must not call Refresh synchronously: refresh outcomes are delivered from inside the
// shared call.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	s.subsMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			s.subs = slices.DeleteFunc(slices.Clone(s.subs), func(sub subscriber) bool {
				return sub.id == id
			})
		})
	}
}

// Restore loads the persisted session. Storage errors leave the state empty and are
// logged, not returned; a corrupt user record is dropped.
func (s *Store) Restore(ctx context.Context) {
	values, err := s.storage.Load(ctx, allKeys...)
	if err != nil {
		s.storageFailed("load", err)
		return
	}

	var user *User
	if raw, ok := values[KeyUser]; ok {
		user, err = ParseUser([]byte(raw))
		if err != nil {
			s.logger.Warn("session: dropping unreadable persisted user", "error", err)
			user = nil
		}
	}

	next := s.mutate(ctx, nil, func(st *State) bool {
		st.AccessToken = values[KeyAccessToken]
		st.RefreshToken = values[KeyRefreshToken]
		st.User = user
		return true
	})
	s.emit(Event{Type: EventRestored, UserID: userID(next.User)})
}

// Refresh obtains a new access token. Concurrent callers share a single call to the
// Refresher and receive the same result.
//
// On any failure the session is logged out and the error is an *apierr.RequestError of
// kind Unauthorized. Without a refresh token it fails without calling the Refresher.
// The shared call is detached from ctx; when ctx ends first the caller stops waiting and
// gets ctx.Err() while the refresh carries on for the others.
func (s *Store) Refresh(ctx context.Context) (string, error) {
	s.emit(Event{Type: EventRefreshRequested})

	ch := s.flight.DoChan(refreshFlightKey, func() (any, error) {
		return s.runRefresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Store) runRefresh(ctx context.Context) (string, error) {
	refreshToken := s.State().RefreshToken
	if refreshToken == "" {
		return "", s.failRefresh(ctx, apierr.Unauthorized("session expired: no refresh token", nil, ErrNoRefreshToken), 0)
	}
	if s.refresher == nil {
		return "", s.failRefresh(ctx, apierr.Unauthorized("session expired: refresh unavailable", nil, ErrNoRefresher), 0)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	defer cancel()

	s.emit(Event{Type: EventRefreshStarted})
	start := time.Now()
	tokens, err := s.refresher.Refresh(callCtx, refreshToken)
	elapsed := time.Since(start)

	var user *User
	if err == nil && tokens.AccessToken == "" {
		err = refresh.ErrMissingAccessToken
	}
	if err == nil && tokens.HasUser() {
		user, err = ParseUser(tokens.User)
	}
	if err != nil {
		return "", s.failRefresh(ctx, apierr.Unauthorized("session expired: refresh failed", rawBodyOf(err), err), elapsed)
	}

	applied := false
	next := s.mutate(ctx, refreshKeys(tokens, user), func(st *State) bool {
		// A logout or a new login while the call was in flight wins.
		if st.RefreshToken != refreshToken {
			return false
		}
		st.AccessToken = tokens.AccessToken
		if tokens.RefreshToken != "" {
			st.RefreshToken = tokens.RefreshToken
		}
		if user != nil {
			st.User = user
		}
		applied = true
		return true
	})
	if !applied {
		if next.AccessToken != "" {
			return next.AccessToken, nil
		}
		err := apierr.Unauthorized("session expired: logged out during refresh", nil, ErrNoRefreshToken)
		s.emit(Event{Type: EventRefreshFailed, Err: err, Duration: elapsed})
		return "", err
	}

	s.emit(Event{Type: EventRefreshed, UserID: userID(next.User), Duration: elapsed})
	return next.AccessToken, nil
}

func (s *Store) failRefresh(ctx context.Context, err *apierr.RequestError, elapsed time.Duration) error {
	s.emit(Event{Type: EventRefreshFailed, Err: err, Duration: elapsed})
	s.Logout(ctx)
	return err
}

func refreshKeys(tokens refresh.Tokens, user *User) []string {
	keys := []string{KeyAccessToken}
	if tokens.RefreshToken != "" {
		keys = append(keys, KeyRefreshToken)
	}
	if user != nil {
		keys = append(keys, KeyUser)
	}
	return keys
}

// mutate applies change under the write lock, persists the listed keys and notifies
// subscribers once the locks are released. It returns the resulting snapshot. When
// change reports false nothing is written or notified.
func (s *Store) mutate(ctx context.Context, persistKeys []string, change func(*State) bool) State {
	s.writeMu.Lock()

	s.mu.Lock()
	next := s.state.clone()
	if !change(&next) {
		s.mu.Unlock()
		s.writeMu.Unlock()
		return next
	}
	next.Version = s.state.Version + 1
	s.state = next
	s.mu.Unlock()

	if len(persistKeys) > 0 {
		s.persist(context.WithoutCancel(ctx), next, persistKeys)
	}
	s.notifyMu.Lock()
	s.pending = append(s.pending, next)
	s.notifyMu.Unlock()
	s.writeMu.Unlock()

	s.drain()
	return next.clone()
}

// drain delivers queued snapshots unless another goroutine already is.
func (s *Store) drain() {
	s.notifyMu.Lock()
	if s.delivering {
		s.notifyMu.Unlock()
		return
	}
	s.delivering = true
	for len(s.pending) > 0 {
		st := s.pending[0]
		s.pending[0] = State{}
		s.pending = s.pending[1:]
		s.notifyMu.Unlock()
		s.notify(st)
		s.notifyMu.Lock()
	}
	s.delivering = false
	s.notifyMu.Unlock()
}

func (s *Store) persist(ctx context.Context, st State, keys []string) {
	set := make(map[string]string, len(keys))
	var del []string
	for _, k := range keys {
		v, err := st.value(k)
		if err != nil {
			s.storageFailed("encode "+k, err)
			continue
		}
		if v == "" {
			del = append(del, k)
			continue
		}
		set[k] = v
	}

	if err := s.storage.Save(ctx, set, del...); err != nil {
		s.storageFailed("save", err)
	}
}

func (s *Store) storageFailed(op string, err error) {
	s.logger.Warn("session: storage operation failed", "op", op, "error", err)
	s.emit(Event{Type: EventStorageFailed, Err: err})
}

func (s *Store) notify(st State) {
	s.subsMu.Lock()
	subs := slices.Clone(s.subs)
	s.subsMu.Unlock()

	for _, sub := range subs {
		s.call(sub, st.clone())
	}
}

func (s *Store) call(sub subscriber, st State) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session: subscriber panicked", "subscriber", sub.id, "panic", r)
		}
	}()
	sub.fn(st)
}

func (s *Store) emit(e Event) {
	if s.hook != nil {
		s.hook(e)
	}
}

func rawBodyOf(err error) any {
	var re *apierr.RequestError
	if errors.As(err, &re) {
		return re.RawBody
	}
	return nil
}

func userID(u *User) string {
	if u == nil {
		return ""
	}
	return u.ID.String()
}
