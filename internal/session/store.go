// Package session is the client-side view of authentication: the current
// session, the profile resolved for it and the last guarded location. The
// accessctl CLI drives it; a browser client would mirror the same lifecycle.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"

	"reviewdesk/internal/logger"
	"reviewdesk/internal/models"

	"go.uber.org/zap"
)

var (
	ErrNotStarted = errors.New("session store not initialised")
	ErrClosed     = errors.New("session store torn down")
)

// EventKind names an auth-state change.
type EventKind string

const (
	EventInitial   EventKind = "INITIAL_SESSION"
	EventSignedIn  EventKind = "SIGNED_IN"
	EventSignedOut EventKind = "SIGNED_OUT"
)

// Event is delivered to OnChange listeners. Session is nil after sign-out.
type Event struct {
	Kind    EventKind
	Session *models.Session
	Seq     uint64
}

// Identity returns the identity carried by the event, or nil.
func (e Event) Identity() *models.Identity {
	if e.Session == nil {
		return nil
	}
	id := e.Session.Identity
	return &id
}

// Authenticator is the part of the auth provider the store talks to.
type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	GetUser(ctx context.Context, accessToken string) (*models.Identity, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Store holds the current session. Mutations happen only through Init,
// SignIn, Adopt and SignOut; listeners are called one at a time, in the
// order the changes happened, from a single dispatcher goroutine.
type Store struct {
	auth Authenticator

	mu        sync.Mutex
	current   *models.Session
	seq       uint64
	listeners map[uint64]func(Event)
	nextID    uint64
	queue     []Event
	wake      chan struct{}
	started   bool
	closed    bool
	done      chan struct{}
}

func NewStore(auth Authenticator) *Store {
	return &Store{
		auth:      auth,
		listeners: make(map[uint64]func(Event)),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Init starts the dispatcher and, when bootstrap is a live token pair,
// validates it with the auth provider and emits INITIAL_SESSION.
func (s *Store) Init(ctx context.Context, bootstrap *models.Session) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.started {
		s.started = true
		go s.dispatch()
	}
	s.mu.Unlock()

	if bootstrap == nil || bootstrap.AccessToken == "" {
		return nil
	}
	identity, err := s.auth.GetUser(ctx, bootstrap.AccessToken)
	if err != nil {
		return err
	}
	restored := *bootstrap
	restored.Identity = *identity
	return s.set(EventInitial, &restored)
}

// OnChange registers fn and returns the function that removes it.
func (s *Store) OnChange(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// SignIn authenticates with email and password.
func (s *Store) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	sess, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return sess, s.set(EventSignedIn, sess)
}

// Adopt installs a session obtained elsewhere (magic link verification,
// invitation acceptance, a fixture in tests). It goes through the same
// notification path as SignIn.
func (s *Store) Adopt(sess *models.Session) error {
	if sess == nil {
		return errors.New("nil session")
	}
	return s.set(EventSignedIn, sess)
}

// SignOut clears the local session even when the provider call fails.
func (s *Store) SignOut(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	var remoteErr error
	if current != nil && s.auth != nil {
		remoteErr = s.auth.SignOut(ctx, current.AccessToken)
	}
	if err := s.set(EventSignedOut, nil); err != nil {
		return err
	}
	return remoteErr
}

// Current returns a copy of the session, or nil.
func (s *Store) Current() *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	cp := *s.current
	return &cp
}

// Teardown stops the dispatcher after delivering queued events. Later
// mutations return ErrClosed.
func (s *Store) Teardown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	if !started {
		close(s.done)
		return
	}
	s.signal()
	<-s.done
}

func (s *Store) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return ErrClosed
	case !s.started:
		return ErrNotStarted
	}
	return nil
}

func (s *Store) set(kind EventKind, sess *models.Session) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.current = sess
	s.seq++
	var snapshot *models.Session
	if sess != nil {
		cp := *sess
		snapshot = &cp
	}
	s.queue = append(s.queue, Event{Kind: kind, Session: snapshot, Seq: s.seq})
	s.mu.Unlock()

	s.signal()
	return nil
}

func (s *Store) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Store) dispatch() {
	defer close(s.done)
	for range s.wake {
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				closed := s.closed
				s.mu.Unlock()
				if closed {
					return
				}
				break
			}
			event := s.queue[0]
			s.queue = s.queue[1:]
			ids := make([]uint64, 0, len(s.listeners))
			for id := range s.listeners {
				ids = append(ids, id)
			}
			slices.Sort(ids)
			listeners := make([]func(Event), 0, len(ids))
			for _, id := range ids {
				listeners = append(listeners, s.listeners[id])
			}
			s.mu.Unlock()

			for _, fn := range listeners {
				s.deliver(fn, event)
			}
		}
	}
}

func (s *Store) deliver(fn func(Event), event Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.L().Error("session listener panicked", zap.Any("panic", r), zap.String("event", string(event.Kind)))
		}
	}()
	fn(event)
}
