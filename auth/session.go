// Package auth holds the signed-in user and issues API tokens.
package auth

import (
	"sync"
)

// User is the signed-in identity.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Name returns the display name, falling back to "Anonymous".
func (u User) Name() string {
	if u.DisplayName == "" {
		return "Anonymous"
	}
	return u.DisplayName
}

// Session tracks the current user and notifies listeners when it changes.
// The zero value is a signed-out session ready for use.
type Session struct {
	mu        sync.RWMutex
	user      *User
	listeners map[int]func(*User)
	next      int
}

// NewSession returns a session, signed in as user when user is non-nil.
func NewSession(user *User) *Session {
	s := &Session{}
	if user != nil {
		u := *user
		s.user = &u
	}
	return s
}

// Current returns a copy of the signed-in user, or nil.
func (s *Session) Current() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// SignIn replaces the current user.
func (s *Session) SignIn(user User) {
	s.set(&user)
}

// SignOut clears the current user.
func (s *Session) SignOut() {
	s.set(nil)
}

// Subscribe calls onChange with the current user immediately and after every
// change, until the returned function is called.
func (s *Session) Subscribe(onChange func(*User)) (unsubscribe func()) {
	s.mu.Lock()
	if s.listeners == nil {
		s.listeners = make(map[int]func(*User))
	}
	id := s.next
	s.next++
	s.listeners[id] = onChange
	s.mu.Unlock()

	onChange(s.Current())

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) set(user *User) {
	s.mu.Lock()
	s.user = user
	listeners := make([]func(*User), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(s.Current())
	}
}
