// Package stubserver is a local stand-in for the course-recommendation
// backend. It serves the same HTTP contract the client depends on.
package stubserver

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"saintplus-client/internal/extract"
	"saintplus-client/internal/workerproc"
)

var (
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

// User is a registered stand-in account.
type User struct {
	ID           int64
	Username     string
	PasswordHash []byte
	Nickname     string
	Email        string
	Majors       []string
	Courses      []extract.CourseRecord
	Saved        []SavedCourse
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserStore keeps accounts in memory.
type UserStore struct {
	mu          sync.RWMutex
	nextID      int64
	nextSavedID int64
	byID        map[int64]*User
	byName      map[string]int64
	cost        int
	now         func() time.Time
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:   make(map[int64]*User),
		byName: make(map[string]int64),
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

// Register creates an account with a bcrypt password hash.
func (s *UserStore) Register(username, password, nickname, email string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[username]; ok {
		return User{}, ErrUsernameTaken
	}
	s.nextID++
	now := s.now().UTC()
	u := &User{
		ID:           s.nextID,
		Username:     username,
		PasswordHash: hash,
		Nickname:     nickname,
		Email:        email,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[u.ID] = u
	s.byName[username] = u.ID
	return *u, nil
}

// Authenticate checks a username/password pair.
func (s *UserStore) Authenticate(username, password string) (User, error) {
	s.mu.RLock()
	id, ok := s.byName[username]
	var u User
	if ok {
		u = *s.byID[id]
	}
	s.mu.RUnlock()
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// Get returns a copy of the user with the given string id.
func (s *UserStore) Get(id string) (User, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return User{}, ErrUserNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[n]
	if !ok {
		return User{}, ErrUserNotFound
	}
	out := *u
	out.Majors = append([]string(nil), u.Majors...)
	out.Courses = append([]extract.CourseRecord(nil), u.Courses...)
	out.Saved = append([]SavedCourse(nil), u.Saved...)
	return out, nil
}

// UpdateMajors replaces the profile majors; blank entries are dropped.
func (s *UserStore) UpdateMajors(id string, majors ...string) error {
	return s.update(id, func(u *User) {
		u.Majors = compact(majors)
	})
}

// RecordTranscript stores parsed courses and the majors confirmed with them.
func (s *UserStore) RecordTranscript(ctx context.Context, t workerproc.Transcript) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.update(t.UserID, func(u *User) {
		u.Majors = compact(t.Majors)
		u.Courses = append([]extract.CourseRecord(nil), t.Courses...)
	})
}

func (s *UserStore) update(id string, fn func(*User)) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return ErrUserNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[n]
	if !ok {
		return ErrUserNotFound
	}
	fn(u)
	u.UpdatedAt = s.now().UTC()
	return nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

var _ workerproc.Recorder = (*UserStore)(nil)
