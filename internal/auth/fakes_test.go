package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/locklog/internal/user"
)

type resetEntry struct {
	hash    string
	expires time.Time
}

// fakeStore mimics the repository semantics, including the single-statement
// reset token updates.
type fakeStore struct {
	mu     sync.Mutex
	users  map[uuid.UUID]*user.User
	resets map[uuid.UUID]resetEntry
	err    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[uuid.UUID]*user.User{}, resets: map[uuid.UUID]resetEntry{}}
}

func (f *fakeStore) byEmail(email string) *user.User {
	for _, u := range f.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func clone(u *user.User) *user.User {
	c := *u
	return &c
}

func (f *fakeStore) Create(_ context.Context, email, hash string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.byEmail(email) != nil {
		return nil, user.ErrDuplicateEmail
	}
	u := &user.User{ID: uuid.New(), Email: email, PasswordHash: hash, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.users[u.ID] = u
	return clone(u), nil
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if u := f.byEmail(email); u != nil {
		return clone(u), nil
	}
	return nil, user.ErrNotFound
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[id]; ok {
		return clone(u), nil
	}
	return nil, user.ErrNotFound
}

func (f *fakeStore) GetByResetToken(_ context.Context, hash string, now time.Time) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.resets {
		if r.hash == hash && r.expires.After(now) {
			return clone(f.users[id]), nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeStore) SetResetToken(_ context.Context, email, hash string, expires time.Time) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u := f.byEmail(email)
	if u == nil {
		return nil, user.ErrNotFound
	}
	f.resets[u.ID] = resetEntry{hash: hash, expires: expires}
	return clone(u), nil
}

func (f *fakeStore) ConsumeResetToken(_ context.Context, hash, passwordHash string, now time.Time) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.resets {
		if r.hash == hash && r.expires.After(now) {
			delete(f.resets, id)
			f.users[id].PasswordHash = passwordHash
			return clone(f.users[id]), nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeStore) UpdateProfile(_ context.Context, id uuid.UUID, email string, p user.Profile) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	if other := f.byEmail(email); other != nil && other.ID != id {
		return nil, user.ErrDuplicateEmail
	}
	u.Email = email
	u.Profile = p
	return clone(u), nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	u, ok := f.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(f.users, id)
	delete(f.resets, id)
	return nil
}

func (f *fakeStore) failWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type sentMail struct {
	to, subject, body string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, to, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{to, subject, body})
	return n.err
}

func (n *fakeNotifier) mails() []sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMail(nil), n.sent...)
}

// tokenFromLink pulls the plaintext token out of a reset mail body.
func tokenFromLink(body string) string {
	i := strings.Index(body, "/reset/")
	if i < 0 {
		return ""
	}
	rest := body[i+len("/reset/"):]
	if j := strings.IndexAny(rest, "\n "); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
