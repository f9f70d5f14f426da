package accesslog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/locklog/internal/card"
)

// fakeStore keeps logs in insertion order and hands them back newest first.
type fakeStore struct {
	mu    sync.Mutex
	logs  []*Log
	clock time.Time
	err   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{clock: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (f *fakeStore) Insert(_ context.Context, in RecordInput) (*Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.clock = f.clock.Add(time.Minute)
	l := &Log{
		ID: uuid.New(), ProjectID: in.ProjectID, CardID: in.CardID, Score: in.Score,
		ScoreType: in.ScoreType, Note: in.Note, Success: in.Success, NewCard: in.NewCard,
		Source: in.Key, CreatedAt: f.clock, UpdatedAt: f.clock,
	}
	f.logs = append(f.logs, l)
	return l, nil
}

func (f *fakeStore) UpdateScore(_ context.Context, id uuid.UUID, score float64, scoreType, note string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.logs {
		if l.ID == id {
			l.Score, l.ScoreType, l.Note = score, scoreType, note
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.logs {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) newestFirst(keep func(*Log) bool) []Log {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Log{}
	for i := len(f.logs) - 1; i >= 0; i-- {
		if keep(f.logs[i]) {
			out = append(out, *f.logs[i])
		}
	}
	return out
}

func (f *fakeStore) List(context.Context) ([]Log, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.newestFirst(func(*Log) bool { return true }), nil
}

func (f *fakeStore) ListScored(context.Context) ([]Log, error) {
	return f.newestFirst(func(l *Log) bool { return l.Success && l.Score > 0 }), nil
}

// fakeCards returns cards in the order given, which tests treat as newest first.
type fakeCards []card.Card

func (f fakeCards) List(context.Context) ([]card.Card, error) {
	return f, nil
}

func (f fakeCards) ExistsByUID(_ context.Context, uid string) (bool, error) {
	for _, c := range f {
		if c.UID == uid {
			return true, nil
		}
	}
	return false, nil
}

type fakeProjects map[string]bool

func (f fakeProjects) ExistsByUID(_ context.Context, uid string) (bool, error) {
	return f[uid], nil
}
