package submission

import (
	"context"
	"sync"

	"github.com/eleven-am/kickflip/internal/shared"
)

type memStore struct {
	mu       sync.Mutex
	records  map[string]Submission
	history  map[string][]State
	watchers map[string][]chan *Submission

	createErr error
	saveErr   error

	// saveFailures maps a 1-based Save call number to the error it returns.
	saveFailures map[int]error
	saves        int
}

func newMemStore() *memStore {
	return &memStore{
		records:  make(map[string]Submission),
		history:  make(map[string][]State),
		watchers: make(map[string][]chan *Submission),
	}
}

func (m *memStore) Create(_ context.Context, sub *Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.records[sub.ID] = *sub
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.records[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &sub, nil
}

func (m *memStore) Save(_ context.Context, sub *Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	if err, ok := m.saveFailures[m.saves]; ok {
		return err
	}
	m.records[sub.ID] = *sub
	m.history[sub.ID] = append(m.history[sub.ID], sub.State)
	return nil
}

func (m *memStore) Publish(_ context.Context, sub *Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.watchers[sub.ID] {
		cp := *sub
		select {
		case ch <- &cp:
		default:
		}
	}
	return nil
}

func (m *memStore) Subscribe(ctx context.Context, id string) (<-chan *Submission, error) {
	ch := make(chan *Submission, 16)
	m.mu.Lock()
	m.watchers[id] = append(m.watchers[id], ch)
	m.mu.Unlock()

	out := make(chan *Submission, 16)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case sub := <-ch:
				select {
				case out <- sub:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (m *memStore) states(id string) []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]State(nil), m.history[id]...)
}

func (m *memStore) watcherCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers[id])
}
