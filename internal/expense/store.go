package expense

import "sync"

// ListStore is the in-memory expense list the listing endpoints read from.
// It changes only through Load, Prepend and Patch.
type ListStore struct {
	mu     sync.RWMutex
	items  []Expense
	loaded bool
}

func NewListStore() *ListStore {
	return &ListStore{items: []Expense{}}
}

// Load replaces the contents with an initial fetch.
func (s *ListStore) Load(items []Expense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(make([]Expense, 0, len(items)), items...)
	s.loaded = true
}

func (s *ListStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Invalidate forces the next reader to reload.
func (s *ListStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
}

// Prepend inserts a newly created expense at the head.
func (s *ListStore) Prepend(e Expense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]Expense, 0, len(s.items)+1)
	items = append(items, e)
	s.items = append(items, s.items...)
}

// Patch replaces the expense with the same id in place. It reports
// whether the id was present.
func (s *ListStore) Patch(e Expense) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == e.ID {
			s.items[i] = e
			return true
		}
	}
	return false
}

func (s *ListStore) Get(id string) (Expense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.items {
		if e.ID == id {
			return e, true
		}
	}
	return Expense{}, false
}

// List returns a copy safe for the caller to reorder.
func (s *ListStore) List() []Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Expense, len(s.items))
	copy(out, s.items)
	return out
}

func (s *ListStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
