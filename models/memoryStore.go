package models

import (
	"context"
	"sync"

	"github.com/mmdatafocus/pipeline_backend/utils"
)

// MemoryStore keeps records in process memory. Records are copied on the way
// in and out, so callers never share state with the store.
//
// Writes outside a transaction and whole transactions are serialized by one
// writer lock; readers may observe a running transaction's writes.
type MemoryStore struct {
	state *memoryState
	inTx  bool
}

type memoryState struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	users         *userTable
	leads         *memoryTable[Lead]
	opportunities *memoryTable[Opportunity]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		users:         newUserTable(),
		leads:         newMemoryTable[Lead](),
		opportunities: newMemoryTable[Opportunity](),
	}}
}

func (s *MemoryStore) Users() UserRepository {
	return &memoryUserRepository{store: s}
}

func (s *MemoryStore) Leads() Repository[Lead] {
	return &memoryRepository[Lead]{
		store:    s,
		resource: "lead",
		table:    func(st *memoryState) *memoryTable[Lead] { return st.leads },
	}
}

func (s *MemoryStore) Opportunities() Repository[Opportunity] {
	return &memoryRepository[Opportunity]{
		store:    s,
		resource: "opportunity",
		table:    func(st *memoryState) *memoryTable[Opportunity] { return st.opportunities },
	}
}

// Transaction restores the pre-transaction contents when fn fails or panics.
// A transaction started from inside fn joins the outer one.
func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}
	st := s.state
	st.txMu.Lock()
	defer st.txMu.Unlock()

	st.mu.RLock()
	snapshot := st.snapshot()
	st.mu.RUnlock()

	committed := false
	defer func() {
		if !committed {
			st.mu.Lock()
			st.restore(snapshot)
			st.mu.Unlock()
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(&MemoryStore{state: st, inTx: true}); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *MemoryStore) read(fn func(st *memoryState) error) error {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	return fn(s.state)
}

func (s *MemoryStore) write(fn func(st *memoryState) error) error {
	if !s.inTx {
		s.state.txMu.Lock()
		defer s.state.txMu.Unlock()
	}
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return fn(s.state)
}

type memorySnapshot struct {
	users         *userTable
	leads         *memoryTable[Lead]
	opportunities *memoryTable[Opportunity]
}

func (st *memoryState) snapshot() memorySnapshot {
	return memorySnapshot{
		users:         st.users.clone(),
		leads:         st.leads.clone(),
		opportunities: st.opportunities.clone(),
	}
}

func (st *memoryState) restore(snap memorySnapshot) {
	st.users = snap.users
	st.leads = snap.leads
	st.opportunities = snap.opportunities
}

type memoryTable[T Owned] struct {
	rows  map[string]T
	order []string
}

func newMemoryTable[T Owned]() *memoryTable[T] {
	return &memoryTable[T]{rows: map[string]T{}}
}

func (t *memoryTable[T]) clone() *memoryTable[T] {
	c := &memoryTable[T]{
		rows:  make(map[string]T, len(t.rows)),
		order: append([]string(nil), t.order...),
	}
	for id, row := range t.rows {
		c.rows[id] = cloneRecord(row)
	}
	return c
}

func (t *memoryTable[T]) remove(id string) {
	delete(t.rows, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

// cloneRecord deep-copies the pointer fields a record carries.
func cloneRecord[T any](rec T) T {
	if opp, ok := any(rec).(Opportunity); ok && opp.LeadID != nil {
		leadID := *opp.LeadID
		opp.LeadID = &leadID
		return any(opp).(T)
	}
	return rec
}

type memoryRepository[T Owned] struct {
	store    *MemoryStore
	resource string
	table    func(st *memoryState) *memoryTable[T]
}

func (r *memoryRepository[T]) List(ctx context.Context, filter RecordFilter) ([]*T, error) {
	var results []*T
	err := r.store.read(func(st *memoryState) error {
		t := r.table(st)
		results = make([]*T, 0, len(t.order))
		for _, id := range t.order {
			row := t.rows[id]
			if !filter.Matches(row) {
				continue
			}
			c := cloneRecord(row)
			results = append(results, &c)
		}
		return nil
	})
	return results, err
}

func (r *memoryRepository[T]) Get(ctx context.Context, id string) (*T, error) {
	var result *T
	err := r.store.read(func(st *memoryState) error {
		row, ok := r.table(st).rows[id]
		if !ok {
			return utils.NotFound(r.resource)
		}
		c := cloneRecord(row)
		result = &c
		return nil
	})
	return result, err
}

func (r *memoryRepository[T]) Create(ctx context.Context, rec *T) error {
	return r.store.write(func(st *memoryState) error {
		t := r.table(st)
		id := (*rec).GetID()
		if _, exists := t.rows[id]; exists {
			return utils.ErrConflict
		}
		t.rows[id] = cloneRecord(*rec)
		t.order = append(t.order, id)
		return nil
	})
}

func (r *memoryRepository[T]) Save(ctx context.Context, rec *T) error {
	return r.store.write(func(st *memoryState) error {
		t := r.table(st)
		id := (*rec).GetID()
		if _, exists := t.rows[id]; !exists {
			return utils.NotFound(r.resource)
		}
		t.rows[id] = cloneRecord(*rec)
		return nil
	})
}

func (r *memoryRepository[T]) Delete(ctx context.Context, id string) error {
	return r.store.write(func(st *memoryState) error {
		t := r.table(st)
		if _, exists := t.rows[id]; !exists {
			return utils.NotFound(r.resource)
		}
		t.remove(id)
		return nil
	})
}

type userTable struct {
	rows    map[string]User
	byEmail map[string]string
}

func newUserTable() *userTable {
	return &userTable{rows: map[string]User{}, byEmail: map[string]string{}}
}

func (t *userTable) clone() *userTable {
	c := newUserTable()
	for id, u := range t.rows {
		c.rows[id] = u
	}
	for email, id := range t.byEmail {
		c.byEmail[email] = id
	}
	return c
}

type memoryUserRepository struct {
	store *MemoryStore
}

func (r *memoryUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var result *User
	err := r.store.read(func(st *memoryState) error {
		id, ok := st.users.byEmail[utils.NormalizeEmail(email)]
		if !ok {
			return utils.NotFound("user")
		}
		u := st.users.rows[id]
		result = &u
		return nil
	})
	return result, err
}

func (r *memoryUserRepository) Get(ctx context.Context, id string) (*User, error) {
	var result *User
	err := r.store.read(func(st *memoryState) error {
		u, ok := st.users.rows[id]
		if !ok {
			return utils.NotFound("user")
		}
		result = &u
		return nil
	})
	return result, err
}

func (r *memoryUserRepository) Create(ctx context.Context, user *User) error {
	return r.store.write(func(st *memoryState) error {
		email := utils.NormalizeEmail(user.Email)
		if _, taken := st.users.byEmail[email]; taken {
			return utils.ErrConflict
		}
		if _, taken := st.users.rows[user.ID]; taken {
			return utils.ErrConflict
		}
		u := *user
		u.Email = email
		st.users.rows[u.ID] = u
		st.users.byEmail[email] = u.ID
		return nil
	})
}

func (r *memoryUserRepository) UpdatePassword(ctx context.Context, id string, hashed string) error {
	return r.store.write(func(st *memoryState) error {
		u, ok := st.users.rows[id]
		if !ok {
			return utils.NotFound("user")
		}
		u.Password = hashed
		st.users.rows[id] = u
		return nil
	})
}
