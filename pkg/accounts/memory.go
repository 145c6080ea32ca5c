package accounts

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryRepository keeps accounts in process memory. It is used when no
// database URL is configured and in tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	nextID   int64
	accounts map[int64]Account
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nextID:   1,
		accounts: make(map[int64]Account),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) Create(_ context.Context, a Account) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailUsedLocked(a.Email, 0) {
		return Account{}, ErrEmailTaken
	}
	a.ID = r.nextID
	r.nextID++
	a.CreatedAt = r.now()
	a.Age = copyAge(a.Age)
	r.accounts[a.ID] = a
	return a, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id int64) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	a.Age = copyAge(a.Age)
	return a, nil
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if a.Email == email {
			a.Age = copyAge(a.Age)
			return a, nil
		}
	}
	return Account{}, ErrNotFound
}

func (r *MemoryRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.emailUsedLocked(email, 0), nil
}

func (r *MemoryRepository) List(_ context.Context) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		a.Age = copyAge(a.Age)
		out = append(out, a)
	}
	slices.SortFunc(out, func(x, y Account) int { return cmp.Compare(x.ID, y.ID) })
	return out, nil
}

func (r *MemoryRepository) Update(_ context.Context, a Account) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.accounts[a.ID]
	if !ok {
		return Account{}, ErrNotFound
	}
	if r.emailUsedLocked(a.Email, a.ID) {
		return Account{}, ErrEmailTaken
	}
	existing.Name = a.Name
	existing.Email = a.Email
	existing.Age = copyAge(a.Age)
	r.accounts[a.ID] = existing
	return existing, nil
}

func (r *MemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(r.accounts, id)
	return nil
}

func (r *MemoryRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.accounts)), nil
}

// emailUsedLocked reports whether an account other than except uses email.
func (r *MemoryRepository) emailUsedLocked(email string, except int64) bool {
	for id, a := range r.accounts {
		if id != except && a.Email == email {
			return true
		}
	}
	return false
}

func copyAge(age *int) *int {
	if age == nil {
		return nil
	}
	v := *age
	return &v
}

var _ Repository = (*MemoryRepository)(nil)
