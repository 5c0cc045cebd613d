package account

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepository is an in-memory account store used by tests and by the
// development server when no database is configured.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryRepository builds an empty in-memory account repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]User)}
}

func (r *MemoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email || existing.Phone == user.Phone {
			return ErrDuplicateIdentity
		}
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email {
			return cloneUser(user), nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepository) AddDevice(_ context.Context, userID string, device Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	if _, exists := user.FindDevice(device.DeviceID); exists {
		return nil
	}
	user.Devices = append(user.Devices, device)
	r.users[userID] = user
	return nil
}

func (r *MemoryRepository) TouchDeviceLogin(_ context.Context, userID, deviceID string, at time.Time) error {
	return r.mutateDevice(userID, deviceID, func(d *Device) {
		t := at
		d.LastLogin = &t
	})
}

func (r *MemoryRepository) VerifyDevice(_ context.Context, userID, deviceID string, at time.Time) error {
	return r.mutateDevice(userID, deviceID, func(d *Device) {
		t := at
		d.Verified = true
		d.VerifiedAt = &t
	})
}

func (r *MemoryRepository) List(_ context.Context, search string, offset, limit int) ([]User, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := strings.ToLower(search)
	var matched []User
	for _, user := range r.users {
		if needle == "" || matchesSearch(user, needle) {
			matched = append(matched, cloneUser(user))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *MemoryRepository) Stats(_ context.Context) (Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s Stats
	for _, user := range r.users {
		s.TotalUsers++
		if user.IsActive {
			s.ActiveUsers++
		}
		s.TotalBalance += user.Balance
		for _, d := range user.Devices {
			if !d.Verified {
				s.PendingDevices++
			}
		}
	}
	return s, nil
}

// SetActive toggles the account active flag. Test helper.
func (r *MemoryRepository) SetActive(userID string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[userID]; ok {
		user.IsActive = active
		r.users[userID] = user
	}
}

// SetBalance overwrites a stored balance. The in-memory ledger store writes
// balances back through this so user records stay consistent; it is also used
// directly by tests.
func (r *MemoryRepository) SetBalance(userID string, balance int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[userID]; ok {
		user.Balance = balance
		r.users[userID] = user
	}
}

func (r *MemoryRepository) mutateDevice(userID, deviceID string, fn func(*Device)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	for i := range user.Devices {
		if user.Devices[i].DeviceID == deviceID {
			fn(&user.Devices[i])
			r.users[userID] = user
			return nil
		}
	}
	return ErrDeviceNotFound
}

func matchesSearch(user User, needle string) bool {
	for _, field := range []string{user.FirstName, user.LastName, user.Email, user.Phone} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func cloneUser(user User) User {
	devices := make([]Device, len(user.Devices))
	copy(devices, user.Devices)
	user.Devices = devices
	return user
}
