package permission

import (
	"errors"
	"sort"
	"sync"
)

// Wildcard grants every permission when listed in a role.
const Wildcard = "*"

var (
	// ErrRegistryFrozen is returned when registering after Freeze.
	ErrRegistryFrozen = errors.New("permission registry frozen")
	// ErrUnknownPermission is returned for a name that was never registered.
	ErrUnknownPermission = errors.New("permission not registered")
	// ErrPermissionLimit is returned when all non-root bits are taken.
	ErrPermissionLimit = errors.New("permission limit exceeded")
)

// Registry maps permission names to bit positions within a [Mask]. The
// highest bit is reserved for [Wildcard].
type Registry struct {
	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		nameToBit: make(map[string]int),
		bitToName: map[int]string{rootBit: Wildcard},
	}
}

// Register assigns the next free bit to name and returns it. Registering a
// known name returns its existing bit.
func (r *Registry) Register(name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return -1, errors.New("permission name cannot be empty")
	}
	if name == Wildcard {
		return rootBit, nil
	}
	if bit, ok := r.nameToBit[name]; ok {
		return bit, nil
	}
	if r.frozen {
		return -1, ErrRegistryFrozen
	}

	next := len(r.nameToBit)
	if next >= rootBit {
		return -1, ErrPermissionLimit
	}
	r.nameToBit[name] = next
	r.bitToName[next] = name
	return next, nil
}

// Bit returns the bit index for name, or false if not registered.
func (r *Registry) Bit(name string) (int, bool) {
	if name == Wildcard {
		return rootBit, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the permission name for bit, or false if unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Names expands a mask back into sorted permission names. A root mask
// yields just [Wildcard].
func (r *Registry) Names(m Mask) []string {
	if m.Root() {
		return []string{Wildcard}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.nameToBit))
	for name, bit := range r.nameToBit {
		if m.Has(bit) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered permissions, excluding the root.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}
