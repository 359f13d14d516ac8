package governance

import (
	"sync"

	"go.uber.org/zap"
)

// AccessController enforces owner/guardian roles and the emergency pause.
// Every check takes the caller identity explicitly; there is no ambient
// caller state.
type AccessController struct {
	mu        sync.RWMutex
	owner     string
	guardians map[string]struct{}
	paused    bool
	log       *zap.Logger
}

// NewAccessController creates a controller owned by the given account. The
// owner is always a guardian.
func NewAccessController(owner string, log *zap.Logger) *AccessController {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccessController{
		owner:     owner,
		guardians: map[string]struct{}{owner: {}},
		log:       log,
	}
}

// Owner returns the current owner.
func (a *AccessController) Owner() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.owner
}

// TransferOwnership moves ownership to a new account. The new owner joins
// the guardian set; the old owner stays a guardian until removed.
func (a *AccessController) TransferOwnership(caller, newOwner string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.owner {
		return ErrUnauthorized
	}
	if newOwner == "" {
		return ErrInvalidParameter
	}
	a.owner = newOwner
	a.guardians[newOwner] = struct{}{}
	return nil
}

// AddGuardian adds an account to the guardian set. Owner only.
func (a *AccessController) AddGuardian(caller, guardian string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.owner {
		return ErrUnauthorized
	}
	if guardian == "" {
		return ErrInvalidParameter
	}
	a.guardians[guardian] = struct{}{}
	return nil
}

// RemoveGuardian removes an account from the guardian set. The owner cannot
// be removed.
func (a *AccessController) RemoveGuardian(caller, guardian string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.owner {
		return ErrUnauthorized
	}
	if guardian == a.owner {
		return ErrInvalidParameter
	}
	delete(a.guardians, guardian)
	return nil
}

// IsGuardian reports whether an account may pause the system.
func (a *AccessController) IsGuardian(account string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.guardians[account]
	return ok
}

// Guardians returns the guardian set.
func (a *AccessController) Guardians() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.guardians))
	for g := range a.guardians {
		out = append(out, g)
	}
	return out
}

// Pause halts all state-mutating governance entry points. Guardians and the
// owner may pause. An unauthorized attempt emits a security-violation signal
// and returns an error; it never fails silently.
func (a *AccessController) Pause(caller string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.guardians[caller]; !ok {
		a.log.Warn("security violation: unauthorized pause attempt",
			zap.String("caller", caller))
		return ErrUnauthorized
	}
	a.paused = true
	a.log.Info("system paused", zap.String("caller", caller))
	return nil
}

// Unpause lifts the pause. Owner only: a compromised guardian must not be
// able to freeze and release the system alone.
func (a *AccessController) Unpause(caller string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if caller != a.owner {
		a.log.Warn("security violation: unauthorized unpause attempt",
			zap.String("caller", caller))
		return ErrUnauthorized
	}
	a.paused = false
	a.log.Info("system unpaused", zap.String("caller", caller))
	return nil
}

// Paused reports whether the system is paused.
func (a *AccessController) Paused() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.paused
}

// requireNotPaused gates state-mutating entry points.
func (a *AccessController) requireNotPaused() error {
	if a.Paused() {
		return ErrPaused
	}
	return nil
}

// requireOwner gates owner-only operations.
func (a *AccessController) requireOwner(caller string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if caller != a.owner {
		return ErrUnauthorized
	}
	return nil
}
