package registry

import (
	"sync"

	"github.com/kunal-drall/powergrid-network/pkg/governance"
)

// Registry is the device registry collaborator. Governance mutates its
// parameters through the governance.Registry interface; device registration
// itself lives outside the governance engine.
type Registry struct {
	mutex               sync.RWMutex
	minStake            uint64
	reputationThreshold uint32
	authorized          map[string]bool
}

// NewRegistry creates a registry with the given minimum stake.
func NewRegistry(minStake uint64) *Registry {
	return &Registry{
		minStake:            minStake,
		reputationThreshold: 50,
		authorized:          make(map[string]bool),
	}
}

// UpdateMinStake changes the minimum device stake. Zero is rejected.
func (r *Registry) UpdateMinStake(value uint64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if value == 0 {
		return governance.ErrInvalidParameter
	}
	r.minStake = value
	return nil
}

// MinStake returns the current minimum device stake.
func (r *Registry) MinStake() uint64 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.minStake
}

// UpdateReputationThreshold changes the reputation threshold (0-100).
func (r *Registry) UpdateReputationThreshold(value uint32) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if value > 100 {
		return governance.ErrInvalidParameter
	}
	r.reputationThreshold = value
	return nil
}

// ReputationThreshold returns the current reputation threshold.
func (r *Registry) ReputationThreshold() uint32 {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.reputationThreshold
}

// SetAuthorizedCaller toggles the authorized-caller role on an account.
func (r *Registry) SetAuthorizedCaller(account string, enabled bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if account == "" {
		return governance.ErrInvalidParameter
	}
	if enabled {
		r.authorized[account] = true
	} else {
		delete(r.authorized, account)
	}
	return nil
}

// IsAuthorizedCaller reports whether an account holds the role.
func (r *Registry) IsAuthorizedCaller(account string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.authorized[account]
}
