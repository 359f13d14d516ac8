package gridservice

import (
	"sync"

	"github.com/kunal-drall/powergrid-network/pkg/governance"
)

// Service is the grid-event collaborator. Governance adjusts its default
// compensation rate and authorized-caller set; grid event handling itself is
// outside the governance engine.
type Service struct {
	mutex                   sync.RWMutex
	defaultCompensationRate uint64
	authorized              map[string]bool
}

// NewService creates a grid service with the given default compensation
// rate.
func NewService(defaultRate uint64) *Service {
	return &Service{
		defaultCompensationRate: defaultRate,
		authorized:              make(map[string]bool),
	}
}

// UpdateDefaultCompensationRate changes the default compensation rate. Zero
// is rejected.
func (s *Service) UpdateDefaultCompensationRate(value uint64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if value == 0 {
		return governance.ErrInvalidParameter
	}
	s.defaultCompensationRate = value
	return nil
}

// DefaultCompensationRate returns the current default compensation rate.
func (s *Service) DefaultCompensationRate() uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.defaultCompensationRate
}

// SetAuthorizedCaller toggles the authorized-caller role on an account.
func (s *Service) SetAuthorizedCaller(account string, enabled bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if account == "" {
		return governance.ErrInvalidParameter
	}
	if enabled {
		s.authorized[account] = true
	} else {
		delete(s.authorized, account)
	}
	return nil
}

// IsAuthorizedCaller reports whether an account holds the role.
func (s *Service) IsAuthorizedCaller(account string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.authorized[account]
}
