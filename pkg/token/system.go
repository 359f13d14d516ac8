package token

import (
	"fmt"
	"sync"

	"github.com/kunal-drall/powergrid-network/pkg/governance"
)

// System is the staking ledger and treasury. Staked balances back voting
// weight: it implements both governance.VotingPowerOracle and
// governance.Treasury.
type System struct {
	mutex       sync.RWMutex
	balances    map[string]uint64
	staked      map[string]uint64
	totalStaked uint64
	treasury    uint64
	minters     map[string]bool
}

// NewSystem creates a new token system.
func NewSystem() *System {
	return &System{
		balances: make(map[string]uint64),
		staked:   make(map[string]uint64),
		minters:  make(map[string]bool),
	}
}

// BalanceOf returns the liquid balance of an account.
func (s *System) BalanceOf(account string) uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.balances[account]
}

// SetBalance sets the liquid balance of an account. Intended for genesis
// allocation and tests.
func (s *System) SetBalance(account string, amount uint64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.balances[account] = amount
}

// Mint credits new tokens to an account. Caller must hold the minter role.
func (s *System) Mint(caller, to string, amount uint64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.minters[caller] {
		return governance.ErrUnauthorized
	}
	s.balances[to] += amount
	return nil
}

// Stake moves liquid balance into the staked pool, granting voting weight.
func (s *System) Stake(account string, amount uint64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if amount == 0 {
		return governance.ErrInvalidParameter
	}
	if s.balances[account] < amount {
		return governance.ErrInsufficientBalance
	}
	s.balances[account] -= amount
	s.staked[account] += amount
	s.totalStaked += amount
	return nil
}

// Unstake returns staked tokens to the liquid balance, reducing voting
// weight.
func (s *System) Unstake(account string, amount uint64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if amount == 0 {
		return governance.ErrInvalidParameter
	}
	if s.staked[account] < amount {
		return governance.ErrInsufficientBalance
	}
	s.staked[account] -= amount
	s.totalStaked -= amount
	s.balances[account] += amount
	return nil
}

// WeightOf returns the staked balance of an account. Implements
// governance.VotingPowerOracle.
func (s *System) WeightOf(account string) (uint64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.staked[account], nil
}

// TotalWeight returns the total staked supply. Implements
// governance.VotingPowerOracle.
func (s *System) TotalWeight() (uint64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.totalStaked, nil
}

// DepositToTreasury moves liquid balance from an account into the
// governance treasury.
func (s *System) DepositToTreasury(from string, amount uint64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if amount == 0 {
		return governance.ErrInvalidParameter
	}
	if s.balances[from] < amount {
		return governance.ErrInsufficientBalance
	}
	s.balances[from] -= amount
	s.treasury += amount
	return nil
}

// Transfer pays out treasury-held tokens to a recipient. Implements
// governance.Treasury.
func (s *System) Transfer(to string, amount uint64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.treasury < amount {
		return fmt.Errorf("%w: treasury holds %d, need %d",
			governance.ErrInsufficientBalance, s.treasury, amount)
	}
	s.treasury -= amount
	s.balances[to] += amount
	return nil
}

// SetMinter toggles the minter role on an account. Implements
// governance.Treasury.
func (s *System) SetMinter(account string, enabled bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if account == "" {
		return governance.ErrInvalidParameter
	}
	if enabled {
		s.minters[account] = true
	} else {
		delete(s.minters, account)
	}
	return nil
}

// IsMinter reports whether an account holds the minter role.
func (s *System) IsMinter(account string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.minters[account]
}

// Balance returns the treasury balance. Implements governance.Treasury.
func (s *System) Balance() uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.treasury
}
