package governance

import "time"

// VotingPowerOracle reports staked voting weight. A zero total weight is a
// hard error for tallying, never a silent quorum failure.
type VotingPowerOracle interface {
	// WeightOf returns the current voting weight of an account.
	WeightOf(account string) (uint64, error)

	// TotalWeight returns the total outstanding voting weight.
	TotalWeight() (uint64, error)
}

// Registry defines the device-registry operations a passed proposal may
// invoke.
type Registry interface {
	UpdateMinStake(value uint64) error
	UpdateReputationThreshold(value uint32) error
	SetAuthorizedCaller(account string, enabled bool) error
}

// GridService defines the grid-event subsystem operations a passed proposal
// may invoke.
type GridService interface {
	UpdateDefaultCompensationRate(value uint64) error
	SetAuthorizedCaller(account string, enabled bool) error
}

// Treasury defines the token-side operations governance depends on.
type Treasury interface {
	// Transfer moves treasury-held tokens to a recipient.
	Transfer(to string, amount uint64) error

	// SetMinter toggles the minter role on an account.
	SetMinter(account string, enabled bool) error

	// Balance returns the treasury balance.
	Balance() uint64
}

// ProposalExecutor dispatches the side effect for a passed proposal's kind.
type ProposalExecutor interface {
	Execute(kind ProposalKind) error
}

// ProposalStore defines methods for storing proposals, votes and queue
// entries. Implementations return (nil, nil) for missing proposals and
// (0, nil) for missing queue entries; the service owns all invariant
// enforcement.
type ProposalStore interface {
	SaveProposal(proposal *Proposal) error
	GetProposal(id uint64) (*Proposal, error)
	ListProposals() ([]*Proposal, error)
	ProposalCount() (uint64, error)
	NextID() (uint64, error)

	SaveVote(vote *Vote) error
	GetVote(id uint64, voter string) (*Vote, error)

	// RecordVote persists a vote record together with the proposal's
	// updated tallies in one atomic write. A half-written pair would mark
	// the voter as having voted without counting their weight.
	RecordVote(vote *Vote, proposal *Proposal) error

	SaveQueueEntry(id uint64, queuedAt int64) error
	GetQueueEntry(id uint64) (int64, error)
}

// Clock supplies the current time in unix milliseconds. Deadlines are
// checked on every call, never by a background timer.
type Clock interface {
	NowMillis() int64
}

type systemClock struct{}

func (systemClock) NowMillis() int64 {
	return time.Now().UnixMilli()
}

// SystemClock returns a Clock backed by the wall clock.
func SystemClock() Clock {
	return systemClock{}
}
