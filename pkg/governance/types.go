package governance

import "math"

// ProposalStatus represents the derived lifecycle stage of a proposal.
type ProposalStatus string

const (
	StatusVotingOpen   ProposalStatus = "voting_open"
	StatusVotingClosed ProposalStatus = "voting_closed"
	StatusQueued       ProposalStatus = "queued"
	StatusMatured      ProposalStatus = "matured"
	StatusExecuted     ProposalStatus = "executed"
	StatusRejected     ProposalStatus = "rejected"
	StatusFailed       ProposalStatus = "execution_failed"
)

// ProposalKindType discriminates the proposal kind payload.
type ProposalKindType string

const (
	KindUpdateMinStake              ProposalKindType = "update_min_stake"
	KindUpdateCompensationRate      ProposalKindType = "update_compensation_rate"
	KindUpdateReputationThreshold   ProposalKindType = "update_reputation_threshold"
	KindTreasurySpend               ProposalKindType = "treasury_spend"
	KindSystemUpgrade               ProposalKindType = "system_upgrade"
	KindOther                       ProposalKindType = "other"
	KindSetTokenMinter              ProposalKindType = "set_token_minter"
	KindSetRegistryAuthorizedCaller ProposalKindType = "set_registry_authorized_caller"
	KindSetGridAuthorizedCaller     ProposalKindType = "set_grid_authorized_caller"
)

// ProposalKind is a tagged variant: Type selects which payload fields are
// meaningful. Amount carries stakes, rates and spend amounts; Threshold the
// reputation threshold; Account the spend recipient or the role target;
// Enabled the role toggle; Note free text for KindOther.
type ProposalKind struct {
	Type      ProposalKindType `json:"type"`
	Amount    uint64           `json:"amount,omitempty"`
	Threshold uint32           `json:"threshold,omitempty"`
	Account   string           `json:"account,omitempty"`
	Enabled   bool             `json:"enabled,omitempty"`
	Note      string           `json:"note,omitempty"`
}

// Validate rejects structurally invalid payloads before a proposal is stored.
func (k ProposalKind) Validate() error {
	switch k.Type {
	case KindUpdateMinStake, KindUpdateCompensationRate:
		if k.Amount == 0 {
			return ErrInvalidParameter
		}
	case KindUpdateReputationThreshold:
		if k.Threshold > 100 {
			return ErrInvalidParameter
		}
	case KindTreasurySpend:
		if k.Account == "" || k.Amount == 0 {
			return ErrInvalidParameter
		}
	case KindSetTokenMinter, KindSetRegistryAuthorizedCaller, KindSetGridAuthorizedCaller:
		if k.Account == "" {
			return ErrInvalidParameter
		}
	case KindSystemUpgrade, KindOther:
		// No payload to validate.
	default:
		return ErrInvalidParameter
	}
	return nil
}

// IsTreasurySpend reports whether the kind moves treasury funds and is
// therefore subject to the supermajority threshold.
func (k ProposalKind) IsTreasurySpend() bool {
	return k.Type == KindTreasurySpend
}

// Proposal represents a governance proposal. All timestamps are unix
// milliseconds. Vote weights use saturating arithmetic and maintain
// YesWeight + NoWeight == TotalWeight.
type Proposal struct {
	ID                uint64       `json:"id"`
	Proposer          string       `json:"proposer"`
	Kind              ProposalKind `json:"kind"`
	Description       string       `json:"description"`
	YesWeight         uint64       `json:"yes_weight"`
	NoWeight          uint64       `json:"no_weight"`
	TotalWeight       uint64       `json:"total_weight"`
	YesVoters         uint32       `json:"yes_voters"`
	NoVoters          uint32       `json:"no_voters"`
	CreatedAt         int64        `json:"created_at"`
	VotingEnd         int64        `json:"voting_end"`
	Executed          bool         `json:"executed"`
	Active            bool         `json:"active"`
	Rejected          bool         `json:"rejected"`
	ExecutionFailures uint32       `json:"execution_failures"`
}

// Vote records a single cast vote. Weight is frozen at cast time and never
// re-read from the oracle afterwards.
type Vote struct {
	ProposalID uint64 `json:"proposal_id"`
	Voter      string `json:"voter"`
	Support    bool   `json:"support"`
	Weight     uint64 `json:"weight"`
	Reason     string `json:"reason,omitempty"`
	CastAt     int64  `json:"cast_at"`
}

// MaxDescriptionLen bounds proposal descriptions.
const MaxDescriptionLen = 512

// Params holds the governance parameters. QuorumPercent is a whole percent
// in [0,100]; durations are milliseconds except TimelockSeconds.
type Params struct {
	MinVotingPower       uint64 `json:"min_voting_power"`
	VotingPeriodMillis   int64  `json:"voting_period_millis"`
	QuorumPercent        uint64 `json:"quorum_percent"`
	TimelockSeconds      int64  `json:"timelock_seconds"`
	MaxExecutionAttempts uint32 `json:"max_execution_attempts"`
}

// DefaultParams returns the default governance parameters.
func DefaultParams() Params {
	return Params{
		MinVotingPower:       1000,
		VotingPeriodMillis:   24 * 60 * 60 * 1000,
		QuorumPercent:        25,
		TimelockSeconds:      24 * 60 * 60,
		MaxExecutionAttempts: 3,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.QuorumPercent > 100 {
		return ErrInvalidParameter
	}
	if p.VotingPeriodMillis <= 0 || p.TimelockSeconds < 0 {
		return ErrInvalidParameter
	}
	if p.MaxExecutionAttempts == 0 {
		return ErrInvalidParameter
	}
	return nil
}

// satAdd adds two weights, saturating at the maximum instead of wrapping.
func satAdd(a, b uint64) uint64 {
	if sum := a + b; sum >= a {
		return sum
	}
	return math.MaxUint64
}
