package governance

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Service is the governance engine. It owns all proposal and vote state
// through its store, wraps every mutating entry point in the pause gate and
// the reentrancy guard, and calls into external collaborators only through
// the interfaces it was constructed with.
type Service struct {
	store    ProposalStore
	oracle   VotingPowerOracle
	executor ProposalExecutor
	timelock *TimelockScheduler
	access   *AccessController
	guard    reentrancyGuard
	clock    Clock
	log      *zap.Logger

	paramsMu sync.RWMutex
	params   Params
}

// NewService creates a new governance service owned by the given account.
func NewService(
	owner string,
	params Params,
	store ProposalStore,
	oracle VotingPowerOracle,
	executor ProposalExecutor,
	clock Clock,
	log *zap.Logger,
) (*Service, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid governance parameters: %w", err)
	}
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		oracle:   oracle,
		executor: executor,
		timelock: NewTimelockScheduler(store),
		access:   NewAccessController(owner, log),
		clock:    clock,
		log:      log,
		params:   params,
	}, nil
}

// CreateProposal creates a new proposal and opens its voting window. The
// proposer must hold at least MinVotingPower of staked weight.
func (s *Service) CreateProposal(caller string, kind ProposalKind, description string) (uint64, error) {
	if err := s.guard.enter(); err != nil {
		return 0, err
	}
	defer s.guard.exit()

	if err := s.access.requireNotPaused(); err != nil {
		return 0, err
	}

	if description == "" || len(description) > MaxDescriptionLen {
		return 0, fmt.Errorf("%w: description must be 1-%d bytes", ErrInvalidParameter, MaxDescriptionLen)
	}
	if err := kind.Validate(); err != nil {
		return 0, fmt.Errorf("%w: malformed %s payload", err, kind.Type)
	}

	weight, err := s.oracle.WeightOf(caller)
	if err != nil {
		return 0, fmt.Errorf("failed to read voting power: %w", err)
	}
	if weight < s.Params().MinVotingPower {
		return 0, ErrInsufficientVotingPower
	}

	id, err := s.store.NextID()
	if err != nil {
		return 0, fmt.Errorf("failed to assign proposal id: %w", err)
	}

	now := s.clock.NowMillis()
	proposal := &Proposal{
		ID:          id,
		Proposer:    caller,
		Kind:        kind,
		Description: description,
		CreatedAt:   now,
		VotingEnd:   now + s.Params().VotingPeriodMillis,
		Active:      true,
	}
	if err := s.store.SaveProposal(proposal); err != nil {
		return 0, fmt.Errorf("failed to save proposal: %w", err)
	}

	s.log.Info("proposal created",
		zap.Uint64("proposal_id", id),
		zap.String("proposer", caller),
		zap.String("kind", string(kind.Type)),
		zap.Int64("voting_end", proposal.VotingEnd))

	return id, nil
}

// Vote casts a weighted vote. The voter's weight is frozen at cast time; a
// later balance change never alters a recorded tally.
func (s *Service) Vote(caller string, id uint64, support bool, reason string) error {
	if err := s.guard.enter(); err != nil {
		return err
	}
	defer s.guard.exit()

	if err := s.access.requireNotPaused(); err != nil {
		return err
	}

	proposal, err := s.store.GetProposal(id)
	if err != nil {
		return fmt.Errorf("failed to get proposal: %w", err)
	}
	if proposal == nil {
		return ErrProposalNotFound
	}

	now := s.clock.NowMillis()
	if !proposal.Active || now > proposal.VotingEnd {
		return ErrVotingClosed
	}

	existing, err := s.store.GetVote(id, caller)
	if err != nil {
		return fmt.Errorf("failed to check vote record: %w", err)
	}
	if existing != nil {
		return ErrAlreadyVoted
	}

	weight, err := s.oracle.WeightOf(caller)
	if err != nil {
		return fmt.Errorf("failed to read voting power: %w", err)
	}
	if weight == 0 {
		return ErrZeroVotingPower
	}

	vote := &Vote{
		ProposalID: id,
		Voter:      caller,
		Support:    support,
		Weight:     weight,
		Reason:     reason,
		CastAt:     now,
	}
	before := proposal.TotalWeight
	if support {
		proposal.YesWeight = satAdd(proposal.YesWeight, weight)
		proposal.YesVoters++
	} else {
		proposal.NoWeight = satAdd(proposal.NoWeight, weight)
		proposal.NoVoters++
	}
	proposal.TotalWeight = satAdd(proposal.TotalWeight, weight)

	// The vote record and the tally land together or not at all, so a
	// failed write leaves the voter free to retry.
	if err := s.store.RecordVote(vote, proposal); err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}

	s.log.Info("vote cast",
		zap.Uint64("proposal_id", id),
		zap.String("voter", caller),
		zap.Bool("support", support),
		zap.Uint64("weight", weight))

	s.logQuorumCrossing(proposal, before)

	return nil
}

// logQuorumCrossing emits a one-time signal when participation crosses the
// quorum threshold. Best effort: an oracle failure here never fails the vote.
func (s *Service) logQuorumCrossing(proposal *Proposal, totalBefore uint64) {
	totalSupply, err := s.oracle.TotalWeight()
	if err != nil || totalSupply == 0 {
		return
	}
	required := mulDiv(totalSupply, s.Params().QuorumPercent, 100)
	if totalBefore < required && proposal.TotalWeight >= required {
		s.log.Info("quorum reached",
			zap.Uint64("proposal_id", proposal.ID),
			zap.Uint64("participating_weight", proposal.TotalWeight),
			zap.Uint64("quorum_required", required))
	}
}

// QueueProposal puts an expired, unexecuted proposal behind the timelock.
// Queuing is blind to the tally outcome: a doomed proposal may be queued and
// will simply fail its pass-check at execute time. The first queue time is
// authoritative and repeated calls return it unchanged.
func (s *Service) QueueProposal(caller string, id uint64) (int64, error) {
	if err := s.guard.enter(); err != nil {
		return 0, err
	}
	defer s.guard.exit()

	if err := s.access.requireNotPaused(); err != nil {
		return 0, err
	}

	proposal, err := s.store.GetProposal(id)
	if err != nil {
		return 0, fmt.Errorf("failed to get proposal: %w", err)
	}
	if proposal == nil {
		return 0, ErrProposalNotFound
	}
	if proposal.Executed {
		return 0, ErrAlreadyExecuted
	}

	now := s.clock.NowMillis()
	if now <= proposal.VotingEnd {
		return 0, ErrVotingNotEnded
	}

	queuedAt, err := s.timelock.Queue(id, now)
	if err != nil {
		return 0, err
	}

	s.log.Info("proposal queued",
		zap.Uint64("proposal_id", id),
		zap.String("caller", caller),
		zap.Int64("queued_at", queuedAt),
		zap.Int64("ready_at", ReadyAt(queuedAt, s.Params().TimelockSeconds)))

	return queuedAt, nil
}

// ExecuteProposal finalizes a proposal once its voting window has closed.
// A failed tally marks the proposal rejected without dispatching anything.
// A passed tally requires a matured timelock, then dispatches the kind's
// side effect; collaborator failures are counted and retries are bounded by
// MaxExecutionAttempts.
func (s *Service) ExecuteProposal(caller string, id uint64) error {
	if err := s.guard.enter(); err != nil {
		return err
	}
	defer s.guard.exit()

	if err := s.access.requireNotPaused(); err != nil {
		return err
	}

	proposal, err := s.store.GetProposal(id)
	if err != nil {
		return fmt.Errorf("failed to get proposal: %w", err)
	}
	if proposal == nil {
		return ErrProposalNotFound
	}
	if proposal.Executed {
		return ErrAlreadyExecuted
	}

	now := s.clock.NowMillis()
	if now <= proposal.VotingEnd {
		return ErrVotingNotEnded
	}

	params := s.Params()
	if proposal.ExecutionFailures >= params.MaxExecutionAttempts {
		return fmt.Errorf("%w: %d attempts exhausted", ErrExecutionFailed, proposal.ExecutionFailures)
	}

	totalSupply, err := s.oracle.TotalWeight()
	if err != nil {
		return fmt.Errorf("failed to read total voting power: %w", err)
	}

	result, err := Evaluate(proposal, totalSupply, params.QuorumPercent)
	if err != nil {
		return err
	}
	if result != TallyPassed {
		proposal.Executed = true
		proposal.Active = false
		proposal.Rejected = true
		if err := s.store.SaveProposal(proposal); err != nil {
			return fmt.Errorf("failed to save proposal: %w", err)
		}
		s.log.Info("proposal rejected",
			zap.Uint64("proposal_id", id),
			zap.String("result", result.String()),
			zap.Uint64("yes_weight", proposal.YesWeight),
			zap.Uint64("no_weight", proposal.NoWeight))
		return nil
	}

	queuedAt, err := s.timelock.QueuedAt(id)
	if err != nil {
		return fmt.Errorf("failed to read queue entry: %w", err)
	}
	if queuedAt == 0 {
		return ErrNotQueued
	}
	if now < ReadyAt(queuedAt, params.TimelockSeconds) {
		return ErrTimelockNotElapsed
	}

	if err := s.executor.Execute(proposal.Kind); err != nil {
		proposal.ExecutionFailures++
		if saveErr := s.store.SaveProposal(proposal); saveErr != nil {
			return fmt.Errorf("failed to record execution failure: %w", saveErr)
		}
		s.log.Warn("proposal effect failed",
			zap.Uint64("proposal_id", id),
			zap.Uint32("failures", proposal.ExecutionFailures),
			zap.Uint32("max_attempts", params.MaxExecutionAttempts),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrExecutionFailed, err)
	}

	proposal.Executed = true
	proposal.Active = false
	proposal.ExecutionFailures = 0
	if err := s.store.SaveProposal(proposal); err != nil {
		return fmt.Errorf("failed to save proposal: %w", err)
	}

	s.log.Info("proposal executed",
		zap.Uint64("proposal_id", id),
		zap.String("caller", caller),
		zap.String("kind", string(proposal.Kind.Type)))

	return nil
}

// GetProposal returns a proposal by id.
func (s *Service) GetProposal(id uint64) (*Proposal, error) {
	proposal, err := s.store.GetProposal(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	if proposal == nil {
		return nil, ErrProposalNotFound
	}
	return proposal, nil
}

// HasVoted reports whether an account has voted on a proposal.
func (s *Service) HasVoted(id uint64, voter string) (bool, error) {
	vote, err := s.store.GetVote(id, voter)
	if err != nil {
		return false, fmt.Errorf("failed to check vote record: %w", err)
	}
	return vote != nil, nil
}

// GetVote returns the recorded vote of an account on a proposal, nil when
// none exists.
func (s *Service) GetVote(id uint64, voter string) (*Vote, error) {
	return s.store.GetVote(id, voter)
}

// ListProposals returns all proposals, or only the active ones.
func (s *Service) ListProposals(activeOnly bool) ([]*Proposal, error) {
	proposals, err := s.store.ListProposals()
	if err != nil {
		return nil, err
	}
	if !activeOnly {
		return proposals, nil
	}
	active := make([]*Proposal, 0, len(proposals))
	for _, p := range proposals {
		if p.Active {
			active = append(active, p)
		}
	}
	return active, nil
}

// ListExecutableProposals returns the proposals whose timelock has matured
// and which are still awaiting execution.
func (s *Service) ListExecutableProposals() ([]*Proposal, error) {
	proposals, err := s.store.ListProposals()
	if err != nil {
		return nil, err
	}
	executable := make([]*Proposal, 0)
	for _, p := range proposals {
		status, err := s.StatusOf(p)
		if err != nil {
			return nil, err
		}
		if status == StatusMatured {
			executable = append(executable, p)
		}
	}
	return executable, nil
}

// ProposalCount returns the number of proposals ever created.
func (s *Service) ProposalCount() (uint64, error) {
	return s.store.ProposalCount()
}

// StatusOf derives the lifecycle stage of a proposal at the current time.
func (s *Service) StatusOf(p *Proposal) (ProposalStatus, error) {
	switch {
	case p.Executed && p.Rejected:
		return StatusRejected, nil
	case p.Executed:
		return StatusExecuted, nil
	case p.ExecutionFailures >= s.Params().MaxExecutionAttempts:
		return StatusFailed, nil
	}

	now := s.clock.NowMillis()
	if now <= p.VotingEnd {
		return StatusVotingOpen, nil
	}
	queuedAt, err := s.timelock.QueuedAt(p.ID)
	if err != nil {
		return "", err
	}
	if queuedAt == 0 {
		return StatusVotingClosed, nil
	}
	if now >= ReadyAt(queuedAt, s.Params().TimelockSeconds) {
		return StatusMatured, nil
	}
	return StatusQueued, nil
}

// Params returns the current governance parameters.
func (s *Service) Params() Params {
	s.paramsMu.RLock()
	defer s.paramsMu.RUnlock()
	return s.params
}

// SetParams replaces the governance parameters. Owner only.
func (s *Service) SetParams(caller string, params Params) error {
	if err := s.guard.enter(); err != nil {
		return err
	}
	defer s.guard.exit()

	if err := s.access.requireOwner(caller); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	s.paramsMu.Lock()
	s.params = params
	s.paramsMu.Unlock()
	s.log.Info("governance parameters updated", zap.String("caller", caller))
	return nil
}

// Access exposes the access controller for ownership and guardian admin.
func (s *Service) Access() *AccessController {
	return s.access
}

// EmergencyPause halts all mutating entry points. Guardians and owner only.
func (s *Service) EmergencyPause(caller string) error {
	if err := s.guard.enter(); err != nil {
		return err
	}
	defer s.guard.exit()
	return s.access.Pause(caller)
}

// EmergencyUnpause lifts the pause. Owner only.
func (s *Service) EmergencyUnpause(caller string) error {
	if err := s.guard.enter(); err != nil {
		return err
	}
	defer s.guard.exit()
	return s.access.Unpause(caller)
}

// AddGuardian adds a pause-capable guardian. Owner only.
func (s *Service) AddGuardian(caller, guardian string) error {
	if err := s.guard.enter(); err != nil {
		return err
	}
	defer s.guard.exit()
	return s.access.AddGuardian(caller, guardian)
}

// RemoveGuardian removes a guardian. Owner only.
func (s *Service) RemoveGuardian(caller, guardian string) error {
	if err := s.guard.enter(); err != nil {
		return err
	}
	defer s.guard.exit()
	return s.access.RemoveGuardian(caller, guardian)
}
