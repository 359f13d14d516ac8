package governance

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized indicates the caller lacks the required role.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrReentrantCall indicates a governance entry point was re-entered
	// while another call was still executing.
	ErrReentrantCall = fmt.Errorf("%w: reentrant call", ErrUnauthorized)

	// ErrPaused indicates the contract is paused
	ErrPaused = errors.New("contract paused")

	// ErrProposalNotFound indicates the proposal was not found
	ErrProposalNotFound = errors.New("proposal not found")

	// ErrVotingClosed indicates the voting period has ended
	ErrVotingClosed = errors.New("voting period has ended")

	// ErrVotingNotEnded indicates the voting period is still open
	ErrVotingNotEnded = errors.New("voting period has not ended")

	// ErrAlreadyVoted indicates the voter already voted on this proposal
	ErrAlreadyVoted = errors.New("already voted on this proposal")

	// ErrInsufficientVotingPower indicates the proposer's stake is below
	// the proposal threshold.
	ErrInsufficientVotingPower = errors.New("insufficient voting power to propose")

	// ErrZeroVotingPower indicates the voter has no staked tokens
	ErrZeroVotingPower = errors.New("no voting power")

	// ErrAlreadyExecuted indicates the proposal reached a terminal state
	ErrAlreadyExecuted = errors.New("proposal already executed")

	// ErrInvalidQuorum indicates the total voting supply is zero
	ErrInvalidQuorum = errors.New("invalid quorum: zero total voting power")

	// ErrInvalidParameter indicates a malformed payload or out-of-range value
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotQueued indicates the proposal was never queued for execution
	ErrNotQueued = errors.New("proposal not queued")

	// ErrTimelockNotElapsed indicates the timelock has not matured
	ErrTimelockNotElapsed = errors.New("timelock has not elapsed")

	// ErrExecutionFailed indicates the side effect failed or retries are
	// exhausted.
	ErrExecutionFailed = errors.New("proposal execution failed")

	// ErrInsufficientBalance represents insufficient token balance error
	ErrInsufficientBalance = errors.New("insufficient balance")
)
