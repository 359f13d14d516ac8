package governance

import "fmt"

// TimelockScheduler records when a proposal was queued and computes the
// earliest time it may execute. The first queue time is authoritative:
// re-queuing never resets the countdown.
type TimelockScheduler struct {
	store ProposalStore
}

// NewTimelockScheduler creates a scheduler over the given store.
func NewTimelockScheduler(store ProposalStore) *TimelockScheduler {
	return &TimelockScheduler{store: store}
}

// Queue records queuedAt for the proposal exactly once and returns the
// authoritative queue time. Eligibility (voting closed, not executed) is
// checked by the caller; the tally outcome is deliberately not.
func (t *TimelockScheduler) Queue(id uint64, now int64) (int64, error) {
	queuedAt, err := t.store.GetQueueEntry(id)
	if err != nil {
		return 0, fmt.Errorf("failed to read queue entry: %w", err)
	}
	if queuedAt != 0 {
		return queuedAt, nil
	}
	if err := t.store.SaveQueueEntry(id, now); err != nil {
		return 0, fmt.Errorf("failed to save queue entry: %w", err)
	}
	return now, nil
}

// QueuedAt returns the recorded queue time, zero when never queued.
func (t *TimelockScheduler) QueuedAt(id uint64) (int64, error) {
	return t.store.GetQueueEntry(id)
}

// ReadyAt converts the timelock duration to milliseconds and returns the
// earliest execution time for the given queue time.
func ReadyAt(queuedAt, timelockSeconds int64) int64 {
	return queuedAt + timelockSeconds*1000
}

// IsMature reports whether the proposal's timelock has elapsed. A proposal
// that was never queued is not mature.
func (t *TimelockScheduler) IsMature(id uint64, timelockSeconds, now int64) (bool, error) {
	queuedAt, err := t.store.GetQueueEntry(id)
	if err != nil {
		return false, err
	}
	if queuedAt == 0 {
		return false, nil
	}
	return now >= ReadyAt(queuedAt, timelockSeconds), nil
}
