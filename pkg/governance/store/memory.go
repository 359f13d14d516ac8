package store

import (
	"sort"
	"sync"

	"github.com/kunal-drall/powergrid-network/pkg/governance"
)

type voteKey struct {
	proposalID uint64
	voter      string
}

// MemoryStore is an in-memory implementation of ProposalStore. All reads
// return copies so no caller holds a mutable alias into the store.
type MemoryStore struct {
	mutex     sync.RWMutex
	proposals map[uint64]*governance.Proposal
	votes     map[voteKey]*governance.Vote
	queue     map[uint64]int64
	nextID    uint64
}

// NewMemoryStore creates a new memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		proposals: make(map[uint64]*governance.Proposal),
		votes:     make(map[voteKey]*governance.Vote),
		queue:     make(map[uint64]int64),
	}
}

// SaveProposal saves a proposal to the store.
func (s *MemoryStore) SaveProposal(proposal *governance.Proposal) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	copy := *proposal
	s.proposals[proposal.ID] = &copy
	return nil
}

// GetProposal retrieves a proposal by id, (nil, nil) when missing.
func (s *MemoryStore) GetProposal(id uint64) (*governance.Proposal, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if proposal, exists := s.proposals[id]; exists {
		copy := *proposal
		return &copy, nil
	}
	return nil, nil
}

// ListProposals lists all proposals in id order.
func (s *MemoryStore) ListProposals() ([]*governance.Proposal, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	proposals := make([]*governance.Proposal, 0, len(s.proposals))
	for _, proposal := range s.proposals {
		copy := *proposal
		proposals = append(proposals, &copy)
	}
	sort.Slice(proposals, func(i, j int) bool { return proposals[i].ID < proposals[j].ID })
	return proposals, nil
}

// ProposalCount returns the number of proposals ever created.
func (s *MemoryStore) ProposalCount() (uint64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.nextID, nil
}

// NextID assigns the next monotonically increasing proposal id.
func (s *MemoryStore) NextID() (uint64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id := s.nextID
	s.nextID++
	return id, nil
}

// SaveVote records a vote.
func (s *MemoryStore) SaveVote(vote *governance.Vote) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	copy := *vote
	s.votes[voteKey{vote.ProposalID, vote.Voter}] = &copy
	return nil
}

// RecordVote stores a vote and the proposal's updated tallies under a
// single lock scope so neither record is ever visible without the other.
func (s *MemoryStore) RecordVote(vote *governance.Vote, proposal *governance.Proposal) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	voteCopy := *vote
	proposalCopy := *proposal
	s.votes[voteKey{vote.ProposalID, vote.Voter}] = &voteCopy
	s.proposals[proposal.ID] = &proposalCopy
	return nil
}

// GetVote retrieves a vote record, (nil, nil) when the voter has not voted.
func (s *MemoryStore) GetVote(id uint64, voter string) (*governance.Vote, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if vote, exists := s.votes[voteKey{id, voter}]; exists {
		copy := *vote
		return &copy, nil
	}
	return nil, nil
}

// SaveQueueEntry records when a proposal was queued.
func (s *MemoryStore) SaveQueueEntry(id uint64, queuedAt int64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.queue[id] = queuedAt
	return nil
}

// GetQueueEntry returns the queue time for a proposal, zero when never
// queued.
func (s *MemoryStore) GetQueueEntry(id uint64) (int64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.queue[id], nil
}
