package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/kunal-drall/powergrid-network/pkg/governance"
)

const (
	proposalPrefix = "proposal:"
	votePrefix     = "vote:"
	queuePrefix    = "queue:"
	nextIDKey      = "meta:next_id"
)

// LevelDBStore is a persistent implementation of ProposalStore backed by
// LevelDB with JSON-encoded records. The encoding is private to this
// package; callers only see governance types.
type LevelDBStore struct {
	db    *leveldb.DB
	idMux sync.Mutex
}

// NewLevelDBStore opens (or creates) a LevelDB-backed store at the given
// path.
func NewLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}
	return &LevelDBStore{db: db}, nil
}

// Close safely closes the underlying database.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

func proposalKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", proposalPrefix, id))
}

func voteDBKey(id uint64, voter string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", votePrefix, id, voter))
}

func queueKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", queuePrefix, id))
}

// SaveProposal saves a proposal.
func (s *LevelDBStore) SaveProposal(proposal *governance.Proposal) error {
	data, err := json.Marshal(proposal)
	if err != nil {
		return err
	}
	return s.db.Put(proposalKey(proposal.ID), data, nil)
}

// GetProposal retrieves a proposal by id, (nil, nil) when missing.
func (s *LevelDBStore) GetProposal(id uint64) (*governance.Proposal, error) {
	data, err := s.db.Get(proposalKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var proposal governance.Proposal
	if err := json.Unmarshal(data, &proposal); err != nil {
		return nil, err
	}
	return &proposal, nil
}

// ListProposals lists all proposals in id order. The zero-padded keys make
// the iteration order the id order.
func (s *LevelDBStore) ListProposals() ([]*governance.Proposal, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(proposalPrefix)), nil)
	defer iter.Release()

	var proposals []*governance.Proposal
	for iter.Next() {
		var proposal governance.Proposal
		if err := json.Unmarshal(iter.Value(), &proposal); err != nil {
			return nil, err
		}
		proposals = append(proposals, &proposal)
	}
	return proposals, iter.Error()
}

// ProposalCount returns the number of proposals ever created.
func (s *LevelDBStore) ProposalCount() (uint64, error) {
	s.idMux.Lock()
	defer s.idMux.Unlock()
	return s.readNextID()
}

// NextID assigns the next monotonically increasing proposal id.
func (s *LevelDBStore) NextID() (uint64, error) {
	s.idMux.Lock()
	defer s.idMux.Unlock()

	id, err := s.readNextID()
	if err != nil {
		return 0, err
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id+1)
	if err := s.db.Put([]byte(nextIDKey), buf, nil); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *LevelDBStore) readNextID() (uint64, error) {
	data, err := s.db.Get([]byte(nextIDKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt next_id record: %d bytes", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// SaveVote records a vote.
func (s *LevelDBStore) SaveVote(vote *governance.Vote) error {
	data, err := json.Marshal(vote)
	if err != nil {
		return err
	}
	return s.db.Put(voteDBKey(vote.ProposalID, vote.Voter), data, nil)
}

// RecordVote writes the vote record and the updated proposal in one batch;
// either both puts land or neither does.
func (s *LevelDBStore) RecordVote(vote *governance.Vote, proposal *governance.Proposal) error {
	voteData, err := json.Marshal(vote)
	if err != nil {
		return err
	}
	proposalData, err := json.Marshal(proposal)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Put(voteDBKey(vote.ProposalID, vote.Voter), voteData)
	batch.Put(proposalKey(proposal.ID), proposalData)
	return s.db.Write(batch, nil)
}

// GetVote retrieves a vote record, (nil, nil) when the voter has not voted.
func (s *LevelDBStore) GetVote(id uint64, voter string) (*governance.Vote, error) {
	data, err := s.db.Get(voteDBKey(id, voter), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var vote governance.Vote
	if err := json.Unmarshal(data, &vote); err != nil {
		return nil, err
	}
	return &vote, nil
}

// SaveQueueEntry records when a proposal was queued.
func (s *LevelDBStore) SaveQueueEntry(id uint64, queuedAt int64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(queuedAt))
	return s.db.Put(queueKey(id), buf, nil)
}

// GetQueueEntry returns the queue time for a proposal, zero when never
// queued.
func (s *LevelDBStore) GetQueueEntry(id uint64) (int64, error) {
	data, err := s.db.Get(queueKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupt queue record: %d bytes", len(data))
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}
