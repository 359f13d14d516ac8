package governance_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunal-drall/powergrid-network/pkg/governance"
	"github.com/kunal-drall/powergrid-network/pkg/governance/executor"
	"github.com/kunal-drall/powergrid-network/pkg/governance/store"
	"github.com/kunal-drall/powergrid-network/pkg/gridservice"
	"github.com/kunal-drall/powergrid-network/pkg/registry"
	"github.com/kunal-drall/powergrid-network/pkg/token"
)

type fakeClock struct {
	now int64
}

func (c *fakeClock) NowMillis() int64 { return c.now }

func (c *fakeClock) advance(millis int64) { c.now += millis }

type mockOracle struct {
	weights map[string]uint64
	total   uint64
}

func (m *mockOracle) WeightOf(account string) (uint64, error) { return m.weights[account], nil }

func (m *mockOracle) TotalWeight() (uint64, error) { return m.total, nil }

type mockExecutor struct {
	err       error
	calls     int
	onExecute func(governance.ProposalKind) error
}

func (m *mockExecutor) Execute(kind governance.ProposalKind) error {
	m.calls++
	if m.onExecute != nil {
		return m.onExecute(kind)
	}
	return m.err
}

func testParams() governance.Params {
	return governance.Params{
		MinVotingPower:       10,
		VotingPeriodMillis:   1000,
		QuorumPercent:        25,
		TimelockSeconds:      60,
		MaxExecutionAttempts: 3,
	}
}

type fixture struct {
	service  *governance.Service
	clock    *fakeClock
	oracle   *mockOracle
	executor *mockExecutor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: 1_000_000}
	oracle := &mockOracle{
		weights: map[string]uint64{
			"proposer": 100,
			"alice":    300,
			"bob":      50,
		},
		total: 1000,
	}
	exec := &mockExecutor{}
	service, err := governance.NewService(
		"owner", testParams(), store.NewMemoryStore(), oracle, exec, clock, nil)
	require.NoError(t, err)
	return &fixture{service: service, clock: clock, oracle: oracle, executor: exec}
}

func minStakeKind(amount uint64) governance.ProposalKind {
	return governance.ProposalKind{Type: governance.KindUpdateMinStake, Amount: amount}
}

func TestCreateProposal(t *testing.T) {
	t.Run("Assigns Monotonic Ids", func(t *testing.T) {
		f := newFixture(t)

		first, err := f.service.CreateProposal("proposer", minStakeKind(2000), "raise min stake")
		require.NoError(t, err)
		second, err := f.service.CreateProposal("proposer", minStakeKind(3000), "raise again")
		require.NoError(t, err)

		assert.Equal(t, uint64(0), first)
		assert.Equal(t, uint64(1), second)

		proposal, err := f.service.GetProposal(first)
		require.NoError(t, err)
		assert.Equal(t, "proposer", proposal.Proposer)
		assert.True(t, proposal.Active)
		assert.False(t, proposal.Executed)
		assert.Equal(t, f.clock.now+1000, proposal.VotingEnd)
	})

	t.Run("Rejects Insufficient Voting Power", func(t *testing.T) {
		f := newFixture(t)
		f.oracle.weights["weak"] = 9

		_, err := f.service.CreateProposal("weak", minStakeKind(2000), "nope")
		assert.ErrorIs(t, err, governance.ErrInsufficientVotingPower)
	})

	t.Run("Rejects Bad Descriptions", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.CreateProposal("proposer", minStakeKind(2000), "")
		assert.ErrorIs(t, err, governance.ErrInvalidParameter)

		long := make([]byte, governance.MaxDescriptionLen+1)
		for i := range long {
			long[i] = 'x'
		}
		_, err = f.service.CreateProposal("proposer", minStakeKind(2000), string(long))
		assert.ErrorIs(t, err, governance.ErrInvalidParameter)
	})

	t.Run("Rejects Malformed Payloads", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.CreateProposal("proposer", minStakeKind(0), "zero stake")
		assert.ErrorIs(t, err, governance.ErrInvalidParameter)

		_, err = f.service.CreateProposal("proposer", governance.ProposalKind{
			Type:      governance.KindUpdateReputationThreshold,
			Threshold: 101,
		}, "out of range")
		assert.ErrorIs(t, err, governance.ErrInvalidParameter)

		_, err = f.service.CreateProposal("proposer", governance.ProposalKind{
			Type:   governance.KindTreasurySpend,
			Amount: 500,
		}, "missing recipient")
		assert.ErrorIs(t, err, governance.ErrInvalidParameter)

		_, err = f.service.CreateProposal("proposer", governance.ProposalKind{
			Type: "bogus",
		}, "unknown kind")
		assert.ErrorIs(t, err, governance.ErrInvalidParameter)
	})
}

func TestVote(t *testing.T) {
	t.Run("Maintains Weight Invariant", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.service.CreateProposal("proposer", minStakeKind(2000), "raise min stake")
		require.NoError(t, err)

		require.NoError(t, f.service.Vote("alice", id, true, "in favor"))
		require.NoError(t, f.service.Vote("bob", id, false, ""))

		proposal, err := f.service.GetProposal(id)
		require.NoError(t, err)
		assert.Equal(t, uint64(300), proposal.YesWeight)
		assert.Equal(t, uint64(50), proposal.NoWeight)
		assert.Equal(t, proposal.YesWeight+proposal.NoWeight, proposal.TotalWeight)
		assert.Equal(t, uint32(1), proposal.YesVoters)
		assert.Equal(t, uint32(1), proposal.NoVoters)
	})

	t.Run("Weight Is Frozen At Cast Time", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.service.CreateProposal("proposer", minStakeKind(2000), "raise min stake")
		require.NoError(t, err)

		require.NoError(t, f.service.Vote("alice", id, true, ""))
		f.oracle.weights["alice"] = 1 // balance change after voting

		proposal, err := f.service.GetProposal(id)
		require.NoError(t, err)
		assert.Equal(t, uint64(300), proposal.YesWeight)

		vote, err := f.service.GetVote(id, "alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(300), vote.Weight)
	})

	t.Run("At Most One Vote Per Voter", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.service.CreateProposal("proposer", minStakeKind(2000), "raise min stake")
		require.NoError(t, err)

		require.NoError(t, f.service.Vote("alice", id, true, ""))
		assert.ErrorIs(t, f.service.Vote("alice", id, true, ""), governance.ErrAlreadyVoted)
		assert.ErrorIs(t, f.service.Vote("alice", id, false, ""), governance.ErrAlreadyVoted)

		voted, err := f.service.HasVoted(id, "alice")
		require.NoError(t, err)
		assert.True(t, voted)
	})

	t.Run("Rejects After Deadline", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.service.CreateProposal("proposer", minStakeKind(2000), "raise min stake")
		require.NoError(t, err)

		f.clock.advance(1001)
		assert.ErrorIs(t, f.service.Vote("alice", id, true, ""), governance.ErrVotingClosed)
	})

	t.Run("Rejects Zero Weight", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.service.CreateProposal("proposer", minStakeKind(2000), "raise min stake")
		require.NoError(t, err)

		assert.ErrorIs(t, f.service.Vote("nobody", id, true, ""), governance.ErrZeroVotingPower)
	})

	t.Run("Unknown Proposal", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.service.Vote("alice", 99, true, ""), governance.ErrProposalNotFound)
	})

	t.Run("Failed Write Leaves Voter Able To Retry", func(t *testing.T) {
		flaky := &flakyVoteStore{ProposalStore: store.NewMemoryStore(), failures: 1}
		clock := &fakeClock{now: 1_000_000}
		oracle := &mockOracle{weights: map[string]uint64{"proposer": 100, "alice": 300}, total: 1000}
		service, err := governance.NewService(
			"owner", testParams(), flaky, oracle, &mockExecutor{}, clock, nil)
		require.NoError(t, err)

		id, err := service.CreateProposal("proposer", minStakeKind(2000), "raise min stake")
		require.NoError(t, err)

		require.Error(t, service.Vote("alice", id, true, ""))

		// The vote must not be half-recorded: no vote record, no tally.
		voted, err := service.HasVoted(id, "alice")
		require.NoError(t, err)
		assert.False(t, voted)

		proposal, err := service.GetProposal(id)
		require.NoError(t, err)
		assert.Zero(t, proposal.YesWeight)
		assert.Zero(t, proposal.TotalWeight)

		require.NoError(t, service.Vote("alice", id, true, ""))

		proposal, err = service.GetProposal(id)
		require.NoError(t, err)
		assert.Equal(t, uint64(300), proposal.YesWeight)
		assert.Equal(t, uint32(1), proposal.YesVoters)
	})
}

// flakyVoteStore fails the first RecordVote calls to simulate a write error
// in the underlying storage.
type flakyVoteStore struct {
	governance.ProposalStore
	failures int
}

func (s *flakyVoteStore) RecordVote(vote *governance.Vote, proposal *governance.Proposal) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("write failed")
	}
	return s.ProposalStore.RecordVote(vote, proposal)
}

func TestQueueProposal(t *testing.T) {
	t.Run("Rejects While Voting Open", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.service.CreateProposal("proposer", minStakeKind(2000), "raise min stake")
		require.NoError(t, err)

		_, err = f.service.QueueProposal("anyone", id)
		assert.ErrorIs(t, err, governance.ErrVotingNotEnded)
	})

	t.Run("Idempotent Queue Time", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.service.CreateProposal("proposer", minStakeKind(2000), "raise min stake")
		require.NoError(t, err)

		f.clock.advance(1001)
		first, err := f.service.QueueProposal("anyone", id)
		require.NoError(t, err)

		f.clock.advance(30_000)
		second, err := f.service.QueueProposal("anyone", id)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("Queue Is Blind To The Tally", func(t *testing.T) {
		// No votes at all: doomed to fail quorum, still queueable.
		f := newFixture(t)
		id, err := f.service.CreateProposal("proposer", minStakeKind(2000), "raise min stake")
		require.NoError(t, err)

		f.clock.advance(1001)
		_, err = f.service.QueueProposal("anyone", id)
		assert.NoError(t, err)
	})
}

func TestExecuteProposal(t *testing.T) {
	setupPassing := func(t *testing.T, f *fixture) uint64 {
		t.Helper()
		id, err := f.service.CreateProposal("proposer", minStakeKind(2000), "raise min stake")
		require.NoError(t, err)
		require.NoError(t, f.service.Vote("alice", id, true, ""))
		return id
	}

	t.Run("Rejects While Voting Open Without Mutation", func(t *testing.T) {
		f := newFixture(t)
		id := setupPassing(t, f)

		assert.ErrorIs(t, f.service.ExecuteProposal("anyone", id), governance.ErrVotingNotEnded)

		proposal, err := f.service.GetProposal(id)
		require.NoError(t, err)
		assert.False(t, proposal.Executed)
		assert.True(t, proposal.Active)
		assert.Equal(t, uint32(0), proposal.ExecutionFailures)
		assert.Equal(t, 0, f.executor.calls)
	})

	t.Run("Failed Quorum Marks Rejected Without Dispatch", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.service.CreateProposal("proposer", minStakeKind(2000), "raise min stake")
		require.NoError(t, err)
		// bob alone: 50 < 250 required.
		require.NoError(t, f.service.Vote("bob", id, true, ""))

		f.clock.advance(1001)
		require.NoError(t, f.service.ExecuteProposal("anyone", id))

		proposal, err := f.service.GetProposal(id)
		require.NoError(t, err)
		assert.True(t, proposal.Executed)
		assert.False(t, proposal.Active)
		assert.True(t, proposal.Rejected)
		assert.Equal(t, 0, f.executor.calls)

		status, err := f.service.StatusOf(proposal)
		require.NoError(t, err)
		assert.Equal(t, governance.StatusRejected, status)
	})

	t.Run("Passed But Never Queued", func(t *testing.T) {
		f := newFixture(t)
		id := setupPassing(t, f)

		f.clock.advance(1001)
		assert.ErrorIs(t, f.service.ExecuteProposal("anyone", id), governance.ErrNotQueued)
	})

	t.Run("Timelock Must Elapse", func(t *testing.T) {
		f := newFixture(t)
		id := setupPassing(t, f)

		f.clock.advance(1001)
		_, err := f.service.QueueProposal("anyone", id)
		require.NoError(t, err)

		f.clock.advance(59_999)
		assert.ErrorIs(t, f.service.ExecuteProposal("anyone", id), governance.ErrTimelockNotElapsed)

		f.clock.advance(1)
		require.NoError(t, f.service.ExecuteProposal("anyone", id))

		proposal, err := f.service.GetProposal(id)
		require.NoError(t, err)
		assert.True(t, proposal.Executed)
		assert.False(t, proposal.Active)
		assert.Equal(t, 1, f.executor.calls)

		assert.ErrorIs(t, f.service.ExecuteProposal("anyone", id), governance.ErrAlreadyExecuted)
	})

	t.Run("Bounded Retries Then Permanent Failure", func(t *testing.T) {
		f := newFixture(t)
		f.executor.err = errors.New("collaborator unreachable")
		id := setupPassing(t, f)

		f.clock.advance(1001)
		_, err := f.service.QueueProposal("anyone", id)
		require.NoError(t, err)
		f.clock.advance(60_000)

		for i := 0; i < 3; i++ {
			assert.ErrorIs(t, f.service.ExecuteProposal("anyone", id), governance.ErrExecutionFailed)
		}
		assert.Equal(t, 3, f.executor.calls)

		// Fourth call fails without dispatching again.
		assert.ErrorIs(t, f.service.ExecuteProposal("anyone", id), governance.ErrExecutionFailed)
		assert.Equal(t, 3, f.executor.calls)

		proposal, err := f.service.GetProposal(id)
		require.NoError(t, err)
		assert.True(t, proposal.Active)
		assert.False(t, proposal.Executed)
		assert.Equal(t, uint32(3), proposal.ExecutionFailures)

		status, err := f.service.StatusOf(proposal)
		require.NoError(t, err)
		assert.Equal(t, governance.StatusFailed, status)
	})

	t.Run("Transient Failure Then Success Clears Counter", func(t *testing.T) {
		f := newFixture(t)
		f.executor.err = errors.New("transient")
		id := setupPassing(t, f)

		f.clock.advance(1001)
		_, err := f.service.QueueProposal("anyone", id)
		require.NoError(t, err)
		f.clock.advance(60_000)

		assert.ErrorIs(t, f.service.ExecuteProposal("anyone", id), governance.ErrExecutionFailed)

		f.executor.err = nil
		require.NoError(t, f.service.ExecuteProposal("anyone", id))

		proposal, err := f.service.GetProposal(id)
		require.NoError(t, err)
		assert.True(t, proposal.Executed)
		assert.Equal(t, uint32(0), proposal.ExecutionFailures)
	})
}

func TestListExecutableProposals(t *testing.T) {
	f := newFixture(t)

	matured, err := f.service.CreateProposal("proposer", minStakeKind(2000), "will mature")
	require.NoError(t, err)
	require.NoError(t, f.service.Vote("alice", matured, true, ""))

	unqueued, err := f.service.CreateProposal("proposer", minStakeKind(3000), "never queued")
	require.NoError(t, err)
	require.NoError(t, f.service.Vote("alice", unqueued, true, ""))

	f.clock.advance(1001)
	_, err = f.service.QueueProposal("anyone", matured)
	require.NoError(t, err)

	// Queued, but the timelock is still running.
	executable, err := f.service.ListExecutableProposals()
	require.NoError(t, err)
	assert.Empty(t, executable)

	f.clock.advance(60_000)
	executable, err = f.service.ListExecutableProposals()
	require.NoError(t, err)
	require.Len(t, executable, 1)
	assert.Equal(t, matured, executable[0].ID)

	require.NoError(t, f.service.ExecuteProposal("anyone", matured))
	executable, err = f.service.ListExecutableProposals()
	require.NoError(t, err)
	assert.Empty(t, executable)
}

func TestReentrancyGuard(t *testing.T) {
	f := newFixture(t)
	id, err := f.service.CreateProposal("proposer", minStakeKind(2000), "raise min stake")
	require.NoError(t, err)
	require.NoError(t, f.service.Vote("alice", id, true, ""))

	f.clock.advance(1001)
	_, err = f.service.QueueProposal("anyone", id)
	require.NoError(t, err)
	f.clock.advance(60_000)

	// A malicious collaborator calls back into the engine mid-dispatch.
	var nestedErr error
	f.executor.onExecute = func(governance.ProposalKind) error {
		nestedErr = f.service.Vote("bob", id, false, "sneaky")
		return nil
	}

	require.NoError(t, f.service.ExecuteProposal("anyone", id))
	assert.ErrorIs(t, nestedErr, governance.ErrUnauthorized)

	proposal, err := f.service.GetProposal(id)
	require.NoError(t, err)
	assert.True(t, proposal.Executed)
	assert.Equal(t, uint64(0), proposal.NoWeight)

	// The outer call cleared its own flag: the engine still works.
	_, err = f.service.CreateProposal("proposer", minStakeKind(7000), "after reentrancy")
	assert.NoError(t, err)
}

func TestPauseGatesEntryPoints(t *testing.T) {
	f := newFixture(t)
	id, err := f.service.CreateProposal("proposer", minStakeKind(2000), "raise min stake")
	require.NoError(t, err)

	require.NoError(t, f.service.EmergencyPause("owner"))

	_, err = f.service.CreateProposal("proposer", minStakeKind(3000), "while paused")
	assert.ErrorIs(t, err, governance.ErrPaused)
	assert.ErrorIs(t, f.service.Vote("alice", id, true, ""), governance.ErrPaused)
	_, err = f.service.QueueProposal("anyone", id)
	assert.ErrorIs(t, err, governance.ErrPaused)
	assert.ErrorIs(t, f.service.ExecuteProposal("anyone", id), governance.ErrPaused)

	// Reads still work while paused.
	_, err = f.service.GetProposal(id)
	assert.NoError(t, err)

	require.NoError(t, f.service.EmergencyUnpause("owner"))
	assert.NoError(t, f.service.Vote("alice", id, true, ""))
}

func TestSetParams(t *testing.T) {
	f := newFixture(t)

	params := testParams()
	params.QuorumPercent = 50
	assert.ErrorIs(t, f.service.SetParams("stranger", params), governance.ErrUnauthorized)

	require.NoError(t, f.service.SetParams("owner", params))
	assert.Equal(t, uint64(50), f.service.Params().QuorumPercent)

	params.QuorumPercent = 101
	assert.ErrorIs(t, f.service.SetParams("owner", params), governance.ErrInvalidParameter)
}

// stakedFixture wires the engine to the real token/registry/grid
// collaborators through the dispatcher, with 1000 total staked weight.
type stakedFixture struct {
	service  *governance.Service
	clock    *fakeClock
	tokens   *token.System
	registry *registry.Registry
	grid     *gridservice.Service
}

func newStakedFixture(t *testing.T, stakes map[string]uint64) *stakedFixture {
	t.Helper()
	tokens := token.NewSystem()
	for account, amount := range stakes {
		tokens.SetBalance(account, amount)
		require.NoError(t, tokens.Stake(account, amount))
	}
	tokens.SetBalance("funder", 500)
	require.NoError(t, tokens.DepositToTreasury("funder", 500))

	devices := registry.NewRegistry(1000)
	grid := gridservice.NewService(10)
	dispatcher := executor.NewDispatcher(devices, grid, tokens, nil)

	clock := &fakeClock{now: 1_000_000}
	service, err := governance.NewService(
		"owner", testParams(), store.NewMemoryStore(), tokens, dispatcher, clock, nil)
	require.NoError(t, err)

	return &stakedFixture{
		service:  service,
		clock:    clock,
		tokens:   tokens,
		registry: devices,
		grid:     grid,
	}
}

func TestTreasurySpendScenarios(t *testing.T) {
	spendKind := governance.ProposalKind{
		Type:    governance.KindTreasurySpend,
		Account: "recipient",
		Amount:  500,
	}

	t.Run("Supermajority Spend Transfers Funds", func(t *testing.T) {
		f := newStakedFixture(t, map[string]uint64{
			"proposer": 100,
			"v1":       100, "v2": 100, "v3": 100,
			"opponent": 50,
			"idle":     550,
		})

		id, err := f.service.CreateProposal("proposer", spendKind, "payout")
		require.NoError(t, err)

		// yes=300, no=50: participating 350 >= 250 quorum, 300 > 231.
		require.NoError(t, f.service.Vote("v1", id, true, ""))
		require.NoError(t, f.service.Vote("v2", id, true, ""))
		require.NoError(t, f.service.Vote("v3", id, true, ""))
		require.NoError(t, f.service.Vote("opponent", id, false, ""))

		f.clock.advance(1001)
		_, err = f.service.QueueProposal("anyone", id)
		require.NoError(t, err)
		f.clock.advance(60_000)
		require.NoError(t, f.service.ExecuteProposal("anyone", id))

		assert.Equal(t, uint64(500), f.tokens.BalanceOf("recipient"))
		assert.Equal(t, uint64(0), f.tokens.Balance())

		proposal, err := f.service.GetProposal(id)
		require.NoError(t, err)
		assert.True(t, proposal.Executed)
		assert.False(t, proposal.Active)
	})

	t.Run("Simple Majority Is Not Enough For A Spend", func(t *testing.T) {
		f := newStakedFixture(t, map[string]uint64{
			"proposer": 100,
			"v1":       100, "v2": 100,
			"opponent": 150,
			"idle":     550,
		})

		id, err := f.service.CreateProposal("proposer", spendKind, "payout")
		require.NoError(t, err)

		// yes=200, no=150: quorum met but 200 <= 231 supermajority line.
		require.NoError(t, f.service.Vote("v1", id, true, ""))
		require.NoError(t, f.service.Vote("v2", id, true, ""))
		require.NoError(t, f.service.Vote("opponent", id, false, ""))

		f.clock.advance(1001)
		_, err = f.service.QueueProposal("anyone", id)
		require.NoError(t, err)
		f.clock.advance(60_000)
		require.NoError(t, f.service.ExecuteProposal("anyone", id))

		assert.Equal(t, uint64(0), f.tokens.BalanceOf("recipient"))
		assert.Equal(t, uint64(500), f.tokens.Balance())

		proposal, err := f.service.GetProposal(id)
		require.NoError(t, err)
		assert.True(t, proposal.Rejected)
	})
}

func TestMinStakeRoundTrip(t *testing.T) {
	f := newStakedFixture(t, map[string]uint64{
		"proposer": 100,
		"v1":       150, "v2": 150,
		"idle": 600,
	})

	id, err := f.service.CreateProposal("proposer", minStakeKind(5000), "raise min stake to 5000")
	require.NoError(t, err)

	require.NoError(t, f.service.Vote("v1", id, true, ""))
	require.NoError(t, f.service.Vote("v2", id, true, ""))

	f.clock.advance(1001)
	_, err = f.service.QueueProposal("anyone", id)
	require.NoError(t, err)
	f.clock.advance(60_000)
	require.NoError(t, f.service.ExecuteProposal("anyone", id))

	assert.Equal(t, uint64(5000), f.registry.MinStake())
}
