package executor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunal-drall/powergrid-network/pkg/governance"
	"github.com/kunal-drall/powergrid-network/pkg/governance/executor"
	"github.com/kunal-drall/powergrid-network/pkg/gridservice"
	"github.com/kunal-drall/powergrid-network/pkg/registry"
	"github.com/kunal-drall/powergrid-network/pkg/token"
)

func newDispatcher(t *testing.T) (*executor.Dispatcher, *registry.Registry, *gridservice.Service, *token.System) {
	t.Helper()
	devices := registry.NewRegistry(1000)
	grid := gridservice.NewService(10)
	tokens := token.NewSystem()
	return executor.NewDispatcher(devices, grid, tokens, nil), devices, grid, tokens
}

func TestDispatcher(t *testing.T) {
	t.Run("Update Min Stake", func(t *testing.T) {
		d, devices, _, _ := newDispatcher(t)
		err := d.Execute(governance.ProposalKind{
			Type:   governance.KindUpdateMinStake,
			Amount: 5000,
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(5000), devices.MinStake())
	})

	t.Run("Registry Rejects Zero Min Stake", func(t *testing.T) {
		d, devices, _, _ := newDispatcher(t)
		err := d.Execute(governance.ProposalKind{
			Type:   governance.KindUpdateMinStake,
			Amount: 0,
		})
		assert.ErrorIs(t, err, governance.ErrInvalidParameter)
		assert.Equal(t, uint64(1000), devices.MinStake())
	})

	t.Run("Update Compensation Rate", func(t *testing.T) {
		d, _, grid, _ := newDispatcher(t)
		err := d.Execute(governance.ProposalKind{
			Type:   governance.KindUpdateCompensationRate,
			Amount: 42,
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(42), grid.DefaultCompensationRate())
	})

	t.Run("Update Reputation Threshold", func(t *testing.T) {
		d, devices, _, _ := newDispatcher(t)
		err := d.Execute(governance.ProposalKind{
			Type:      governance.KindUpdateReputationThreshold,
			Threshold: 80,
		})
		require.NoError(t, err)
		assert.Equal(t, uint32(80), devices.ReputationThreshold())
	})

	t.Run("Treasury Spend Needs Funds", func(t *testing.T) {
		d, _, _, tokens := newDispatcher(t)
		err := d.Execute(governance.ProposalKind{
			Type:    governance.KindTreasurySpend,
			Account: "recipient",
			Amount:  100,
		})
		assert.ErrorIs(t, err, governance.ErrInsufficientBalance)

		tokens.SetBalance("funder", 100)
		require.NoError(t, tokens.DepositToTreasury("funder", 100))
		require.NoError(t, d.Execute(governance.ProposalKind{
			Type:    governance.KindTreasurySpend,
			Account: "recipient",
			Amount:  100,
		}))
		assert.Equal(t, uint64(100), tokens.BalanceOf("recipient"))
	})

	t.Run("Role Toggles", func(t *testing.T) {
		d, devices, grid, tokens := newDispatcher(t)

		require.NoError(t, d.Execute(governance.ProposalKind{
			Type: governance.KindSetTokenMinter, Account: "minter", Enabled: true,
		}))
		assert.True(t, tokens.IsMinter("minter"))

		require.NoError(t, d.Execute(governance.ProposalKind{
			Type: governance.KindSetRegistryAuthorizedCaller, Account: "svc", Enabled: true,
		}))
		assert.True(t, devices.IsAuthorizedCaller("svc"))

		require.NoError(t, d.Execute(governance.ProposalKind{
			Type: governance.KindSetGridAuthorizedCaller, Account: "svc", Enabled: true,
		}))
		assert.True(t, grid.IsAuthorizedCaller("svc"))

		require.NoError(t, d.Execute(governance.ProposalKind{
			Type: governance.KindSetTokenMinter, Account: "minter", Enabled: false,
		}))
		assert.False(t, tokens.IsMinter("minter"))
	})

	t.Run("Informational Kinds Always Succeed", func(t *testing.T) {
		d, _, _, _ := newDispatcher(t)
		assert.NoError(t, d.Execute(governance.ProposalKind{Type: governance.KindSystemUpgrade}))
		assert.NoError(t, d.Execute(governance.ProposalKind{Type: governance.KindOther, Note: "hello"}))
	})

	t.Run("Unknown Kind Fails", func(t *testing.T) {
		d, _, _, _ := newDispatcher(t)
		assert.Error(t, d.Execute(governance.ProposalKind{Type: "bogus"}))
	})
}
