package executor

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kunal-drall/powergrid-network/pkg/governance"
)

// Dispatcher implements the governance.ProposalExecutor interface. Each
// proposal kind maps to one effect against an external collaborator; a
// collaborator failure is returned to the service, never panics, and the
// service owns the retry accounting.
type Dispatcher struct {
	registry governance.Registry
	grid     governance.GridService
	treasury governance.Treasury
	log      *zap.Logger
}

// NewDispatcher creates a dispatcher over the given collaborators.
func NewDispatcher(
	registry governance.Registry,
	grid governance.GridService,
	treasury governance.Treasury,
	log *zap.Logger,
) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		registry: registry,
		grid:     grid,
		treasury: treasury,
		log:      log,
	}
}

// Execute dispatches the side effect for a proposal kind.
func (d *Dispatcher) Execute(kind governance.ProposalKind) error {
	switch kind.Type {
	case governance.KindUpdateMinStake:
		if err := d.registry.UpdateMinStake(kind.Amount); err != nil {
			return fmt.Errorf("registry min stake update: %w", err)
		}
		d.log.Info("min stake updated", zap.Uint64("value", kind.Amount))
		return nil

	case governance.KindUpdateCompensationRate:
		if err := d.grid.UpdateDefaultCompensationRate(kind.Amount); err != nil {
			return fmt.Errorf("grid compensation rate update: %w", err)
		}
		d.log.Info("compensation rate updated", zap.Uint64("value", kind.Amount))
		return nil

	case governance.KindUpdateReputationThreshold:
		if err := d.registry.UpdateReputationThreshold(kind.Threshold); err != nil {
			return fmt.Errorf("registry reputation threshold update: %w", err)
		}
		d.log.Info("reputation threshold updated", zap.Uint32("value", kind.Threshold))
		return nil

	case governance.KindTreasurySpend:
		if err := d.treasury.Transfer(kind.Account, kind.Amount); err != nil {
			return fmt.Errorf("treasury transfer: %w", err)
		}
		d.log.Info("treasury spend executed",
			zap.String("recipient", kind.Account),
			zap.Uint64("amount", kind.Amount))
		return nil

	case governance.KindSetTokenMinter:
		if err := d.treasury.SetMinter(kind.Account, kind.Enabled); err != nil {
			return fmt.Errorf("token minter role: %w", err)
		}
		d.log.Info("token minter role set",
			zap.String("account", kind.Account),
			zap.Bool("enabled", kind.Enabled))
		return nil

	case governance.KindSetRegistryAuthorizedCaller:
		if err := d.registry.SetAuthorizedCaller(kind.Account, kind.Enabled); err != nil {
			return fmt.Errorf("registry authorized caller: %w", err)
		}
		d.log.Info("registry authorized caller set",
			zap.String("account", kind.Account),
			zap.Bool("enabled", kind.Enabled))
		return nil

	case governance.KindSetGridAuthorizedCaller:
		if err := d.grid.SetAuthorizedCaller(kind.Account, kind.Enabled); err != nil {
			return fmt.Errorf("grid authorized caller: %w", err)
		}
		d.log.Info("grid authorized caller set",
			zap.String("account", kind.Account),
			zap.Bool("enabled", kind.Enabled))
		return nil

	case governance.KindSystemUpgrade, governance.KindOther:
		// Informational kinds carry no external effect.
		d.log.Info("informational proposal executed", zap.String("kind", string(kind.Type)))
		return nil

	default:
		return fmt.Errorf("unknown proposal kind: %s", kind.Type)
	}
}
