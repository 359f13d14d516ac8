package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kunal-drall/powergrid-network/pkg/api"
	"github.com/kunal-drall/powergrid-network/pkg/governance"
	"github.com/kunal-drall/powergrid-network/pkg/governance/executor"
	"github.com/kunal-drall/powergrid-network/pkg/governance/store"
	"github.com/kunal-drall/powergrid-network/pkg/gridservice"
	"github.com/kunal-drall/powergrid-network/pkg/logger"
	"github.com/kunal-drall/powergrid-network/pkg/registry"
	"github.com/kunal-drall/powergrid-network/pkg/token"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to config file")
	flag.Parse()

	viper.SetConfigFile(*configPath)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Println("Config file error:", err)
		os.Exit(1)
	}

	log, err := logger.New(viper.GetString("log.file"), viper.GetString("log.level"))
	if err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting governance node")

	owner := viper.GetString("governance.owner")
	if owner == "" {
		log.Fatal("governance.owner is required")
	}

	params := governance.DefaultParams()
	if viper.IsSet("governance.min_voting_power") {
		params.MinVotingPower = viper.GetUint64("governance.min_voting_power")
	}
	if viper.IsSet("governance.voting_period_millis") {
		params.VotingPeriodMillis = viper.GetInt64("governance.voting_period_millis")
	}
	if viper.IsSet("governance.quorum_percent") {
		params.QuorumPercent = viper.GetUint64("governance.quorum_percent")
	}
	if viper.IsSet("governance.timelock_seconds") {
		params.TimelockSeconds = viper.GetInt64("governance.timelock_seconds")
	}
	if viper.IsSet("governance.max_execution_attempts") {
		params.MaxExecutionAttempts = uint32(viper.GetUint("governance.max_execution_attempts"))
	}

	var proposalStore governance.ProposalStore
	if path := viper.GetString("leveldb.path"); path != "" {
		ldb, err := store.NewLevelDBStore(path)
		if err != nil {
			log.Fatal("failed to open proposal store", zap.Error(err))
		}
		defer ldb.Close()
		proposalStore = ldb
		log.Info("using leveldb proposal store", zap.String("path", path))
	} else {
		proposalStore = store.NewMemoryStore()
		log.Info("using in-memory proposal store")
	}

	tokens := token.NewSystem()
	accounts, err := genesisAccounts(viper.GetViper())
	if err != nil {
		log.Fatal("invalid genesis accounts", zap.Error(err))
	}
	for _, a := range accounts {
		tokens.SetBalance(a.Account, a.Amount)
	}

	devices := registry.NewRegistry(viper.GetUint64("registry.min_stake"))
	grid := gridservice.NewService(viper.GetUint64("grid.default_compensation_rate"))

	dispatcher := executor.NewDispatcher(devices, grid, tokens, log)

	gov, err := governance.NewService(owner, params, proposalStore, tokens, dispatcher, nil, log)
	if err != nil {
		log.Fatal("failed to create governance service", zap.Error(err))
	}

	server := api.NewServer(gov, tokens, viper.GetInt("server.port"), log)
	go func() {
		if err := server.Start(); err != nil {
			log.Info("api server stopped", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
}

type genesisAccount struct {
	Account string `mapstructure:"account"`
	Amount  uint64 `mapstructure:"amount"`
}

// genesisAccounts reads genesis.accounts as a list of entries. The config
// layer lower-cases map keys, so a map keyed by account id would silently
// collapse ids that differ only in case.
func genesisAccounts(v *viper.Viper) ([]genesisAccount, error) {
	var accounts []genesisAccount
	if err := v.UnmarshalKey("genesis.accounts", &accounts); err != nil {
		return nil, err
	}
	for i, a := range accounts {
		if a.Account == "" {
			return nil, fmt.Errorf("genesis account %d has an empty id", i)
		}
	}
	return accounts, nil
}
