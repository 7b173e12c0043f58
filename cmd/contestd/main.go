package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Winnrdotfun/protocol/config"
	"github.com/Winnrdotfun/protocol/native/contest"
	"github.com/Winnrdotfun/protocol/native/oracle"
	"github.com/Winnrdotfun/protocol/observability/logging"
	"github.com/Winnrdotfun/protocol/rpc"
	"github.com/Winnrdotfun/protocol/state"
	"github.com/Winnrdotfun/protocol/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	hermesFlag := flag.String("hermes", "", "Hermes price endpoint (overrides config HermesEndpoint)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("CONTEST_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = cfg.Env
	}
	logger := logging.SetupWithOptions(logging.Options{
		Service: "contestd",
		Env:     env,
		File:    cfg.LogFile,
	})

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)

	endpoint := strings.TrimSpace(*hermesFlag)
	if endpoint == "" {
		endpoint = strings.TrimSpace(cfg.HermesEndpoint)
	}
	source := oracle.NewHermesSource(nil, endpoint)

	engine := contest.NewEngine()
	engine.SetState(manager)
	engine.SetOracle(source)

	if err := ensureRegistry(cfg, manager, engine, logger); err != nil {
		logger.Error("Failed to initialise contest registry", slog.Any("error", err))
		os.Exit(1)
	}

	server := rpc.NewServer(engine, manager, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// ensureRegistry initialises the registry singletons on first boot when the
// config names an admin. An already-initialised store wins over the config.
func ensureRegistry(cfg *config.Config, manager *state.Manager, engine *contest.Engine, logger *slog.Logger) error {
	if _, ok, err := manager.ConfigGet(); err != nil {
		return err
	} else if ok {
		return nil
	}
	admin, set, err := cfg.Admin()
	if err != nil {
		return err
	}
	if !set {
		logger.Warn("registry not initialised and no AdminAddress configured; waiting for contest_initRegistry")
		return nil
	}
	mint := strings.TrimSpace(cfg.Mint)
	if mint == "" {
		logger.Warn("registry not initialised and no Mint configured; waiting for contest_initRegistry")
		return nil
	}
	registry, err := engine.InitRegistry(admin, mint, cfg.FeePercent)
	if err != nil {
		return err
	}
	logger.Info("contest registry initialised", "mint", registry.Mint, "feePercent", registry.FeePercent)
	return nil
}
