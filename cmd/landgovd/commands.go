package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cadastrelabs/landgov/api"
	"github.com/cadastrelabs/landgov/config"
	"github.com/cadastrelabs/landgov/contentstore"
	"github.com/cadastrelabs/landgov/db"
	"github.com/cadastrelabs/landgov/governance"
	"github.com/cadastrelabs/landgov/ledger/evm"
	"github.com/cadastrelabs/landgov/logger"
	"github.com/cadastrelabs/landgov/notify"
	"github.com/cadastrelabs/landgov/store"
)

const flagHome = "home"

// Version information, set at build time via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".landgov"
	}
	return filepath.Join(home, ".landgov")
}

func InitRootCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(versionCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file to the node home",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, _ := cmd.Flags().GetString(flagHome)
			cfg, err := config.Default()
			if err != nil {
				return err
			}
			cfg.NodeHome = home
			if err := config.Save(cfg, home); err != nil {
				return err
			}
			fmt.Printf("Wrote default configuration under %s\n", home)
			return nil
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the governance engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, _ := cmd.Flags().GetString(flagHome)
			return runNode(home)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print landgovd version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Version: %s\n", Version)
			fmt.Printf("Commit:  %s\n", Commit)
		},
	}
}

func runNode(home string) error {
	// Local overrides for development; missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(home)
	if err != nil {
		return errors.Wrapf(err, "failed to load configuration from %s (run 'landgovd init' first)", home)
	}
	applyEnvOverrides(cfg)

	log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.LogSampler)
	log.Info().Str("version", Version).Str("home", home).Msg("starting landgovd")

	database, err := db.OpenFileDB(filepath.Join(home, "data"), "governance.db", true)
	if err != nil {
		return errors.Wrap(err, "failed to open governance database")
	}
	defer database.Close()

	proposals := store.NewProposalStore(database.Client(), log)

	gateway, err := evm.NewGateway(evm.Config{
		RPCURL:            cfg.Ledger.RPCURL,
		ChainID:           cfg.Ledger.ChainID,
		GovernorAddress:   cfg.Ledger.GovernorAddress,
		VotesTokenAddress: cfg.Ledger.VotesTokenAddress,
		OperatorKeyHex:    cfg.Ledger.OperatorKeyHex,
		PollInterval:      time.Duration(cfg.Ledger.ConfirmPollSeconds) * time.Second,
		Logger:            log,
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize ledger gateway")
	}

	publisher := contentstore.NewHTTPPublisher(
		cfg.ContentStore.APIURL,
		time.Duration(cfg.ContentStore.TimeoutSeconds)*time.Second,
		log,
	)

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.NotifyWebhookURL, 10*time.Second, log)
	}

	quorum, ok := sdkmath.NewIntFromString(cfg.Governance.QuorumRequired)
	if !ok {
		return errors.Errorf("invalid default quorum %q", cfg.Governance.QuorumRequired)
	}

	controller := governance.NewController(governance.ControllerConfig{
		Store:     proposals,
		Gateway:   gateway,
		Publisher: publisher,
		Notifier:  notifier,
		Defaults: governance.Defaults{
			VotingPeriod:     time.Duration(cfg.Governance.VotingPeriodSeconds) * time.Second,
			TimelockDelay:    time.Duration(cfg.Governance.TimelockDelaySeconds) * time.Second,
			QuorumRequired:   quorum,
			ThresholdPercent: cfg.Governance.ThresholdPercent,
		},
		ConfirmTimeout: time.Duration(cfg.Ledger.ConfirmTimeoutSeconds) * time.Second,
		Logger:         log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := governance.NewSweeper(governance.SweeperConfig{
		Store:      proposals,
		Controller: controller,
		Interval:   time.Duration(cfg.Governance.SweepIntervalSeconds) * time.Second,
		BatchSize:  cfg.Governance.SweepBatchSize,
		Logger:     log,
	})
	sweeper.Start(ctx)

	queryServer := api.NewServer(log, proposals, cfg.QueryServerPort)
	if err := queryServer.Start(); err != nil {
		return errors.Wrap(err, "failed to start query server")
	}
	log.Info().Int("port", cfg.QueryServerPort).Msg("query server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	cancel()
	if err := queryServer.Stop(); err != nil {
		log.Error().Err(err).Msg("failed to stop query server")
	}
	return nil
}

// applyEnvOverrides lets secrets and endpoints come from the environment
// instead of the config file.
func applyEnvOverrides(cfg *config.Config) {
	if v := os.Getenv("LANDGOV_OPERATOR_KEY"); v != "" {
		cfg.Ledger.OperatorKeyHex = v
	}
	if v := os.Getenv("LANDGOV_RPC_URL"); v != "" {
		cfg.Ledger.RPCURL = v
	}
	if v := os.Getenv("LANDGOV_WEBHOOK_URL"); v != "" {
		cfg.NotifyWebhookURL = v
	}
}
