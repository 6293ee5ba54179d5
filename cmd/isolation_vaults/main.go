package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"frizo/isolation_vaults/internal/chain"
	"frizo/isolation_vaults/internal/config"
	"frizo/isolation_vaults/internal/logger"
	"frizo/isolation_vaults/internal/system"
	"frizo/isolation_vaults/internal/vault"
	"frizo/isolation_vaults/internal/version"
)

func main() {
	// Command line flags
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help information")
		healthCheck = flag.Bool("health-check", false, "Perform health check")
		configFile  = flag.String("config", "isolation_vaults.toml", "Path to configuration file")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	// Handle version flag
	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Handle help flag
	if *showHelp {
		fmt.Printf("Isolation Vaults %s\n\n", version.Short())
		fmt.Println("Usage:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// Handle health check
	if *healthCheck {
		fmt.Println("OK")
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Override log level from command line
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// Initialize logger
	log := logger.NewWithOptions(os.Stdout, logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.SetDefault(log)

	log.Info("Starting Isolation Vaults",
		"build", version.Get(),
		"environment", cfg.Environment,
		"variant", cfg.Vault.Variant,
		"config", *configFile,
	)

	if err := run(cfg, log); err != nil {
		log.Error("Application error", "error", err)
		os.Exit(1)
	}

	log.Info("Isolation Vaults stopped")
}

// run bootstraps a deployment and drives one account through the vault
// lifecycle, checking ticket parity at the end.
func run(cfg *config.Config, log *logger.Logger) error {
	sys, err := system.New(cfg, log)
	if err != nil {
		return err
	}

	user := common.HexToAddress("0x00000000000000000000000000000000000000c3")
	amount := uint256.NewInt(500)
	if err := sys.Fund(user, amount.Uint64()); err != nil {
		return fmt.Errorf("fund: %w", err)
	}

	vaultAddr := sys.Factory.CalculateVaultByAccount(user)
	err = sys.Chain.Transact(user, func(call *chain.Call) error {
		if err := sys.Underlying.Approve(call, vaultAddr, amount); err != nil {
			return err
		}
		_, err := sys.Factory.CreateVaultAndDepositIntoDolomiteMargin(call, vault.DefaultAccountNumber, amount)
		return err
	})
	if err != nil {
		return fmt.Errorf("create and deposit: %w", err)
	}
	proxy, _ := sys.Factory.Vault(vaultAddr)

	const borrowAccount = 1
	steps := []struct {
		name string
		fn   func(call *chain.Call) error
	}{
		{"open borrow position", func(call *chain.Call) error {
			return proxy.OpenBorrowPosition(call, vault.DefaultAccountNumber, borrowAccount, uint256.NewInt(200))
		}},
		{"close borrow position", func(call *chain.Call) error {
			return proxy.CloseBorrowPositionWithUnderlyingVaultToken(call, borrowAccount, vault.DefaultAccountNumber)
		}},
		{"withdraw", func(call *chain.Call) error {
			return proxy.WithdrawFromVaultForDolomiteMargin(call, vault.DefaultAccountNumber, amount)
		}},
	}
	for _, step := range steps {
		if err := sys.Chain.Transact(user, step.fn); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		if err := sys.CheckInvariants(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		log.Info("step completed", "step", step.name, "vault", vaultAddr.Hex(), "cursor", sys.Factory.TransferCursor())
	}

	log.Info("Smoke run completed",
		"wallet", sys.Underlying.BalanceOf(user).Dec(),
		"ticketSupply", sys.Factory.TotalSupply().Dec(),
		"events", len(sys.Chain.Events()),
	)
	return nil
}
