package deployment

import (
	"time"

	"github.com/crytic/plum/chain"
	"github.com/crytic/plum/config"
	"github.com/crytic/plum/contracts"
	"github.com/crytic/plum/logging"
	"github.com/crytic/plum/logging/colors"
	"github.com/pkg/errors"
	"golang.org/x/net/context"
)

// Options describes a single deployment run.
type Options struct {
	// Node is the node of the selected network.
	Node Node

	// NetworkName is the configured name of the selected network.
	NetworkName string

	// Network is the configuration of the selected network.
	Network *config.NetworkConfig

	// Store is the artifact store contracts are loaded from and saved to.
	Store *contracts.Store

	// Deployment holds the confirmation timings and the journal location.
	Deployment config.DeploymentConfig

	// JournalPath is the transaction journal database. If empty, no journal is kept.
	JournalPath string

	// Script is run once everything is set up.
	Script Script

	// Logger is used for deployment output. If nil, the global logger is used.
	Logger *logging.Logger
}

// Deploy sets up the environment of the selected network, loads every artifact for it, and runs the script. Every
// artifact changed by the script is saved afterward, even if the script failed, so deployments that went through are
// never lost.
func Deploy(ctx context.Context, options Options) error {
	logger := options.Logger
	if logger == nil {
		logger = logging.GlobalLogger
	}
	session := NewSession()
	logger = logger.NewSubLogger("session", session.String())

	env, err := SetupEnvironment(ctx, options.Node, options.NetworkName, options.Network, logger)
	if err != nil {
		return err
	}

	registry := contracts.NewRegistry(options.Store, env.NetworkID, logger)
	if err := registry.Initialize(); err != nil {
		return err
	}

	confirmer := chain.NewConfirmer(
		options.Node,
		options.Deployment.ConfirmationTimeoutDuration(),
		options.Deployment.PollIntervalDuration(),
		logger,
	)

	var journal *chain.Journal
	if options.JournalPath != "" {
		if journal, err = chain.OpenJournal(options.JournalPath); err != nil {
			return err
		}
		defer func() {
			if closeErr := journal.Close(); closeErr != nil {
				logger.Warn("Failed to close the transaction journal", closeErr)
			}
		}()
		journal.Subscribe(confirmer, session.String())
	}

	deployment := &Context{
		Node:      options.Node,
		Contracts: registry,
		Accounts:  env.Accounts,
		Deployer:  NewDeployer(env, registry, confirmer, journal, logger),
		Session:   session,
		Logger:    logger.NewSubLogger("module", logging.DEPLOYMENT_SERVICE),
	}

	logger.Info("Starting deployment...")
	start := time.Now()
	scriptErr := options.Script.Run(ctx, deployment)
	saveErr := registry.SaveAll()
	if scriptErr != nil {
		if saveErr != nil {
			logger.Error("Failed to save the build output", saveErr)
		}
		return scriptErr
	}
	if saveErr != nil {
		return errors.WithMessage(saveErr, "could not save the build output")
	}

	logger.Info("Deployment ended in ", colors.Bold, time.Since(start).Round(time.Millisecond), colors.Reset)
	return nil
}
