package deployment

import (
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/plum/contracts"
	"github.com/crytic/plum/logging"
	"golang.org/x/net/context"
)

// Context is everything a deployment script has access to.
type Context struct {
	// Node is the node of the active network.
	Node Node

	// Contracts is the registry of every contract in the build output, loaded for the active network.
	Contracts *contracts.Registry

	// Accounts lists the accounts managed by the node.
	Accounts []common.Address

	// Deployer deploys and attaches to contract instances.
	Deployer *Deployer

	// Session identifies the deployment run.
	Session *Session

	// Logger is the script's logger.
	Logger *logging.Logger
}

// Script is a deployment script. Run returns once the deployment is complete, or with the error that stopped it.
type Script interface {
	Run(ctx context.Context, deployment *Context) error
}

// ScriptFunc adapts a function to the Script interface.
type ScriptFunc func(ctx context.Context, deployment *Context) error

// Run calls f.
func (f ScriptFunc) Run(ctx context.Context, deployment *Context) error {
	return f(ctx, deployment)
}
