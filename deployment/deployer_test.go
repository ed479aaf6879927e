package deployment

import (
	"math/big"
	"strings"
	"testing"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/common/hexutil"
	"github.com/crytic/plum/chain"
	"github.com/crytic/plum/config"
	"github.com/crytic/plum/contracts"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

// TestSetupEnvironment ensures the network id is queried only when it is not configured.
func TestSetupEnvironment(t *testing.T) {
	node := newFakeNode()

	env, err := SetupEnvironment(context.Background(), node, "dev", &config.NetworkConfig{Host: "localhost", Port: 8545}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 5, env.NetworkID)
	assert.Equal(t, node.accounts, env.Accounts)

	env, err = SetupEnvironment(context.Background(), node, "dev", &config.NetworkConfig{Host: "localhost", Port: 8545, NetworkID: 42}, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 42, env.NetworkID)
}

// TestConfigureTxOptions ensures unset options are filled from the network, then from the defaults.
func TestConfigureTxOptions(t *testing.T) {
	node := newFakeNode()
	env, err := SetupEnvironment(context.Background(), node, "dev", &config.NetworkConfig{Host: "localhost", Port: 8545}, nil)
	require.NoError(t, err)

	opts, err := env.ConfigureTxOptions(TxOptions{})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultGas, opts.Gas)
	assert.Equal(t, uint256.NewInt(config.DefaultGasPrice), opts.GasPrice)
	assert.Equal(t, node.accounts[0], *opts.From)

	sender := node.accounts[1].Hex()
	env, err = SetupEnvironment(context.Background(), node, "dev", &config.NetworkConfig{
		Host:     "localhost",
		Port:     8545,
		Gas:      1000000,
		GasPrice: uint256.NewInt(7),
		From:     sender,
	}, nil)
	require.NoError(t, err)

	opts, err = env.ConfigureTxOptions(TxOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1000000, opts.Gas)
	assert.Equal(t, uint256.NewInt(7), opts.GasPrice)
	assert.Equal(t, node.accounts[1], *opts.From)

	// Explicit options win
	opts, err = env.ConfigureTxOptions(TxOptions{Gas: 5, From: &node.accounts[0]})
	require.NoError(t, err)
	assert.EqualValues(t, 5, opts.Gas)
	assert.Equal(t, node.accounts[0], *opts.From)

	node.accounts = nil
	env, err = SetupEnvironment(context.Background(), node, "dev", &config.NetworkConfig{Host: "localhost", Port: 8545}, nil)
	require.NoError(t, err)
	_, err = env.ConfigureTxOptions(TxOptions{})
	assert.Error(t, err)
}

// TestDeployerNewLinksLibraries ensures a contract can only be deployed once its libraries are, and that deploying a
// library links it into the contracts using it.
func TestDeployerNewLinksLibraries(t *testing.T) {
	node := newFakeNode()
	deployer, registry := newTestDeployer(t, node, &config.NetworkConfig{Host: "localhost", Port: 8545})
	ctx := context.Background()

	_, err := deployer.New(ctx, "Token", TxOptions{}, big.NewInt(1000))
	assert.ErrorIs(t, err, contracts.ErrUndefinedLink)
	assert.Empty(t, node.sent)

	library, err := deployer.New(ctx, "Lib", TxOptions{})
	require.NoError(t, err)

	token, err := deployer.New(ctx, "Token", TxOptions{}, big.NewInt(1000))
	require.NoError(t, err)
	require.Len(t, node.sent, 2)

	// The creation code holds the library address followed by the constructor arguments
	sent := node.sent[1]
	assert.Nil(t, sent.To)
	assert.Equal(t, node.accounts[0], sent.From)
	assert.Equal(t, config.DefaultGas, sent.Gas)
	assert.Equal(t, uint256.NewInt(config.DefaultGasPrice), sent.GasPrice)
	expectedCode := "0x6080" + strings.ToLower(library.Address().Hex()[2:]) + "00" +
		"00000000000000000000000000000000000000000000000000000000000003e8"
	assert.Equal(t, expectedCode, hexutil.Encode(sent.Data))

	contract, ok := registry.Get("Token")
	require.True(t, ok)
	address, ok := contract.GetAddress(5, -1)
	require.True(t, ok)
	assert.Equal(t, strings.ToLower(token.Address().Hex()), address)
	assert.True(t, contract.IsDirty())
}

// TestDeployerNewChecksConstructorArguments ensures the constructor argument count is checked before submission.
func TestDeployerNewChecksConstructorArguments(t *testing.T) {
	node := newFakeNode()
	deployer, _ := newTestDeployer(t, node, &config.NetworkConfig{Host: "localhost", Port: 8545})
	ctx := context.Background()

	_, err := deployer.New(ctx, "Lib", TxOptions{})
	require.NoError(t, err)

	_, err = deployer.New(ctx, "Token", TxOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Token contract constructor expected 1 arguments, received 0")
	assert.Len(t, node.sent, 1)

	_, err = deployer.New(ctx, "Missing", TxOptions{})
	assert.Error(t, err)
}

// TestDeployerNewReverted ensures a reverted deployment is reported and records no address.
func TestDeployerNewReverted(t *testing.T) {
	node := newFakeNode()
	node.revert = true
	deployer, registry := newTestDeployer(t, node, &config.NetworkConfig{Host: "localhost", Port: 8545})

	_, err := deployer.New(context.Background(), "Lib", TxOptions{})
	var revertErr *chain.RevertError
	require.True(t, errors.As(err, &revertErr))

	contract, _ := registry.Get("Lib")
	_, ok := contract.GetAddress(5, -1)
	assert.False(t, ok)
}

// TestDeployerAt ensures instances can only be attached to addresses holding code.
func TestDeployerAt(t *testing.T) {
	node := newFakeNode()
	deployer, _ := newTestDeployer(t, node, &config.NetworkConfig{Host: "localhost", Port: 8545})
	ctx := context.Background()

	_, err := deployer.At(ctx, "Lib", "0x3333333333333333333333333333333333333333")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no code at address")

	_, err = deployer.At(ctx, "Lib", "0x1234")
	assert.ErrorIs(t, err, contracts.ErrInvalidAddress)

	_, err = deployer.Deployed(ctx, "Lib")
	assert.Error(t, err)

	library, err := deployer.New(ctx, "Lib", TxOptions{})
	require.NoError(t, err)
	attached, err := deployer.At(ctx, "Lib", library.Address().Hex())
	require.NoError(t, err)
	assert.Equal(t, library.Address(), attached.Address())

	latest, err := deployer.Deployed(ctx, "Lib")
	require.NoError(t, err)
	assert.Equal(t, library.Address(), latest.Address())
}

// TestInstanceCallAndTransact ensures calls are decoded without a transaction while transactions are confirmed.
func TestInstanceCallAndTransact(t *testing.T) {
	node := newFakeNode()
	deployer, _ := newTestDeployer(t, node, &config.NetworkConfig{Host: "localhost", Port: 8545})
	ctx := context.Background()

	_, err := deployer.New(ctx, "Lib", TxOptions{})
	require.NoError(t, err)
	token, err := deployer.New(ctx, "Token", TxOptions{}, big.NewInt(1000))
	require.NoError(t, err)

	uint256Type, err := abi.NewType("uint256", "", nil)
	require.NoError(t, err)
	node.callOutput, err = abi.Arguments{{Type: uint256Type}}.Pack(big.NewInt(77))
	require.NoError(t, err)

	sentBefore := len(node.sent)
	values, err := token.Call(ctx, "balanceOf", node.accounts[1])
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, big.NewInt(77), values[0])
	assert.Len(t, node.sent, sentBefore)
	require.Len(t, node.calls, 1)

	confirmation, err := token.Transact(ctx, "transfer", TxOptions{}, node.accounts[1], big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, fakeTxHash(len(node.sent)), confirmation.TxHash)
	assert.Equal(t, token.Address(), *node.sent[len(node.sent)-1].To)

	_, err = token.Call(ctx, "missing")
	assert.Error(t, err)
	_, err = token.Transact(ctx, "transfer", TxOptions{}, "not an address", big.NewInt(5))
	assert.Error(t, err)
}

// fakeTxHash returns the hash the fake node assigns to its n-th transaction.
func fakeTxHash(n int) common.Hash {
	return common.BigToHash(big.NewInt(int64(n)))
}
