package deployment

import (
	"encoding/json"
	"math/big"
	"sync"
	"testing"

	ethereum "github.com/crytic/medusa-geth"
	"github.com/crytic/medusa-geth/common"
	"github.com/crytic/medusa-geth/core/types"
	"github.com/crytic/plum/chain"
	"github.com/crytic/plum/config"
	"github.com/crytic/plum/contracts"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

const (
	libraryAbi = `[]`
	tokenAbi   = `[
		{"type":"constructor","inputs":[{"name":"supply","type":"uint256"}],"stateMutability":"nonpayable"},
		{"type":"function","name":"balanceOf","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
		{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"}
	]`
)

// tokenBytecode is the creation code of Token, which links against Lib.
var tokenBytecode = "0x6080" + contracts.MakePlaceholder("Lib") + "00"

// fakeNode is an in-memory node that mines every transaction immediately.
type fakeNode struct {
	lock       sync.Mutex
	networkID  uint64
	accounts   []common.Address
	code       map[common.Address][]byte
	receipts   map[common.Hash]*types.Receipt
	sent       []chain.TransactionArgs
	calls      [][]byte
	callOutput []byte
	revert     bool
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		networkID: 5,
		accounts: []common.Address{
			common.HexToAddress("0x1111111111111111111111111111111111111111"),
			common.HexToAddress("0x2222222222222222222222222222222222222222"),
		},
		code:     make(map[common.Address][]byte),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (n *fakeNode) Accounts(ctx context.Context) ([]common.Address, error) {
	return n.accounts, nil
}

func (n *fakeNode) NetworkID(ctx context.Context) (uint64, error) {
	return n.networkID, nil
}

func (n *fakeNode) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.code[address], nil
}

func (n *fakeNode) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (n *fakeNode) SendTransaction(ctx context.Context, args chain.TransactionArgs) (common.Hash, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.sent = append(n.sent, args)
	txHash := common.BigToHash(big.NewInt(int64(len(n.sent))))

	receipt := &types.Receipt{
		Status:  types.ReceiptStatusSuccessful,
		TxHash:  txHash,
		GasUsed: 21000,
	}
	if n.revert {
		receipt.Status = types.ReceiptStatusFailed
	}
	if args.To == nil && !n.revert {
		receipt.ContractAddress = common.BigToAddress(big.NewInt(int64(0xc000 + len(n.sent))))
		n.code[receipt.ContractAddress] = []byte{0x60, 0x80}
	}
	n.receipts[txHash] = receipt
	return txHash, nil
}

func (n *fakeNode) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	receipt, ok := n.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (n *fakeNode) CallContract(ctx context.Context, from common.Address, to common.Address, data []byte) ([]byte, error) {
	n.lock.Lock()
	defer n.lock.Unlock()
	n.calls = append(n.calls, data)
	return n.callOutput, nil
}

// newTestStore writes the Lib and Token artifacts into a new store.
func newTestStore(t *testing.T) *contracts.Store {
	store := contracts.NewStore(t.TempDir())
	definitions := []contracts.ContractDefinition{
		{Name: "Lib", Abi: json.RawMessage(libraryAbi), Bytecode: "0x6001"},
		{Name: "Token", Abi: json.RawMessage(tokenAbi), Bytecode: tokenBytecode},
	}
	for _, definition := range definitions {
		contract, err := contracts.NewContract(definition)
		require.NoError(t, err)
		require.NoError(t, store.Save(contract, store.ArtifactPath("", definition.Name), false))
	}
	return store
}

// newTestDeployer sets up a deployer over a fake node and a fresh store.
func newTestDeployer(t *testing.T, node *fakeNode, network *config.NetworkConfig) (*Deployer, *contracts.Registry) {
	env, err := SetupEnvironment(context.Background(), node, "test", network, nil)
	require.NoError(t, err)

	registry := contracts.NewRegistry(newTestStore(t), env.NetworkID, nil)
	require.NoError(t, registry.Initialize())

	confirmer := chain.NewConfirmer(node, chain.DefaultConfirmationTimeout, chain.DefaultPollInterval, nil)
	return NewDeployer(env, registry, confirmer, nil, nil), registry
}
