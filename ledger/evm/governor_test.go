package evm

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known local development key (anvil/hardhat account 0); never holds
// real funds.
const devOperatorKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	g, err := NewGateway(Config{
		RPCURL:            "http://127.0.0.1:8545",
		ChainID:           31337,
		GovernorAddress:   "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		VotesTokenAddress: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
		OperatorKeyHex:    devOperatorKey,
		Logger:            zerolog.Nop(),
	})
	require.NoError(t, err)
	return g
}

func TestNewGatewayValidation(t *testing.T) {
	_, err := NewGateway(Config{GovernorAddress: "nope", VotesTokenAddress: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512", OperatorKeyHex: devOperatorKey})
	assert.Error(t, err, "bad governor address")

	_, err = NewGateway(Config{GovernorAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3", VotesTokenAddress: "nope", OperatorKeyHex: devOperatorKey})
	assert.Error(t, err, "bad token address")

	_, err = NewGateway(Config{GovernorAddress: "0x5FbDB2315678afecb367f032d93F642f64180aa3", VotesTokenAddress: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512", OperatorKeyHex: "zz"})
	assert.Error(t, err, "bad operator key")
}

func TestNewGatewayAcceptsPrefixedKey(t *testing.T) {
	g, err := NewGateway(Config{
		RPCURL:            "http://127.0.0.1:8545",
		ChainID:           31337,
		GovernorAddress:   "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		VotesTokenAddress: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
		OperatorKeyHex:    "0x" + devOperatorKey,
		Logger:            zerolog.Nop(),
	})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), g.sender)
}

// The governor ABI must produce the canonical Governor selectors, or every
// submission would hit an unknown function on the contract.
func TestGovernorABISelectors(t *testing.T) {
	g := newTestGateway(t)

	selectors := map[string]string{
		"propose":            "da95691a",
		"queue":              "160cbed7",
		"execute":            "2656227d",
		"castVoteWithReason": "7b3c71d3",
	}
	for name, want := range selectors {
		method, ok := g.governorABI.Methods[name]
		require.True(t, ok, name)
		assert.Equal(t, want, common.Bytes2Hex(method.ID), name)
	}
}

func TestDecodeProposalCreated(t *testing.T) {
	g := newTestGateway(t)
	event := g.governorABI.Events["ProposalCreated"]

	data, err := event.Inputs.Pack(
		big.NewInt(42),
		common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
		[]common.Address{common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")},
		[]*big.Int{big.NewInt(0)},
		[]string{"setRegistrationFee(uint256)"},
		[][]byte{{0x01, 0x02}},
		big.NewInt(1200),
		big.NewInt(46800),
		"ipfs://bafkreicontentref",
	)
	require.NoError(t, err)

	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: common.HexToAddress("0x0000000000000000000000000000000000000001")}, // foreign log, skipped
		{Address: g.governor, Topics: []common.Hash{event.ID}, Data: data},
	}}

	created, err := g.decodeProposalCreated(receipt)
	require.NoError(t, err)
	assert.Equal(t, "42", created.externalID)
	assert.Equal(t, uint64(1200), created.voteStart)
	assert.Equal(t, uint64(46800), created.voteEnd)
}

func TestDecodeProposalCreatedMissingEvent(t *testing.T) {
	g := newTestGateway(t)
	_, err := g.decodeProposalCreated(&types.Receipt{})
	require.Error(t, err)
}

func TestDecodeQueueETA(t *testing.T) {
	g := newTestGateway(t)
	event := g.governorABI.Events["ProposalQueued"]

	etaSeconds := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC).Unix()
	data, err := event.Inputs.Pack(big.NewInt(42), big.NewInt(etaSeconds))
	require.NoError(t, err)

	receipt := &types.Receipt{Logs: []*types.Log{
		{Address: g.governor, Topics: []common.Hash{event.ID}, Data: data},
	}}

	eta, ok := g.decodeQueueETA(receipt)
	require.True(t, ok)
	assert.Equal(t, time.Unix(etaSeconds, 0).UTC(), eta)

	// A receipt without the event reports no eta.
	_, ok = g.decodeQueueETA(&types.Receipt{})
	assert.False(t, ok)
}

func TestVotesTokenABI(t *testing.T) {
	g := newTestGateway(t)

	data, err := g.tokenABI.Pack("getPastTotalSupply", big.NewInt(1200))
	require.NoError(t, err)
	assert.Len(t, data, 4+32)

	_, err = g.tokenABI.Pack("totalSupply")
	require.NoError(t, err)
}
