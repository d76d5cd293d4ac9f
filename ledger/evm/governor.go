// Package evm implements the ledger gateway against an EVM Governor
// contract. Submissions are legacy transactions signed with the operator
// key; confirmations are observed by polling for receipts and decoding the
// governor's events.
package evm

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/cadastrelabs/landgov/ledger"
)

const defaultPollInterval = 2 * time.Second

// governorABIJSON covers the Bravo-compatible proposal surface: propose
// carries the signatures array, while queue/execute/cancel identify the
// proposal by (targets, values, calldatas, descriptionHash).
const governorABIJSON = `[
  {"type":"function","name":"propose","stateMutability":"nonpayable","inputs":[
    {"name":"targets","type":"address[]"},
    {"name":"values","type":"uint256[]"},
    {"name":"signatures","type":"string[]"},
    {"name":"calldatas","type":"bytes[]"},
    {"name":"description","type":"string"}],
    "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"castVoteWithReason","stateMutability":"nonpayable","inputs":[
    {"name":"proposalId","type":"uint256"},
    {"name":"support","type":"uint8"},
    {"name":"reason","type":"string"}],
    "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"queue","stateMutability":"nonpayable","inputs":[
    {"name":"targets","type":"address[]"},
    {"name":"values","type":"uint256[]"},
    {"name":"calldatas","type":"bytes[]"},
    {"name":"descriptionHash","type":"bytes32"}],
    "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"execute","stateMutability":"payable","inputs":[
    {"name":"targets","type":"address[]"},
    {"name":"values","type":"uint256[]"},
    {"name":"calldatas","type":"bytes[]"},
    {"name":"descriptionHash","type":"bytes32"}],
    "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"cancel","stateMutability":"nonpayable","inputs":[
    {"name":"targets","type":"address[]"},
    {"name":"values","type":"uint256[]"},
    {"name":"calldatas","type":"bytes[]"},
    {"name":"descriptionHash","type":"bytes32"}],
    "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getVotes","stateMutability":"view","inputs":[
    {"name":"account","type":"address"},
    {"name":"timepoint","type":"uint256"}],
    "outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"ProposalCreated","anonymous":false,"inputs":[
    {"name":"proposalId","type":"uint256","indexed":false},
    {"name":"proposer","type":"address","indexed":false},
    {"name":"targets","type":"address[]","indexed":false},
    {"name":"values","type":"uint256[]","indexed":false},
    {"name":"signatures","type":"string[]","indexed":false},
    {"name":"calldatas","type":"bytes[]","indexed":false},
    {"name":"voteStart","type":"uint256","indexed":false},
    {"name":"voteEnd","type":"uint256","indexed":false},
    {"name":"description","type":"string","indexed":false}]},
  {"type":"event","name":"ProposalQueued","anonymous":false,"inputs":[
    {"name":"proposalId","type":"uint256","indexed":false},
    {"name":"etaSeconds","type":"uint256","indexed":false}]}
]`

// votesTokenABIJSON is the slice of the ERC20Votes surface needed for quorum
// denominators.
const votesTokenABIJSON = `[
  {"type":"function","name":"getPastTotalSupply","stateMutability":"view","inputs":[
    {"name":"timepoint","type":"uint256"}],
    "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],
    "outputs":[{"name":"","type":"uint256"}]}
]`

// Config configures the EVM gateway.
type Config struct {
	RPCURL            string
	ChainID           int64
	GovernorAddress   string
	VotesTokenAddress string
	OperatorKeyHex    string
	PollInterval      time.Duration
	Logger            zerolog.Logger
}

// Gateway implements ledger.Gateway against a Governor contract.
type Gateway struct {
	client      *ethclient.Client
	chainID     *big.Int
	governor    common.Address
	votesToken  common.Address
	governorABI abi.ABI
	tokenABI    abi.ABI

	key    *ecdsa.PrivateKey
	sender common.Address

	pollInterval time.Duration
	logger       zerolog.Logger

	// Serializes nonce assignment across concurrent submissions.
	nonceMu sync.Mutex
}

var _ ledger.Gateway = (*Gateway)(nil)

// NewGateway dials the RPC endpoint and prepares the gateway.
func NewGateway(cfg Config) (*Gateway, error) {
	if !common.IsHexAddress(cfg.GovernorAddress) {
		return nil, errors.Errorf("invalid governor address %q", cfg.GovernorAddress)
	}
	if !common.IsHexAddress(cfg.VotesTokenAddress) {
		return nil, errors.Errorf("invalid votes token address %q", cfg.VotesTokenAddress)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.OperatorKeyHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid operator key")
	}

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial ledger RPC %s", cfg.RPCURL)
	}

	governorABI, err := abi.JSON(strings.NewReader(governorABIJSON))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse governor ABI")
	}
	tokenABI, err := abi.JSON(strings.NewReader(votesTokenABIJSON))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse votes token ABI")
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &Gateway{
		client:       client,
		chainID:      big.NewInt(cfg.ChainID),
		governor:     common.HexToAddress(cfg.GovernorAddress),
		votesToken:   common.HexToAddress(cfg.VotesTokenAddress),
		governorABI:  governorABI,
		tokenABI:     tokenABI,
		key:          key,
		sender:       crypto.PubkeyToAddress(key.PublicKey),
		pollInterval: interval,
		logger:       cfg.Logger.With().Str("component", "evm_gateway").Logger(),
	}, nil
}

// RegisterProposal submits propose and blocks until the registration is
// confirmed, decoding the ProposalCreated event for the assigned id and
// voting window.
func (g *Gateway) RegisterProposal(ctx context.Context, call ledger.ProposalCall, description string) (*ledger.RegisterResult, error) {
	data, err := g.governorABI.Pack("propose",
		call.Targets, call.Values, call.Signatures, call.Calldatas, description)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack propose call")
	}

	txRef, err := g.submit(ctx, data, nil)
	if err != nil {
		return nil, err
	}

	conf, receipt, err := g.awaitReceipt(ctx, txRef)
	if err != nil {
		return nil, err
	}
	if !conf.Success {
		return nil, errors.Errorf("proposal registration reverted in tx %s", txRef)
	}

	created, err := g.decodeProposalCreated(receipt)
	if err != nil {
		return nil, err
	}

	g.logger.Info().
		Str("external_id", created.externalID).
		Str("tx_ref", txRef).
		Uint64("vote_start", created.voteStart).
		Uint64("vote_end", created.voteEnd).
		Msg("proposal registered on ledger")

	return &ledger.RegisterResult{
		ExternalID:       created.externalID,
		TxRef:            txRef,
		BlockNumber:      conf.BlockNumber,
		VotingStartBlock: created.voteStart,
		VotingEndBlock:   created.voteEnd,
	}, nil
}

// CastVote submits castVoteWithReason and returns the transaction reference
// without waiting for confirmation.
func (g *Gateway) CastVote(ctx context.Context, externalID string, choice uint8, reason string) (string, error) {
	proposalID, ok := new(big.Int).SetString(externalID, 10)
	if !ok {
		return "", errors.Errorf("invalid external proposal id %q", externalID)
	}
	data, err := g.governorABI.Pack("castVoteWithReason", proposalID, choice, reason)
	if err != nil {
		return "", errors.Wrap(err, "failed to pack vote call")
	}
	return g.submit(ctx, data, nil)
}

// AwaitConfirmation blocks until the referenced transaction is mined or ctx
// expires.
func (g *Gateway) AwaitConfirmation(ctx context.Context, txRef string) (*ledger.Confirmation, error) {
	conf, _, err := g.awaitReceipt(ctx, txRef)
	return conf, err
}

// QueueProposal submits the timelock queue instruction.
func (g *Gateway) QueueProposal(ctx context.Context, call ledger.ProposalCall, descriptionHash [32]byte) (string, error) {
	data, err := g.governorABI.Pack("queue",
		call.Targets, call.Values, call.Calldatas, descriptionHash)
	if err != nil {
		return "", errors.Wrap(err, "failed to pack queue call")
	}
	return g.submit(ctx, data, nil)
}

// ExecuteProposal submits the execution instruction, attaching the sum of
// the action values as native value.
func (g *Gateway) ExecuteProposal(ctx context.Context, call ledger.ProposalCall, descriptionHash [32]byte) (string, error) {
	data, err := g.governorABI.Pack("execute",
		call.Targets, call.Values, call.Calldatas, descriptionHash)
	if err != nil {
		return "", errors.Wrap(err, "failed to pack execute call")
	}
	value := new(big.Int)
	for _, v := range call.Values {
		value.Add(value, v)
	}
	return g.submit(ctx, data, value)
}

// CancelProposal submits the cancellation instruction.
func (g *Gateway) CancelProposal(ctx context.Context, call ledger.ProposalCall, descriptionHash [32]byte) (string, error) {
	data, err := g.governorABI.Pack("cancel",
		call.Targets, call.Values, call.Calldatas, descriptionHash)
	if err != nil {
		return "", errors.Wrap(err, "failed to pack cancel call")
	}
	return g.submit(ctx, data, nil)
}

// VotingPowerAt queries the governor for the voter's power at the given
// block.
func (g *Gateway) VotingPowerAt(ctx context.Context, voter common.Address, blockNumber uint64) (*big.Int, error) {
	data, err := g.governorABI.Pack("getVotes", voter, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack getVotes call")
	}
	raw, err := g.client.CallContract(ctx, ethereum.CallMsg{To: &g.governor, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "getVotes call failed")
	}
	out, err := g.governorABI.Unpack("getVotes", raw)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode getVotes result")
	}
	return out[0].(*big.Int), nil
}

// TotalVotingPowerAt queries the votes token for the total supply at the
// given block, falling back to the live total supply when the snapshot block
// has not been reached yet.
func (g *Gateway) TotalVotingPowerAt(ctx context.Context, blockNumber uint64) (*big.Int, error) {
	data, err := g.tokenABI.Pack("getPastTotalSupply", new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack getPastTotalSupply call")
	}
	raw, err := g.client.CallContract(ctx, ethereum.CallMsg{To: &g.votesToken, Data: data}, nil)
	if err == nil {
		out, uerr := g.tokenABI.Unpack("getPastTotalSupply", raw)
		if uerr != nil {
			return nil, errors.Wrap(uerr, "failed to decode getPastTotalSupply result")
		}
		return out[0].(*big.Int), nil
	}

	// The snapshot block is in the future until voting opens; the live
	// supply is the best available denominator then.
	g.logger.Debug().Err(err).Uint64("block", blockNumber).Msg("past total supply unavailable, using live supply")
	data, perr := g.tokenABI.Pack("totalSupply")
	if perr != nil {
		return nil, errors.Wrap(perr, "failed to pack totalSupply call")
	}
	raw, cerr := g.client.CallContract(ctx, ethereum.CallMsg{To: &g.votesToken, Data: data}, nil)
	if cerr != nil {
		return nil, errors.Wrap(cerr, "totalSupply call failed")
	}
	out, uerr := g.tokenABI.Unpack("totalSupply", raw)
	if uerr != nil {
		return nil, errors.Wrap(uerr, "failed to decode totalSupply result")
	}
	return out[0].(*big.Int), nil
}

// submit builds, signs and broadcasts a legacy transaction to the governor.
func (g *Gateway) submit(ctx context.Context, data []byte, value *big.Int) (string, error) {
	if value == nil {
		value = new(big.Int)
	}

	g.nonceMu.Lock()
	defer g.nonceMu.Unlock()

	nonce, err := g.client.PendingNonceAt(ctx, g.sender)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch nonce")
	}
	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch gas price")
	}
	gasLimit, err := g.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  g.sender,
		To:    &g.governor,
		Value: value,
		Data:  data,
	})
	if err != nil {
		// Estimation failure almost always means the call would revert;
		// surface it as a pre-confirmation rejection.
		return "", errors.Wrap(err, "transaction rejected by ledger")
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit + gasLimit/5,
		To:       &g.governor,
		Value:    value,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(g.chainID), g.key)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign transaction")
	}
	if err := g.client.SendTransaction(ctx, signed); err != nil {
		return "", errors.Wrap(err, "failed to broadcast transaction")
	}

	txRef := signed.Hash().Hex()
	g.logger.Debug().Str("tx_ref", txRef).Uint64("nonce", nonce).Msg("transaction broadcast")
	return txRef, nil
}

// awaitReceipt polls for the transaction receipt until ctx expires.
func (g *Gateway) awaitReceipt(ctx context.Context, txRef string) (*ledger.Confirmation, *types.Receipt, error) {
	txHash := common.HexToHash(txRef)
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := g.client.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			conf := &ledger.Confirmation{
				TxRef:       txRef,
				BlockNumber: receipt.BlockNumber.Uint64(),
				Success:     receipt.Status == types.ReceiptStatusSuccessful,
			}
			if eta, ok := g.decodeQueueETA(receipt); ok {
				conf.ETA = &eta
			}
			return conf, receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			g.logger.Debug().Err(err).Str("tx_ref", txRef).Msg("receipt poll failed, retrying")
		}

		select {
		case <-ctx.Done():
			return nil, nil, errors.Wrapf(ctx.Err(), "confirmation wait for %s aborted", txRef)
		case <-ticker.C:
		}
	}
}

type createdEvent struct {
	externalID string
	voteStart  uint64
	voteEnd    uint64
}

// decodeProposalCreated extracts the assigned proposal id and voting window
// from the registration receipt.
func (g *Gateway) decodeProposalCreated(receipt *types.Receipt) (*createdEvent, error) {
	event := g.governorABI.Events["ProposalCreated"]
	for _, log := range receipt.Logs {
		if log.Address != g.governor || len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}
		values, err := event.Inputs.Unpack(log.Data)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode ProposalCreated event")
		}
		proposalID, ok := values[0].(*big.Int)
		if !ok {
			return nil, errors.New("unexpected ProposalCreated payload shape")
		}
		voteStart, _ := values[6].(*big.Int)
		voteEnd, _ := values[7].(*big.Int)
		ev := &createdEvent{externalID: proposalID.String()}
		if voteStart != nil {
			ev.voteStart = voteStart.Uint64()
		}
		if voteEnd != nil {
			ev.voteEnd = voteEnd.Uint64()
		}
		return ev, nil
	}
	return nil, errors.New("registration receipt carries no ProposalCreated event")
}

// decodeQueueETA extracts the execution eligibility time from a
// ProposalQueued event, when the receipt carries one.
func (g *Gateway) decodeQueueETA(receipt *types.Receipt) (time.Time, bool) {
	event := g.governorABI.Events["ProposalQueued"]
	for _, log := range receipt.Logs {
		if log.Address != g.governor || len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}
		values, err := event.Inputs.Unpack(log.Data)
		if err != nil || len(values) < 2 {
			g.logger.Warn().Err(err).Msg("failed to decode ProposalQueued event")
			return time.Time{}, false
		}
		eta, ok := values[1].(*big.Int)
		if !ok || !eta.IsInt64() {
			return time.Time{}, false
		}
		return time.Unix(eta.Int64(), 0).UTC(), true
	}
	return time.Time{}, false
}
