package governance

import (
	"encoding/json"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/cadastrelabs/landgov/ledger"
)

// ActionBatch is the ordered set of calls a proposal executes if it passes:
// parallel target/value/signature/calldata arrays of equal length. The
// constructor enforces the shape once so the rest of the engine never
// re-checks it.
type ActionBatch struct {
	Targets    []common.Address
	Values     []sdkmath.Int
	Signatures []string
	Calldatas  [][]byte
}

// NewActionBatch validates and builds an action batch.
func NewActionBatch(targets []string, values []sdkmath.Int, signatures []string, calldatas [][]byte) (ActionBatch, error) {
	n := len(targets)
	if n == 0 {
		return ActionBatch{}, errors.New("action batch must contain at least one action")
	}
	if len(values) != n || len(signatures) != n || len(calldatas) != n {
		return ActionBatch{}, errors.Errorf(
			"action batch arrays must have equal length: targets=%d values=%d signatures=%d calldatas=%d",
			n, len(values), len(signatures), len(calldatas))
	}

	batch := ActionBatch{
		Targets:    make([]common.Address, n),
		Values:     make([]sdkmath.Int, n),
		Signatures: append([]string(nil), signatures...),
		Calldatas:  make([][]byte, n),
	}
	for i, target := range targets {
		if !common.IsHexAddress(target) {
			return ActionBatch{}, errors.Errorf("invalid target address %q at index %d", target, i)
		}
		batch.Targets[i] = common.HexToAddress(target)
	}
	for i, v := range values {
		if v.IsNil() || v.IsNegative() {
			return ActionBatch{}, errors.Errorf("action value at index %d must be a non-negative integer", i)
		}
		batch.Values[i] = v
	}
	for i, data := range calldatas {
		batch.Calldatas[i] = append([]byte(nil), data...)
	}
	return batch, nil
}

// Len returns the number of actions in the batch.
func (b ActionBatch) Len() int {
	return len(b.Targets)
}

// Call converts the batch into the ledger's proposal call tuple.
func (b ActionBatch) Call() ledger.ProposalCall {
	call := ledger.ProposalCall{
		Targets:    append([]common.Address(nil), b.Targets...),
		Values:     make([]*big.Int, len(b.Values)),
		Signatures: append([]string(nil), b.Signatures...),
		Calldatas:  make([][]byte, len(b.Calldatas)),
	}
	for i, v := range b.Values {
		call.Values[i] = v.BigInt()
	}
	for i, data := range b.Calldatas {
		call.Calldatas[i] = append([]byte(nil), data...)
	}
	return call
}

// batchColumns is the JSON shape the batch is persisted in. Addresses are
// checksummed hex, values decimal strings, calldatas 0x-hex.
type batchColumns struct {
	Targets    []string        `json:"targets"`
	Values     []string        `json:"values"`
	Signatures []string        `json:"signatures"`
	Calldatas  []hexutil.Bytes `json:"calldatas"`
}

// EncodeColumns serializes the batch into the four store columns.
func (b ActionBatch) EncodeColumns() (targets, values, signatures, calldatas string, err error) {
	cols := batchColumns{
		Targets:    make([]string, len(b.Targets)),
		Values:     make([]string, len(b.Values)),
		Signatures: b.Signatures,
		Calldatas:  make([]hexutil.Bytes, len(b.Calldatas)),
	}
	for i, t := range b.Targets {
		cols.Targets[i] = t.Hex()
	}
	for i, v := range b.Values {
		cols.Values[i] = v.String()
	}
	for i, data := range b.Calldatas {
		cols.Calldatas[i] = hexutil.Bytes(data)
	}

	encode := func(v any) (string, error) {
		raw, err := json.Marshal(v)
		if err != nil {
			return "", errors.Wrap(err, "failed to encode action batch column")
		}
		return string(raw), nil
	}
	if targets, err = encode(cols.Targets); err != nil {
		return
	}
	if values, err = encode(cols.Values); err != nil {
		return
	}
	if signatures, err = encode(cols.Signatures); err != nil {
		return
	}
	calldatas, err = encode(cols.Calldatas)
	return
}

// DecodeActionBatch rebuilds a batch from the four store columns.
func DecodeActionBatch(targets, values, signatures, calldatas string) (ActionBatch, error) {
	var cols batchColumns
	decode := func(raw string, v any) error {
		if raw == "" {
			return errors.New("empty action batch column")
		}
		return errors.Wrap(json.Unmarshal([]byte(raw), v), "failed to decode action batch column")
	}
	if err := decode(targets, &cols.Targets); err != nil {
		return ActionBatch{}, err
	}
	if err := decode(values, &cols.Values); err != nil {
		return ActionBatch{}, err
	}
	if err := decode(signatures, &cols.Signatures); err != nil {
		return ActionBatch{}, err
	}
	if err := decode(calldatas, &cols.Calldatas); err != nil {
		return ActionBatch{}, err
	}

	vals := make([]sdkmath.Int, len(cols.Values))
	for i, raw := range cols.Values {
		n, ok := sdkmath.NewIntFromString(raw)
		if !ok {
			return ActionBatch{}, errors.Errorf("invalid stored action value %q", raw)
		}
		vals[i] = n
	}
	data := make([][]byte, len(cols.Calldatas))
	for i, d := range cols.Calldatas {
		data[i] = []byte(d)
	}
	return NewActionBatch(cols.Targets, vals, cols.Signatures, data)
}
