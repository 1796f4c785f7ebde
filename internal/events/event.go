package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/SecTokenIndexer/internal/notification"
	"github.com/shopspring/decimal"
)

var (
	// ErrSkip marks a log whose payload does not match the expected shape. The log is
	// dropped and the rest of the range is processed.
	ErrSkip = errors.New("log skipped")

	// ErrMalformedLog marks a log that cannot be parsed at all.
	ErrMalformedLog = errors.New("malformed log")
)

// Event is a decoded log. Payload holds the kind specific record.
type Event struct {
	Kind           Kind
	Contract       common.Address
	BlockNumber    uint64
	BlockTimestamp uint64
	TxHash         common.Hash
	TxIndex        uint
	LogIndex       uint
	Payload        any
}

// Position returns the location of the underlying log.
func (e *Event) Position() notification.Position {
	return notification.Position{
		BlockNumber: e.BlockNumber,
		TxIndex:     uint64(e.TxIndex),
		LogIndex:    uint64(e.LogIndex),
	}
}

func newEvent(kind Kind, l types.Log, blockTimestamp uint64, payload any) *Event {
	return &Event{
		Kind:           kind,
		Contract:       l.Address,
		BlockNumber:    l.BlockNumber,
		BlockTimestamp: blockTimestamp,
		TxHash:         l.TxHash,
		TxIndex:        l.TxIndex,
		LogIndex:       l.Index,
		Payload:        payload,
	}
}

// fields holds the indexed and non indexed arguments of a log by ABI name.
type fields map[string]any

// unpack decodes l against event. A log without topics or with a foreign topic0 is
// malformed, any other decoding failure is a skip.
func unpack(event abi.Event, l types.Log) (fields, error) {
	if len(l.Topics) == 0 {
		return nil, fmt.Errorf("%w: log %s/%d has no topics", ErrMalformedLog, l.TxHash.Hex(), l.Index)
	}
	if l.Topics[0] != event.ID {
		return nil, fmt.Errorf("%w: log %s/%d has topic0 %s, expected %s",
			ErrMalformedLog, l.TxHash.Hex(), l.Index, l.Topics[0].Hex(), event.ID.Hex())
	}

	out := make(fields, len(event.Inputs))
	if err := event.Inputs.UnpackIntoMap(out, l.Data); err != nil {
		return nil, fmt.Errorf("%w: %s data: %w", ErrSkip, event.Name, err)
	}

	var indexed abi.Arguments
	for _, input := range event.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if err := abi.ParseTopicsIntoMap(out, indexed, l.Topics[1:]); err != nil {
		return nil, fmt.Errorf("%w: %s topics: %w", ErrSkip, event.Name, err)
	}

	return out, nil
}

func (f fields) address(name string) (common.Address, error) {
	v, ok := f[name].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: field %s is %T, expected address", ErrSkip, name, f[name])
	}

	return v, nil
}

func (f fields) bigInt(name string) (*big.Int, error) {
	v, ok := f[name].(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("%w: field %s is %T, expected uint256", ErrSkip, name, f[name])
	}

	return v, nil
}

func (f fields) amount(name string) (decimal.Decimal, error) {
	v, err := f.bigInt(name)
	if err != nil {
		return decimal.Zero, err
	}

	return decimal.NewFromBigInt(v, 0), nil
}

// id reads a uint256 identifier. Identifiers beyond int64 cannot be keyed and are skipped.
func (f fields) id(name string) (int64, error) {
	v, err := f.bigInt(name)
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() {
		return 0, fmt.Errorf("%w: field %s value %s out of range", ErrSkip, name, v)
	}

	return v.Int64(), nil
}

func (f fields) text(name string) (string, error) {
	v, ok := f[name].(string)
	if !ok {
		return "", fmt.Errorf("%w: field %s is %T, expected string", ErrSkip, name, f[name])
	}

	return v, nil
}

func (f fields) flag(name string) (bool, error) {
	v, ok := f[name].(bool)
	if !ok {
		return false, fmt.Errorf("%w: field %s is %T, expected bool", ErrSkip, name, f[name])
	}

	return v, nil
}

// normalizeData turns the free form data string of an event into JSON: valid JSON is kept
// in compact form, anything else is stored as a JSON string.
func normalizeData(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}

	var buf bytes.Buffer
	if json.Valid([]byte(s)) && json.Compact(&buf, []byte(s)) == nil {
		return buf.String()
	}

	raw, _ := json.Marshal(s) //nolint:errchkjson
	return string(raw)
}

// decodeData is the inverse of normalizeData for notification args.
func decodeData(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}

	return v
}
