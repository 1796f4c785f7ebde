package db

import (
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
	"github.com/shopspring/decimal"
)

func init() {
	meddler.Register("address", AddressMeddler{})
	meddler.Register("hash", HashMeddler{})
	meddler.Register("decimal", DecimalMeddler{})
}

// AddressMeddler stores common.Address as its checksummed hex string.
type AddressMeddler struct{}

func (AddressMeddler) PreRead(any) (any, error) {
	return new(sql.NullString), nil
}

func (AddressMeddler) PostRead(fieldAddr, scanTarget any) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	switch ptr := fieldAddr.(type) {
	case *common.Address:
		*ptr = common.Address{}
		if ns.Valid {
			*ptr = common.HexToAddress(ns.String)
		}
	case **common.Address:
		*ptr = nil
		if ns.Valid {
			address := common.HexToAddress(ns.String)
			*ptr = &address
		}
	default:
		return fmt.Errorf("expected *common.Address or **common.Address, got %T", fieldAddr)
	}

	return nil
}

func (AddressMeddler) PreWrite(field any) (any, error) {
	switch v := field.(type) {
	case common.Address:
		return v.Hex(), nil
	case *common.Address:
		if v == nil {
			return nil, nil
		}
		return v.Hex(), nil
	default:
		return nil, fmt.Errorf("expected common.Address or *common.Address, got %T", field)
	}
}

// HashMeddler stores common.Hash as its 0x prefixed hex string.
type HashMeddler struct{}

func (HashMeddler) PreRead(any) (any, error) {
	return new(sql.NullString), nil
}

func (HashMeddler) PostRead(fieldAddr, scanTarget any) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	ptr, ok := fieldAddr.(*common.Hash)
	if !ok {
		return fmt.Errorf("expected *common.Hash, got %T", fieldAddr)
	}

	*ptr = common.Hash{}
	if ns.Valid {
		*ptr = common.HexToHash(ns.String)
	}

	return nil
}

func (HashMeddler) PreWrite(field any) (any, error) {
	h, ok := field.(common.Hash)
	if !ok {
		return nil, fmt.Errorf("expected common.Hash, got %T", field)
	}

	return h.Hex(), nil
}

// DecimalMeddler stores token amounts as base-10 text so uint256 values survive SQLite.
type DecimalMeddler struct{}

func (DecimalMeddler) PreRead(any) (any, error) {
	return new(sql.NullString), nil
}

func (DecimalMeddler) PostRead(fieldAddr, scanTarget any) error {
	ns, ok := scanTarget.(*sql.NullString)
	if !ok {
		return fmt.Errorf("expected *sql.NullString, got %T", scanTarget)
	}

	switch ptr := fieldAddr.(type) {
	case *decimal.Decimal:
		*ptr = decimal.Zero
		if !ns.Valid {
			return nil
		}
		d, err := decimal.NewFromString(ns.String)
		if err != nil {
			return fmt.Errorf("invalid decimal %q: %w", ns.String, err)
		}
		*ptr = d
	case *decimal.NullDecimal:
		*ptr = decimal.NullDecimal{}
		if !ns.Valid {
			return nil
		}
		d, err := decimal.NewFromString(ns.String)
		if err != nil {
			return fmt.Errorf("invalid decimal %q: %w", ns.String, err)
		}
		*ptr = decimal.NewNullDecimal(d)
	default:
		return fmt.Errorf("expected *decimal.Decimal or *decimal.NullDecimal, got %T", fieldAddr)
	}

	return nil
}

func (DecimalMeddler) PreWrite(field any) (any, error) {
	switch v := field.(type) {
	case decimal.Decimal:
		return v.String(), nil
	case decimal.NullDecimal:
		if !v.Valid {
			return nil, nil
		}
		return v.Decimal.String(), nil
	default:
		return nil, fmt.Errorf("expected decimal.Decimal or decimal.NullDecimal, got %T", field)
	}
}
