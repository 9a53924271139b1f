package db

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	sqlite "github.com/mattn/go-sqlite3"
	"github.com/russross/meddler"
)

// init registers the hash and address tags used by the chain and queue tables
func init() {
	meddler.Default = meddler.SQLite
	meddler.Register("hash", HashMeddler{})
	meddler.Register("address", AddressMeddler{})
}

// SQLiteErr unwraps a sqlite driver error, looking through meddler's wrapping
func SQLiteErr(err error) (*sqlite.Error, bool) {
	sqliteErr := &sqlite.Error{}
	if ok := errors.As(err, sqliteErr); ok {
		return sqliteErr, true
	}
	if driverErr, ok := meddler.DriverErr(err); ok {
		return sqliteErr, errors.As(driverErr, sqliteErr)
	}
	return sqliteErr, false
}

// IsConstraintErr reports whether err is a sqlite constraint violation
func IsConstraintErr(err error) bool {
	sqliteErr, ok := SQLiteErr(err)
	return ok && sqliteErr.Code == sqlite.ErrConstraint
}

// SlicePtrsToSlice converts the []*Foo returned by meddler.QueryAll into []Foo
func SlicePtrsToSlice(slice interface{}) interface{} {
	v := reflect.ValueOf(slice)
	vLen := v.Len()
	res := reflect.MakeSlice(reflect.SliceOf(v.Type().Elem().Elem()), vLen, vLen)
	for i := 0; i < vLen; i++ {
		res.Index(i).Set(v.Index(i).Elem())
	}
	return res.Interface()
}

// hexMeddler stores a value as its 0x prefixed hex string
type hexMeddler struct {
	name string
}

func (m hexMeddler) PreRead(_ interface{}) (interface{}, error) {
	return new(string), nil
}

func (m hexMeddler) scanned(scanTarget interface{}) (string, error) {
	ptr, ok := scanTarget.(*string)
	if !ok || ptr == nil {
		return "", fmt.Errorf("%s: scan target is not a *string", m.name)
	}
	return *ptr, nil
}

// HashMeddler reads and writes common.Hash columns
type HashMeddler struct{}

func (HashMeddler) PreRead(fieldAddr interface{}) (interface{}, error) {
	return hexMeddler{name: "HashMeddler"}.PreRead(fieldAddr)
}

func (HashMeddler) PostRead(fieldPtr, scanTarget interface{}) error {
	raw, err := hexMeddler{name: "HashMeddler"}.scanned(scanTarget)
	if err != nil {
		return err
	}
	field, ok := fieldPtr.(*common.Hash)
	if !ok {
		return errors.New("HashMeddler: field is not a common.Hash")
	}
	*field = common.HexToHash(raw)
	return nil
}

func (HashMeddler) PreWrite(field interface{}) (interface{}, error) {
	hash, ok := field.(common.Hash)
	if !ok {
		return nil, errors.New("HashMeddler: field is not a common.Hash")
	}
	return hash.Hex(), nil
}

// AddressMeddler reads and writes common.Address columns
type AddressMeddler struct{}

func (AddressMeddler) PreRead(fieldAddr interface{}) (interface{}, error) {
	return hexMeddler{name: "AddressMeddler"}.PreRead(fieldAddr)
}

func (AddressMeddler) PostRead(fieldPtr, scanTarget interface{}) error {
	raw, err := hexMeddler{name: "AddressMeddler"}.scanned(scanTarget)
	if err != nil {
		return err
	}
	field, ok := fieldPtr.(*common.Address)
	if !ok {
		return errors.New("AddressMeddler: field is not a common.Address")
	}
	*field = common.HexToAddress(raw)
	return nil
}

func (AddressMeddler) PreWrite(field interface{}) (interface{}, error) {
	addr, ok := field.(common.Address)
	if !ok {
		return nil, errors.New("AddressMeddler: field is not a common.Address")
	}
	return addr.Hex(), nil
}
