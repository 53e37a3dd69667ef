// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package backendsimulation

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Contract is a contract implemented in Go.
type Contract interface {
	// Call executes input sent to the contract. A returned error reverts the
	// whole transaction.
	Call(env Env, input []byte) ([]byte, error)
	// Clone returns a deep copy of the contract state.
	Clone() Contract
}

// Factory constructs a contract from the packed constructor arguments.
type Factory func(env Env, args []byte) (Contract, error)

// Env is the execution environment of one call frame.
type Env interface {
	// Caller is the direct sender of the call.
	Caller() common.Address
	// Self is the address of the executing contract.
	Self() common.Address
	// Value is the amount of native coin sent with the call.
	Value() *big.Int
	BlockNumber() uint64
	BlockTime() uint64
	// Seed is derived from the parent block and differs for every block.
	Seed() common.Hash
	Balance(account common.Address) *big.Int
	// Transfer sends native coin owned by the contract.
	Transfer(to common.Address, amount *big.Int) error
	// Call executes a nested call with the contract as caller. A failing
	// nested call fails the transaction even if the error is not propagated.
	Call(to common.Address, value *big.Int, input []byte) ([]byte, error)
	// Emit appends a log entry for the contract.
	Emit(topics []common.Hash, data []byte)
	// UseGas charges gas beyond the flat cost of the frame.
	UseGas(amount uint64) error
}

type gasMeter struct {
	limit uint64
	used  uint64
}

func (g *gasMeter) use(amount uint64) error {
	if g.limit-g.used < amount {
		g.used = g.limit
		return ErrOutOfGas
	}
	g.used += amount
	return nil
}

// txContext is the state of one transaction or simulated call.
type txContext struct {
	backend *Backend
	world   *world
	header  *types.Header
	gas     *gasMeter
	depth   int
	err     error // first failure of any frame
}

func (tx *txContext) fail(err error) error {
	if err == nil {
		return nil
	}
	var revert *RevertError
	if !errors.Is(err, ErrOutOfGas) && !errors.Is(err, ErrDepth) && !errors.As(err, &revert) {
		err = Revert(err.Error())
	}
	if tx.err == nil {
		tx.err = err
	}
	return err
}

func (tx *txContext) result(err error) error {
	if tx.err != nil {
		return tx.err
	}
	return tx.fail(err)
}

func (tx *txContext) call(caller, to common.Address, value *big.Int, input []byte) ([]byte, error) {
	if tx.depth >= maxCallDepth {
		return nil, tx.fail(ErrDepth)
	}
	// the top level call is paid by the intrinsic gas
	if tx.depth > 0 {
		if err := tx.gas.use(callGas); err != nil {
			return nil, tx.fail(err)
		}
	}
	if err := tx.world.transfer(caller, to, value); err != nil {
		return nil, tx.fail(err)
	}

	contract, ok := tx.world.contracts[to]
	if !ok {
		return nil, nil
	}

	tx.depth++
	defer func() { tx.depth-- }()

	ret, err := contract.Call(&frame{
		tx:     tx,
		caller: caller,
		self:   to,
		value:  value,
	}, input)
	if err != nil {
		return nil, tx.fail(err)
	}
	return ret, nil
}

func (tx *txContext) create(caller common.Address, nonce uint64, value *big.Int, data []byte) (common.Address, error) {
	address := crypto.CreateAddress(caller, nonce)

	r, args, ok := tx.backend.lookup(data)
	if !ok {
		return address, tx.fail(ErrInvalidCode)
	}
	if err := tx.gas.use(createGas + createCodeByteGas*uint64(len(r.code))); err != nil {
		return address, tx.fail(err)
	}
	if _, ok := tx.world.contracts[address]; ok {
		return address, tx.fail(ErrAddressCollision)
	}
	if err := tx.world.transfer(caller, address, value); err != nil {
		return address, tx.fail(err)
	}
	if nonce >= tx.world.nonces[caller] {
		tx.world.nonces[caller] = nonce + 1
	}

	tx.depth++
	defer func() { tx.depth-- }()

	contract, err := r.factory(&frame{
		tx:     tx,
		caller: caller,
		self:   address,
		value:  value,
	}, args)
	if err != nil {
		return address, tx.fail(err)
	}

	tx.world.contracts[address] = contract
	tx.world.code[address] = r.code
	return address, nil
}

type frame struct {
	tx     *txContext
	caller common.Address
	self   common.Address
	value  *big.Int
}

func (f *frame) Caller() common.Address { return f.caller }

func (f *frame) Self() common.Address { return f.self }

func (f *frame) Value() *big.Int {
	if f.value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(f.value)
}

func (f *frame) BlockNumber() uint64 { return f.tx.header.Number.Uint64() }

func (f *frame) BlockTime() uint64 { return f.tx.header.Time }

func (f *frame) Seed() common.Hash {
	return crypto.Keccak256Hash(f.tx.header.ParentHash.Bytes(), f.tx.header.Number.Bytes())
}

func (f *frame) Balance(account common.Address) *big.Int {
	return f.tx.world.balance(account)
}

func (f *frame) Transfer(to common.Address, amount *big.Int) error {
	return f.tx.world.transfer(f.self, to, amount)
}

func (f *frame) Call(to common.Address, value *big.Int, input []byte) ([]byte, error) {
	return f.tx.call(f.self, to, value, input)
}

func (f *frame) Emit(topics []common.Hash, data []byte) {
	f.tx.world.logs = append(f.tx.world.logs, &types.Log{
		Address: f.self,
		Topics:  append([]common.Hash(nil), topics...),
		Data:    append([]byte(nil), data...),
	})
}

func (f *frame) UseGas(amount uint64) error {
	return f.tx.gas.use(amount)
}
