// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package backendsimulation

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// world is the complete chain state. Committed worlds are never modified,
// execution always happens on a copy.
type world struct {
	balances  map[common.Address]*big.Int
	nonces    map[common.Address]uint64
	code      map[common.Address][]byte
	contracts map[common.Address]Contract
	logs      []*types.Log
}

func newWorld() *world {
	return &world{
		balances:  make(map[common.Address]*big.Int),
		nonces:    make(map[common.Address]uint64),
		code:      make(map[common.Address][]byte),
		contracts: make(map[common.Address]Contract),
	}
}

func (w *world) copy() *world {
	c := &world{
		balances:  make(map[common.Address]*big.Int, len(w.balances)),
		nonces:    make(map[common.Address]uint64, len(w.nonces)),
		code:      make(map[common.Address][]byte, len(w.code)),
		contracts: make(map[common.Address]Contract, len(w.contracts)),
		logs:      append([]*types.Log(nil), w.logs...),
	}
	for account, balance := range w.balances {
		c.balances[account] = new(big.Int).Set(balance)
	}
	for account, nonce := range w.nonces {
		c.nonces[account] = nonce
	}
	for account, code := range w.code {
		c.code[account] = code
	}
	for account, contract := range w.contracts {
		c.contracts[account] = contract.Clone()
	}
	return c
}

func (w *world) balance(account common.Address) *big.Int {
	if balance, ok := w.balances[account]; ok {
		return new(big.Int).Set(balance)
	}
	return new(big.Int)
}

func (w *world) addBalance(account common.Address, amount *big.Int) {
	balance, ok := w.balances[account]
	if !ok {
		balance = new(big.Int)
		w.balances[account] = balance
	}
	balance.Add(balance, amount)
}

func (w *world) subBalance(account common.Address, amount *big.Int) error {
	balance, ok := w.balances[account]
	if !ok || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	balance.Sub(balance, amount)
	return nil
}

func (w *world) transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return ErrInsufficientBalance
	}
	if err := w.subBalance(from, amount); err != nil {
		return err
	}
	w.addBalance(to, amount)
	return nil
}
