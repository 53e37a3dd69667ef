// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package emulator implements the token contract for the simulated chain.
package emulator

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethersphere/price-discovery/pkg/transaction/backendsimulation"
)

var (
	errFunctionNotFound  = backendsimulation.Revert("function not found")
	errInsufficientFunds = backendsimulation.Revert("insufficient funds")
	errAllowance         = backendsimulation.Revert("insufficient allowance")
	errZeroAddress       = backendsimulation.Revert("transfer to the zero address")
	errPayable           = backendsimulation.Revert("function does not accept payment")
	errCallbackRejected  = errors.New("token transfer rejected by recipient")
)

// token is an ERC20 token which can forward transfers to contracts with
// transferAndCall.
type token struct {
	abi         abi.ABI
	name        string
	ticker      string
	decimals    uint8
	identifier  string
	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
}

// Identifier derives the identifier of the token issued at address.
func Identifier(ticker string, address common.Address) string {
	return strings.ToUpper(ticker) + "-" + hex.EncodeToString(address.Bytes()[:3])
}

// NewFactory returns the factory of tokens using the token abi.
func NewFactory(tokenABI abi.ABI) backendsimulation.Factory {
	return func(env backendsimulation.Env, args []byte) (backendsimulation.Contract, error) {
		values, err := tokenABI.Constructor.Inputs.Unpack(args)
		if err != nil {
			return nil, err
		}
		if len(values) != 4 {
			return nil, errors.New("invalid constructor arguments")
		}

		name, _ := values[0].(string)
		ticker, _ := values[1].(string)
		decimals, _ := values[2].(uint8)
		supply, _ := values[3].(*big.Int)
		if name == "" || ticker == "" || supply == nil {
			return nil, backendsimulation.Revert("invalid token properties")
		}

		t := &token{
			abi:         tokenABI,
			name:        name,
			ticker:      ticker,
			decimals:    decimals,
			identifier:  Identifier(ticker, env.Self()),
			totalSupply: new(big.Int).Set(supply),
			balances:    map[common.Address]*big.Int{env.Caller(): new(big.Int).Set(supply)},
			allowances:  make(map[common.Address]map[common.Address]*big.Int),
		}
		t.emitTransfer(env, common.Address{}, env.Caller(), supply)
		return t, nil
	}
}

func (t *token) Clone() backendsimulation.Contract {
	c := *t
	c.totalSupply = new(big.Int).Set(t.totalSupply)
	c.balances = make(map[common.Address]*big.Int, len(t.balances))
	for a, b := range t.balances {
		c.balances[a] = new(big.Int).Set(b)
	}
	c.allowances = make(map[common.Address]map[common.Address]*big.Int, len(t.allowances))
	for owner, spenders := range t.allowances {
		m := make(map[common.Address]*big.Int, len(spenders))
		for s, a := range spenders {
			m[s] = new(big.Int).Set(a)
		}
		c.allowances[owner] = m
	}
	return &c
}

func (t *token) Call(env backendsimulation.Env, input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, errFunctionNotFound
	}
	method, err := t.abi.MethodById(input[:4])
	if err != nil {
		return nil, errFunctionNotFound
	}
	if env.Value().Sign() != 0 {
		return nil, errPayable
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "name":
		return method.Outputs.Pack(t.name)
	case "symbol":
		return method.Outputs.Pack(t.ticker)
	case "identifier":
		return method.Outputs.Pack(t.identifier)
	case "decimals":
		return method.Outputs.Pack(t.decimals)
	case "totalSupply":
		return method.Outputs.Pack(t.totalSupply)
	case "balanceOf":
		return method.Outputs.Pack(t.balanceOf(args[0].(common.Address)))
	case "allowance":
		return method.Outputs.Pack(t.allowance(args[0].(common.Address), args[1].(common.Address)))
	case "approve":
		t.setAllowance(env.Caller(), args[0].(common.Address), args[1].(*big.Int))
		t.emit(env, "Approval", env.Caller(), args[0].(common.Address), args[1].(*big.Int))
		return method.Outputs.Pack(true)
	case "transfer":
		if err := t.transfer(env, env.Caller(), args[0].(common.Address), args[1].(*big.Int)); err != nil {
			return nil, err
		}
		return method.Outputs.Pack(true)
	case "transferFrom":
		from, to, amount := args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)
		allowed := t.allowance(from, env.Caller())
		if allowed.Cmp(amount) < 0 {
			return nil, errAllowance
		}
		if err := t.transfer(env, from, to, amount); err != nil {
			return nil, err
		}
		t.setAllowance(from, env.Caller(), new(big.Int).Sub(allowed, amount))
		return method.Outputs.Pack(true)
	case "transferAndCall":
		to, amount, data := args[0].(common.Address), args[1].(*big.Int), args[2].([]byte)
		if err := t.transfer(env, env.Caller(), to, amount); err != nil {
			return nil, err
		}
		if err := t.forward(env, to, amount, data); err != nil {
			return nil, err
		}
		return method.Outputs.Pack(true)
	case "burn":
		amount := args[0].(*big.Int)
		if err := t.debit(env.Caller(), amount); err != nil {
			return nil, err
		}
		t.totalSupply.Sub(t.totalSupply, amount)
		t.emitTransfer(env, env.Caller(), common.Address{}, amount)
		return nil, nil
	}
	return nil, errFunctionNotFound
}

// forward invokes onTokenTransfer(from, amount, data) on the recipient.
func (t *token) forward(env backendsimulation.Env, to common.Address, amount *big.Int, data []byte) error {
	input, err := callbackArgs.Pack(env.Caller(), amount, data)
	if err != nil {
		return err
	}
	ret, err := env.Call(to, nil, append(append([]byte(nil), callbackSelector...), input...))
	if err != nil {
		return err
	}
	values, err := callbackResult.Unpack(ret)
	if err != nil || len(values) != 1 {
		return errCallbackRejected
	}
	if accepted, _ := values[0].(bool); !accepted {
		return errCallbackRejected
	}
	return nil
}

func (t *token) balanceOf(account common.Address) *big.Int {
	if b, ok := t.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (t *token) allowance(owner, spender common.Address) *big.Int {
	if a, ok := t.allowances[owner][spender]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

func (t *token) setAllowance(owner, spender common.Address, amount *big.Int) {
	spenders, ok := t.allowances[owner]
	if !ok {
		spenders = make(map[common.Address]*big.Int)
		t.allowances[owner] = spenders
	}
	spenders[spender] = new(big.Int).Set(amount)
}

func (t *token) debit(account common.Address, amount *big.Int) error {
	balance := t.balanceOf(account)
	if amount.Sign() < 0 || balance.Cmp(amount) < 0 {
		return errInsufficientFunds
	}
	t.balances[account] = balance.Sub(balance, amount)
	return nil
}

func (t *token) transfer(env backendsimulation.Env, from, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return errZeroAddress
	}
	if err := t.debit(from, amount); err != nil {
		return err
	}
	t.balances[to] = t.balanceOf(to).Add(t.balanceOf(to), amount)
	t.emitTransfer(env, from, to, amount)
	return nil
}

func (t *token) emitTransfer(env backendsimulation.Env, from, to common.Address, amount *big.Int) {
	t.emit(env, "Transfer", from, to, amount)
}

func (t *token) emit(env backendsimulation.Env, name string, from, to common.Address, amount *big.Int) {
	event := t.abi.Events[name]
	data, err := event.Inputs.NonIndexed().Pack(amount)
	if err != nil {
		return
	}
	env.Emit([]common.Hash{
		event.ID,
		common.BytesToHash(from.Bytes()),
		common.BytesToHash(to.Bytes()),
	}, data)
}
