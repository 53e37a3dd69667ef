// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package account tracks the local nonce of chain accounts.
package account

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethersphere/price-discovery/pkg/crypto"
	"github.com/ethersphere/price-discovery/pkg/transaction"
	"go.uber.org/atomic"
)

// Account is an address with a locally advanced nonce. The nonce is taken
// when a transaction is built so that consecutive submissions never wait for
// the chain.
type Account struct {
	address common.Address
	nonce   atomic.Uint64
}

func New(address common.Address) *Account {
	return &Account{address: address}
}

func (a *Account) Address() common.Address {
	return a.address
}

// GetNonceThenIncrement returns the nonce to use and advances it.
func (a *Account) GetNonceThenIncrement() uint64 {
	return a.nonce.Inc() - 1
}

// ReleaseNonce hands back nonce if it was the last one taken and no
// transaction was built with it.
func (a *Account) ReleaseNonce(nonce uint64) bool {
	return a.nonce.CAS(nonce+1, nonce)
}

func (a *Account) IncrementNonce() {
	a.nonce.Inc()
}

func (a *Account) Nonce() uint64 {
	return a.nonce.Load()
}

// Sync sets the nonce to the pending nonce known to the backend.
func (a *Account) Sync(ctx context.Context, backend transaction.Backend) error {
	nonce, err := backend.PendingNonceAt(ctx, a.address)
	if err != nil {
		return fmt.Errorf("sync nonce of %s: %w", a.address, err)
	}
	a.nonce.Store(nonce)
	return nil
}

func (a *Account) Balance(ctx context.Context, backend transaction.Backend) (*big.Int, error) {
	return backend.BalanceAt(ctx, a.address, nil)
}

// TestUser is a named participant of the scenarios.
type TestUser struct {
	Name    string
	Address common.Address
	Account *Account
	Signer  crypto.Signer
}

func NewTestUser(name string, signer crypto.Signer) (*TestUser, error) {
	address, err := signer.EthereumAddress()
	if err != nil {
		return nil, err
	}
	return &TestUser{
		Name:    name,
		Address: address,
		Account: New(address),
		Signer:  signer,
	}, nil
}
