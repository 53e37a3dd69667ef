// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package monitormock

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethersphere/price-discovery/pkg/transaction"
)

type transactionMonitorMock struct {
	watchTransaction func(sender common.Address, txHash common.Hash, nonce uint64) (<-chan types.Receipt, <-chan error, error)
}

func (m *transactionMonitorMock) WatchTransaction(sender common.Address, txHash common.Hash, nonce uint64) (<-chan types.Receipt, <-chan error, error) {
	if m.watchTransaction != nil {
		return m.watchTransaction(sender, txHash, nonce)
	}
	return nil, nil, errors.New("not implemented")
}

func (m *transactionMonitorMock) Close() error {
	return nil
}

// Option is the option passed to the mock monitor
type Option interface {
	apply(*transactionMonitorMock)
}

type optionFunc func(*transactionMonitorMock)

func (f optionFunc) apply(r *transactionMonitorMock) { f(r) }

func WithWatchTransactionFunc(f func(sender common.Address, txHash common.Hash, nonce uint64) (<-chan types.Receipt, <-chan error, error)) Option {
	return optionFunc(func(s *transactionMonitorMock) {
		s.watchTransaction = f
	})
}

// WithReceipt makes every watch resolve immediately with the given receipt.
func WithReceipt(receipt types.Receipt) Option {
	return WithWatchTransactionFunc(func(sender common.Address, txHash common.Hash, nonce uint64) (<-chan types.Receipt, <-chan error, error) {
		receiptC := make(chan types.Receipt, 1)
		r := receipt
		r.TxHash = txHash
		receiptC <- r
		return receiptC, make(chan error), nil
	})
}

func New(opts ...Option) transaction.Monitor {
	mock := new(transactionMonitorMock)
	for _, o := range opts {
		o.apply(mock)
	}
	return mock
}
