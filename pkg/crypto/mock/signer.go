// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mock

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethersphere/price-discovery/pkg/crypto"
)

var ErrNotImplemented = errors.New("not implemented")

type signerMock struct {
	signTx          func(transaction *types.Transaction, chainID *big.Int) (*types.Transaction, error)
	ethereumAddress func() (common.Address, error)
}

// New returns a signer for the zero address that cannot sign unless
// configured with options.
func New(opts ...Option) crypto.Signer {
	m := new(signerMock)
	for _, o := range opts {
		o.apply(m)
	}
	return m
}

func (m *signerMock) SignTx(transaction *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if m.signTx == nil {
		return nil, ErrNotImplemented
	}
	return m.signTx(transaction, chainID)
}

func (m *signerMock) EthereumAddress() (common.Address, error) {
	if m.ethereumAddress == nil {
		return common.Address{}, nil
	}
	return m.ethereumAddress()
}

type Option interface {
	apply(*signerMock)
}

type optionFunc func(*signerMock)

func (f optionFunc) apply(m *signerMock) { f(m) }

func WithSignTxFunc(f func(transaction *types.Transaction, chainID *big.Int) (*types.Transaction, error)) Option {
	return optionFunc(func(m *signerMock) {
		m.signTx = f
	})
}

// WithAddress makes EthereumAddress return address.
func WithAddress(address common.Address) Option {
	return optionFunc(func(m *signerMock) {
		m.ethereumAddress = func() (common.Address, error) { return address, nil }
	})
}

func WithEthereumAddressFunc(f func() (common.Address, error)) Option {
	return optionFunc(func(m *signerMock) {
		m.ethereumAddress = f
	})
}
