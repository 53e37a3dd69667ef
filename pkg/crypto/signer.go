// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package crypto

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/btcsuite/btcd/btcec"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signer signs the transactions of one session user.
type Signer interface {
	// SignTx returns transaction signed with EIP-155 replay protection for
	// chainID.
	SignTx(transaction *types.Transaction, chainID *big.Int) (*types.Transaction, error)
	EthereumAddress() (common.Address, error)
}

type defaultSigner struct {
	key *ecdsa.PrivateKey
}

func NewDefaultSigner(key *ecdsa.PrivateKey) Signer {
	return &defaultSigner{key: key}
}

func (d *defaultSigner) SignTx(transaction *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	txSigner := types.NewEIP155Signer(chainID)
	// an uncompressed key gives the recovery id as 27 or 28 in front
	compact, err := btcec.SignCompact(btcec.S256(), (*btcec.PrivateKey)(d.key), txSigner.Hash(transaction).Bytes(), false)
	if err != nil {
		return nil, err
	}

	// WithSignature expects r || s || v with v being 0 or 1
	signature := make([]byte, 65)
	copy(signature, compact[1:])
	signature[64] = compact[0] - 27
	return transaction.WithSignature(txSigner, signature)
}

func (d *defaultSigner) EthereumAddress() (common.Address, error) {
	return NewEthereumAddress(d.key.PublicKey)
}
