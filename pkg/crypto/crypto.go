// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package crypto holds the secp256k1 key handling of the session users.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

var ErrInvalidPublicKey = errors.New("invalid public key")

func GenerateSecp256k1Key() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(btcec.S256(), rand.Reader)
}

// EncodeSecp256k1PrivateKey returns the 32 byte scalar of k.
func EncodeSecp256k1PrivateKey(k *ecdsa.PrivateKey) []byte {
	return (*btcec.PrivateKey)(k).Serialize()
}

func DecodeSecp256k1PrivateKey(data []byte) (*ecdsa.PrivateKey, error) {
	if l := len(data); l != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("secp256k1 key of %d bytes, want %d", l, btcec.PrivKeyBytesLen)
	}
	k, _ := btcec.PrivKeyFromBytes(btcec.S256(), data)
	return (*ecdsa.PrivateKey)(k), nil
}

// NewEthereumAddress returns the last 20 bytes of the keccak256 hash of the
// uncompressed public key.
func NewEthereumAddress(p ecdsa.PublicKey) (common.Address, error) {
	if p.X == nil || p.Y == nil {
		return common.Address{}, ErrInvalidPublicKey
	}
	h := sha3.NewLegacyKeccak256()
	if _, err := h.Write(elliptic.Marshal(btcec.S256(), p.X, p.Y)[1:]); err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(h.Sum(nil)[12:]), nil
}
