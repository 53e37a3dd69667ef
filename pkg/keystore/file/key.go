// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package file

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	ethkeystore "github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethersphere/price-discovery/pkg/crypto"
	"github.com/ethersphere/price-discovery/pkg/keystore"
	"github.com/google/uuid"
)

// Key files use the Web3 Secret Storage format so that the same files can be
// imported by geth and other wallets.
const (
	scryptN = ethkeystore.LightScryptN
	scryptP = ethkeystore.LightScryptP
)

func encryptKey(k *ecdsa.PrivateKey, password string) ([]byte, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("key id: %w", err)
	}
	address, err := crypto.NewEthereumAddress(k.PublicKey)
	if err != nil {
		return nil, err
	}
	return ethkeystore.EncryptKey(&ethkeystore.Key{
		Id:         id,
		Address:    address,
		PrivateKey: k,
	}, password, scryptN, scryptP)
}

func decryptKey(data []byte, password string) (*ecdsa.PrivateKey, error) {
	key, err := ethkeystore.DecryptKey(data, password)
	if err != nil {
		if errors.Is(err, ethkeystore.ErrDecrypt) {
			return nil, keystore.ErrInvalidPassword
		}
		return nil, fmt.Errorf("decrypt key: %w", err)
	}
	// re-encode through btcec so signing uses the same curve implementation
	return crypto.DecodeSecp256k1PrivateKey(crypto.EncodeSecp256k1PrivateKey(key.PrivateKey))
}
