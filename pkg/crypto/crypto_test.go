// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package crypto_test

import (
	"crypto/ecdsa"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethersphere/price-discovery/pkg/crypto"
)

// well known development accounts
var devAccounts = []struct {
	key     string
	address string
}{
	{
		key:     "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
		address: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
	},
	{
		key:     "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
		address: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
	},
	{
		key:     "5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
		address: "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC",
	},
}

func TestNewEthereumAddress(t *testing.T) {
	for _, a := range devAccounts {
		t.Run(a.address, func(t *testing.T) {
			key, err := crypto.DecodeSecp256k1PrivateKey(common.FromHex(a.key))
			if err != nil {
				t.Fatal(err)
			}
			address, err := crypto.NewEthereumAddress(key.PublicKey)
			if err != nil {
				t.Fatal(err)
			}
			if got := address.String(); got != a.address {
				t.Fatalf("got address %s, want %s", got, a.address)
			}
		})
	}
}

func TestNewEthereumAddressInvalidKey(t *testing.T) {
	if _, err := crypto.NewEthereumAddress(ecdsa.PublicKey{}); !errors.Is(err, crypto.ErrInvalidPublicKey) {
		t.Fatalf("got error %v, want %v", err, crypto.ErrInvalidPublicKey)
	}
}

func TestEncodeDecodeSecp256k1PrivateKey(t *testing.T) {
	k1, err := crypto.GenerateSecp256k1Key()
	if err != nil {
		t.Fatal(err)
	}
	k2, err := crypto.GenerateSecp256k1Key()
	if err != nil {
		t.Fatal(err)
	}
	if k1.D.Cmp(k2.D) == 0 {
		t.Fatal("generated the same key twice")
	}

	data := crypto.EncodeSecp256k1PrivateKey(k1)
	if len(data) != 32 {
		t.Fatalf("got %d bytes, want 32", len(data))
	}
	decoded, err := crypto.DecodeSecp256k1PrivateKey(data)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.D.Cmp(k1.D) != 0 {
		t.Fatal("decoded key differs")
	}

	if _, err := crypto.DecodeSecp256k1PrivateKey(data[:31]); err == nil {
		t.Fatal("expected error for short key data")
	}
}
