// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package crypto_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethersphere/price-discovery/pkg/crypto"
)

func TestDefaultSignerSignTx(t *testing.T) {
	key, err := crypto.DecodeSecp256k1PrivateKey(common.FromHex(devAccounts[0].key))
	if err != nil {
		t.Fatal(err)
	}
	signer := crypto.NewDefaultSigner(key)

	sender, err := signer.EthereumAddress()
	if err != nil {
		t.Fatal(err)
	}
	if sender.String() != devAccounts[0].address {
		t.Fatalf("got address %s, want %s", sender, devAccounts[0].address)
	}

	for _, chainID := range []int64{1, 31337, 1337 * 1000} {
		tx := types.NewTransaction(7, common.HexToAddress("0xabcd"), big.NewInt(1), 21000, big.NewInt(1), []byte{1, 2})

		signedTx, err := signer.SignTx(tx, big.NewInt(chainID))
		if err != nil {
			t.Fatal(err)
		}
		if signedTx.ChainId().Int64() != chainID {
			t.Fatalf("got chain id %d, want %d", signedTx.ChainId(), chainID)
		}

		recovered, err := types.Sender(types.NewEIP155Signer(big.NewInt(chainID)), signedTx)
		if err != nil {
			t.Fatal(err)
		}
		if recovered != sender {
			t.Fatalf("chain %d: recovered sender %s, want %s", chainID, recovered, sender)
		}
		if signedTx.Hash() == tx.Hash() {
			t.Fatal("signed transaction has the unsigned hash")
		}
	}
}
