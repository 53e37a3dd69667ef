// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package account

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethersphere/price-discovery/pkg/transaction"
)

// SignRequest assigns the next local nonce of the user to the request and
// signs the resulting transaction for chainID. The nonce is released again
// if no transaction could be signed.
func (u *TestUser) SignRequest(ctx context.Context, backend transaction.Backend, chainID *big.Int, request *transaction.TxRequest) (*types.Transaction, error) {
	nonce := u.Account.GetNonceThenIncrement()
	tx, err := transaction.PrepareTransaction(ctx, request, u.Address, backend, nonce)
	if err != nil {
		u.Account.ReleaseNonce(nonce)
		return nil, fmt.Errorf("prepare transaction: %w", err)
	}

	signedTx, err := u.Signer.SignTx(tx, chainID)
	if err != nil {
		u.Account.ReleaseNonce(nonce)
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signedTx, nil
}
