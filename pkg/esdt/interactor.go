// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package esdt

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethersphere/go-sw3-abi/sw3abi"
	"github.com/ethersphere/price-discovery/pkg/account"
	"github.com/ethersphere/price-discovery/pkg/artifacts"
	"github.com/ethersphere/price-discovery/pkg/contract"
	"github.com/ethersphere/price-discovery/pkg/logging"
	"github.com/ethersphere/price-discovery/pkg/sctx"
	"github.com/ethersphere/price-discovery/pkg/transaction"
)

const (
	issueGasLimit    uint64 = 60000000
	transferGasLimit uint64 = 500000
	nativeGasLimit   uint64 = 50000
)

var (
	erc20ABI = transaction.MustParseABI(sw3abi.ERC20ABIv0_3_1)

	ErrIssueFailed = errors.New("token issuance failed")
	errDecodeABI   = errors.New("could not decode abi data")
)

// Interactor issues tokens and builds payments.
type Interactor struct {
	logger     logging.Logger
	backend    transaction.Backend
	controller contract.Controller
	chainID    *big.Int
	abi        abi.ABI
	code       []byte
}

func NewInteractor(logger logging.Logger, backend transaction.Backend, controller contract.Controller, chainID *big.Int, loader *artifacts.Loader) (*Interactor, error) {
	tokenABI, err := loader.ABI(artifacts.ESDTABI)
	if err != nil {
		return nil, err
	}
	code, err := loader.Code(artifacts.ESDTCode)
	if err != nil {
		return nil, err
	}
	return &Interactor{
		logger:     logger,
		backend:    backend,
		controller: controller,
		chainID:    chainID,
		abi:        tokenABI,
		code:       code,
	}, nil
}

// IssueToken deploys a token contract with the full supply credited to the
// owner and returns the token with its identifier.
func (i *Interactor) IssueToken(ctx context.Context, owner *account.TestUser, token Token) (Token, error) {
	if token.IsNative() {
		return Token{}, fmt.Errorf("%w: %s is reserved", ErrIssueFailed, NativeIdentifier)
	}

	args, err := i.abi.Pack("", token.Name, token.Ticker, token.Decimals, token.Supply)
	if err != nil {
		return Token{}, err
	}

	signedTx, err := owner.SignRequest(ctx, i.backend, i.chainID, &transaction.TxRequest{
		Data:     append(append([]byte(nil), i.code...), args...),
		GasLimit: sctx.GetGasLimitWithDefault(ctx, issueGasLimit),
		GasPrice: sctx.GetGasPrice(ctx),
	})
	if err != nil {
		return Token{}, err
	}

	bundle, err := i.controller.Deploy(ctx, signedTx)
	if err != nil {
		return Token{}, err
	}
	if !bundle.ReturnCode.IsSuccess() {
		return Token{}, fmt.Errorf("%w: %s: %s", ErrIssueFailed, bundle.ReturnCode, bundle.Message)
	}

	token.Address = bundle.Receipt.ContractAddress

	response, err := i.controller.Query(ctx, i.handle(token), "identifier")
	if err != nil {
		return Token{}, err
	}
	if !response.ReturnCode.IsSuccess() || len(response.Values) != 1 {
		return Token{}, fmt.Errorf("%w: identifier: %s", ErrIssueFailed, response.ReturnCode)
	}
	identifier, ok := response.Values[0].(string)
	if !ok {
		return Token{}, errDecodeABI
	}
	token.Identifier = identifier

	i.logger.Debugf("issued token %s at %s", token.Identifier, token.Address)
	return token, nil
}

func (i *Interactor) handle(token Token) contract.Handle {
	return contract.Handle{Address: token.Address, ABI: i.abi}
}

// BalanceOf returns the balance of the account in the token.
func (i *Interactor) BalanceOf(ctx context.Context, token Token, address common.Address) (*big.Int, error) {
	if token.IsNative() {
		return i.backend.BalanceAt(ctx, address, nil)
	}

	response, err := i.controller.Query(ctx, contract.Handle{Address: token.Address, ABI: erc20ABI}, "balanceOf", address)
	if err != nil {
		return nil, err
	}
	if !response.ReturnCode.IsSuccess() || len(response.Values) != 1 {
		return nil, fmt.Errorf("balance of %s: %s %s", address, response.ReturnCode, response.Message)
	}

	balance, ok := abi.ConvertType(response.Values[0], new(big.Int)).(*big.Int)
	if !ok || balance == nil {
		return nil, errDecodeABI
	}
	return balance, nil
}

// TransferRequest builds the request moving the payment to the recipient.
func TransferRequest(payment Payment, recipient common.Address) (*transaction.TxRequest, error) {
	if payment.Token.IsNative() {
		return &transaction.TxRequest{
			To:       &recipient,
			Value:    payment.Amount,
			GasLimit: nativeGasLimit,
		}, nil
	}

	data, err := erc20ABI.Pack("transfer", recipient, payment.Amount)
	if err != nil {
		return nil, err
	}
	to := payment.Token.Address
	return &transaction.TxRequest{
		To:       &to,
		Data:     data,
		GasLimit: transferGasLimit,
	}, nil
}

// CallRequest builds the request calling the contract with data while
// transferring the payment. Token payments are wrapped in transferAndCall so
// that the token forwards the call after moving the amount.
func (i *Interactor) CallRequest(payment Payment, contractAddress common.Address, data []byte, gasLimit uint64) (*transaction.TxRequest, error) {
	if payment.Token.IsNative() {
		return &transaction.TxRequest{
			To:       &contractAddress,
			Data:     data,
			Value:    payment.Amount,
			GasLimit: gasLimit,
		}, nil
	}

	wrapped, err := i.abi.Pack("transferAndCall", contractAddress, payment.Amount, data)
	if err != nil {
		return nil, err
	}
	to := payment.Token.Address
	return &transaction.TxRequest{
		To:       &to,
		Data:     wrapped,
		GasLimit: gasLimit,
	}, nil
}
