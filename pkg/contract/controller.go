// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package contract sends contract interactions and reports their outcome
// as return codes. Transport and signing failures are errors, anything the
// chain rejects is a return code.
package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethersphere/price-discovery/pkg/logging"
	"github.com/ethersphere/price-discovery/pkg/sctx"
	"github.com/ethersphere/price-discovery/pkg/transaction"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrInvalidArguments is returned if the arguments of a query cannot be
	// packed.
	ErrInvalidArguments = errors.New("invalid arguments")
	// ErrQueryFailed is returned if the result of a query cannot be decoded.
	ErrQueryFailed = errors.New("query failed")
)

// Handle is a deployed contract.
type Handle struct {
	Address common.Address
	ABI     abi.ABI
}

// Bundle is the outcome of a state-changing interaction.
type Bundle struct {
	ReturnCode ReturnCode
	Message    string
	Receipt    *types.Receipt
}

// QueryResponse is the outcome of a read-only call.
type QueryResponse struct {
	ReturnCode ReturnCode
	Message    string
	Values     []interface{}
}

type Controller interface {
	// Deploy sends a signed contract creation and waits for its inclusion.
	Deploy(ctx context.Context, signedTx *types.Transaction) (*Bundle, error)
	// Execute sends a signed contract call and waits for its inclusion.
	Execute(ctx context.Context, signedTx *types.Transaction) (*Bundle, error)
	// Submit broadcasts a signed transaction without waiting for it.
	Submit(ctx context.Context, signedTx *types.Transaction) (common.Hash, error)
	// Await waits for a submitted transaction and reports its outcome.
	Await(ctx context.Context, txHash common.Hash) (*Bundle, error)
	// Query performs a read-only call of method.
	Query(ctx context.Context, handle Handle, method string, args ...interface{}) (*QueryResponse, error)
	Metrics() []prometheus.Collector
}

type controller struct {
	logger    logging.Logger
	backend   transaction.Backend
	txService transaction.Service
	metrics   metrics
}

func NewController(logger logging.Logger, backend transaction.Backend, txService transaction.Service) Controller {
	return &controller{
		logger:    logger,
		backend:   backend,
		txService: txService,
		metrics:   newMetrics(),
	}
}

func (c *controller) Deploy(ctx context.Context, signedTx *types.Transaction) (*Bundle, error) {
	if signedTx.To() != nil {
		return nil, fmt.Errorf("%w: deployment with recipient %x", ErrInvalidArguments, signedTx.To())
	}
	return c.send(ctx, signedTx, "deploy")
}

func (c *controller) Execute(ctx context.Context, signedTx *types.Transaction) (*Bundle, error) {
	if signedTx.To() == nil {
		return nil, fmt.Errorf("%w: call without recipient", ErrInvalidArguments)
	}
	return c.send(ctx, signedTx, "execute")
}

func (c *controller) Submit(ctx context.Context, signedTx *types.Transaction) (common.Hash, error) {
	return c.submit(ctx, signedTx, kindOf(signedTx))
}

func (c *controller) Await(ctx context.Context, txHash common.Hash) (*Bundle, error) {
	stored, err := c.txService.StoredTransaction(txHash)
	if err != nil {
		return nil, err
	}
	return c.await(ctx, txHash, stored)
}

func kindOf(signedTx *types.Transaction) string {
	if signedTx.To() == nil {
		return "deploy"
	}
	return "execute"
}

func (c *controller) submit(ctx context.Context, signedTx *types.Transaction, kind string) (common.Hash, error) {
	txHash, err := c.txService.Send(ctx, signedTx, kind)
	if err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	return txHash, nil
}

func (c *controller) send(ctx context.Context, signedTx *types.Transaction, kind string) (*Bundle, error) {
	txHash, err := c.submit(ctx, signedTx, kind)
	if err != nil {
		return nil, err
	}
	stored, err := c.txService.StoredTransaction(txHash)
	if err != nil {
		return nil, err
	}
	return c.await(ctx, txHash, stored)
}

func (c *controller) await(ctx context.Context, txHash common.Hash, stored *transaction.StoredTransaction) (*Bundle, error) {
	receipt, err := c.txService.WaitForReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("wait for transaction %x: %w", txHash, err)
	}

	bundle := &Bundle{
		ReturnCode: ReturnCodeOK,
		Receipt:    receipt,
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		bundle.ReturnCode, bundle.Message, err = c.failure(ctx, stored, receipt)
		if err != nil {
			return nil, fmt.Errorf("replay transaction %x: %w", txHash, err)
		}
	}

	kind := stored.Description
	c.metrics.ReturnCodes.WithLabelValues(kind, bundle.ReturnCode.String()).Inc()
	logger := c.logger.WithField("tx", txHash.Hex())
	if step := sctx.GetStep(ctx); step != "" {
		logger = logger.WithField("step", step)
	}
	logger.Tracef("%s in block %d: %s %s", kind, receipt.BlockNumber, bundle.ReturnCode, bundle.Message)

	return bundle, nil
}

// failure determines why the transaction failed by replaying it on top of
// the parent block.
func (c *controller) failure(ctx context.Context, stored *transaction.StoredTransaction, receipt *types.Receipt) (ReturnCode, string, error) {
	if receipt.GasUsed == stored.GasLimit {
		return ReturnCodeOutOfGas, "not enough gas", nil
	}

	var parent *big.Int
	if receipt.BlockNumber != nil && receipt.BlockNumber.Sign() > 0 {
		parent = new(big.Int).Sub(receipt.BlockNumber, big.NewInt(1))
	}

	_, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		From:     stored.From,
		To:       stored.To,
		Gas:      stored.GasLimit,
		GasPrice: stored.GasPrice,
		Value:    stored.Value,
		Data:     stored.Data,
	}, parent)
	if err == nil {
		return ReturnCodeExecutionFailed, "transaction failed without reason", nil
	}

	code, msg, ok := classify(err)
	if !ok {
		return "", "", err
	}
	return code, msg, nil
}

func (c *controller) Query(ctx context.Context, handle Handle, method string, args ...interface{}) (*QueryResponse, error) {
	m, ok := handle.ABI.Methods[method]
	if !ok {
		c.metrics.ReturnCodes.WithLabelValues("query", ReturnCodeFunctionNotFound.String()).Inc()
		return &QueryResponse{
			ReturnCode: ReturnCodeFunctionNotFound,
			Message:    method,
		}, nil
	}

	input, err := m.Inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, method, err)
	}

	output, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		To:   &handle.Address,
		Data: append(append([]byte(nil), m.ID...), input...),
	}, nil)
	if err != nil {
		code, msg, ok := classify(err)
		if !ok {
			return nil, err
		}
		c.metrics.ReturnCodes.WithLabelValues("query", code.String()).Inc()
		return &QueryResponse{
			ReturnCode: code,
			Message:    msg,
		}, nil
	}

	values, err := m.Outputs.Unpack(output)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrQueryFailed, method, err)
	}

	c.metrics.ReturnCodes.WithLabelValues("query", ReturnCodeOK.String()).Inc()
	return &QueryResponse{
		ReturnCode: ReturnCodeOK,
		Values:     values,
	}, nil
}
