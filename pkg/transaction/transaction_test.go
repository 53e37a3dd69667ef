// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transaction_test

import (
	"bytes"
	"context"
	"errors"
	"io/ioutil"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethersphere/price-discovery/pkg/crypto"
	"github.com/ethersphere/price-discovery/pkg/logging"
	"github.com/ethersphere/price-discovery/pkg/sctx"
	storemock "github.com/ethersphere/price-discovery/pkg/statestore/mock"
	"github.com/ethersphere/price-discovery/pkg/transaction"
	"github.com/ethersphere/price-discovery/pkg/transaction/backendmock"
	"github.com/ethersphere/price-discovery/pkg/transaction/monitormock"
	"github.com/sirupsen/logrus"
)

var chainID = big.NewInt(5)

func newSigner(t *testing.T) (crypto.Signer, common.Address) {
	t.Helper()
	key, err := crypto.GenerateSecp256k1Key()
	if err != nil {
		t.Fatal(err)
	}
	signer := crypto.NewDefaultSigner(key)
	sender, err := signer.EthereumAddress()
	if err != nil {
		t.Fatal(err)
	}
	return signer, sender
}

func signedTransaction(t *testing.T, signer crypto.Signer, nonce uint64, chainID *big.Int) *types.Transaction {
	t.Helper()
	recipient := common.HexToAddress("0xabcd")
	tx := types.NewTransaction(nonce, recipient, big.NewInt(10), 21000, big.NewInt(1000000000), []byte{1, 2, 3})
	signedTx, err := signer.SignTx(tx, chainID)
	if err != nil {
		t.Fatal(err)
	}
	return signedTx
}

// blockingMonitor never resolves its watches.
func blockingMonitor() transaction.Monitor {
	return monitormock.New(
		monitormock.WithWatchTransactionFunc(func(sender common.Address, txHash common.Hash, nonce uint64) (<-chan types.Receipt, <-chan error, error) {
			return make(chan types.Receipt), make(chan error), nil
		}),
	)
}

func TestTransactionSend(t *testing.T) {
	logger := logging.New(ioutil.Discard, logrus.ErrorLevel)
	signer, sender := newSigner(t)
	signedTx := signedTransaction(t, signer, 3, chainID)

	store := storemock.NewStateStore()
	defer store.Close()

	var sent *types.Transaction
	transactionService, err := transaction.NewService(logger,
		backendmock.New(
			backendmock.WithSendTransactionFunc(func(ctx context.Context, tx *types.Transaction) error {
				sent = tx
				return nil
			}),
		),
		store,
		chainID,
		blockingMonitor(),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer transactionService.Close()

	ctx := sctx.SetStep(context.Background(), "buy tickets")
	txHash, err := transactionService.Send(ctx, signedTx, "execute")
	if err != nil {
		t.Fatal(err)
	}

	if txHash != signedTx.Hash() {
		t.Fatalf("returned wrong hash. wanted %v, got %v", signedTx.Hash(), txHash)
	}
	if sent == nil || sent.Hash() != txHash {
		t.Fatal("transaction not broadcast")
	}

	storedTransaction, err := transactionService.StoredTransaction(txHash)
	if err != nil {
		t.Fatal(err)
	}

	if storedTransaction.From != sender {
		t.Fatalf("got wrong sender. wanted %x, got %x", sender, storedTransaction.From)
	}
	if storedTransaction.To == nil || *storedTransaction.To != *signedTx.To() {
		t.Fatalf("got wrong recipient in stored transaction. wanted %x, got %x", signedTx.To(), storedTransaction.To)
	}
	if !bytes.Equal(storedTransaction.Data, signedTx.Data()) {
		t.Fatalf("got wrong data in stored transaction. wanted %x, got %x", signedTx.Data(), storedTransaction.Data)
	}
	if storedTransaction.Description != "execute" {
		t.Fatalf("got wrong description in stored transaction. wanted %q, got %q", "execute", storedTransaction.Description)
	}
	if storedTransaction.Step != "buy tickets" {
		t.Fatalf("got wrong step in stored transaction. wanted %q, got %q", "buy tickets", storedTransaction.Step)
	}
	if storedTransaction.GasLimit != signedTx.Gas() {
		t.Fatalf("got wrong gas limit in stored transaction. wanted %d, got %d", signedTx.Gas(), storedTransaction.GasLimit)
	}
	if storedTransaction.GasPrice.Cmp(signedTx.GasPrice()) != 0 {
		t.Fatalf("got wrong gas price in stored transaction. wanted %d, got %d", signedTx.GasPrice(), storedTransaction.GasPrice)
	}
	if storedTransaction.Value.Cmp(signedTx.Value()) != 0 {
		t.Fatalf("got wrong value in stored transaction. wanted %d, got %d", signedTx.Value(), storedTransaction.Value)
	}
	if storedTransaction.Nonce != 3 {
		t.Fatalf("got wrong nonce in stored transaction. wanted %d, got %d", 3, storedTransaction.Nonce)
	}

	pending, err := transactionService.PendingTransactions()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0] != txHash {
		t.Fatalf("got wrong pending transactions. wanted [%x], got %x", txHash, pending)
	}
}

func TestTransactionSendWrongChainID(t *testing.T) {
	logger := logging.New(ioutil.Discard, logrus.ErrorLevel)
	signer, _ := newSigner(t)
	signedTx := signedTransaction(t, signer, 0, big.NewInt(99))

	store := storemock.NewStateStore()
	defer store.Close()

	transactionService, err := transaction.NewService(logger,
		backendmock.New(
			backendmock.WithSendTransactionFunc(func(ctx context.Context, tx *types.Transaction) error {
				t.Fatal("transaction should not be broadcast")
				return nil
			}),
		),
		store,
		chainID,
		blockingMonitor(),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer transactionService.Close()

	_, err = transactionService.Send(context.Background(), signedTx, "")
	if !errors.Is(err, transaction.ErrWrongChainID) {
		t.Fatalf("got wrong error. wanted %v, got %v", transaction.ErrWrongChainID, err)
	}
}

func TestTransactionSendRejected(t *testing.T) {
	logger := logging.New(ioutil.Discard, logrus.ErrorLevel)
	signer, _ := newSigner(t)
	signedTx := signedTransaction(t, signer, 0, chainID)
	rejected := errors.New("nonce too low")

	store := storemock.NewStateStore()
	defer store.Close()

	transactionService, err := transaction.NewService(logger,
		backendmock.New(
			backendmock.WithSendTransactionFunc(func(ctx context.Context, tx *types.Transaction) error {
				return rejected
			}),
		),
		store,
		chainID,
		blockingMonitor(),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer transactionService.Close()

	_, err = transactionService.Send(context.Background(), signedTx, "")
	if !errors.Is(err, rejected) {
		t.Fatalf("got wrong error. wanted %v, got %v", rejected, err)
	}

	_, err = transactionService.StoredTransaction(signedTx.Hash())
	if !errors.Is(err, transaction.ErrUnknownTransaction) {
		t.Fatalf("rejected transaction was stored: %v", err)
	}
}

func TestTransactionWaitForReceipt(t *testing.T) {
	logger := logging.New(ioutil.Discard, logrus.ErrorLevel)
	signer, _ := newSigner(t)
	signedTx := signedTransaction(t, signer, 0, chainID)

	store := storemock.NewStateStore()
	defer store.Close()

	transactionService, err := transaction.NewService(logger,
		backendmock.New(
			backendmock.WithSendTransactionFunc(func(ctx context.Context, tx *types.Transaction) error {
				return nil
			}),
		),
		store,
		chainID,
		monitormock.New(monitormock.WithReceipt(types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			BlockNumber: big.NewInt(7),
		})),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer transactionService.Close()

	txHash, err := transactionService.Send(context.Background(), signedTx, "")
	if err != nil {
		t.Fatal(err)
	}

	receipt, err := transactionService.WaitForReceipt(context.Background(), txHash)
	if err != nil {
		t.Fatal(err)
	}
	if receipt.TxHash != txHash {
		t.Fatalf("got receipt for wrong transaction. wanted %x, got %x", txHash, receipt.TxHash)
	}
	if receipt.BlockNumber.Uint64() != 7 {
		t.Fatalf("got wrong block number. wanted %d, got %d", 7, receipt.BlockNumber)
	}

	// the background watch unregisters the pending transaction once confirmed
	deadline := time.Now().Add(5 * time.Second)
	for {
		pending, err := transactionService.PendingTransactions()
		if err != nil {
			t.Fatal(err)
		}
		if len(pending) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("transaction still pending: %x", pending)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTransactionWaitForReceiptUnknown(t *testing.T) {
	logger := logging.New(ioutil.Discard, logrus.ErrorLevel)
	store := storemock.NewStateStore()
	defer store.Close()

	transactionService, err := transaction.NewService(logger, backendmock.New(), store, chainID, blockingMonitor())
	if err != nil {
		t.Fatal(err)
	}
	defer transactionService.Close()

	_, err = transactionService.WaitForReceipt(context.Background(), common.HexToHash("0x1"))
	if !errors.Is(err, transaction.ErrUnknownTransaction) {
		t.Fatalf("got wrong error. wanted %v, got %v", transaction.ErrUnknownTransaction, err)
	}
}

func TestTransactionWaitForReceiptContextCancelled(t *testing.T) {
	logger := logging.New(ioutil.Discard, logrus.ErrorLevel)
	signer, _ := newSigner(t)
	signedTx := signedTransaction(t, signer, 0, chainID)

	store := storemock.NewStateStore()
	defer store.Close()

	transactionService, err := transaction.NewService(logger,
		backendmock.New(
			backendmock.WithSendTransactionFunc(func(ctx context.Context, tx *types.Transaction) error {
				return nil
			}),
		),
		store,
		chainID,
		blockingMonitor(),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer transactionService.Close()

	txHash, err := transactionService.Send(context.Background(), signedTx, "")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = transactionService.WaitForReceipt(ctx, txHash)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got wrong error. wanted %v, got %v", context.DeadlineExceeded, err)
	}
}

func TestPrepareTransaction(t *testing.T) {
	sender := common.HexToAddress("0xddff")
	recipient := common.HexToAddress("0xabcd")
	data := common.Hex2Bytes("0xabcdee")
	estimatedGasLimit := uint64(10000)
	suggestedGasPrice := big.NewInt(2)

	backend := backendmock.New(
		backendmock.WithEstimateGasFunc(func(ctx context.Context, call ethereum.CallMsg) (gas uint64, err error) {
			if call.From != sender {
				t.Fatalf("estimating with wrong sender. wanted %x, got %x", sender, call.From)
			}
			if !bytes.Equal(call.Data, data) {
				t.Fatalf("estimating with wrong data. wanted %x, got %x", data, call.Data)
			}
			return estimatedGasLimit, nil
		}),
		backendmock.WithSuggestGasPriceFunc(func(ctx context.Context) (*big.Int, error) {
			return suggestedGasPrice, nil
		}),
	)

	t.Run("estimate", func(t *testing.T) {
		tx, err := transaction.PrepareTransaction(context.Background(), &transaction.TxRequest{
			To:   &recipient,
			Data: data,
		}, sender, backend, 4)
		if err != nil {
			t.Fatal(err)
		}

		if tx.Gas() != estimatedGasLimit*12/10 {
			t.Fatalf("got wrong gas limit. wanted %d, got %d", estimatedGasLimit*12/10, tx.Gas())
		}
		if tx.GasPrice().Cmp(suggestedGasPrice) != 0 {
			t.Fatalf("got wrong gas price. wanted %d, got %d", suggestedGasPrice, tx.GasPrice())
		}
		if tx.Nonce() != 4 {
			t.Fatalf("got wrong nonce. wanted %d, got %d", 4, tx.Nonce())
		}
		if *tx.To() != recipient {
			t.Fatalf("got wrong recipient. wanted %x, got %x", recipient, tx.To())
		}
		if tx.Value().Sign() != 0 {
			t.Fatalf("got wrong value. wanted 0, got %d", tx.Value())
		}
	})

	t.Run("explicit", func(t *testing.T) {
		tx, err := transaction.PrepareTransaction(context.Background(), &transaction.TxRequest{
			Data:     data,
			GasLimit: 60000000,
			GasPrice: big.NewInt(7),
			Value:    big.NewInt(11),
		}, sender, backendmock.New(), 0)
		if err != nil {
			t.Fatal(err)
		}

		if tx.To() != nil {
			t.Fatalf("expected contract creation, got recipient %x", tx.To())
		}
		if tx.Gas() != 60000000 {
			t.Fatalf("got wrong gas limit. wanted %d, got %d", 60000000, tx.Gas())
		}
		if tx.GasPrice().Cmp(big.NewInt(7)) != 0 {
			t.Fatalf("got wrong gas price. wanted %d, got %d", 7, tx.GasPrice())
		}
		if tx.Value().Cmp(big.NewInt(11)) != 0 {
			t.Fatalf("got wrong value. wanted %d, got %d", 11, tx.Value())
		}
	})

	t.Run("estimate error", func(t *testing.T) {
		estimateErr := errors.New("execution reverted")
		_, err := transaction.PrepareTransaction(context.Background(), &transaction.TxRequest{
			To: &recipient,
		}, sender, backendmock.New(
			backendmock.WithEstimateGasFunc(func(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
				return 0, estimateErr
			}),
		), 0)
		if !errors.Is(err, estimateErr) {
			t.Fatalf("got wrong error. wanted %v, got %v", estimateErr, err)
		}
	})
}

func TestTransactionServiceRestoresPending(t *testing.T) {
	logger := logging.New(ioutil.Discard, logrus.ErrorLevel)
	signer, _ := newSigner(t)
	signedTx := signedTransaction(t, signer, 0, chainID)

	store := storemock.NewStateStore()
	defer store.Close()

	backend := backendmock.New(
		backendmock.WithSendTransactionFunc(func(ctx context.Context, tx *types.Transaction) error {
			return nil
		}),
	)

	first, err := transaction.NewService(logger, backend, store, chainID, blockingMonitor())
	if err != nil {
		t.Fatal(err)
	}
	txHash, err := first.Send(context.Background(), signedTx, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	watched := make(chan common.Hash, 1)
	second, err := transaction.NewService(logger, backend, store, chainID, monitormock.New(
		monitormock.WithWatchTransactionFunc(func(sender common.Address, h common.Hash, nonce uint64) (<-chan types.Receipt, <-chan error, error) {
			watched <- h
			return make(chan types.Receipt), make(chan error), nil
		}),
	))
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	select {
	case h := <-watched:
		if h != txHash {
			t.Fatalf("watching wrong transaction. wanted %x, got %x", txHash, h)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pending transaction not watched after restart")
	}
}
