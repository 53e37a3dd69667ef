// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transaction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethersphere/price-discovery/pkg/logging"
	"github.com/ethersphere/price-discovery/pkg/sctx"
	"github.com/ethersphere/price-discovery/pkg/storage"
)

const (
	storedTransactionPrefix  = "tx_stored_"
	pendingTransactionPrefix = "tx_pending_"
)

var (
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrUnknownTransaction  = errors.New("unknown transaction")
	ErrWrongChainID        = errors.New("transaction signed for another chain")
)

// TxRequest is an unsigned transaction. Accounts turn it into a signed one
// with PrepareTransaction.
type TxRequest struct {
	To       *common.Address // nil deploys Data as a contract
	Data     []byte
	GasPrice *big.Int // suggested by the backend if nil
	GasLimit uint64   // estimated if 0
	Value    *big.Int
}

// StoredTransaction is what the service remembers of a sent transaction.
// Failed transactions are replayed from it.
type StoredTransaction struct {
	From     common.Address
	To       *common.Address
	Data     []byte
	GasPrice *big.Int
	GasLimit uint64
	Value    *big.Int
	Nonce    uint64
	Created  int64
	// Description is the kind of interaction, "deploy" or "execute".
	Description string
	// Step is the scenario step the transaction was sent from, if any.
	Step string
}

// Service broadcasts transactions signed by the session users and follows
// them until they are mined.
type Service interface {
	io.Closer
	// Send broadcasts signedTx and records it as pending until the monitor
	// resolves it.
	Send(ctx context.Context, signedTx *types.Transaction, description string) (txHash common.Hash, err error)
	// WaitForReceipt blocks until the transaction sent by this service is
	// mined, cancelled or ctx is done.
	WaitForReceipt(ctx context.Context, txHash common.Hash) (receipt *types.Receipt, err error)
	StoredTransaction(txHash common.Hash) (*StoredTransaction, error)
	// PendingTransactions lists the hashes of sent transactions that were not
	// yet resolved.
	PendingTransactions() ([]common.Hash, error)
}

type transactionService struct {
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	logger   logging.Logger
	backend  Backend
	store    storage.StateStorer
	chainID  *big.Int
	txSigner types.Signer
	monitor  Monitor
}

// NewService returns a service that resumes watching the transactions left
// pending in store by an earlier run.
func NewService(logger logging.Logger, backend Backend, store storage.StateStorer, chainID *big.Int, monitor Monitor) (Service, error) {
	ctx, cancel := context.WithCancel(context.Background())

	t := &transactionService{
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		backend:  backend,
		store:    store,
		chainID:  chainID,
		txSigner: types.LatestSignerForChainID(chainID),
		monitor:  monitor,
	}

	pending, err := t.PendingTransactions()
	if err != nil {
		cancel()
		return nil, err
	}
	if len(pending) > 0 {
		logger.Debugf("resuming %d pending transactions", len(pending))
	}
	for _, txHash := range pending {
		t.resolvePending(txHash)
	}

	return t, nil
}

func (t *transactionService) Send(ctx context.Context, signedTx *types.Transaction, description string) (common.Hash, error) {
	if id := signedTx.ChainId(); id != nil && id.Sign() != 0 && id.Cmp(t.chainID) != 0 {
		return common.Hash{}, fmt.Errorf("%w: %d", ErrWrongChainID, id)
	}
	sender, err := types.Sender(t.txSigner, signedTx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("recover sender: %w", err)
	}

	txHash := signedTx.Hash()
	t.logger.Tracef("sending %s transaction %x from %s with nonce %d", description, txHash, sender, signedTx.Nonce())

	if err := t.backend.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, err
	}

	stored := StoredTransaction{
		From:        sender,
		To:          signedTx.To(),
		Data:        signedTx.Data(),
		GasPrice:    signedTx.GasPrice(),
		GasLimit:    signedTx.Gas(),
		Value:       signedTx.Value(),
		Nonce:       signedTx.Nonce(),
		Created:     time.Now().Unix(),
		Description: description,
		Step:        sctx.GetStep(ctx),
	}
	if err := t.store.Put(storedTransactionKey(txHash), stored); err != nil {
		return common.Hash{}, err
	}
	if err := t.store.Put(pendingTransactionKey(txHash), struct{}{}); err != nil {
		return common.Hash{}, err
	}

	t.resolvePending(txHash)
	return txHash, nil
}

// resolvePending drops txHash from the pending list once the monitor
// confirms or cancels it. Transactions still unresolved on Close stay
// pending for the next run.
func (t *transactionService) resolvePending(txHash common.Hash) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		_, err := t.WaitForReceipt(t.ctx, txHash)
		switch {
		case err == nil:
			t.logger.Tracef("pending transaction %x confirmed", txHash)
		case errors.Is(err, ErrTransactionCancelled):
			t.logger.Warningf("pending transaction %x cancelled", txHash)
		case errors.Is(err, ErrMonitorClosed), errors.Is(err, context.Canceled):
			return
		default:
			t.logger.Errorf("wait for pending transaction %x: %v", txHash, err)
			return
		}

		if err := t.store.Delete(pendingTransactionKey(txHash)); err != nil {
			t.logger.Errorf("unregister pending transaction %x: %v", txHash, err)
		}
	}()
}

func (t *transactionService) StoredTransaction(txHash common.Hash) (*StoredTransaction, error) {
	var tx StoredTransaction
	if err := t.store.Get(storedTransactionKey(txHash), &tx); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %x", ErrUnknownTransaction, txHash)
		}
		return nil, err
	}
	return &tx, nil
}

func (t *transactionService) WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	// only transactions sent by this service have a sender and nonce to
	// watch for
	stored, err := t.StoredTransaction(txHash)
	if err != nil {
		return nil, err
	}
	receiptC, errC, err := t.monitor.WatchTransaction(stored.From, txHash, stored.Nonce)
	if err != nil {
		return nil, err
	}

	select {
	case receipt := <-receiptC:
		return &receipt, nil
	case err := <-errC:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *transactionService) PendingTransactions() ([]common.Hash, error) {
	txHashes := make([]common.Hash, 0)
	err := t.store.Iterate(pendingTransactionPrefix, func(key, _ []byte) (bool, error) {
		txHashes = append(txHashes, common.HexToHash(strings.TrimPrefix(string(key), pendingTransactionPrefix)))
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return txHashes, nil
}

func (t *transactionService) Close() error {
	t.cancel()
	t.wg.Wait()
	return nil
}

// PrepareTransaction fills in the gas of request from backend and returns
// the transaction to sign with nonce. Estimated gas limits get a fifth on
// top.
func PrepareTransaction(ctx context.Context, request *TxRequest, from common.Address, backend Backend, nonce uint64) (*types.Transaction, error) {
	gasLimit := request.GasLimit
	if gasLimit == 0 {
		estimated, err := backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  from,
			To:    request.To,
			Data:  request.Data,
			Value: request.Value,
		})
		if err != nil {
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
		gasLimit = estimated + estimated/5
	}

	gasPrice := request.GasPrice
	if gasPrice == nil {
		suggested, err := backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest gas price: %w", err)
		}
		gasPrice = suggested
	}

	value := request.Value
	if value == nil {
		value = new(big.Int)
	}

	if request.To == nil {
		return types.NewContractCreation(nonce, value, gasLimit, gasPrice, request.Data), nil
	}
	return types.NewTransaction(nonce, *request.To, value, gasLimit, gasPrice, request.Data), nil
}

func storedTransactionKey(txHash common.Hash) string {
	return fmt.Sprintf("%s%x", storedTransactionPrefix, txHash)
}

func pendingTransactionKey(txHash common.Hash) string {
	return fmt.Sprintf("%s%x", pendingTransactionPrefix, txHash)
}
