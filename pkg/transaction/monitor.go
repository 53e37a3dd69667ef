// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transaction

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethersphere/price-discovery/pkg/logging"
)

var (
	ErrTransactionCancelled = errors.New("transaction cancelled")
	ErrMonitorClosed        = errors.New("monitor closed")
)

// Monitor resolves sent transactions by the nonce of their sender. A
// transaction is only looked up once the sender nonce passed it. If it has
// no receipt by then and the nonce was already passed cancellationDepth
// blocks ago, another transaction with the same nonce won and it is
// reported as cancelled.
type Monitor interface {
	io.Closer
	// WatchTransaction delivers the receipt of txHash or an error exactly
	// once on the returned channels.
	WatchTransaction(sender common.Address, txHash common.Hash, nonce uint64) (<-chan types.Receipt, <-chan error, error)
}

type watch struct {
	receiptC chan types.Receipt
	errC     chan error
	txHash   common.Hash
	nonce    uint64
}

type transactionMonitor struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger            logging.Logger
	backend           Backend
	pollingInterval   time.Duration
	cancellationDepth uint64

	mu      sync.Mutex
	watches map[common.Address]map[*watch]struct{}
	added   chan struct{}
}

func NewMonitor(logger logging.Logger, backend Backend, pollingInterval time.Duration, cancellationDepth uint64) Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	m := &transactionMonitor{
		ctx:               ctx,
		cancel:            cancel,
		logger:            logger,
		backend:           backend,
		pollingInterval:   pollingInterval,
		cancellationDepth: cancellationDepth,
		watches:           make(map[common.Address]map[*watch]struct{}),
		added:             make(chan struct{}, 1),
	}

	m.wg.Add(1)
	go m.run()

	return m
}

func (m *transactionMonitor) WatchTransaction(sender common.Address, txHash common.Hash, nonce uint64) (<-chan types.Receipt, <-chan error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Err() != nil {
		return nil, nil, ErrMonitorClosed
	}

	// buffered so that resolving never blocks the loop
	w := &watch{
		receiptC: make(chan types.Receipt, 1),
		errC:     make(chan error, 1),
		txHash:   txHash,
		nonce:    nonce,
	}
	if m.watches[sender] == nil {
		m.watches[sender] = make(map[*watch]struct{})
	}
	m.watches[sender][w] = struct{}{}

	select {
	case m.added <- struct{}{}:
	default:
	}

	m.logger.Tracef("watching transaction %x from %s with nonce %d", txHash, sender, nonce)
	return w.receiptC, w.errC, nil
}

func (m *transactionMonitor) run() {
	defer m.wg.Done()
	defer m.closeWatches()

	ticker := time.NewTicker(m.pollingInterval)
	defer ticker.Stop()

	var checked uint64
	for {
		force := false
		select {
		case <-m.added:
			force = true
		case <-ticker.C:
		case <-m.ctx.Done():
			return
		}

		senders := m.snapshot()
		if len(senders) == 0 {
			continue
		}

		block, err := m.backend.BlockNumber(m.ctx)
		if err != nil {
			m.logger.Errorf("monitor: block number: %v", err)
			continue
		}
		// nothing changed unless a block was mined or a new watch arrived
		if block <= checked && !force {
			continue
		}

		if err := m.check(block, senders); err != nil {
			m.logger.Tracef("monitor: check block %d: %v", block, err)
			continue
		}
		checked = block
	}
}

// snapshot copies the watches so that the backend is queried without
// holding the lock.
func (m *transactionMonitor) snapshot() map[common.Address][]*watch {
	m.mu.Lock()
	defer m.mu.Unlock()

	senders := make(map[common.Address][]*watch, len(m.watches))
	for sender, watches := range m.watches {
		for w := range watches {
			senders[sender] = append(senders[sender], w)
		}
	}
	return senders
}

type resolution struct {
	sender  common.Address
	watch   *watch
	receipt *types.Receipt
}

func (m *transactionMonitor) check(block uint64, senders map[common.Address][]*watch) error {
	var resolved []resolution
	for sender, watches := range senders {
		r, err := m.checkSender(block, sender, watches)
		if err != nil {
			return err
		}
		resolved = append(resolved, r...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range resolved {
		if r.receipt != nil {
			r.watch.receiptC <- *r.receipt
		} else {
			r.watch.errC <- ErrTransactionCancelled
		}
		delete(m.watches[r.sender], r.watch)
		if len(m.watches[r.sender]) == 0 {
			delete(m.watches, r.sender)
		}
	}
	return nil
}

// checkSender resolves the watches of sender whose nonce was used by block.
// A nil receipt in the result means cancelled.
func (m *transactionMonitor) checkSender(block uint64, sender common.Address, watches []*watch) ([]resolution, error) {
	nonce, err := m.backend.NonceAt(m.ctx, sender, new(big.Int).SetUint64(block))
	if err != nil {
		return nil, err
	}

	var (
		resolved []resolution
		missing  []*watch
	)
	for _, w := range watches {
		if w.nonce >= nonce {
			continue
		}
		receipt, err := m.backend.TransactionReceipt(m.ctx, w.txHash)
		switch {
		case receipt != nil:
			resolved = append(resolved, resolution{sender: sender, watch: w, receipt: receipt})
		case err == nil, errors.Is(err, ethereum.NotFound):
			// a reorg may still bring the transaction back
			missing = append(missing, w)
		default:
			return nil, err
		}
	}

	if len(missing) == 0 || block < m.cancellationDepth {
		return resolved, nil
	}
	final, err := m.backend.NonceAt(m.ctx, sender, new(big.Int).SetUint64(block-m.cancellationDepth))
	if err != nil {
		return nil, err
	}
	for _, w := range missing {
		if w.nonce < final {
			resolved = append(resolved, resolution{sender: sender, watch: w})
		}
	}
	return resolved, nil
}

func (m *transactionMonitor) closeWatches() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sender, watches := range m.watches {
		for w := range watches {
			w.errC <- ErrMonitorClosed
		}
		delete(m.watches, sender)
	}
}

func (m *transactionMonitor) Close() error {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()
	m.wg.Wait()
	return nil
}
