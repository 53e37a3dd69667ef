// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package backendsimulation provides an automining in-memory chain which
// executes contracts implemented in Go. Every accepted transaction is mined
// into a block of its own.
package backendsimulation

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethersphere/price-discovery/pkg/transaction"
)

const (
	txGas             uint64 = 21000
	txCreationGas     uint64 = 53000
	txDataZeroGas     uint64 = 4
	txDataNonZeroGas  uint64 = 16
	callGas           uint64 = 2600
	createGas         uint64 = 32000
	createCodeByteGas uint64 = 200
)

const (
	maxCallDepth         = 64
	defaultBlockTime     = 6
	defaultBlockGasLimit = 100000000
)

var (
	ErrNonceTooLow         = errors.New("nonce too low")
	ErrNonceTooHigh        = errors.New("nonce too high")
	ErrInsufficientFunds   = errors.New("insufficient funds for gas * price + value")
	ErrIntrinsicGas        = errors.New("intrinsic gas too low")
	ErrGasLimit            = errors.New("exceeds block gas limit")
	ErrAlreadyKnown        = errors.New("already known")
	ErrOutOfGas            = errors.New("out of gas")
	ErrDepth               = errors.New("max call depth exceeded")
	ErrInsufficientBalance = errors.New("insufficient balance for transfer")
	ErrInvalidCode         = errors.New("invalid contract code")
	ErrAddressCollision    = errors.New("contract address collision")
)

var _ transaction.Backend = (*Backend)(nil)

type registration struct {
	code    []byte
	factory Factory
}

// Backend is the simulated chain. It is safe for concurrent use.
type Backend struct {
	lock sync.Mutex

	chainID       *big.Int
	gasPrice      *big.Int
	blockGasLimit uint64
	blockTime     uint64
	genesisTime   uint64
	signer        types.Signer

	registrations []registration
	funds         map[common.Address]*big.Int

	states   []*world // state after each block
	headers  []*types.Header
	receipts map[common.Hash]*types.Receipt
}

type Option interface {
	apply(*Backend)
}

type optionFunc func(*Backend)

func (f optionFunc) apply(r *Backend) { f(r) }

func WithChainID(chainID *big.Int) Option {
	return optionFunc(func(b *Backend) {
		b.chainID = new(big.Int).Set(chainID)
	})
}

func WithGasPrice(gasPrice *big.Int) Option {
	return optionFunc(func(b *Backend) {
		b.gasPrice = new(big.Int).Set(gasPrice)
	})
}

func WithBlockGasLimit(limit uint64) Option {
	return optionFunc(func(b *Backend) {
		b.blockGasLimit = limit
	})
}

// WithBlockTime sets the number of seconds between two blocks.
func WithBlockTime(seconds uint64) Option {
	return optionFunc(func(b *Backend) {
		b.blockTime = seconds
	})
}

func WithGenesisTime(t time.Time) Option {
	return optionFunc(func(b *Backend) {
		b.genesisTime = uint64(t.Unix())
	})
}

// WithFunds credits the account with the amount in the genesis block.
func WithFunds(account common.Address, amount *big.Int) Option {
	return optionFunc(func(b *Backend) {
		balance, ok := b.funds[account]
		if !ok {
			balance = new(big.Int)
			b.funds[account] = balance
		}
		balance.Add(balance, amount)
	})
}

// WithContract registers the factory for creation data starting with code.
func WithContract(code []byte, factory Factory) Option {
	return optionFunc(func(b *Backend) {
		b.registrations = append(b.registrations, registration{
			code:    append([]byte(nil), code...),
			factory: factory,
		})
	})
}

func New(options ...Option) *Backend {
	b := &Backend{
		chainID:       big.NewInt(31337),
		gasPrice:      big.NewInt(1000000000),
		blockGasLimit: defaultBlockGasLimit,
		blockTime:     defaultBlockTime,
		genesisTime:   uint64(time.Now().Unix()),
		funds:         make(map[common.Address]*big.Int),
		receipts:      make(map[common.Hash]*types.Receipt),
	}
	for _, opt := range options {
		opt.apply(b)
	}

	b.signer = types.LatestSignerForChainID(b.chainID)

	genesis := newWorld()
	for account, amount := range b.funds {
		genesis.balances[account] = new(big.Int).Set(amount)
	}
	b.states = []*world{genesis}
	b.headers = []*types.Header{{
		Number:     new(big.Int),
		Difficulty: new(big.Int),
		GasLimit:   b.blockGasLimit,
		Time:       b.genesisTime,
	}}

	return b
}

func (b *Backend) latest() uint64 {
	return uint64(len(b.headers) - 1)
}

// stateAt returns the state after the given block, nil meaning the latest.
func (b *Backend) stateAt(blockNumber *big.Int) (*world, *types.Header, error) {
	if blockNumber == nil {
		n := b.latest()
		return b.states[n], b.headers[n], nil
	}
	if !blockNumber.IsUint64() || blockNumber.Uint64() > b.latest() {
		return nil, nil, ethereum.NotFound
	}
	n := blockNumber.Uint64()
	return b.states[n], b.headers[n], nil
}

func (b *Backend) nextHeader() *types.Header {
	parent := b.headers[b.latest()]
	return &types.Header{
		ParentHash: parent.Hash(),
		Number:     new(big.Int).Add(parent.Number, big.NewInt(1)),
		Difficulty: new(big.Int),
		GasLimit:   b.blockGasLimit,
		Time:       parent.Time + b.blockTime,
	}
}

func (b *Backend) mine(state *world, header *types.Header) {
	b.states = append(b.states, state)
	b.headers = append(b.headers, header)
}

// AdvanceBlocks mines n empty blocks.
func (b *Backend) AdvanceBlocks(n uint64) {
	b.lock.Lock()
	defer b.lock.Unlock()

	for i := uint64(0); i < n; i++ {
		b.mine(b.states[b.latest()], b.nextHeader())
	}
}

func (b *Backend) lookup(data []byte) (registration, []byte, bool) {
	var (
		found registration
		ok    bool
	)
	for _, r := range b.registrations {
		if len(r.code) > len(found.code) && bytes.HasPrefix(data, r.code) {
			found, ok = r, true
		}
	}
	if !ok {
		return registration{}, nil, false
	}
	return found, data[len(found.code):], true
}

func intrinsicGas(data []byte, creation bool) uint64 {
	gas := txGas
	if creation {
		gas = txCreationGas
	}
	for _, b := range data {
		if b == 0 {
			gas += txDataZeroGas
		} else {
			gas += txDataNonZeroGas
		}
	}
	return gas
}

func (b *Backend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	state, _, err := b.stateAt(blockNumber)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), state.code[contract]...), nil
}

// CallContract executes the call against the state after the given block and
// discards all changes.
func (b *Backend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	state, header, err := b.stateAt(blockNumber)
	if err != nil {
		return nil, err
	}

	ret, _, err := b.simulate(state, header, call)
	return ret, err
}

func (b *Backend) simulate(state *world, header *types.Header, call ethereum.CallMsg) ([]byte, uint64, error) {
	gasLimit := call.Gas
	if gasLimit == 0 {
		gasLimit = b.blockGasLimit
	}
	creation := call.To == nil

	tx := &txContext{
		backend: b,
		world:   state.copy(),
		header:  header,
		gas:     &gasMeter{limit: gasLimit},
	}
	if err := tx.gas.use(intrinsicGas(call.Data, creation)); err != nil {
		return nil, 0, ErrIntrinsicGas
	}

	var (
		ret []byte
		err error
	)
	if creation {
		nonce := tx.world.nonces[call.From]
		_, err = tx.create(call.From, nonce, call.Value, call.Data)
	} else {
		ret, err = tx.call(call.From, *call.To, call.Value, call.Data)
	}
	if err = tx.result(err); err != nil {
		return nil, tx.gas.used, err
	}
	return ret, tx.gas.used, nil
}

func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	// blocks are mined on submission so nothing is ever pending
	return b.NonceAt(ctx, account, nil)
}

func (b *Backend) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	state, _, err := b.stateAt(blockNumber)
	if err != nil {
		return 0, err
	}
	return state.nonces[account], nil
}

func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.gasPrice), nil
}

func (b *Backend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	state, _, _ := b.stateAt(nil)
	_, gasUsed, err := b.simulate(state, b.nextHeader(), call)
	if err != nil {
		return 0, err
	}
	return gasUsed, nil
}

// SendTransaction validates the transaction and mines it into a new block.
func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	sender, err := types.Sender(b.signer, tx)
	if err != nil {
		return err
	}

	if _, ok := b.receipts[tx.Hash()]; ok {
		return ErrAlreadyKnown
	}

	latest := b.states[b.latest()]

	nonce := latest.nonces[sender]
	if tx.Nonce() < nonce {
		return ErrNonceTooLow
	}
	if tx.Nonce() > nonce {
		return ErrNonceTooHigh
	}

	if tx.Gas() > b.blockGasLimit {
		return ErrGasLimit
	}
	intrinsic := intrinsicGas(tx.Data(), tx.To() == nil)
	if tx.Gas() < intrinsic {
		return ErrIntrinsicGas
	}

	fee := new(big.Int).Mul(new(big.Int).SetUint64(tx.Gas()), tx.GasPrice())
	cost := new(big.Int).Add(fee, tx.Value())
	if latest.balance(sender).Cmp(cost) < 0 {
		return ErrInsufficientFunds
	}

	b.apply(tx, sender, intrinsic, fee)
	return nil
}

func (b *Backend) apply(signedTx *types.Transaction, sender common.Address, intrinsic uint64, fee *big.Int) {
	base := b.states[b.latest()].copy()
	base.nonces[sender]++
	_ = base.subBalance(sender, fee)

	header := b.nextHeader()
	tx := &txContext{
		backend: b,
		world:   base.copy(),
		header:  header,
		gas:     &gasMeter{limit: signedTx.Gas(), used: intrinsic},
	}

	var (
		contractAddress common.Address
		err             error
	)
	if signedTx.To() == nil {
		contractAddress, err = tx.create(sender, signedTx.Nonce(), signedTx.Value(), signedTx.Data())
	} else {
		_, err = tx.call(sender, *signedTx.To(), signedTx.Value(), signedTx.Data())
	}
	err = tx.result(err)

	status := types.ReceiptStatusSuccessful
	final := tx.world
	if err != nil {
		status = types.ReceiptStatusFailed
		final = base
		if errors.Is(err, ErrOutOfGas) {
			tx.gas.used = tx.gas.limit
		}
	}

	refund := new(big.Int).Mul(new(big.Int).SetUint64(tx.gas.limit-tx.gas.used), signedTx.GasPrice())
	final.addBalance(sender, refund)

	logs := final.logs
	final.logs = nil

	receipt := &types.Receipt{
		Type:              signedTx.Type(),
		Status:            status,
		CumulativeGasUsed: tx.gas.used,
		GasUsed:           tx.gas.used,
		Logs:              logs,
		TxHash:            signedTx.Hash(),
		ContractAddress:   contractAddress,
		BlockNumber:       new(big.Int).Set(header.Number),
		TransactionIndex:  0,
	}
	receipt.Bloom = types.CreateBloom(types.Receipts{receipt})

	header.GasUsed = tx.gas.used
	header.Bloom = receipt.Bloom
	blockHash := header.Hash()

	receipt.BlockHash = blockHash
	for i, l := range logs {
		l.BlockNumber = header.Number.Uint64()
		l.BlockHash = blockHash
		l.TxHash = receipt.TxHash
		l.Index = uint(i)
	}

	b.receipts[receipt.TxHash] = receipt
	b.mine(final, header)
}

func (b *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	receipt, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	r := *receipt
	return &r, nil
}

func (b *Backend) BlockNumber(ctx context.Context) (uint64, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.latest(), nil
}

func (b *Backend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	_, header, err := b.stateAt(number)
	if err != nil {
		return nil, err
	}
	return types.CopyHeader(header), nil
}

func (b *Backend) BalanceAt(ctx context.Context, address common.Address, block *big.Int) (*big.Int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()

	state, _, err := b.stateAt(block)
	if err != nil {
		return nil, err
	}
	return state.balance(address), nil
}

func (b *Backend) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.chainID), nil
}
