// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package contract_test

import (
	"context"
	"errors"
	"io/ioutil"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethersphere/price-discovery/pkg/contract"
	"github.com/ethersphere/price-discovery/pkg/crypto"
	"github.com/ethersphere/price-discovery/pkg/logging"
	storemock "github.com/ethersphere/price-discovery/pkg/statestore/mock"
	"github.com/ethersphere/price-discovery/pkg/transaction"
	"github.com/ethersphere/price-discovery/pkg/transaction/backendsimulation"
	"github.com/sirupsen/logrus"
)

const storeABIJSON = `[
	{"type":"function","name":"set","inputs":[{"name":"value","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"get","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"fail","inputs":[],"outputs":[]},
	{"type":"function","name":"burn","inputs":[],"outputs":[]}
]`

var (
	storeCode = []byte("store")
	chainID   = big.NewInt(9)
)

type store struct {
	abi   abi.ABI
	value *big.Int
}

func (s *store) Clone() backendsimulation.Contract {
	return &store{abi: s.abi, value: new(big.Int).Set(s.value)}
}

func (s *store) Call(env backendsimulation.Env, input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, backendsimulation.Revert("function not found")
	}
	method, err := s.abi.MethodById(input[:4])
	if err != nil {
		return nil, backendsimulation.Revert("function not found")
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, err
	}
	switch method.Name {
	case "set":
		s.value = args[0].(*big.Int)
		return nil, nil
	case "get":
		return method.Outputs.Pack(s.value)
	case "fail":
		return nil, backendsimulation.Revert("nope")
	case "burn":
		return nil, env.UseGas(1 << 40)
	}
	return nil, backendsimulation.Revert("function not found")
}

type fixture struct {
	controller contract.Controller
	backend    *backendsimulation.Backend
	txService  transaction.Service
	logger     logging.Logger
	signer     crypto.Signer
	sender     common.Address
	abi        abi.ABI
	nonce      uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := logging.New(ioutil.Discard, logrus.ErrorLevel)
	storeABI := transaction.MustParseABI(storeABIJSON)

	key, err := crypto.GenerateSecp256k1Key()
	if err != nil {
		t.Fatal(err)
	}
	signer := crypto.NewDefaultSigner(key)
	sender, err := signer.EthereumAddress()
	if err != nil {
		t.Fatal(err)
	}

	backend := backendsimulation.New(
		backendsimulation.WithChainID(chainID),
		backendsimulation.WithFunds(sender, new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil)),
		backendsimulation.WithContract(storeCode, func(env backendsimulation.Env, args []byte) (backendsimulation.Contract, error) {
			return &store{abi: storeABI, value: new(big.Int)}, nil
		}),
	)

	monitor := transaction.NewMonitor(logger, backend, 10*time.Millisecond, 2)
	t.Cleanup(func() { monitor.Close() })

	stateStore := storemock.NewStateStore()
	txService, err := transaction.NewService(logger, backend, stateStore, chainID, monitor)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { txService.Close() })

	return &fixture{
		controller: contract.NewController(logger, backend, txService),
		backend:    backend,
		txService:  txService,
		logger:     logger,
		signer:     signer,
		sender:     sender,
		abi:        storeABI,
	}
}

func (f *fixture) sign(t *testing.T, to *common.Address, data []byte, gasLimit uint64) *types.Transaction {
	t.Helper()
	tx, err := transaction.PrepareTransaction(context.Background(), &transaction.TxRequest{
		To:       to,
		Data:     data,
		GasLimit: gasLimit,
	}, f.sender, f.backend, f.nonce)
	if err != nil {
		t.Fatal(err)
	}
	f.nonce++
	signedTx, err := f.signer.SignTx(tx, chainID)
	if err != nil {
		t.Fatal(err)
	}
	return signedTx
}

func (f *fixture) deploy(t *testing.T) contract.Handle {
	t.Helper()
	bundle, err := f.controller.Deploy(context.Background(), f.sign(t, nil, storeCode, 1000000))
	if err != nil {
		t.Fatal(err)
	}
	if !bundle.ReturnCode.IsSuccess() {
		t.Fatalf("deployment failed: %s %s", bundle.ReturnCode, bundle.Message)
	}
	return contract.Handle{Address: bundle.Receipt.ContractAddress, ABI: f.abi}
}

func (f *fixture) execute(t *testing.T, handle contract.Handle, data []byte, gasLimit uint64) *contract.Bundle {
	t.Helper()
	bundle, err := f.controller.Execute(context.Background(), f.sign(t, &handle.Address, data, gasLimit))
	if err != nil {
		t.Fatal(err)
	}
	return bundle
}

func pack(t *testing.T, a abi.ABI, method string, args ...interface{}) []byte {
	t.Helper()
	data, err := a.Pack(method, args...)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestExecute(t *testing.T) {
	f := newFixture(t)
	handle := f.deploy(t)

	bundle := f.execute(t, handle, pack(t, f.abi, "set", big.NewInt(7)), 100000)
	if bundle.ReturnCode != contract.ReturnCodeOK {
		t.Fatalf("got wrong return code. wanted %s, got %s: %s", contract.ReturnCodeOK, bundle.ReturnCode, bundle.Message)
	}

	response, err := f.controller.Query(context.Background(), handle, "get")
	if err != nil {
		t.Fatal(err)
	}
	if response.ReturnCode != contract.ReturnCodeOK {
		t.Fatalf("got wrong return code. wanted %s, got %s", contract.ReturnCodeOK, response.ReturnCode)
	}
	if len(response.Values) != 1 || response.Values[0].(*big.Int).Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("got wrong values %v", response.Values)
	}
}

func TestExecuteFailures(t *testing.T) {
	f := newFixture(t)
	handle := f.deploy(t)

	for _, tc := range []struct {
		name     string
		data     []byte
		gasLimit uint64
		code     contract.ReturnCode
		message  string
	}{
		{
			name:     "revert",
			data:     pack(t, f.abi, "fail"),
			gasLimit: 100000,
			code:     contract.ReturnCodeUserError,
			message:  "nope",
		},
		{
			name:     "out of gas",
			data:     pack(t, f.abi, "burn"),
			gasLimit: 100000,
			code:     contract.ReturnCodeOutOfGas,
			message:  "not enough gas",
		},
		{
			name:     "unknown function",
			data:     common.FromHex("0xdeadbeef"),
			gasLimit: 100000,
			code:     contract.ReturnCodeFunctionNotFound,
			message:  "function not found",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			bundle := f.execute(t, handle, tc.data, tc.gasLimit)
			if bundle.ReturnCode != tc.code {
				t.Fatalf("got wrong return code. wanted %s, got %s", tc.code, bundle.ReturnCode)
			}
			if bundle.Message != tc.message {
				t.Fatalf("got wrong message. wanted %q, got %q", tc.message, bundle.Message)
			}
			if bundle.ReturnCode.IsSuccess() {
				t.Fatal("failure reported as success")
			}
		})
	}
}

func TestDeployDistinctAddresses(t *testing.T) {
	f := newFixture(t)
	first := f.deploy(t)
	second := f.deploy(t)
	if first.Address == second.Address {
		t.Fatalf("deployments share address %x", first.Address)
	}
}

func TestDeployWithRecipient(t *testing.T) {
	f := newFixture(t)
	to := common.HexToAddress("0x1")
	_, err := f.controller.Deploy(context.Background(), f.sign(t, &to, storeCode, 1000000))
	if !errors.Is(err, contract.ErrInvalidArguments) {
		t.Fatalf("got wrong error. wanted %v, got %v", contract.ErrInvalidArguments, err)
	}
}

func TestQuery(t *testing.T) {
	f := newFixture(t)
	handle := f.deploy(t)

	t.Run("unknown method", func(t *testing.T) {
		response, err := f.controller.Query(context.Background(), handle, "missing")
		if err != nil {
			t.Fatal(err)
		}
		if response.ReturnCode != contract.ReturnCodeFunctionNotFound {
			t.Fatalf("got wrong return code. wanted %s, got %s", contract.ReturnCodeFunctionNotFound, response.ReturnCode)
		}
	})

	t.Run("revert", func(t *testing.T) {
		response, err := f.controller.Query(context.Background(), handle, "fail")
		if err != nil {
			t.Fatal(err)
		}
		if response.ReturnCode != contract.ReturnCodeUserError || response.Message != "nope" {
			t.Fatalf("got wrong response %s %q", response.ReturnCode, response.Message)
		}
	})

	t.Run("bad arguments", func(t *testing.T) {
		_, err := f.controller.Query(context.Background(), handle, "set", "seven")
		if !errors.Is(err, contract.ErrInvalidArguments) {
			t.Fatalf("got wrong error. wanted %v, got %v", contract.ErrInvalidArguments, err)
		}
	})
}

func TestSubmitAwait(t *testing.T) {
	f := newFixture(t)
	handle := f.deploy(t)
	ctx := context.Background()

	var hashes []common.Hash
	for _, data := range [][]byte{
		pack(t, f.abi, "set", big.NewInt(1)),
		pack(t, f.abi, "fail"),
		pack(t, f.abi, "set", big.NewInt(2)),
	} {
		txHash, err := f.controller.Submit(ctx, f.sign(t, &handle.Address, data, 100000))
		if err != nil {
			t.Fatal(err)
		}
		hashes = append(hashes, txHash)
	}

	var codes []contract.ReturnCode
	for _, txHash := range hashes {
		bundle, err := f.controller.Await(ctx, txHash)
		if err != nil {
			t.Fatal(err)
		}
		codes = append(codes, bundle.ReturnCode)
	}

	want := []contract.ReturnCode{contract.ReturnCodeOK, contract.ReturnCodeUserError, contract.ReturnCodeOK}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("transaction %d: got return code %s, want %s", i, codes[i], want[i])
		}
	}

	if _, err := f.controller.Await(ctx, common.HexToHash("0x01")); !errors.Is(err, transaction.ErrUnknownTransaction) {
		t.Fatalf("got error %v, want %v", err, transaction.ErrUnknownTransaction)
	}
}

// unreachableReplay fails every call made to classify a failed transaction.
type unreachableReplay struct {
	*backendsimulation.Backend
	err error
}

func (b unreachableReplay) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return nil, b.err
}

func TestExecuteReplayError(t *testing.T) {
	f := newFixture(t)
	handle := f.deploy(t)

	errUnreachable := errors.New("connection refused")
	controller := contract.NewController(f.logger, unreachableReplay{Backend: f.backend, err: errUnreachable}, f.txService)

	bundle, err := controller.Execute(context.Background(), f.sign(t, &handle.Address, pack(t, f.abi, "fail"), 100000))
	if !errors.Is(err, errUnreachable) {
		t.Fatalf("got error %v, want %v", err, errUnreachable)
	}
	if bundle != nil {
		t.Fatalf("got bundle %s %q, want none", bundle.ReturnCode, bundle.Message)
	}
}
