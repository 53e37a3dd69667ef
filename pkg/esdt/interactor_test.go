// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package esdt_test

import (
	"context"
	"errors"
	"io/ioutil"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethersphere/price-discovery/pkg/artifacts"
	"github.com/ethersphere/price-discovery/pkg/contract"
	"github.com/ethersphere/price-discovery/pkg/esdt"
	"github.com/ethersphere/price-discovery/pkg/esdt/emulator"
	"github.com/ethersphere/price-discovery/pkg/logging"
	"github.com/ethersphere/price-discovery/pkg/session"
	"github.com/ethersphere/price-discovery/pkg/transaction"
	"github.com/ethersphere/price-discovery/pkg/transaction/backendsimulation"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const artifactsRoot = "../.."

const receiverABIJSON = `[
	{"type":"function","name":"onTokenTransfer","inputs":[{"name":"from","type":"address"},{"name":"amount","type":"uint256"},{"name":"data","type":"bytes"}],"outputs":[{"name":"","type":"bool"}]}
]`

var receiverCode = []byte("receiver")

// receiver accepts token transfers unless the attached data is "reject".
type receiver struct {
	abi      abi.ABI
	received *big.Int
	last     []byte
}

func (r *receiver) Clone() backendsimulation.Contract {
	return &receiver{abi: r.abi, received: new(big.Int).Set(r.received), last: r.last}
}

func (r *receiver) Call(env backendsimulation.Env, input []byte) ([]byte, error) {
	method, err := r.abi.MethodById(input[:4])
	if err != nil {
		return nil, backendsimulation.Revert("function not found")
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, err
	}
	data := args[2].([]byte)
	r.received.Add(r.received, args[1].(*big.Int))
	r.last = data
	return method.Outputs.Pack(string(data) != "reject")
}

func newTokenSession(t *testing.T) (*session.Dev, *esdt.Interactor) {
	t.Helper()

	loader := artifacts.New(afero.NewOsFs(), artifactsRoot)
	tokenABI, err := loader.ABI(artifacts.ESDTABI)
	if err != nil {
		t.Fatal(err)
	}
	tokenCode, err := loader.Code(artifacts.ESDTCode)
	if err != nil {
		t.Fatal(err)
	}
	receiverABI := transaction.MustParseABI(receiverABIJSON)

	logger := logging.New(ioutil.Discard, logrus.ErrorLevel)
	dev, err := session.NewDev(context.Background(), session.DevOptions{
		Logger:       logger,
		Friends:      []string{"alice"},
		ArtifactsDir: artifactsRoot,
		Chain: []backendsimulation.Option{
			backendsimulation.WithContract(tokenCode, emulator.NewFactory(tokenABI)),
			backendsimulation.WithContract(receiverCode, func(env backendsimulation.Env, args []byte) (backendsimulation.Contract, error) {
				return &receiver{abi: receiverABI, received: new(big.Int)}, nil
			}),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { dev.Close() })

	interactor, err := esdt.NewInteractor(logger, dev.Backend(), dev.Controller(), dev.ChainID(), dev.Artifacts())
	if err != nil {
		t.Fatal(err)
	}
	return dev, interactor
}

func issueFoo(t *testing.T, dev *session.Dev, interactor *esdt.Interactor) esdt.Token {
	t.Helper()
	token, err := interactor.IssueToken(context.Background(), dev.Users().Whale, esdt.Token{
		Name:   "FOO",
		Ticker: "FOO",
		Supply: big.NewInt(100000000),
	})
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func execute(t *testing.T, dev *session.Dev, request *transaction.TxRequest) contract.Bundle {
	t.Helper()
	ctx := context.Background()
	whale := dev.Users().Whale
	signedTx, err := whale.SignRequest(ctx, dev.Backend(), dev.ChainID(), request)
	if err != nil {
		t.Fatal(err)
	}
	var bundle *contract.Bundle
	if request.To == nil {
		bundle, err = dev.Controller().Deploy(ctx, signedTx)
	} else {
		bundle, err = dev.Controller().Execute(ctx, signedTx)
	}
	if err != nil {
		t.Fatal(err)
	}
	return *bundle
}

func TestIssueToken(t *testing.T) {
	dev, interactor := newTokenSession(t)
	ctx := context.Background()

	token := issueFoo(t, dev, interactor)

	if want := emulator.Identifier("FOO", token.Address); token.Identifier != want {
		t.Fatalf("got identifier %s, want %s", token.Identifier, want)
	}
	if token.Address == (common.Address{}) {
		t.Fatal("no token address")
	}

	balance, err := interactor.BalanceOf(ctx, token, dev.Users().Whale.Address)
	if err != nil {
		t.Fatal(err)
	}
	if balance.Cmp(big.NewInt(100000000)) != 0 {
		t.Fatalf("got balance %d", balance)
	}

	second := issueFoo(t, dev, interactor)
	if second.Identifier == token.Identifier {
		t.Fatalf("identifier %s issued twice", token.Identifier)
	}
}

func TestIssueNativeRejected(t *testing.T) {
	dev, interactor := newTokenSession(t)

	_, err := interactor.IssueToken(context.Background(), dev.Users().Whale, esdt.Native())
	if !errors.Is(err, esdt.ErrIssueFailed) {
		t.Fatalf("got error %v, want %v", err, esdt.ErrIssueFailed)
	}
	if nonce := dev.Users().Whale.Account.Nonce(); nonce != 0 {
		t.Fatalf("nonce advanced to %d", nonce)
	}
}

func TestTransfer(t *testing.T) {
	dev, interactor := newTokenSession(t)
	ctx := context.Background()
	alice := dev.Users().Friends()[0]

	token := issueFoo(t, dev, interactor)

	request, err := esdt.TransferRequest(esdt.NewPayment(token, big.NewInt(10)), alice.Address)
	if err != nil {
		t.Fatal(err)
	}
	if bundle := execute(t, dev, request); !bundle.ReturnCode.IsSuccess() {
		t.Fatalf("transfer failed: %s %s", bundle.ReturnCode, bundle.Message)
	}

	balance, err := interactor.BalanceOf(ctx, token, alice.Address)
	if err != nil {
		t.Fatal(err)
	}
	if balance.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("got balance %d, want 10", balance)
	}

	request, err = esdt.TransferRequest(esdt.NewPayment(token, big.NewInt(200000000)), alice.Address)
	if err != nil {
		t.Fatal(err)
	}
	bundle := execute(t, dev, request)
	if bundle.ReturnCode != contract.ReturnCodeOutOfFunds {
		t.Fatalf("got return code %s, want %s", bundle.ReturnCode, contract.ReturnCodeOutOfFunds)
	}
}

func TestNativeTransfer(t *testing.T) {
	dev, interactor := newTokenSession(t)
	ctx := context.Background()
	alice := dev.Users().Friends()[0]

	amount, err := esdt.NativeAmount("1")
	if err != nil {
		t.Fatal(err)
	}
	request, err := esdt.TransferRequest(esdt.NewPayment(esdt.Native(), amount), alice.Address)
	if err != nil {
		t.Fatal(err)
	}
	if bundle := execute(t, dev, request); !bundle.ReturnCode.IsSuccess() {
		t.Fatalf("transfer failed: %s %s", bundle.ReturnCode, bundle.Message)
	}

	balance, err := interactor.BalanceOf(ctx, esdt.Native(), alice.Address)
	if err != nil {
		t.Fatal(err)
	}
	if balance.Cmp(amount) != 0 {
		t.Fatalf("got balance %d, want %d", balance, amount)
	}
}

func TestCallRequest(t *testing.T) {
	dev, interactor := newTokenSession(t)
	ctx := context.Background()

	token := issueFoo(t, dev, interactor)

	deployed := execute(t, dev, &transaction.TxRequest{Data: receiverCode, GasLimit: 1000000})
	if !deployed.ReturnCode.IsSuccess() {
		t.Fatalf("deploy failed: %s %s", deployed.ReturnCode, deployed.Message)
	}
	receiverAddress := deployed.Receipt.ContractAddress

	request, err := interactor.CallRequest(esdt.NewPayment(token, big.NewInt(3)), receiverAddress, []byte("hello"), 1000000)
	if err != nil {
		t.Fatal(err)
	}
	if *request.To != token.Address {
		t.Fatalf("token payment addressed to %s", request.To)
	}
	if bundle := execute(t, dev, request); !bundle.ReturnCode.IsSuccess() {
		t.Fatalf("call failed: %s %s", bundle.ReturnCode, bundle.Message)
	}

	balance, err := interactor.BalanceOf(ctx, token, receiverAddress)
	if err != nil {
		t.Fatal(err)
	}
	if balance.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("got balance %d, want 3", balance)
	}

	request, err = interactor.CallRequest(esdt.NewPayment(token, big.NewInt(3)), receiverAddress, []byte("reject"), 1000000)
	if err != nil {
		t.Fatal(err)
	}
	if bundle := execute(t, dev, request); bundle.ReturnCode != contract.ReturnCodeUserError {
		t.Fatalf("got return code %s, want %s", bundle.ReturnCode, contract.ReturnCodeUserError)
	}

	balance, err = interactor.BalanceOf(ctx, token, receiverAddress)
	if err != nil {
		t.Fatal(err)
	}
	if balance.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("rejected transfer moved tokens: got balance %d", balance)
	}
}

func TestNativeCallRequest(t *testing.T) {
	_, interactor := newTokenSession(t)
	to := common.HexToAddress("0x01")

	request, err := interactor.CallRequest(esdt.NewPayment(esdt.Native(), big.NewInt(5)), to, []byte{1, 2}, 42)
	if err != nil {
		t.Fatal(err)
	}
	if *request.To != to || request.Value.Cmp(big.NewInt(5)) != 0 || request.GasLimit != 42 {
		t.Fatalf("unexpected request %+v", request)
	}
}
