// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package airdrop_test

import (
	"context"
	"errors"
	"io/ioutil"
	"math/big"
	"testing"
	"time"

	"github.com/ethersphere/price-discovery/pkg/airdrop"
	"github.com/ethersphere/price-discovery/pkg/artifacts"
	"github.com/ethersphere/price-discovery/pkg/contract"
	"github.com/ethersphere/price-discovery/pkg/esdt"
	"github.com/ethersphere/price-discovery/pkg/esdt/emulator"
	"github.com/ethersphere/price-discovery/pkg/logging"
	"github.com/ethersphere/price-discovery/pkg/session"
	"github.com/ethersphere/price-discovery/pkg/transaction/backendsimulation"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const artifactsRoot = "../.."

func newAirdrop(t *testing.T) (*session.Dev, *esdt.Interactor, *airdrop.Service) {
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

	logger := logging.New(ioutil.Discard, logrus.ErrorLevel)
	dev, err := session.NewDev(context.Background(), session.DevOptions{
		Logger:       logger,
		ArtifactsDir: artifactsRoot,
		Chain: []backendsimulation.Option{
			backendsimulation.WithContract(tokenCode, emulator.NewFactory(tokenABI)),
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

	return dev, interactor, airdrop.New(logger, dev.Backend(), dev.Controller(), dev.ChainID(), time.Millisecond, 2)
}

func TestSendNativeToEachUser(t *testing.T) {
	dev, interactor, service := newAirdrop(t)
	ctx := context.Background()

	amount, err := esdt.NativeAmount("1")
	if err != nil {
		t.Fatal(err)
	}
	friends := dev.Users().Friends()

	results, err := service.SendToEachUser(ctx, dev.Users().Whale, friends, esdt.NewPayment(esdt.Native(), amount))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(friends) {
		t.Fatalf("got %d results, want %d", len(results), len(friends))
	}

	for i, r := range results {
		if r.User != friends[i] {
			t.Fatalf("result %d belongs to %s", i, r.User.Name)
		}
		if r.ReturnCode != contract.ReturnCodeOK {
			t.Fatalf("%s: got return code %s", r.User.Name, r.ReturnCode)
		}
		balance, err := interactor.BalanceOf(ctx, esdt.Native(), r.User.Address)
		if err != nil {
			t.Fatal(err)
		}
		if balance.Cmp(amount) != 0 {
			t.Fatalf("%s: got balance %d, want %d", r.User.Name, balance, amount)
		}
	}

	if nonce := dev.Users().Whale.Account.Nonce(); nonce != uint64(len(friends)) {
		t.Fatalf("got whale nonce %d, want %d", nonce, len(friends))
	}
}

func TestSendTokenToEachUser(t *testing.T) {
	dev, interactor, service := newAirdrop(t)
	ctx := context.Background()

	token, err := interactor.IssueToken(ctx, dev.Users().Whale, esdt.Token{
		Name:   "FOO",
		Ticker: "FOO",
		Supply: big.NewInt(100000000),
	})
	if err != nil {
		t.Fatal(err)
	}

	amount, err := esdt.CreateTokenAmount(token, "10")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := service.SendToEachUser(ctx, dev.Users().Whale, dev.Users().Friends(), esdt.NewPayment(token, amount)); err != nil {
		t.Fatal(err)
	}

	for _, friend := range dev.Users().Friends() {
		balance, err := interactor.BalanceOf(ctx, token, friend.Address)
		if err != nil {
			t.Fatal(err)
		}
		if balance.Cmp(amount) != 0 {
			t.Fatalf("%s: got balance %d, want %d", friend.Name, balance, amount)
		}
	}
}

func TestSendToEachUserFailures(t *testing.T) {
	dev, interactor, service := newAirdrop(t)
	ctx := context.Background()

	token, err := interactor.IssueToken(ctx, dev.Users().Whale, esdt.Token{
		Name:   "FOO",
		Ticker: "FOO",
		Supply: big.NewInt(5),
	})
	if err != nil {
		t.Fatal(err)
	}

	friends := dev.Users().Friends()
	results, err := service.SendToEachUser(ctx, dev.Users().Whale, friends, esdt.NewPayment(token, big.NewInt(2)))
	if !errors.Is(err, airdrop.ErrAirdropFailed) {
		t.Fatalf("got error %v, want %v", err, airdrop.ErrAirdropFailed)
	}

	// the supply covers two of the three friends
	want := []contract.ReturnCode{contract.ReturnCodeOK, contract.ReturnCodeOK, contract.ReturnCodeOutOfFunds}
	for i, r := range results {
		if r.ReturnCode != want[i] {
			t.Fatalf("%s: got return code %s, want %s", r.User.Name, r.ReturnCode, want[i])
		}
	}
}

func TestSendToEachUserCancelled(t *testing.T) {
	dev, _, service := newAirdrop(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.SendToEachUser(ctx, dev.Users().Whale, dev.Users().Friends(), esdt.NewPayment(esdt.Native(), big.NewInt(1)))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got error %v, want %v", err, context.Canceled)
	}
}
