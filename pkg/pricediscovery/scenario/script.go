// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scenario

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethersphere/price-discovery/pkg/airdrop"
	"github.com/ethersphere/price-discovery/pkg/contract"
	"github.com/ethersphere/price-discovery/pkg/esdt"
	"github.com/ethersphere/price-discovery/pkg/pricediscovery"
	"github.com/ethersphere/price-discovery/pkg/session"
	"golang.org/x/sync/errgroup"
)

// Session keys shared by the steps.
const (
	LaunchedTokenKey   = "launchedToken"
	ContractAddressKey = "contractAddress"
	LotteryTokenKey    = "lotteryToken"
)

const (
	LotteryName = "fooLottery"

	startBlockDelay     = 10
	phaseDurationBlocks = 100
)

var (
	ErrUnexpectedReturnCode = errors.New("unexpected return code")
	ErrUnexpectedValue      = errors.New("unexpected value")

	LaunchedToken = esdt.Token{
		Name:   "SoCoolWow",
		Ticker: "SOCOOLWOW",
		Supply: big.NewInt(100000000),
	}
	LotteryToken = esdt.Token{
		Name:   "FOO",
		Ticker: "FOO",
		Supply: big.NewInt(100000000),
	}
)

// Default returns the steps which issue the tokens, deploy the contract,
// fund the friends and drive a lottery through ticket sales.
func Default() []Step {
	return []Step{
		{Name: "issue launched token", Run: issueToken(LaunchedTokenKey, LaunchedToken)},
		{Name: "deploy", Run: deploy},
		{Name: "airdrop native", Run: airdropNative},
		{Name: "issue lottery token", Run: issueToken(LotteryTokenKey, LotteryToken)},
		{Name: "airdrop lottery token", Run: airdropLotteryToken},
		{Name: "start lottery", Run: startLottery},
		{Name: "get lottery info and status", Run: checkLotteryInfo},
		{Name: "get whitelist", Run: checkWhitelist},
		{Name: "buy tickets", Run: buyTickets},
	}
}

func expectOK(code contract.ReturnCode) error {
	if !code.IsSuccess() {
		return fmt.Errorf("%w: %s", ErrUnexpectedReturnCode, code)
	}
	return nil
}

func issueToken(key string, token esdt.Token) func(context.Context, *session.Session) error {
	return func(ctx context.Context, s *session.Session) error {
		if err := s.SyncNetworkConfig(ctx); err != nil {
			return err
		}
		if err := s.SyncAllUsers(ctx); err != nil {
			return err
		}

		tokens, err := esdt.NewInteractor(s.Logger(), s.Backend(), s.Controller(), s.ChainID(), s.Artifacts())
		if err != nil {
			return err
		}

		ctx, cancel := s.ExpectLongInteraction(ctx)
		defer cancel()

		issued, err := tokens.IssueToken(ctx, s.Users().Whale, token)
		if err != nil {
			return err
		}
		s.Logger().Infof("issued %s", issued.Identifier)
		return s.SaveToken(key, issued)
	}
}

// InitArguments are the deployment parameters of the default script.
func InitArguments(launchedTokenID string, currentBlock uint64) pricediscovery.InitArguments {
	minPrice := new(big.Int).Mul(big.NewInt(10), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	return pricediscovery.InitArguments{
		LaunchedTokenID:                  launchedTokenID,
		AcceptedTokenID:                  esdt.NativeIdentifier,
		ExtraRewardsTokenID:              esdt.NativeIdentifier,
		MinLaunchedTokenPrice:            minPrice,
		StartBlock:                       currentBlock + startBlockDelay,
		NoLimitPhaseDurationBlocks:       phaseDurationBlocks,
		LinearPenaltyPhaseDurationBlocks: phaseDurationBlocks,
		FixedPenaltyPhaseDurationBlocks:  phaseDurationBlocks,
		UnbondPeriodEpochs:               1,
		PenaltyMinPercentage:             pricediscovery.Percentage(10),
		PenaltyMaxPercentage:             pricediscovery.Percentage(50),
		FixedPenaltyPercentage:           pricediscovery.Percentage(25),
	}
}

func deploy(ctx context.Context, s *session.Session) error {
	launched, err := s.LoadToken(LaunchedTokenKey)
	if err != nil {
		return err
	}
	status, err := s.NetworkStatus(ctx)
	if err != nil {
		return err
	}

	interactor, err := pricediscovery.Load(s, common.Address{})
	if err != nil {
		return err
	}

	ctx, cancel := s.ExpectLongInteraction(ctx)
	defer cancel()

	address, code, err := interactor.Deploy(ctx, s.Users().Whale, InitArguments(launched.Identifier, status.BlockNumber))
	if err != nil {
		return err
	}
	if err := expectOK(code); err != nil {
		return err
	}
	s.Logger().Infof("price discovery deployed at %s", address)
	return s.SaveAddress(ContractAddressKey, address)
}

func newAirdrop(s *session.Session) *airdrop.Service {
	return airdrop.New(s.Logger(), s.Backend(), s.Controller(), s.ChainID(), airdrop.DefaultInterval, airdrop.DefaultBurst)
}

func airdropNative(ctx context.Context, s *session.Session) error {
	amount, err := esdt.NativeAmount("1")
	if err != nil {
		return err
	}
	_, err = newAirdrop(s).SendToEachUser(ctx, s.Users().Whale, s.Users().Friends(), esdt.NewPayment(esdt.Native(), amount))
	return err
}

func airdropLotteryToken(ctx context.Context, s *session.Session) error {
	token, err := s.LoadToken(LotteryTokenKey)
	if err != nil {
		return err
	}
	amount, err := esdt.CreateTokenAmount(token, "10")
	if err != nil {
		return err
	}
	_, err = newAirdrop(s).SendToEachUser(ctx, s.Users().Whale, s.Users().Friends(), esdt.NewPayment(token, amount))
	return err
}

func loadInteractor(s *session.Session) (*pricediscovery.Interactor, esdt.Token, error) {
	address, err := s.LoadAddress(ContractAddressKey)
	if err != nil {
		return nil, esdt.Token{}, err
	}
	token, err := s.LoadToken(LotteryTokenKey)
	if err != nil {
		return nil, esdt.Token{}, err
	}
	interactor, err := pricediscovery.Load(s, address)
	if err != nil {
		return nil, esdt.Token{}, err
	}
	return interactor, token, nil
}

func ticketPrice(token esdt.Token) (*big.Int, error) {
	return esdt.CreateTokenAmount(token, "1")
}

func startLottery(ctx context.Context, s *session.Session) error {
	interactor, token, err := loadInteractor(s)
	if err != nil {
		return err
	}
	price, err := ticketPrice(token)
	if err != nil {
		return err
	}

	code, err := interactor.Start(ctx, s.Users().Whale, LotteryName, token.Identifier, price, s.Users().AddressesOfFriends())
	if err != nil {
		return err
	}
	return expectOK(code)
}

func checkLotteryInfo(ctx context.Context, s *session.Session) error {
	interactor, token, err := loadInteractor(s)
	if err != nil {
		return err
	}

	info, err := interactor.GetLotteryInfo(ctx, LotteryName)
	if err != nil {
		return err
	}
	if id, _ := info.Field("token_identifier"); id != token.Identifier {
		return fmt.Errorf("%w: token_identifier is %v, want %s", ErrUnexpectedValue, id, token.Identifier)
	}

	status, err := interactor.GetStatus(ctx, LotteryName)
	if err != nil {
		return err
	}
	if status.String() != "Running" {
		return fmt.Errorf("%w: status is %s, want Running", ErrUnexpectedValue, status)
	}
	return nil
}

func checkWhitelist(ctx context.Context, s *session.Session) error {
	interactor, _, err := loadInteractor(s)
	if err != nil {
		return err
	}

	whitelist, err := interactor.GetWhitelist(ctx, LotteryName)
	if err != nil {
		return err
	}

	got := mapset.NewSet(whitelist...)
	want := mapset.NewSet(s.Users().AddressesOfFriends()...)
	if !got.Equal(want) {
		return fmt.Errorf("%w: whitelist %v, want %v", ErrUnexpectedValue, got, want)
	}
	return nil
}

func buyTickets(ctx context.Context, s *session.Session) error {
	interactor, token, err := loadInteractor(s)
	if err != nil {
		return err
	}
	price, err := ticketPrice(token)
	if err != nil {
		return err
	}

	friends := s.Users().Friends()
	if err := s.SyncUsers(ctx, friends...); err != nil {
		return err
	}

	codes := make([]contract.ReturnCode, len(friends))
	g, gctx := errgroup.WithContext(ctx)
	for i, friend := range friends {
		i, friend := i, friend
		g.Go(func() error {
			code, err := interactor.BuyTicket(gctx, friend, LotteryName, esdt.NewPayment(token, price))
			if err != nil {
				return fmt.Errorf("%s: %w", friend.Name, err)
			}
			codes[i] = code
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, code := range codes {
		if err := expectOK(code); err != nil {
			return fmt.Errorf("%s: %w", friends[i].Name, err)
		}
	}
	return nil
}
