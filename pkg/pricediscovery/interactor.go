// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pricediscovery interacts with a deployed price discovery contract
// and the lottery it hosts.
package pricediscovery

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethersphere/price-discovery/pkg/account"
	"github.com/ethersphere/price-discovery/pkg/artifacts"
	"github.com/ethersphere/price-discovery/pkg/contract"
	"github.com/ethersphere/price-discovery/pkg/esdt"
	"github.com/ethersphere/price-discovery/pkg/logging"
	"github.com/ethersphere/price-discovery/pkg/sctx"
	"github.com/ethersphere/price-discovery/pkg/session"
	"github.com/ethersphere/price-discovery/pkg/transaction"
)

const (
	deployGasLimit    uint64 = 60000000
	startGasLimit     uint64 = 20000000
	buyTicketGasLimit uint64 = 50000000
	defaultGasLimit   uint64 = 10000000
)

var (
	ErrNoContract = errors.New("no contract address")
	errDecodeABI  = errors.New("could not decode abi data")
)

// Withdrawal is the outcome of a successful withdrawal.
type Withdrawal struct {
	User    common.Address
	TokenID string   `abi:"token_id"`
	Amount  *big.Int `abi:"amount"`
	Penalty *big.Int `abi:"penalty"`
}

// Payout is a transfer made by the contract to a user.
type Payout struct {
	User    common.Address
	TokenID string   `abi:"token_id"`
	Amount  *big.Int `abi:"amount"`
}

// Winner is a lottery prize.
type Winner struct {
	Winner      common.Address
	LotteryName []byte   `abi:"lottery_name"`
	Prize       *big.Int `abi:"prize"`
}

// Interactor builds, signs and submits the interactions with one deployed
// contract.
type Interactor struct {
	logger     logging.Logger
	session    *session.Session
	controller contract.Controller
	esdt       *esdt.Interactor
	abi        abi.ABI
	code       []byte
	address    common.Address
}

func NewInteractor(s *session.Session, controller contract.Controller, loader *artifacts.Loader, address common.Address) (*Interactor, error) {
	contractABI, err := loader.ABI(artifacts.PriceDiscoveryABI)
	if err != nil {
		return nil, err
	}
	code, err := loader.Code(artifacts.PriceDiscoveryCode)
	if err != nil {
		return nil, err
	}
	tokens, err := esdt.NewInteractor(s.Logger(), s.Backend(), controller, s.ChainID(), loader)
	if err != nil {
		return nil, err
	}
	return &Interactor{
		logger:     s.Logger(),
		session:    s,
		controller: controller,
		esdt:       tokens,
		abi:        contractABI,
		code:       code,
		address:    address,
	}, nil
}

// Load creates an interactor from the session artifacts.
func Load(s *session.Session, address common.Address) (*Interactor, error) {
	return NewInteractor(s, s.Controller(), s.Artifacts(), address)
}

func (i *Interactor) Address() common.Address {
	return i.address
}

// At returns an interactor for the contract at address.
func (i *Interactor) At(address common.Address) *Interactor {
	c := *i
	c.address = address
	return &c
}

func (i *Interactor) handle() contract.Handle {
	return contract.Handle{Address: i.address, ABI: i.abi}
}

// Deploy deploys a new contract. The address is derived from the deployer
// and the nonce assigned to the deployment and is returned even if the
// deployment fails on chain.
func (i *Interactor) Deploy(ctx context.Context, deployer *account.TestUser, args InitArguments) (common.Address, contract.ReturnCode, error) {
	if err := args.Validate(); err != nil {
		return common.Address{}, "", err
	}

	packed, err := i.abi.Pack("", args.constructorArgs()...)
	if err != nil {
		return common.Address{}, "", err
	}

	signedTx, err := i.sign(ctx, deployer, &transaction.TxRequest{
		Data:     append(append([]byte(nil), i.code...), packed...),
		GasLimit: sctx.GetGasLimitWithDefault(ctx, deployGasLimit),
	})
	if err != nil {
		return common.Address{}, "", err
	}
	address := crypto.CreateAddress(deployer.Address, signedTx.Nonce())

	bundle, err := i.controller.Deploy(ctx, signedTx)
	if err != nil {
		return common.Address{}, "", err
	}

	i.logger.Debugf("price discovery deployed at %s: %s", address, bundle.ReturnCode)
	return address, bundle.ReturnCode, nil
}

// Start starts the named lottery selling tickets in the token with at
// most one entry per user. Only whitelisted users may buy tickets.
func (i *Interactor) Start(ctx context.Context, owner *account.TestUser, name, tokenIdentifier string, price *big.Int, whitelist []common.Address) (contract.ReturnCode, error) {
	return i.StartWithOptions(ctx, owner, name, tokenIdentifier, price, LotteryOptions{
		MaxEntriesPerUser: Uint32(1),
		Whitelist:         whitelist,
	})
}

func (i *Interactor) StartWithOptions(ctx context.Context, owner *account.TestUser, name, tokenIdentifier string, price *big.Int, o LotteryOptions) (contract.ReturnCode, error) {
	bundle, err := i.call(ctx, owner, startGasLimit, "start", o.startArgs(name, tokenIdentifier, price)...)
	if err != nil {
		return "", err
	}
	return bundle.ReturnCode, nil
}

// BuyTicket buys a ticket of the named lottery paying amount.
func (i *Interactor) BuyTicket(ctx context.Context, user *account.TestUser, name string, amount esdt.Payment) (contract.ReturnCode, error) {
	i.logger.Tracef("buy ticket: %s pays %s", user.Address, amount)
	bundle, err := i.callWithPayment(ctx, user, buyTicketGasLimit, amount, "buy_ticket", []byte(name))
	if err != nil {
		return "", err
	}
	return bundle.ReturnCode, nil
}

// DetermineWinner pays the prizes of an ended lottery.
func (i *Interactor) DetermineWinner(ctx context.Context, caller *account.TestUser, name string) ([]Winner, contract.ReturnCode, error) {
	bundle, err := i.call(ctx, caller, defaultGasLimit, "determine_winner", []byte(name))
	if err != nil {
		return nil, "", err
	}
	if !bundle.ReturnCode.IsSuccess() {
		return nil, bundle.ReturnCode, nil
	}

	event := i.abi.Events["WinnerSelected"]
	var winners []Winner
	for _, log := range transaction.FindEvents(bundle.Receipt, i.address, event) {
		var w Winner
		if err := transaction.ParseEvent(&i.abi, event.Name, &w, *log); err != nil {
			return nil, "", err
		}
		winners = append(winners, w)
	}
	return winners, bundle.ReturnCode, nil
}

func (i *Interactor) UserDeposit(ctx context.Context, user *account.TestUser, payment esdt.Payment) (contract.ReturnCode, error) {
	bundle, err := i.callWithPayment(ctx, user, defaultGasLimit, payment, "userDeposit")
	if err != nil {
		return "", err
	}
	return bundle.ReturnCode, nil
}

// UserWithdraw withdraws amount of the deposit in the token. The returned
// withdrawal is nil unless the return code is ok.
func (i *Interactor) UserWithdraw(ctx context.Context, user *account.TestUser, tokenID string, amount *big.Int) (*Withdrawal, contract.ReturnCode, error) {
	bundle, err := i.call(ctx, user, defaultGasLimit, "userWithdraw", tokenID, amount)
	if err != nil {
		return nil, "", err
	}
	if !bundle.ReturnCode.IsSuccess() {
		return nil, bundle.ReturnCode, nil
	}

	var w Withdrawal
	if err := transaction.FindSingleEvent(&i.abi, bundle.Receipt, i.address, i.abi.Events["UserWithdraw"], &w); err != nil {
		return nil, "", err
	}
	return &w, bundle.ReturnCode, nil
}

// Redeem claims what the user is owed once the redeem phase started.
func (i *Interactor) Redeem(ctx context.Context, user *account.TestUser) ([]Payout, contract.ReturnCode, error) {
	bundle, err := i.call(ctx, user, defaultGasLimit, "redeem")
	if err != nil {
		return nil, "", err
	}
	if !bundle.ReturnCode.IsSuccess() {
		return nil, bundle.ReturnCode, nil
	}

	event := i.abi.Events["Redeem"]
	var payouts []Payout
	for _, log := range transaction.FindEvents(bundle.Receipt, i.address, event) {
		var p Payout
		if err := transaction.ParseEvent(&i.abi, event.Name, &p, *log); err != nil {
			return nil, "", err
		}
		payouts = append(payouts, p)
	}
	return payouts, bundle.ReturnCode, nil
}

func (i *Interactor) AddUsersToWhitelist(ctx context.Context, owner *account.TestUser, users []common.Address) (contract.ReturnCode, error) {
	bundle, err := i.call(ctx, owner, defaultGasLimit, "addUsersToWhitelist", users)
	if err != nil {
		return "", err
	}
	return bundle.ReturnCode, nil
}

func (i *Interactor) IsUserWhitelisted(ctx context.Context, user common.Address) (bool, error) {
	values, err := i.query(ctx, "isUserWhitelisted", user)
	if err != nil {
		return false, err
	}
	whitelisted, ok := values[0].(bool)
	if !ok {
		return false, errDecodeABI
	}
	return whitelisted, nil
}

func (i *Interactor) GetCurrentPhase(ctx context.Context) (Phase, error) {
	values, err := i.query(ctx, "getCurrentPhase")
	if err != nil {
		return Phase{}, err
	}
	kind, ok := values[0].(uint8)
	if !ok {
		return Phase{}, errDecodeABI
	}
	penalty, ok := values[1].(*big.Int)
	if !ok {
		return Phase{}, errDecodeABI
	}
	return Phase{Kind: PhaseKind(kind), PenaltyPercentage: penalty}, nil
}

// GetDepositBalances returns the launched and accepted tokens held for
// depositors.
func (i *Interactor) GetDepositBalances(ctx context.Context) (launched, accepted *big.Int, err error) {
	values, err := i.query(ctx, "getDepositBalances")
	if err != nil {
		return nil, nil, err
	}
	return twoAmounts(values)
}

func (i *Interactor) GetUserDeposit(ctx context.Context, user common.Address) (launched, accepted *big.Int, err error) {
	values, err := i.query(ctx, "getUserDeposit", user)
	if err != nil {
		return nil, nil, err
	}
	return twoAmounts(values)
}

func (i *Interactor) GetStartBlock(ctx context.Context) (uint64, error) {
	return i.queryBlock(ctx, "getStartBlock")
}

func (i *Interactor) GetEndBlock(ctx context.Context) (uint64, error) {
	return i.queryBlock(ctx, "getEndBlock")
}

func (i *Interactor) GetLotteryInfo(ctx context.Context, name string) (*LotteryInfo, error) {
	values, err := i.query(ctx, "getLotteryInfo", []byte(name))
	if err != nil {
		return nil, err
	}
	info, ok := abi.ConvertType(values[0], new(LotteryInfo)).(*LotteryInfo)
	if !ok {
		return nil, errDecodeABI
	}
	return info, nil
}

func (i *Interactor) GetWhitelist(ctx context.Context, name string) ([]common.Address, error) {
	values, err := i.query(ctx, "getLotteryWhitelist", []byte(name))
	if err != nil {
		return nil, err
	}
	whitelist, ok := values[0].([]common.Address)
	if !ok {
		return nil, errDecodeABI
	}
	return whitelist, nil
}

func (i *Interactor) GetStatus(ctx context.Context, name string) (LotteryStatus, error) {
	values, err := i.query(ctx, "status", []byte(name))
	if err != nil {
		return 0, err
	}
	status, ok := values[0].(uint8)
	if !ok {
		return 0, errDecodeABI
	}
	return LotteryStatus(status), nil
}

func (i *Interactor) queryBlock(ctx context.Context, method string) (uint64, error) {
	values, err := i.query(ctx, method)
	if err != nil {
		return 0, err
	}
	block, ok := values[0].(uint64)
	if !ok {
		return 0, errDecodeABI
	}
	return block, nil
}

func (i *Interactor) query(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if i.address == (common.Address{}) {
		return nil, ErrNoContract
	}
	response, err := i.controller.Query(ctx, i.handle(), method, args...)
	if err != nil {
		return nil, err
	}
	if !response.ReturnCode.IsSuccess() {
		return nil, fmt.Errorf("%w: %s: %s %s", contract.ErrQueryFailed, method, response.ReturnCode, response.Message)
	}
	if len(response.Values) == 0 {
		return nil, errDecodeABI
	}
	return response.Values, nil
}

func (i *Interactor) call(ctx context.Context, user *account.TestUser, gasLimit uint64, method string, args ...interface{}) (*contract.Bundle, error) {
	if i.address == (common.Address{}) {
		return nil, ErrNoContract
	}
	data, err := i.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contract.ErrInvalidArguments, method, err)
	}
	return i.execute(ctx, user, &transaction.TxRequest{
		To:       &i.address,
		Data:     data,
		GasLimit: sctx.GetGasLimitWithDefault(ctx, gasLimit),
	})
}

// callWithPayment transfers the payment along with the call.
func (i *Interactor) callWithPayment(ctx context.Context, user *account.TestUser, gasLimit uint64, payment esdt.Payment, method string, args ...interface{}) (*contract.Bundle, error) {
	if i.address == (common.Address{}) {
		return nil, ErrNoContract
	}
	data, err := i.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", contract.ErrInvalidArguments, method, err)
	}
	request, err := i.esdt.CallRequest(payment, i.address, data, sctx.GetGasLimitWithDefault(ctx, gasLimit))
	if err != nil {
		return nil, err
	}
	return i.execute(ctx, user, request)
}

func (i *Interactor) execute(ctx context.Context, user *account.TestUser, request *transaction.TxRequest) (*contract.Bundle, error) {
	signedTx, err := i.sign(ctx, user, request)
	if err != nil {
		return nil, err
	}
	return i.controller.Execute(ctx, signedTx)
}

func (i *Interactor) sign(ctx context.Context, user *account.TestUser, request *transaction.TxRequest) (*types.Transaction, error) {
	request.GasPrice = sctx.GetGasPriceWithDefault(ctx, i.session.GasPrice())
	return user.SignRequest(ctx, i.session.Backend(), i.session.ChainID(), request)
}

func twoAmounts(values []interface{}) (*big.Int, *big.Int, error) {
	if len(values) != 2 {
		return nil, nil, errDecodeABI
	}
	first, ok := values[0].(*big.Int)
	if !ok {
		return nil, nil, errDecodeABI
	}
	second, ok := values[1].(*big.Int)
	if !ok {
		return nil, nil, errDecodeABI
	}
	return first, second, nil
}
