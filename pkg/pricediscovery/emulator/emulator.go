// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package emulator implements the price discovery contract and its lottery
// for the simulated chain.
package emulator

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethersphere/price-discovery/pkg/esdt"
	"github.com/ethersphere/price-discovery/pkg/pricediscovery"
	"github.com/ethersphere/price-discovery/pkg/transaction/backendsimulation"
)

var (
	errFunctionNotFound = backendsimulation.Revert("function not found")
	errPayable          = backendsimulation.Revert("function does not accept payment")
	errPermissionDenied = backendsimulation.Revert("Permission denied")
	errInvalidPayment   = backendsimulation.Revert("Invalid payment token")
	errZeroPayment      = backendsimulation.Revert("Payment amount cannot be zero")
	errNotWhitelisted   = backendsimulation.Revert("User not whitelisted")
	errDepositPhase     = backendsimulation.Revert("Deposit not allowed in this phase")
	errWithdrawPhase    = backendsimulation.Revert("Withdraw not allowed in this phase")
	errWithdrawToken    = backendsimulation.Revert("Only accepted token withdrawals allowed in this phase")
	errWithdrawAmount   = backendsimulation.Revert("Withdraw amount too high")
	errRedeemPhase      = backendsimulation.Revert("Redeem not allowed in this phase")
	errNothingToRedeem  = backendsimulation.Revert("Nothing to redeem")
	errUnknownToken     = backendsimulation.Revert("Unknown token")
)

// priceScale scales the final price like a token with 18 decimals.
var priceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

type deposit struct {
	launched *big.Int
	accepted *big.Int
}

// payment is the single asset transferred with a call.
type payment struct {
	tokenID string
	amount  *big.Int
}

// call is one invocation of an endpoint. For token payments the caller is
// the user on whose behalf the token forwarded the call.
type call struct {
	env     backendsimulation.Env
	caller  common.Address
	payment payment
}

type priceDiscovery struct {
	abi      abi.ABI
	tokenABI abi.ABI
	owner    common.Address
	args     pricediscovery.InitArguments

	// tokens maps identifiers to the token contracts seen so far
	tokens map[string]common.Address

	whitelist     map[common.Address]bool
	deposits      map[common.Address]*deposit
	launchedTotal *big.Int
	acceptedTotal *big.Int
	extraRewards  map[string]*big.Int
	redeemed      map[common.Address]bool

	lotteries map[string]*lottery
}

// NewFactory returns the factory of price discovery contracts. The token
// abi is used to recognise and pay out tokens.
func NewFactory(contractABI, tokenABI abi.ABI) backendsimulation.Factory {
	return func(env backendsimulation.Env, packed []byte) (backendsimulation.Contract, error) {
		values, err := contractABI.Constructor.Inputs.Unpack(packed)
		if err != nil {
			return nil, err
		}
		args, err := pricediscovery.InitArgumentsFromValues(values)
		if err != nil {
			return nil, err
		}
		if err := args.Validate(); err != nil {
			return nil, backendsimulation.Revert(err.Error())
		}
		return &priceDiscovery{
			abi:           contractABI,
			tokenABI:      tokenABI,
			owner:         env.Caller(),
			args:          args,
			tokens:        make(map[string]common.Address),
			whitelist:     make(map[common.Address]bool),
			deposits:      make(map[common.Address]*deposit),
			launchedTotal: new(big.Int),
			acceptedTotal: new(big.Int),
			extraRewards:  make(map[string]*big.Int),
			redeemed:      make(map[common.Address]bool),
			lotteries:     make(map[string]*lottery),
		}, nil
	}
}

func (p *priceDiscovery) Clone() backendsimulation.Contract {
	c := *p
	c.tokens = make(map[string]common.Address, len(p.tokens))
	for id, a := range p.tokens {
		c.tokens[id] = a
	}
	c.whitelist = make(map[common.Address]bool, len(p.whitelist))
	for a, v := range p.whitelist {
		c.whitelist[a] = v
	}
	c.deposits = make(map[common.Address]*deposit, len(p.deposits))
	for a, d := range p.deposits {
		c.deposits[a] = &deposit{launched: new(big.Int).Set(d.launched), accepted: new(big.Int).Set(d.accepted)}
	}
	c.launchedTotal = new(big.Int).Set(p.launchedTotal)
	c.acceptedTotal = new(big.Int).Set(p.acceptedTotal)
	c.extraRewards = make(map[string]*big.Int, len(p.extraRewards))
	for id, r := range p.extraRewards {
		c.extraRewards[id] = new(big.Int).Set(r)
	}
	c.redeemed = make(map[common.Address]bool, len(p.redeemed))
	for a, v := range p.redeemed {
		c.redeemed[a] = v
	}
	c.lotteries = make(map[string]*lottery, len(p.lotteries))
	for name, l := range p.lotteries {
		c.lotteries[name] = l.clone()
	}
	return &c
}

func (p *priceDiscovery) Call(env backendsimulation.Env, input []byte) ([]byte, error) {
	return p.dispatch(call{
		env:     env,
		caller:  env.Caller(),
		payment: payment{tokenID: esdt.NativeIdentifier, amount: env.Value()},
	}, input)
}

func (p *priceDiscovery) dispatch(c call, input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, errFunctionNotFound
	}
	method, err := p.abi.MethodById(input[:4])
	if err != nil {
		return nil, errFunctionNotFound
	}
	if !method.IsPayable() && c.payment.amount.Sign() != 0 {
		return nil, errPayable
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "onTokenTransfer":
		return p.onTokenTransfer(c, method, args)
	case "userDeposit":
		return nil, p.userDeposit(c)
	case "userWithdraw":
		return nil, p.userWithdraw(c, args[0].(string), args[1].(*big.Int))
	case "redeem":
		return p.redeem(c, method)
	case "addUsersToWhitelist":
		if c.caller != p.owner {
			return nil, errPermissionDenied
		}
		for _, u := range args[0].([]common.Address) {
			p.whitelist[u] = true
		}
		return nil, nil
	case "isUserWhitelisted":
		return method.Outputs.Pack(p.whitelist[args[0].(common.Address)])
	case "getCurrentPhase":
		phase := pricediscovery.ComputePhase(p.args, c.env.BlockNumber())
		return method.Outputs.Pack(uint8(phase.Kind), phase.PenaltyPercentage)
	case "getDepositBalances":
		return method.Outputs.Pack(p.launchedTotal, p.acceptedTotal)
	case "getUserDeposit":
		d := p.depositOf(args[0].(common.Address))
		return method.Outputs.Pack(d.launched, d.accepted)
	case "getStartBlock":
		return method.Outputs.Pack(p.args.StartBlock)
	case "getEndBlock":
		return method.Outputs.Pack(pricediscovery.EndBlock(p.args))
	case "start":
		return nil, p.start(c, args)
	case "buy_ticket":
		return nil, p.buyTicket(c, args[0].([]byte))
	case "determine_winner":
		return nil, p.determineWinner(c, args[0].([]byte))
	case "status":
		return method.Outputs.Pack(uint8(p.status(c.env, args[0].([]byte))))
	case "getLotteryInfo":
		return p.lotteryInfo(method, args[0].([]byte))
	case "getLotteryWhitelist":
		return p.lotteryWhitelist(method, args[0].([]byte))
	}
	return nil, errFunctionNotFound
}

// onTokenTransfer runs the forwarded call with the received tokens as
// payment of the original sender.
func (p *priceDiscovery) onTokenTransfer(c call, method *abi.Method, args []interface{}) ([]byte, error) {
	tokenID, err := p.identifierOf(c.env, c.caller)
	if err != nil {
		return nil, err
	}
	p.tokens[tokenID] = c.caller

	data := args[2].([]byte)
	if len(data) < 4 {
		return nil, errFunctionNotFound
	}
	inner, err := p.abi.MethodById(data[:4])
	if err != nil {
		return nil, errFunctionNotFound
	}
	if !inner.IsPayable() || inner.Name == "onTokenTransfer" {
		return nil, errPayable
	}

	if _, err := p.dispatch(call{
		env:     c.env,
		caller:  args[0].(common.Address),
		payment: payment{tokenID: tokenID, amount: args[1].(*big.Int)},
	}, data); err != nil {
		return nil, err
	}
	return method.Outputs.Pack(true)
}

func (p *priceDiscovery) identifierOf(env backendsimulation.Env, token common.Address) (string, error) {
	method := p.tokenABI.Methods["identifier"]
	ret, err := env.Call(token, nil, method.ID)
	if err != nil {
		return "", err
	}
	values, err := method.Outputs.Unpack(ret)
	if err != nil || len(values) != 1 {
		return "", errUnknownToken
	}
	id, _ := values[0].(string)
	if id == "" {
		return "", errUnknownToken
	}
	return id, nil
}

func (p *priceDiscovery) depositOf(user common.Address) *deposit {
	if d, ok := p.deposits[user]; ok {
		return d
	}
	return &deposit{launched: new(big.Int), accepted: new(big.Int)}
}

func (p *priceDiscovery) userDeposit(c call) error {
	if !pricediscovery.ComputePhase(p.args, c.env.BlockNumber()).DepositAllowed() {
		return errDepositPhase
	}
	if c.payment.amount.Sign() == 0 {
		return errZeroPayment
	}
	if len(p.whitelist) > 0 && !p.whitelist[c.caller] {
		return errNotWhitelisted
	}

	d := p.depositOf(c.caller)
	switch c.payment.tokenID {
	case p.args.LaunchedTokenID:
		d.launched.Add(d.launched, c.payment.amount)
		p.launchedTotal.Add(p.launchedTotal, c.payment.amount)
	case p.args.AcceptedTokenID:
		d.accepted.Add(d.accepted, c.payment.amount)
		p.acceptedTotal.Add(p.acceptedTotal, c.payment.amount)
	default:
		return errInvalidPayment
	}
	p.deposits[c.caller] = d

	p.emit(c.env, "UserDeposit", c.caller, c.payment.tokenID, c.payment.amount)
	return nil
}

func (p *priceDiscovery) userWithdraw(c call, tokenID string, amount *big.Int) error {
	phase := pricediscovery.ComputePhase(p.args, c.env.BlockNumber())
	if !phase.WithdrawAllowed() {
		return errWithdrawPhase
	}
	if phase.Kind == pricediscovery.OnlyWithdrawFixedPenalty && tokenID != p.args.AcceptedTokenID {
		return errWithdrawToken
	}

	d := p.depositOf(c.caller)
	var held, total *big.Int
	switch tokenID {
	case p.args.LaunchedTokenID:
		held, total = d.launched, p.launchedTotal
	case p.args.AcceptedTokenID:
		held, total = d.accepted, p.acceptedTotal
	default:
		return errInvalidPayment
	}
	if amount.Sign() == 0 {
		return errZeroPayment
	}
	if held.Cmp(amount) < 0 {
		return errWithdrawAmount
	}

	refund, penalty := pricediscovery.ApplyPenalty(amount, phase.PenaltyPercentage)
	held.Sub(held, amount)
	total.Sub(total, amount)
	if penalty.Sign() > 0 {
		rewards, ok := p.extraRewards[tokenID]
		if !ok {
			rewards = new(big.Int)
			p.extraRewards[tokenID] = rewards
		}
		rewards.Add(rewards, penalty)
	}

	if err := p.send(c.env, c.caller, tokenID, refund); err != nil {
		return err
	}
	p.emit(c.env, "UserWithdraw", c.caller, tokenID, refund, penalty)
	return nil
}

// redeem pays the depositor the other side of the deposits, or refunds the
// deposit if the final price is below the minimum.
func (p *priceDiscovery) redeem(c call, method *abi.Method) ([]byte, error) {
	if pricediscovery.ComputePhase(p.args, c.env.BlockNumber()).Kind != pricediscovery.Redeem {
		return nil, errRedeemPhase
	}
	d := p.depositOf(c.caller)
	if p.redeemed[c.caller] || (d.launched.Sign() == 0 && d.accepted.Sign() == 0) {
		return nil, errNothingToRedeem
	}
	p.redeemed[c.caller] = true

	type transfer struct {
		tokenID string
		amount  *big.Int
	}
	var transfers []transfer
	if p.finalPrice().Cmp(p.args.MinLaunchedTokenPrice) < 0 {
		transfers = []transfer{
			{p.args.AcceptedTokenID, d.accepted},
			{p.args.LaunchedTokenID, d.launched},
		}
	} else {
		fromAccepted := new(big.Int)
		if p.acceptedTotal.Sign() > 0 {
			fromAccepted.Mul(p.launchedTotal, d.accepted).Div(fromAccepted, p.acceptedTotal)
		}
		fromLaunched := new(big.Int)
		if p.launchedTotal.Sign() > 0 {
			fromLaunched.Mul(p.acceptedTotal, d.launched).Div(fromLaunched, p.launchedTotal)
		}
		transfers = []transfer{
			{p.args.LaunchedTokenID, fromAccepted},
			{p.args.AcceptedTokenID, fromLaunched},
		}
	}

	last := transfer{tokenID: p.args.LaunchedTokenID, amount: new(big.Int)}
	for _, t := range transfers {
		if t.amount.Sign() == 0 {
			continue
		}
		if err := p.send(c.env, c.caller, t.tokenID, t.amount); err != nil {
			return nil, err
		}
		p.emit(c.env, "Redeem", c.caller, t.tokenID, t.amount)
		last = t
	}
	return method.Outputs.Pack(last.tokenID, last.amount)
}

// finalPrice is the amount of accepted tokens paid per launched token.
func (p *priceDiscovery) finalPrice() *big.Int {
	if p.launchedTotal.Sign() == 0 {
		return new(big.Int)
	}
	price := new(big.Int).Mul(p.acceptedTotal, priceScale)
	return price.Div(price, p.launchedTotal)
}

// send pays amount of the token from the contract.
func (p *priceDiscovery) send(env backendsimulation.Env, to common.Address, tokenID string, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if tokenID == esdt.NativeIdentifier {
		return env.Transfer(to, amount)
	}
	token, ok := p.tokens[tokenID]
	if !ok {
		return errUnknownToken
	}
	input, err := p.tokenABI.Pack("transfer", to, amount)
	if err != nil {
		return err
	}
	_, err = env.Call(token, nil, input)
	return err
}

// burn destroys amount of the token held by the contract.
func (p *priceDiscovery) burn(env backendsimulation.Env, tokenID string, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if tokenID == esdt.NativeIdentifier {
		return env.Transfer(common.Address{}, amount)
	}
	token, ok := p.tokens[tokenID]
	if !ok {
		return errUnknownToken
	}
	input, err := p.tokenABI.Pack("burn", amount)
	if err != nil {
		return err
	}
	_, err = env.Call(token, nil, input)
	return err
}

func (p *priceDiscovery) emit(env backendsimulation.Env, name string, indexed common.Address, args ...interface{}) {
	event := p.abi.Events[name]
	data, err := event.Inputs.NonIndexed().Pack(args...)
	if err != nil {
		return
	}
	env.Emit([]common.Hash{event.ID, common.BytesToHash(indexed.Bytes())}, data)
}
