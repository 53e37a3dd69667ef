// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	"encoding/binary"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethersphere/price-discovery/pkg/pricediscovery"
	"github.com/ethersphere/price-discovery/pkg/transaction/backendsimulation"
)

// defaultDeadlineBlocks is thirty days of six second blocks.
const defaultDeadlineBlocks = 30 * 24 * 60 * 60 / 6

var (
	errEmptyName           = backendsimulation.Revert("Name can't be empty!")
	errAlreadyActive       = backendsimulation.Revert("Lottery is already active!")
	errTicketPrice         = backendsimulation.Revert("Ticket price must be higher than 0!")
	errNoTickets           = backendsimulation.Revert("Must have more than 0 tickets available!")
	errDeadline            = backendsimulation.Revert("Deadline can't be in the past!")
	errMaxEntries          = backendsimulation.Revert("Must have more than 0 max entries!")
	errDistribution        = backendsimulation.Revert("Prize distribution must add up to exactly 100(%)!")
	errTooManyWinners      = backendsimulation.Revert("Number of winners should be less than the number of tickets")
	errBurnPercentage      = backendsimulation.Revert("Invalid burn percentage!")
	errInactive            = backendsimulation.Revert("Lottery is currently inactive.")
	errEnded               = backendsimulation.Revert("Lottery entry period has ended! Awaiting winner announcement.")
	errWrongToken          = backendsimulation.Revert("Wrong token used for buying tickets!")
	errWrongFee            = backendsimulation.Revert("Wrong ticket fee!")
	errNotAllowed          = backendsimulation.Revert("You are not allowed to participate in this lottery!")
	errTicketLimit         = backendsimulation.Revert("Ticket limit exceeded for this lottery!")
	errStillRunning        = backendsimulation.Revert("Lottery is still running!")
	errLotteryDoesNotExist = backendsimulation.Revert("Lottery does not exist!")
)

type lottery struct {
	tokenID           string
	ticketPrice       *big.Int
	ticketsLeft       uint32
	deadline          uint64
	maxEntriesPerUser uint32
	prizeDistribution []uint8
	whitelist         []common.Address
	burnPercentage    *big.Int
	prizePool         *big.Int

	tickets []common.Address
	entries map[common.Address]uint32
}

func (l *lottery) clone() *lottery {
	c := *l
	c.ticketPrice = new(big.Int).Set(l.ticketPrice)
	c.prizeDistribution = append([]uint8(nil), l.prizeDistribution...)
	c.whitelist = append([]common.Address(nil), l.whitelist...)
	c.burnPercentage = new(big.Int).Set(l.burnPercentage)
	c.prizePool = new(big.Int).Set(l.prizePool)
	c.tickets = append([]common.Address(nil), l.tickets...)
	c.entries = make(map[common.Address]uint32, len(l.entries))
	for a, n := range l.entries {
		c.entries[a] = n
	}
	return &c
}

func (l *lottery) allowed(user common.Address) bool {
	if len(l.whitelist) == 0 {
		return true
	}
	for _, a := range l.whitelist {
		if a == user {
			return true
		}
	}
	return false
}

func (p *priceDiscovery) status(env backendsimulation.Env, name []byte) pricediscovery.LotteryStatus {
	l, ok := p.lotteries[string(name)]
	if !ok {
		return pricediscovery.Inactive
	}
	if env.BlockNumber() > l.deadline || l.ticketsLeft == 0 {
		return pricediscovery.Ended
	}
	return pricediscovery.Running
}

func (p *priceDiscovery) start(c call, values []interface{}) error {
	name, tokenID, price, o, err := pricediscovery.StartOptionsFromValues(values)
	if err != nil {
		return err
	}
	if len(name) == 0 {
		return errEmptyName
	}
	if p.status(c.env, name) != pricediscovery.Inactive {
		return errAlreadyActive
	}
	if price.Sign() <= 0 {
		return errTicketPrice
	}

	l := &lottery{
		tokenID:           tokenID,
		ticketPrice:       new(big.Int).Set(price),
		ticketsLeft:       math.MaxUint32,
		deadline:          c.env.BlockNumber() + defaultDeadlineBlocks,
		maxEntriesPerUser: math.MaxUint32,
		prizeDistribution: []uint8{100},
		whitelist:         o.Whitelist,
		burnPercentage:    new(big.Int),
		prizePool:         new(big.Int),
		entries:           make(map[common.Address]uint32),
	}
	if o.TotalTickets != nil {
		if *o.TotalTickets == 0 {
			return errNoTickets
		}
		l.ticketsLeft = *o.TotalTickets
	}
	if o.Deadline != nil {
		if *o.Deadline <= c.env.BlockNumber() {
			return errDeadline
		}
		l.deadline = *o.Deadline
	}
	if o.MaxEntriesPerUser != nil {
		if *o.MaxEntriesPerUser == 0 {
			return errMaxEntries
		}
		l.maxEntriesPerUser = *o.MaxEntriesPerUser
	}
	if o.PrizeDistribution != nil {
		var sum uint
		for _, share := range o.PrizeDistribution {
			sum += uint(share)
		}
		if sum != 100 {
			return errDistribution
		}
		l.prizeDistribution = o.PrizeDistribution
	}
	if uint64(len(l.prizeDistribution)) > uint64(l.ticketsLeft) {
		return errTooManyWinners
	}
	if o.BurnPercentage != nil {
		if o.BurnPercentage.Sign() < 0 || o.BurnPercentage.Cmp(big.NewInt(100)) > 0 {
			return errBurnPercentage
		}
		l.burnPercentage = new(big.Int).Set(o.BurnPercentage)
	}

	p.lotteries[string(name)] = l
	return nil
}

func (p *priceDiscovery) buyTicket(c call, name []byte) error {
	switch p.status(c.env, name) {
	case pricediscovery.Inactive:
		return errInactive
	case pricediscovery.Ended:
		return errEnded
	}
	l := p.lotteries[string(name)]

	if c.payment.tokenID != l.tokenID {
		return errWrongToken
	}
	if c.payment.amount.Cmp(l.ticketPrice) != 0 {
		return errWrongFee
	}
	if !l.allowed(c.caller) {
		return errNotAllowed
	}
	if l.entries[c.caller] >= l.maxEntriesPerUser {
		return errTicketLimit
	}

	l.entries[c.caller]++
	l.tickets = append(l.tickets, c.caller)
	l.ticketsLeft--
	l.prizePool.Add(l.prizePool, c.payment.amount)

	p.emit(c.env, "TicketBought", c.caller, name)
	return nil
}

// determineWinner burns the configured share of the prize pool and pays
// the rest to winners drawn from the tickets.
func (p *priceDiscovery) determineWinner(c call, name []byte) error {
	switch p.status(c.env, name) {
	case pricediscovery.Inactive:
		return errInactive
	case pricediscovery.Running:
		return errStillRunning
	}
	l := p.lotteries[string(name)]
	delete(p.lotteries, string(name))

	if len(l.tickets) == 0 {
		return nil
	}

	burned := new(big.Int).Mul(l.prizePool, l.burnPercentage)
	burned.Div(burned, big.NewInt(100))
	if err := p.burn(c.env, l.tokenID, burned); err != nil {
		return err
	}
	pool := new(big.Int).Sub(l.prizePool, burned)

	seed := c.env.Seed()
	remaining := new(big.Int).Set(pool)
	for i, share := range l.prizeDistribution {
		winner := l.tickets[drawIndex(seed, i, len(l.tickets))]

		prize := new(big.Int).Mul(pool, big.NewInt(int64(share)))
		prize.Div(prize, big.NewInt(100))
		if i == len(l.prizeDistribution)-1 {
			prize = remaining
		}
		remaining = new(big.Int).Sub(remaining, prize)

		if err := p.send(c.env, winner, l.tokenID, prize); err != nil {
			return err
		}
		p.emit(c.env, "WinnerSelected", winner, name, prize)
	}
	return nil
}

func drawIndex(seed common.Hash, round, n int) int {
	var r [8]byte
	binary.BigEndian.PutUint64(r[:], uint64(round))
	h := crypto.Keccak256(seed.Bytes(), r[:])
	return int(new(big.Int).Mod(new(big.Int).SetBytes(h), big.NewInt(int64(n))).Int64())
}

func (p *priceDiscovery) lotteryInfo(method *abi.Method, name []byte) ([]byte, error) {
	l, ok := p.lotteries[string(name)]
	if !ok {
		return nil, errLotteryDoesNotExist
	}
	return method.Outputs.Pack(pricediscovery.LotteryInfo{
		TokenIdentifier:   l.tokenID,
		TicketPrice:       l.ticketPrice,
		TicketsLeft:       l.ticketsLeft,
		Deadline:          l.deadline,
		MaxEntriesPerUser: l.maxEntriesPerUser,
		PrizeDistribution: l.prizeDistribution,
		PrizePool:         l.prizePool,
	})
}

func (p *priceDiscovery) lotteryWhitelist(method *abi.Method, name []byte) ([]byte, error) {
	whitelist := []common.Address{}
	if l, ok := p.lotteries[string(name)]; ok {
		whitelist = append(whitelist, l.whitelist...)
	}
	return method.Outputs.Pack(whitelist)
}
