// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pricediscovery

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LotteryStatus is the state of a named lottery.
type LotteryStatus uint8

const (
	Inactive LotteryStatus = iota
	Running
	Ended
)

func (s LotteryStatus) String() string {
	switch s {
	case Inactive:
		return "Inactive"
	case Running:
		return "Running"
	case Ended:
		return "Ended"
	}
	return fmt.Sprintf("LotteryStatus(%d)", uint8(s))
}

// LotteryInfo mirrors the tuple returned by getLotteryInfo.
type LotteryInfo struct {
	TokenIdentifier   string   `json:"token_identifier"`
	TicketPrice       *big.Int `json:"ticket_price"`
	TicketsLeft       uint32   `json:"tickets_left"`
	Deadline          uint64   `json:"deadline"`
	MaxEntriesPerUser uint32   `json:"max_entries_per_user"`
	PrizeDistribution []uint8  `json:"prize_distribution"`
	PrizePool         *big.Int `json:"prize_pool"`
}

// Field returns the field by its on-chain name.
func (l *LotteryInfo) Field(name string) (interface{}, bool) {
	switch name {
	case "token_identifier":
		return l.TokenIdentifier, true
	case "ticket_price":
		return l.TicketPrice, true
	case "tickets_left":
		return l.TicketsLeft, true
	case "deadline":
		return l.Deadline, true
	case "max_entries_per_user":
		return l.MaxEntriesPerUser, true
	case "prize_distribution":
		return l.PrizeDistribution, true
	case "prize_pool":
		return l.PrizePool, true
	}
	return nil, false
}

// LotteryOptions are the optional arguments of start. Nil fields are
// encoded as missing.
type LotteryOptions struct {
	TotalTickets      *uint32
	Deadline          *uint64
	MaxEntriesPerUser *uint32
	PrizeDistribution []uint8
	Whitelist         []common.Address
	BurnPercentage    *big.Int
}

func (o LotteryOptions) startArgs(name, tokenIdentifier string, price *big.Int) []interface{} {
	var (
		totalTickets      uint32
		deadline          uint64
		maxEntriesPerUser uint32
		burnPercentage    = new(big.Int)
	)
	if o.TotalTickets != nil {
		totalTickets = *o.TotalTickets
	}
	if o.Deadline != nil {
		deadline = *o.Deadline
	}
	if o.MaxEntriesPerUser != nil {
		maxEntriesPerUser = *o.MaxEntriesPerUser
	}
	if o.BurnPercentage != nil {
		burnPercentage = o.BurnPercentage
	}
	distribution := o.PrizeDistribution
	if distribution == nil {
		distribution = []uint8{}
	}
	whitelist := o.Whitelist
	if whitelist == nil {
		whitelist = []common.Address{}
	}

	return []interface{}{
		[]byte(name),
		tokenIdentifier,
		price,
		o.TotalTickets != nil, totalTickets,
		o.Deadline != nil, deadline,
		o.MaxEntriesPerUser != nil, maxEntriesPerUser,
		o.PrizeDistribution != nil, distribution,
		o.Whitelist != nil, whitelist,
		o.BurnPercentage != nil, burnPercentage,
	}
}

// StartOptionsFromValues decodes the packed arguments of start.
func StartOptionsFromValues(values []interface{}) (name []byte, tokenIdentifier string, price *big.Int, o LotteryOptions, err error) {
	if len(values) != 15 {
		return nil, "", nil, o, fmt.Errorf("got %d start arguments", len(values))
	}
	name, _ = values[0].([]byte)
	tokenIdentifier, _ = values[1].(string)
	price, _ = values[2].(*big.Int)

	if present, _ := values[3].(bool); present {
		v, _ := values[4].(uint32)
		o.TotalTickets = &v
	}
	if present, _ := values[5].(bool); present {
		v, _ := values[6].(uint64)
		o.Deadline = &v
	}
	if present, _ := values[7].(bool); present {
		v, _ := values[8].(uint32)
		o.MaxEntriesPerUser = &v
	}
	if present, _ := values[9].(bool); present {
		o.PrizeDistribution, _ = values[10].([]uint8)
		if o.PrizeDistribution == nil {
			o.PrizeDistribution = []uint8{}
		}
	}
	if present, _ := values[11].(bool); present {
		o.Whitelist, _ = values[12].([]common.Address)
		if o.Whitelist == nil {
			o.Whitelist = []common.Address{}
		}
	}
	if present, _ := values[13].(bool); present {
		o.BurnPercentage, _ = values[14].(*big.Int)
	}
	if price == nil {
		price = new(big.Int)
	}
	return name, tokenIdentifier, price, o, nil
}

func Uint32(v uint32) *uint32 { return &v }

func Uint64(v uint64) *uint64 { return &v }
