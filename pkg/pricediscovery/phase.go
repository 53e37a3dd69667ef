// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pricediscovery

import (
	"fmt"
	"math/big"
)

// BlocksPerEpoch is the number of blocks in an epoch.
const BlocksPerEpoch = 14400

// MaxPercentage is 100% in the fixed point representation of percentages.
var MaxPercentage = new(big.Int).Exp(big.NewInt(10), big.NewInt(14), nil)

// PhaseKind enumerates the phases of a price discovery in the order they
// follow each other.
type PhaseKind uint8

const (
	Idle PhaseKind = iota
	NoPenalty
	LinearIncreasingPenalty
	OnlyWithdrawFixedPenalty
	Unbond
	Redeem
)

var phaseNames = map[PhaseKind]string{
	Idle:                     "Idle",
	NoPenalty:                "NoPenalty",
	LinearIncreasingPenalty:  "LinearIncreasingPenalty",
	OnlyWithdrawFixedPenalty: "OnlyWithdrawFixedPenalty",
	Unbond:                   "Unbond",
	Redeem:                   "Redeem",
}

func (k PhaseKind) String() string {
	if name, ok := phaseNames[k]; ok {
		return name
	}
	return fmt.Sprintf("PhaseKind(%d)", uint8(k))
}

// Phase is the phase at some block together with the penalty applied to
// withdrawals during it.
type Phase struct {
	Kind              PhaseKind
	PenaltyPercentage *big.Int
}

func (p Phase) String() string {
	if p.PenaltyPercentage == nil || p.PenaltyPercentage.Sign() == 0 {
		return p.Kind.String()
	}
	return fmt.Sprintf("%s{%s}", p.Kind, p.PenaltyPercentage)
}

// DepositAllowed reports whether users may deposit during the phase.
func (p Phase) DepositAllowed() bool {
	return p.Kind == NoPenalty || p.Kind == LinearIncreasingPenalty
}

// WithdrawAllowed reports whether users may withdraw during the phase.
func (p Phase) WithdrawAllowed() bool {
	return p.Kind == NoPenalty || p.Kind == LinearIncreasingPenalty || p.Kind == OnlyWithdrawFixedPenalty
}

// ComputePhase returns the phase of a price discovery configured with args
// at the given block.
func ComputePhase(args InitArguments, block uint64) Phase {
	if block < args.StartBlock {
		return Phase{Kind: Idle, PenaltyPercentage: new(big.Int)}
	}

	noLimitEnd := args.StartBlock + args.NoLimitPhaseDurationBlocks
	if block < noLimitEnd {
		return Phase{Kind: NoPenalty, PenaltyPercentage: new(big.Int)}
	}

	linearEnd := noLimitEnd + args.LinearPenaltyPhaseDurationBlocks
	if block < linearEnd {
		penalty := new(big.Int).Set(args.PenaltyMinPercentage)
		if args.LinearPenaltyPhaseDurationBlocks > 1 {
			increase := new(big.Int).Sub(args.PenaltyMaxPercentage, args.PenaltyMinPercentage)
			increase.Mul(increase, new(big.Int).SetUint64(block-noLimitEnd))
			increase.Div(increase, new(big.Int).SetUint64(args.LinearPenaltyPhaseDurationBlocks-1))
			penalty.Add(penalty, increase)
		}
		return Phase{Kind: LinearIncreasingPenalty, PenaltyPercentage: penalty}
	}

	fixedEnd := linearEnd + args.FixedPenaltyPhaseDurationBlocks
	if block < fixedEnd {
		return Phase{Kind: OnlyWithdrawFixedPenalty, PenaltyPercentage: new(big.Int).Set(args.FixedPenaltyPercentage)}
	}

	if block < fixedEnd+args.UnbondPeriodEpochs*BlocksPerEpoch {
		return Phase{Kind: Unbond, PenaltyPercentage: new(big.Int)}
	}
	return Phase{Kind: Redeem, PenaltyPercentage: new(big.Int)}
}

// EndBlock is the first block after the fixed penalty phase.
func EndBlock(args InitArguments) uint64 {
	return args.StartBlock + args.NoLimitPhaseDurationBlocks + args.LinearPenaltyPhaseDurationBlocks + args.FixedPenaltyPhaseDurationBlocks
}

// ApplyPenalty splits amount into what is refunded and what is kept as
// penalty.
func ApplyPenalty(amount, percentage *big.Int) (refund, penalty *big.Int) {
	penalty = new(big.Int).Mul(amount, percentage)
	penalty.Div(penalty, MaxPercentage)
	return new(big.Int).Sub(amount, penalty), penalty
}

// Percentage converts whole percents to the fixed point representation.
func Percentage(percent int64) *big.Int {
	p := new(big.Int).Mul(big.NewInt(percent), MaxPercentage)
	return p.Div(p, big.NewInt(100))
}
