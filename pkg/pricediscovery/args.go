// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pricediscovery

import (
	"errors"
	"fmt"
	"math/big"
)

var ErrInvalidInitArguments = errors.New("invalid init arguments")

// InitArguments are the constructor arguments of a price discovery.
// Percentages are fractions of MaxPercentage.
type InitArguments struct {
	LaunchedTokenID                  string
	AcceptedTokenID                  string
	ExtraRewardsTokenID              string
	MinLaunchedTokenPrice            *big.Int
	StartBlock                       uint64
	NoLimitPhaseDurationBlocks       uint64
	LinearPenaltyPhaseDurationBlocks uint64
	FixedPenaltyPhaseDurationBlocks  uint64
	UnbondPeriodEpochs               uint64
	PenaltyMinPercentage             *big.Int
	PenaltyMaxPercentage             *big.Int
	FixedPenaltyPercentage           *big.Int
}

func (a InitArguments) Validate() error {
	switch {
	case a.LaunchedTokenID == "":
		return fmt.Errorf("%w: missing launched token id", ErrInvalidInitArguments)
	case a.AcceptedTokenID == "":
		return fmt.Errorf("%w: missing accepted token id", ErrInvalidInitArguments)
	case a.ExtraRewardsTokenID == "":
		return fmt.Errorf("%w: missing extra rewards token id", ErrInvalidInitArguments)
	case a.LaunchedTokenID == a.AcceptedTokenID:
		return fmt.Errorf("%w: launched and accepted token are both %s", ErrInvalidInitArguments, a.LaunchedTokenID)
	case a.MinLaunchedTokenPrice == nil || a.MinLaunchedTokenPrice.Sign() <= 0:
		return fmt.Errorf("%w: min launched token price must be positive", ErrInvalidInitArguments)
	case a.NoLimitPhaseDurationBlocks == 0, a.LinearPenaltyPhaseDurationBlocks == 0, a.FixedPenaltyPhaseDurationBlocks == 0:
		return fmt.Errorf("%w: phase durations must be positive", ErrInvalidInitArguments)
	case a.UnbondPeriodEpochs == 0:
		return fmt.Errorf("%w: unbond period must be positive", ErrInvalidInitArguments)
	}

	for name, p := range map[string]*big.Int{
		"penalty min":   a.PenaltyMinPercentage,
		"penalty max":   a.PenaltyMaxPercentage,
		"fixed penalty": a.FixedPenaltyPercentage,
	} {
		if p == nil || p.Sign() < 0 || p.Cmp(MaxPercentage) > 0 {
			return fmt.Errorf("%w: %s percentage out of range", ErrInvalidInitArguments, name)
		}
	}
	if a.PenaltyMinPercentage.Cmp(a.PenaltyMaxPercentage) > 0 {
		return fmt.Errorf("%w: penalty min percentage above max", ErrInvalidInitArguments)
	}
	return nil
}

// constructorArgs lists the arguments in declaration order.
func (a InitArguments) constructorArgs() []interface{} {
	return []interface{}{
		a.LaunchedTokenID,
		a.AcceptedTokenID,
		a.ExtraRewardsTokenID,
		a.MinLaunchedTokenPrice,
		a.StartBlock,
		a.NoLimitPhaseDurationBlocks,
		a.LinearPenaltyPhaseDurationBlocks,
		a.FixedPenaltyPhaseDurationBlocks,
		a.UnbondPeriodEpochs,
		a.PenaltyMinPercentage,
		a.PenaltyMaxPercentage,
		a.FixedPenaltyPercentage,
	}
}

// InitArgumentsFromValues is the inverse of packing the constructor
// arguments.
func InitArgumentsFromValues(values []interface{}) (InitArguments, error) {
	if len(values) != 12 {
		return InitArguments{}, fmt.Errorf("%w: got %d values", ErrInvalidInitArguments, len(values))
	}
	var (
		a  InitArguments
		ok = true
	)
	str := func(v interface{}) string {
		s, isStr := v.(string)
		ok = ok && isStr
		return s
	}
	num := func(v interface{}) *big.Int {
		n, isNum := v.(*big.Int)
		ok = ok && isNum
		return n
	}
	u64 := func(v interface{}) uint64 {
		n, isU64 := v.(uint64)
		ok = ok && isU64
		return n
	}

	a.LaunchedTokenID = str(values[0])
	a.AcceptedTokenID = str(values[1])
	a.ExtraRewardsTokenID = str(values[2])
	a.MinLaunchedTokenPrice = num(values[3])
	a.StartBlock = u64(values[4])
	a.NoLimitPhaseDurationBlocks = u64(values[5])
	a.LinearPenaltyPhaseDurationBlocks = u64(values[6])
	a.FixedPenaltyPhaseDurationBlocks = u64(values[7])
	a.UnbondPeriodEpochs = u64(values[8])
	a.PenaltyMinPercentage = num(values[9])
	a.PenaltyMaxPercentage = num(values[10])
	a.FixedPenaltyPercentage = num(values[11])

	if !ok {
		return InitArguments{}, fmt.Errorf("%w: unexpected value types", ErrInvalidInitArguments)
	}
	return a, nil
}
