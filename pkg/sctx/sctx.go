// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sctx carries per-call transaction settings and the running
// scenario step through a context.
package sctx

import (
	"context"
	"math/big"
)

type (
	gasPriceKey struct{}
	gasLimitKey struct{}
	stepKey     struct{}
)

// SetStep records the scenario step the calls made with ctx belong to.
func SetStep(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, stepKey{}, name)
}

// GetStep returns the scenario step or an empty string outside of one.
func GetStep(ctx context.Context) string {
	v, _ := ctx.Value(stepKey{}).(string)
	return v
}

// SetGasLimit overrides the gas ceiling used by the interactors.
func SetGasLimit(ctx context.Context, limit uint64) context.Context {
	return context.WithValue(ctx, gasLimitKey{}, limit)
}

func GetGasLimit(ctx context.Context) uint64 {
	v, _ := ctx.Value(gasLimitKey{}).(uint64)
	return v
}

func GetGasLimitWithDefault(ctx context.Context, defaultLimit uint64) uint64 {
	limit := GetGasLimit(ctx)
	if limit == 0 {
		return defaultLimit
	}
	return limit
}

func SetGasPrice(ctx context.Context, price *big.Int) context.Context {
	return context.WithValue(ctx, gasPriceKey{}, price)
}

func GetGasPrice(ctx context.Context) *big.Int {
	v, _ := ctx.Value(gasPriceKey{}).(*big.Int)
	return v
}

// GetGasPriceWithDefault returns the gas price set in the context or
// defaultPrice if none is set.
func GetGasPriceWithDefault(ctx context.Context, defaultPrice *big.Int) *big.Int {
	if price := GetGasPrice(ctx); price != nil {
		return price
	}
	return defaultPrice
}
