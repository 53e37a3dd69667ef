// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package esdt issues fungible tokens and describes single-asset payments in
// either a token or the native coin.
package esdt

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// NativeIdentifier denotes the native coin of the chain.
const NativeIdentifier = "EGLD"

const nativeDecimals = 18

var ErrInvalidAmount = errors.New("invalid amount")

// Token is an issued fungible token or the native coin.
type Token struct {
	Identifier string         `json:"identifier"`
	Name       string         `json:"name"`
	Ticker     string         `json:"ticker"`
	Decimals   uint8          `json:"decimals"`
	Supply     *big.Int       `json:"supply"`
	Address    common.Address `json:"address"`
}

// Native returns the native coin as a token.
func Native() Token {
	return Token{
		Identifier: NativeIdentifier,
		Name:       NativeIdentifier,
		Ticker:     NativeIdentifier,
		Decimals:   nativeDecimals,
	}
}

func (t Token) IsNative() bool {
	return t.Identifier == NativeIdentifier
}

func (t Token) String() string {
	return t.Identifier
}

// CreateTokenAmount converts a decimal amount of whole tokens into base
// units. Amounts with more fractional digits than the token supports are
// rejected.
func CreateTokenAmount(token Token, amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAmount, amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, amount)
	}

	scaled := d.Shift(int32(token.Decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidAmount, amount, token.Decimals)
	}
	return scaled.BigInt(), nil
}

// NativeAmount converts a decimal amount of the native coin into base units.
func NativeAmount(amount string) (*big.Int, error) {
	return CreateTokenAmount(Native(), amount)
}

// FormatAmount renders base units as a decimal amount of whole tokens.
func FormatAmount(token Token, amount *big.Int) string {
	return decimal.NewFromBigInt(amount, -int32(token.Decimals)).String()
}

// Payment is a single-asset transfer.
type Payment struct {
	Token  Token
	Amount *big.Int
}

func NewPayment(token Token, amount *big.Int) Payment {
	return Payment{Token: token, Amount: amount}
}

func (p Payment) String() string {
	return FormatAmount(p.Token, p.Amount) + " " + p.Token.Identifier
}
