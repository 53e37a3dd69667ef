// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package backendsimulation

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	revertSelector = crypto.Keccak256([]byte("Error(string)"))[:4]
	revertArgs     = abi.Arguments{{Type: mustType("string")}}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// RevertError is returned by calls that revert. It carries the Error(string)
// encoded reason as rpc error data the way go-ethereum nodes do.
type RevertError struct {
	reason string
	data   []byte
}

// Revert creates the error a contract returns to revert with a reason.
func Revert(reason string) *RevertError {
	packed, err := revertArgs.Pack(reason)
	if err != nil {
		panic(err)
	}
	return &RevertError{
		reason: reason,
		data:   append(append([]byte(nil), revertSelector...), packed...),
	}
}

func (e *RevertError) Error() string {
	if e.reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.reason
}

// ErrorCode is the json-rpc error code geth uses for reverts.
func (e *RevertError) ErrorCode() int { return 3 }

func (e *RevertError) ErrorData() interface{} { return hexutil.Encode(e.data) }

func (e *RevertError) Reason() string { return e.reason }
