// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emulator

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// CallbackSignature is the function a contract implements to receive tokens
// sent with transferAndCall.
const CallbackSignature = "onTokenTransfer(address,uint256,bytes)"

var (
	callbackSelector = crypto.Keccak256([]byte(CallbackSignature))[:4]
	callbackArgs     = abi.Arguments{
		{Name: "from", Type: mustType("address")},
		{Name: "amount", Type: mustType("uint256")},
		{Name: "data", Type: mustType("bytes")},
	}
	callbackResult = abi.Arguments{{Type: mustType("bool")}}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}
