// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package contract

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// ReturnCode is the outcome of a contract interaction as reported by the
// chain.
type ReturnCode string

const (
	ReturnCodeOK               ReturnCode = "ok"
	ReturnCodeUserError        ReturnCode = "user error"
	ReturnCodeOutOfGas         ReturnCode = "out of gas"
	ReturnCodeOutOfFunds       ReturnCode = "out of funds"
	ReturnCodeFunctionNotFound ReturnCode = "function not found"
	ReturnCodeExecutionFailed  ReturnCode = "execution failed"
	ReturnCodeUnknown          ReturnCode = "unknown"
)

func (c ReturnCode) IsSuccess() bool {
	return c == ReturnCodeOK
}

func (c ReturnCode) String() string {
	return string(c)
}

const revertPrefix = "execution reverted"

// revert reasons with a dedicated code
var reasonCodes = map[string]ReturnCode{
	"function not found":                ReturnCodeFunctionNotFound,
	"invalid function":                  ReturnCodeFunctionNotFound,
	"insufficient funds":                ReturnCodeOutOfFunds,
	"insufficient balance for transfer": ReturnCodeOutOfFunds,
}

func codeForReason(reason string) ReturnCode {
	if code, ok := reasonCodes[reason]; ok {
		return code
	}
	return ReturnCodeUserError
}

// classify maps an error returned by a call to the return code it denotes.
// The last value is false for errors which do not originate from execution.
func classify(err error) (ReturnCode, string, bool) {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := dataErr.ErrorData().(string); ok {
			if reason, err := abi.UnpackRevert(common.FromHex(data)); err == nil {
				return codeForReason(reason), reason, true
			}
		}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, revertPrefix):
		reason := strings.TrimPrefix(msg[strings.Index(msg, revertPrefix)+len(revertPrefix):], ": ")
		return codeForReason(reason), reason, true
	case strings.Contains(msg, "out of gas"), strings.Contains(msg, "gas required exceeds allowance"):
		return ReturnCodeOutOfGas, msg, true
	case strings.Contains(msg, "insufficient funds"), strings.Contains(msg, "insufficient balance"):
		return ReturnCodeOutOfFunds, msg, true
	}
	return ReturnCodeUnknown, msg, false
}
