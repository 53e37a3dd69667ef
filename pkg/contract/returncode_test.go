// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package contract_test

import (
	"errors"
	"testing"

	"github.com/ethersphere/price-discovery/pkg/contract"
	"github.com/ethersphere/price-discovery/pkg/transaction/backendsimulation"
)

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		err       error
		code      contract.ReturnCode
		message   string
		execution bool
	}{
		{
			err:       backendsimulation.Revert("ticket price mismatch"),
			code:      contract.ReturnCodeUserError,
			message:   "ticket price mismatch",
			execution: true,
		},
		{
			err:       backendsimulation.Revert("insufficient funds"),
			code:      contract.ReturnCodeOutOfFunds,
			message:   "insufficient funds",
			execution: true,
		},
		{
			err:       errors.New("execution reverted: not whitelisted"),
			code:      contract.ReturnCodeUserError,
			message:   "not whitelisted",
			execution: true,
		},
		{
			err:       errors.New("execution reverted"),
			code:      contract.ReturnCodeUserError,
			message:   "",
			execution: true,
		},
		{
			err:       backendsimulation.ErrOutOfGas,
			code:      contract.ReturnCodeOutOfGas,
			message:   "out of gas",
			execution: true,
		},
		{
			err:       errors.New("dial tcp: connection refused"),
			code:      contract.ReturnCodeUnknown,
			message:   "dial tcp: connection refused",
			execution: false,
		},
	} {
		t.Run(tc.err.Error(), func(t *testing.T) {
			code, message, execution := contract.Classify(tc.err)
			if code != tc.code {
				t.Fatalf("got wrong code. wanted %s, got %s", tc.code, code)
			}
			if message != tc.message {
				t.Fatalf("got wrong message. wanted %q, got %q", tc.message, message)
			}
			if execution != tc.execution {
				t.Fatalf("got wrong execution flag. wanted %v, got %v", tc.execution, execution)
			}
		})
	}

	if !contract.ReturnCodeOK.IsSuccess() || contract.ReturnCodeUserError.IsSuccess() {
		t.Fatal("wrong success classification")
	}
}
