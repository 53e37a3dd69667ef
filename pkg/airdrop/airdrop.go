// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package airdrop funds the participants of a session from a single sender.
package airdrop

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethersphere/price-discovery/pkg/account"
	"github.com/ethersphere/price-discovery/pkg/contract"
	"github.com/ethersphere/price-discovery/pkg/esdt"
	"github.com/ethersphere/price-discovery/pkg/logging"
	"github.com/ethersphere/price-discovery/pkg/sctx"
	"github.com/ethersphere/price-discovery/pkg/transaction"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultInterval = 50 * time.Millisecond
	DefaultBurst    = 8
)

var ErrAirdropFailed = errors.New("airdrop failed")

// Result is the outcome of the transfer to one user.
type Result struct {
	User       *account.TestUser
	TxHash     common.Hash
	ReturnCode contract.ReturnCode
	Message    string
}

type Service struct {
	logger     logging.Logger
	backend    transaction.Backend
	controller contract.Controller
	chainID    *big.Int
	limiter    *rate.Limiter
}

// New creates an airdrop service that sends at most burst transactions at
// once and then one every interval.
func New(logger logging.Logger, backend transaction.Backend, controller contract.Controller, chainID *big.Int, interval time.Duration, burst int) *Service {
	return &Service{
		logger:     logger,
		backend:    backend,
		controller: controller,
		chainID:    chainID,
		limiter:    rate.NewLimiter(rate.Every(interval), burst),
	}
}

// SendToEachUser transfers the payment from sender to every user. The
// transfers are sent one after the other and awaited together. Users whose
// transfer was not sent or did not succeed are reported in the returned
// error.
func (s *Service) SendToEachUser(ctx context.Context, sender *account.TestUser, users []*account.TestUser, payment esdt.Payment) ([]Result, error) {
	results := make([]Result, len(users))
	sent := make([]bool, len(users))

	var result *multierror.Error
	for i, user := range users {
		results[i].User = user

		if err := s.limiter.Wait(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", user.Name, err))
			break
		}

		request, err := esdt.TransferRequest(payment, user.Address)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", user.Name, err))
			continue
		}
		request.GasPrice = sctx.GetGasPrice(ctx)

		signedTx, err := sender.SignRequest(ctx, s.backend, s.chainID, request)
		if err != nil {
			if syncErr := sender.Account.Sync(ctx, s.backend); syncErr != nil {
				s.logger.Errorf("airdrop: sync nonce of %s: %v", sender.Name, syncErr)
			}
			result = multierror.Append(result, fmt.Errorf("%s: %w", user.Name, err))
			continue
		}

		txHash, err := s.controller.Submit(ctx, signedTx)
		if err != nil {
			// the nonce was not used
			if syncErr := sender.Account.Sync(ctx, s.backend); syncErr != nil {
				s.logger.Errorf("airdrop: sync nonce of %s: %v", sender.Name, syncErr)
			}
			result = multierror.Append(result, fmt.Errorf("%s: %w", user.Name, err))
			continue
		}

		s.logger.Tracef("airdrop of %s to %s sent in %x", payment, user.Name, txHash)
		results[i].TxHash = txHash
		sent[i] = true
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range results {
		if !sent[i] {
			continue
		}
		i := i
		g.Go(func() error {
			bundle, err := s.controller.Await(gctx, results[i].TxHash)
			if err != nil {
				return fmt.Errorf("%s: %w", results[i].User.Name, err)
			}
			results[i].ReturnCode = bundle.ReturnCode
			results[i].Message = bundle.Message
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		result = multierror.Append(result, err)
	}

	for i, r := range results {
		if sent[i] && r.ReturnCode != "" && !r.ReturnCode.IsSuccess() {
			result = multierror.Append(result, fmt.Errorf("%w: %s: %s %s", ErrAirdropFailed, r.User.Name, r.ReturnCode, r.Message))
		}
	}

	s.logger.Debugf("airdrop of %s to %d users done", payment, len(users))
	return results, result.ErrorOrNil()
}
