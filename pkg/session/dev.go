// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"crypto/ecdsa"
	"io"
	"math/big"
	"time"

	"github.com/ethersphere/price-discovery/pkg/keystore/mem"
	"github.com/ethersphere/price-discovery/pkg/logging"
	"github.com/ethersphere/price-discovery/pkg/statestore/leveldb"
	"github.com/ethersphere/price-discovery/pkg/transaction/backendsimulation"
	"github.com/spf13/afero"
)

const devSessionName = "dev"

var (
	DevChainID = big.NewInt(31337)

	// DefaultWhaleFunds is one million coins.
	DefaultWhaleFunds = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(1e18))

	DefaultFriends = []string{"alice", "bob", "carol"}
)

// DevOptions configure a session on the in-memory chain.
type DevOptions struct {
	Logger  logging.Logger
	Friends []string
	// WhaleKey fixes the whale account. A fresh key is generated if nil.
	WhaleKey *ecdsa.PrivateKey
	// WhaleFunds defaults to DefaultWhaleFunds.
	WhaleFunds *big.Int
	// Chain options, typically the contract emulators.
	Chain []backendsimulation.Option

	Fs           afero.Fs
	ArtifactsDir string
}

// Dev is a session whose chain can be driven by the caller.
type Dev struct {
	*Session
	Chain *backendsimulation.Backend
}

// NewDev creates a session on a fresh in-memory chain. The whale is funded,
// the friends hold nothing.
func NewDev(ctx context.Context, o DevOptions) (*Dev, error) {
	friends := o.Friends
	if friends == nil {
		friends = DefaultFriends
	}
	funds := o.WhaleFunds
	if funds == nil {
		funds = DefaultWhaleFunds
	}
	if o.Logger == nil {
		o.Logger = logging.New(io.Discard, 0)
	}

	ks := mem.New()
	if o.WhaleKey != nil {
		if err := ks.Import(defaultWhaleKey, "", o.WhaleKey); err != nil {
			return nil, err
		}
	}
	users, err := loadUsers(ks, "", defaultWhaleKey, friends, true)
	if err != nil {
		return nil, err
	}

	chainOptions := []backendsimulation.Option{
		backendsimulation.WithChainID(DevChainID),
		backendsimulation.WithFunds(users.Whale.Address, funds),
	}
	chain := backendsimulation.New(append(chainOptions, o.Chain...)...)

	store, err := leveldb.NewInMemoryStateStore(o.Logger)
	if err != nil {
		return nil, err
	}

	c := Config{
		Endpoint:               "memory",
		ChainID:                DevChainID.Int64(),
		LongInteractionTimeout: defaultLongInteractionTimeout,
		PollingInterval:        10 * time.Millisecond,
		WhaleKey:               defaultWhaleKey,
		FriendKeys:             friends,
		ArtifactsDir:           o.ArtifactsDir,
	}

	s, err := newSession(devSessionName, c, Options{Logger: o.Logger, Fs: o.Fs}, chain, store, users)
	if err != nil {
		store.Close()
		return nil, err
	}
	if err := s.SyncNetworkConfig(ctx); err != nil {
		s.Close()
		return nil, err
	}

	return &Dev{Session: s, Chain: chain}, nil
}
