// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package session holds everything the interaction steps share: the network
// connection, the participants and their nonces, and the key/value storage
// that hands results from one step to the next.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethersphere/price-discovery/pkg/account"
	"github.com/ethersphere/price-discovery/pkg/artifacts"
	"github.com/ethersphere/price-discovery/pkg/contract"
	"github.com/ethersphere/price-discovery/pkg/esdt"
	"github.com/ethersphere/price-discovery/pkg/keystore/file"
	"github.com/ethersphere/price-discovery/pkg/logging"
	"github.com/ethersphere/price-discovery/pkg/sctx"
	"github.com/ethersphere/price-discovery/pkg/statestore/leveldb"
	"github.com/ethersphere/price-discovery/pkg/storage"
	"github.com/ethersphere/price-discovery/pkg/transaction"
	"github.com/ethersphere/price-discovery/pkg/transaction/wrapped"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"resenje.org/singleflight"
)

const (
	tokenKeyPrefix   = "session_token_"
	addressKeyPrefix = "session_address_"

	cancellationDepth = 6
)

var (
	ErrWrongChain = errors.New("endpoint serves another chain")

	envReplacer = strings.NewReplacer("-", "_")
)

func envPrefix(name string) string {
	return "PD_SNIPPETS_" + strings.ToUpper(envReplacer.Replace(name))
}

// Options configure how a session is loaded.
type Options struct {
	SessionsDir string
	Password    string
	Logger      logging.Logger
	// Fs is used for artifacts, the os file system if nil.
	Fs afero.Fs
}

// NetworkStatus is the head of the chain.
type NetworkStatus struct {
	BlockNumber uint64
	BlockTime   time.Time
}

// Session is passed explicitly to every step.
type Session struct {
	Name string

	logger     logging.Logger
	config     Config
	backend    wrapped.Backend
	monitor    transaction.Monitor
	txService  transaction.Service
	controller contract.Controller
	store      storage.StateStorer
	artifacts  *artifacts.Loader
	users      *Users

	mu               sync.Mutex
	chainID          *big.Int
	gasPrice         *big.Int
	configuredPrice  *big.Int
	singleflight     singleflight.Group
	additionalCloser []io.Closer
}

// Load creates the session described by <SessionsDir>/<name>.yaml.
func Load(ctx context.Context, name string, o Options) (*Session, error) {
	c, err := LoadConfig(o.SessionsDir, name)
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, c.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.Endpoint, err)
	}

	if c.MaxBlockDelay > 0 {
		if err := transaction.WaitSynced(ctx, client, c.MaxBlockDelay, c.PollingInterval); err != nil {
			client.Close()
			return nil, fmt.Errorf("wait for %s to sync: %w", c.Endpoint, err)
		}
	}

	var store storage.StateStorer
	if c.StateDir == "" {
		store, err = leveldb.NewInMemoryStateStore(o.Logger)
	} else {
		store, err = leveldb.NewStateStore(filepath.Join(c.StateDir, name), o.Logger)
	}
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("open state store: %w", err)
	}

	users, err := loadUsers(file.New(c.KeystoreDir), o.Password, c.WhaleKey, c.FriendKeys, false)
	if err != nil {
		client.Close()
		store.Close()
		return nil, err
	}

	s, err := newSession(name, *c, o, client, store, users)
	if err != nil {
		client.Close()
		store.Close()
		return nil, err
	}
	s.additionalCloser = append(s.additionalCloser, closerFunc(func() error {
		client.Close()
		return nil
	}))

	if c.ChainID != 0 {
		if err := s.SyncNetworkConfig(ctx); err != nil {
			s.Close()
			return nil, err
		}
		if s.ChainID().Int64() != c.ChainID {
			s.Close()
			return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongChain, c.ChainID, s.ChainID())
		}
	}

	return s, nil
}

func newSession(name string, c Config, o Options, backend transaction.Backend, store storage.StateStorer, users *Users) (*Session, error) {
	configuredPrice, err := c.gasPrice()
	if err != nil {
		return nil, err
	}

	fs := o.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	wrappedBackend := wrapped.NewBackend(backend)
	monitor := transaction.NewMonitor(o.Logger, wrappedBackend, c.PollingInterval, cancellationDepth)

	chainID := big.NewInt(c.ChainID)
	if c.ChainID == 0 {
		chainID, err = backend.ChainID(context.Background())
		if err != nil {
			monitor.Close()
			return nil, fmt.Errorf("get chain id: %w", err)
		}
	}

	txService, err := transaction.NewService(o.Logger, wrappedBackend, store, chainID, monitor)
	if err != nil {
		monitor.Close()
		return nil, err
	}

	return &Session{
		Name:            name,
		logger:          o.Logger,
		config:          c,
		backend:         wrappedBackend,
		monitor:         monitor,
		txService:       txService,
		controller:      contract.NewController(o.Logger, wrappedBackend, txService),
		store:           store,
		artifacts:       artifacts.New(fs, c.ArtifactsDir),
		users:           users,
		chainID:         chainID,
		gasPrice:        configuredPrice,
		configuredPrice: configuredPrice,
	}, nil
}

func (s *Session) Logger() logging.Logger                  { return s.logger }
func (s *Session) Config() Config                          { return s.config }
func (s *Session) Backend() transaction.Backend            { return s.backend }
func (s *Session) TransactionService() transaction.Service { return s.txService }
func (s *Session) Controller() contract.Controller         { return s.controller }
func (s *Session) Store() storage.StateStorer              { return s.store }
func (s *Session) Artifacts() *artifacts.Loader            { return s.artifacts }
func (s *Session) Users() *Users                           { return s.users }

func (s *Session) ChainID() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.chainID)
}

// GasPrice returns the gas price used for transactions. It is nil until the
// network config is synced unless one is configured.
func (s *Session) GasPrice() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gasPrice == nil {
		return nil
	}
	return new(big.Int).Set(s.gasPrice)
}

// SyncNetworkConfig fetches the chain id and the gas price. Concurrent calls
// share one round trip.
func (s *Session) SyncNetworkConfig(ctx context.Context) error {
	_, _, err := s.singleflight.Do(ctx, "network-config", func(ctx context.Context) (interface{}, error) {
		chainID, err := s.backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("get chain id: %w", err)
		}

		gasPrice := s.configuredPrice
		if gasPrice == nil {
			gasPrice, err = s.backend.SuggestGasPrice(ctx)
			if err != nil {
				return nil, fmt.Errorf("suggest gas price: %w", err)
			}
		}

		s.mu.Lock()
		s.chainID = chainID
		s.gasPrice = gasPrice
		s.mu.Unlock()

		s.logger.Debugf("session %s: chain id %d, gas price %d", s.Name, chainID, gasPrice)
		return nil, nil
	})
	return err
}

// Context attaches the session gas price to ctx for components which read it
// from the context.
func (s *Session) Context(ctx context.Context) context.Context {
	if price := s.GasPrice(); price != nil {
		return sctx.SetGasPrice(ctx, price)
	}
	return ctx
}

func (s *Session) NetworkStatus(ctx context.Context) (*NetworkStatus, error) {
	header, err := s.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &NetworkStatus{
		BlockNumber: header.Number.Uint64(),
		BlockTime:   time.Unix(int64(header.Time), 0),
	}, nil
}

// SyncUsers sets the local nonce of every user to the network nonce.
func (s *Session) SyncUsers(ctx context.Context, users ...*account.TestUser) error {
	var result *multierror.Error
	for _, u := range users {
		if err := u.Account.Sync(ctx, s.backend); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", u.Name, err))
		}
	}
	return result.ErrorOrNil()
}

func (s *Session) SyncAllUsers(ctx context.Context) error {
	return s.SyncUsers(ctx, s.users.All()...)
}

func (s *Session) SaveToken(key string, token esdt.Token) error {
	return s.store.Put(tokenKeyPrefix+key, token)
}

func (s *Session) LoadToken(key string) (esdt.Token, error) {
	var token esdt.Token
	if err := s.store.Get(tokenKeyPrefix+key, &token); err != nil {
		return esdt.Token{}, fmt.Errorf("load token %s: %w", key, err)
	}
	return token, nil
}

func (s *Session) SaveAddress(key string, address common.Address) error {
	return s.store.Put(addressKeyPrefix+key, address)
}

func (s *Session) LoadAddress(key string) (common.Address, error) {
	var address common.Address
	if err := s.store.Get(addressKeyPrefix+key, &address); err != nil {
		return common.Address{}, fmt.Errorf("load address %s: %w", key, err)
	}
	return address, nil
}

// ExpectLongInteraction derives a context bounded by the long interaction
// timeout.
func (s *Session) ExpectLongInteraction(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.config.LongInteractionTimeout)
}

// Metrics returns the collectors of the session components.
func (s *Session) Metrics() []prometheus.Collector {
	var cs []prometheus.Collector
	cs = append(cs, s.backend.Metrics()...)
	cs = append(cs, s.controller.Metrics()...)
	cs = append(cs, s.logger.Metrics()...)
	return cs
}

func (s *Session) Close() error {
	var result *multierror.Error
	if err := s.txService.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("transaction service: %w", err))
	}
	if err := s.monitor.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("monitor: %w", err))
	}
	if err := s.store.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("state store: %w", err))
	}
	for _, c := range s.additionalCloser {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
