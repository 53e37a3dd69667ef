// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mem

import (
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/ethersphere/price-discovery/pkg/crypto"
	"github.com/ethersphere/price-discovery/pkg/keystore"
)

var _ keystore.Service = (*Service)(nil)

// Service keeps the keys of a dev session in memory. Passwords are
// compared, not used for encryption.
type Service struct {
	mu   sync.Mutex
	keys map[string]entry
}

type entry struct {
	key      *ecdsa.PrivateKey
	password string
}

func New() *Service {
	return &Service{keys: make(map[string]entry)}
}

func (s *Service) Exists(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[name]
	return ok, nil
}

func (s *Service) Key(name, password string) (*ecdsa.PrivateKey, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[name]; ok {
		k, err := s.load(name, password)
		return k, false, err
	}

	k, err := crypto.GenerateSecp256k1Key()
	if err != nil {
		return nil, false, fmt.Errorf("generate key %s: %w", name, err)
	}
	s.keys[name] = entry{key: k, password: password}
	return k, true, nil
}

func (s *Service) Load(name, password string) (*ecdsa.PrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(name, password)
}

func (s *Service) load(name, password string) (*ecdsa.PrivateKey, error) {
	e, ok := s.keys[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", keystore.ErrKeyNotFound, name)
	}
	if e.password != password {
		return nil, keystore.ErrInvalidPassword
	}
	return e.key, nil
}

func (s *Service) Import(name, password string, k *ecdsa.PrivateKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[name]; ok {
		return fmt.Errorf("%w: %s", keystore.ErrKeyExists, name)
	}
	s.keys[name] = entry{key: k, password: password}
	return nil
}
