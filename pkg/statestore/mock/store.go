// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mock is a map backed storage.StateStorer for tests.
package mock

import (
	"sort"
	"strings"
	"sync"

	"github.com/ethersphere/price-discovery/pkg/storage"
)

var _ storage.StateStorer = (*store)(nil)

type store struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewStateStore() storage.StateStorer {
	return &store{values: make(map[string][]byte)}
}

func (s *store) Get(key string, i interface{}) error {
	s.mu.RLock()
	data, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return storage.ErrNotFound
	}
	return storage.Decode(data, i)
}

func (s *store) Put(key string, i interface{}) error {
	data, err := storage.Encode(i)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.values[key] = data
	s.mu.Unlock()
	return nil
}

func (s *store) Delete(key string) error {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}

// Iterate works on a snapshot so iterFunc may modify the store.
func (s *store) Iterate(prefix string, iterFunc storage.StateIterFunc) error {
	type entry struct {
		key   string
		value []byte
	}
	s.mu.RLock()
	var entries []entry
	for k, v := range s.values {
		if strings.HasPrefix(k, prefix) {
			entries = append(entries, entry{key: k, value: append([]byte(nil), v...)})
		}
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	for _, e := range entries {
		stop, err := iterFunc([]byte(e.key), e.value)
		if err != nil || stop {
			return err
		}
	}
	return nil
}

func (s *store) Close() error {
	return nil
}
