// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package leveldb

import (
	"errors"
	"fmt"

	"github.com/ethersphere/price-discovery/pkg/logging"
	"github.com/ethersphere/price-discovery/pkg/storage"
	"github.com/syndtr/goleveldb/leveldb"
	ldberr "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	ldbs "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var _ storage.StateStorer = (*store)(nil)

type store struct {
	db   *leveldb.DB
	sync *opt.WriteOptions
}

// NewInMemoryStateStore returns a store that lives as long as the process,
// as used by dev sessions.
func NewInMemoryStateStore(l logging.Logger) (storage.StateStorer, error) {
	db, err := leveldb.Open(ldbs.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &store{db: db}, nil
}

// NewStateStore opens the store of a persistent session at path. Writes are
// synced so that a killed run keeps its pending transactions.
func NewStateStore(path string, l logging.Logger) (storage.StateStorer, error) {
	db, err := leveldb.OpenFile(path, nil)
	if ldberr.IsCorrupted(err) {
		l.Warningf("state store %s corrupted, recovering: %v", path, err)
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open state store %s: %w", path, err)
	}
	return &store{db: db, sync: &opt.WriteOptions{Sync: true}}, nil
}

func (s *store) Get(key string, i interface{}) error {
	data, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	return storage.Decode(data, i)
}

func (s *store) Put(key string, i interface{}) error {
	data, err := storage.Encode(i)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(key), data, s.sync)
}

func (s *store) Delete(key string) error {
	return s.db.Delete([]byte(key), s.sync)
}

func (s *store) Iterate(prefix string, iterFunc storage.StateIterFunc) error {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	for iter.Next() {
		stop, err := iterFunc(append([]byte(nil), iter.Key()...), append([]byte(nil), iter.Value()...))
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return iter.Error()
}

func (s *store) Close() error {
	return s.db.Close()
}
