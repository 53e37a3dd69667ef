// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package leveldb_test

import (
	"io"
	"testing"

	"github.com/ethersphere/price-discovery/pkg/logging"
	"github.com/ethersphere/price-discovery/pkg/statestore/leveldb"
	"github.com/ethersphere/price-discovery/pkg/statestore/test"
	"github.com/ethersphere/price-discovery/pkg/storage"
	"github.com/sirupsen/logrus"
)

func TestPersistentStateStore(t *testing.T) {
	logger := logging.New(io.Discard, logrus.ErrorLevel)

	test.Run(t, func(t *testing.T) storage.StateStorer {
		store, err := leveldb.NewStateStore(t.TempDir(), logger)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() {
			if err := store.Close(); err != nil {
				t.Fatal(err)
			}
		})

		return store
	})
}

func TestInMemoryStateStore(t *testing.T) {
	logger := logging.New(io.Discard, logrus.ErrorLevel)

	test.Run(t, func(t *testing.T) storage.StateStorer {
		store, err := leveldb.NewInMemoryStateStore(logger)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() {
			if err := store.Close(); err != nil {
				t.Fatal(err)
			}
		})

		return store
	})
}

func TestReopen(t *testing.T) {
	logger := logging.New(io.Discard, logrus.ErrorLevel)
	dir := t.TempDir()

	open := func(t *testing.T) storage.StateStorer {
		store, err := leveldb.NewStateStore(dir, logger)
		if err != nil {
			t.Fatal(err)
		}
		return store
	}

	test.RunPersist(t, open, func(t *testing.T) storage.StateStorer {
		store := open(t)
		t.Cleanup(func() {
			if err := store.Close(); err != nil {
				t.Fatal(err)
			}
		})
		return store
	})
}
