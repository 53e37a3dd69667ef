// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package test holds the behaviour shared by every storage.StateStorer
// implementation.
package test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethersphere/price-discovery/pkg/storage"
	"github.com/google/go-cmp/cmp"
)

const (
	keyRecord  = "session_record"  // stores the binary marshaled type
	keyAddress = "contractAddress" // stores a json encoded address
)

var valueAddress = common.HexToAddress("0x5b1869d9a4c187f2eaa108f3062412ecf0526b24")

// Record is stored through the encoding.BinaryMarshaler path.
type Record struct {
	value           string
	marshalCalled   bool
	unmarshalCalled bool
}

func (r *Record) MarshalBinary() (data []byte, err error) {
	r.marshalCalled = true
	return []byte(r.value), nil
}

func (r *Record) UnmarshalBinary(data []byte) (err error) {
	r.value = string(data)
	r.unmarshalCalled = true
	return nil
}

// Run executes the common state store test suite against the store returned
// by f. Stores are closed by the caller through t.Cleanup.
func Run(t *testing.T, f func(t *testing.T) storage.StateStorer) {
	t.Helper()

	t.Run("put get", func(t *testing.T) { testPutGet(t, f(t)) })
	t.Run("not found", func(t *testing.T) { testNotFound(t, f(t)) })
	t.Run("delete", func(t *testing.T) { testDelete(t, f(t)) })
	t.Run("iterate", func(t *testing.T) { testIterator(t, f(t)) })
}

// RunPersist checks that values written before closing the store returned by
// f are readable from the store returned by g.
func RunPersist(t *testing.T, f, g func(t *testing.T) storage.StateStorer) {
	t.Helper()

	store := f(t)
	if err := store.Put(keyAddress, valueAddress); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	store = g(t)
	var got common.Address
	if err := store.Get(keyAddress, &got); err != nil {
		t.Fatal(err)
	}
	if got != valueAddress {
		t.Fatalf("got address %s, want %s", got, valueAddress)
	}
}

func testPutGet(t *testing.T, store storage.StateStorer) {
	record := &Record{value: "fooLottery"}
	if err := store.Put(keyRecord, record); err != nil {
		t.Fatal(err)
	}
	if !record.marshalCalled {
		t.Fatal("binary marshaler not called on record")
	}
	if err := store.Put(keyAddress, valueAddress); err != nil {
		t.Fatal(err)
	}

	got := &Record{}
	if err := store.Get(keyRecord, got); err != nil {
		t.Fatal(err)
	}
	if !got.unmarshalCalled {
		t.Fatal("binary unmarshaler not called on record")
	}
	if got.value != record.value {
		t.Fatalf("got record %q, want %q", got.value, record.value)
	}

	var address common.Address
	if err := store.Get(keyAddress, &address); err != nil {
		t.Fatal(err)
	}
	if address != valueAddress {
		t.Fatalf("got address %s, want %s", address, valueAddress)
	}
}

func testNotFound(t *testing.T, store storage.StateStorer) {
	var v string
	if err := store.Get("missing", &v); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("got error %v, want %v", err, storage.ErrNotFound)
	}
}

func testDelete(t *testing.T, store storage.StateStorer) {
	if err := store.Put(keyAddress, valueAddress); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(keyAddress); err != nil {
		t.Fatal(err)
	}
	var address common.Address
	if err := store.Get(keyAddress, &address); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("got error %v, want %v", err, storage.ErrNotFound)
	}
}

func testIterator(t *testing.T, store storage.StateStorer) {
	prefix := "token_"
	for key, value := range map[string]string{
		prefix + "launched": "SOCOOLWOW-5b1869",
		"unrelated":         "value2",
		prefix + "lottery":  "FOO-a1b2c3",
	} {
		if err := store.Put(key, value); err != nil {
			t.Fatal(err)
		}
	}

	entries := make(map[string]string)
	err := store.Iterate(prefix, func(key, value []byte) (stop bool, err error) {
		var entry string
		if err := json.Unmarshal(value, &entry); err != nil {
			return true, err
		}
		entries[string(key)] = entry
		return false, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]string{
		prefix + "launched": "SOCOOLWOW-5b1869",
		prefix + "lottery":  "FOO-a1b2c3",
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Fatalf("iterated entries mismatch (-want +got):\n%s", diff)
	}
}
