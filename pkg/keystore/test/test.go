// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package test holds the behaviour every keystore.Service implementation
// must share.
package test

import (
	"crypto/ecdsa"
	"errors"
	"testing"

	"github.com/ethersphere/price-discovery/pkg/crypto"
	"github.com/ethersphere/price-discovery/pkg/keystore"
)

// Service runs the shared checks against an empty keystore s.
func Service(t *testing.T, s keystore.Service) {
	t.Helper()

	expectExists(t, s, "whale", false)

	if _, err := s.Load("whale", "pass123456"); !errors.Is(err, keystore.ErrKeyNotFound) {
		t.Fatalf("got error %v, want %v", err, keystore.ErrKeyNotFound)
	}

	whale, created, err := s.Key("whale", "pass123456")
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("whale key not created")
	}
	expectExists(t, s, "whale", true)

	again, created, err := s.Key("whale", "pass123456")
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("whale key created twice")
	}
	expectSameAccount(t, whale, again)

	loaded, err := s.Load("whale", "pass123456")
	if err != nil {
		t.Fatal(err)
	}
	expectSameAccount(t, whale, loaded)

	if _, err := s.Load("whale", "invalid password"); !errors.Is(err, keystore.ErrInvalidPassword) {
		t.Fatalf("got error %v, want %v", err, keystore.ErrInvalidPassword)
	}
	if _, _, err := s.Key("whale", "invalid password"); !errors.Is(err, keystore.ErrInvalidPassword) {
		t.Fatalf("got error %v, want %v", err, keystore.ErrInvalidPassword)
	}

	alice, created, err := s.Key("alice", "alicepass")
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("alice key not created")
	}
	if alice.D.Cmp(whale.D) == 0 {
		t.Fatal("alice and whale share a key")
	}

	imported, err := crypto.GenerateSecp256k1Key()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Import("bob", "bobpass", imported); err != nil {
		t.Fatal(err)
	}
	bob, err := s.Load("bob", "bobpass")
	if err != nil {
		t.Fatal(err)
	}
	expectSameAccount(t, imported, bob)

	if err := s.Import("bob", "bobpass", whale); !errors.Is(err, keystore.ErrKeyExists) {
		t.Fatalf("got error %v, want %v", err, keystore.ErrKeyExists)
	}
	bob, err = s.Load("bob", "bobpass")
	if err != nil {
		t.Fatal(err)
	}
	expectSameAccount(t, imported, bob)
}

func expectExists(t *testing.T, s keystore.Service, name string, want bool) {
	t.Helper()
	got, err := s.Exists(name)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("key %s exists %v, want %v", name, got, want)
	}
}

func expectSameAccount(t *testing.T, want, got *ecdsa.PrivateKey) {
	t.Helper()
	a1, err := crypto.NewEthereumAddress(want.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	a2, err := crypto.NewEthereumAddress(got.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	if a1 != a2 {
		t.Fatalf("got account %s, want %s", a2, a1)
	}
}
