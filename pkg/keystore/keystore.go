// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package keystore stores the encrypted keys of the session users by name.
package keystore

import (
	"crypto/ecdsa"
	"errors"
)

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrKeyNotFound     = errors.New("key not found")
	ErrKeyExists       = errors.New("key already exists")
)

type Service interface {
	// Key returns the named key, generating and storing a new one if there
	// is none yet. created reports whether the key was generated.
	Key(name, password string) (k *ecdsa.PrivateKey, created bool, err error)
	// Load returns the named key or ErrKeyNotFound.
	Load(name, password string) (*ecdsa.PrivateKey, error)
	// Import stores an existing key under name. It fails with ErrKeyExists
	// instead of replacing a key.
	Import(name, password string, k *ecdsa.PrivateKey) error
	Exists(name string) (bool, error)
}
