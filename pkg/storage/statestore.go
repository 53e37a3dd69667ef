// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package storage defines the key/value persistence shared by the session
// and the transaction service.
package storage

import (
	"encoding"
	"encoding/json"
	"errors"
	"io"
)

var ErrNotFound = errors.New("storage: not found")

// StateStorer keeps values by key. Values implementing
// encoding.BinaryMarshaler are stored in their binary form, everything else
// as JSON.
type StateStorer interface {
	Get(key string, i interface{}) (err error)
	Put(key string, i interface{}) (err error)
	Delete(key string) (err error)
	// Iterate visits the keys starting with prefix in lexical order until
	// iterFunc stops it.
	Iterate(prefix string, iterFunc StateIterFunc) (err error)
	io.Closer
}

type StateIterFunc func(key, value []byte) (stop bool, err error)

// Encode returns the stored form of i.
func Encode(i interface{}) ([]byte, error) {
	if m, ok := i.(encoding.BinaryMarshaler); ok {
		return m.MarshalBinary()
	}
	return json.Marshal(i)
}

// Decode is the inverse of Encode.
func Decode(data []byte, i interface{}) error {
	if u, ok := i.(encoding.BinaryUnmarshaler); ok {
		return u.UnmarshalBinary(data)
	}
	return json.Unmarshal(data, i)
}
