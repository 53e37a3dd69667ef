// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package artifacts loads contract ABIs and bytecode from the build output
// directories.
package artifacts

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/abi"
	lru "github.com/hashicorp/golang-lru"
	"github.com/spf13/afero"
)

const (
	PriceDiscoveryABI  = "price-discovery/output/price-discovery.abi.json"
	PriceDiscoveryCode = "price-discovery/output/price-discovery.bin"
	ESDTABI            = "esdt/output/esdt.abi.json"
	ESDTCode           = "esdt/output/esdt.bin"
)

const cacheSize = 16

var ErrInvalidArtifact = errors.New("invalid artifact")

// Loader reads artifacts relative to a root directory. Parsed ABIs are
// cached.
type Loader struct {
	fs    afero.Fs
	root  string
	cache *lru.Cache
}

func New(fs afero.Fs, root string) *Loader {
	cache, err := lru.New(cacheSize)
	if err != nil {
		panic(err)
	}
	return &Loader{
		fs:    fs,
		root:  root,
		cache: cache,
	}
}

// ABI parses the json abi at the relative path.
func (l *Loader) ABI(path string) (abi.ABI, error) {
	if v, ok := l.cache.Get(path); ok {
		return v.(abi.ABI), nil
	}

	f, err := l.fs.Open(filepath.Join(l.root, path))
	if err != nil {
		return abi.ABI{}, err
	}
	defer f.Close()

	parsed, err := abi.JSON(f)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, path, err)
	}

	l.cache.Add(path, parsed)
	return parsed, nil
}

// Code reads the hex encoded bytecode at the relative path.
func (l *Loader) Code(path string) ([]byte, error) {
	data, err := afero.ReadFile(l.fs, filepath.Join(l.root, path))
	if err != nil {
		return nil, err
	}

	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("0x"))
	code := make([]byte, hex.DecodedLen(len(data)))
	if _, err := hex.Decode(code, data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, path, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s: empty bytecode", ErrInvalidArtifact, path)
	}
	return code, nil
}
