// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package file

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethersphere/price-discovery/pkg/crypto"
	"github.com/ethersphere/price-discovery/pkg/keystore"
	"github.com/spf13/afero"
)

var _ keystore.Service = (*Service)(nil)

// Service keeps one Web3 Secret Storage file per user under dir, named
// after the user.
type Service struct {
	fs  afero.Fs
	dir string
}

// New returns a keystore in dir on the operating system file system.
func New(dir string) *Service {
	return NewWithFs(afero.NewOsFs(), dir)
}

func NewWithFs(fs afero.Fs, dir string) *Service {
	return &Service{fs: fs, dir: dir}
}

func (s *Service) Exists(name string) (bool, error) {
	data, err := s.read(name)
	if err != nil {
		return false, err
	}
	return len(data) > 0, nil
}

func (s *Service) Key(name, password string) (*ecdsa.PrivateKey, bool, error) {
	k, err := s.Load(name, password)
	if err == nil {
		return k, false, nil
	}
	if !errors.Is(err, keystore.ErrKeyNotFound) {
		return nil, false, err
	}

	k, err = crypto.GenerateSecp256k1Key()
	if err != nil {
		return nil, false, fmt.Errorf("generate key %s: %w", name, err)
	}
	if err := s.write(name, password, k); err != nil {
		return nil, false, err
	}
	return k, true, nil
}

func (s *Service) Load(name, password string) (*ecdsa.PrivateKey, error) {
	data, err := s.read(name)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", keystore.ErrKeyNotFound, name)
	}
	return decryptKey(data, password)
}

func (s *Service) Import(name, password string, k *ecdsa.PrivateKey) error {
	exists, err := s.Exists(name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", keystore.ErrKeyExists, name)
	}
	return s.write(name, password, k)
}

// read returns no data and no error for a missing key file.
func (s *Service) read(name string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.filename(name))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read key %s: %w", name, err)
	}
	return data, nil
}

func (s *Service) write(name, password string, k *ecdsa.PrivateKey) error {
	data, err := encryptKey(k, password)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(s.dir, 0700); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, s.filename(name), data, 0600)
}

func (s *Service) filename(name string) string {
	return filepath.Join(s.dir, name+".key")
}
