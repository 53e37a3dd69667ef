// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethersphere/price-discovery/pkg/account"
	"github.com/ethersphere/price-discovery/pkg/crypto"
	"github.com/ethersphere/price-discovery/pkg/keystore"
)

var ErrUnknownUser = errors.New("unknown user")

// Users are the participants of a session. The whale funds everybody else.
type Users struct {
	Whale   *account.TestUser
	friends []*account.TestUser
}

func (u *Users) Friends() []*account.TestUser {
	return append([]*account.TestUser(nil), u.friends...)
}

func (u *Users) AddressesOfFriends() []common.Address {
	addresses := make([]common.Address, 0, len(u.friends))
	for _, f := range u.friends {
		addresses = append(addresses, f.Address)
	}
	return addresses
}

// All returns the whale followed by the friends.
func (u *Users) All() []*account.TestUser {
	return append([]*account.TestUser{u.Whale}, u.friends...)
}

func (u *Users) ByName(name string) (*account.TestUser, error) {
	for _, user := range u.All() {
		if user.Name == name {
			return user, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownUser, name)
}

// loadUsers resolves the session users from ks. Friend keys are created on
// first use. The whale funds every other user so its key must already exist
// unless createWhale is set.
func loadUsers(ks keystore.Service, password, whale string, friends []string, createWhale bool) (*Users, error) {
	user := func(name string, key *ecdsa.PrivateKey) (*account.TestUser, error) {
		return account.NewTestUser(name, crypto.NewDefaultSigner(key))
	}

	var (
		key *ecdsa.PrivateKey
		err error
	)
	if createWhale {
		key, _, err = ks.Key(whale, password)
	} else {
		key, err = ks.Load(whale, password)
	}
	if err != nil {
		return nil, fmt.Errorf("whale key %s: %w", whale, err)
	}
	w, err := user(whale, key)
	if err != nil {
		return nil, err
	}

	users := &Users{Whale: w}
	for _, name := range friends {
		key, _, err := ks.Key(name, password)
		if err != nil {
			return nil, fmt.Errorf("friend key %s: %w", name, err)
		}
		f, err := user(name, key)
		if err != nil {
			return nil, err
		}
		users.friends = append(users.friends, f)
	}
	return users, nil
}
