// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethersphere/price-discovery/pkg/session"
	"github.com/google/go-cmp/cmp"
)

const devnetConfig = `endpoint: http://localhost:8545
chain-id: 31337
gas-price: "2000000000"
polling-interval: 2s
keystore-dir: /tmp/keys
friend-keys:
  - alice
  - bob
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadConfig(t *testing.T) {
	dir := writeConfig(t, "devnet", devnetConfig)

	c, err := session.LoadConfig(dir, "devnet")
	if err != nil {
		t.Fatal(err)
	}

	want := &session.Config{
		Endpoint:               "http://localhost:8545",
		ChainID:                31337,
		GasPrice:               "2000000000",
		LongInteractionTimeout: 5 * time.Minute,
		PollingInterval:        2 * time.Second,
		KeystoreDir:            "/tmp/keys",
		WhaleKey:               "whale",
		FriendKeys:             []string{"alice", "bob"},
		ArtifactsDir:           ".",
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := writeConfig(t, "my-net", devnetConfig)
	t.Setenv("PD_SNIPPETS_MY_NET_ENDPOINT", "http://other:8545")

	c, err := session.LoadConfig(dir, "my-net")
	if err != nil {
		t.Fatal(err)
	}
	if c.Endpoint != "http://other:8545" {
		t.Fatalf("got endpoint %s", c.Endpoint)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
	}{
		{
			name:    "missing endpoint",
			content: "keystore-dir: /tmp/keys\n",
		},
		{
			name:    "missing keystore",
			content: "endpoint: http://localhost:8545\n",
		},
		{
			name:    "bad gas price",
			content: "endpoint: http://localhost:8545\nkeystore-dir: /tmp/keys\ngas-price: cheap\n",
		},
		{
			name:    "negative gas price",
			content: "endpoint: http://localhost:8545\nkeystore-dir: /tmp/keys\ngas-price: \"-1\"\n",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeConfig(t, "net", tc.content)
			_, err := session.LoadConfig(dir, "net")
			if !errors.Is(err, session.ErrInvalidConfig) {
				t.Fatalf("got error %v, want %v", err, session.ErrInvalidConfig)
			}
		})
	}
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := session.LoadConfig(t.TempDir(), "devnet")
	if err == nil {
		t.Fatal("expected error")
	}
}
