// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethersphere/price-discovery/pkg/crypto"
	"github.com/ethersphere/price-discovery/pkg/keystore/file"
	"github.com/ethersphere/price-discovery/pkg/session"
	"github.com/spf13/cobra"
)

func (c *command) initImportKeyCmd() {
	cmd := &cobra.Command{
		Use:   "import-key <name> <hex private key>",
		Short: "Import a user key into the session keystore",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			name := c.config.GetString(optionNameSession)
			dir := c.config.GetString(optionNameSessionsDir)

			if err := loadSessionEnv(dir, name); err != nil {
				return err
			}
			sc, err := session.LoadConfig(dir, name)
			if err != nil {
				return err
			}

			key, err := crypto.DecodeSecp256k1PrivateKey(common.FromHex(args[1]))
			if err != nil {
				return fmt.Errorf("decode key: %w", err)
			}
			address, err := crypto.NewEthereumAddress(key.PublicKey)
			if err != nil {
				return err
			}

			password, err := c.password(cmd)
			if err != nil {
				return err
			}
			if err := file.New(sc.KeystoreDir).Import(args[0], password, key); err != nil {
				return err
			}

			cmd.Printf("imported %s as %s\n", address, args[0])
			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return c.config.BindPFlags(cmd.Flags())
		},
	}

	c.setSessionFlags(cmd)
	cmd.Flags().String(optionNamePassword, "", "password for encrypting the key")
	cmd.Flags().String(optionNamePasswordFile, "", "path to a file that contains password for encrypting the key")

	c.root.AddCommand(cmd)
}
