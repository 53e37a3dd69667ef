// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"errors"

	"github.com/ethersphere/price-discovery/pkg/session"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

func (c *command) initPrintConfigCmd() {
	cmd := &cobra.Command{
		Use:   "printconfig",
		Short: "Print the effective configuration as yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := map[string]interface{}{
				"options": c.config.AllSettings(),
			}

			config, err := session.LoadConfig(c.config.GetString(optionNameSessionsDir), c.config.GetString(optionNameSession))
			var notFound viper.ConfigFileNotFoundError
			switch {
			case err == nil:
				out["session"] = config
			case errors.As(err, &notFound):
			default:
				return err
			}

			b, err := yaml.Marshal(out)
			if err != nil {
				return err
			}
			cmd.Print(string(b))
			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return c.config.BindPFlags(cmd.Flags())
		},
	}

	c.setSessionFlags(cmd)
	c.root.AddCommand(cmd)
}
