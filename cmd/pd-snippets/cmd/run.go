// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ethersphere/price-discovery/pkg/devchain"
	"github.com/ethersphere/price-discovery/pkg/logging"
	"github.com/ethersphere/price-discovery/pkg/metrics"
	"github.com/ethersphere/price-discovery/pkg/pricediscovery/scenario"
	"github.com/ethersphere/price-discovery/pkg/session"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func (c *command) initRunCmd() {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the interaction scenario against a session",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(args) > 0 {
				return cmd.Help()
			}

			logger, err := newLogger(cmd, c.config.GetString(optionNameVerbosity))
			if err != nil {
				return fmt.Errorf("new logger: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := c.openSession(ctx, cmd, logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := s.Close(); cerr != nil {
					logger.Errorf("close session: %v", cerr)
				}
			}()

			out := cmd.OutOrStdout()
			sc := scenario.New(s, scenario.Default(), scenario.WithReport(func(r scenario.Result) {
				printResult(out, r)
			}))
			runErr := sc.Run(ctx)

			if c.config.GetBool(optionNamePrintMetrics) {
				if err := printMetrics(out, s); err != nil {
					logger.Errorf("print metrics: %v", err)
				}
			}
			return runErr
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return c.config.BindPFlags(cmd.Flags())
		},
	}

	c.setSessionFlags(cmd)
	cmd.Flags().Bool(optionNameDev, false, "run against an in-memory chain instead of a session network")
	cmd.Flags().String(optionNameVerbosity, "info", "log verbosity level 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=trace")
	cmd.Flags().String(optionNamePassword, "", "password for decrypting the session keys")
	cmd.Flags().String(optionNamePasswordFile, "", "path to a file that contains password for decrypting the session keys")
	cmd.Flags().String(optionNameArtifactsDir, ".", "directory with the contract artifacts of the in-memory chain")
	cmd.Flags().Bool(optionNamePrintMetrics, false, "print the collected metrics after the run")

	c.root.AddCommand(cmd)
}

func (c *command) openSession(ctx context.Context, cmd *cobra.Command, logger logging.Logger) (*session.Session, error) {
	if c.config.GetBool(optionNameDev) {
		dev, err := devchain.NewSession(ctx, session.DevOptions{
			Logger:       logger,
			ArtifactsDir: c.config.GetString(optionNameArtifactsDir),
		})
		if err != nil {
			return nil, fmt.Errorf("dev session: %w", err)
		}
		return dev.Session, nil
	}

	name := c.config.GetString(optionNameSession)
	dir := c.config.GetString(optionNameSessionsDir)

	if err := loadSessionEnv(dir, name); err != nil {
		return nil, err
	}

	password, err := c.password(cmd)
	if err != nil {
		return nil, err
	}

	s, err := session.Load(ctx, name, session.Options{
		SessionsDir: dir,
		Password:    password,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", name, err)
	}
	return s, nil
}

// loadSessionEnv applies <dir>/<name>.env, if any, as overrides for the
// session config, see session.LoadConfig.
func loadSessionEnv(dir, name string) error {
	envFile := filepath.Join(dir, name+".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

func (c *command) password(cmd *cobra.Command) (string, error) {
	if p := c.config.GetString(optionNamePassword); p != "" {
		return p, nil
	}
	if file := c.config.GetString(optionNamePasswordFile); file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return terminalPromptPassword(cmd, c.passwordReader, "Password")
}

func printResult(w io.Writer, r scenario.Result) {
	if r.Err != nil {
		fmt.Fprintf(w, "%-30s failed: %v\n", r.Step, r.Err)
		return
	}
	fmt.Fprintf(w, "%-30s ok (%s)\n", r.Step, r.Duration.Round(time.Millisecond))
}

func printMetrics(w io.Writer, c metrics.Collector) error {
	registry, err := metrics.NewRegistry(c)
	if err != nil {
		return err
	}
	return metrics.WriteText(w, registry)
}
