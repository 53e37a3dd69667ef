// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import "io"

type (
	Command        = command
	Option         = option
	PasswordReader = passwordReader
)

var (
	NewCommand = newCommand
	NewLogger  = newLogger
)

const (
	OptionNamePassword     = optionNamePassword
	OptionNamePasswordFile = optionNamePasswordFile
)

func WithCfgFile(f string) func(c *Command) {
	return func(c *Command) {
		c.cfgFile = f
	}
}

func WithHomeDir(dir string) func(c *Command) {
	return func(c *Command) {
		c.homeDir = dir
	}
}

func WithArgs(a ...string) func(c *Command) {
	return func(c *Command) {
		c.root.SetArgs(a)
	}
}

func WithOutput(w io.Writer) func(c *Command) {
	return func(c *Command) {
		c.root.SetOut(w)
	}
}

func WithPasswordReader(r PasswordReader) func(c *Command) {
	return func(c *Command) {
		c.passwordReader = r
	}
}

// Password resolves the password with the given options set.
func (c *Command) Password(options map[string]string) (string, error) {
	if err := c.initConfig(); err != nil {
		return "", err
	}
	for k, v := range options {
		c.config.Set(k, v)
	}
	return c.password(c.root)
}
