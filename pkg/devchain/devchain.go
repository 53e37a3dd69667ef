// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package devchain runs sessions on the in-memory chain with the token and
// price discovery contracts available for deployment.
package devchain

import (
	"context"

	"github.com/ethersphere/price-discovery/pkg/artifacts"
	esdtemulator "github.com/ethersphere/price-discovery/pkg/esdt/emulator"
	pdemulator "github.com/ethersphere/price-discovery/pkg/pricediscovery/emulator"
	"github.com/ethersphere/price-discovery/pkg/session"
	"github.com/ethersphere/price-discovery/pkg/transaction/backendsimulation"
	"github.com/spf13/afero"
)

// Options registers the contract emulators under the bytecode of their
// artifacts.
func Options(loader *artifacts.Loader) ([]backendsimulation.Option, error) {
	tokenABI, err := loader.ABI(artifacts.ESDTABI)
	if err != nil {
		return nil, err
	}
	tokenCode, err := loader.Code(artifacts.ESDTCode)
	if err != nil {
		return nil, err
	}
	contractABI, err := loader.ABI(artifacts.PriceDiscoveryABI)
	if err != nil {
		return nil, err
	}
	contractCode, err := loader.Code(artifacts.PriceDiscoveryCode)
	if err != nil {
		return nil, err
	}

	return []backendsimulation.Option{
		backendsimulation.WithContract(tokenCode, esdtemulator.NewFactory(tokenABI)),
		backendsimulation.WithContract(contractCode, pdemulator.NewFactory(contractABI, tokenABI)),
	}, nil
}

// NewSession creates a dev session for the artifacts under o.ArtifactsDir.
func NewSession(ctx context.Context, o session.DevOptions) (*session.Dev, error) {
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	options, err := Options(artifacts.New(o.Fs, o.ArtifactsDir))
	if err != nil {
		return nil, err
	}
	o.Chain = append(options, o.Chain...)
	return session.NewDev(ctx, o)
}
