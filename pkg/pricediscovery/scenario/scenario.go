// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scenario runs ordered interaction steps against a session and
// stops at the first failing step.
package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/ethersphere/price-discovery/pkg/sctx"
	"github.com/ethersphere/price-discovery/pkg/session"
)

// Step is one named interaction. Steps share state only through the
// session.
type Step struct {
	Name string
	Run  func(ctx context.Context, s *session.Session) error
}

// StepError is returned by Run for the step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Result is reported after every executed step.
type Result struct {
	Step     string
	Duration time.Duration
	Err      error
}

type Scenario struct {
	session *session.Session
	steps   []Step
	report  func(Result)
}

type Option interface {
	apply(*Scenario)
}

type optionFunc func(*Scenario)

func (f optionFunc) apply(s *Scenario) { f(s) }

// WithReport sets the function called with the result of every step.
func WithReport(f func(Result)) Option {
	return optionFunc(func(s *Scenario) {
		s.report = f
	})
}

func New(s *session.Session, steps []Step, opts ...Option) *Scenario {
	sc := &Scenario{
		session: s,
		steps:   steps,
		report:  func(Result) {},
	}
	for _, o := range opts {
		o.apply(sc)
	}
	return sc
}

func (sc *Scenario) Steps() []Step {
	return append([]Step(nil), sc.steps...)
}

// Run executes the steps in order.
func (sc *Scenario) Run(ctx context.Context) error {
	logger := sc.session.Logger()
	for _, step := range sc.steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: step.Name, Err: err}
		}

		logger.Debugf("scenario: running step %q", step.Name)
		start := time.Now()
		err := step.Run(sctx.SetStep(sc.session.Context(ctx), step.Name), sc.session)
		sc.report(Result{Step: step.Name, Duration: time.Since(start), Err: err})
		if err != nil {
			logger.Errorf("scenario: step %q failed: %v", step.Name, err)
			return &StepError{Step: step.Name, Err: err}
		}
	}
	return nil
}
