// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package services

import (
	"context"
)

// ContextRunner matches the Run(ctx) lifecycle shared by the IRC client,
// message pipeline, analytics scheduler, and store retry writer. Each blocks
// until the context is canceled and returns ctx.Err() on clean shutdown.
type ContextRunner interface {
	Run(ctx context.Context) error
}

// RunnerService wraps a ContextRunner as a supervised service.
//
// Example usage:
//
//	tree.AddPipelineService(services.NewRunnerService("irc-client", client))
//	tree.AddDataService(services.NewRunnerService("store-retry-writer", writer))
type RunnerService struct {
	runner ContextRunner
	name   string
}

// NewRunnerService creates a new runner service wrapper.
// The name identifies the service in supervision logs.
func NewRunnerService(name string, runner ContextRunner) *RunnerService {
	return &RunnerService{
		runner: runner,
		name:   name,
	}
}

// Serve implements suture.Service.
//
// A non-context error from Run causes suture to restart the service
// according to its backoff policy.
func (r *RunnerService) Serve(ctx context.Context) error {
	return r.runner.Run(ctx)
}

// String implements fmt.Stringer for logging.
func (r *RunnerService) String() string {
	return r.name
}
