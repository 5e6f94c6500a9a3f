/*
 * Copyright 2026 The pullpush Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package pullpush is the library facade over internal/orchestrator, for
// callers embedding a transfer run instead of invoking cmd/pullpush.
package pullpush

import (
	"context"

	"github.com/sflanaga/pullpush/internal/config"
	"github.com/sflanaga/pullpush/internal/orchestrator"
)

// Config is the full set of run options; re-exported so callers need not
// import internal/config directly.
type Config = config.Config

// Summary reports what a run transferred.
type Summary = orchestrator.Summary

// Run executes one pull/push pass: lists the source, filters against the
// tracker, transfers eligible files, and commits the tracker. It blocks
// until every worker has joined.
func Run(ctx context.Context, cfg *Config) (*Summary, error) {
	return orchestrator.Run(ctx, cfg)
}
