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

// Package core holds sentinel errors shared across pullpush's packages, so
// callers can match with errors.Is instead of comparing message text.
package core

import "errors"

var (
	// Configuration
	ErrSchemeUnsupported = errors.New("url scheme not handled, must be file:// or sftp://")
	ErrSftpPortRequired  = errors.New("sftp url must set a port explicitly")
	ErrSftpUserRequired  = errors.New("sftp url must set a username explicitly")

	// VFS / connectivity
	ErrConnectionFailed = errors.New("connection failed")
	ErrNotADirectory    = errors.New("path is not a directory")

	// Tracker
	ErrCorruptTracker = errors.New("tracker snapshot has content but yielded zero valid records")

	// Lifecycle
	ErrAlreadyClosed = errors.New("already closed")
)
