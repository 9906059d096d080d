// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

// Package auth implements the Matchday credential and token lifecycle:
// registration, password login, signed session issuance, email
// verification, password reset, OTP login, and password change.
//
// The package holds the domain model and orchestration only. Persistence
// lives behind AccountRepository (see postgres subpackage), email delivery
// behind EmailDispatcher (see internal/mail), and transport in
// internal/httpapi. All dependencies are injected; there is no package
// state.
package auth
