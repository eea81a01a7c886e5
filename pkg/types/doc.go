// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the harvest-reconcile pipeline:
// the incoming and local record shapes, resolver verdicts and outcomes, and the
// configuration tree loaded by the CLI.
package types
