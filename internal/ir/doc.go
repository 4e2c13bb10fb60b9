// Package ir defines the persisted representation of evaluation results.
//
// Matches produced by a tree are converted to MatchRecord values whose
// payloads are IRValue trees. Records serialize to RFC 8785 canonical JSON,
// so the content-addressed match ID is stable across runs and platforms.
//
// Key constraints:
//   - Numbers are exact decimals, never binary floats
//   - Timestamps are RFC 3339 strings in UTC
//   - ir imports only the event and tree packages
package ir
