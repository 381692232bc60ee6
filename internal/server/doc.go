// Package server implements the backend router: a health probe, a proxy
// onto the local workflow runtime and the scaffolder, access to the
// catalog snapshot, and a WebSocket stream of applied snapshots
package server
