// Package runtime launches the serverless workflow runtime that the
// backend router proxies to and the catalog provider polls
package runtime
