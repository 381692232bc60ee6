// Package events provides the in-process event broker that carries
// workflow change signals to the catalog provider and snapshot
// notifications to WebSocket clients
package events
