// Package api defines the data types shared between the catalog provider,
// its sinks, and the backend router
//
// This package contains workflow summaries, catalog template entities,
// mutations applied to catalog connections, broker events, and HTTP messages
package api
