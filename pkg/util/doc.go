// Package util provides small generic data structures shared by the
// catalog, broker, and server packages
package util
