// Package reader provides the content fetch capability the catalog
// provider uses to retrieve interface descriptions
package reader
