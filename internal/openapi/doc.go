// Package openapi reads the interface description a serverless workflow
// runtime publishes and resolves the input schema of each workflow
package openapi
