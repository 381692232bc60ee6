// Package swfcatalog synchronizes Serverless Workflow definitions exposed by
// a workflow runtime into a developer portal catalog as scaffolder templates
package swfcatalog

const (
	Name    = "swf-catalog"
	Version = "0.1.0"
)
