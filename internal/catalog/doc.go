// Package catalog synchronizes a serverless workflow runtime's workflows
// into the developer catalog as scaffolder templates.
//
// The Provider polls the runtime's interface description, projects every
// workflow into a template entity, and submits the full set to its
// connection. A Connection fans each submission out to Sinks such as the
// Redis-backed store, the snapshot archive, and the change Notifier
package catalog
