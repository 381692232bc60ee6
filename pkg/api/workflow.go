package api

type (
	// WorkflowID identifies a workflow across refresh cycles
	WorkflowID string

	// WorkflowItem summarizes a single workflow exposed by the runtime
	WorkflowItem struct {
		ID          WorkflowID `json:"id"`
		Name        string     `json:"name,omitempty"`
		Title       string     `json:"title,omitempty"`
		Description string     `json:"description,omitempty"`
		Definition  string     `json:"definition"`
	}

	// WorkflowListResult is the paged list of workflows known to the runtime
	WorkflowListResult struct {
		Items      []*WorkflowItem `json:"items"`
		Limit      int             `json:"limit"`
		Offset     int             `json:"offset"`
		TotalCount int             `json:"totalCount"`
	}
)

const (
	// WorkflowType is the template type and tag for generated templates
	WorkflowType = "serverless-workflow"

	// WorkflowTopic is the broker topic that signals workflow changes
	WorkflowTopic = "swf"
)
