package api

type (
	// ErrorResponse is returned by the HTTP API when a request fails
	ErrorResponse struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}

	// HealthResponse reports service liveness
	HealthResponse struct {
		Status  string `json:"status"`
		Service string `json:"service,omitempty"`
		Version string `json:"version,omitempty"`
	}

	// TemplatesResponse lists the entities a provider last submitted
	TemplatesResponse struct {
		Provider string            `json:"provider"`
		Entities []*DeferredEntity `json:"entities"`
		Count    int               `json:"count"`
	}

	// ProvidersResponse lists every provider with a stored snapshot
	ProvidersResponse struct {
		Providers []string `json:"providers"`
		Count     int      `json:"count"`
	}

	// EventPublishedResponse acknowledges an externally raised event
	EventPublishedResponse struct {
		Topic string `json:"topic"`
	}

	// WebSocketEvent is streamed to catalog WebSocket clients
	WebSocketEvent struct {
		Topic string                `json:"topic"`
		Data  *SnapshotAppliedEvent `json:"data"`
	}
)

const HealthOK = "ok"
