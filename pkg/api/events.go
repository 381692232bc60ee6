package api

import (
	"context"
	"encoding/json"
)

type (
	// EventParams is a single event delivered through the broker
	EventParams struct {
		Topic   string          `json:"topic"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}

	// EventSubscriber receives broker events for the topics it supports
	EventSubscriber interface {
		SupportsEventTopics() []string
		OnEvent(context.Context, *EventParams) error
	}

	// SnapshotAppliedEvent is published after a sink accepts a mutation
	SnapshotAppliedEvent struct {
		Provider   string   `json:"provider"`
		MutationID string   `json:"mutation_id"`
		Count      int      `json:"count"`
		Names      []string `json:"names"`
		Timestamp  int64    `json:"timestamp"`
	}
)

// CatalogTopic carries SnapshotAppliedEvent payloads
const CatalogTopic = "catalog.snapshot"
