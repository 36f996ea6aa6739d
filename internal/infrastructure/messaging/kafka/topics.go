package kafka

import "github.com/chemlens/chemlens/pkg/errors"

// Topics carrying ChemLens domain events.
const (
	TopicMaterialResolved    = "chemlens.material.resolved"
	TopicEnrichmentCompleted = "chemlens.enrichment.completed"
)

// Event types appearing in EventEnvelope.Type.
const (
	EventMaterialResolved    = "material.resolved"
	EventEnrichmentCompleted = "enrichment.completed"
)

var topicByEvent = map[string]string{
	EventMaterialResolved:    TopicMaterialResolved,
	EventEnrichmentCompleted: TopicEnrichmentCompleted,
}

// TopicFor maps an event type to its topic.
func TopicFor(eventType string) (string, error) {
	topic, ok := topicByEvent[eventType]
	if !ok {
		return "", errors.New(errors.ErrCodeValidation, "unknown event type "+eventType)
	}
	return topic, nil
}

// MaterialResolvedEvent is the payload published when one item description
// finishes the resolution pipeline.
type MaterialResolvedEvent struct {
	Description string `json:"description"`
	Identifier  string `json:"identifier"`
	SearchTerm  string `json:"final_search_term"`
	Source      string `json:"source"`
	Confidence  int    `json:"confidence"`
}

// EnrichmentCompletedEvent is the payload published when a background
// enrichment run finishes.
type EnrichmentCompletedEvent struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}
