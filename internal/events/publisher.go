// Package events publishes voice search events to a message bus.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"voice-search-service/internal/models"
	"voice-search-service/internal/schema"
)

// Publisher fans transcript values and session transitions out to a bus.
type Publisher interface {
	PublishTranscript(ctx context.Context, ev models.TranscriptEvent) error
	PublishSession(ctx context.Context, ev models.SessionEvent) error
	Close() error
}

// encode validates the event and marshals it to JSON.
func encode(v *schema.Validator, event any) ([]byte, error) {
	if v != nil {
		if err := v.Validate(event); err != nil {
			return nil, err
		}
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return payload, nil
}
