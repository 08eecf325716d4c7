package events

import (
	"context"

	"github.com/rs/zerolog"

	"trend-launch/internal/domain"
)

// LogPublisher пишет события в лог, когда брокер не настроен.
type LogPublisher struct {
	log zerolog.Logger
}

// NewLogPublisher создаёт публикатор в лог.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: logger.With().Str("component", "events").Logger()}
}

// Publish реализует domain.EventPublisher.
func (p *LogPublisher) Publish(_ context.Context, event domain.PipelineEvent) error {
	p.log.Info().
		Str("event", event.Event).
		Str("launch_id", event.LaunchID).
		Str("entity_id", event.EntityID).
		Interface("metadata", event.Metadata).
		Msg("events: событие конвейера")
	return nil
}
