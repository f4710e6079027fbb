package publishers

import "context"

// logPublisher writes events to the structured log; useful for dry runs.
type logPublisher struct {
	id  string
	log Logger
}

func newLogPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	return &logPublisher{id: cfg.ID, log: ensureLogger(log)}, nil
}

func (l *logPublisher) ID() string   { return l.id }
func (l *logPublisher) Type() string { return TypeLog }

func (l *logPublisher) Publish(_ context.Context, evt Event) error {
	l.log.InfoObj("alert", "alert_event", map[string]any{
		"publisher_id":   l.id,
		"event_id":       evt.ID,
		"kind":           evt.Kind,
		"opportunity_id": evt.OpportunityID,
		"text":           evt.Text,
	})
	return nil
}
