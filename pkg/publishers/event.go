package publishers

import (
	"time"

	"github.com/google/uuid"

	"github.com/samvad-hq/alpha-hunter/internal/domain"
)

// KindNotice marks operational messages that carry no opportunity.
const KindNotice = "NOTICE"

// Event represents the payload published downstream. Text is the rendered
// alert; chat sinks deliver it verbatim, structured sinks ship the whole event.
type Event struct {
	ID            string              `json:"id"`
	OpportunityID string              `json:"opportunity_id,omitempty"`
	Kind          string              `json:"kind"`
	Confidence    string              `json:"confidence,omitempty"`
	Text          string              `json:"text"`
	Opportunity   *domain.Opportunity `json:"opportunity,omitempty"`
	PublishedAt   time.Time           `json:"published_at"`
}

// NewEvent wraps an opportunity and its rendered text.
func NewEvent(opp domain.Opportunity, text string) Event {
	return Event{
		ID:            uuid.NewString(),
		OpportunityID: opp.ID(),
		Kind:          string(opp.Kind),
		Confidence:    string(opp.Confidence),
		Text:          text,
		Opportunity:   &opp,
		PublishedAt:   time.Now().UTC(),
	}
}

// NewNotice builds an operational message such as the startup notice.
func NewNotice(text string) Event {
	return Event{
		ID:          uuid.NewString(),
		Kind:        KindNotice,
		Text:        text,
		PublishedAt: time.Now().UTC(),
	}
}

// attributes are the routing fields copied onto broker message metadata.
func (e Event) attributes() map[string]string {
	attrs := map[string]string{"kind": e.Kind}
	if e.OpportunityID != "" {
		attrs["opportunity_id"] = e.OpportunityID
	}
	if e.Confidence != "" {
		attrs["confidence"] = e.Confidence
	}
	return attrs
}
