package publishers

// Logger is the structured logging surface sinks write delivery records to.
// *logger.Logger satisfies it.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type discardLogger struct{}

func (discardLogger) InfoObj(string, string, interface{})  {}
func (discardLogger) DebugObj(string, string, interface{}) {}
func (discardLogger) WarnObj(string, string, interface{})  {}
func (discardLogger) ErrorObj(string, string, interface{}) {}

// ensureLogger lets sinks be built without a logger in tests and tools.
func ensureLogger(log Logger) Logger {
	if log != nil {
		return log
	}
	return discardLogger{}
}

// deliveryFields is the common record logged once a sink accepts an alert.
// Notices carry no opportunity id, so the key is omitted for them.
func deliveryFields(publisherID string, evt Event, extra map[string]any) map[string]any {
	fields := map[string]any{
		"publisher_id": publisherID,
		"event_id":     evt.ID,
		"kind":         evt.Kind,
	}
	if evt.OpportunityID != "" {
		fields["opportunity_id"] = evt.OpportunityID
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields
}
