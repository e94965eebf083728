package notify

import (
	"context"

	"github.com/AzielCF/postpilot/scheduling/application"
	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/sirupsen/logrus"
)

// Fanout delivers each event to every configured sink.
type Fanout struct {
	sinks []application.EventSink
}

func NewFanout(sinks ...application.EventSink) *Fanout {
	out := make([]application.EventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Fanout{sinks: out}
}

func (f *Fanout) Add(sink application.EventSink) {
	if sink != nil {
		f.sinks = append(f.sinks, sink)
	}
}

func (f *Fanout) Emit(ctx context.Context, event common.InstanceEvent) {
	for _, sink := range f.sinks {
		sink.Emit(ctx, event)
	}
}

// LogSink writes events to the structured log. Always wired, so every
// lifecycle event leaves a trace even with no webhook configured.
type LogSink struct{}

func (LogSink) Emit(ctx context.Context, event common.InstanceEvent) {
	entry := logrus.WithFields(logrus.Fields{
		"kind":        event.Kind,
		"account_id":  event.AccountID,
		"parent_id":   event.ParentID,
		"instance_id": event.InstanceID,
	})
	switch event.Kind {
	case common.EventInstanceFailed:
		entry.Warn("[NOTIFY] Instance failed")
	case common.EventAnalyticsAlert:
		entry.Warn("[NOTIFY] Analytics alert")
	default:
		entry.Info("[NOTIFY] " + string(event.Kind))
	}
}
