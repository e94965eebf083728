package notify

import (
	"context"

	"github.com/AzielCF/postpilot/infrastructure/valkey"
	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/sirupsen/logrus"
)

// EventsChannel is the pub/sub channel (under the configured key prefix)
// the websocket feed relays from.
const EventsChannel = "events"

// ValkeySink relays events over pub/sub so every process's websocket
// clients see them, not just the one that dispatched.
type ValkeySink struct {
	vk *valkey.Client
}

func NewValkeySink(vk *valkey.Client) *ValkeySink {
	return &ValkeySink{vk: vk}
}

func (s *ValkeySink) Emit(ctx context.Context, event common.InstanceEvent) {
	if s.vk == nil {
		return
	}
	if err := s.vk.PublishJSON(ctx, EventsChannel, event); err != nil {
		logrus.WithError(err).Debug("[NOTIFY] Valkey event relay failed")
	}
}
