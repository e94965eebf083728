package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainBroadcast(t *testing.T) {
	t.Helper()
	for {
		select {
		case <-Broadcast:
		default:
			return
		}
	}
}

func TestRelayFrame_QueuesEventForHub(t *testing.T) {
	drainBroadcast(t)

	event := common.InstanceEvent{
		Kind:       common.EventInstancePublished,
		AccountID:  "acc-1",
		ParentID:   "post-1",
		InstanceID: "inst-1",
		OccurredAt: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	relayFrame(string(payload))

	select {
	case message := <-Broadcast:
		assert.Equal(t, "INSTANCE_PUBLISHED", message.Code)
		assert.Equal(t, "Post instance published", message.Message)
	default:
		t.Fatal("expected a frame on the broadcast queue")
	}
}

func TestRelayFrame_DropsMalformedPayload(t *testing.T) {
	drainBroadcast(t)

	relayFrame("{not json")

	select {
	case message := <-Broadcast:
		t.Fatalf("unexpected frame queued: %+v", message)
	default:
	}
}
