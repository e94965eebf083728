package websocket

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/postpilot/infrastructure/notify"
	"github.com/AzielCF/postpilot/infrastructure/valkey"
	"github.com/AzielCF/postpilot/scheduling/domain/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	valkeylib "github.com/valkey-io/valkey-go"
)

type client struct{}

// FeedMessage is the frame pushed to connected dashboards.
type FeedMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

var (
	Clients    = make(map[*websocket.Conn]client)
	Register   = make(chan *websocket.Conn)
	Broadcast  = make(chan FeedMessage, 64)
	Unregister = make(chan *websocket.Conn)

	vkClient *valkey.Client
)

// SetValkeyClient enables the distributed feed: instead of being fed
// in-process, the hub relays the shared events channel so every server's
// clients see every event exactly once.
func SetValkeyClient(client *valkey.Client) {
	vkClient = client
}

// Sink adapts the hub to the dispatcher's event sink seam. Wire it only
// when Valkey is disabled; with Valkey the hub feeds from pub/sub.
type Sink struct{}

func (Sink) Emit(_ context.Context, event common.InstanceEvent) {
	BroadcastEvent(event)
}

// BroadcastEvent queues an event for delivery to local clients. Drops the
// frame when the hub is backed up rather than blocking the dispatcher.
func BroadcastEvent(event common.InstanceEvent) {
	message := FeedMessage{
		Code:    strings.ToUpper(string(event.Kind)),
		Message: describeEvent(event.Kind),
		Result:  event,
	}
	select {
	case Broadcast <- message:
	default:
		logrus.Warn("[WS] Broadcast queue full, dropping event")
	}
}

func describeEvent(kind common.EventKind) string {
	switch kind {
	case common.EventInstancePublished:
		return "Post instance published"
	case common.EventInstanceFailed:
		return "Post instance failed"
	case common.EventPostUpcoming:
		return "Post due soon"
	case common.EventAnalyticsAlert:
		return "Analytics swing detected"
	default:
		return string(kind)
	}
}

func handleRegister(conn *websocket.Conn) {
	Clients[conn] = client{}
	logrus.Debug("[WS] Connection registered")
}

func handleUnregister(conn *websocket.Conn) {
	delete(Clients, conn)
	logrus.Debug("[WS] Connection unregistered")
}

func broadcastToLocal(message FeedMessage) {
	marshalMessage, err := json.Marshal(message)
	if err != nil {
		logrus.Errorf("[WS] Marshal error: %v", err)
		return
	}

	for conn := range Clients {
		if err := conn.WriteMessage(websocket.TextMessage, marshalMessage); err != nil {
			logrus.Errorf("[WS] Write error: %v", err)
			closeConnection(conn)
		}
	}
}

// relayFrame turns a pub/sub payload into a hub broadcast. The Clients map
// belongs to the hub goroutine, so the subscriber must hand frames off
// through the Broadcast channel rather than write to connections itself.
func relayFrame(payload string) {
	var event common.InstanceEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		logrus.Debugf("[WS] Ignoring malformed event frame: %v", err)
		return
	}
	BroadcastEvent(event)
}

func startValkeySubscriber() {
	logrus.Info("[WS] Starting Valkey subscriber for the distributed event feed")
	go func() {
		channel := vkClient.Key(notify.EventsChannel)
		err := vkClient.Inner().Receive(context.Background(), vkClient.Inner().B().Subscribe().Channel(channel).Build(), func(msg valkeylib.PubSubMessage) {
			relayFrame(msg.Message)
		})
		if err != nil {
			logrus.Errorf("[WS] Valkey subscriber failed: %v", err)
		}
	}()
}

func closeConnection(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
	_ = conn.Close()
	delete(Clients, conn)
}

func RunHub() {
	if vkClient != nil {
		startValkeySubscriber()
	}

	for {
		select {
		case conn := <-Register:
			handleRegister(conn)

		case conn := <-Unregister:
			handleUnregister(conn)

		case message := <-Broadcast:
			broadcastToLocal(message)
		}
	}
}

func RegisterRoutes(app fiber.Router) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		defer func() {
			Unregister <- conn
			_ = conn.Close()
		}()

		Register <- conn

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logrus.Println("read error:", err)
				}
				return
			}

			if messageType != websocket.TextMessage {
				continue
			}

			var frame FeedMessage
			if err := json.Unmarshal(message, &frame); err != nil {
				logrus.Println("unmarshal error:", err)
				continue
			}

			if frame.Code == "PING" {
				pong, _ := json.Marshal(FeedMessage{Code: "PONG", Message: "Feed alive"})
				if err := conn.WriteMessage(websocket.TextMessage, pong); err != nil {
					return
				}
			}
		}
	}))
}
