package bus

import (
	"go.uber.org/zap"
)

// Observer is notified about connection level events. Notifications are diagnostic only,
// dispatching works the same without an observer.
type Observer interface {
	ServerConnected()
	ServerDisconnected()
	ClientJoinedServer(clientID string)
	ClientLeftServer(clientID string)
	ClientJoinedChannel(clientID, channel string)
	ClientLeftChannel(clientID, channel string)
	SubscriberJoinedChannel(clientID, channel string)
	SubscriberLeftChannel(clientID, channel string)
	ChannelCreated(channel string)
	ChannelDestroyed(channel string)
	AsyncMessageReceived(msg *Message)
}

// NopObserver ignores all notifications.
type NopObserver struct{}

// ServerConnected implementation
func (NopObserver) ServerConnected() {}

// ServerDisconnected implementation
func (NopObserver) ServerDisconnected() {}

// ClientJoinedServer implementation
func (NopObserver) ClientJoinedServer(string) {}

// ClientLeftServer implementation
func (NopObserver) ClientLeftServer(string) {}

// ClientJoinedChannel implementation
func (NopObserver) ClientJoinedChannel(string, string) {}

// ClientLeftChannel implementation
func (NopObserver) ClientLeftChannel(string, string) {}

// SubscriberJoinedChannel implementation
func (NopObserver) SubscriberJoinedChannel(string, string) {}

// SubscriberLeftChannel implementation
func (NopObserver) SubscriberLeftChannel(string, string) {}

// ChannelCreated implementation
func (NopObserver) ChannelCreated(string) {}

// ChannelDestroyed implementation
func (NopObserver) ChannelDestroyed(string) {}

// AsyncMessageReceived implementation
func (NopObserver) AsyncMessageReceived(*Message) {}

// LogObserver writes every notification to the log at debug level.
type LogObserver struct {
	Log *zap.Logger
}

// ServerConnected implementation
func (o LogObserver) ServerConnected() {
	o.Log.Debug("Message bus server connected.")
}

// ServerDisconnected implementation
func (o LogObserver) ServerDisconnected() {
	o.Log.Debug("Message bus server disconnected.")
}

// ClientJoinedServer implementation
func (o LogObserver) ClientJoinedServer(clientID string) {
	o.Log.Debug("Client joined the server.", zap.String("client", clientID))
}

// ClientLeftServer implementation
func (o LogObserver) ClientLeftServer(clientID string) {
	o.Log.Debug("Client left the server.", zap.String("client", clientID))
}

// ClientJoinedChannel implementation
func (o LogObserver) ClientJoinedChannel(clientID, channel string) {
	o.Log.Debug("Client joined channel.", zap.String("client", clientID), zap.String("channel", channel))
}

// ClientLeftChannel implementation
func (o LogObserver) ClientLeftChannel(clientID, channel string) {
	o.Log.Debug("Client left channel.", zap.String("client", clientID), zap.String("channel", channel))
}

// SubscriberJoinedChannel implementation
func (o LogObserver) SubscriberJoinedChannel(clientID, channel string) {
	o.Log.Debug("Client subscribed to channel.", zap.String("client", clientID), zap.String("channel", channel))
}

// SubscriberLeftChannel implementation
func (o LogObserver) SubscriberLeftChannel(clientID, channel string) {
	o.Log.Debug("Client unsubscribed from channel.", zap.String("client", clientID), zap.String("channel", channel))
}

// ChannelCreated implementation
func (o LogObserver) ChannelCreated(channel string) {
	o.Log.Debug("Channel created.", zap.String("channel", channel))
}

// ChannelDestroyed implementation
func (o LogObserver) ChannelDestroyed(channel string) {
	o.Log.Debug("Channel destroyed.", zap.String("channel", channel))
}

// AsyncMessageReceived implementation
func (o LogObserver) AsyncMessageReceived(msg *Message) {
	o.Log.Debug("Async message received.", zap.Object("message", msg))
}

func notify(observer Observer, msg *Message) {
	switch msg.Event {
	case EventClientJoinedServer:
		observer.ClientJoinedServer(msg.Subject)
	case EventClientLeftServer:
		observer.ClientLeftServer(msg.Subject)
	case EventClientJoinedChannel:
		observer.ClientJoinedChannel(msg.Subject, msg.Channel)
	case EventClientLeftChannel:
		observer.ClientLeftChannel(msg.Subject, msg.Channel)
	case EventSubscriberJoinedChannel:
		observer.SubscriberJoinedChannel(msg.Subject, msg.Channel)
	case EventSubscriberLeftChannel:
		observer.SubscriberLeftChannel(msg.Subject, msg.Channel)
	case EventChannelCreated:
		observer.ChannelCreated(msg.Channel)
	case EventChannelDestroyed:
		observer.ChannelDestroyed(msg.Channel)
	}
}
