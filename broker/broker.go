package broker

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/serverless/function-gateway/bus"
)

// Broker routes bus messages between logged in clients.
type Broker struct {
	log         *zap.Logger
	credentials *Credentials

	mu       sync.RWMutex
	conns    map[*client]struct{}
	clients  map[string]*client
	channels map[string]*channel
}

// Config of a Broker.
type Config struct {
	Channels    []ChannelConfig
	Credentials *Credentials
	Log         *zap.Logger
}

// ClientInfo describes a logged in client.
type ClientInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type client struct {
	conn  bus.Conn
	id    string
	name  string
	email string
}

// target is a resolved delivery: the message goes to conn.
type target struct {
	id   string
	conn bus.Conn
}

// New creates a broker with the configured channels.
func New(config Config) *Broker {
	if config.Log == nil {
		config.Log = zap.NewNop()
	}
	if config.Credentials == nil {
		config.Credentials = NewCredentials()
	}

	b := &Broker{
		log:         config.Log.Named("broker"),
		credentials: config.Credentials,
		conns:       map[*client]struct{}{},
		clients:     map[string]*client{},
		channels:    map[string]*channel{},
	}
	for _, ch := range config.Channels {
		b.channels[ch.Name] = newChannel(ch.Name, ch.Kind)
	}
	metricChannels.Set(float64(len(b.channels)))
	return b
}

// Serve handles messages of a single connection until it's closed.
func (b *Broker) Serve(conn bus.Conn) {
	c := &client{conn: conn}

	b.mu.Lock()
	b.conns[c] = struct{}{}
	b.mu.Unlock()
	metricConnections.Inc()

	defer b.disconnect(c)

	for {
		msg, err := conn.Receive()
		if err != nil {
			b.log.Debug("Connection closed.", zap.String("client", b.clientID(c)), zap.Error(err))
			return
		}
		b.handle(c, msg)
	}
}

func (b *Broker) handle(c *client, msg *bus.Message) {
	metricMessages.WithLabelValues(string(msg.Type)).Inc()

	if msg.Type == bus.TypeLogin {
		b.login(c, msg)
		return
	}

	sender := b.clientID(c)
	if sender == "" {
		b.fail(c, msg, "login required")
		return
	}
	msg.Sender = sender

	switch msg.Type {
	case bus.TypeJoin:
		b.join(c, msg, false)
	case bus.TypeSubscribe:
		b.join(c, msg, true)
	case bus.TypeSync:
		b.sync(c, msg)
	case bus.TypeAsync:
		b.async(msg)
	case bus.TypeReply:
		b.reply(msg)
	default:
		b.fail(c, msg, "unsupported message type")
	}
}

func (b *Broker) login(c *client, msg *bus.Message) {
	if msg.Sender == "" {
		b.fail(c, msg, "sender required")
		return
	}
	if b.clientID(c) != "" {
		b.fail(c, msg, "already logged in")
		return
	}
	if b.clientExists(msg.Sender) {
		b.fail(c, msg, "client id already in use")
		return
	}
	if err := b.credentials.Verify(msg.Email, msg.Password); err != nil {
		b.log.Info("Login rejected.", zap.String("email", msg.Email), zap.Error(err))
		b.fail(c, msg, err.Error())
		return
	}

	b.mu.Lock()
	if _, exists := b.clients[msg.Sender]; exists {
		// lost a race with a concurrent login of the same id
		if !b.emailInUse(msg.Email) {
			b.credentials.Forget(msg.Email)
		}
		b.mu.Unlock()
		b.fail(c, msg, "client id already in use")
		return
	}
	c.id = msg.Sender
	c.name = msg.Name
	c.email = msg.Email
	b.clients[c.id] = c
	peers := b.peers(c.id)
	b.mu.Unlock()
	metricClients.Inc()

	b.log.Debug("Client logged in.", zap.String("client", c.id), zap.String("email", c.email))
	b.send(c.conn, msg.Reply("", nil))
	b.notify(peers, &bus.Message{Type: bus.TypeEvent, Event: bus.EventClientJoinedServer, Subject: c.id})
}

func (b *Broker) join(c *client, msg *bus.Message, subscribe bool) {
	b.mu.Lock()
	ch, ok := b.channels[msg.Channel]
	if !ok {
		b.mu.Unlock()
		b.fail(c, msg, (&ErrUnknownChannel{Name: msg.Channel}).Error())
		return
	}
	event := bus.EventClientJoinedChannel
	if subscribe {
		ch.subscribe(c.id)
		event = bus.EventSubscriberJoinedChannel
	} else {
		ch.join(c.id)
	}
	peers := b.peers(c.id)
	b.mu.Unlock()

	b.log.Debug("Client joined channel.", zap.String("client", c.id), zap.String("channel", ch.name), zap.Bool("subscriber", subscribe))
	b.send(c.conn, msg.Reply("", nil))
	b.notify(peers, &bus.Message{Type: bus.TypeEvent, Event: event, Subject: c.id, Channel: ch.name})
}

func (b *Broker) sync(c *client, msg *bus.Message) {
	b.mu.Lock()
	ch, ok := b.channels[msg.Channel]
	var to *target
	reason := ""
	switch {
	case !ok:
		reason = (&ErrUnknownChannel{Name: msg.Channel}).Error()
	case !ch.has(c.id):
		reason = "not a member of channel"
	case ch.kind != Unicast:
		reason = "synchronous calls require a unicast channel"
	default:
		to = b.target(ch.pick(c.id))
		if to == nil {
			reason = "no subscribers on channel"
		}
	}
	b.mu.Unlock()

	if to == nil {
		metricUndelivered.WithLabelValues(string(msg.Type)).Inc()
		b.fail(c, msg, reason)
		return
	}

	msg.Recipient = to.id
	if err := to.conn.Send(msg); err != nil {
		b.log.Debug("Unable to forward call.", zap.Object("message", msg), zap.Error(err))
		b.fail(c, msg, "delivery failed")
	}
}

func (b *Broker) async(msg *bus.Message) {
	b.mu.Lock()
	ch, ok := b.channels[msg.Channel]
	targets := []*target{}
	if ok && ch.has(msg.Sender) {
		if ch.kind == Broadcast {
			for _, id := range ch.everyone() {
				if id != msg.Sender {
					if to := b.target(id); to != nil {
						targets = append(targets, to)
					}
				}
			}
		} else if to := b.target(ch.pick(msg.Sender)); to != nil {
			targets = append(targets, to)
		}
	}
	b.mu.Unlock()

	if len(targets) == 0 {
		metricUndelivered.WithLabelValues(string(msg.Type)).Inc()
		return
	}
	for _, to := range targets {
		b.send(to.conn, msg)
	}
}

func (b *Broker) reply(msg *bus.Message) {
	b.mu.RLock()
	to := b.target(msg.Recipient)
	b.mu.RUnlock()

	if to == nil {
		metricUndelivered.WithLabelValues(string(msg.Type)).Inc()
		b.log.Debug("Dropping reply for unknown recipient.", zap.Object("message", msg))
		return
	}
	b.send(to.conn, msg)
}

func (b *Broker) disconnect(c *client) {
	b.mu.Lock()
	delete(b.conns, c)
	events := []*bus.Message{}
	if c.id != "" && b.clients[c.id] == c {
		delete(b.clients, c.id)
		metricClients.Dec()

		for _, name := range b.channelNames() {
			ch := b.channels[name]
			member, subscriber := ch.leave(c.id)
			if member {
				events = append(events, &bus.Message{Type: bus.TypeEvent, Event: bus.EventClientLeftChannel, Subject: c.id, Channel: name})
			}
			if subscriber {
				events = append(events, &bus.Message{Type: bus.TypeEvent, Event: bus.EventSubscriberLeftChannel, Subject: c.id, Channel: name})
			}
		}
		events = append(events, &bus.Message{Type: bus.TypeEvent, Event: bus.EventClientLeftServer, Subject: c.id})
	}
	peers := b.peers(c.id)
	b.mu.Unlock()
	metricConnections.Dec()

	c.conn.Close()
	if c.email != "" {
		b.credentials.Forget(c.email)
	}
	for _, event := range events {
		b.notify(peers, event)
	}
}

// CreateChannel adds a channel at runtime. Existing channels are left untouched.
func (b *Broker) CreateChannel(name string, kind ChannelKind) bool {
	b.mu.Lock()
	if _, exists := b.channels[name]; exists {
		b.mu.Unlock()
		return false
	}
	b.channels[name] = newChannel(name, kind)
	count := len(b.channels)
	peers := b.peers("")
	b.mu.Unlock()
	metricChannels.Set(float64(count))

	b.notify(peers, &bus.Message{Type: bus.TypeEvent, Event: bus.EventChannelCreated, Channel: name})
	return true
}

// AddChannel creates a channel of the kind named "broadcast" or "unicast".
func (b *Broker) AddChannel(name, kind string) error {
	channelKind, ok := ParseChannelKind(kind)
	if !ok {
		return &ErrInvalidChannelKind{Kind: kind}
	}
	if !b.CreateChannel(name, channelKind) {
		return &ErrChannelExists{Name: name}
	}
	return nil
}

// DestroyChannel removes a channel together with its memberships.
func (b *Broker) DestroyChannel(name string) error {
	b.mu.Lock()
	if _, exists := b.channels[name]; !exists {
		b.mu.Unlock()
		return &ErrUnknownChannel{Name: name}
	}
	delete(b.channels, name)
	count := len(b.channels)
	peers := b.peers("")
	b.mu.Unlock()
	metricChannels.Set(float64(count))

	b.notify(peers, &bus.Message{Type: bus.TypeEvent, Event: bus.EventChannelDestroyed, Channel: name})
	return nil
}

// Clients lists logged in clients ordered by ID.
func (b *Broker) Clients() []ClientInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	clients := []ClientInfo{}
	for _, c := range b.clients {
		clients = append(clients, ClientInfo{ID: c.id, Name: c.name, Email: c.email})
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].ID < clients[j].ID })
	return clients
}

// Channels lists channels ordered by name.
func (b *Broker) Channels() []ChannelInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	channels := []ChannelInfo{}
	for _, name := range b.channelNames() {
		channels = append(channels, b.channels[name].info())
	}
	return channels
}

// Members lists IDs of clients that joined the channel.
func (b *Broker) Members(name string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ch, ok := b.channels[name]
	if !ok {
		return nil, &ErrUnknownChannel{Name: name}
	}
	return sorted(ch.members), nil
}

// Subscribers lists IDs of clients subscribed to the channel.
func (b *Broker) Subscribers(name string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ch, ok := b.channels[name]
	if !ok {
		return nil, &ErrUnknownChannel{Name: name}
	}
	return sorted(ch.subscribers), nil
}

// Close drops every connection.
func (b *Broker) Close() {
	b.mu.RLock()
	conns := []bus.Conn{}
	for c := range b.conns {
		conns = append(conns, c.conn)
	}
	b.mu.RUnlock()

	for _, conn := range conns {
		conn.Close()
	}
}

func (b *Broker) clientExists(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, exists := b.clients[id]
	return exists
}

// emailInUse has to be called with mu held.
func (b *Broker) emailInUse(email string) bool {
	for _, c := range b.clients {
		if c.email == email {
			return true
		}
	}
	return false
}

func (b *Broker) clientID(c *client) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return c.id
}

// target resolves a logged in client. It has to be called with mu held.
func (b *Broker) target(id string) *target {
	c, ok := b.clients[id]
	if id == "" || !ok {
		return nil
	}
	return &target{id: id, conn: c.conn}
}

// peers returns connections of logged in clients other than exclude. It has to be called with mu held.
func (b *Broker) peers(exclude string) []bus.Conn {
	peers := []bus.Conn{}
	for id, c := range b.clients {
		if id != exclude {
			peers = append(peers, c.conn)
		}
	}
	return peers
}

func (b *Broker) channelNames() []string {
	names := make([]string, 0, len(b.channels))
	for name := range b.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Broker) notify(peers []bus.Conn, event *bus.Message) {
	for _, conn := range peers {
		b.send(conn, event)
	}
}

func (b *Broker) fail(c *client, msg *bus.Message, reason string) {
	b.send(c.conn, msg.Fail("", reason))
}

func (b *Broker) send(conn bus.Conn, msg *bus.Message) {
	if err := conn.Send(msg); err != nil {
		b.log.Debug("Unable to send message.", zap.Object("message", msg), zap.Error(err))
	}
}
