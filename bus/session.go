package bus

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"
	"go.uber.org/zap"
)

const (
	// DefaultSyncTimeout is how long SendSync waits for a reply unless configured otherwise.
	DefaultSyncTimeout = 15000 * time.Millisecond
	// DefaultTickInterval is the period of the connection maintenance loop.
	DefaultTickInterval = time.Second
	// DefaultJoinDelay is the pause between logging in and joining channels.
	DefaultJoinDelay = time.Second
	// DefaultHeartbeatInterval is the period of heartbeats sent to the health channel.
	DefaultHeartbeatInterval = 10 * time.Second

	// envelopeSize is the room left for the message fields around the base64 encoded data.
	envelopeSize = 4 * 1024
)

// Role decides how a session takes part in the invocation channel.
type Role int

const (
	// RoleGateway joins the invocation channel to send calls to it.
	RoleGateway Role = iota
	// RoleWorker subscribes to the invocation channel to receive calls from it.
	RoleWorker
)

func (r Role) String() string {
	if r == RoleWorker {
		return "worker"
	}
	return "gateway"
}

// Channels names the broker channels a session uses.
type Channels struct {
	Main       string
	Health     string
	Invocation string
}

// SyncHandler answers a synchronous call. An empty result means there is no response.
type SyncHandler func(ctx context.Context, msg *Message) []byte

// Config of a Session.
type Config struct {
	Role        Role
	Transport   Transport
	Channels    Channels
	SyncTimeout time.Duration
	Handler     SyncHandler
	Observer    Observer
	Log         *zap.Logger
}

// Session keeps a logical connection to the broker: it reconnects with a fresh identity
// whenever the connection is lost, logs in, joins channels and correlates synchronous
// calls with their replies.
type Session struct {
	TickInterval      time.Duration
	JoinDelay         time.Duration
	HeartbeatInterval time.Duration
	// MaxMessageSize bounds the encoded size of outgoing sync and async messages.
	MaxMessageSize int

	role        Role
	transport   Transport
	channels    Channels
	syncTimeout time.Duration
	handler     SyncHandler
	observer    Observer
	log         *zap.Logger

	mu            sync.Mutex
	ctx           context.Context
	state         State
	identity      Identity
	conn          Conn
	memberships   map[string]bool
	pending       map[string]chan *Message
	lastHeartbeat time.Time
}

// Status is a snapshot of a session used for diagnostics.
type Status struct {
	Role     string          `json:"role"`
	State    string          `json:"state"`
	Identity string          `json:"identity,omitempty"`
	Channels map[string]bool `json:"channels"`
	Pending  int             `json:"pending"`
}

// Heartbeat is published on the health channel.
type Heartbeat struct {
	Node string    `json:"node"`
	Role string    `json:"role"`
	Time time.Time `json:"time"`
}

// New creates a disconnected Session. Call Run to start maintaining the connection.
func New(config Config) *Session {
	if config.SyncTimeout <= 0 {
		config.SyncTimeout = DefaultSyncTimeout
	}
	if config.Observer == nil {
		config.Observer = NopObserver{}
	}
	if config.Log == nil {
		config.Log = zap.NewNop()
	}

	return &Session{
		TickInterval:      DefaultTickInterval,
		JoinDelay:         DefaultJoinDelay,
		HeartbeatInterval: DefaultHeartbeatInterval,
		MaxMessageSize:    MaxMessageSize,
		role:              config.Role,
		transport:         config.Transport,
		channels:          config.Channels,
		syncTimeout:       config.SyncTimeout,
		handler:           config.Handler,
		observer:          config.Observer,
		log:               config.Log.Named("bus").With(zap.String("role", config.Role.String())),
		memberships:       map[string]bool{},
		pending:           map[string]chan *Message{},
	}
}

// Run maintains the connection until ctx is cancelled. Connection problems are logged and retried on the next tick.
func (s *Session) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	ticker := time.NewTicker(s.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Session) tick(ctx context.Context) {
	if s.State() == Disconnected {
		s.log.Debug("Disconnected from message bus, attempting to reconnect.")
		s.connect(ctx)
	}

	if s.State() == Connected {
		s.log.Debug("Attempting login to message bus.")
		if err := s.login(ctx); err != nil {
			s.log.Warn("Unable to login to message bus.", zap.Error(err))
			return
		}

		s.log.Debug("Logged into message bus, joining channels.")
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.JoinDelay):
		}
	}

	switch s.State() {
	case LoggedIn:
		s.joinChannels(ctx)
	case ChannelsJoined:
		s.retryJoins(ctx)
		s.heartbeat()
	}
}

func (s *Session) connect(ctx context.Context) {
	identity := NewIdentity()
	s.setState(Connecting)

	conn, err := s.transport.Dial(ctx, identity)
	if err != nil {
		s.setState(Disconnected)
		s.log.Warn("Unable to connect to message bus.", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.conn = conn
	s.identity = identity
	s.memberships = map[string]bool{}
	s.lastHeartbeat = time.Time{}
	s.state = Connected
	s.mu.Unlock()
	metricSessionState.Set(float64(Connected))
	metricReconnects.Inc()

	s.log.Info("Connected to message bus.", zap.Object("identity", identity))
	s.observer.ServerConnected()

	go s.receive(conn)
}

func (s *Session) login(ctx context.Context) error {
	identity := s.Identity()
	_, err := s.call(ctx, &Message{
		Type:     TypeLogin,
		Name:     identity.Name,
		Email:    identity.Email,
		Password: identity.Password,
	}, s.syncTimeout)
	if err != nil {
		return err
	}

	s.transition(Connected, LoggedIn)
	return nil
}

func (s *Session) joinChannels(ctx context.Context) {
	for _, channel := range s.channelList() {
		s.join(ctx, channel)
	}
	s.transition(LoggedIn, ChannelsJoined)
}

func (s *Session) retryJoins(ctx context.Context) {
	for _, channel := range s.channelList() {
		s.mu.Lock()
		joined := s.memberships[channel]
		s.mu.Unlock()

		if !joined {
			s.join(ctx, channel)
		}
	}
}

func (s *Session) join(ctx context.Context, channel string) bool {
	msgType := TypeJoin
	if channel == s.channels.Invocation && s.role == RoleWorker {
		msgType = TypeSubscribe
	}

	_, err := s.call(ctx, &Message{Type: msgType, Channel: channel}, s.syncTimeout)

	s.mu.Lock()
	s.memberships[channel] = err == nil
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("Failed to join channel.", zap.String("channel", channel), zap.String("type", string(msgType)), zap.Error(err))
		return false
	}
	s.log.Debug("Joined channel.", zap.String("channel", channel), zap.String("type", string(msgType)))
	return true
}

func (s *Session) channelList() []string {
	channels := []string{}
	for _, channel := range []string{s.channels.Main, s.channels.Health, s.channels.Invocation} {
		if channel != "" {
			channels = append(channels, channel)
		}
	}
	return channels
}

func (s *Session) heartbeat() {
	if s.HeartbeatInterval <= 0 || s.channels.Health == "" {
		return
	}

	s.mu.Lock()
	due := time.Since(s.lastHeartbeat) >= s.HeartbeatInterval
	if due {
		s.lastHeartbeat = time.Now()
	}
	identity := s.identity
	s.mu.Unlock()
	if !due {
		return
	}

	payload, err := json.Marshal(Heartbeat{Node: identity.ID, Role: s.role.String(), Time: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := s.SendAsync(s.channels.Health, payload); err != nil {
		s.log.Debug("Unable to send heartbeat.", zap.Error(err))
	}
}

// SendSync sends payload to the channel and blocks until the reply arrives or the sync timeout elapses.
// A timeout doesn't affect later calls.
func (s *Session) SendSync(ctx context.Context, channel string, payload []byte) ([]byte, error) {
	if state := s.State(); state != ChannelsJoined {
		err := &ErrNotConnected{State: state}
		metricSyncCalls.WithLabelValues(syncResult(err)).Inc()
		return nil, err
	}

	start := time.Now()
	reply, err := s.call(ctx, &Message{Type: TypeSync, Channel: channel, Data: payload}, s.syncTimeout)
	metricSyncCalls.WithLabelValues(syncResult(err)).Inc()
	if err != nil {
		return nil, err
	}

	metricSyncDuration.Observe(time.Since(start).Seconds())
	return reply.Data, nil
}

// SendAsync sends payload to the channel without waiting for any reply.
func (s *Session) SendAsync(channel string, payload []byte) error {
	s.mu.Lock()
	conn := s.conn
	state := s.state
	sender := s.identity.ID
	s.mu.Unlock()

	if conn == nil || state < LoggedIn {
		return &ErrNotConnected{State: state}
	}
	if err := s.checkSize(payload); err != nil {
		return err
	}

	err := conn.Send(&Message{
		ID:      uuid.NewV4().String(),
		Type:    TypeAsync,
		Sender:  sender,
		Channel: channel,
		Data:    payload,
	})
	if err != nil {
		return &ErrTransport{Original: err}
	}
	return nil
}

// call sends msg with a new correlation ID and waits for the matching reply.
func (s *Session) call(ctx context.Context, msg *Message, timeout time.Duration) (*Message, error) {
	if err := s.checkSize(msg.Data); err != nil {
		s.log.Warn("Message too large to send.", zap.String("channel", msg.Channel), zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		state := s.state
		s.mu.Unlock()
		return nil, &ErrNotConnected{State: state}
	}
	msg.ID = uuid.NewV4().String()
	msg.Sender = s.identity.ID
	replies := make(chan *Message, 1)
	s.pending[msg.ID] = replies
	s.mu.Unlock()
	defer s.forget(msg.ID)

	if err := conn.Send(msg); err != nil {
		return nil, &ErrTransport{Original: err}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-replies:
		if reply == nil {
			return nil, &ErrTransport{Original: errors.New("connection lost while waiting for reply")}
		}
		if !reply.Success {
			return nil, &ErrRejected{Type: msg.Type, Reason: reply.Error}
		}
		return reply, nil
	case <-timer.C:
		s.log.Debug("Call timed out.", zap.Object("message", msg), zap.Duration("timeout", timeout))
		return nil, &ErrTimeout{Timeout: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// checkSize rejects payloads whose encoded message the broker would refuse to read. The
// broker drops the whole connection on an oversized message.
func (s *Session) checkSize(payload []byte) error {
	size := base64.StdEncoding.EncodedLen(len(payload)) + envelopeSize
	if s.MaxMessageSize > 0 && size > s.MaxMessageSize {
		return &ErrMessageTooLarge{Size: size, Limit: s.MaxMessageSize}
	}
	return nil
}

func (s *Session) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

func (s *Session) deliver(msg *Message) {
	s.mu.Lock()
	replies, ok := s.pending[msg.ID]
	delete(s.pending, msg.ID)
	s.mu.Unlock()

	if !ok {
		s.log.Debug("Dropping reply without a waiting call.", zap.Object("message", msg))
		return
	}

	select {
	case replies <- msg:
	default:
	}
}

func (s *Session) receive(conn Conn) {
	for {
		msg, err := conn.Receive()
		if err != nil {
			s.disconnected(conn, err)
			return
		}

		switch msg.Type {
		case TypeReply:
			s.deliver(msg)
		case TypeSync:
			go s.handleSync(conn, msg)
		case TypeAsync:
			s.observer.AsyncMessageReceived(msg)
		case TypeEvent:
			notify(s.observer, msg)
		default:
			s.log.Debug("Unknown message received.", zap.Object("message", msg))
		}
	}
}

func (s *Session) handleSync(conn Conn, msg *Message) {
	metricSyncHandled.Inc()
	sender := s.Identity().ID

	if s.handler == nil {
		if err := conn.Send(msg.Fail(sender, "node does not handle synchronous calls")); err != nil {
			s.log.Debug("Unable to send reply.", zap.Error(err))
		}
		return
	}

	data := s.handler(s.context(), msg)
	reply := msg.Reply(sender, data)
	if err := s.checkSize(data); err != nil {
		s.log.Warn("Reply too large to send.", zap.Object("message", msg), zap.Error(err))
		reply = msg.Fail(sender, err.Error())
	}
	if err := conn.Send(reply); err != nil {
		s.log.Warn("Unable to send reply.", zap.Object("message", msg), zap.Error(err))
	}
}

func (s *Session) disconnected(conn Conn, err error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.reset()
	s.mu.Unlock()

	conn.Close()
	s.log.Warn("Disconnected from message bus.", zap.Error(err))
	s.observer.ServerDisconnected()
}

// reset drops the connection state. It has to be called with mu held.
func (s *Session) reset() {
	s.conn = nil
	s.state = Disconnected
	s.memberships = map[string]bool{}
	for id, replies := range s.pending {
		select {
		case replies <- nil:
		default:
		}
		delete(s.pending, id)
	}
	metricSessionState.Set(float64(Disconnected))
}

// Close drops the current connection. Run reconnects on its next tick unless its context is done.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.reset()
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the identity of the current connection.
func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Joined reports whether the channel was joined on the current connection.
func (s *Session) Joined(channel string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memberships[channel]
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	channels := make(map[string]bool, len(s.memberships))
	for channel, joined := range s.memberships {
		channels[channel] = joined
	}
	return Status{
		Role:     s.role.String(),
		State:    s.state.String(),
		Identity: s.identity.ID,
		Channels: channels,
		Pending:  len(s.pending),
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	metricSessionState.Set(float64(state))
}

// transition moves the session to a new state only if it's still in the expected one.
func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	metricSessionState.Set(float64(to))
	return true
}

func (s *Session) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}
