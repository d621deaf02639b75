package bus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var testChannels = Channels{Main: "main", Health: "health", Invocation: "invocation"}

func TestSessionJoinsChannels(t *testing.T) {
	t.Run("gateway joins invocation channel", func(t *testing.T) {
		broker := &fakeBroker{}
		session, stop := runSession(broker, RoleGateway, nil)
		defer stop()

		waitForState(t, session, ChannelsJoined)

		conn := broker.conn(0)
		assert.Len(t, conn.sentOfType(TypeLogin), 1)
		assert.Equal(t, []string{"main", "health", "invocation"}, channelsOf(conn.sentOfType(TypeJoin)))
		assert.Empty(t, conn.sentOfType(TypeSubscribe))
		assert.True(t, session.Joined("invocation"))
	})

	t.Run("worker subscribes to invocation channel", func(t *testing.T) {
		broker := &fakeBroker{}
		session, stop := runSession(broker, RoleWorker, nil)
		defer stop()

		waitForState(t, session, ChannelsJoined)

		conn := broker.conn(0)
		assert.Equal(t, []string{"main", "health"}, channelsOf(conn.sentOfType(TypeJoin)))
		assert.Equal(t, []string{"invocation"}, channelsOf(conn.sentOfType(TypeSubscribe)))
	})
}

func TestSessionLogsInWithItsIdentity(t *testing.T) {
	broker := &fakeBroker{}
	session, stop := runSession(broker, RoleGateway, nil)
	defer stop()

	waitForState(t, session, ChannelsJoined)

	identity := session.Identity()
	login := broker.conn(0).sentOfType(TypeLogin)[0]
	assert.Equal(t, identity.ID, login.Sender)
	assert.Equal(t, identity.Email, login.Email)
	assert.Equal(t, identity.Password, login.Password)
	assert.Equal(t, identity, broker.identity(0))
}

func TestSessionReconnectsWithNewIdentity(t *testing.T) {
	broker := &fakeBroker{}
	session, stop := runSession(broker, RoleGateway, nil)
	defer stop()

	waitForState(t, session, ChannelsJoined)
	first := session.Identity()

	broker.conn(0).Close()

	assert.Eventually(t, func() bool { return broker.dials() == 2 && session.State() == ChannelsJoined }, time.Second, 5*time.Millisecond)
	second := session.Identity()
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.Email, second.Email)

	conn := broker.conn(1)
	assert.Equal(t, second.Email, conn.sentOfType(TypeLogin)[0].Email)
	assert.Equal(t, []string{"main", "health", "invocation"}, channelsOf(conn.sentOfType(TypeJoin)))
}

func TestSessionRetriesDialing(t *testing.T) {
	broker := &fakeBroker{failDials: 2}
	session, stop := runSession(broker, RoleGateway, nil)
	defer stop()

	waitForState(t, session, ChannelsJoined)
	assert.Equal(t, 3, broker.dials())
}

func TestSessionRetriesFailedJoins(t *testing.T) {
	broker := &fakeBroker{rejectJoins: map[string]int{"health": 1}}
	session, stop := runSession(broker, RoleGateway, nil)
	defer stop()

	waitForState(t, session, ChannelsJoined)

	assert.Eventually(t, func() bool { return session.Joined("health") }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, broker.dials())
}

func TestSendSync(t *testing.T) {
	t.Run("reply correlated with the call", func(t *testing.T) {
		broker := &fakeBroker{}
		broker.answer(func(conn *fakeConn, msg *Message) {
			conn.push(msg.Reply("worker", append([]byte("re:"), msg.Data...)))
		})
		session, stop := runSession(broker, RoleGateway, nil)
		defer stop()
		waitForState(t, session, ChannelsJoined)

		var wg sync.WaitGroup
		for _, payload := range []string{"a", "b", "c", "d"} {
			wg.Add(1)
			go func(payload string) {
				defer wg.Done()
				reply, err := session.SendSync(context.Background(), "invocation", []byte(payload))
				assert.Nil(t, err)
				assert.Equal(t, "re:"+payload, string(reply))
			}(payload)
		}
		wg.Wait()

		for _, msg := range broker.conn(0).sentOfType(TypeSync) {
			assert.Equal(t, "invocation", msg.Channel)
			assert.Equal(t, session.Identity().ID, msg.Sender)
			assert.NotEmpty(t, msg.ID)
		}
		assert.Equal(t, 0, session.Status().Pending)
	})

	t.Run("failed reply", func(t *testing.T) {
		broker := &fakeBroker{}
		broker.answer(func(conn *fakeConn, msg *Message) {
			conn.push(msg.Fail("broker", "no subscribers"))
		})
		session, stop := runSession(broker, RoleGateway, nil)
		defer stop()
		waitForState(t, session, ChannelsJoined)

		_, err := session.SendSync(context.Background(), "invocation", []byte("x"))

		assert.Equal(t, &ErrRejected{Type: TypeSync, Reason: "no subscribers"}, err)
	})

	t.Run("not connected", func(t *testing.T) {
		session := New(Config{Transport: &fakeBroker{}, Channels: testChannels})

		_, err := session.SendSync(context.Background(), "invocation", []byte("x"))

		assert.Equal(t, &ErrNotConnected{State: Disconnected}, err)
	})

	t.Run("timeout leaves session usable", func(t *testing.T) {
		broker := &fakeBroker{}
		session, stop := runSession(broker, RoleGateway, nil)
		defer stop()
		waitForState(t, session, ChannelsJoined)

		_, err := session.SendSync(context.Background(), "invocation", []byte("x"))
		assert.Equal(t, &ErrTimeout{Timeout: testSyncTimeout}, err)

		broker.answer(func(conn *fakeConn, msg *Message) {
			conn.push(msg.Reply("worker", []byte("late but fine")))
		})
		reply, err := session.SendSync(context.Background(), "invocation", []byte("x"))
		assert.Nil(t, err)
		assert.Equal(t, "late but fine", string(reply))
		assert.Equal(t, ChannelsJoined, session.State())
	})

	t.Run("duplicate and stale replies are dropped", func(t *testing.T) {
		broker := &fakeBroker{}
		broker.answer(func(conn *fakeConn, msg *Message) {
			conn.push(&Message{ID: "unknown", Type: TypeReply, Success: true, Data: []byte("stale")})
			conn.push(msg.Reply("worker", []byte("first")))
			conn.push(msg.Reply("worker", []byte("second")))
		})
		session, stop := runSession(broker, RoleGateway, nil)
		defer stop()
		waitForState(t, session, ChannelsJoined)

		reply, err := session.SendSync(context.Background(), "invocation", []byte("x"))

		assert.Nil(t, err)
		assert.Equal(t, "first", string(reply))
	})

	t.Run("disconnect fails pending call", func(t *testing.T) {
		broker := &fakeBroker{}
		broker.answer(func(conn *fakeConn, msg *Message) {
			conn.Close()
		})
		session, stop := runSession(broker, RoleGateway, func(s *Session) { s.syncTimeout = 5 * time.Second })
		defer stop()
		waitForState(t, session, ChannelsJoined)

		start := time.Now()
		_, err := session.SendSync(context.Background(), "invocation", []byte("x"))

		assert.IsType(t, &ErrTransport{}, err)
		assert.True(t, time.Since(start) < 5*time.Second)
	})

	t.Run("oversized payload keeps connection and other calls", func(t *testing.T) {
		broker := &fakeBroker{}
		broker.answer(func(conn *fakeConn, msg *Message) {
			time.Sleep(50 * time.Millisecond)
			conn.push(msg.Reply("worker", []byte("done")))
		})
		session, stop := runSession(broker, RoleGateway, func(s *Session) {
			s.syncTimeout = time.Second
			s.MaxMessageSize = 8 * 1024
		})
		defer stop()
		waitForState(t, session, ChannelsJoined)
		identity := session.Identity()

		inFlight := make(chan error, 1)
		go func() {
			_, err := session.SendSync(context.Background(), "invocation", []byte("slow"))
			inFlight <- err
		}()
		assert.Eventually(t, func() bool { return session.Status().Pending == 1 }, time.Second, time.Millisecond)

		_, err := session.SendSync(context.Background(), "invocation", make([]byte, 8*1024))

		assert.IsType(t, &ErrMessageTooLarge{}, err)
		assert.Nil(t, <-inFlight)
		assert.Len(t, broker.conn(0).sentOfType(TypeSync), 1)
		assert.Equal(t, 1, broker.dials())
		assert.Equal(t, identity, session.Identity())
		assert.Equal(t, ChannelsJoined, session.State())
	})

	t.Run("cancelled context", func(t *testing.T) {
		broker := &fakeBroker{}
		session, stop := runSession(broker, RoleGateway, func(s *Session) { s.syncTimeout = 5 * time.Second })
		defer stop()
		waitForState(t, session, ChannelsJoined)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := session.SendSync(ctx, "invocation", []byte("x"))

		assert.Equal(t, context.DeadlineExceeded, err)
	})
}

func TestSendAsync(t *testing.T) {
	broker := &fakeBroker{}
	session, stop := runSession(broker, RoleGateway, nil)
	defer stop()
	waitForState(t, session, ChannelsJoined)

	err := session.SendAsync("main", []byte("hello"))

	assert.Nil(t, err)
	sent := broker.conn(0).sentOfType(TypeAsync)
	assert.Len(t, sent, 1)
	assert.Equal(t, "main", sent[0].Channel)
	assert.Equal(t, []byte("hello"), sent[0].Data)
}

func TestSendAsyncTooLarge(t *testing.T) {
	broker := &fakeBroker{}
	session, stop := runSession(broker, RoleGateway, func(s *Session) { s.MaxMessageSize = 8 * 1024 })
	defer stop()
	waitForState(t, session, ChannelsJoined)

	err := session.SendAsync("main", make([]byte, 8*1024))

	assert.IsType(t, &ErrMessageTooLarge{}, err)
	assert.Empty(t, broker.conn(0).sentOfType(TypeAsync))
}

func TestSendAsyncNotConnected(t *testing.T) {
	session := New(Config{Transport: &fakeBroker{}, Channels: testChannels})

	err := session.SendAsync("main", []byte("hello"))

	assert.Equal(t, &ErrNotConnected{State: Disconnected}, err)
}

func TestSessionAnswersSyncCalls(t *testing.T) {
	t.Run("with handler", func(t *testing.T) {
		broker := &fakeBroker{}
		session, stop := runSession(broker, RoleWorker, func(s *Session) {
			s.handler = func(ctx context.Context, msg *Message) []byte {
				return append([]byte("handled:"), msg.Data...)
			}
		})
		defer stop()
		waitForState(t, session, ChannelsJoined)

		conn := broker.conn(0)
		conn.push(&Message{ID: "call-1", Type: TypeSync, Sender: "gateway-1", Channel: "invocation", Data: []byte("req")})

		assert.Eventually(t, func() bool { return len(conn.sentOfType(TypeReply)) == 1 }, time.Second, 5*time.Millisecond)
		reply := conn.sentOfType(TypeReply)[0]
		assert.Equal(t, "call-1", reply.ID)
		assert.Equal(t, "gateway-1", reply.Recipient)
		assert.Equal(t, session.Identity().ID, reply.Sender)
		assert.True(t, reply.Success)
		assert.Equal(t, []byte("handled:req"), reply.Data)
	})

	t.Run("reply too large", func(t *testing.T) {
		broker := &fakeBroker{}
		session, stop := runSession(broker, RoleWorker, func(s *Session) {
			s.MaxMessageSize = 8 * 1024
			s.handler = func(ctx context.Context, msg *Message) []byte {
				return make([]byte, 8*1024)
			}
		})
		defer stop()
		waitForState(t, session, ChannelsJoined)

		conn := broker.conn(0)
		conn.push(&Message{ID: "call-1", Type: TypeSync, Sender: "gateway-1", Channel: "invocation", Data: []byte("req")})

		assert.Eventually(t, func() bool { return len(conn.sentOfType(TypeReply)) == 1 }, time.Second, 5*time.Millisecond)
		reply := conn.sentOfType(TypeReply)[0]
		assert.Equal(t, "call-1", reply.ID)
		assert.False(t, reply.Success)
		assert.Empty(t, reply.Data)
		assert.Equal(t, ChannelsJoined, session.State())
	})

	t.Run("without handler", func(t *testing.T) {
		broker := &fakeBroker{}
		session, stop := runSession(broker, RoleGateway, nil)
		defer stop()
		waitForState(t, session, ChannelsJoined)

		conn := broker.conn(0)
		conn.push(&Message{ID: "call-1", Type: TypeSync, Sender: "gateway-1", Channel: "main"})

		assert.Eventually(t, func() bool { return len(conn.sentOfType(TypeReply)) == 1 }, time.Second, 5*time.Millisecond)
		reply := conn.sentOfType(TypeReply)[0]
		assert.False(t, reply.Success)
		assert.NotEmpty(t, reply.Error)
	})
}

func TestSessionNotifiesObserver(t *testing.T) {
	observer := &recordingObserver{}
	broker := &fakeBroker{}
	session, stop := runSession(broker, RoleGateway, func(s *Session) { s.observer = observer })
	defer stop()
	waitForState(t, session, ChannelsJoined)

	conn := broker.conn(0)
	conn.push(&Message{Type: TypeEvent, Event: EventClientJoinedChannel, Subject: "client-1", Channel: "main"})
	conn.push(&Message{Type: TypeEvent, Event: EventChannelCreated, Channel: "extra"})
	conn.push(&Message{Type: TypeAsync, Channel: "main", Data: []byte("ping")})
	assert.Eventually(t, func() bool { return len(observer.calls()) >= 4 }, time.Second, 5*time.Millisecond)
	conn.Close()

	assert.Eventually(t, func() bool { return len(observer.calls()) >= 5 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{
		"server-connected",
		"client-joined-channel client-1 main",
		"channel-created extra",
		"async ping",
		"server-disconnected",
	}, observer.calls()[:5])
}

func TestSessionSendsHeartbeats(t *testing.T) {
	broker := &fakeBroker{}
	session, stop := runSession(broker, RoleWorker, func(s *Session) { s.HeartbeatInterval = 10 * time.Millisecond })
	defer stop()
	waitForState(t, session, ChannelsJoined)

	conn := broker.conn(0)
	assert.Eventually(t, func() bool { return len(conn.sentOfType(TypeAsync)) >= 2 }, time.Second, 5*time.Millisecond)
	heartbeat := conn.sentOfType(TypeAsync)[0]
	assert.Equal(t, "health", heartbeat.Channel)
	assert.Contains(t, string(heartbeat.Data), `"role":"worker"`)
}

func TestSessionStopsWithContext(t *testing.T) {
	broker := &fakeBroker{}
	session := New(Config{Transport: broker, Channels: testChannels})
	session.TickInterval = 5 * time.Millisecond
	session.JoinDelay = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		session.Run(ctx)
		close(done)
	}()
	waitForState(t, session, ChannelsJoined)

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("session didn't stop")
	}
	assert.Equal(t, Disconnected, session.State())
}

const testSyncTimeout = 100 * time.Millisecond

func runSession(broker *fakeBroker, role Role, configure func(*Session)) (*Session, func()) {
	session := New(Config{
		Role:        role,
		Transport:   broker,
		Channels:    testChannels,
		SyncTimeout: testSyncTimeout,
		Log:         zap.NewNop(),
	})
	session.TickInterval = 5 * time.Millisecond
	session.JoinDelay = 0
	session.HeartbeatInterval = 0
	if configure != nil {
		configure(session)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		session.Run(ctx)
		close(done)
	}()
	return session, func() {
		cancel()
		<-done
	}
}

func waitForState(t *testing.T, session *Session, state State) {
	t.Helper()
	assert.Eventually(t, func() bool { return session.State() == state }, time.Second, 5*time.Millisecond)
}

func channelsOf(msgs []*Message) []string {
	channels := []string{}
	for _, msg := range msgs {
		channels = append(channels, msg.Channel)
	}
	return channels
}

type fakeBroker struct {
	mu          sync.Mutex
	failDials   int
	rejectJoins map[string]int
	onSync      func(conn *fakeConn, msg *Message)
	identities  []Identity
	conns       []*fakeConn
	attempts    int
}

func (b *fakeBroker) Dial(ctx context.Context, identity Identity) (Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attempts++
	if b.failDials > 0 {
		b.failDials--
		return nil, &ErrTransport{Original: errors.New("connection refused")}
	}

	conn := &fakeConn{
		broker:   b,
		incoming: make(chan *Message, 64),
		closed:   make(chan struct{}),
	}
	b.identities = append(b.identities, identity)
	b.conns = append(b.conns, conn)
	return conn, nil
}

func (b *fakeBroker) answer(onSync func(conn *fakeConn, msg *Message)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onSync = onSync
}

func (b *fakeBroker) dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

func (b *fakeBroker) conn(i int) *fakeConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conns[i]
}

func (b *fakeBroker) identity(i int) Identity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.identities[i]
}

// handle plays the broker side of membership requests and forwards calls to onSync.
func (b *fakeBroker) handle(conn *fakeConn, msg *Message) {
	switch msg.Type {
	case TypeLogin, TypeSubscribe:
		conn.push(msg.Reply("broker", nil))
	case TypeJoin:
		b.mu.Lock()
		reject := b.rejectJoins[msg.Channel] > 0
		if reject {
			b.rejectJoins[msg.Channel]--
		}
		b.mu.Unlock()

		if reject {
			conn.push(msg.Fail("broker", "try again"))
			return
		}
		conn.push(msg.Reply("broker", nil))
	case TypeSync:
		b.mu.Lock()
		onSync := b.onSync
		b.mu.Unlock()

		if onSync != nil {
			go onSync(conn, msg)
		}
	}
}

type fakeConn struct {
	broker    *fakeBroker
	incoming  chan *Message
	closed    chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	sent []*Message
}

func (c *fakeConn) Send(msg *Message) error {
	select {
	case <-c.closed:
		return errors.New("connection closed")
	default:
	}

	copied := *msg
	c.mu.Lock()
	c.sent = append(c.sent, &copied)
	c.mu.Unlock()

	c.broker.handle(c, &copied)
	return nil
}

func (c *fakeConn) Receive() (*Message, error) {
	select {
	case msg := <-c.incoming:
		return msg, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(msg *Message) {
	select {
	case c.incoming <- msg:
	case <-c.closed:
	}
}

func (c *fakeConn) sentOfType(msgType MessageType) []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs := []*Message{}
	for _, msg := range c.sent {
		if msg.Type == msgType {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

type recordingObserver struct {
	NopObserver
	mu       sync.Mutex
	recorded []string
}

func (o *recordingObserver) record(call string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recorded = append(o.recorded, call)
}

func (o *recordingObserver) calls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string{}, o.recorded...)
}

func (o *recordingObserver) ServerConnected()    { o.record("server-connected") }
func (o *recordingObserver) ServerDisconnected() { o.record("server-disconnected") }
func (o *recordingObserver) ClientJoinedChannel(clientID, channel string) {
	o.record("client-joined-channel " + clientID + " " + channel)
}
func (o *recordingObserver) ChannelCreated(channel string) { o.record("channel-created " + channel) }
func (o *recordingObserver) AsyncMessageReceived(msg *Message) {
	o.record("async " + string(msg.Data))
}
