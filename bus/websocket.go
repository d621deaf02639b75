package bus

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message.
	writeWait = 10 * time.Second

	// PongWait is the time allowed to read the next message or ping.
	PongWait = 30 * time.Second

	// PingPeriod is how often the broker pings its clients, must be less than PongWait.
	PingPeriod = 25 * time.Second

	// MaxMessageSize is the largest encoded message either side of the connection reads.
	MaxMessageSize = 16 * 1024 * 1024
)

// WebsocketTransport connects to the broker over a websocket.
type WebsocketTransport struct {
	URL    string
	Dialer *websocket.Dialer
}

// NewWebsocketTransport creates transport for the broker listening on host and port.
func NewWebsocketTransport(host string, port uint, secure bool) *WebsocketTransport {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: net.JoinHostPort(host, strconv.Itoa(int(port))), Path: "/"}

	return &WebsocketTransport{
		URL: u.String(),
		Dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: 5 * time.Second,
		},
	}
}

// Dial opens a websocket connection to the broker.
func (t *WebsocketTransport) Dial(ctx context.Context, identity Identity) (Conn, error) {
	ws, _, err := t.Dialer.DialContext(ctx, t.URL, nil)
	if err != nil {
		return nil, &ErrTransport{Original: err}
	}

	conn := NewWebsocketConn(ws)
	ws.SetReadDeadline(time.Now().Add(PongWait))
	ws.SetPingHandler(func(data string) error {
		ws.SetReadDeadline(time.Now().Add(PongWait))
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})
	return conn, nil
}

// WebsocketConn adapts gorilla websocket connection to Conn. It's used by both sides of the bus.
type WebsocketConn struct {
	ws        *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

// NewWebsocketConn wraps ws.
func NewWebsocketConn(ws *websocket.Conn) *WebsocketConn {
	ws.SetReadLimit(MaxMessageSize)
	return &WebsocketConn{ws: ws}
}

// Send writes the message as a single text frame.
func (c *WebsocketConn) Send(msg *Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Receive blocks until the next message arrives.
func (c *WebsocketConn) Receive() (*Message, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Ping sends a ping control frame.
func (c *WebsocketConn) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// RemoteAddr returns address of the other side.
func (c *WebsocketConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// Close closes the underlying connection. It's safe to call it more than once.
func (c *WebsocketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}
