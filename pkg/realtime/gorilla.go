package realtime

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 5 * time.Second
)

// GorillaOption tunes the gorilla/websocket channel adapter.
type GorillaOption struct {
	// HandshakeTimeout bounds the dial. Optional; default 10s.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds each outbound write. Optional; default 5s.
	WriteTimeout time.Duration
	// PingInterval enables periodic ping frames when >0. Optional; default 0.
	PingInterval time.Duration
}

// NewGorillaChannel returns a factory for channels backed by
// gorilla/websocket.
func NewGorillaChannel(option ...GorillaOption) ChannelFactory {
	var opt GorillaOption
	if len(option) != 0 {
		opt = option[0]
	}
	if opt.HandshakeTimeout <= 0 {
		opt.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opt.WriteTimeout <= 0 {
		opt.WriteTimeout = defaultWriteTimeout
	}
	return func(handler ChannelHandler) Channel {
		c := &gorillaChannel{opt: opt, handler: handler}
		c.idle = sync.NewCond(&c.mu)
		return c
	}
}

type gorillaChannel struct {
	opt     GorillaOption
	handler ChannelHandler

	mu      sync.Mutex
	epoch   uint64
	opening bool
	conn    *websocket.Conn

	// delivering holds the goroutine id of the callback currently in
	// flight. Close waits on idle until a foreign callback finishes, but a
	// close issued from inside the callback's own stack must not wait.
	delivering uint64
	idle       *sync.Cond

	writeMu sync.Mutex
}

// wireEnvelope is the frame format shared with the farm event service.
// Events without a nested payload field carry their fields at the top level.
type wireEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (c *gorillaChannel) Open(endpoint string, creds Credentials) {
	c.mu.Lock()
	if c.opening || c.conn != nil {
		c.mu.Unlock()
		return
	}
	c.opening = true
	epoch := c.epoch
	c.mu.Unlock()

	go c.dial(epoch, endpoint, creds)
}

func (c *gorillaChannel) Close() {
	c.mu.Lock()
	c.epoch++
	c.opening = false
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}

	// Wait out a callback in flight on another goroutine; deliveries after
	// the epoch bump are suppressed. Skipping our own goroutine keeps a
	// close issued from inside the callback from wedging on its own stack.
	caller := gid()
	c.mu.Lock()
	for c.delivering != 0 && c.delivering != caller {
		c.idle.Wait()
	}
	c.mu.Unlock()
}

func (c *gorillaChannel) Send(topic Topic, payload []byte) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	frame, err := json.Marshal(wireEnvelope{Type: topic.WireName(), Payload: payload})
	if err != nil {
		logs.Errorf("encode outbound %s, err: %+v", topic.WireName(), err)
		return
	}

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.opt.WriteTimeout))
	err = conn.WriteMessage(websocket.TextMessage, frame)
	c.writeMu.Unlock()
	if err != nil {
		logs.Warnf("write %s, err: %+v", topic.WireName(), err)
	}
}

func (c *gorillaChannel) dial(epoch uint64, endpoint string, creds Credentials) {
	dialer := websocket.Dialer{HandshakeTimeout: c.opt.HandshakeTimeout}
	header := http.Header{}
	if creds.Token != "" {
		header.Set("Authorization", "Bearer "+creds.Token)
	}
	if creds.UserID != "" {
		header.Set("X-User-ID", creds.UserID)
	}

	conn, resp, err := dialer.Dial(endpoint, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.mu.Lock()
		if epoch == c.epoch {
			c.opening = false
		}
		c.mu.Unlock()
		c.deliver(epoch, func() { c.handler.HandleErrored(err) })
		return
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.opening = false
	c.conn = conn
	c.mu.Unlock()

	c.deliver(epoch, func() { c.handler.HandleConnected() })

	if c.opt.PingInterval > 0 {
		go c.pingLoop(epoch, conn)
	}
	c.readLoop(epoch, conn)
}

func (c *gorillaChannel) readLoop(epoch uint64, conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := epoch != c.epoch
			if !stale {
				c.conn = nil
			}
			c.mu.Unlock()
			if stale {
				return
			}
			_ = conn.Close()
			c.deliver(epoch, func() { c.handler.HandleDisconnected(err) })
			return
		}

		var envelope wireEnvelope
		if err := json.Unmarshal(frame, &envelope); err != nil {
			logs.Warnf("drop undecodable frame, err: %+v", err)
			continue
		}
		topic, ok := TopicFromWire(envelope.Type)
		if !ok || !topic.IsInbound() {
			logs.Warnf("drop frame with unknown type %q", envelope.Type)
			continue
		}
		payload := []byte(envelope.Payload)
		if len(payload) == 0 {
			payload = frame
		}
		c.deliver(epoch, func() { c.handler.HandleEvent(topic, payload) })
	}
}

func (c *gorillaChannel) pingLoop(epoch uint64, conn *websocket.Conn) {
	ticker := time.NewTicker(c.opt.PingInterval)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		stale := epoch != c.epoch || c.conn != conn
		c.mu.Unlock()
		if stale {
			return
		}
		c.writeMu.Lock()
		err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opt.WriteTimeout))
		c.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

func (c *gorillaChannel) deliver(epoch uint64, fn func()) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.delivering = gid()
	c.mu.Unlock()

	fn()

	c.mu.Lock()
	c.delivering = 0
	c.mu.Unlock()
	c.idle.Broadcast()
}

// gid parses the current goroutine id from the stack header.
func gid() uint64 {
	var buf [64]byte
	header := buf[:runtime.Stack(buf[:], false)]
	header = header[len("goroutine "):]
	n := 0
	for n < len(header) && header[n] >= '0' && header[n] <= '9' {
		n++
	}
	id, _ := strconv.ParseUint(string(header[:n]), 10, 64)
	return id
}
