package mqtt

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mochi-mqtt/server/v2/packets"
	"go.uber.org/zap"
)

var (
	ErrEndpointRequired = errors.New("realtime/mqtt: broker endpoint is required")
	ErrNotConnected     = errors.New("realtime/mqtt: broker is not connected")
)

const (
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

type ClientConfig struct {
	Endpoint       string
	ClientID       string
	Username       string
	Password       string
	CleanSession   bool
	Keepalive      time.Duration
	ConnectTimeout time.Duration
	TLSConfig      *tls.Config
}

// Client is an MQTT 3.1.1 client for a remote broker. Subscriptions survive
// reconnects; they are replayed once the session is re-established.
type Client struct {
	cfg      ClientConfig
	log      *zap.Logger
	packetID atomic.Uint32

	mu           sync.RWMutex
	conn         net.Conn
	closing      bool
	reconnecting bool
	handlers     map[string]Handler
	done         chan struct{}

	writeMu sync.Mutex
}

var _ Broker = (*Client)(nil)

func NewClient(cfg ClientConfig, log *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrEndpointRequired
	}
	if cfg.ClientID == "" {
		return nil, errors.New("realtime/mqtt: client id is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.Keepalive <= 0 {
		cfg.Keepalive = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:      cfg,
		log:      log.Named("mqtt").With(zap.String("client_id", cfg.ClientID)),
		handlers: make(map[string]Handler),
	}, nil
}

func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.closing = false
	c.done = make(chan struct{})
	c.mu.Unlock()

	conn, reader, err := c.connect(ctx)
	if err != nil {
		return err
	}
	if err := c.resubscribe(conn); err != nil {
		_ = conn.Close()
		return err
	}
	c.setConn(conn)
	go c.readLoop(conn, reader)
	go c.pingLoop()
	return nil
}

func (c *Client) Stop(context.Context) error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	conn := c.conn
	c.conn = nil
	if c.done != nil {
		close(c.done)
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = c.write(conn, packets.Packet{FixedHeader: packets.FixedHeader{Type: packets.Disconnect}})
	return conn.Close()
}

func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := c.current()
	if err != nil {
		return err
	}
	pk := packets.Packet{
		FixedHeader: packets.FixedHeader{Type: packets.Publish, Qos: qos},
		TopicName:   topic,
		Payload:     payload,
	}
	if qos > 0 {
		pk.PacketID = c.nextPacketID()
	}
	return c.write(conn, pk)
}

func (c *Client) Subscribe(filter string, handler Handler) error {
	if handler == nil {
		return ErrHandlerRequired
	}
	c.mu.Lock()
	c.handlers[filter] = handler
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		// Replayed by Start or the reconnect loop.
		return nil
	}
	return c.subscribeRemote(conn, filter)
}

func (c *Client) Unsubscribe(filter string) error {
	c.mu.Lock()
	_, ok := c.handlers[filter]
	delete(c.handlers, filter)
	conn := c.conn
	c.mu.Unlock()
	if !ok || conn == nil {
		return nil
	}
	return c.write(conn, packets.Packet{
		FixedHeader: packets.FixedHeader{Type: packets.Unsubscribe, Qos: 1},
		PacketID:    c.nextPacketID(),
		Filters:     packets.Subscriptions{{Filter: filter}},
	})
}

func (c *Client) Ack(msg Message) error {
	if msg.QoS == 0 || msg.PacketID == 0 {
		return nil
	}
	conn, err := c.current()
	if err != nil {
		return err
	}
	return c.write(conn, packets.Packet{
		FixedHeader: packets.FixedHeader{Type: packets.Puback},
		PacketID:    msg.PacketID,
	})
}

func (c *Client) connect(ctx context.Context) (net.Conn, *bufio.Reader, error) {
	conn, err := dial(ctx, c.cfg.Endpoint, c.cfg.ConnectTimeout, c.cfg.TLSConfig)
	if err != nil {
		return nil, nil, err
	}
	reader := bufio.NewReader(conn)
	err = c.write(conn, packets.Packet{
		FixedHeader:     packets.FixedHeader{Type: packets.Connect},
		ProtocolVersion: 4,
		Connect: packets.ConnectParams{
			ProtocolName:     []byte("MQTT"),
			Clean:            c.cfg.CleanSession,
			ClientIdentifier: c.cfg.ClientID,
			Keepalive:        uint16(c.cfg.Keepalive / time.Second),
			UsernameFlag:     c.cfg.Username != "",
			PasswordFlag:     c.cfg.Password != "",
			Username:         []byte(c.cfg.Username),
			Password:         []byte(c.cfg.Password),
		},
	})
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ConnectTimeout))
	ack, err := readPacket(reader)
	_ = conn.SetReadDeadline(time.Time{})
	switch {
	case err != nil:
	case ack.FixedHeader.Type != packets.Connack:
		err = fmt.Errorf("realtime/mqtt: expected connack, got packet type=%d", ack.FixedHeader.Type)
	case ack.ReasonCode != 0:
		err = fmt.Errorf("realtime/mqtt: broker rejected connection, reason_code=%d", ack.ReasonCode)
	}
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, reader, nil
}

func (c *Client) readLoop(conn net.Conn, reader *bufio.Reader) {
	for {
		pk, err := readPacket(reader)
		if err != nil {
			c.lost(conn, err)
			return
		}
		switch pk.FixedHeader.Type {
		case packets.Publish:
			c.dispatch(pk)
		case packets.Pingreq:
			_ = c.write(conn, packets.Packet{FixedHeader: packets.FixedHeader{Type: packets.Pingresp}})
		}
	}
}

func (c *Client) pingLoop() {
	c.mu.RLock()
	done := c.done
	c.mu.RUnlock()
	ticker := time.NewTicker(c.cfg.Keepalive / 2)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if conn, err := c.current(); err == nil {
				_ = c.write(conn, packets.Packet{FixedHeader: packets.FixedHeader{Type: packets.Pingreq}})
			}
		}
	}
}

func (c *Client) dispatch(pk packets.Packet) {
	msg := Message{
		Topic:    pk.TopicName,
		Payload:  pk.Payload,
		QoS:      pk.FixedHeader.Qos,
		PacketID: pk.PacketID,
	}
	c.mu.RLock()
	var matched []Handler
	for filter, h := range c.handlers {
		if topicMatchesFilter(pk.TopicName, filter) {
			matched = append(matched, h)
		}
	}
	c.mu.RUnlock()
	for _, h := range matched {
		h(msg)
	}
}

func (c *Client) lost(conn net.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		// Not the live session: a handshake in progress or already replaced.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	reconnect := !c.closing && !c.reconnecting
	if reconnect {
		c.reconnecting = true
	}
	c.mu.Unlock()

	_ = conn.Close()
	if reconnect {
		c.log.Warn("connection lost, reconnecting", zap.Error(cause))
		go c.reconnectLoop()
	}
}

func (c *Client) reconnectLoop() {
	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()
	c.mu.RLock()
	done := c.done
	c.mu.RUnlock()

	backoff := reconnectMin
	for {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
		conn, reader, err := c.connect(ctx)
		cancel()
		if err == nil {
			if err = c.resubscribe(conn); err == nil {
				c.setConn(conn)
				c.log.Info("reconnected")
				go c.readLoop(conn, reader)
				return
			}
			_ = conn.Close()
		}
		c.log.Debug("reconnect failed", zap.Error(err), zap.Duration("backoff", backoff))

		timer := time.NewTimer(backoff)
		select {
		case <-done:
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff = min(backoff*2, reconnectMax)
	}
}

func (c *Client) resubscribe(conn net.Conn) error {
	c.mu.RLock()
	filters := make([]string, 0, len(c.handlers))
	for filter := range c.handlers {
		filters = append(filters, filter)
	}
	c.mu.RUnlock()
	for _, filter := range filters {
		if err := c.subscribeRemote(conn, filter); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) subscribeRemote(conn net.Conn, filter string) error {
	return c.write(conn, packets.Packet{
		FixedHeader: packets.FixedHeader{Type: packets.Subscribe, Qos: 1},
		PacketID:    c.nextPacketID(),
		Filters:     packets.Subscriptions{{Filter: filter, Qos: QoS1}},
	})
}

func (c *Client) setConn(conn net.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) current() (net.Conn, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

func (c *Client) nextPacketID() uint16 {
	for {
		if id := uint16(c.packetID.Add(1)); id != 0 {
			return id
		}
	}
}
