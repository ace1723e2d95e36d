package rfplayer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goburrow/serial"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Default timeouts and sizes for gateway communication.
const (
	// defaultConnectTimeout is the maximum time to wait for the initial
	// connection, including the init script.
	defaultConnectTimeout = 10 * time.Second

	// defaultWriteTimeout is the timeout for outbound command writes.
	defaultWriteTimeout = 5 * time.Second

	// defaultBaudRate is the RfPlayer dongle's fixed serial speed.
	defaultBaudRate = 115200

	// readBufferSize is the size of the read buffer for incoming bytes.
	readBufferSize = 1024

	// callbackQueueSize is the buffer size for the event callback queue.
	callbackQueueSize = 100

	// callbackWorkerCount is the number of concurrent callback workers.
	callbackWorkerCount = 4
)

// Outbound command framing.
const (
	commandPrefix     = "ZIA++"
	commandTerminator = "\n\r"
)

// MinimumScript is the init sequence every session sends before any
// caller-supplied command. JSON output mode is required for structured
// frames.
var MinimumScript = []string{"FORMAT JSON"}

// ReceiverModes lists the receiver protocols the gateway can listen to,
// as accepted by the RECEIVER command. "*" means all.
var ReceiverModes = []string{
	"*",
	"X10",
	"RTS",
	"VISONIC",
	"BLYSS",
	"CHACON",
	"OREGONV1",
	"OREGONV2",
	"OREGONV3/OWL",
	"DOMIA",
	"X2D",
	"KD101",
	"PARROT",
	"TIC",
	"FS20",
	"JAMMING",
	"EDISIO",
}

// Config holds gateway connection configuration.
type Config struct {
	// Connection is the gateway connection URL.
	// Supported formats:
	//   - "serial:///dev/ttyUSB0" (USB dongle, optional "?baud=115200")
	//   - "tcp://192.168.1.10:7070" (serial-over-TCP bridge)
	Connection string

	// ConnectTimeout is the maximum time to wait for connection.
	// Default: 10 seconds.
	ConnectTimeout time.Duration

	// ReceiverProtocols restricts which RF protocols the gateway
	// listens to. Empty means keep the gateway's current setting.
	ReceiverProtocols []string

	// InitCommands are extra commands sent after the minimum script
	// and the receiver allowlist (e.g. "LEDACTIVITY 0", "JAMMING 10").
	InitCommands []string

	// EventCallback receives every classified device event.
	// Invoked from a bounded worker pool; panics are recovered.
	EventCallback func(Event)

	// DisconnectCallback is invoked exactly once when the session ends,
	// with the causing error or nil for a graceful close.
	DisconnectCallback func(error)
}

// Stats holds operational statistics for a session.
type Stats struct {
	CommandsTx         uint64
	PacketsRx          uint64
	PacketsDropped     uint64 // Events dropped due to full callback queue
	PacketsInvalid     uint64 // Lines with an unknown header or malformed body
	PacketsUnsupported uint64 // Recognized but unsupported header tags
	ErrorsTotal        uint64
	LastActivity       time.Time
	Connected          bool
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Connector is the session surface consumed by higher layers.
// It allows mocking the gateway client in tests.
type Connector interface {
	Send(command string) error
	IsConnected() bool
	Stats() Stats
	Close() error
}

// Ensure Client implements Connector.
var _ Connector = (*Client)(nil)

// transport is the byte-stream surface shared by serial ports and TCP
// connections.
type transport interface {
	io.ReadWriteCloser
}

// Client is one session with an RfPlayer gateway.
//
// A Client represents a single connection: it is created connected by
// Connect and becomes permanently closed after the transport fails or
// Close is called. Reconnecting means creating a new Client; the single
// disconnect notification tells the owner when to do so.
type Client struct {
	cfg  Config
	conn transport

	// gatewayID identifies the session in gateway pseudo-device events.
	gatewayID string

	// Connection state
	connMu    sync.RWMutex
	connected bool

	// Write serialization (serial ports have no write deadline)
	writeMu sync.Mutex

	// Inbound pipeline
	decoder *FrameDecoder
	adapter *EventAdapter

	// Callback worker pool (bounded goroutine spawning)
	callbackQueue chan Event

	// Shutdown coordination
	done           *closeOnce
	wg             sync.WaitGroup
	disconnectOnce sync.Once

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex

	// Statistics (atomic for performance)
	commandsTx         atomic.Uint64
	packetsRx          atomic.Uint64
	packetsDropped     atomic.Uint64
	packetsInvalid     atomic.Uint64
	packetsUnsupported atomic.Uint64
	errorsTotal        atomic.Uint64
	lastActivity       atomic.Int64 // Unix timestamp
}

// Connect opens a session with the RfPlayer gateway.
//
// The connection URL determines the transport:
//   - "serial:///dev/ttyUSB0?baud=115200" → USB dongle
//   - "tcp://host:port" → serial-over-TCP bridge
//
// After the transport opens, the init script runs: the minimum script
// ("FORMAT JSON"), then the receiver allowlist built from
// cfg.ReceiverProtocols, then cfg.InitCommands. The whole sequence is
// bounded by cfg.ConnectTimeout even when the serial layer blocks at
// the OS level; on expiry a not-ready error is returned without any
// event callback firing, and a session that completes late is torn
// down in the background.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}

	if ctx == nil {
		ctx = context.Background()
	}
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := awaitSession(connectCtx, func() (*Client, error) {
		return openSession(connectCtx, cfg)
	})
	if err != nil {
		return nil, err
	}

	client.start()
	return client, nil
}

// openSession dials the transport and runs the init script. Serial
// opens and writes carry no OS-level deadline, so this can outlive the
// connect context; Connect bounds it through awaitSession.
func openSession(ctx context.Context, cfg Config) (*Client, error) {
	conn, gatewayID, err := dial(ctx, cfg.Connection)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotReady, err)
	}

	client := newClient(cfg, conn, gatewayID)

	if err := client.runInitScript(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: init script: %w", ErrNotReady, err)
	}
	return client, nil
}

// awaitSession runs open on its own goroutine and gives up when ctx
// expires. A session that completes after the deadline has no owner,
// so its transport is closed in the background.
func awaitSession(ctx context.Context, open func() (*Client, error)) (*Client, error) {
	type result struct {
		client *Client
		err    error
	}

	done := make(chan result, 1)
	go func() {
		client, err := open()
		done <- result{client, err}
	}()

	select {
	case res := <-done:
		return res.client, res.err
	case <-ctx.Done():
		go func() {
			if res := <-done; res.client != nil {
				res.client.conn.Close()
			}
		}()
		return nil, fmt.Errorf("%w: connect: %w", ErrNotReady, ctx.Err())
	}
}

// newClient assembles a client around an open transport without starting
// its goroutines. Split from Connect so tests can inject a transport.
func newClient(cfg Config, conn transport, gatewayID string) *Client {
	client := &Client{
		cfg:           cfg,
		conn:          conn,
		gatewayID:     gatewayID,
		connected:     true,
		done:          newCloseOnce(),
		callbackQueue: make(chan Event, callbackQueueSize),
	}
	client.decoder = NewFrameDecoder(clientLogger{client})
	client.adapter = NewEventAdapter(gatewayID, client.queueEvent)
	client.lastActivity.Store(time.Now().Unix())
	return client
}

// start launches the callback worker pool and the receive loop.
func (c *Client) start() {
	for i := 0; i < callbackWorkerCount; i++ {
		c.wg.Add(1)
		go c.callbackWorker()
	}
	c.wg.Add(1)
	go c.receiveLoop()
}

// dial parses the connection URL and opens the matching transport.
// The returned identifier is the device path or host address, used as
// the gateway pseudo-device address.
func dial(ctx context.Context, connURL string) (transport, string, error) {
	u, err := url.Parse(connURL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: invalid URL: %w", ErrConnectionFailed, err)
	}

	switch u.Scheme {
	case "serial":
		device := u.Path
		if device == "" {
			device = "/dev/ttyUSB0"
		}
		baud := defaultBaudRate
		if s := u.Query().Get("baud"); s != "" {
			baud, err = strconv.Atoi(s)
			if err != nil {
				return nil, "", fmt.Errorf("%w: invalid baud %q", ErrConnectionFailed, s)
			}
		}
		port, err := serial.Open(&serial.Config{
			Address:  device,
			BaudRate: baud,
			DataBits: 8,
			StopBits: 1,
			Parity:   "N",
		})
		if err != nil {
			return nil, "", fmt.Errorf("%w: open %s: %w", ErrConnectionFailed, device, err)
		}
		return port, device, nil

	case "tcp":
		host := u.Host
		var dialer net.Dialer
		conn, err := dialer.DialContext(ctx, "tcp", host)
		if err != nil {
			return nil, "", fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, host, err)
		}
		return conn, host, nil

	default:
		return nil, "", fmt.Errorf("%w: unsupported scheme %q (use serial or tcp)",
			ErrConnectionFailed, u.Scheme)
	}
}

// runInitScript sends the full init sequence.
func (c *Client) runInitScript(ctx context.Context) error {
	for _, command := range c.initScript() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}
		if err := c.writeCommand(command); err != nil {
			return err
		}
	}
	return nil
}

// initScript builds the ordered init command list: minimum script,
// receiver allowlist, caller extras.
func (c *Client) initScript() []string {
	script := make([]string, 0, len(MinimumScript)+1+len(c.cfg.InitCommands))
	script = append(script, MinimumScript...)
	if len(c.cfg.ReceiverProtocols) > 0 {
		script = append(script, receiverCommand(c.cfg.ReceiverProtocols))
	}
	script = append(script, c.cfg.InitCommands...)
	return script
}

// receiverCommand builds the allowlist command, e.g.
// "RECEIVER -* +X10 +OREGONV2".
func receiverCommand(protocols []string) string {
	var b []byte
	b = append(b, "RECEIVER -*"...)
	for _, p := range protocols {
		b = append(b, " +"...)
		b = append(b, p...)
	}
	return string(b)
}

// receiveLoop continuously reads bytes from the gateway and feeds the
// frame decoder. A read error ends the session.
func (c *Client) receiveLoop() {
	defer c.wg.Done()

	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-c.done.Done():
			return
		default:
		}

		n, err := c.conn.Read(buf)
		if n > 0 {
			c.handleData(buf[:n])
		}
		if err != nil {
			if c.isClosed() {
				return // Close() owns the disconnect notification
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue // idle serial read timeout, keep waiting
			}
			c.errorsTotal.Add(1)
			c.logError("read failed, session lost", err)
			c.markDisconnected()
			c.notifyDisconnect(err)
			return
		}
	}
}

// handleData feeds raw bytes through decode and classification.
func (c *Client) handleData(data []byte) {
	for _, line := range c.decoder.Feed(data) {
		c.handleLine(line)
	}
}

// handleLine classifies one sanitized line and dispatches it.
func (c *Client) handleLine(line string) {
	data, err := ClassifyLine(line)
	if err != nil {
		switch {
		case isUnsupported(err):
			c.packetsUnsupported.Add(1)
			c.logDebug("unsupported packet format", "line", line)
		default:
			c.packetsInvalid.Add(1)
			c.logWarn("dropping invalid packet", "line", line, "error", err)
		}
		return
	}

	c.packetsRx.Add(1)
	c.lastActivity.Store(time.Now().Unix())
	c.adapter.RawEvent(data)
}

// queueEvent hands an event to the bounded worker pool, dropping on
// overflow to protect memory.
func (c *Client) queueEvent(event Event) {
	if c.cfg.EventCallback == nil {
		return
	}
	select {
	case c.callbackQueue <- event:
	default:
		c.packetsDropped.Add(1)
		c.errorsTotal.Add(1)
		c.logError("callback queue full, dropping event", nil)
	}
}

// callbackWorker processes events from the callback queue.
// Runs in a bounded worker pool to prevent goroutine explosion.
func (c *Client) callbackWorker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done.Done():
			c.drainCallbackQueue()
			return
		case event := <-c.callbackQueue:
			callback := c.cfg.EventCallback
			if callback != nil {
				func() {
					defer func() {
						if r := recover(); r != nil {
							c.logError("event callback panic", fmt.Errorf("%v", r))
						}
					}()
					callback(event)
				}()
			}
		}
	}
}

// drainCallbackQueue discards any remaining queued events during shutdown.
func (c *Client) drainCallbackQueue() {
	for {
		select {
		case <-c.callbackQueue:
		default:
			return
		}
	}
}

// Send frames a command as "ZIA++<command>\n\r" and writes it to the
// gateway. Returns ErrNotConnected when the session is closed.
func (c *Client) Send(command string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := c.writeCommand(command); err != nil {
		c.errorsTotal.Add(1)
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	c.commandsTx.Add(1)
	c.lastActivity.Store(time.Now().Unix())
	return nil
}

// SendPairing puts the gateway into association mode for a device,
// e.g. "ASSOC RTS ID 42".
func (c *Client) SendPairing(protocol, address string) error {
	return c.Send(fmt.Sprintf("ASSOC %s ID %s", protocol, address))
}

// writeCommand performs the framed write under the write lock.
func (c *Client) writeCommand(command string) error {
	frame := []byte(commandPrefix + command + commandTerminator)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if conn, ok := c.conn.(net.Conn); ok {
		if err := conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.logDebug("sent raw command", "command", command)
	return nil
}

// Simulate injects a wire line as if it had been received from the
// gateway. The line goes through the normal classification pipeline.
func (c *Client) Simulate(line string) {
	c.handleLine(strings.Trim(line, lineCutset+"\n"))
}

// Close gracefully ends the session.
//
// It stops the receive loop, closes the transport and waits for all
// goroutines to finish. Safe to call multiple times; across the whole
// session exactly one disconnect notification is delivered, with nil
// as the cause for a graceful close.
func (c *Client) Close() error {
	c.done.Close()
	c.markDisconnected()

	if c.conn != nil {
		c.conn.Close()
	}

	c.wg.Wait()
	c.notifyDisconnect(nil)

	c.logInfo("session closed")
	return nil
}

// markDisconnected flips the connection state to closed.
func (c *Client) markDisconnected() {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
}

// notifyDisconnect delivers the single disconnect notification.
// The callback runs on its own goroutine so a callback that calls
// Close cannot deadlock against wg.Wait.
func (c *Client) notifyDisconnect(err error) {
	c.disconnectOnce.Do(func() {
		if callback := c.cfg.DisconnectCallback; callback != nil {
			go callback(err)
		}
	})
}

// isClosed returns true if Close has been called.
func (c *Client) isClosed() bool {
	select {
	case <-c.done.Done():
		return true
	default:
		return false
	}
}

// IsConnected returns true while the session has an active transport.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// GatewayID returns the session's port or connection identifier.
func (c *Client) GatewayID() string {
	return c.gatewayID
}

// Stats returns current operational statistics.
func (c *Client) Stats() Stats {
	return Stats{
		CommandsTx:         c.commandsTx.Load(),
		PacketsRx:          c.packetsRx.Load(),
		PacketsDropped:     c.packetsDropped.Load(),
		PacketsInvalid:     c.packetsInvalid.Load(),
		PacketsUnsupported: c.packetsUnsupported.Load(),
		ErrorsTotal:        c.errorsTotal.Load(),
		LastActivity:       time.Unix(c.lastActivity.Load(), 0),
		Connected:          c.IsConnected(),
	}
}

// HealthCheck verifies the session is alive.
func (c *Client) HealthCheck(_ context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// SetLogger sets the logger for this client.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// clientLogger adapts the client's guarded logger for the frame decoder.
type clientLogger struct{ c *Client }

func (l clientLogger) Debug(msg string, kv ...any) { l.c.logDebug(msg, kv...) }
func (l clientLogger) Info(msg string, kv ...any)  { l.c.logInfo(msg, kv...) }
func (l clientLogger) Warn(msg string, kv ...any)  { l.c.logWarn(msg, kv...) }
func (l clientLogger) Error(msg string, kv ...any) {
	l.c.loggerMu.RLock()
	logger := l.c.logger
	l.c.loggerMu.RUnlock()
	if logger != nil {
		logger.Error(msg, kv...)
	}
}

func (c *Client) logDebug(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()
	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (c *Client) logInfo(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()
	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (c *Client) logWarn(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()
	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (c *Client) logError(msg string, err error) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()
	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

// isUnsupported reports whether err wraps ErrUnsupportedPacket.
func isUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupportedPacket)
}
