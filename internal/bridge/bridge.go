package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/rfplayer-bridge/internal/device"
	"github.com/nerrad567/rfplayer-bridge/internal/infrastructure/config"
	"github.com/nerrad567/rfplayer-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/rfplayer-bridge/internal/profiles"
	"github.com/nerrad567/rfplayer-bridge/internal/rfplayer"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// GatewayClient is the session surface the bridge drives. Satisfied by
// *rfplayer.Client; mocked in tests.
type GatewayClient interface {
	Send(command string) error
	SendPairing(protocol, address string) error
	IsConnected() bool
	Stats() rfplayer.Stats
	Close() error
}

// DialFunc opens a new gateway session. The default wraps
// rfplayer.Connect; tests substitute their own.
type DialFunc func(ctx context.Context, cfg rfplayer.Config) (GatewayClient, error)

// MQTTClient is the broker surface the bridge needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// MetricsWriter receives numeric readings for time-series storage.
// Satisfied by *influxdb.Client. Optional: a nil writer disables it.
type MetricsWriter interface {
	WriteSensorMetric(deviceID string, measurement string, value float64)
	WriteSignalMetric(deviceID string, rfLevel float64, floorNoise float64)
}

// Options holds the dependencies for creating a bridge.
type Options struct {
	// Config is the loaded service configuration.
	Config *config.Config

	// MQTT is the broker client.
	MQTT MQTTClient

	// Devices is the device registry.
	Devices *device.Registry

	// Profiles is the profile registry.
	Profiles *profiles.Registry

	// Metrics is optional time-series storage.
	Metrics MetricsWriter

	// Logger is optional structured logging.
	Logger Logger

	// Dial overrides the gateway session factory. Defaults to
	// rfplayer.Connect.
	Dial DialFunc

	// Version is the bridge software version for health messages.
	Version string
}

// Bridge wires the gateway session, the registries and MQTT together.
//
// Thread Safety: all methods are safe for concurrent use. Event
// handling runs on the rfplayer callback pool; command handling runs
// on paho's router goroutines.
type Bridge struct {
	cfg      *config.Config
	mqtt     MQTTClient
	devices  *device.Registry
	profiles *profiles.Registry
	metrics  MetricsWriter
	health   *HealthReporter
	dial     DialFunc

	// Current session. Nil between a loss and a successful redial.
	session   GatewayClient
	sessionMu sync.RWMutex

	// Reconnection state
	lost            chan error
	reconnecting    atomic.Bool
	reconnectsTotal atomic.Uint64

	// State cache for change suppression
	stateCache   map[string]map[string]string
	stateCacheMu sync.Mutex

	// Live event fan-out (websocket consumers)
	subs   map[chan EventMessage]struct{}
	subsMu sync.Mutex

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	// Logger
	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a bridge. Call Start to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Devices == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if opts.Profiles == nil {
		return nil, fmt.Errorf("profile registry is required")
	}

	dial := opts.Dial
	if dial == nil {
		dial = func(ctx context.Context, cfg rfplayer.Config) (GatewayClient, error) {
			return rfplayer.Connect(ctx, cfg)
		}
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:        opts.Config,
		mqtt:       opts.MQTT,
		devices:    opts.Devices,
		profiles:   opts.Profiles,
		metrics:    opts.Metrics,
		dial:       dial,
		lost:       make(chan error, 1),
		stateCache: make(map[string]map[string]string),
		subs:       make(map[chan EventMessage]struct{}),
		done:       make(chan struct{}),
		ctx:        ctx,
		ctxCancel:  ctxCancel,
		logger:     opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:   opts.Config.Bridge.ID,
		Version:    opts.Version,
		Connection: opts.Config.Gateway.Connection,
		Interval:   opts.Config.GetHealthInterval(),
		Publisher:  opts.MQTT,
		Gateway:    b,
		Reconnects: b.reconnectsTotal.Load,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Health exposes the health reporter, used by main for LWT wiring.
func (b *Bridge) Health() *HealthReporter {
	return b.health
}

// Start connects the gateway and begins bridge operation.
// The initial connection must succeed; subsequent losses are handled
// by the reconnect loop.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.devices.RefreshCache(ctx); err != nil {
		return fmt.Errorf("load device registry: %w", err)
	}
	b.health.SetDeviceCount(b.devices.Len())

	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	if err := b.subscribeCommands(); err != nil {
		return err
	}

	session, err := b.dial(ctx, b.sessionConfig())
	if err != nil {
		return fmt.Errorf("connect gateway: %w", err)
	}
	b.setSession(session)

	b.wg.Add(1)
	go b.supervise()

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish healthy status", err)
	}

	b.logInfo("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"gateway", b.cfg.Gateway.Connection,
		"devices", b.devices.Len())

	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()

		if session := b.getSession(); session != nil {
			session.Close()
		}

		b.health.Stop()
		b.wg.Wait()
		b.closeSubscribers()

		b.logInfo("bridge stopped")
	})
}

// sessionConfig builds the rfplayer configuration for a new session.
func (b *Bridge) sessionConfig() rfplayer.Config {
	return rfplayer.Config{
		Connection:         b.cfg.Gateway.Connection,
		ConnectTimeout:     b.cfg.GetConnectTimeout(),
		ReceiverProtocols:  b.cfg.Gateway.ReceiverProtocols,
		InitCommands:       b.cfg.Gateway.InitCommands,
		EventCallback:      b.handleEvent,
		DisconnectCallback: b.handleGatewayDisconnect,
	}
}

// handleGatewayDisconnect is the session's single disconnect
// notification. A nil error means a graceful close (ours).
func (b *Bridge) handleGatewayDisconnect(err error) {
	if err == nil || b.isClosed() {
		return
	}
	b.logError("gateway session lost", err)
	select {
	case b.lost <- err:
	default:
	}
}

// supervise waits for session losses and redials.
func (b *Bridge) supervise() {
	defer b.wg.Done()

	for {
		select {
		case <-b.done:
			return
		case <-b.lost:
			b.clearSession()
			if err := b.health.PublishNow(); err != nil {
				b.logError("failed to publish degraded status", err)
			}
			if !b.reconnect() {
				return
			}
		}
	}
}

// reconnect redials the gateway with exponential backoff.
// Returns false when shutdown was signalled.
func (b *Bridge) reconnect() bool {
	// Prevent concurrent reconnect attempts
	if !b.reconnecting.CompareAndSwap(false, true) {
		return !b.isClosed()
	}
	defer b.reconnecting.Store(false)

	backoff := b.cfg.GetReconnectInitialDelay()
	maxBackoff := b.cfg.GetReconnectMaxDelay()

	for attempt := 1; ; attempt++ {
		if b.isClosed() {
			return false
		}

		b.logInfo("reconnecting to gateway", "attempt", attempt, "backoff", backoff.String())

		session, err := b.dial(b.ctx, b.sessionConfig())
		if err == nil {
			b.setSession(session)
			b.reconnectsTotal.Add(1)
			b.logInfo("gateway reconnected", "total_reconnects", b.reconnectsTotal.Load())
			if err := b.health.PublishNow(); err != nil {
				b.logError("failed to publish healthy status", err)
			}
			return true
		}

		b.logError("gateway reconnect failed", err)

		select {
		case <-b.done:
			return false
		case <-time.After(backoff):
		}

		// Exponential backoff with cap
		backoff = time.Duration(float64(backoff) * 1.5)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Send writes a raw command to the gateway.
func (b *Bridge) Send(command string) error {
	session := b.getSession()
	if session == nil {
		return rfplayer.ErrNotConnected
	}
	return session.Send(command)
}

// Pair puts the gateway into association mode for a device.
func (b *Bridge) Pair(protocol, address string) error {
	session := b.getSession()
	if session == nil {
		return rfplayer.ErrNotConnected
	}
	return session.SendPairing(protocol, address)
}

// GatewayStats implements GatewaySource for the health reporter.
func (b *Bridge) GatewayStats() (rfplayer.Stats, bool) {
	session := b.getSession()
	if session == nil {
		return rfplayer.Stats{}, false
	}
	return session.Stats(), true
}

// ReconnectsTotal returns how many sessions were re-dialed.
func (b *Bridge) ReconnectsTotal() uint64 {
	return b.reconnectsTotal.Load()
}

// SubscribeEvents registers a live event consumer. Events that would
// block are dropped for that consumer. The returned cancel function
// unregisters and closes the channel.
func (b *Bridge) SubscribeEvents(buffer int) (<-chan EventMessage, func()) {
	ch := make(chan EventMessage, buffer)

	b.subsMu.Lock()
	b.subs[ch] = struct{}{}
	b.subsMu.Unlock()

	cancel := func() {
		b.subsMu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.subsMu.Unlock()
	}
	return ch, cancel
}

// fanOut delivers an event envelope to all subscribers, non-blocking.
func (b *Bridge) fanOut(msg EventMessage) {
	b.subsMu.Lock()
	for ch := range b.subs {
		select {
		case ch <- msg:
		default:
		}
	}
	b.subsMu.Unlock()
}

// closeSubscribers closes all remaining event channels during shutdown.
func (b *Bridge) closeSubscribers() {
	b.subsMu.Lock()
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	b.subsMu.Unlock()
}

func (b *Bridge) setSession(session GatewayClient) {
	b.sessionMu.Lock()
	b.session = session
	b.sessionMu.Unlock()
}

func (b *Bridge) clearSession() {
	b.sessionMu.Lock()
	if b.session != nil {
		b.session.Close()
		b.session = nil
	}
	b.sessionMu.Unlock()
}

func (b *Bridge) getSession() GatewayClient {
	b.sessionMu.RLock()
	defer b.sessionMu.RUnlock()
	return b.session
}

// isClosed returns true once Stop has been called.
func (b *Bridge) isClosed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
