package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/rfplayer-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/rfplayer-bridge/internal/rfplayer"
)

// HealthReporter publishes periodic health status to rfbridge/health.
type HealthReporter struct {
	bridgeID   string
	version    string
	connection string
	startTime  time.Time
	interval   time.Duration
	publisher  HealthPublisher
	gateway    GatewaySource

	// Device count (updated externally)
	deviceCount   int
	deviceCountMu sync.RWMutex

	// Extra reconnects on top of the session's own count, supplied by
	// the bridge which owns the reconnect loop.
	reconnects func() uint64

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is the interface for publishing health messages.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// GatewaySource exposes the gateway session state the reporter needs.
// Returning false from the bool result means no session exists yet.
type GatewaySource interface {
	GatewayStats() (rfplayer.Stats, bool)
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// BridgeID identifies this bridge in health messages.
	BridgeID string

	// Version is the bridge software version.
	Version string

	// Connection is the gateway connection URL, reported as-is.
	Connection string

	// Interval is how often to publish. Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client.
	Publisher HealthPublisher

	// Gateway provides session stats.
	Gateway GatewaySource

	// Reconnects reports how many sessions the bridge has re-dialed.
	Reconnects func() uint64
}

// NewHealthReporter creates a reporter. Call Start to begin publishing.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}

	return &HealthReporter{
		bridgeID:   cfg.BridgeID,
		version:    cfg.Version,
		connection: cfg.Connection,
		startTime:  time.Now(),
		interval:   interval,
		publisher:  cfg.Publisher,
		gateway:    cfg.Gateway,
		reconnects: cfg.Reconnects,
		done:       make(chan struct{}),
	}
}

// Start begins periodic health reporting.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop stops reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// SetDeviceCount updates the registered device count.
func (h *HealthReporter) SetDeviceCount(count int) {
	h.deviceCountMu.Lock()
	h.deviceCount = count
	h.deviceCountMu.Unlock()
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status during bring-up.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// GetLWTPayload returns the Last Will message payload for the MQTT
// connection options.
func (h *HealthReporter) GetLWTPayload() ([]byte, error) {
	return json.Marshal(NewLWTMessage(h.bridgeID))
}

// GetLWTTopic returns the topic for the Last Will message.
func (h *HealthReporter) GetLWTTopic() string {
	return mqtt.Topics{}.Health()
}

// reportLoop runs the periodic health reporting.
func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	if h.gateway != nil {
		stats, ok := h.gateway.GatewayStats()
		if !ok || !stats.Connected {
			return HealthDegraded, "gateway disconnected"
		}
	}

	return HealthHealthy, ""
}

// publishStatus publishes a health status message.
func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	h.deviceCountMu.RLock()
	deviceCount := h.deviceCount
	h.deviceCountMu.RUnlock()

	msg := NewHealthMessage(h.bridgeID, h.version, status, h.startTime, deviceCount)
	if reason != "" {
		msg.Reason = reason
	}

	if h.gateway != nil {
		if stats, ok := h.gateway.GatewayStats(); ok {
			gw := &GatewayHealth{
				Connected:          stats.Connected,
				Connection:         h.connection,
				CommandsTx:         stats.CommandsTx,
				PacketsRx:          stats.PacketsRx,
				PacketsDropped:     stats.PacketsDropped,
				PacketsInvalid:     stats.PacketsInvalid,
				PacketsUnsupported: stats.PacketsUnsupported,
				LastActivity:       stats.LastActivity,
			}
			if h.reconnects != nil {
				gw.Reconnects = h.reconnects()
			}
			msg.Gateway = gw
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return h.publisher.Publish(mqtt.Topics{}.Health(), payload, 1, true)
}

// logError logs an error if logger is set.
func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
