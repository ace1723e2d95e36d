package api

import (
	"net/http"
	"time"
)

// metricsResponse summarises gateway and registry counters.
type metricsResponse struct {
	Connected  bool            `json:"connected"`
	Reconnects uint64          `json:"reconnects"`
	Devices    int             `json:"devices"`
	Gateway    *gatewayMetrics `json:"gateway,omitempty"`
}

type gatewayMetrics struct {
	CommandsTx         uint64 `json:"commands_tx"`
	PacketsRx          uint64 `json:"packets_rx"`
	PacketsDropped     uint64 `json:"packets_dropped"`
	PacketsInvalid     uint64 `json:"packets_invalid"`
	PacketsUnsupported uint64 `json:"packets_unsupported"`
	LastActivity       string `json:"last_activity,omitempty"`
}

// handleMetrics returns a counters snapshot. Gateway counters are
// omitted while no session is established.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	resp := metricsResponse{
		Reconnects: s.bridge.ReconnectsTotal(),
		Devices:    s.devices.Len(),
	}

	if stats, ok := s.bridge.GatewayStats(); ok {
		resp.Connected = stats.Connected
		resp.Gateway = &gatewayMetrics{
			CommandsTx:         stats.CommandsTx,
			PacketsRx:          stats.PacketsRx,
			PacketsDropped:     stats.PacketsDropped,
			PacketsInvalid:     stats.PacketsInvalid,
			PacketsUnsupported: stats.PacketsUnsupported,
		}
		if !stats.LastActivity.IsZero() {
			resp.Gateway.LastActivity = stats.LastActivity.UTC().Format(time.RFC3339)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
