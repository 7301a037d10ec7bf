package main

import (
	"net/http"

	"github.com/knxtpuart/go-tpuart/internal/logger"
	"github.com/knxtpuart/go-tpuart/pkg/config"
	"github.com/knxtpuart/go-tpuart/pkg/device"
	"github.com/knxtpuart/go-tpuart/pkg/monitor"
)

// maybeStartMonitor wires a monitor.Broadcaster to d and starts whichever
// sinks cfg.Monitor names, so every ReceivedTelegram/Reset/ReceptionError
// event reaches external observers the same way it reaches the host's own
// OnTelegram callback. It returns a nil Broadcaster when neither address
// is configured.
func maybeStartMonitor(cfg *config.Config, d *device.Device, log logger.Logger) (*monitor.Broadcaster, error) {
	if cfg.Monitor.WebSocketAddr == "" && cfg.Monitor.QUICAddr == "" {
		return nil, nil
	}

	b := monitor.NewBroadcaster()
	d.SetBroadcaster(b)

	if cfg.Monitor.WebSocketAddr != "" {
		sink := monitor.NewWebSocketSink(log)
		b.Add(sink)
		mux := http.NewServeMux()
		mux.Handle("/telegrams", sink)
		go func() {
			if err := http.ListenAndServe(cfg.Monitor.WebSocketAddr, mux); err != nil {
				log.Error("monitor websocket server: %v", err)
			}
		}()
	}

	if cfg.Monitor.QUICAddr != "" {
		sink, err := monitor.NewQUICSink(cfg.Monitor.QUICAddr, log)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Add(sink)
	}

	return b, nil
}
