package main

import (
	"github.com/knxtpuart/go-tpuart/internal/logger"
	"github.com/knxtpuart/go-tpuart/pkg/config"
	"github.com/knxtpuart/go-tpuart/pkg/device"
	"github.com/knxtpuart/go-tpuart/pkg/mqttbridge"
)

// maybeStartMQTTBridge connects and attaches the MQTT bridge when the
// config names a broker, wiring cfg's configured points so the bridge
// decodes and encodes each group address through its own DPT rather than
// treating every telegram as a bool. It returns a nil Bridge when no
// broker is configured.
func maybeStartMQTTBridge(cfg *config.Config, d *device.Device, log logger.Logger) (*mqttbridge.Bridge, error) {
	if cfg.MQTT.Broker == "" {
		return nil, nil
	}

	bridge, err := mqttbridge.Connect(mqttbridge.Config{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		TopicPrefix: cfg.MQTT.Topic,
	}, log)
	if err != nil {
		return nil, err
	}

	table, err := cfg.DPTTable()
	if err != nil {
		bridge.Close()
		return nil, err
	}
	bridge.SetPoints(table)

	if err := bridge.Attach(d, d, "write"); err != nil {
		bridge.Close()
		return nil, err
	}
	return bridge, nil
}
