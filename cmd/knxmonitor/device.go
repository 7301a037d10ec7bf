package main

import (
	"fmt"

	"github.com/knxtpuart/go-tpuart/pkg/config"
	"github.com/knxtpuart/go-tpuart/pkg/device"
	"github.com/knxtpuart/go-tpuart/internal/logger"
	"github.com/knxtpuart/go-tpuart/transport/uart"
)

// openDevice loads cfg from configPath, opens the configured serial port,
// and brings the device up against the TPUART chip.
func openDevice(cfgPath string, log logger.Logger) (*device.Device, *config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	own, err := cfg.PhysicalAddress()
	if err != nil {
		return nil, nil, err
	}
	groups, err := cfg.GroupAddresses()
	if err != nil {
		return nil, nil, err
	}

	serialPort := uart.New(cfg.Serial.Port)
	d := device.New(serialPort, log)
	if err := d.Init(own, groups); err != nil {
		return nil, nil, fmt.Errorf("knxmonitor: device init: %w", err)
	}
	return d, cfg, nil
}
