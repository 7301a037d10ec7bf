// Package config loads the host's startup configuration: the serial
// port, this device's physical address, and its subscribed group-address
// table. None of it is persisted by the driver itself — the core treats
// these as immutable-after-init inputs (spec §5) — but a host still
// needs somewhere to declare them, so this package reads them from YAML.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/knxtpuart/go-tpuart/pkg/dpt"
	"github.com/knxtpuart/go-tpuart/pkg/telegram"
)

// MaxGroupAddresses is the largest group-address table this driver
// supports (spec §6: "ordered group-address table (size ≤ 255)").
const MaxGroupAddresses = 255

// Config is the root of a device's YAML configuration file.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Device DeviceConfig `yaml:"device"`
	Logging LoggingConfig `yaml:"logging"`
	Monitor MonitorConfig `yaml:"monitor"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

// SerialConfig names the UART to open. Baud rate, data bits, parity, and
// stop bits are not configurable — the TPUART chip requires exactly
// 19200 8E1, and the transport layer hardcodes that.
type SerialConfig struct {
	Port string `yaml:"port"`
}

// DeviceConfig carries this device's own address, the group addresses it
// should ACK and deliver to the host, and the named, DPT-typed points a
// host like pkg/mqttbridge resolves those group addresses against.
type DeviceConfig struct {
	PhysicalAddress string        `yaml:"physical_address"`
	GroupAddresses  []string      `yaml:"group_addresses"`
	Points          []PointConfig `yaml:"points"`
}

// PointConfig names a group address by its datapoint type, so a host can
// decode or encode its payload generically through pkg/dpt's Codec table
// instead of special-casing one DPT.
type PointConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	DPT     string `yaml:"dpt"`
}

// LoggingConfig selects the minimum logged level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MonitorConfig enables the optional bus-event fan-out sinks.
type MonitorConfig struct {
	WebSocketAddr string `yaml:"websocket_addr"`
	QUICAddr      string `yaml:"quic_addr"`
}

// MQTTConfig enables the optional MQTT publish bridge.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic_prefix"`
}

// Load reads and parses a YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks cfg for structural errors, collecting every violation
// before returning rather than failing on the first one a caller would
// otherwise have to fix and reload one at a time.
func (c *Config) Validate() error {
	var errs []string

	if c.Serial.Port == "" {
		errs = append(errs, "serial.port is required")
	}

	if c.Device.PhysicalAddress == "" {
		errs = append(errs, "device.physical_address is required")
	} else if _, err := telegram.ParsePhysicalAddress(c.Device.PhysicalAddress); err != nil {
		errs = append(errs, fmt.Sprintf("device.physical_address: %v", err))
	}

	if len(c.Device.GroupAddresses) > MaxGroupAddresses {
		errs = append(errs, fmt.Sprintf("device.group_addresses: %d entries exceeds the maximum of %d", len(c.Device.GroupAddresses), MaxGroupAddresses))
	}
	for _, g := range c.Device.GroupAddresses {
		if _, err := telegram.ParseGroupAddress(g); err != nil {
			errs = append(errs, fmt.Sprintf("device.group_addresses: %v", err))
		}
	}

	for _, p := range c.Device.Points {
		if _, err := telegram.ParseGroupAddress(p.Address); err != nil {
			errs = append(errs, fmt.Sprintf("device.points[%s]: %v", p.Name, err))
		}
		if _, ok := dpt.Codecs[dpt.DPTIdentifier(p.DPT)]; !ok {
			errs = append(errs, fmt.Sprintf("device.points[%s]: unknown dpt identifier %q", p.Name, p.DPT))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// PhysicalAddress parses Device.PhysicalAddress. Validate already
// checked it parses; callers that skip Load (e.g. tests constructing a
// Config literal) get the error surfaced here instead.
func (c *Config) PhysicalAddress() (telegram.PhysicalAddress, error) {
	return telegram.ParsePhysicalAddress(c.Device.PhysicalAddress)
}

// GroupAddresses parses Device.GroupAddresses.
func (c *Config) GroupAddresses() ([]telegram.GroupAddress, error) {
	out := make([]telegram.GroupAddress, 0, len(c.Device.GroupAddresses))
	for _, g := range c.Device.GroupAddresses {
		addr, err := telegram.ParseGroupAddress(g)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// Point is a DeviceConfig.Points entry resolved to its parsed address and
// DPT identifier.
type Point struct {
	Name    string
	Address telegram.GroupAddress
	DPT     dpt.DPTIdentifier
}

// Points parses and resolves Device.Points. Validate already checked
// each entry's address and identifier; callers that skip Load (e.g. tests
// constructing a Config literal) get any error surfaced here instead.
func (c *Config) Points() ([]Point, error) {
	out := make([]Point, 0, len(c.Device.Points))
	for _, p := range c.Device.Points {
		addr, err := telegram.ParseGroupAddress(p.Address)
		if err != nil {
			return nil, fmt.Errorf("device.points[%s]: %w", p.Name, err)
		}
		out = append(out, Point{Name: p.Name, Address: addr, DPT: dpt.DPTIdentifier(p.DPT)})
	}
	return out, nil
}

// DPTTable builds a group-address-keyed lookup suitable for
// pkg/mqttbridge.Bridge.SetPoints from Device.Points.
func (c *Config) DPTTable() (map[telegram.GroupAddress]dpt.DPTIdentifier, error) {
	points, err := c.Points()
	if err != nil {
		return nil, err
	}
	out := make(map[telegram.GroupAddress]dpt.DPTIdentifier, len(points))
	for _, p := range points {
		out[p.Address] = p.DPT
	}
	return out, nil
}
