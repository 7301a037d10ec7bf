package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "device.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeTempConfig(t, `
serial:
  port: /dev/ttyUSB0
device:
  physical_address: "1.1.12"
  group_addresses:
    - "2/7/1"
    - "2/7/2"
logging:
  level: debug
monitor:
  websocket_addr: ":8080"
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "knx-bridge"
  topic_prefix: "knx/"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Serial.Port != "/dev/ttyUSB0" {
		t.Errorf("Serial.Port = %q, want /dev/ttyUSB0", cfg.Serial.Port)
	}

	addr, err := cfg.PhysicalAddress()
	if err != nil {
		t.Fatalf("PhysicalAddress() error = %v", err)
	}
	if addr.String() != "1.1.12" {
		t.Errorf("PhysicalAddress() = %s, want 1.1.12", addr.String())
	}

	groups, err := cfg.GroupAddresses()
	if err != nil {
		t.Fatalf("GroupAddresses() error = %v", err)
	}
	if len(groups) != 2 || groups[0].String() != "2/7/1" || groups[1].String() != "2/7/2" {
		t.Errorf("GroupAddresses() = %v, want [2/7/1 2/7/2]", groups)
	}
}

func TestLoadPointsResolved(t *testing.T) {
	path := writeTempConfig(t, `
serial:
  port: /dev/ttyUSB0
device:
  physical_address: "1.1.12"
  group_addresses:
    - "2/7/1"
  points:
    - name: lightSwitch
      address: "2/7/1"
      dpt: "1.001"
    - name: roomTemp
      address: "2/7/2"
      dpt: "9.001"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	points, err := cfg.Points()
	if err != nil {
		t.Fatalf("Points() error = %v", err)
	}
	if len(points) != 2 || points[0].Name != "lightSwitch" || points[1].DPT != "9.001" {
		t.Errorf("Points() = %+v, want lightSwitch(1.001) roomTemp(9.001)", points)
	}

	table, err := cfg.DPTTable()
	if err != nil {
		t.Fatalf("DPTTable() error = %v", err)
	}
	if len(table) != 2 {
		t.Errorf("DPTTable() has %d entries, want 2", len(table))
	}
}

func TestLoadUnknownDPTRejected(t *testing.T) {
	path := writeTempConfig(t, `
serial:
  port: /dev/ttyUSB0
device:
  physical_address: "1.1.12"
  points:
    - name: bogus
      address: "2/7/1"
      dpt: "99.999"
`)
	if _, err := Load(path); err == nil {
		t.Errorf("Load() with unknown dpt identifier = nil error, want error")
	}
}

func TestLoadMissingPortRejected(t *testing.T) {
	path := writeTempConfig(t, `
device:
  physical_address: "1.1.12"
`)
	if _, err := Load(path); err == nil {
		t.Errorf("Load() with no serial.port = nil error, want error")
	}
}

func TestLoadBadPhysicalAddressRejected(t *testing.T) {
	path := writeTempConfig(t, `
serial:
  port: /dev/ttyUSB0
device:
  physical_address: "not-an-address"
`)
	if _, err := Load(path); err == nil {
		t.Errorf("Load() with malformed physical_address = nil error, want error")
	}
}

func TestLoadBadGroupAddressRejected(t *testing.T) {
	path := writeTempConfig(t, `
serial:
  port: /dev/ttyUSB0
device:
  physical_address: "1.1.12"
  group_addresses:
    - "not-a-group"
`)
	if _, err := Load(path); err == nil {
		t.Errorf("Load() with malformed group address = nil error, want error")
	}
}

func TestLoadCollectsAllViolations(t *testing.T) {
	path := writeTempConfig(t, `
device:
  physical_address: "not-an-address"
  group_addresses:
    - "not-a-group"
  points:
    - name: bogus
      address: "not-a-group-either"
      dpt: "99.999"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load() = nil error, want error")
	}
	for _, want := range []string{"serial.port", "physical_address", "group_addresses", "points[bogus]"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Load() error = %v, want it to mention %q", err, want)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("Load() on a missing file = nil error, want error")
	}
}
