// Package mqttbridge publishes received bus telegrams to an MQTT broker
// and turns inbound MQTT write commands into outbound group writes. It
// is an ambient, network-facing addition: it talks to pkg/device only
// through device's existing public API (OnTelegram, GroupWrite), never
// by reaching into the driver's internals.
package mqttbridge

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/knxtpuart/go-tpuart/internal/logger"
	"github.com/knxtpuart/go-tpuart/pkg/device"
	"github.com/knxtpuart/go-tpuart/pkg/dpt"
	"github.com/knxtpuart/go-tpuart/pkg/telegram"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 2 * time.Second

	// defaultDPT is used for a group address the bridge has no configured
	// point for: a plain on/off switch, the most common KNX group type.
	defaultDPT = dpt.DPT1_001
)

// StatePublisher is the subset of pkg/device.Device the bridge publishes
// from; satisfied by *device.Device.
type StatePublisher interface {
	OnTelegram(device.TelegramCallback)
}

// CommandReceiver is the subset of pkg/device.Device the bridge issues
// group writes against; satisfied by *device.Device.
type CommandReceiver interface {
	GroupWrite(answer bool, target telegram.GroupAddress, id dpt.DPTIdentifier, value float64) (bool, error)
}

// Bridge relays telegrams between the KNX bus and an MQTT broker,
// decoding and encoding payloads through pkg/dpt's Codec table according
// to a group address's configured DPT. A group address with no
// configured point is treated as DPT 1.001 (switch).
type Bridge struct {
	client      pahomqtt.Client
	log         logger.Logger
	topicPrefix string
	qos         byte

	mu     sync.RWMutex
	points map[telegram.GroupAddress]dpt.DPTIdentifier
}

// Config configures a Bridge's MQTT connection.
type Config struct {
	Broker      string // e.g. "tcp://localhost:1883"
	ClientID    string
	TopicPrefix string // e.g. "knx/"
	QoS         byte
}

// Connect dials the MQTT broker and returns a Bridge ready to have its
// topics wired to a device via Attach.
func Connect(cfg Config, log logger.Logger) (*Bridge, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqttbridge: connect to %s: timeout after %v", cfg.Broker, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqttbridge: connect to %s: %w", cfg.Broker, err)
	}

	return &Bridge{
		client:      client,
		log:         log.WithComponent("mqttbridge"),
		topicPrefix: cfg.TopicPrefix,
		qos:         cfg.QoS,
		points:      make(map[telegram.GroupAddress]dpt.DPTIdentifier),
	}, nil
}

// SetPoints replaces the bridge's group-address-to-DPT table, typically
// built from pkg/config's Config.DPTTable. It decides how PublishTelegram
// decodes a telegram's payload and how handleWriteCommand encodes an
// inbound MQTT write.
func (b *Bridge) SetPoints(points map[telegram.GroupAddress]dpt.DPTIdentifier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.points = points
}

func (b *Bridge) dptFor(target telegram.GroupAddress) dpt.DPTIdentifier {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if id, ok := b.points[target]; ok {
		return id
	}
	return defaultDPT
}

// Attach subscribes device's received telegrams for publication and
// registers an MQTT handler that issues group writes for commands
// addressed to writeTopic.
func (b *Bridge) Attach(pub StatePublisher, recv CommandReceiver, writeTopic string) error {
	pub.OnTelegram(func(tg *telegram.Telegram) {
		b.PublishTelegram(tg)
	})

	token := b.client.Subscribe(b.topicPrefix+writeTopic, b.qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		b.handleWriteCommand(recv, msg.Payload())
	})
	token.Wait()
	return token.Error()
}

type writeCommand struct {
	Group string   `json:"group"`
	Value *float64 `json:"value"`
}

func (b *Bridge) handleWriteCommand(recv CommandReceiver, payload []byte) {
	var cmd writeCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.log.Warn("mqtt write command: invalid payload: %v", err)
		return
	}
	if cmd.Value == nil {
		b.log.Warn("mqtt write command: no value field set")
		return
	}
	target, err := telegram.ParseGroupAddress(cmd.Group)
	if err != nil {
		b.log.Warn("mqtt write command: %v", err)
		return
	}

	ok, err := recv.GroupWrite(false, target, b.dptFor(target), *cmd.Value)
	if err != nil {
		b.log.Warn("mqtt write command: %v", err)
		return
	}
	if !ok {
		b.log.Warn("mqtt write command: outbound queue full, dropping write to %s", target)
	}
}

type telegramPayload struct {
	Source  string  `json:"source"`
	Target  string  `json:"target"`
	Group   bool    `json:"group"`
	Command string  `json:"command"`
	DPT     string  `json:"dpt,omitempty"`
	Value   float64 `json:"value,omitempty"`
	Payload []byte  `json:"payload"`
}

// PublishTelegram publishes tg to "<prefix>state/<target>" as JSON. A
// group-addressed telegram is additionally decoded to a Value through
// the DPT configured (via SetPoints) for its target, defaulting to
// DPT 1.001 (switch) when no point is configured.
func (b *Bridge) PublishTelegram(tg *telegram.Telegram) {
	p := telegramPayload{
		Source:  tg.Source().String(),
		Group:   tg.Multicast(),
		Command: commandName(tg.Command()),
		Payload: append([]byte(nil), tg.Payload()...),
	}
	if p.Group {
		target := tg.TargetGroup()
		p.Target = target.String()
		id := b.dptFor(target)
		if codec, ok := dpt.Codecs[id]; ok {
			p.DPT = string(id)
			p.Value = codec.Decode(tg.DataNibble(), tg.Payload(), tg.PayloadLength())
		}
	} else {
		p.Target = tg.TargetPhysical().String()
	}

	data, err := json.Marshal(p)
	if err != nil {
		b.log.Error("marshal telegram for mqtt publish: %v", err)
		return
	}
	topic := b.topicPrefix + "state/" + p.Target
	token := b.client.Publish(topic, b.qos, false, data)
	token.WaitTimeout(publishTimeout)
}

func commandName(c telegram.Command) string {
	switch c {
	case telegram.CommandValueRead:
		return "read"
	case telegram.CommandValueResponse:
		return "response"
	case telegram.CommandValueWrite:
		return "write"
	case telegram.CommandMemoryWrite:
		return "memory_write"
	default:
		return "unknown"
	}
}

// Close disconnects from the broker.
func (b *Bridge) Close() error {
	b.client.Disconnect(250)
	return nil
}
