package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/knxtpuart/go-tpuart/internal/logger"
	"github.com/knxtpuart/go-tpuart/pkg/telegram"
)

var watchLogLevel string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Open the configured device and show telegrams as they arrive",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchLogLevel, "log-level", "info", "log level: debug, info, warn, error")
}

// telegramMsg wraps a received telegram for delivery into the TUI's
// Update loop via tea.Program.Send.
type telegramMsg struct {
	tg *telegram.Telegram
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(10*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func runWatch(cmd *cobra.Command, args []string) error {
	log := logger.NewDefaultLogger(levelFromString(watchLogLevel))

	d, cfg, err := openDevice(configPath, log)
	if err != nil {
		return err
	}
	defer d.End()

	bridge, err := maybeStartMQTTBridge(cfg, d, log)
	if err != nil {
		return err
	}
	if bridge != nil {
		defer bridge.Close()
	}

	mon, err := maybeStartMonitor(cfg, d, log)
	if err != nil {
		return err
	}
	if mon != nil {
		defer mon.Close()
	}

	m := newWatchModel(cfg.Serial.Port)
	p := tea.NewProgram(m)

	// Device keeps a single OnTelegram callback, so this one replaces the
	// one bridge.Attach registered and forwards to the bridge itself.
	d.OnTelegram(func(tg *telegram.Telegram) {
		p.Send(telegramMsg{tg: tg})
		if bridge != nil {
			bridge.PublishTelegram(tg)
		}
	})

	// The device's Task loop is non-blocking and must be driven
	// continuously; it runs on its own goroutine here so the TUI's own
	// event loop stays responsive. This is the same division of labor
	// pkg/device's own doc comment describes for a hosted driver: the
	// single-threaded core, driven from a loop the host owns.
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				d.Task()
			}
		}
	}()

	_, err = p.Run()
	close(stop)
	return err
}

func (m watchModel) Init() tea.Cmd { return tickCmd() }
