package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/knxtpuart/go-tpuart/internal/logger"
	"github.com/knxtpuart/go-tpuart/pkg/telegram"
)

var (
	writeGroup string
	writeBool  bool
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Send a boolean group write to the bus and exit",
	RunE:  runWrite,
}

func init() {
	rootCmd.AddCommand(writeCmd)
	writeCmd.Flags().StringVar(&writeGroup, "group", "", "target group address, e.g. 2/7/1")
	writeCmd.Flags().BoolVar(&writeBool, "value", false, "boolean value to write")
	writeCmd.MarkFlagRequired("group")
}

func runWrite(cmd *cobra.Command, args []string) error {
	target, err := telegram.ParseGroupAddress(writeGroup)
	if err != nil {
		return fmt.Errorf("knxmonitor: %w", err)
	}

	d, _, err := openDevice(configPath, logger.NewDefaultLogger(logger.LevelInfo))
	if err != nil {
		return err
	}
	defer d.End()

	if !d.GroupWriteBool(false, target, writeBool) {
		return fmt.Errorf("knxmonitor: outbound queue full, write to %s dropped", target)
	}

	// Drive Task until the send has actually gone out over the wire.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d.Task()
		time.Sleep(time.Millisecond)
	}

	fmt.Printf("wrote %v to %s\n", writeBool, target)
	return nil
}
