package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "knxmonitor",
	Short: "KNX TP/UART bus monitor and write tool",
	Long: `knxmonitor drives a TPUART transceiver over a serial port, showing
every telegram that crosses the bus and letting you issue group writes
from the command line.

Configuration (serial port, this device's physical address, and its
subscribed group addresses) is read from a YAML file; see --config.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "knxmonitor.yaml", "path to the device configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln(err)
		os.Exit(1)
	}
}
