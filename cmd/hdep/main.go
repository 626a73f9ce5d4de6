// Command hdep is the operator tool for the hibernation module
// dependency manager: it scans the module directory, inspects module
// headers, and brings up the hibernation stack.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/lumen-os/hdep/engine"
)

var (
	cfgPath   string
	moduleDir string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:           "hdep",
	Short:         "Lumen OS hibernation module dependency manager",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "TOML config file")
	rootCmd.PersistentFlags().StringVar(&moduleDir, "dir", "", "module directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newStackCmd())
	rootCmd.AddCommand(newInfoCmd())
}

// newLogger builds a console logger when stderr is a terminal and a
// JSON one otherwise, so service logs stay machine-readable.
func newLogger() *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	var cfg zap.Config
	if term.IsTerminal(int(os.Stderr.Fd())) {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	engine.SetLogger(log)
	return log
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
