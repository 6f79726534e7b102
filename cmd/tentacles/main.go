// Package main implements the tentacles CLI: serving provider webhooks and
// running the interactive OAuth flows that seed the token store.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opengovern/tentacles"
)

var version = "0.1.0"

// globals are the persistent flags every subcommand shares.
type globals struct {
	configPath string
	debug      bool
}

func (g *globals) logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if g.debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func (g *globals) settings() (*tentacles.Settings, error) {
	return tentacles.LoadSettings(g.configPath)
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "tentacles",
		Short:         "Multi-provider API toolkit",
		Long:          `tentacles serves provider webhooks and authorizes OAuth providers for the tentacles SDK.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", os.Getenv("TENTACLES_CONFIG"), "path to the YAML settings file")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "log at debug level")

	cmd.AddCommand(serveCmd(g))
	cmd.AddCommand(authorizeCmd(g))
	return cmd
}
