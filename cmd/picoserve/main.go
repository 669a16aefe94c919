package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var debug bool

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	root := &cobra.Command{
		Use:           "picoserve",
		Short:         "DNS resolver and poll-driven WSGI server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.AddCommand(newResolveCommand())
	root.AddCommand(newServeCommand())

	if err := root.Execute(); err != nil {
		os.Stderr.WriteString("error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
