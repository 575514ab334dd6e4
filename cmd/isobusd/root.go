// Package main implements isobusd, a thin CLI that wires the hardware
// pump, network manager, control-function lifecycle, and storage pump
// into a runnable node. It exists to exercise the public API end to
// end; it makes no protocol-correctness claims beyond what the
// underlying packages already guarantee.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "isobusd",
	Short: "ISO 11783 control-function node",
	Long:  "isobusd runs a single control function on a CAN network and traces bus activity.",
}

// Execute adds all child commands to the root command and parses flags.
// Called once from main.main.
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, os.Interrupt)
	go func() {
		s := <-quitChan
		log.Printf("got %v, shutting down", s)
		cancel()
		<-time.After(10 * time.Second)
		log.Fatal("took too long to shut down, forcing exit")
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	log.SetFlags(log.Ltime | log.Lshortfile)
}
