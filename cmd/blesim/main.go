// Package main provides blesim, a WebSocket device simulator for blefile.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/opd-ai/blefile/config"
	"github.com/opd-ai/blefile/device"
	"github.com/sirupsen/logrus"
)

func printUsage(fs *flag.FlagSet) {
	fmt.Println("blesim - upload target simulator for blefile")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options]\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	fs.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  # Drop chunk 3 once to force a finalize replay\n")
	fmt.Printf("  %s -drop 3\n", os.Args[0])
	fmt.Println()
	fmt.Printf("  # Never acknowledge rename\n")
	fmt.Printf("  %s -silent C3\n", os.Args[0])
}

func main() {
	args := os.Args[1:]
	configPath := config.ConfigPath(args, nil)
	cfg, err := config.Load(configPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}

	fs := flag.NewFlagSet("blesim", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", configPath, "YAML configuration file")
	help := fs.Bool("help", false, "show help message")
	cfg.RegisterSimulatorFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(fs)
			os.Exit(0)
		}
		os.Exit(2)
	}
	if *help {
		printUsage(fs)
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}
	silent, _ := cfg.SilentOpcodes()

	closer, err := config.SetupLogging(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging setup failed: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	sim := device.NewSimulator(device.Faults{
		RejectStart:  cfg.Simulator.RejectStart,
		DropChunks:   cfg.Simulator.DropChunks,
		RejectRename: cfg.Simulator.RejectRename,
		Silent:       silent,
	}, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := device.NewServer(sim).ListenAndServe(ctx, cfg.Simulator.Listen); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"listen":   cfg.Simulator.Listen,
			"error":    err.Error(),
		}).Error("Simulator failed")
		closer.Close()
		os.Exit(1)
	}

	for _, name := range sim.Files() {
		data, _ := sim.File(name)
		fmt.Printf("%s\t%d bytes\n", name, len(data))
	}
}
