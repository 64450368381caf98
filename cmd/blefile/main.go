// Package main provides the blefile command, which uploads a file to a device
// through a WebSocket GATT bridge or the blesim simulator.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/opd-ai/blefile/config"
	"github.com/opd-ai/blefile/file"
	"github.com/opd-ai/blefile/transport"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// CLI options that do not belong in the shared configuration.
type sendFlags struct {
	configPath string
	name       string
	quiet      bool
	help       bool
}

// printUsage prints the usage information.
func printUsage(fs *flag.FlagSet) {
	fmt.Println("blefile - resumable file upload over a GATT write/notify link")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s send [options] <file>\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	if fs != nil {
		fs.PrintDefaults()
	}
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  BLEFILE_URL, BLEFILE_CHUNK_SIZE, BLEFILE_START_TIMEOUT, BLEFILE_LOG_LEVEL, ...")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  # Upload to a local simulator\n")
	fmt.Printf("  %s send -url ws://127.0.0.1:8765/ws song.mp3\n", os.Args[0])
	fmt.Println()
	fmt.Printf("  # Upload under a different device-side name, failing on incomplete finalize\n")
	fmt.Printf("  %s send -name intro.mp3 -strict-finalize recording.mp3\n", os.Args[0])
}

// parseSendFlags layers flags over the file and environment configuration.
func parseSendFlags(args []string) (config.Config, sendFlags, *flag.FlagSet, error) {
	var sf sendFlags
	sf.configPath = config.ConfigPath(args, nil)

	cfg, err := config.Load(sf.configPath, nil)
	if err != nil {
		return cfg, sf, nil, err
	}

	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	fs.StringVar(&sf.configPath, "config", sf.configPath, "YAML configuration file")
	fs.StringVar(&sf.name, "name", "", "device-side file name (default: base name of <file>)")
	fs.BoolVar(&sf.quiet, "quiet", false, "disable the progress bar")
	fs.BoolVar(&sf.help, "help", false, "show help message")
	cfg.RegisterTransferFlags(fs)

	if err := fs.Parse(args); err != nil {
		return cfg, sf, fs, err
	}
	return cfg, sf, fs, nil
}

// setupSignalHandling cancels the upload on interrupt.
func setupSignalHandling(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling upload...\n", sig)
		cancel()
	}()
}

// progressSink renders chunk progress as a terminal bar.
type progressSink struct {
	mu   sync.Mutex
	name string
	bar  *progressbar.ProgressBar
}

func (p *progressSink) Report(sent, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if total == 0 {
		if p.bar != nil {
			_ = p.bar.Exit()
			p.bar = nil
		}
		return
	}
	if p.bar == nil || p.bar.GetMax() != total {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription(fmt.Sprintf("Sending %s", p.name)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetWidth(15),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(os.Stderr)
			}),
		)
	}
	_ = p.bar.Set(sent)
}

// send dials the bridge, runs the notification read loop and uploads path.
func send(ctx context.Context, cfg config.Config, path, name string, progress file.ProgressSink) (file.Stats, error) {
	ch, err := transport.DialWebSocket(ctx, cfg.URL, nil)
	if err != nil {
		return file.Stats{}, fmt.Errorf("connect %s: %w", cfg.URL, err)
	}
	defer ch.Close()

	opts := cfg.SessionOptions()
	if progress != nil {
		opts.Progress = progress
	}
	uploader, err := file.NewUploader(ch, opts)
	if err != nil {
		return file.Stats{}, err
	}

	var stats file.Stats
	g, gctx := errgroup.WithContext(ctx)
	readCtx, stopRead := context.WithCancel(gctx)

	g.Go(func() error {
		err := ch.ReadLoop(readCtx)
		if readCtx.Err() != nil {
			return nil
		}
		return fmt.Errorf("notification link: %w", err)
	})
	g.Go(func() error {
		defer stopRead()
		var err error
		stats, err = uploader.SendFile(gctx, path, name)
		return err
	})

	err = g.Wait()
	return stats, err
}

func main() {
	if len(os.Args) < 2 || os.Args[1] != "send" {
		printUsage(nil)
		os.Exit(2)
	}

	cfg, sf, fs, err := parseSendFlags(os.Args[2:])
	if errors.Is(err, flag.ErrHelp) || sf.help {
		printUsage(fs)
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}
	if fs.NArg() != 1 {
		printUsage(fs)
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Use -help for usage information.\n")
		os.Exit(2)
	}

	closer, err := config.SetupLogging(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging setup failed: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	path := fs.Arg(0)
	var progress file.ProgressSink
	if !sf.quiet {
		display := sf.name
		if display == "" {
			display = path
		}
		progress = &progressSink{name: display}
	}

	stats, err := send(ctx, cfg, path, sf.name, progress)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "main",
			"file":     path,
		}).Debug("Upload failed")
		fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
		closer.Close()
		os.Exit(1)
	}

	fmt.Printf("Uploaded %s as %s: %d bytes in %d chunks (%d replayed, %d finalize rounds) in %v\n",
		path, stats.Name, stats.Size, stats.ChunkCount, stats.ChunksReplayed, stats.FinalizeRounds,
		stats.Elapsed.Round(time.Millisecond))
}
