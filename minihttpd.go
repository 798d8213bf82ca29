package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"minihttpd/console"
	"minihttpd/server"
)

type options struct {
	port        string
	dir         string
	workers     int
	timeout     time.Duration
	maxHeader   int
	localTime   bool
	consoleMode string
}

func parseFlags(args []string, output io.Writer) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("minihttpd", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.port, "p", "8080", "Server port")
	fs.StringVar(&opts.dir, "d", "wwwroot", "Directory to serve")
	fs.IntVar(&opts.workers, "w", runtime.NumCPU(), "Number of workers")
	fs.DurationVar(&opts.timeout, "t", server.DefaultTimeout, "Connection read/write timeout")
	fs.IntVar(&opts.maxHeader, "max-header", server.DefaultMaxHeaderBytes, "Maximum size of the request header block in bytes")
	fs.BoolVar(&opts.localTime, "localtime", false, "Read If-Modified-Since dates as local time instead of UTC")
	fs.StringVar(&opts.consoleMode, "console", "auto", "Command console: auto, on or off")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if port, err := strconv.Atoi(opts.port); err != nil || port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %q", opts.port)
	}
	if opts.workers < 1 {
		return nil, fmt.Errorf("invalid number of workers %d", opts.workers)
	}
	switch opts.consoleMode {
	case "auto", "on", "off":
	default:
		return nil, fmt.Errorf("invalid console mode %q", opts.consoleMode)
	}

	return opts, nil
}

func (o *options) serverConfig(logger *log.Logger) server.Config {
	cfg := server.Config{
		Addr:           ":" + o.port,
		Root:           o.dir,
		Workers:        o.workers,
		Timeout:        o.timeout,
		MaxHeaderBytes: o.maxHeader,
		Logger:         logger,
	}
	if o.localTime {
		cfg.Location = time.Local
	}
	return cfg
}

// consoleEnabled resolves "auto" by checking whether fd is a terminal.
func consoleEnabled(mode string, fd uintptr) bool {
	switch mode {
	case "on":
		return true
	case "off":
		return false
	}
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func main() {
	log.SetOutput(colorable.NewColorableStderr())

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	if _, err := os.Stat(opts.dir); os.IsNotExist(err) {
		log.Fatalf("Error: directory %s not exist\n", opts.dir)
	}

	srv, err := server.New(opts.serverConfig(log.Default()))
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if err := srv.Start(); err != nil {
		log.Fatalf("Error: %v", err)
	}
	log.Printf("Serving %s", srv.Root())

	done := make(chan struct{})
	if consoleEnabled(opts.consoleMode, os.Stdin.Fd()) {
		go func() {
			defer close(done)
			if err := console.New(os.Stdin, os.Stdout, srv, "").Run(); err != nil {
				log.Printf("Error: %v", err)
			}
		}()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	select {
	case <-done:
	case sig := <-signals:
		log.Printf("Received %s", sig)
		if err := srv.Stop(); err != nil {
			log.Printf("Error: %v", err)
		}
	}
}
