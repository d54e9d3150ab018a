/*
Triangle demo: opens a window, builds the presentation pipeline and runs
the frame loop until the window closes or a signal arrives.
*/
package main

import (
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prismengine/prism/engine"
	"github.com/prismengine/prism/engine/config"
	"github.com/prismengine/prism/engine/core"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	eng, err := engine.New(cfg)
	if err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		<-sigCh
		eng.Stop()
	}()

	if err := eng.Run(); err != nil && !errors.Is(err, core.ErrShutdown) {
		panic(err)
	}
}
