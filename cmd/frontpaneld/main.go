// Command frontpaneld polls the rotary encoder and capacitive touch
// hardware and forwards translated commands to core's control socket
// (spec section 4.8). It holds no session state and can restart freely.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/agalue/lva/internal/config"
	"github.com/agalue/lva/internal/frontpanel"
)

func main() {
	log.SetPrefix("[frontpaneld] ")
	log.SetFlags(log.Ltime)

	cfg, err := config.Load(config.ResolvePath())
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	source := newInputSource(cfg)
	defer source.Close()

	controlSock := filepath.Join(cfg.IPCDir, "control.sock")
	daemon := frontpanel.New(source, controlSock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go daemon.Run(ctx)

	log.Printf("ready: control=%s gpio_enabled=%v", controlSock, cfg.GPIOEnabled)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")
	cancel()
}

// newInputSource resolves the configured hardware backend, falling back to
// NullInputSource when GPIO is disabled or unsupported on this platform.
func newInputSource(cfg *config.Config) frontpanel.InputSource {
	if !cfg.GPIOEnabled {
		return frontpanel.NullInputSource{}
	}
	if runtime.GOOS != "linux" {
		log.Printf("GPIO requested but unsupported on %s, using NullInputSource", runtime.GOOS)
		return frontpanel.NullInputSource{}
	}
	src, err := newGPIOInputSource(cfg)
	if err != nil {
		log.Printf("GPIO init failed, falling back to NullInputSource: %v", err)
		return frontpanel.NullInputSource{}
	}
	return src
}
