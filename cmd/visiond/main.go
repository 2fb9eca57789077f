// Command visiond is the vision daemon: a stateless request/reply service
// that opens the camera on demand, runs face-orientation detection, and
// replies with an attention verdict (spec section 4.9).
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/agalue/lva/internal/config"
	"github.com/agalue/lva/internal/ipc"
	"github.com/agalue/lva/internal/vision"
)

func main() {
	log.SetPrefix("[visiond] ")
	log.SetFlags(log.Ltime)

	ipcDir := flag.String("ipc-dir", "", "Directory containing the UNIX-domain IPC sockets")
	cameraIndex := flag.Int("camera-index", 0, "V4L2 device index")
	flag.Parse()

	dir := *ipcDir
	if dir == "" {
		cfg := config.DefaultConfig()
		dir = cfg.IPCDir
	}

	camera := newCamera(*cameraIndex)
	server := vision.NewServer(camera, vision.StubFaceDetector{})

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("IPC directory error: %v", err)
	}
	sockPath := filepath.Join(dir, "visd.sock")
	srv, err := ipc.Listen(sockPath, server.Handle)
	if err != nil {
		log.Fatalf("listen %s: %v", sockPath, err)
	}
	defer srv.Close()
	go srv.Serve()

	log.Printf("ready: socket=%s", sockPath)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")
}
