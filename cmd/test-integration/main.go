// Command test-integration exercises the mirror database and lightcurve
// watcher against a scratch directory, without touching the remote
// platform. Useful for verifying a deployment host end to end.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"voidorchestra/internal/logging"
	"voidorchestra/internal/storage"
	"voidorchestra/internal/watch"
)

func main() {
	fmt.Println("Testing mirror database + lightcurve watcher integration")

	scratch, err := os.MkdirTemp("", "voidorchestra-integration-")
	if err != nil {
		log.Fatal("Failed to create scratch directory:", err)
	}
	defer os.RemoveAll(scratch)

	store, err := storage.New(filepath.Join(scratch, "integration.db"))
	if err != nil {
		log.Fatal("Failed to create mirror database:", err)
	}
	defer store.Close()

	fmt.Println("Mirror database created")

	// Seed some content and read it back through the active-subject view.
	ref, err := store.AddContent(storage.KindSonification, "lc-integration-1", "")
	if err != nil {
		log.Fatal("Failed to register content:", err)
	}
	if err := store.SetMachineConfidence(ref, 0.42); err != nil {
		log.Fatal("Failed to set confidence:", err)
	}

	rec, err := store.ContentByName(storage.KindSonification, "lc-integration-1")
	if err != nil {
		log.Fatal("Failed to read content back:", err)
	}
	fmt.Printf("Content round-trip ok (id=%d)\n", rec.ID)

	// Watch the scratch directory and drop a lightcurve into it.
	incoming := filepath.Join(scratch, "incoming")
	if err := os.Mkdir(incoming, 0755); err != nil {
		log.Fatal("Failed to create incoming directory:", err)
	}

	logger := logging.New("debug", "text")
	watcher, err := watch.New(incoming, store, logger)
	if err != nil {
		log.Fatal("Failed to create watcher:", err)
	}
	if err := watcher.Start(); err != nil {
		log.Fatal("Failed to start watcher:", err)
	}
	defer watcher.Stop()

	lightcurve := filepath.Join(incoming, "tic-0001.csv")
	if err := os.WriteFile(lightcurve, []byte("time,flux\n0,1.0\n"), 0644); err != nil {
		log.Fatal("Failed to write lightcurve:", err)
	}

	// The watcher registers asynchronously; poll briefly.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := store.ContentByName(storage.KindSonification, "tic-0001"); err == nil {
			fmt.Println("Watcher registered new lightcurve")
			break
		}
		if time.Now().After(deadline) {
			log.Fatal("Watcher did not register the lightcurve within 5s")
		}
		time.Sleep(100 * time.Millisecond)
	}

	fmt.Println("Integration test passed")
}
