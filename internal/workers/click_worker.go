// Package workers drains the click-events channel behind the redirect path.
package workers

import (
	"log"
	"sync"

	"github.com/marcvidal/linkshortener/internal/models"
	"github.com/marcvidal/linkshortener/internal/services"
)

// StartClickWorkers launches a pool of worker goroutines that process click
// events asynchronously, so that recording (geo lookup, UA parsing, click
// insert, counter increment, cache invalidation) never sits on the redirect
// path.
//
// The returned WaitGroup is done once every worker has exited; close the
// channel and wait on it for a graceful drain during shutdown.
func StartClickWorkers(workerCount int, clickEvents <-chan models.ClickEvent, recorder *services.RecorderService) *sync.WaitGroup {
	log.Printf("Starting %d click worker(s)...", workerCount)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clickWorker(clickEvents, recorder)
		}()
	}
	return &wg
}

// clickWorker is the function executed by each worker goroutine. It processes
// events until the channel is closed. Record never returns an error - every
// failure inside it is logged and swallowed - so a worker can only exit
// through channel closure.
func clickWorker(clickEvents <-chan models.ClickEvent, recorder *services.RecorderService) {
	for event := range clickEvents {
		recorder.Record(event)
	}
}
