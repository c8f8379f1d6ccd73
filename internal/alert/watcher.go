// Package alert watches the drains collection and raises alert documents
// when a drain degrades into warning or critical.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/safedrain/sd/internal/gateway"
	"github.com/safedrain/sd/internal/models"
)

// DefaultPollInterval is how often the watcher polls the drains collection.
const DefaultPollInterval = 30 * time.Second

// Gateway is the slice of the remote document store the watcher needs.
type Gateway interface {
	Create(ctx context.Context, collection string, doc any) (string, error)
	Subscribe(ctx context.Context, collection string, q gateway.Query, interval time.Duration, fn func([]gateway.Document)) func()
}

// Watcher tracks the last seen status per drain and raises alerts on
// transitions into an alerting state. The cache is explicit per watcher, so
// two watchers never share state.
type Watcher struct {
	gw  Gateway
	log *slog.Logger
	now func() time.Time

	mu   sync.Mutex
	prev map[string]models.DrainStatus
}

// NewWatcher creates a drain status watcher with an empty state cache.
func NewWatcher(gw Gateway, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		gw:   gw,
		log:  log,
		now:  time.Now,
		prev: make(map[string]models.DrainStatus),
	}
}

// HandleSnapshot compares a drains snapshot against the cached statuses and
// creates one alert document per fresh transition into warning or critical.
// The first snapshot primes the cache; alerting drains in it do raise
// alerts, since the transition happened while nobody was watching.
func (w *Watcher) HandleSnapshot(ctx context.Context, docs []gateway.Document) []models.Alert {
	var raised []models.Alert

	for _, doc := range docs {
		var drain models.Drain
		if err := doc.Decode(&drain); err != nil {
			w.log.Warn("undecodable drain document", "id", doc.ID, "error", err)
			continue
		}

		w.mu.Lock()
		previous, seen := w.prev[doc.ID]
		w.prev[doc.ID] = drain.Status
		w.mu.Unlock()

		if !drain.Status.Alerting() {
			continue
		}
		if seen && previous == drain.Status {
			continue
		}

		a := models.Alert{
			DrainID:   doc.ID,
			DrainName: drain.Name,
			Status:    drain.Status,
			Message:   alertMessage(drain),
			CreatedAt: w.now().UTC(),
		}
		id, err := w.gw.Create(ctx, gateway.CollectionAlerts, a)
		if err != nil {
			// Drop the cached status so the next snapshot retries.
			w.mu.Lock()
			if seen {
				w.prev[doc.ID] = previous
			} else {
				delete(w.prev, doc.ID)
			}
			w.mu.Unlock()
			w.log.Warn("alert create failed", "drain", doc.ID, "error", err)
			continue
		}
		a.ID = id
		w.log.Info("alert raised", "drain", doc.ID, "status", drain.Status)
		raised = append(raised, a)
	}
	return raised
}

func alertMessage(d models.Drain) string {
	switch d.Status {
	case models.DrainCritical:
		return fmt.Sprintf("%s is at critical level (water %.1f cm)", d.Name, d.WaterLevel)
	default:
		return fmt.Sprintf("%s needs attention (water %.1f cm)", d.Name, d.WaterLevel)
	}
}

// Run subscribes to the drains collection and processes snapshots until ctx
// is canceled.
func (w *Watcher) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	stop := w.gw.Subscribe(ctx, gateway.CollectionDrains, gateway.Query{}, interval, func(docs []gateway.Document) {
		w.HandleSnapshot(ctx, docs)
	})
	defer stop()
	<-ctx.Done()
}
