// Package energy implements the energy-aware gate (C8, spec §4.8): a
// background poller of a remote electricity price oracle that tells
// workers whether the current hour is cheap enough to keep computing,
// grounded on original_source/src/energySaving.cpp's Energy struct and its
// sleepThread/checkSleep methods.
package energy

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/efficomp/hpknn/pkg/observability"
)

// Price is one polling response from the oracle (spec §6's energy oracle
// JSON schema; field names match original_source's struct_mapping
// registrations verbatim: date, hour, is-cheap, is-under-avg, market,
// price, units).
type Price struct {
	Date       string  `json:"date"`
	Hour       string  `json:"hour"`
	IsCheap    bool    `json:"is-cheap"`
	IsUnderAvg bool    `json:"is-under-avg"`
	Market     string  `json:"market"`
	PriceValue float32 `json:"price"`
	Units      string  `json:"units"`
}

// cheap reports whether this price window lets work proceed: both cheap
// and under the recent average (original_source: !(isCheap && isUnderAvg)
// triggers a sleep, so proceeding requires both flags set).
func (p Price) cheap() bool {
	return p.IsCheap && p.IsUnderAvg
}

// Gate polls a price oracle once per hour, aligned to the top of the hour,
// and exposes whether the current window is cheap. It implements
// coordinator.EnergyGate.
type Gate struct {
	client      *http.Client
	limiter     *rate.Limiter
	url         string
	log         *observability.Logger
	isSlave     bool
	metrics     *observability.Metrics

	mu    sync.RWMutex
	last  Price
	ready bool
}

// SetMetrics attaches a Metrics sink recording poll outcomes and sleep
// time. Safe to call once before Run starts; nil disables recording.
func (g *Gate) SetMetrics(metrics *observability.Metrics) {
	g.metrics = metrics
}

// NewGate builds a Gate polling url. requestsPerSec bounds the oracle
// client's outbound request rate (golang.org/x/time/rate), a second,
// independent use of the limiter from the admin REST surface's per-client
// throttle. isSlave controls the +5s stagger applied to this gate's
// sleep-until-next-hour wakeups, so that many workers polling the same
// oracle do not all wake at exactly the top of the hour (spec §4.8).
func NewGate(url string, requestsPerSec float64, isSlave bool, log *observability.Logger) *Gate {
	if log == nil {
		log = observability.NewDefaultLogger()
	}
	return &Gate{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), 1),
		url:     url,
		log:     log,
		isSlave: isSlave,
	}
}

// Run polls the oracle once immediately and then once per hour until ctx
// is done. It is meant to run in its own goroutine for the lifetime of the
// process (original_source's checkEnergyPrice loop).
func (g *Gate) Run(ctx context.Context) {
	g.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(g.sleepDuration()):
			g.poll(ctx)
		}
	}
}

func (g *Gate) poll(ctx context.Context) {
	if err := g.limiter.Wait(ctx); err != nil {
		return
	}

	price, err := g.fetch(ctx)
	if err != nil {
		g.log.Warn("energy oracle poll failed, treating window as expensive", map[string]interface{}{"error": err.Error()})
		g.mu.Lock()
		g.ready = false
		g.mu.Unlock()
		if g.metrics != nil {
			g.metrics.RecordEnergyPoll("error", false)
		}
		return
	}

	g.mu.Lock()
	g.last = price
	g.ready = true
	g.mu.Unlock()

	if g.metrics != nil {
		if price.cheap() {
			g.metrics.RecordEnergyPoll("cheap", true)
		} else {
			g.metrics.RecordEnergyPoll("expensive", false)
		}
	}
}

func (g *Gate) fetch(ctx context.Context) (Price, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, http.NoBody)
	if err != nil {
		return Price{}, fmt.Errorf("build oracle request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Price{}, fmt.Errorf("query energy oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Price{}, fmt.Errorf("energy oracle returned status %d", resp.StatusCode)
	}

	var price Price
	if err := json.NewDecoder(resp.Body).Decode(&price); err != nil {
		return Price{}, fmt.Errorf("decode energy oracle response: %w", err)
	}
	return price, nil
}

// sleepDuration computes how long to sleep until the next poll instant:
// the top of the next hour, +5 seconds if this gate is staggered (slave),
// matching original_source's sleepThread(isSlave).
func (g *Gate) sleepDuration() time.Duration {
	now := time.Now()
	next := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location()).Add(time.Hour)
	if g.isSlave {
		next = next.Add(5 * time.Second)
	}
	return time.Until(next)
}

// IsCheap reports the most recently polled (isCheap, isUnderAverage)
// flags folded into one boolean. Before the first successful poll, and
// after a failed poll, it reports false (treat the unknown window as
// expensive).
func (g *Gate) IsCheap() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.ready && g.last.cheap()
}

// BlockUntilCheap implements coordinator.EnergyGate: it sleeps until the
// top of the next hour (staggered per sleepDuration) for as long as the
// current window is not cheap, matching original_source's checkSleep.
func (g *Gate) BlockUntilCheap(ctx context.Context) error {
	for !g.IsCheap() {
		d := g.sleepDuration()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			if g.metrics != nil {
				g.metrics.RecordEnergySleep(d)
			}
		}
	}
	return nil
}
