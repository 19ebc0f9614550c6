// SPDX-License-Identifier: MIT
package media

import (
	"context"
	"errors"
	"time"

	"visualizer/internal/log"
	"visualizer/internal/observe"
	"visualizer/internal/transport"
)

// Poller watches a Source and pushes update_media when the title changes.
type Poller struct {
	source    Source
	covers    *CoverFetcher
	presenter transport.Transport
	interval  time.Duration
	metrics   *observe.Metrics

	lastTitle string
}

// NewPoller returns a poller. metrics may be nil.
func NewPoller(source Source, covers *CoverFetcher, presenter transport.Transport, interval time.Duration, metrics *observe.Metrics) *Poller {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Poller{
		source:    source,
		covers:    covers,
		presenter: presenter,
		interval:  interval,
		metrics:   metrics,
	}
}

// Run polls until ctx is done or the source reports ErrUnsupported. It
// never returns a non-nil error so it can share an errgroup with the
// pipeline.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if !p.poll(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// poll performs one update. It reports false when polling should stop.
func (p *Poller) poll(ctx context.Context) bool {
	info, err := p.source.Current(ctx)
	switch {
	case errors.Is(err, ErrUnsupported):
		log.Debugf("Media: %v", err)
		return false
	case errors.Is(err, ErrNoPlayer):
		return true
	case err != nil:
		log.Debugf("Media: query failed: %v", err)
		return true
	}

	if info.Title == "" || info.Title == p.lastTitle {
		return true
	}

	payload := Payload{Title: info.Title, Artist: info.Artist}
	if p.covers != nil {
		payload.Cover = p.covers.Fetch(ctx, info.ArtURL)
	}
	msg := transport.Message{Event: transport.EventUpdateMedia, Payload: payload, Sticky: true}
	if err := p.presenter.Send(msg); err != nil {
		log.Debugf("Media: update not delivered: %v", err)
		return !errors.Is(err, transport.ErrUnavailable)
	}
	p.lastTitle = info.Title
	p.metrics.MediaUpdates.Add(ctx, 1)
	log.Infof("Media: now playing %q by %q", info.Title, info.Artist)
	return true
}
