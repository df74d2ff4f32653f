package endpoint

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/meddatabridge/pam-bridge/internal/domain/inbound"
)

// filePoller scans Endpoint.InboxPath for files matching FileGlob on a
// fixed interval and feeds each one through the inbound pipeline exactly
// once: a matched file is renamed into a ".processing" suffix before
// parsing, then to ".done" or ".error" afterward, so a crash mid-poll
// cannot cause the same file to be replayed (spec §4.11).
type filePoller struct {
	endpoint *Endpoint
	pipeline *inbound.Pipeline
	log      zerolog.Logger

	stop chan struct{}
	done chan struct{}
}

func newFilePoller(e *Endpoint, pipeline *inbound.Pipeline, log zerolog.Logger) *filePoller {
	return &filePoller{
		endpoint: e,
		pipeline: pipeline,
		log:      log.With().Str("endpoint", e.Name).Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (p *filePoller) start() {
	interval := time.Duration(p.endpoint.PollSecondsInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.pollOnce()
			}
		}
	}()
}

func (p *filePoller) stopAndWait() {
	close(p.stop)
	<-p.done
}

func (p *filePoller) pollOnce() {
	glob := p.endpoint.FileGlob
	if glob == "" {
		glob = "*"
	}
	matches, err := filepath.Glob(filepath.Join(p.endpoint.InboxPath, glob))
	if err != nil {
		p.log.Error().Err(err).Msg("file-inbox glob failed")
		return
	}
	for _, path := range matches {
		p.processOne(path)
	}
}

func (p *filePoller) processOne(path string) {
	claimed := path + ".processing"
	if err := os.Rename(path, claimed); err != nil {
		// another poller tick or process already claimed it.
		return
	}

	raw, err := os.ReadFile(claimed)
	if err != nil {
		p.log.Error().Err(err).Str("file", path).Msg("file-inbox read failed")
		os.Rename(claimed, path+".error")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultACKTimeout)
	defer cancel()

	if _, err := p.pipeline.Process(ctx, raw, p.endpoint.ID, p.endpoint.JuridicalEntityID, false); err != nil {
		p.log.Error().Err(err).Str("file", path).Msg("file-inbox processing failed")
		os.Rename(claimed, path+".error")
		return
	}
	os.Rename(claimed, path+".done")
}

// fileOutbox writes a rendered message to OutboxPath under a name derived
// from the control id, so outbound files never collide with each other.
type fileOutbox struct {
	endpoint *Endpoint
}

func newFileOutbox(e *Endpoint) *fileOutbox {
	return &fileOutbox{endpoint: e}
}

func (o *fileOutbox) write(controlID string, data []byte) (DispatchResult, error) {
	name := controlID + ".hl7"
	path := filepath.Join(o.endpoint.OutboxPath, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return DispatchResult{FailureKind: FailureProtocol, Detail: err.Error()}, nil
	}
	return DispatchResult{Success: true}, nil
}
