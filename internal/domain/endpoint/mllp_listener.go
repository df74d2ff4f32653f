package endpoint

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meddatabridge/pam-bridge/internal/domain/inbound"
	"github.com/meddatabridge/pam-bridge/internal/platform/hl7v2"
)

// mllpListener binds an MLLP-listener endpoint and feeds every received
// message through the inbound pipeline, replying with the ACK the
// pipeline produces (spec §4.11: "bind, accept loop spawns one worker
// per connection").
type mllpListener struct {
	endpoint *Endpoint
	pipeline *inbound.Pipeline
	log      zerolog.Logger
	server   *hl7v2.MLLPServer
}

func newMLLPListener(e *Endpoint, pipeline *inbound.Pipeline, log zerolog.Logger) *mllpListener {
	l := &mllpListener{
		endpoint: e,
		pipeline: pipeline,
		log:      log.With().Str("endpoint", e.Name).Logger(),
	}
	addr := fmt.Sprintf("%s:%d", e.Host, e.Port)
	l.server = hl7v2.NewMLLPServer(addr, l.handle)
	return l
}

func (l *mllpListener) start() error {
	return l.server.Start()
}

func (l *mllpListener) stop() error {
	return l.server.Stop()
}

// handle is called by MLLPServer per received message; it re-serializes
// the message so the pipeline can reparse it uniformly with file-inbox
// input, then returns the pipeline's ACK/NAK bytes parsed back into a
// Message for MLLPServer to frame and write.
func (l *mllpListener) handle(msg *hl7v2.Message) *hl7v2.Message {
	raw := hl7v2.SerializeMessage(msg)
	ctx, cancel := context.WithTimeout(context.Background(), DefaultACKTimeout)
	defer cancel()

	ackBytes, err := l.pipeline.Process(ctx, raw, l.endpoint.ID, l.endpoint.JuridicalEntityID, false)
	if err != nil {
		l.log.Error().Err(err).Msg("mllp-listener processing failed")
		if len(ackBytes) == 0 {
			return hl7v2.GenerateACK(msg, "AE")
		}
	}
	if len(ackBytes) == 0 {
		return hl7v2.GenerateACK(msg, "AA")
	}
	ack, err := hl7v2.Parse(ackBytes)
	if err != nil {
		return hl7v2.GenerateACK(msg, "AE")
	}
	return ack
}
