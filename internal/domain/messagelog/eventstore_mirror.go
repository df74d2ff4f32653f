package messagelog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
)

// EventStoreMirror appends log entries to an EventStoreDB stream, one
// stream per endpoint, as an optional durability mirror of the relational
// message_log table (SPEC_FULL.md domain stack). Grounded on
// orange-dot-attenditev2's internal/kurrentdb publisher: append-only,
// ExpectedRevision any, JSON body.
type EventStoreMirror struct {
	client *esdb.Client
}

// NewEventStoreMirror connects to an EventStoreDB (or KurrentDB-compatible)
// instance at connectionString, e.g. "esdb://localhost:2113?tls=false".
func NewEventStoreMirror(connectionString string) (*EventStoreMirror, error) {
	settings, err := esdb.ParseConnectionString(connectionString)
	if err != nil {
		return nil, fmt.Errorf("messagelog: parse eventstore connection string: %w", err)
	}
	client, err := esdb.NewClient(settings)
	if err != nil {
		return nil, fmt.Errorf("messagelog: create eventstore client: %w", err)
	}
	return &EventStoreMirror{client: client}, nil
}

func (m *EventStoreMirror) Append(ctx context.Context, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("messagelog: marshal entry: %w", err)
	}

	event := esdb.EventData{
		EventType:   "MessageLogged",
		ContentType: esdb.ContentTypeJson,
		Data:        data,
	}

	stream := "messagelog-" + e.EndpointID.String()
	_, err = m.client.AppendToStream(ctx, stream, esdb.AppendToStreamOptions{
		ExpectedRevision: esdb.Any{},
	}, event)
	if err != nil {
		return fmt.Errorf("messagelog: append to eventstore stream %s: %w", stream, err)
	}
	return nil
}

func (m *EventStoreMirror) Close() error {
	return m.client.Close()
}
