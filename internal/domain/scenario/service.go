package scenario

import (
	"github.com/meddatabridge/pam-bridge/internal/domain/endpoint"
	"github.com/meddatabridge/pam-bridge/internal/domain/identifier"
	"github.com/meddatabridge/pam-bridge/internal/domain/messagelog"
	"github.com/meddatabridge/pam-bridge/internal/domain/outbound"
	"github.com/meddatabridge/pam-bridge/internal/domain/structure"
	"github.com/meddatabridge/pam-bridge/internal/domain/venue"
	"github.com/meddatabridge/pam-bridge/internal/domain/vocabulary"
)

// Service implements the template/scenario engine: Capture, Materialize,
// time shifting, Replay, and Statistics (spec §4.10).
type Service struct {
	Repo        Repository
	Venues      venue.Repository
	Identifiers *identifier.Service
	IdentRepo   identifier.Repository
	Structure   *structure.Service
	Generator   *outbound.Generator
	Endpoints   endpoint.Dispatcher
	Log         *messagelog.Service
	Vocabulary  *vocabulary.Registry
}

// NewService wires a scenario engine from its collaborators. endpoints
// may be nil for a Service only used for Capture/Materialize (no Replay).
func NewService(
	repo Repository,
	venues venue.Repository,
	identifiers *identifier.Service,
	identRepo identifier.Repository,
	structureSvc *structure.Service,
	generator *outbound.Generator,
	endpoints endpoint.Dispatcher,
	log *messagelog.Service,
) *Service {
	return &Service{
		Repo:        repo,
		Venues:      venues,
		Identifiers: identifiers,
		IdentRepo:   identRepo,
		Structure:   structureSvc,
		Generator:   generator,
		Endpoints:   endpoints,
		Log:         log,
		Vocabulary:  vocabulary.NewRegistry(),
	}
}
