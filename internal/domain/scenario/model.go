package scenario

import (
	"time"

	"github.com/google/uuid"

	"github.com/meddatabridge/pam-bridge/internal/domain/vocabulary"
)

// Protocol is a wire format a template can be materialised into (spec §3
// ScenarioTemplate "supported protocol set ⊆ {HL7v2, FHIR}").
type Protocol string

const (
	ProtocolHL7v2 Protocol = "HL7v2"
	ProtocolFHIR  Protocol = "FHIR"
)

// AnchorMode controls how a replay's first step timestamp is chosen
// (spec §4.10 Time shifting).
type AnchorMode string

const (
	AnchorSliding AnchorMode = "sliding"
	AnchorFixed   AnchorMode = "fixed"
	AnchorNone    AnchorMode = "none"
)

// TimeConfig is a template's replay timing (spec §4.10). MaterializeOptions
// carries no timing fields, so every run of a template uses this value.
type TimeConfig struct {
	Anchor            AnchorMode
	OffsetDays        int        // for AnchorSliding: first step at now + offset days
	FixedStart        *time.Time // for AnchorFixed
	PreserveIntervals bool
	JitterMinMinutes  int
	JitterMaxMinutes  int
}

// ScenarioTemplate is an ordered, semantic, context-free event sequence
// (spec §3 ScenarioTemplate). Deliberately carries no foreign key to any
// dossier it may have been captured from — a captured template must
// survive deletion of its source dossier (spec §4.10 Capture, tested
// invariant).
type ScenarioTemplate struct {
	ID          uuid.UUID
	Key         string // unique
	Name        string
	Description string
	Category    string
	Tags        []string
	Protocols   []Protocol
	TimeConfig  TimeConfig
	Steps       []ScenarioTemplateStep
	CreatedAt   time.Time
}

// ScenarioTemplateStep is one abstract event in a template (spec §3
// ScenarioTemplateStep).
type ScenarioTemplateStep struct {
	OrderIndex        int
	SemanticCode      string
	Trigger           string // derived wire trigger, e.g. "ADT^A02"
	Narrative         string
	Role              vocabulary.MessageRole
	DelayFromPrevious int // seconds; 0 for the first step
	Payload           StepPayload
	DefaultProtocol   *Protocol

	// CapturedAt is the original absolute timestamp, set only when the
	// step came from Capture; AnchorNone replays at these timestamps
	// unmodified (spec §4.10: "none (use snapshot timestamps)"). Hand-
	// authored or imported templates leave this zero and must use
	// AnchorSliding or AnchorFixed instead.
	CapturedAt time.Time
}

// StepPayload is the reference snapshot a step replays from: movement
// type/action, location, and UF codes/labels at capture time (spec §4.10
// Capture: "copy a reference payload snapshot ... as plain text").
type StepPayload struct {
	MovementAction string
	Nature         string
	LocationCode   string
	MedicalUFCode  string
	MedicalUFLabel string
	CareUFCode     string
	CareUFLabel    string
}

// StepStatus is the outcome of one replayed step (spec §3 ScenarioBinding/Run).
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepError   StepStatus = "error"
	StepSkipped StepStatus = "skipped"
)

// RunStatus is the aggregate outcome of a run, the worst of its steps
// (spec §7: "Aggregate scenario status reflects the worst individual step
// (success < partial < error)").
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunError   RunStatus = "error"
)

// RunStep is one executed (or skipped) step within a Run.
type RunStep struct {
	OrderIndex   int
	ScheduledAt  time.Time
	ExecutedAt   *time.Time
	Status       StepStatus
	AckCode      string // MSA-1 for HL7v2, "" for FHIR or on dispatch failure
	ErrorKind    string
	Message      string
	RenderedHL7  []byte
	RenderedFHIR []byte
}

// Run is one execution instance of a template against an endpoint (spec
// §3 ScenarioBinding/Run).
type Run struct {
	ID                uuid.UUID
	TemplateID        uuid.UUID
	EndpointID        uuid.UUID
	Protocol          Protocol
	IPPPrefixOverride string
	NDAPrefixOverride string
	AllocatedIPP      string
	AllocatedNDA      string
	AllocatedVN       string
	DryRun            bool
	StopOnError       bool
	Started           time.Time
	Finished          *time.Time
	Steps             []RunStep
	Status            RunStatus
	Cancelled         bool
}

// worstRunStatus returns the more severe of two run statuses, success < partial < error,
// where "partial" only ever arises at the aggregate (Run) level.
func worstRunStatus(a, b RunStatus) RunStatus {
	rank := map[RunStatus]int{RunSuccess: 0, RunPartial: 1, RunError: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
