package statemachine

// Apply evaluates in against the transition table of spec §4.6 and
// returns the approved Output, or a *Rejected error when the trigger's
// precondition does not hold against the current status. Historic
// transitions (in.Historic) bypass chronology ordering but are still
// validated against this same table.
func Apply(in Input) (*Output, error) {
	switch in.Trigger {
	case "A05":
		if in.CurrentStatus != StatusNone && in.CurrentStatus != StatusPreAdmitted {
			return nil, &Rejected{FromStatus: in.CurrentStatus, Trigger: in.Trigger, Reason: "A05 requires no venue or a PRE_ADMITTED venue"}
		}
		return &Output{NewStatus: StatusPreAdmitted, Action: ActionCreatePreAdmit}, nil

	case "A01":
		if in.CurrentStatus != StatusNone && in.CurrentStatus != StatusPreAdmitted {
			return nil, &Rejected{FromStatus: in.CurrentStatus, Trigger: in.Trigger, Reason: "A01 requires no venue or a PRE_ADMITTED venue"}
		}
		return &Output{NewStatus: StatusActive, Action: ActionActivateAdmit, UpdatesLoc: true}, nil

	case "A02":
		if in.CurrentStatus != StatusActive {
			return nil, &Rejected{FromStatus: in.CurrentStatus, Trigger: in.Trigger, Reason: "A02 requires an ACTIVE venue"}
		}
		return &Output{NewStatus: StatusActive, Action: ActionAppendTransfer, UpdatesLoc: true}, nil

	case "A03":
		if in.CurrentStatus != StatusActive && in.CurrentStatus != StatusOnLeave {
			return nil, &Rejected{FromStatus: in.CurrentStatus, Trigger: in.Trigger, Reason: "A03 requires an ACTIVE or ON_LEAVE venue"}
		}
		return &Output{NewStatus: StatusDischarged, Action: ActionAppendDischarge, SetsVenueEnd: true}, nil

	case "A11":
		if in.LastNonCancelledTrigger != "A01" {
			return nil, &Rejected{FromStatus: in.CurrentStatus, Trigger: in.Trigger, Reason: "A11 requires the last non-cancelled movement to be A01"}
		}
		return &Output{NewStatus: StatusCancelled, Action: ActionCancelAdmit}, nil

	case "A12":
		if in.LastNonCancelledTrigger != "A02" {
			return nil, &Rejected{FromStatus: in.CurrentStatus, Trigger: in.Trigger, Reason: "A12 requires the last non-cancelled movement to be A02"}
		}
		return &Output{NewStatus: StatusActive, Action: ActionCancelTransfer, UpdatesLoc: true}, nil

	case "A13":
		if in.CurrentStatus != StatusDischarged {
			return nil, &Rejected{FromStatus: in.CurrentStatus, Trigger: in.Trigger, Reason: "A13 requires a DISCHARGED venue"}
		}
		return &Output{NewStatus: StatusActive, Action: ActionReopenDischarge, ClearsVenueEnd: true}, nil

	case "A06", "A07":
		if in.CurrentStatus == StatusNone {
			return nil, &Rejected{FromStatus: in.CurrentStatus, Trigger: in.Trigger, Reason: "patient type change requires an existing venue"}
		}
		return &Output{NewStatus: in.CurrentStatus, Action: ActionUpdateDossierType}, nil

	case "A08":
		return &Output{NewStatus: in.CurrentStatus, Action: ActionUpdateDemographics}, nil

	case "A28", "A31":
		return &Output{NewStatus: in.CurrentStatus, Action: ActionPatientLevelUpdate}, nil

	case "A40":
		return &Output{NewStatus: in.CurrentStatus, Action: ActionMergePatient}, nil

	default:
		return nil, &Rejected{FromStatus: in.CurrentStatus, Trigger: in.Trigger, Reason: "unrecognized trigger"}
	}
}
