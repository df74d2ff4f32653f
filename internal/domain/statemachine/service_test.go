package statemachine

import "testing"

func TestApply_A05FromNoneCreatesPreAdmit(t *testing.T) {
	out, err := Apply(Input{Trigger: "A05", CurrentStatus: StatusNone})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NewStatus != StatusPreAdmitted {
		t.Errorf("expected PRE_ADMITTED, got %s", out.NewStatus)
	}
}

func TestApply_A01FromPreAdmittedActivates(t *testing.T) {
	out, err := Apply(Input{Trigger: "A01", CurrentStatus: StatusPreAdmitted})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NewStatus != StatusActive || out.Action != ActionActivateAdmit {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestApply_A01FromActiveRejected(t *testing.T) {
	_, err := Apply(Input{Trigger: "A01", CurrentStatus: StatusActive})
	if _, ok := err.(*Rejected); !ok {
		t.Fatalf("expected Rejected, got %v", err)
	}
}

func TestApply_A02RequiresActive(t *testing.T) {
	_, err := Apply(Input{Trigger: "A02", CurrentStatus: StatusDischarged})
	if _, ok := err.(*Rejected); !ok {
		t.Fatalf("expected Rejected for A02 from DISCHARGED, got %v", err)
	}

	out, err := Apply(Input{Trigger: "A02", CurrentStatus: StatusActive})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.UpdatesLoc {
		t.Error("expected A02 to update location")
	}
}

func TestApply_A03FromOnLeaveDischarges(t *testing.T) {
	out, err := Apply(Input{Trigger: "A03", CurrentStatus: StatusOnLeave})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NewStatus != StatusDischarged || !out.SetsVenueEnd {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestApply_A11RequiresLastMovementWasA01(t *testing.T) {
	_, err := Apply(Input{Trigger: "A11", LastNonCancelledTrigger: "A02"})
	if _, ok := err.(*Rejected); !ok {
		t.Fatalf("expected Rejected, got %v", err)
	}

	out, err := Apply(Input{Trigger: "A11", LastNonCancelledTrigger: "A01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NewStatus != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", out.NewStatus)
	}
}

func TestApply_A13ReopensDischarge(t *testing.T) {
	out, err := Apply(Input{Trigger: "A13", CurrentStatus: StatusDischarged})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NewStatus != StatusActive || !out.ClearsVenueEnd {
		t.Errorf("unexpected output: %+v", out)
	}

	_, err = Apply(Input{Trigger: "A13", CurrentStatus: StatusActive})
	if _, ok := err.(*Rejected); !ok {
		t.Fatalf("expected Rejected for A13 from ACTIVE, got %v", err)
	}
}

func TestApply_A08AllowedFromAnyStatus(t *testing.T) {
	out, err := Apply(Input{Trigger: "A08", CurrentStatus: StatusActive})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Action != ActionUpdateDemographics {
		t.Errorf("expected ActionUpdateDemographics, got %s", out.Action)
	}
}

func TestApply_A28NoVenueEffect(t *testing.T) {
	out, err := Apply(Input{Trigger: "A28", CurrentStatus: StatusNone})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NewStatus != StatusNone || out.Action != ActionPatientLevelUpdate {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestApply_UnknownTriggerRejected(t *testing.T) {
	_, err := Apply(Input{Trigger: "Z99"})
	if _, ok := err.(*Rejected); !ok {
		t.Fatalf("expected Rejected for unknown trigger, got %v", err)
	}
}
