package inbound

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/meddatabridge/pam-bridge/internal/domain/messagelog"
	"github.com/meddatabridge/pam-bridge/internal/domain/structure"
	"github.com/meddatabridge/pam-bridge/internal/platform/hl7v2"
)

// processMFN handles MFN^M05 structure import (spec §4.4, §7 Open Question
// decision): a minimal handler that authoritatively upserts one structure
// node per message, reusing the wire codec (C1) and the PAM auto-create-uf
// virtual-node machinery (C4) rather than introducing a parallel code path.
//
// The import carries its payload in a ZFE segment (mirroring ZBE's
// bridge-specific extension convention, since standard HL7 MFI/MFE/LOC
// segments don't map cleanly onto this hierarchy's nine kinds):
//
//	ZFE-1  structure kind of the node being imported (e.g. FUNCTIONAL_UNIT)
//	ZFE-2  code, unique within the kind/juridical-entity scope
//	ZFE-3  label
//	ZFE-4  parent kind, empty only for a Territory node
//	ZFE-5  parent code, must already exist
func (p *Pipeline) processMFN(ctx context.Context, msg *hl7v2.Message, entry *messagelog.Entry, controlID string, juridicalEntityID uuid.UUID) ([]byte, error) {
	zfe := msg.GetSegment("ZFE")
	if zfe == nil {
		p.Log.Fail(ctx, entry.ID, nil)
		return buildAck(AckAE, controlID, "ZFE_MISSING", nil), nil
	}

	kind := structure.Kind(zfe.GetField(1))
	code := zfe.GetField(2)
	label := zfe.GetField(3)
	parentKind := structure.Kind(zfe.GetField(4))
	parentCode := zfe.GetField(5)

	if kind == "" || code == "" {
		p.Log.Fail(ctx, entry.ID, nil)
		return buildAck(AckAE, controlID, "ZFE_FIELD_MISSING", nil), nil
	}

	_, err := p.Structure.Import(ctx, kind, code, label, parentKind, parentCode, &juridicalEntityID)
	if err != nil {
		var amb *structure.AmbiguityError
		if errors.As(err, &amb) {
			p.Log.Fail(ctx, entry.ID, nil)
			return buildAck(AckAE, controlID, "STRUCTURE_AMBIGUITY", nil), nil
		}
		var nf *structure.NotFoundError
		if errors.As(err, &nf) {
			p.Log.Fail(ctx, entry.ID, nil)
			return buildAck(AckAE, controlID, "STRUCTURE_PARENT_UNKNOWN", nil), nil
		}
		return nil, err
	}

	if err := p.Log.Succeed(ctx, entry.ID, nil); err != nil {
		return nil, err
	}
	return buildAck(AckAA, controlID, "", nil), nil
}
