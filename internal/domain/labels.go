package domain

// RelationshipLabel is a relationship as seen by one of its parties.
type RelationshipLabel string

const (
	LabelNone            RelationshipLabel = "none"
	LabelAccepted        RelationshipLabel = "accepted"
	LabelPendingSent     RelationshipLabel = "pending_sent"
	LabelPendingReceived RelationshipLabel = "pending_received"
	LabelBlocked         RelationshipLabel = "blocked"
)

// DeriveLabel projects rel onto viewer. A nil rel means the pair has no record.
// The blocked label does not say who imposed the block.
func DeriveLabel(rel *Relationship, viewer string) RelationshipLabel {
	if rel == nil || !rel.Involves(viewer) {
		return LabelNone
	}
	switch rel.Status {
	case RelationshipAccepted:
		return LabelAccepted
	case RelationshipPending:
		if rel.RequesterID == viewer {
			return LabelPendingSent
		}
		return LabelPendingReceived
	case RelationshipBlocked:
		return LabelBlocked
	default:
		return LabelNone
	}
}
