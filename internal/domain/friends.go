package domain

import (
	"slices"
	"time"
)

type RelationshipStatus string

const (
	RelationshipPending  RelationshipStatus = "pending"
	RelationshipAccepted RelationshipStatus = "accepted"
	RelationshipRejected RelationshipStatus = "rejected"
	RelationshipBlocked  RelationshipStatus = "blocked"
)

// Relationship is the single record kept for an unordered pair of users.
// RequesterID and ReceiverID are fixed when the record is created.
type Relationship struct {
	ID          string             `json:"id"`
	RequesterID string             `json:"requester_id"`
	ReceiverID  string             `json:"receiver_id"`
	Status      RelationshipStatus `json:"status"`
	BlockedBy   []string           `json:"blocked_by"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func (r Relationship) Involves(userID string) bool {
	return r.RequesterID == userID || r.ReceiverID == userID
}

// OtherParty returns the member of the pair that is not userID.
func (r Relationship) OtherParty(userID string) string {
	if r.RequesterID == userID {
		return r.ReceiverID
	}
	return r.RequesterID
}

func (r Relationship) IsBlockedBy(userID string) bool {
	return slices.Contains(r.BlockedBy, userID)
}

// Clone returns a copy that does not share the BlockedBy backing array.
func (r Relationship) Clone() Relationship {
	r.BlockedBy = slices.Clone(r.BlockedBy)
	if r.BlockedBy == nil {
		r.BlockedBy = []string{}
	}
	return r
}

// Profile is the public part of a directory entry.
type Profile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Gender      Gender `json:"gender,omitempty"`
	AvatarPath  string `json:"avatar_path,omitempty"`
}

type PendingRequest struct {
	ID        string             `json:"id"`
	Requester Profile            `json:"requester"`
	Status    RelationshipStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type UserWithLabel struct {
	ID                 string            `json:"id"`
	Username           string            `json:"username"`
	DisplayName        string            `json:"display_name,omitempty"`
	AvatarPath         string            `json:"avatar_path,omitempty"`
	RelationshipStatus RelationshipLabel `json:"relationship_status"`
}
