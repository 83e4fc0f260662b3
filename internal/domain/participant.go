// Package domain contains entity without logic, just meta-data
package domain

import "time"

const MaxDisplayNameLen = 36

type (
	ParticipantID string
	MeetingID     string
)

// Permissions is what the owner (or the relay's admission decision)
// granted to a participant. Zero value means "not yet admitted".
type Permissions struct {
	Allowed bool `json:"allowed"`
	Unmute  bool `json:"unmute"`
	Video   bool `json:"video"`
	IsOwner bool `json:"is_owner,omitempty"`
}

func DefaultPermissions() Permissions {
	return Permissions{Allowed: true, Unmute: true, Video: true}
}

func OwnerPermissions() Permissions {
	return Permissions{Allowed: true, Unmute: true, Video: true, IsOwner: true}
}

// PermissionUpdate is a partial permission change; nil fields are untouched.
type PermissionUpdate struct {
	Allowed *bool `json:"allowed,omitempty"`
	Unmute  *bool `json:"unmute,omitempty"`
	Video   *bool `json:"video,omitempty"`
	IsOwner *bool `json:"is_owner,omitempty"`
}

// Apply overlays the set fields of u onto p.
func (u PermissionUpdate) Apply(p Permissions) Permissions {
	if u.Allowed != nil {
		p.Allowed = *u.Allowed
	}
	if u.Unmute != nil {
		p.Unmute = *u.Unmute
	}
	if u.Video != nil {
		p.Video = *u.Video
	}
	if u.IsOwner != nil {
		p.IsOwner = *u.IsOwner
	}
	return p
}

// Participant is one roster entry. The local participant is a
// distinguished, always-present entry.
type Participant struct {
	ID          ParticipantID `json:"socketId"`
	Name        string        `json:"name"`
	IsLocal     bool          `json:"isLocal,omitempty"`
	IsOwner     bool          `json:"is_owner,omitempty"`
	Permissions Permissions   `json:"permissions"`
}

// PendingRequest is a not-yet-admitted joiner, visible to the owner only.
type PendingRequest struct {
	ID   ParticipantID `json:"socketId"`
	Name string        `json:"name"`
	At   time.Time     `json:"ts"`
}
