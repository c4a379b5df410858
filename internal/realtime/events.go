package realtime

import (
	"encoding/json"
	"time"

	"resumebuilder/api/internal/store"
)

// Inbound events.
const (
	EventJoinResumeRoom = "join-resume-room"
	EventUpdateResume   = "update-resume"
	EventLeaveResume    = "leave-resume"
)

// Outbound events.
const (
	EventUserJoined      = "user-joined"
	EventUsersInRoom     = "users-in-room"
	EventResumeLoaded    = "resume-loaded"
	EventResumeUpdated   = "resume-updated"
	EventUpdateConfirmed = "update-confirmed"
	EventUserLeft        = "user-left"
	EventError           = "error"
)

type UpdateRequest struct {
	ID      string          `json:"id"`
	Updates json.RawMessage `json:"updates"`
}

type PresencePayload struct {
	UserEmail string `json:"userEmail"`
	Message   string `json:"message"`
}

type ResumeLoadedPayload struct {
	Resume store.Resume `json:"resume"`
}

type ResumeUpdatedPayload struct {
	Updates   json.RawMessage `json:"updates"`
	UpdatedBy string          `json:"updatedBy"`
	Timestamp time.Time       `json:"timestamp"`
}

type UpdateConfirmedPayload struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
