// Package realtime runs collaborative editing sessions: joining a resume
// room, relaying updates to the other editors, and leaving.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"resumebuilder/api/internal/access"
	"resumebuilder/api/internal/broadcast"
	"resumebuilder/api/internal/store"
)

type ResumeStore interface {
	GetResume(ctx context.Context, id string) (store.Resume, error)
	ApplyResumePatch(ctx context.Context, id string, patch store.Patch) (store.Resume, error)
}

type Membership interface {
	Add(ctx context.Context, resumeID, identity, connID string) error
	Remove(ctx context.Context, resumeID, identity, connID string) error
	List(ctx context.Context, resumeID string) ([]string, error)
}

type Broadcaster interface {
	Attach(room string, sub broadcast.Subscriber)
	Detach(room, id string)
	ToRoomExcept(ctx context.Context, room, except string, msg broadcast.Message) error
	ToRoom(ctx context.Context, room string, msg broadcast.Message) error
}

// Coordinator runs the join, update, leave and disconnect flows of the
// resume rooms. It keeps no room state of its own; membership lives in
// Membership and fan-out goes through Broadcaster.
type Coordinator struct {
	resumes ResumeStore
	members Membership
	rooms   Broadcaster
	now     func() time.Time
}

// NewCoordinator wires a Coordinator to its stores.
func NewCoordinator(resumes ResumeStore, members Membership, rooms Broadcaster) *Coordinator {
	return &Coordinator{
		resumes: resumes,
		members: members,
		rooms:   rooms,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Dispatch decodes one inbound frame and runs the matching transition.
// Failures are reported to the connection as an error event.
func (c *Coordinator) Dispatch(ctx context.Context, conn *Conn, frame broadcast.Message) {
	var err error
	switch frame.Event {
	case EventJoinResumeRoom:
		var id string
		if err = decodeResumeID(frame.Data, &id); err == nil {
			err = c.Join(ctx, conn, id)
		}
	case EventUpdateResume:
		var req UpdateRequest
		if len(frame.Data) == 0 || json.Unmarshal(frame.Data, &req) != nil {
			err = sessionError(KindMalformedRequest, "Invalid update payload", nil)
		} else {
			err = c.Update(ctx, conn, req)
		}
	case EventLeaveResume:
		var id string
		if err = decodeResumeID(frame.Data, &id); err == nil {
			err = c.Leave(ctx, conn, id)
		}
	case "":
		err = sessionError(KindMalformedRequest, "Malformed message", nil)
	default:
		err = sessionError(KindMalformedRequest, fmt.Sprintf("Unknown event %q", frame.Event), nil)
	}
	if err != nil {
		if KindOf(err) == KindTransportFailure || KindOf(err) == "" {
			log.Printf("realtime: %s from %s failed: %v", frame.Event, conn.identity, err)
		}
		c.replyError(conn, err)
	}
}

func decodeResumeID(data json.RawMessage, id *string) error {
	if len(data) == 0 || json.Unmarshal(data, id) != nil || strings.TrimSpace(*id) == "" {
		return sessionError(KindMalformedRequest, "Resume id is required", nil)
	}
	return nil
}

// Join loads the resume, checks access, and registers conn in the room.
// Joining the room conn is already in repeats the sequence without changing
// membership.
func (c *Coordinator) Join(ctx context.Context, conn *Conn, resumeID string) error {
	rejoin := false
	switch conn.state {
	case StateUnjoined:
	case StateJoined:
		if conn.resumeID != resumeID {
			return sessionError(KindInvalidState, "Already joined another resume", nil)
		}
		rejoin = true
	default:
		return sessionError(KindInvalidState, "Connection is closed to new sessions", nil)
	}

	resume, err := c.resumes.GetResume(ctx, resumeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return sessionError(KindNotFound, "Resume not found", err)
		}
		return sessionError(KindTransportFailure, "Failed to join resume room", err)
	}
	if !access.CanAccess(resume.Grant(), conn.identity) {
		return sessionError(KindForbidden, "Access denied", nil)
	}

	c.rooms.Attach(resumeID, conn)
	if err := c.members.Add(ctx, resumeID, conn.identity, conn.id); err != nil {
		if !rejoin {
			c.rooms.Detach(resumeID, conn.id)
		}
		return sessionError(KindTransportFailure, "Failed to join resume room", err)
	}
	users, err := c.members.List(ctx, resumeID)
	if err != nil {
		if !rejoin {
			if removeErr := c.members.Remove(ctx, resumeID, conn.identity, conn.id); removeErr != nil {
				log.Printf("realtime: undo join of %s to %s: %v", conn.identity, resumeID, removeErr)
			}
			c.rooms.Detach(resumeID, conn.id)
		}
		return sessionError(KindTransportFailure, "Failed to join resume room", err)
	}

	conn.state = StateJoined
	conn.resumeID = resumeID

	c.toRoomExcept(ctx, conn, EventUserJoined, PresencePayload{
		UserEmail: conn.identity,
		Message:   conn.identity + " joined the resume",
	})
	c.toRoom(ctx, resumeID, EventUsersInRoom, roster(users))
	c.reply(conn, EventResumeLoaded, ResumeLoadedPayload{Resume: resume})
	return nil
}

// Update applies a partial change to the joined resume. Access is checked
// against the current resume on every call.
func (c *Coordinator) Update(ctx context.Context, conn *Conn, req UpdateRequest) error {
	if strings.TrimSpace(req.ID) == "" {
		return sessionError(KindMalformedRequest, "Resume id is required", nil)
	}
	if conn.state != StateJoined || conn.resumeID != req.ID {
		return sessionError(KindInvalidState, "Join the resume before updating it", nil)
	}
	patch, err := store.ParsePatch(req.Updates)
	if err != nil {
		return sessionError(KindMalformedRequest, "Invalid update payload", err)
	}

	resume, err := c.resumes.GetResume(ctx, req.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return sessionError(KindNotFound, "Resume not found", err)
		}
		return sessionError(KindTransportFailure, "Failed to update resume", err)
	}
	if !access.CanAccess(resume.Grant(), conn.identity) {
		return sessionError(KindForbidden, "Access denied", nil)
	}

	if _, err := c.resumes.ApplyResumePatch(ctx, req.ID, patch); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return sessionError(KindNotFound, "Resume not found", err)
		case errors.Is(err, store.ErrInvalidPatch):
			return sessionError(KindMalformedRequest, "Invalid update payload", err)
		default:
			return sessionError(KindTransportFailure, "Failed to update resume", err)
		}
	}

	at := c.now()
	c.toRoomExcept(ctx, conn, EventResumeUpdated, ResumeUpdatedPayload{
		Updates:   patch.Applied(),
		UpdatedBy: conn.identity,
		Timestamp: at,
	})
	c.reply(conn, EventUpdateConfirmed, UpdateConfirmedPayload{
		Message:   "Resume updated successfully",
		Timestamp: at,
	})
	return nil
}

// Leave takes conn out of its room. If the membership store cannot be
// reached the connection stays joined so the client can retry.
func (c *Coordinator) Leave(ctx context.Context, conn *Conn, resumeID string) error {
	if conn.state != StateJoined || conn.resumeID != resumeID {
		return sessionError(KindInvalidState, "Not joined to this resume", nil)
	}
	if err := c.depart(ctx, conn, " left the resume"); err != nil {
		return sessionError(KindTransportFailure, "Failed to leave resume room", err)
	}
	conn.state = StateLeft
	return nil
}

// Disconnect is called once when the transport closes.
func (c *Coordinator) Disconnect(ctx context.Context, conn *Conn) {
	if conn.state == StateJoined {
		if err := c.depart(ctx, conn, " disconnected"); err != nil {
			log.Printf("realtime: remove %s from %s on disconnect: %v", conn.identity, conn.resumeID, err)
			c.rooms.Detach(conn.resumeID, conn.id)
		}
	}
	conn.state = StateDisconnected
	conn.close()
}

func (c *Coordinator) depart(ctx context.Context, conn *Conn, suffix string) error {
	resumeID := conn.resumeID
	if err := c.members.Remove(ctx, resumeID, conn.identity, conn.id); err != nil {
		return err
	}
	c.rooms.Detach(resumeID, conn.id)

	c.toRoomExcept(ctx, conn, EventUserLeft, PresencePayload{
		UserEmail: conn.identity,
		Message:   conn.identity + suffix,
	})
	users, err := c.members.List(ctx, resumeID)
	if err != nil {
		log.Printf("realtime: list %s after %s left: %v", resumeID, conn.identity, err)
		return nil
	}
	c.toRoom(ctx, resumeID, EventUsersInRoom, roster(users))
	return nil
}

func roster(users []string) []string {
	if users == nil {
		return []string{}
	}
	return users
}

func (c *Coordinator) toRoomExcept(ctx context.Context, conn *Conn, event string, payload any) {
	msg, err := broadcast.NewMessage(event, payload)
	if err != nil {
		log.Printf("realtime: %v", err)
		return
	}
	if err := c.rooms.ToRoomExcept(ctx, conn.resumeID, conn.id, msg); err != nil {
		log.Printf("realtime: broadcast %s to %s: %v", event, conn.resumeID, err)
	}
}

func (c *Coordinator) toRoom(ctx context.Context, resumeID, event string, payload any) {
	msg, err := broadcast.NewMessage(event, payload)
	if err != nil {
		log.Printf("realtime: %v", err)
		return
	}
	if err := c.rooms.ToRoom(ctx, resumeID, msg); err != nil {
		log.Printf("realtime: broadcast %s to %s: %v", event, resumeID, err)
	}
}

func (c *Coordinator) reply(conn *Conn, event string, payload any) {
	msg, err := broadcast.NewMessage(event, payload)
	if err != nil {
		log.Printf("realtime: %v", err)
		return
	}
	if !conn.Deliver(msg) {
		log.Printf("realtime: dropped %s for conn %s", event, conn.id)
	}
}

func (c *Coordinator) replyError(conn *Conn, err error) {
	c.reply(conn, EventError, ErrorPayload{Message: clientMessage(err)})
}
