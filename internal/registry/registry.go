// Package registry tracks which student connections belong to which exam.
//
// The Registry is the single source of truth for exam membership. Every
// operation is atomic with respect to the others and total over unknown
// keys: absence is reported as an empty result, never as an error.
package registry

import (
	"sync"
	"time"

	"github.com/secure-exam/relay/internal/model"
)

// Stats is a point-in-time summary of the registry.
type Stats struct {
	Rooms    int `json:"rooms"`
	Sessions int `json:"sessions"`
}

// Registry maps exam ids to member connection ids and connection ids to sessions.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]map[string]struct{}
	sessions map[string]*model.StudentSession
	now      func() time.Time
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		rooms:    make(map[string]map[string]struct{}),
		sessions: make(map[string]*model.StudentSession),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for JoinedAt.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Join records connID as a member of examID. A second join for the same
// connection replaces the previous session, moving it out of its old room.
func (r *Registry) Join(examID, studentID, studentName, connID string) model.StudentSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.sessions[connID]; ok {
		r.removeMemberLocked(prev.ExamID, connID)
	}

	members, ok := r.rooms[examID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[examID] = members
	}
	members[connID] = struct{}{}

	sess := &model.StudentSession{
		ExamID:       examID,
		StudentID:    studentID,
		StudentName:  studentName,
		ConnectionID: connID,
		JoinedAt:     r.now(),
	}
	r.sessions[connID] = sess
	return *sess
}

// Leave removes connID from examID and deletes its session.
// It reports false when the connection had no session.
func (r *Registry) Leave(connID, examID string) (model.StudentSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[connID]
	if !ok {
		r.removeMemberLocked(examID, connID)
		return model.StudentSession{}, false
	}

	r.removeMemberLocked(examID, connID)
	if sess.ExamID != examID {
		r.removeMemberLocked(sess.ExamID, connID)
	}
	delete(r.sessions, connID)
	return *sess, true
}

// Disconnect removes the session of connID from whichever exam it joined.
func (r *Registry) Disconnect(connID string) (model.StudentSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(connID)
}

// Remove drops connID on behalf of a moderator. It has the same effect as Disconnect.
func (r *Registry) Remove(connID string) (model.StudentSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(connID)
}

// Get returns the session of connID.
func (r *Registry) Get(connID string) (model.StudentSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[connID]
	if !ok {
		return model.StudentSession{}, false
	}
	return *sess, true
}

// ListByExam returns copies of every session joined to examID, unordered.
func (r *Registry) ListByExam(examID string) []model.StudentSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[examID]
	sessions := make([]model.StudentSession, 0, len(members))
	for connID := range members {
		if sess, ok := r.sessions[connID]; ok {
			sessions = append(sessions, *sess)
		}
	}
	return sessions
}

// Members returns the connection ids joined to examID.
func (r *Registry) Members(examID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[examID]
	ids := make([]string, 0, len(members))
	for connID := range members {
		ids = append(ids, connID)
	}
	return ids
}

// RoomSize returns the number of connections joined to examID.
func (r *Registry) RoomSize(examID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[examID])
}

// Stats returns the number of non-empty rooms and live sessions.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Rooms: len(r.rooms), Sessions: len(r.sessions)}
}

func (r *Registry) deleteLocked(connID string) (model.StudentSession, bool) {
	sess, ok := r.sessions[connID]
	if !ok {
		return model.StudentSession{}, false
	}
	r.removeMemberLocked(sess.ExamID, connID)
	delete(r.sessions, connID)
	return *sess, true
}

// removeMemberLocked deletes connID from the room and drops the room once empty.
func (r *Registry) removeMemberLocked(examID, connID string) {
	members, ok := r.rooms[examID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, examID)
	}
}
