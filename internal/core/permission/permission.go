// Package permission implements the capability checks gating game and chat
// actions. The evaluator is a pure predicate; the grant rules live behind the
// Policy interface so deployments can swap them out.
package permission

import (
	"github.com/stepline/stepline/internal/core/data"
)

// Capability is a named permission checked against an actor and an optional
// room scope.
type Capability int

const (
	Chat Capability = iota
	StartGame
	CreateRoom
	ChangeRoomSettings
)

// Policy supplies the grant rules consulted by the Evaluator.
type Policy interface {
	// Granted reports whether the user holds the capability within the room.
	// roomID is zero outside of any room.
	Granted(c Capability, user *data.User, roomID uint64) bool
}

// RankPolicy grants a capability when the user's rank meets the configured
// threshold. Capabilities absent from the table are never granted.
type RankPolicy struct {
	Thresholds map[Capability]int
}

func (p RankPolicy) Granted(c Capability, user *data.User, roomID uint64) bool {
	min, ok := p.Thresholds[c]
	if !ok {
		return false
	}
	return user.Rank >= min
}

// DefaultPolicy returns the grant table used when no policy is configured.
func DefaultPolicy() RankPolicy {
	return RankPolicy{Thresholds: map[Capability]int{
		Chat:               0,
		StartGame:          0,
		CreateRoom:         0,
		ChangeRoomSettings: 5,
	}}
}

// Evaluator answers capability checks. Can has no side effects and is total
// for all (capability, actor, room) triples; unknown capabilities and nil
// actors are denied.
type Evaluator struct {
	policy Policy
}

func NewEvaluator(policy Policy) *Evaluator {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Evaluator{policy: policy}
}

func (e *Evaluator) Can(c Capability, user *data.User, roomID uint64) bool {
	if user == nil {
		return false
	}
	return e.policy.Granted(c, user, roomID)
}
