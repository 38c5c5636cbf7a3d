// Package domain holds shared value types used across the case workflow
// engine: typed identifiers and actor roles.
//
// IDs are distinct uuid-backed types so a CaseID can never be passed where an
// ActorID is expected. Construct them via the Parse functions at trust
// boundaries; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "caseflow/pkg/domain-errors"
)

type (
	// CaseID identifies a legal case aggregate.
	CaseID uuid.UUID
	// ActorID identifies a user acting on a case (judge, lawyer, litigant, police).
	ActorID uuid.UUID
	// EventID identifies an immutable case event.
	EventID uuid.UUID
	// BlockID identifies an evidence block in a case's hash chain.
	BlockID uuid.UUID
)

func (id CaseID) String() string  { return uuid.UUID(id).String() }
func (id ActorID) String() string { return uuid.UUID(id).String() }
func (id EventID) String() string { return uuid.UUID(id).String() }
func (id BlockID) String() string { return uuid.UUID(id).String() }

func (id CaseID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id BlockID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText makes the ID types render as canonical uuid strings in JSON
// and log output instead of raw byte arrays.
func (id CaseID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }
func (id ActorID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id EventID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id BlockID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *CaseID) UnmarshalText(b []byte) error {
	parsed, err := ParseCaseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ActorID) UnmarshalText(b []byte) error {
	parsed, err := ParseActorID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *EventID) UnmarshalText(b []byte) error {
	parsed, err := ParseEventID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *BlockID) UnmarshalText(b []byte) error {
	parsed, err := ParseBlockID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewCaseID returns a fresh random case identifier.
func NewCaseID() CaseID { return CaseID(uuid.New()) }

// NewActorID returns a fresh random actor identifier.
func NewActorID() ActorID { return ActorID(uuid.New()) }

// NewEventID returns a fresh random event identifier.
func NewEventID() EventID { return EventID(uuid.New()) }

// NewBlockID returns a fresh random block identifier.
func NewBlockID() BlockID { return BlockID(uuid.New()) }

// ParseCaseID constructs a CaseID from external input.
func ParseCaseID(s string) (CaseID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return CaseID{}, err
	}
	return CaseID(u), nil
}

// ParseActorID constructs an ActorID from external input.
func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ActorID{}, err
	}
	return ActorID(u), nil
}

// ParseEventID constructs an EventID from external input.
func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return EventID{}, err
	}
	return EventID(u), nil
}

// ParseBlockID constructs a BlockID from external input.
func ParseBlockID(s string) (BlockID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return BlockID{}, err
	}
	return BlockID(u), nil
}

// parseUUID enforces the shared invariant: IDs must be valid, non-nil UUIDs.
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid uuid")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil uuid")
	}
	return u, nil
}
