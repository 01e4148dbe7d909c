package model

// UserKind is the identity kind carried through sessions, membership checks
// and the websocket handshake. It replaces branching on raw strings.
type UserKind string

const (
	UserKindAccount UserKind = "account"
	UserKindGuest   UserKind = "guest"
)

func ParseUserKind(s string) (UserKind, bool) {
	switch UserKind(s) {
	case UserKindAccount:
		return UserKindAccount, true
	case UserKindGuest:
		return UserKindGuest, true
	}
	return "", false
}

// Identity is the (user id, user kind) pair that owns sessions and
// hangout memberships.
type Identity struct {
	UserID int64
	Kind   UserKind
}

// Stage is one of the four sequential hangout stages.
type Stage int

const (
	StageAvailability Stage = 1
	StageSuggestions  Stage = 2
	StageVoting       Stage = 3
	StageConcluded    Stage = 4
)

// RequestClass selects which rate counter a request is charged against.
type RequestClass string

const (
	RequestClassGeneral RequestClass = "general"
	RequestClassChat    RequestClass = "chat"
)
