package ws

// Envelope is the typed message sent to connected hangout members. Clients
// dispatch on (type, reason).
type Envelope struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
	Data   any    `json:"data"`
}

const (
	TypeChatUpdate  = "chatUpdate"
	TypeNewData     = "newData"
	TypeHangoutUtil = "hangoutUtil"
)

const (
	ReasonStageChange      = "stageChange"
	ReasonHangoutConcluded = "hangoutConcluded"
	ReasonNewChatMessage   = "newChatMessage"
)
