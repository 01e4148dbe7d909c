package model

// Hangout timestamps are millisecond epochs to match the 13-digit timestamp
// embedded in hangout identifiers.
type Hangout struct {
	ID                    string  `db:"id" json:"id"`
	Title                 string  `db:"title" json:"title"`
	PasswordHash          *string `db:"password_hash" json:"-"`
	MemberLimit           int     `db:"member_limit" json:"memberLimit"`
	AvailabilityStep      int64   `db:"availability_step" json:"availabilityStep"`
	SuggestionsStep       int64   `db:"suggestions_step" json:"suggestionsStep"`
	VotingStep            int64   `db:"voting_step" json:"votingStep"`
	CurrentStage          Stage   `db:"current_stage" json:"currentStage"`
	StageControlTimestamp int64   `db:"stage_control_timestamp" json:"stageControlTimestamp"`
	NextStepTimestamp     *int64  `db:"next_step_timestamp" json:"nextStepTimestamp,omitempty"`
	ConclusionTimestamp   *int64  `db:"conclusion_timestamp" json:"conclusionTimestamp,omitempty"`
	IsConcluded           bool    `db:"is_concluded" json:"isConcluded"`
}

// StageTransition is one row touched by the bulk advance pass.
type StageTransition struct {
	HangoutID string `db:"id"`
	NewStage  Stage  `db:"current_stage"`
}

func (t StageTransition) Concluded() bool {
	return t.NewStage == StageConcluded
}

type HangoutMember struct {
	ID        int64    `db:"id" json:"id"`
	HangoutID string   `db:"hangout_id" json:"hangoutId"`
	UserID    int64    `db:"user_id" json:"userId"`
	UserType  UserKind `db:"user_type" json:"userType"`
	IsLeader  bool     `db:"is_leader" json:"isLeader"`
}

type Suggestion struct {
	ID        int64  `db:"id" json:"id"`
	HangoutID string `db:"hangout_id" json:"hangoutId"`
	MemberID  int64  `db:"member_id" json:"memberId"`
	Text      string `db:"text" json:"text"`
	CreatedAt int64  `db:"created_at" json:"createdAt"`
}
