package session

import (
	"github.com/mcoot/poisonedglass/internal/model"
	"github.com/mcoot/poisonedglass/internal/services/broadcast"
	"github.com/mcoot/poisonedglass/internal/services/roster"
)

type msg interface{ isSessionMsg() }

type joinMsg struct {
	connectionID model.ConnectionID
	displayName  string
	username     string
	reply        chan joinReply
}

func (joinMsg) isSessionMsg() {}

type joinReply struct {
	result roster.JoinResult
	err    error
}

type leaveMsg struct {
	connectionID model.ConnectionID
	reason       string
	reply        chan bool
}

func (leaveMsg) isSessionMsg() {}

type submitMsg struct {
	connectionID model.ConnectionID
	action       model.Action
	reply        chan SubmitResult
}

func (submitMsg) isSessionMsg() {}

type snapshotMsg struct {
	reply chan model.SessionView
}

func (snapshotMsg) isSessionMsg() {}

type subscribeMsg struct {
	listener broadcast.Listener
	reply    chan subscribeReply
}

func (subscribeMsg) isSessionMsg() {}

type subscribeReply struct {
	view        model.SessionView
	unsubscribe func()
}

// closeIfEmptyMsg stops the session when nobody is seated
type closeIfEmptyMsg struct {
	reply chan bool
}

func (closeIfEmptyMsg) isSessionMsg() {}

// timerMsg carries a callback from a timer goroutine back onto the session
type timerMsg struct {
	fn func()
}

func (timerMsg) isSessionMsg() {}

// SubmitResult reports what happened to a submitted action.
// Accepted is false when the submission was dropped as out of turn.
type SubmitResult struct {
	Accepted bool
	Outcome  model.OutcomeRecord
}
