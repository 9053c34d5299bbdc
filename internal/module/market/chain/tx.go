package chain

import "errors"

// TxState is the lifecycle of a submitted extrinsic.
type TxState int

const (
	TxPending TxState = iota
	TxSubmitted
	TxUpdated
	TxConfirmed
	TxFailed
)

func (s TxState) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxSubmitted:
		return "submitted"
	case TxUpdated:
		return "updated"
	case TxConfirmed:
		return "confirmed"
	case TxFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further events can follow this state.
func (s TxState) Terminal() bool {
	return s == TxConfirmed || s == TxFailed
}

type TxEvent struct {
	State     TxState
	Status    string // node-reported status, e.g. "ready", "inBlock"
	BlockHash string
	Err       error
}

// TxCallbacks bridges the event stream back to a callback-shaped consumer.
// OnStart fires once before any other callback; OnUpdate fires zero or more
// times; exactly one of OnSuccess or OnFailed fires last.
type TxCallbacks struct {
	OnStart   func()
	OnUpdate  func(TxEvent)
	OnSuccess func(TxEvent)
	OnFailed  func(TxEvent)
}

var errStreamClosed = errors.New("transaction stream closed without a terminal event")

// WatchTx drains the event stream and drives the callbacks, blocking until a
// terminal event arrives or the stream closes. A stream that closes without a
// terminal event is reported as a failure.
func WatchTx(events <-chan TxEvent, cb TxCallbacks) {
	started := false
	done := false

	start := func() {
		if !started {
			started = true
			if cb.OnStart != nil {
				cb.OnStart()
			}
		}
	}

	for ev := range events {
		if done {
			continue
		}

		switch ev.State {
		case TxPending, TxSubmitted:
			start()
		case TxUpdated:
			start()
			if cb.OnUpdate != nil {
				cb.OnUpdate(ev)
			}
		case TxConfirmed:
			start()
			done = true
			if cb.OnSuccess != nil {
				cb.OnSuccess(ev)
			}
		case TxFailed:
			start()
			done = true
			if cb.OnFailed != nil {
				cb.OnFailed(ev)
			}
		}
	}

	if !done {
		start()
		if cb.OnFailed != nil {
			cb.OnFailed(TxEvent{State: TxFailed, Err: errStreamClosed})
		}
	}
}
