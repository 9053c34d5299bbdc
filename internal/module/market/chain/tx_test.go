package chain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unqnft/marketplace-proxy/internal/module/market/chain"
)

type callbackRecorder struct {
	starts    int
	updates   int
	successes int
	failures  int
	lastEvent chain.TxEvent
}

func (r *callbackRecorder) callbacks() chain.TxCallbacks {
	return chain.TxCallbacks{
		OnStart:   func() { r.starts++ },
		OnUpdate:  func(ev chain.TxEvent) { r.updates++; r.lastEvent = ev },
		OnSuccess: func(ev chain.TxEvent) { r.successes++; r.lastEvent = ev },
		OnFailed:  func(ev chain.TxEvent) { r.failures++; r.lastEvent = ev },
	}
}

func playEvents(events ...chain.TxEvent) <-chan chain.TxEvent {
	ch := make(chan chain.TxEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func TestWatchTxSuccessPath(t *testing.T) {
	recorder := &callbackRecorder{}

	chain.WatchTx(playEvents(
		chain.TxEvent{State: chain.TxPending},
		chain.TxEvent{State: chain.TxSubmitted},
		chain.TxEvent{State: chain.TxUpdated, Status: "ready"},
		chain.TxEvent{State: chain.TxUpdated, Status: "broadcast"},
		chain.TxEvent{State: chain.TxConfirmed, Status: "inBlock", BlockHash: "0xabc"},
	), recorder.callbacks())

	assert.Equal(t, 1, recorder.starts)
	assert.Equal(t, 2, recorder.updates)
	assert.Equal(t, 1, recorder.successes)
	assert.Equal(t, 0, recorder.failures)
	assert.Equal(t, "0xabc", recorder.lastEvent.BlockHash)
}

func TestWatchTxFailurePath(t *testing.T) {
	recorder := &callbackRecorder{}
	submitErr := errors.New("extrinsic dropped")

	chain.WatchTx(playEvents(
		chain.TxEvent{State: chain.TxPending},
		chain.TxEvent{State: chain.TxFailed, Err: submitErr},
	), recorder.callbacks())

	assert.Equal(t, 1, recorder.starts)
	assert.Equal(t, 0, recorder.successes)
	assert.Equal(t, 1, recorder.failures)
	assert.Equal(t, submitErr, recorder.lastEvent.Err)
}

func TestWatchTxEventsAfterTerminalAreIgnored(t *testing.T) {
	recorder := &callbackRecorder{}

	chain.WatchTx(playEvents(
		chain.TxEvent{State: chain.TxSubmitted},
		chain.TxEvent{State: chain.TxConfirmed, Status: "inBlock"},
		chain.TxEvent{State: chain.TxFailed, Err: errors.New("late")},
		chain.TxEvent{State: chain.TxUpdated},
	), recorder.callbacks())

	assert.Equal(t, 1, recorder.successes)
	assert.Equal(t, 0, recorder.failures)
	assert.Equal(t, 0, recorder.updates)
}

func TestWatchTxClosedWithoutTerminalFails(t *testing.T) {
	recorder := &callbackRecorder{}

	chain.WatchTx(playEvents(
		chain.TxEvent{State: chain.TxSubmitted},
	), recorder.callbacks())

	assert.Equal(t, 1, recorder.starts)
	assert.Equal(t, 1, recorder.failures)
	require.Error(t, recorder.lastEvent.Err)
}

func TestWatchTxUpdateBeforeStartStillStarts(t *testing.T) {
	recorder := &callbackRecorder{}

	chain.WatchTx(playEvents(
		chain.TxEvent{State: chain.TxUpdated, Status: "ready"},
		chain.TxEvent{State: chain.TxConfirmed},
	), recorder.callbacks())

	assert.Equal(t, 1, recorder.starts)
	assert.Equal(t, 1, recorder.updates)
}

func TestTxStateTerminal(t *testing.T) {
	assert.False(t, chain.TxPending.Terminal())
	assert.False(t, chain.TxSubmitted.Terminal())
	assert.False(t, chain.TxUpdated.Terminal())
	assert.True(t, chain.TxConfirmed.Terminal())
	assert.True(t, chain.TxFailed.Terminal())
}

func TestDecodeOnChainSchema(t *testing.T) {
	// hex encoded {"image":"https://example.com/{id}.png"}
	schema, err := chain.DecodeOnChainSchema("0x7b22696d616765223a2268747470733a2f2f6578616d706c652e636f6d2f7b69647d2e706e67227d")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/{id}.png", schema["image"])

	// plain JSON also accepted
	schema, err = chain.DecodeOnChainSchema(`{"image":"ipfs://abc"}`)
	require.NoError(t, err)
	assert.Equal(t, "ipfs://abc", schema["image"])

	_, err = chain.DecodeOnChainSchema("0x00ff")
	assert.Error(t, err)
}
