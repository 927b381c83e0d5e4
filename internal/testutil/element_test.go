package testutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tracesync/internal/media"
)

func TestFakeElement_RecordsCallsAndEmits(t *testing.T) {
	el := NewFakeElement(10)
	var events []media.ElementEventType
	stop := el.Listen(func(ev media.ElementEvent) { events = append(events, ev.Type) })

	require.NoError(t, el.Seek(3))
	require.NoError(t, el.Play())
	el.EmitTimeUpdate(3.25)
	require.NoError(t, el.Pause())
	require.NoError(t, el.SetRate(2))

	assert.Equal(t, []string{"seek(3)", "play", "pause", "rate(2)"}, el.Calls())
	assert.Equal(t, []media.ElementEventType{
		media.ElementSeeked,
		media.ElementPlaying,
		media.ElementTimeUpdate,
		media.ElementPaused,
		media.ElementRateChanged,
	}, events)
	assert.Equal(t, 3.25, el.CurrentTime())
	assert.Equal(t, 2.0, el.Rate())

	stop()
	assert.Zero(t, el.Listeners())
}

func TestFakeElement_DeferredSeek(t *testing.T) {
	el := NewFakeElement(10)
	el.DeferSeeked = true
	var seeked int
	el.Listen(func(ev media.ElementEvent) {
		if ev.Type == media.ElementSeeked {
			seeked++
		}
	})

	require.NoError(t, el.Seek(4))
	assert.Zero(t, seeked)
	el.Settle()
	assert.Equal(t, 1, seeked)
}

func TestFakeElement_Errors(t *testing.T) {
	el := NewFakeElement(10)
	boom := errors.New("boom")
	el.PlayErr = boom
	assert.ErrorIs(t, el.Play(), boom)
	assert.False(t, el.Playing())
}
