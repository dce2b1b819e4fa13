package scope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rumscope/internal/rum"
)

func TestAction_NonWaitingResolvesOnNextEvent(t *testing.T) {
	f := newFixture(t)
	v := f.startView("home")

	f.send(rum.StartAction{Type: rum.ActionTypeTap, Name: "submit", Time: f.now()})
	require.NotNil(t, v.activeAction)
	assert.Empty(t, f.writer.Actions())

	f.send(rum.AddError{Message: "invalid form", Source: rum.ErrorSourceSource, Time: f.now()})

	actions := f.writer.Actions()
	require.Len(t, actions, 1)
	assert.Nil(t, v.activeAction)
	assert.Equal(t, int64(1), actions[0].Action.Error.Count)
	assert.Equal(t, []string{"error_tap"}, actions[0].Action.Frustration.Type)
	assert.Equal(t, int64(1), actions[0].Action.Frustration.Count)

	errs := f.writer.Errors()
	require.Len(t, errs, 1)
	require.NotNil(t, errs[0].Action, "the error happened while the tap was open")
	assert.Equal(t, []string{actions[0].Action.ID}, errs[0].Action.ID)

	f.ack()
	last := f.writer.LastView(v.ViewID())
	assert.Equal(t, int64(1), last.ViewDetail.Action.Count)
	assert.Equal(t, int64(1), last.ViewDetail.Frustration.Count)
}

func TestAction_NonWaitingWaitsForItsResources(t *testing.T) {
	f := newFixture(t)
	v := f.startView("home")

	f.send(rum.StartAction{Type: rum.ActionTypeTap, Name: "refresh", Time: f.now()})
	actionID := v.activeAction.ActionID()
	f.send(rum.StartResource{Key: "r1", URL: "https://example.com/feed", Time: f.now()})
	f.advance(250 * time.Millisecond)
	f.send(rum.KeepAlive{Time: f.now()})
	require.NotNil(t, v.activeAction, "an ongoing resource keeps the action open")

	f.advance(50 * time.Millisecond)
	f.send(rum.StopResource{Key: "r1", Time: f.now()})

	actions := f.writer.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, actionID, actions[0].Action.ID)
	assert.Equal(t, int64(1), actions[0].Action.Resource.Count)
	assert.Equal(t, int64(300*time.Millisecond), actions[0].Action.Loading)
	assert.Empty(t, actions[0].Action.Frustration.Type)

	res := f.writer.Resources()
	require.Len(t, res, 1)
	assert.Equal(t, []string{actionID}, res[0].Action.ID)
}

func TestAction_InactivityWindow(t *testing.T) {
	f := newFixture(t, func(e *Env) { e.ActionInactivity = 100 * time.Millisecond })
	v := f.startView("home")

	f.send(rum.StartAction{Type: rum.ActionTypeScroll, Name: "list", Time: f.now()})
	f.advance(50 * time.Millisecond)
	f.send(rum.KeepAlive{Time: f.now()})
	require.NotNil(t, v.activeAction)

	f.advance(60 * time.Millisecond)
	f.send(rum.KeepAlive{Time: f.now()})
	assert.Nil(t, v.activeAction)

	actions := f.writer.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, int64(1), actions[0].Action.Loading, "no follow-up work ends where it started")
	assert.NotContains(t, f.logs.String(), "non-positive duration clamped")
}

func TestAction_WaitingStaysOpenUntilStop(t *testing.T) {
	f := newFixture(t)
	v := f.startView("home")

	f.send(rum.StartAction{
		Type:        rum.ActionTypeCustom,
		Name:        "upload",
		WaitForStop: true,
		Attributes:  map[string]any{"size": 10},
		Time:        f.now(),
	})
	f.advance(time.Second)
	f.send(rum.AddLongTask{DurationNs: int64(60 * time.Millisecond), Time: f.now()})
	f.send(rum.KeepAlive{Time: f.now()})
	require.NotNil(t, v.activeAction)

	f.advance(time.Second)
	f.send(rum.StopAction{
		Type:       rum.ActionTypeSwipe,
		Name:       "upload-done",
		Attributes: map[string]any{"status": "ok"},
		Time:       f.now(),
	})

	actions := f.writer.Actions()
	require.Len(t, actions, 1)
	a := actions[0]
	assert.Equal(t, rum.ActionTypeSwipe, a.Action.Type)
	assert.Equal(t, "upload-done", a.Action.Target.Name)
	assert.Equal(t, int64(2*time.Second), a.Action.Loading)
	assert.Equal(t, int64(1), a.Action.LongTask.Count)
	assert.Equal(t, map[string]any{"size": 10, "status": "ok"}, a.Context)
	assert.Nil(t, v.activeAction)
}

func TestAction_MaxDurationCutsAction(t *testing.T) {
	f := newFixture(t, func(e *Env) { e.ActionMaxDuration = 5 * time.Second })
	v := f.startView("home")

	f.send(rum.StartAction{Type: rum.ActionTypeTap, Name: "stuck", WaitForStop: true, Time: f.now()})
	f.advance(6 * time.Second)
	f.send(rum.KeepAlive{Time: f.now()})

	actions := f.writer.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, int64(5*time.Second), actions[0].Action.Loading)
	assert.Nil(t, v.activeAction)
}

func TestAction_FatalErrorClosesAction(t *testing.T) {
	f := newFixture(t)
	v := f.startView("home")

	f.send(rum.StartAction{Type: rum.ActionTypeTap, Name: "open", WaitForStop: true, Time: f.now()})
	f.send(rum.AddError{Message: "crash", IsFatal: true, Time: f.now()})

	actions := f.writer.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, int64(1), actions[0].Action.Crash.Count)
	assert.Equal(t, int64(1), actions[0].Action.Error.Count)
	assert.Nil(t, v.activeAction)
}

func TestAction_NonTapErrorsAreNotFrustration(t *testing.T) {
	f := newFixture(t)
	f.startView("home")

	f.send(rum.StartAction{Type: rum.ActionTypeScroll, Name: "feed", Time: f.now()})
	f.send(rum.AddError{Message: "oops", Time: f.now()})

	actions := f.writer.Actions()
	require.Len(t, actions, 1)
	assert.Equal(t, []string{}, actions[0].Action.Frustration.Type)
	assert.Zero(t, actions[0].Action.Frustration.Count)

	outcomes := f.notifier.Outcomes()
	require.NotEmpty(t, outcomes)
	for _, o := range outcomes {
		assert.Zero(t, o.Event.FrustrationCount)
	}
}

func TestAction_StopSessionClosesAction(t *testing.T) {
	f := newFixture(t)
	v := f.startView("home")

	f.send(rum.StartAction{Type: rum.ActionTypeTap, Name: "logout", WaitForStop: true, Time: f.now()})
	f.send(rum.StopSession{Time: f.now()})

	assert.Len(t, f.writer.Actions(), 1)
	assert.Nil(t, v.activeAction)
}
