package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"alert_console/internal/control"
	"alert_console/internal/engine/enginetest"
	"alert_console/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend records control pushes; the remaining calls echo fixed values.
type fakeBackend struct {
	mu        sync.Mutex
	pushes    []map[string]any
	pushErr   error
	power     bool
	sharePerm string
	link      models.DeviceLink
}

func (f *fakeBackend) UpdateControl(_ context.Context, _ string, values map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, values)
	return f.pushErr
}

func (f *fakeBackend) TogglePower(context.Context, string) (models.PowerState, error) {
	f.power = !f.power
	return models.PowerState{On: f.power}, nil
}

func (f *fakeBackend) ToggleDoor(context.Context, string) (models.DoorStatus, error) {
	return models.DoorStatus{Open: true}, nil
}

func (f *fakeBackend) DoorStatus(context.Context, string) (models.DoorStatus, error) {
	return models.DoorStatus{}, nil
}

func (f *fakeBackend) Lock(context.Context, string) (models.DoorStatus, error) {
	return models.DoorStatus{Locked: true}, nil
}

func (f *fakeBackend) Unlock(context.Context, string) (models.DoorStatus, error) {
	return models.DoorStatus{}, nil
}

func (f *fakeBackend) CreateShareTicket(_ context.Context, _ string, permission string) (models.ShareTicket, error) {
	f.sharePerm = permission
	return models.ShareTicket{Ticket: "T", Permission: permission}, nil
}

func (f *fakeBackend) ListSharedUsers(context.Context, string) ([]models.SharedUser, error) {
	return []models.SharedUser{{UserID: "u1"}}, nil
}

func (f *fakeBackend) RemoveSharedUser(context.Context, string, string) error { return nil }

func (f *fakeBackend) ListLinks(context.Context, string) ([]models.DeviceLink, error) {
	return nil, nil
}

func (f *fakeBackend) CreateLink(_ context.Context, deviceID string, link models.DeviceLink) (models.DeviceLink, error) {
	link.SourceDeviceID = deviceID
	f.link = link
	return link, nil
}

func (f *fakeBackend) DeleteLink(context.Context, string, string) error { return nil }

func (f *fakeBackend) pushed() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.pushes...)
}

func newControlFixture() (*DeviceControlService, *fakeBackend, *enginetest.ManualClock) {
	clock := enginetest.NewManualClock(time.Unix(0, 0))
	backend := &fakeBackend{}
	deb := control.NewDebouncer(clock, 300*time.Millisecond, time.Second)
	return NewDeviceControlService(backend, deb, nil), backend, clock
}

func TestDeviceControl_SetControlsDebouncesAndCommits(t *testing.T) {
	svc, backend, clock := newControlFixture()

	_, err := svc.SetControls("dev-1", nil)
	assert.ErrorIs(t, err, ErrEmptyControls)

	st, err := svc.SetControls("dev-1", map[string]any{"fan": 1})
	require.NoError(t, err)
	assert.True(t, st.Pending)
	_, err = svc.SetControls("dev-1", map[string]any{"fan": 3, "light": true})
	require.NoError(t, err)

	assert.Empty(t, backend.pushed(), "nothing sent inside the window")
	clock.Advance(300 * time.Millisecond)

	require.Len(t, backend.pushed(), 1)
	assert.Equal(t, map[string]any{"fan": 3, "light": true}, backend.pushed()[0])

	st = svc.Controls("dev-1")
	assert.False(t, st.Pending)
	assert.Empty(t, st.LastError)
	assert.Equal(t, map[string]any{"fan": 3, "light": true}, st.Values)
}

func TestDeviceControl_FailedPushRevertsToCommitted(t *testing.T) {
	svc, backend, clock := newControlFixture()

	_, err := svc.SetControls("dev-1", map[string]any{"fan": 1})
	require.NoError(t, err)
	clock.Advance(300 * time.Millisecond)

	backend.pushErr = errors.New("backend down")
	st, err := svc.SetControls("dev-1", map[string]any{"fan": 5})
	require.NoError(t, err)
	assert.Equal(t, 5, st.Values["fan"], "local view updates at once")

	clock.Advance(300 * time.Millisecond)
	st = svc.Controls("dev-1")
	assert.Equal(t, 1, st.Values["fan"])
	assert.False(t, st.Pending)
	assert.Equal(t, "backend down", st.LastError)
}

func TestDeviceControl_TogglePowerIsCommitted(t *testing.T) {
	svc, backend, clock := newControlFixture()

	p, err := svc.TogglePower(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.True(t, p.On)

	backend.pushErr = errors.New("nope")
	_, err = svc.SetControls("dev-1", map[string]any{"fan": 2})
	require.NoError(t, err)
	clock.Advance(300 * time.Millisecond)

	assert.Equal(t, map[string]any{"power": true}, svc.Controls("dev-1").Values)
}

func TestDeviceControl_ShareAndLinks(t *testing.T) {
	svc, backend, _ := newControlFixture()
	ctx := context.Background()

	ticket, err := svc.Share(ctx, "dev-1", "")
	require.NoError(t, err)
	assert.Equal(t, "read", ticket.Permission)
	assert.Equal(t, "read", backend.sharePerm)

	_, err = svc.Share(ctx, "dev-1", "owner")
	assert.ErrorIs(t, err, ErrInvalidPermission)

	_, err = svc.CreateLink(ctx, "dev-1", models.DeviceLink{TargetDeviceID: "dev-2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid link")

	link, err := svc.CreateLink(ctx, "dev-1", models.DeviceLink{TargetDeviceID: "dev-2", Trigger: "gas", Action: "power_off"})
	require.NoError(t, err)
	assert.Equal(t, "dev-1", link.SourceDeviceID)
}

func TestDeviceControl_CloseDropsPendingPush(t *testing.T) {
	svc, backend, clock := newControlFixture()

	_, err := svc.SetControls("dev-1", map[string]any{"fan": 1})
	require.NoError(t, err)
	svc.Close()
	clock.Advance(time.Second)

	assert.Empty(t, backend.pushed())
}
