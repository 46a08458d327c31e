package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/config"
	"github.com/mattwynharris/Meshcore-Dashboard/internal/models"
)

const (
	keyA = "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90"
	keyB = "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"
)

func configuredRepeaters() []config.RepeaterSettings {
	return []config.RepeaterSettings{
		{Name: "Alpha", PublicKey: keyA},
		{Name: "Bravo", PublicKey: keyB},
	}
}

func sampleNow(pubkey string) *models.TelemetrySample {
	return &models.TelemetrySample{
		PublicKey:         pubkey,
		Timestamp:         time.Now().Unix(),
		BatteryMilliVolts: 4100,
	}
}

func TestNeverHeardRepeaterIsUnknown(t *testing.T) {
	table := NewStateTable(15 * time.Minute)
	table.SyncConfigured(configuredRepeaters())

	state, ok := table.Get(keyA)
	require.True(t, ok)

	assert.Equal(t, models.LivenessUnknown, state.Liveness)
	assert.False(t, state.Online)
	assert.Nil(t, state.LastSeenAt)
	assert.Nil(t, state.Sample)
	assert.Equal(t, keyA[:12], state.PubkeyShort)
}

func TestSuccessfulPollGoesOnline(t *testing.T) {
	table := NewStateTable(15 * time.Minute)
	table.SyncConfigured(configuredRepeaters())

	hops := 2
	table.ApplySample(keyA, sampleNow(keyA), &hops, "4d > 3c")

	state, ok := table.Get(keyA)
	require.True(t, ok)

	assert.Equal(t, models.LivenessOnline, state.Liveness)
	assert.True(t, state.Online)
	require.NotNil(t, state.LastSeenAt)
	require.NotNil(t, state.HopCount)
	assert.Equal(t, 2, *state.HopCount)
	assert.Equal(t, "4d > 3c", state.RoutePath)
}

func TestLivenessGoesStaleWithoutNewPolls(t *testing.T) {
	table := NewStateTable(time.Minute)
	table.SyncConfigured(configuredRepeaters())

	old := sampleNow(keyA)
	old.Timestamp = time.Now().Add(-2 * time.Minute).Unix()
	table.ApplySample(keyA, old, nil, "")

	// No ApplyFailure, no new poll: the read alone must observe offline
	state, ok := table.Get(keyA)
	require.True(t, ok)
	assert.Equal(t, models.LivenessOffline, state.Liveness)
	assert.False(t, state.Online)
	// The stale sample stays visible alongside the offline indicator
	assert.NotNil(t, state.Sample)
}

func TestSingleFailureDoesNotFlipOnline(t *testing.T) {
	table := NewStateTable(15 * time.Minute)
	table.SyncConfigured(configuredRepeaters())

	table.ApplySample(keyA, sampleNow(keyA), nil, "")
	table.ApplyFailure(keyA, "gateway timeout")

	state, ok := table.Get(keyA)
	require.True(t, ok)

	assert.Equal(t, models.LivenessOnline, state.Liveness)
	assert.Equal(t, "gateway timeout", state.LastError)
}

func TestSuccessClearsLastError(t *testing.T) {
	table := NewStateTable(15 * time.Minute)
	table.SyncConfigured(configuredRepeaters())

	table.ApplyFailure(keyA, "gateway timeout")
	table.ApplySample(keyA, sampleNow(keyA), nil, "")

	state, _ := table.Get(keyA)
	assert.Empty(t, state.LastError)
}

func TestMarkSeenAdvancesLiveness(t *testing.T) {
	table := NewStateTable(time.Minute)
	table.SyncConfigured(configuredRepeaters())

	table.MarkSeen(keyA, time.Now())

	state, _ := table.Get(keyA)
	assert.Equal(t, models.LivenessOnline, state.Liveness)
	// A probe answer is liveness evidence only, never telemetry
	assert.Nil(t, state.Sample)
}

func TestMarkSeenNeverMovesBackwards(t *testing.T) {
	table := NewStateTable(time.Minute)
	table.SyncConfigured(configuredRepeaters())

	recent := sampleNow(keyA)
	table.ApplySample(keyA, recent, nil, "")

	table.MarkSeen(keyA, time.Now().Add(-time.Hour))

	state, _ := table.Get(keyA)
	require.NotNil(t, state.LastSeenAt)
	assert.Equal(t, recent.Time().Unix(), state.LastSeenAt.Unix())
}

func TestSyncConfiguredReconciles(t *testing.T) {
	table := NewStateTable(15 * time.Minute)
	table.SyncConfigured(configuredRepeaters())

	table.ApplySample(keyA, sampleNow(keyA), nil, "")

	// Rename A, drop B, add C
	keyC := "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
	table.SyncConfigured([]config.RepeaterSettings{
		{Name: "Charlie", PublicKey: keyC},
		{Name: "Alpha Renamed", PublicKey: keyA},
	})

	snapshot := table.Snapshot()
	require.Len(t, snapshot.Repeaters, 2)

	// Order follows the new configuration
	assert.Equal(t, keyC, snapshot.Repeaters[0].PublicKey)
	assert.Equal(t, models.LivenessUnknown, snapshot.Repeaters[0].Liveness)

	// Kept repeater carries its state across the boundary
	assert.Equal(t, "Alpha Renamed", snapshot.Repeaters[1].Name)
	assert.Equal(t, models.LivenessOnline, snapshot.Repeaters[1].Liveness)

	_, ok := table.Get(keyB)
	assert.False(t, ok)
}

func TestSnapshotOrderIsConfigurationOrder(t *testing.T) {
	table := NewStateTable(15 * time.Minute)
	table.SyncConfigured(configuredRepeaters())

	snapshot := table.Snapshot()
	require.Len(t, snapshot.Repeaters, 2)
	assert.Equal(t, keyA, snapshot.Repeaters[0].PublicKey)
	assert.Equal(t, keyB, snapshot.Repeaters[1].PublicKey)
	assert.False(t, snapshot.TakenAt.IsZero())
}
