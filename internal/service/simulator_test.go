package service

import (
	"context"
	"testing"

	"alert_console/internal/engine"
	"alert_console/internal/feed"
	"alert_console/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioReading_ClassifiesAsScenario(t *testing.T) {
	t.Parallel()
	th := models.DefaultThresholds()

	cases := []struct {
		scenario string
		wantType models.AlertType
	}{
		{ScenarioGas, models.TypeGas},
		{ScenarioFire, models.TypeFire},
		{ScenarioSmoke, models.TypeSmoke},
	}
	for _, c := range cases {
		c := c
		t.Run(c.scenario, func(t *testing.T) {
			t.Parallel()
			prev := models.LevelNormal
			for step := 0; step < simSteps; step++ {
				ev := engine.Evaluate(scenarioReading(c.scenario, step, th), th)
				assert.Equal(t, c.wantType, ev.Type, "step %d", step)
				assert.GreaterOrEqual(t, ev.Level, prev, "level never drops within a scenario")
				prev = ev.Level
			}
		})
	}

	ev := engine.Evaluate(scenarioReading(ScenarioClear, 0, th), th)
	assert.Equal(t, models.LevelNormal, ev.Level)
}

func TestSimulatorService_StartAndStep(t *testing.T) {
	broker := feed.NewBroker(16, nil)
	sub := broker.Subscribe(feed.Target{SerialNumber: "SN-9"})
	sim := NewSimulatorService(broker, models.DefaultThresholds(), true, nil)

	assert.ErrorIs(t, sim.Start(context.Background(), SimulationParams{Scenario: "flood", SerialNumber: "SN-9"}), ErrUnknownScenario)
	assert.ErrorIs(t, sim.Start(context.Background(), SimulationParams{Scenario: "gas"}), ErrNoDevice)

	require.NoError(t, sim.Start(context.Background(), SimulationParams{Scenario: " GAS ", SerialNumber: "SN-9"}))
	assert.Equal(t, 1, sim.Active())

	for i := 0; i < simSteps; i++ {
		sim.step()
	}
	assert.Equal(t, 0, sim.Active(), "scenario ends after its last step")
	require.Len(t, sub.Readings, simSteps)

	first := <-sub.Readings
	assert.Equal(t, models.SourceSimulation, first.Source)
	assert.Equal(t, "SN-9", first.SerialNumber)

	require.NoError(t, sim.Start(context.Background(), SimulationParams{Scenario: ScenarioClear, SerialNumber: "SN-9"}))
	assert.Equal(t, 0, sim.Active())
}

func TestSimulatorService_Disabled(t *testing.T) {
	sim := NewSimulatorService(feed.NewBroker(1, nil), models.DefaultThresholds(), false, nil)
	err := sim.Start(context.Background(), SimulationParams{Scenario: ScenarioFire, DeviceID: "d"})
	assert.ErrorIs(t, err, ErrSimulatorDisabled)
}
