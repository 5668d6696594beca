package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"alert_console/internal/feed"
	"alert_console/internal/logger"
	"alert_console/internal/models"
)

// Scenarios the simulator can play.
const (
	ScenarioFire  = "fire"
	ScenarioGas   = "gas"
	ScenarioSmoke = "smoke"
	ScenarioClear = "clear"
)

// Ambient values used for the metrics a scenario does not drive.
const (
	AmbientC      = 24.0
	AmbientHumPct = 45.0
	simSteps      = 5
)

var (
	ErrUnknownScenario   = errors.New("unknown scenario: must be fire, gas, smoke or clear")
	ErrSimulatorDisabled = errors.New("simulator is disabled")
)

type simRun struct {
	scenario string
	serial   string
	deviceID string
	step     int
}

// SimulatorService replays scripted readings into the feeds, one step per
// tick, tagged with the simulation source.
type SimulatorService struct {
	broker     *feed.Broker
	thresholds models.Thresholds
	enabled    bool
	log        *logger.Logger

	mu   sync.Mutex
	runs map[string]*simRun
}

func NewSimulatorService(broker *feed.Broker, thresholds models.Thresholds, enabled bool, log *logger.Logger) *SimulatorService {
	return &SimulatorService{
		broker:     broker,
		thresholds: thresholds,
		enabled:    enabled,
		log:        log,
		runs:       make(map[string]*simRun),
	}
}

func simKey(serial, deviceID string) string {
	if serial != "" {
		return "sn:" + serial
	}
	return "id:" + deviceID
}

// Start queues a scenario for a device, replacing any scenario already
// playing there. "clear" takes effect immediately.
func (s *SimulatorService) Start(_ context.Context, p SimulationParams) error {
	if !s.enabled {
		return ErrSimulatorDisabled
	}
	scenario := strings.ToLower(strings.TrimSpace(p.Scenario))
	switch scenario {
	case ScenarioFire, ScenarioGas, ScenarioSmoke, ScenarioClear:
	default:
		return ErrUnknownScenario
	}
	if p.SerialNumber == "" && p.DeviceID == "" {
		return ErrNoDevice
	}

	key := simKey(p.SerialNumber, p.DeviceID)
	s.mu.Lock()
	delete(s.runs, key)
	if scenario != ScenarioClear {
		s.runs[key] = &simRun{scenario: scenario, serial: p.SerialNumber, deviceID: p.DeviceID}
	}
	s.mu.Unlock()

	if scenario == ScenarioClear {
		s.publish(p.SerialNumber, p.DeviceID, scenarioReading(ScenarioClear, 0, s.thresholds))
	}
	if s.log != nil {
		s.log.Infow("simulation_started", "scenario", scenario, "serial", p.SerialNumber, "device_id", p.DeviceID)
	}
	return nil
}

// Active is the number of scenarios still playing.
func (s *SimulatorService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// Run ticks at the given interval until ctx is canceled.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.step()
		}
	}
}

// step advances every scenario by one reading.
func (s *SimulatorService) step() {
	type out struct {
		serial, deviceID string
		r                models.SensorReading
	}
	var batch []out

	s.mu.Lock()
	for key, run := range s.runs {
		batch = append(batch, out{run.serial, run.deviceID, scenarioReading(run.scenario, run.step, s.thresholds)})
		run.step++
		if run.step >= simSteps {
			delete(s.runs, key)
		}
	}
	s.mu.Unlock()

	for _, o := range batch {
		s.publish(o.serial, o.deviceID, o.r)
	}
}

func (s *SimulatorService) publish(serial, deviceID string, r models.SensorReading) {
	s.broker.PublishReading(feed.ReadingMsg{
		SerialNumber: serial,
		DeviceID:     deviceID,
		Source:       models.SourceSimulation,
		Reading:      r,
	})
}

// scenarioReading is the reading played at step. The driven metric climbs
// linearly over simSteps and ends at its top for the scenario.
func scenarioReading(scenario string, step int, th models.Thresholds) models.SensorReading {
	frac := float64(step) / float64(simSteps-1)
	if frac > 1 {
		frac = 1
	}
	lerp := func(from, to float64) float64 { return from + (to-from)*frac }

	switch scenario {
	case ScenarioGas:
		return models.NewReading(lerp(th.Gas.Warning, th.Gas.Critical), AmbientC, AmbientHumPct)
	case ScenarioFire:
		// starts at the fire point so every step classifies as fire
		return models.NewReading(0, lerp(th.Temperature.Danger, th.Temperature.Critical), AmbientHumPct)
	case ScenarioSmoke:
		// stays under the fire point so the type remains smoke
		top := th.Temperature.Warning + (th.Temperature.Danger-th.Temperature.Warning)/2
		return models.NewReading(0, lerp(th.Temperature.Warning, top), AmbientHumPct)
	default:
		return models.NewReading(0, AmbientC, AmbientHumPct)
	}
}
