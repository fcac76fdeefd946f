package source

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// RegisterReader reads holding registers from a unit on the instrument bus.
type RegisterReader interface {
	ReadHoldingRegisters(ctx context.Context, unitID uint8, addr, count uint16) ([]uint16, error)
}

// SimulatorConfig shapes the simulated heating curve.
type SimulatorConfig struct {
	UnitID        uint8
	BottomAddress uint16
	TopAddress    uint16

	Ambient      float64       // starting temperature, °C
	BottomTarget float64       // reboiler steady state, °C
	TopTarget    float64       // condenser steady state, °C
	TimeConstant time.Duration // first-order lag of both ends

	Now func() time.Time
}

// DefaultSimulatorConfig returns a curve that settles near an
// ethanol-water column's operating range in a few minutes.
func DefaultSimulatorConfig(unitID uint8, bottom, top uint16) SimulatorConfig {
	return SimulatorConfig{
		UnitID:        unitID,
		BottomAddress: bottom,
		TopAddress:    top,
		Ambient:       22,
		BottomTarget:  97.5,
		TopTarget:     78.6,
		TimeConstant:  90 * time.Second,
		Now:           time.Now,
	}
}

// Simulator is a RegisterReader that serves a first-order heating curve. The
// curve is a pure function of the elapsed time since the first read, so a
// fixed clock yields fixed registers.
type Simulator struct {
	cfg SimulatorConfig

	mu    sync.Mutex
	start time.Time
}

// NewSimulator creates a simulator. A nil Now uses time.Now.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TimeConstant <= 0 {
		cfg.TimeConstant = time.Minute
	}
	return &Simulator{cfg: cfg}
}

// ReadHoldingRegisters implements RegisterReader. Temperatures are encoded
// in hundredths of a degree; unmapped addresses read 0.
func (s *Simulator) ReadHoldingRegisters(ctx context.Context, unitID uint8, addr, count uint16) ([]uint16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if unitID != s.cfg.UnitID {
		return nil, fmt.Errorf("simulator: unit %d not on bus", unitID)
	}

	now := s.cfg.Now()
	s.mu.Lock()
	if s.start.IsZero() {
		s.start = now
	}
	elapsed := now.Sub(s.start)
	s.mu.Unlock()

	out := make([]uint16, count)
	for i := range out {
		switch addr + uint16(i) {
		case s.cfg.BottomAddress:
			out[i] = encodeTemperature(s.curve(s.cfg.BottomTarget, elapsed))
		case s.cfg.TopAddress:
			out[i] = encodeTemperature(s.curve(s.cfg.TopTarget, elapsed))
		}
	}
	return out, nil
}

func (s *Simulator) curve(target float64, elapsed time.Duration) float64 {
	k := elapsed.Seconds() / s.cfg.TimeConstant.Seconds()
	return target - (target-s.cfg.Ambient)*math.Exp(-k)
}

func encodeTemperature(c float64) uint16 {
	v := math.Round(c * 100)
	if v < 0 {
		return 0
	}
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}

func decodeTemperature(r uint16) float64 {
	return float64(r) / 100
}
