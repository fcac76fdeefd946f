package source

import (
	"context"
	"fmt"
	"time"

	"github.com/LISSConsulting/LISSTech.ColumnMonitor/internal/reading"
)

// LiveConfig addresses the two column thermocouples.
type LiveConfig struct {
	UnitID        uint8
	BottomAddress uint16
	TopAddress    uint16
	Plates        int
	Timeout       time.Duration // per register read; 0 means no limit
	Now           func() time.Time
}

// Live polls the instrument for bottom and top temperatures and fills the
// plates in between by linear interpolation.
type Live struct {
	bus RegisterReader
	cfg LiveConfig
}

// NewLive creates a live source reading from bus.
func NewLive(bus RegisterReader, cfg LiveConfig) *Live {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Live{bus: bus, cfg: cfg}
}

// Name implements Source.
func (l *Live) Name() string { return "live" }

// Next implements Source.
func (l *Live) Next(ctx context.Context) (reading.Reading, error) {
	bottom, err := l.read(ctx, l.cfg.BottomAddress)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("live: read bottom temperature: %w", err)
	}
	top, err := l.read(ctx, l.cfg.TopAddress)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("live: read top temperature: %w", err)
	}

	temps := Interpolate(l.cfg.Plates, bottom, top)
	now := l.cfg.Now()
	return reading.Reading{
		Timestamp:    float64(now.UnixMilli()) / 1000,
		Temperatures: temps,
		Compositions: Compositions(temps),
	}, nil
}

func (l *Live) read(ctx context.Context, addr uint16) (float64, error) {
	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}
	regs, err := l.bus.ReadHoldingRegisters(ctx, l.cfg.UnitID, addr, 1)
	if err != nil {
		return 0, err
	}
	if len(regs) == 0 {
		return 0, fmt.Errorf("register %d: empty response", addr)
	}
	return decodeTemperature(regs[0]), nil
}

// Interpolate spreads plates temperatures linearly from bottom to top. With
// two plates or fewer it returns just the two measured ends.
func Interpolate(plates int, bottom, top float64) []float64 {
	if plates <= 2 {
		return []float64{bottom, top}
	}
	out := make([]float64, plates)
	for i := range out {
		out[i] = bottom + float64(i)/float64(plates-1)*(top-bottom)
	}
	return out
}
