package gpu

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/sensorpoll/internal/errors"
	"codeberg.org/mutker/sensorpoll/internal/logger"
	"codeberg.org/mutker/sensorpoll/internal/telemetry"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	DefaultInterval   = 2 * time.Second
	milliWattsToWatts = 1000
)

// Sampler reads the first NVIDIA GPU.
type Sampler struct {
	nvml   *nvmlWrapper
	device nvml.Device
	name   string
	log    logger.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// New initializes NVML and opens device 0.
func New(log logger.Logger) (*Sampler, error) {
	return newSampler(nvmlLibrary{}, log)
}

func newSampler(lib library, log logger.Logger) (*Sampler, error) {
	w := &nvmlWrapper{lib: lib}
	if err := w.Initialize(); err != nil {
		return nil, err
	}

	device, err := w.GetDevice(0)
	if err != nil {
		_ = w.Shutdown()
		return nil, err
	}

	s := &Sampler{
		nvml:   w,
		device: device,
		log:    log,
		now:    time.Now,
	}

	if name, ret := device.GetName(); IsNVMLSuccess(ret) {
		s.name = name
		log.Info().Msgf("Detected GPU: %v", name)
	} else {
		log.Warn().Msg("Failed to get GPU name")
	}

	return s, nil
}

func (s *Sampler) Name() string {
	return s.name
}

// Sample reports Unreachable when the temperature cannot be read. The
// secondary counters are left out of the record when they fail.
func (s *Sampler) Sample(_ context.Context) (telemetry.Record, error) {
	errFactory := errors.New()
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.nvml.initialized {
		return telemetry.Failed(now, telemetry.Unreachable), errFactory.New(ErrNotInitialized)
	}

	temp, ret := s.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if !IsNVMLSuccess(ret) {
		return telemetry.Failed(now, telemetry.Unreachable),
			errFactory.Wrap(errors.ErrNetworkUnreachable, errFactory.Wrap(ErrTemperatureReadFailed, newNVMLError(ret)))
	}

	metrics := map[string]float64{
		telemetry.MetricTemperature: float64(temp),
	}
	var errs []error

	if speed, ret := s.device.GetFanSpeed(); IsNVMLSuccess(ret) {
		metrics[telemetry.MetricFan] = float64(speed)
	} else {
		errs = append(errs, errFactory.Wrap(ErrFanReadFailed, newNVMLError(ret)))
	}

	if usage, ret := s.device.GetPowerUsage(); IsNVMLSuccess(ret) {
		metrics[telemetry.MetricPower] = float64(usage) / milliWattsToWatts
	} else {
		errs = append(errs, errFactory.Wrap(ErrPowerReadFailed, newNVMLError(ret)))
	}

	if util, ret := s.device.GetUtilizationRates(); IsNVMLSuccess(ret) {
		metrics[telemetry.MetricUtilization] = float64(util.Gpu)
	} else {
		errs = append(errs, errFactory.Wrap(ErrUtilizationFailed, newNVMLError(ret)))
	}

	rec := telemetry.NewRecord(now, telemetry.Connected, metrics)
	if len(errs) > 0 {
		return rec, errFactory.Wrap(errors.ErrSampleFailed, errors.Join(errs...))
	}

	return rec, nil
}

// Close shuts NVML down. Samples taken afterwards report Unreachable.
func (s *Sampler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.nvml.Shutdown()
}
