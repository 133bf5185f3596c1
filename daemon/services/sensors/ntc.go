package sensors

import (
	"math"
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/constants"
	"github.com/kdys14/smokehouse-controller/daemon/dto"
	"github.com/kdys14/smokehouse-controller/daemon/logger"
)

// ADC is the pinned analog-to-digital transport for the meat probe. A real
// implementation oversamples the physical ADC pin; tests supply a fake.
type ADC interface {
	// Sample returns one raw ADC reading in [0, Max()].
	Sample() int
	// Max returns the ADC's full-scale value (e.g. 4095 for a 12-bit ADC).
	Max() int
}

// NTCParams configures the β-model thermistor conversion.
type NTCParams struct {
	Rseries float64 // series resistor, ohms
	R0      float64 // thermistor nominal resistance at T0, ohms
	T0      float64 // nominal temperature, degrees C
	Beta    float64
	Samples int // oversample count, 64..256
}

// DefaultNTCParams returns commonly-used 10k/25degC/beta3950-class values,
// overridden per deployment via configuration.
func DefaultNTCParams() NTCParams {
	return NTCParams{
		Rseries: 10000,
		R0:      10000,
		T0:      25.0,
		Beta:    constants.NTCBeta,
		Samples: 128,
	}
}

// MeatProbe converts oversampled ADC readings into a filtered meat
// temperature via the β-model plus an EMA smoothing filter.
type MeatProbe struct {
	adc    ADC
	params NTCParams

	filtered    float64
	initialized bool
	cache       dto.CachedReading
}

// NewMeatProbe creates a meat-probe reader over adc with the given model
// parameters.
func NewMeatProbe(adc ADC, params NTCParams) *MeatProbe {
	return &MeatProbe{adc: adc, params: params}
}

// Read oversamples the ADC, converts to temperature, applies the EMA
// filter, and validates the result. On an out-of-range result it logs and
// falls back to the last-good cached value.
func (m *MeatProbe) Read() dto.MeatReading {
	now := time.Now()
	maxADC := m.adc.Max()

	sum := 0
	for i := 0; i < m.params.Samples; i++ {
		sum += m.adc.Sample()
		time.Sleep(140 * time.Microsecond)
	}
	avg := float64(sum) / float64(m.params.Samples)

	if avg <= 0 || avg >= float64(maxADC) {
		logger.Warning("sensors: NTC ADC reading out of range (avg=%.1f, max=%d), using cached value", avg, maxADC)
		return m.fallback(now)
	}

	r := m.params.Rseries * avg / (float64(maxADC) - avg + 1e-9)
	tempK := 1.0 / (math.Log(r/m.params.R0)/m.params.Beta + 1.0/(m.params.T0+273.15))
	tempC := tempK - 273.15

	if !m.initialized {
		m.filtered = tempC
		m.initialized = true
	} else {
		m.filtered = constants.NTCFilterAlpha*m.filtered + (1-constants.NTCFilterAlpha)*tempC
	}

	if m.filtered <= constants.NTCMin || m.filtered >= constants.NTCMax {
		logger.Warning("sensors: NTC filtered value %.1f out of accepted range, using cached value", m.filtered)
		return m.fallback(now)
	}

	m.cache = dto.CachedReading{Value: m.filtered, Timestamp: now, Valid: true}
	return dto.MeatReading{Value: tempC, Filtered: m.filtered, FromCache: false, Timestamp: now}
}

func (m *MeatProbe) fallback(now time.Time) dto.MeatReading {
	return dto.MeatReading{Value: m.cache.Value, Filtered: m.cache.Value, FromCache: true, Timestamp: now}
}
