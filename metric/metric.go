// Package metric publishes per component type counters with expvar.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pipelined/synth/signal"
)

const componentsLabel = "synth.components"

const (
	// PassCounter measures number of production passes.
	PassCounter = "Passes"
	// SampleCounter measures number of produced time steps.
	SampleCounter = "Samples"
	// LatencyCounter measures latency between production passes.
	LatencyCounter = "Latency"
	// DurationCounter counts what's the duration of produced signal.
	DurationCounter = "Duration"
	// ComponentCounter counts number of components.
	ComponentCounter = "Components"
	// StaleReadCounter counts reads of evicted time steps.
	StaleReadCounter = "StaleReads"
	// StealCounter counts voices taken from a sounding note.
	StealCounter = "Steals"
	// BlockCounter counts blocks handed to hardware.
	BlockCounter = "Blocks"
)

var (
	components = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		PassCounter,
		SampleCounter,
		LatencyCounter,
		DurationCounter,
		ComponentCounter,
		StaleReadCounter,
		StealCounter,
		BlockCounter,
	}
)

// Get metrics values for provided component type.
func Get(component interface{}) map[string]string {
	return getCounters(getType(component))
}

// GetAll returns counters for all measured components.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	components.Lock()
	defer components.Unlock()
	for component := range components.m {
		m[component] = getCounters(component)
	}
	return m
}

func getCounters(componentType string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(componentType, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// MeasureFunc captures metrics when a pass of time steps is produced.
type MeasureFunc func(steps int64)

// Meter registers a component and returns a closure to capture its counters.
// The closure is not safe for concurrent use, it's meant to be called from
// the realtime goroutine only.
func Meter(component interface{}, sampleRate int) MeasureFunc {
	metric := components.get(getType(component))
	metric.components.Add(1)
	var (
		calledAt     time.Time
		steps        int64
		passDuration time.Duration
	)
	return func(s int64) {
		now := time.Now()
		if !calledAt.IsZero() {
			metric.latency.set(now.Sub(calledAt))
		}
		calledAt = now
		metric.passes.Add(1)
		metric.samples.Add(s)
		// recalculate duration only when pass size has changed
		if steps != s {
			steps = s
			passDuration = signal.DurationOf(sampleRate, s)
		}
		metric.duration.add(passDuration)
	}
}

// StaleRead records a read of an evicted time step.
func StaleRead(component interface{}) {
	components.get(getType(component)).staleReads.Add(1)
}

// Steal records a voice taken from a sounding note.
func Steal(component interface{}) {
	components.get(getType(component)).steals.Add(1)
}

// Block records a block handed to hardware.
func Block(component interface{}) {
	components.get(getType(component)).blocks.Add(1)
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(componentType string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[componentType]; ok {
		// return existing metric if available
		return metric
	}
	// create new metric
	metric := newMetric(componentType)
	m.m[componentType] = metric
	return metric
}

type metric struct {
	key        string
	components *expvar.Int
	passes     *expvar.Int
	samples    *expvar.Int
	staleReads *expvar.Int
	steals     *expvar.Int
	blocks     *expvar.Int
	latency    *duration
	duration   *duration
}

func newMetric(componentType string) metric {
	m := metric{
		key:        componentType,
		components: expvar.NewInt(key(componentType, ComponentCounter)),
		passes:     expvar.NewInt(key(componentType, PassCounter)),
		samples:    expvar.NewInt(key(componentType, SampleCounter)),
		staleReads: expvar.NewInt(key(componentType, StaleReadCounter)),
		steals:     expvar.NewInt(key(componentType, StealCounter)),
		blocks:     expvar.NewInt(key(componentType, BlockCounter)),
		latency:    &duration{},
		duration:   &duration{},
	}
	expvar.Publish(key(componentType, LatencyCounter), m.latency)
	expvar.Publish(key(componentType, DurationCounter), m.duration)
	return m
}

func key(componentType, counter string) string {
	return fmt.Sprintf("%s.%s.%s", componentsLabel, componentType, counter)
}

func getType(component interface{}) string {
	rv := reflect.ValueOf(component)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

// duration allows to format time.Duration metric values.
type duration struct {
	d atomic.Int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(v.d.Load()).String())
}

func (v *duration) add(delta time.Duration) {
	v.d.Add(int64(delta))
}

func (v *duration) set(value time.Duration) {
	v.d.Store(int64(value))
}
