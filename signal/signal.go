// Package signal provides helpers to move blocks of samples between the
// per-sample graph and block oriented devices and files. It allows to:
//   - interleave and deinterleave float32 device buffers
//   - convert bit depth for int file buffers
package signal

import (
	"math"
	"time"
)

// Float64 is a non-interleaved float64 block: the first dimension is the
// channel, the second one is the frame.
type Float64 [][]float64

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth24 is 24 bit depth.
	BitDepth24 = BitDepth(24)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// InterInt is an interleaved int signal.
type InterInt struct {
	Data        []int
	NumChannels int
	BitDepth
}

// BitDepth contains values required for int-to-float and backward conversion.
type BitDepth int

// divider is used when int to float conversion is done.
func (bitDepth BitDepth) divider() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth24:
		return 1<<23 - 1
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// multiplier is used when float to int conversion is done.
func (bitDepth BitDepth) multiplier() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8 - 1
	case BitDepth16:
		return math.MaxInt16 - 1
	case BitDepth24:
		return 1<<23 - 2
	case BitDepth32:
		return math.MaxInt32 - 1
	default:
		return 1
	}
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// SamplesOf returns the number of samples, rounded to the nearest one, that
// fit into duration d at this sample rate. Negative durations give negative
// counts.
func SamplesOf(sampleRate int, d time.Duration) int64 {
	return int64(math.Round(d.Seconds() * float64(sampleRate)))
}

// Make returns a zeroed block of specified dimensions.
func Make(numChannels int, size int) Float64 {
	result := make([][]float64, numChannels)
	for i := range result {
		result[i] = make([]float64, size)
	}
	return result
}

// NumChannels returns number of channels in this block.
func (floats Float64) NumChannels() int {
	return len(floats)
}

// Size returns number of frames in this block.
func (floats Float64) Size() int {
	if floats.NumChannels() == 0 {
		return 0
	}
	return len(floats[0])
}

// AsFloat64 converts interleaved int signal to float64.
func (ints InterInt) AsFloat64() Float64 {
	if ints.Data == nil || ints.NumChannels == 0 {
		return nil
	}
	floats := make([][]float64, ints.NumChannels)
	size := int(math.Ceil(float64(len(ints.Data)) / float64(ints.NumChannels)))

	divider := float64(ints.BitDepth.divider())

	for i := range floats {
		floats[i] = make([]float64, size)
		pos := 0
		for j := i; j < len(ints.Data); j = j + ints.NumChannels {
			floats[i][pos] = float64(ints.Data[j]) / divider
			pos++
		}
	}
	return floats
}

// AsInterInt converts float64 signal to interleaved int.
func (floats Float64) AsInterInt(bitDepth BitDepth) []int {
	var numChannels int
	if numChannels = len(floats); numChannels == 0 {
		return nil
	}

	multiplier := float64(bitDepth.multiplier())

	ints := make([]int, len(floats[0])*numChannels)

	for j := range floats {
		for i := range floats[j] {
			ints[i*numChannels+j] = int(Clip(floats[j][i]) * multiplier)
		}
	}
	return ints
}

// Interleave writes the block into an interleaved float32 device buffer.
// dst must hold at least Size()*NumChannels() values.
func (floats Float64) Interleave(dst []float32) {
	numChannels := len(floats)
	for j := range floats {
		for i, v := range floats[j] {
			dst[i*numChannels+j] = float32(v)
		}
	}
}

// Deinterleave fills the block from an interleaved float32 device buffer.
func (floats Float64) Deinterleave(src []float32) {
	numChannels := len(floats)
	if numChannels == 0 {
		return
	}
	for i := 0; i*numChannels < len(src); i++ {
		for j := range floats {
			if i < len(floats[j]) && i*numChannels+j < len(src) {
				floats[j][i] = float64(src[i*numChannels+j])
			}
		}
	}
}

// Clip limits the sample to [-1, 1] range.
func Clip(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}
