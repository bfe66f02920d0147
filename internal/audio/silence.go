package audio

import (
	"math"
	"time"
)

// windowMs is the fixed analysis window. Regions are measured in whole
// windows, so MinDuration is effectively rounded down to a multiple of it.
const windowMs = 100

// Analyzer trims silent stretches out of a buffer. It is a pure value:
// safe to share and to call concurrently for independent buffers.
type Analyzer struct {
	// Threshold is the RMS amplitude below which a window counts as silent.
	Threshold float32
	// MinDuration is the shortest silent stretch worth removing. Shorter
	// runs of silent windows are kept untouched.
	MinDuration time.Duration
}

// Region is a half-open [StartFrame, EndFrame) sample range slated for
// removal. Regions never overlap and are ordered by StartFrame.
type Region struct {
	StartFrame int
	EndFrame   int
}

// Analysis reports what AnalyzeAndTrim measured and removed. RMS
// statistics are taken over analysis windows, not individual samples.
type Analysis struct {
	MinRMS           float32
	MaxRMS           float32
	AvgRMS           float32
	Regions          []Region
	ReductionPercent float32
	OriginalDuration time.Duration
	NewDuration      time.Duration
}

// AnalyzeAndTrim computes windowed RMS over the buffer, finds silent
// stretches of at least MinDuration, and returns a copy of the buffer
// with those stretches hard-cut out, together with the analysis.
//
// An empty buffer yields an empty buffer and an all-zero analysis.
func (a Analyzer) AnalyzeAndTrim(buf Buffer) (Buffer, Analysis) {
	out := Buffer{SampleRate: buf.SampleRate, Channels: buf.Channels}
	if len(buf.Samples) == 0 {
		return out, Analysis{}
	}

	windowSize := buf.SampleRate * windowMs / 1000
	if windowSize <= 0 {
		windowSize = len(buf.Samples)
	}

	var (
		rmsValues []float32
		minRMS    = float32(math.MaxFloat32)
		maxRMS    = float32(-math.MaxFloat32)
		sumRMS    float32
	)
	for start := 0; start < len(buf.Samples); start += windowSize {
		end := start + windowSize
		if end > len(buf.Samples) {
			end = len(buf.Samples)
		}
		rms := rootMeanSquare(buf.Samples[start:end])
		rmsValues = append(rmsValues, rms)
		minRMS = min(minRMS, rms)
		maxRMS = max(maxRMS, rms)
		sumRMS += rms
	}
	avgRMS := sumRMS / float32(len(rmsValues))

	regions := a.silentRegions(rmsValues, windowSize, len(buf.Samples))

	// Keep every sample range not covered by a removable region,
	// in original order.
	out.Samples = make([]float32, 0, len(buf.Samples))
	lastEnd := 0
	for _, r := range regions {
		out.Samples = append(out.Samples, buf.Samples[lastEnd:r.StartFrame]...)
		lastEnd = r.EndFrame
	}
	out.Samples = append(out.Samples, buf.Samples[lastEnd:]...)

	originalDuration := buf.Duration()
	newDuration := out.Duration()

	var reduction float32
	if originalDuration > 0 {
		reduction = float32((originalDuration - newDuration).Seconds() / originalDuration.Seconds() * 100)
	}

	return out, Analysis{
		MinRMS:           minRMS,
		MaxRMS:           maxRMS,
		AvgRMS:           avgRMS,
		Regions:          regions,
		ReductionPercent: reduction,
		OriginalDuration: originalDuration,
		NewDuration:      newDuration,
	}
}

// silentRegions turns per-window RMS values into removable sample ranges.
// A run of consecutive silent windows qualifies only when it spans at
// least MinDuration worth of whole windows; qualifying runs separated by
// any non-qualifying gap stay separate.
func (a Analyzer) silentRegions(rmsValues []float32, windowSize, totalSamples int) []Region {
	minWindows := int(a.MinDuration.Milliseconds() / windowMs)

	var regions []Region
	runStart := -1
	for i, rms := range rmsValues {
		if rms < a.Threshold {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			if i-runStart >= minWindows {
				regions = append(regions, Region{
					StartFrame: runStart * windowSize,
					EndFrame:   i * windowSize,
				})
			}
			runStart = -1
		}
	}
	// A silent run at the very end extends to the last sample, which may
	// fall inside a short final window.
	if runStart >= 0 && len(rmsValues)-runStart >= minWindows {
		regions = append(regions, Region{
			StartFrame: runStart * windowSize,
			EndFrame:   totalSamples,
		})
	}
	return regions
}

func rootMeanSquare(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquares float64
	for _, s := range samples {
		sumSquares += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sumSquares / float64(len(samples))))
}
