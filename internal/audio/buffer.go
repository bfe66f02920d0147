// Package audio holds the in-memory sample buffer and the silence
// analysis that trims low-energy regions before transcription.
package audio

import "time"

// Buffer is a decoded chunk of audio: interleaved float32 samples in
// [-1, 1] plus the format needed to interpret them.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration returns the playback length of the buffer. A buffer with a
// zero sample rate or zero channels has no meaningful duration and
// reports zero.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 || b.Channels <= 0 {
		return 0
	}
	frames := len(b.Samples) / b.Channels
	return time.Duration(float64(frames) / float64(b.SampleRate) * float64(time.Second))
}
