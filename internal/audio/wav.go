package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

// ReadWAV decodes a RIFF/WAVE file into a Buffer. PCM 8/16/24/32-bit and
// IEEE float 32/64-bit sample formats are supported; everything else is
// ErrUnsupportedWAV.
func ReadWAV(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Buffer{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
		return Buffer{}, fmt.Errorf("read wav header: %w", err)
	}
	if string(header[:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return Buffer{}, ErrInvalidWAV
	}

	var (
		audioFormat   uint16
		channels      uint16
		sampleRate    uint32
		bitsPerSample uint16
		data          []byte
		hasFmt        bool
		hasData       bool
	)

	for {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(f, chunkHeader); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return Buffer{}, fmt.Errorf("read wav chunk header: %w", err)
		}

		chunkID := string(chunkHeader[:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		skip := int64(chunkSize)
		if chunkSize%2 != 0 {
			skip++
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return Buffer{}, ErrInvalidWAV
			}
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(f, buf); err != nil {
				return Buffer{}, fmt.Errorf("read wav fmt chunk: %w", err)
			}
			audioFormat = binary.LittleEndian.Uint16(buf[0:2])
			channels = binary.LittleEndian.Uint16(buf[2:4])
			sampleRate = binary.LittleEndian.Uint32(buf[4:8])
			bitsPerSample = binary.LittleEndian.Uint16(buf[14:16])
			hasFmt = true
			if chunkSize%2 != 0 {
				if _, err := f.Seek(1, io.SeekCurrent); err != nil {
					return Buffer{}, fmt.Errorf("seek wav fmt padding: %w", err)
				}
			}
		case "data":
			data = make([]byte, chunkSize)
			if _, err := io.ReadFull(f, data); err != nil {
				return Buffer{}, fmt.Errorf("read wav data: %w", err)
			}
			hasData = true
			if chunkSize%2 != 0 {
				if _, err := f.Seek(1, io.SeekCurrent); err != nil {
					return Buffer{}, fmt.Errorf("seek wav data padding: %w", err)
				}
			}
		default:
			if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
				return Buffer{}, fmt.Errorf("seek wav chunk %s: %w", chunkID, err)
			}
		}
	}

	if !hasFmt || !hasData {
		return Buffer{}, ErrInvalidWAV
	}
	if channels == 0 || sampleRate == 0 {
		return Buffer{}, ErrInvalidWAV
	}
	if err := validateFormat(audioFormat, bitsPerSample); err != nil {
		return Buffer{}, err
	}

	samples, err := decodeSamples(data, audioFormat, bitsPerSample)
	if err != nil {
		return Buffer{}, err
	}

	return Buffer{
		Samples:    samples,
		SampleRate: int(sampleRate),
		Channels:   int(channels),
	}, nil
}

// WriteWAV encodes the buffer as 16-bit PCM. Samples outside [-1, 1] are
// clamped.
func WriteWAV(path string, buf Buffer) error {
	if buf.SampleRate <= 0 || buf.Channels <= 0 {
		return fmt.Errorf("%w: sample rate %d, channels %d", ErrUnsupportedWAV, buf.SampleRate, buf.Channels)
	}

	const bytesPerSample = 2
	dataSize := len(buf.Samples) * bytesPerSample
	out := make([]byte, 44+dataSize)

	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")

	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1)
	binary.LittleEndian.PutUint16(out[22:], uint16(buf.Channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(buf.SampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(buf.SampleRate*buf.Channels*bytesPerSample))
	binary.LittleEndian.PutUint16(out[32:], uint16(buf.Channels*bytesPerSample))
	binary.LittleEndian.PutUint16(out[34:], 16)

	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))

	off := 44
	for _, s := range buf.Samples {
		clamped := math.Max(-1, math.Min(1, float64(s)))
		binary.LittleEndian.PutUint16(out[off:], uint16(int16(clamped*math.MaxInt16)))
		off += bytesPerSample
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return nil
}

func validateFormat(audioFormat, bitsPerSample uint16) error {
	switch audioFormat {
	case 1:
		switch bitsPerSample {
		case 8, 16, 24, 32:
			return nil
		}
	case 3:
		switch bitsPerSample {
		case 32, 64:
			return nil
		}
	}
	return ErrUnsupportedWAV
}

func decodeSamples(data []byte, audioFormat, bitsPerSample uint16) ([]float32, error) {
	bytesPerSample := int(bitsPerSample / 8)
	if bytesPerSample <= 0 {
		return nil, ErrUnsupportedWAV
	}

	samples := make([]float32, 0, len(data)/bytesPerSample)
	for i := 0; i+bytesPerSample <= len(data); i += bytesPerSample {
		value, err := decodeSample(data[i:i+bytesPerSample], audioFormat, bitsPerSample)
		if err != nil {
			return nil, err
		}
		samples = append(samples, value)
	}
	return samples, nil
}

func decodeSample(sample []byte, audioFormat, bitsPerSample uint16) (float32, error) {
	if audioFormat == 3 {
		switch bitsPerSample {
		case 32:
			return math.Float32frombits(binary.LittleEndian.Uint32(sample)), nil
		case 64:
			return float32(math.Float64frombits(binary.LittleEndian.Uint64(sample))), nil
		default:
			return 0, ErrUnsupportedWAV
		}
	}

	switch bitsPerSample {
	case 8:
		return float32(float64(sample[0])-128.0) / 128.0, nil
	case 16:
		v := int16(binary.LittleEndian.Uint16(sample))
		return float32(v) / 32768.0, nil
	case 24:
		v := int32(sample[0]) | int32(sample[1])<<8 | int32(sample[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return float32(v) / 8388608.0, nil
	case 32:
		v := int32(binary.LittleEndian.Uint32(sample))
		return float32(float64(v) / 2147483648.0), nil
	default:
		return 0, ErrUnsupportedWAV
	}
}
