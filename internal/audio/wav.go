// Package audio inspects recorded WAV files: duration and loudness, used to
// skip the transcription request for silent recordings.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

// DefaultSilenceThresholdDBFS is the RMS level at or below which a recording
// counts as silent.
const DefaultSilenceThresholdDBFS = -65.0

type Metrics struct {
	RMSdBFS  float64
	PeakdBFS float64
	Samples  int64
}

// Info describes a PCM or IEEE-float WAV file.
type Info struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Duration      time.Duration
	Metrics       Metrics
}

// IsSilent reports whether the recording stays under thresholdDBFS. The peak
// may exceed the threshold by 6 dB to tolerate clicks.
func (i Info) IsSilent(thresholdDBFS float64) bool {
	m := i.Metrics
	if m.Samples == 0 {
		return true
	}
	if math.IsInf(m.RMSdBFS, -1) && math.IsInf(m.PeakdBFS, -1) {
		return true
	}
	return m.RMSdBFS <= thresholdDBFS && m.PeakdBFS <= thresholdDBFS+6
}

// Seconds returns the duration in fractional seconds.
func (i Info) Seconds() float64 {
	return i.Duration.Seconds()
}

func IsSilentWAV(path string, thresholdDBFS float64) (bool, Metrics, error) {
	info, err := Inspect(path)
	if err != nil {
		return false, Metrics{}, err
	}
	return info.IsSilent(thresholdDBFS), info.Metrics, nil
}

type format struct {
	audioFormat   uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
}

// Inspect reads the WAV header and samples of path. A data chunk whose
// declared size overruns the file, as left by an interrupted recorder, is
// truncated to the bytes actually present.
func Inspect(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("stat wav: %w", err)
	}

	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Info{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
		return Info{}, fmt.Errorf("read wav header: %w", err)
	}
	if string(header[:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return Info{}, ErrInvalidWAV
	}

	fmtChunk, dataOffset, dataSize, err := readChunks(f)
	if err != nil {
		return Info{}, err
	}
	if err := validateFormat(fmtChunk.audioFormat, fmtChunk.bitsPerSample); err != nil {
		return Info{}, err
	}
	if fmtChunk.channels == 0 || fmtChunk.sampleRate == 0 {
		return Info{}, ErrInvalidWAV
	}

	if remaining := stat.Size() - dataOffset; dataSize > remaining {
		dataSize = max(remaining, 0)
	}

	if _, err := f.Seek(dataOffset, io.SeekStart); err != nil {
		return Info{}, fmt.Errorf("seek wav data offset: %w", err)
	}
	data := make([]byte, dataSize)
	if _, err := io.ReadFull(f, data); err != nil {
		return Info{}, fmt.Errorf("read wav data: %w", err)
	}

	metrics, err := measure(data, fmtChunk.audioFormat, fmtChunk.bitsPerSample)
	if err != nil {
		return Info{}, err
	}

	frames := metrics.Samples / int64(fmtChunk.channels)
	return Info{
		SampleRate:    int(fmtChunk.sampleRate),
		Channels:      int(fmtChunk.channels),
		BitsPerSample: int(fmtChunk.bitsPerSample),
		Duration:      time.Duration(frames) * time.Second / time.Duration(fmtChunk.sampleRate),
		Metrics:       metrics,
	}, nil
}

func readChunks(f *os.File) (format, int64, int64, error) {
	var (
		parsed     format
		dataOffset int64
		dataSize   int64
		hasFmt     bool
		hasData    bool
	)

	chunkHeader := make([]byte, 8)
	for {
		if _, err := io.ReadFull(f, chunkHeader); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return format{}, 0, 0, fmt.Errorf("read wav chunk header: %w", err)
		}

		chunkID := string(chunkHeader[:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])
		skip := int64(chunkSize) + int64(chunkSize%2)

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return format{}, 0, 0, ErrInvalidWAV
			}
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(f, buf); err != nil {
				return format{}, 0, 0, fmt.Errorf("read wav fmt chunk: %w", err)
			}
			parsed = format{
				audioFormat:   binary.LittleEndian.Uint16(buf[0:2]),
				channels:      binary.LittleEndian.Uint16(buf[2:4]),
				sampleRate:    binary.LittleEndian.Uint32(buf[4:8]),
				bitsPerSample: binary.LittleEndian.Uint16(buf[14:16]),
			}
			hasFmt = true
			if chunkSize%2 != 0 {
				if _, err := f.Seek(1, io.SeekCurrent); err != nil {
					return format{}, 0, 0, fmt.Errorf("seek wav fmt padding: %w", err)
				}
			}
		case "data":
			offset, err := f.Seek(0, io.SeekCurrent)
			if err != nil {
				return format{}, 0, 0, fmt.Errorf("seek wav data chunk: %w", err)
			}
			dataOffset, dataSize, hasData = offset, int64(chunkSize), true
			if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
				return format{}, 0, 0, fmt.Errorf("seek wav data chunk: %w", err)
			}
		default:
			if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
				return format{}, 0, 0, fmt.Errorf("seek wav chunk %s: %w", chunkID, err)
			}
		}
	}

	if !hasFmt || !hasData {
		return format{}, 0, 0, ErrInvalidWAV
	}
	return parsed, dataOffset, dataSize, nil
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

func measure(data []byte, audioFormat, bitsPerSample uint16) (Metrics, error) {
	bytesPerSample := int(bitsPerSample / 8)
	if bytesPerSample <= 0 {
		return Metrics{}, ErrUnsupportedWAV
	}

	var peak, sumSquares float64
	var samples int64
	for i := 0; i+bytesPerSample <= len(data); i += bytesPerSample {
		value, err := decodeSample(data[i:i+bytesPerSample], audioFormat, bitsPerSample)
		if err != nil {
			return Metrics{}, err
		}
		peak = max(peak, math.Abs(value))
		sumSquares += value * value
		samples++
	}

	if samples == 0 {
		return Metrics{RMSdBFS: math.Inf(-1), PeakdBFS: math.Inf(-1)}, nil
	}
	return Metrics{
		RMSdBFS:  amplitudeToDBFS(math.Sqrt(sumSquares / float64(samples))),
		PeakdBFS: amplitudeToDBFS(peak),
		Samples:  samples,
	}, nil
}

func decodeSample(sample []byte, audioFormat, bitsPerSample uint16) (float64, error) {
	if audioFormat == 3 {
		switch bitsPerSample {
		case 32:
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(sample))), nil
		case 64:
			return math.Float64frombits(binary.LittleEndian.Uint64(sample)), nil
		default:
			return 0, ErrUnsupportedWAV
		}
	}

	switch bitsPerSample {
	case 8:
		return (float64(sample[0]) - 128.0) / 128.0, nil
	case 16:
		return float64(int16(binary.LittleEndian.Uint16(sample))) / 32768.0, nil
	case 24:
		v := int32(sample[0]) | int32(sample[1])<<8 | int32(sample[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return float64(v) / 8388608.0, nil
	case 32:
		return float64(int32(binary.LittleEndian.Uint32(sample))) / 2147483648.0, nil
	default:
		return 0, ErrUnsupportedWAV
	}
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
