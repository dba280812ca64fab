// Package audio handles raw audio on both ends of a recording: capturing
// PCM frames from the default input device and archiving streamed frames
// into a playable WAV container.
package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/otherjamesbrown/dicta-cli/pkg/logging"

	dterrors "github.com/otherjamesbrown/dicta-cli/pkg/errors"
)

// PCM format for recording sessions. The streaming service expects 16 kHz
// mono 16-bit little-endian, so the archive uses the same format and no
// resampling ever happens.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16

	// FrameDuration is the capture granularity; 50ms at 16kHz mono 16-bit
	// is 1600 bytes per frame.
	FrameDurationMs = 50
	FrameSamples    = SampleRate * FrameDurationMs / 1000
	FrameBytes      = FrameSamples * BitsPerSample / 8

	wavHeaderSize = 44
)

// wavHeader is the canonical 44-byte RIFF/WAVE header for PCM data.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

func newWavHeader(dataSize uint32) wavHeader {
	return wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     dataSize + wavHeaderSize - 8,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   Channels,
		SampleRate:    SampleRate,
		ByteRate:      SampleRate * Channels * BitsPerSample / 8,
		BlockAlign:    Channels * BitsPerSample / 8,
		BitsPerSample: BitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
}

// EncodeChunk base64-encodes one PCM frame for transport or buffering.
func EncodeChunk(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// Archiver accumulates the base64 PCM chunks captured during a recording
// session and assembles them into a single WAV blob when the session stops.
// It is not safe for concurrent use; the session controller owns it.
type Archiver struct {
	chunks []string
	logger logging.Logger
}

// NewArchiver creates an empty archiver.
func NewArchiver(logger logging.Logger) *Archiver {
	return &Archiver{
		logger: logger.With(logging.F("component", "audio_archiver")),
	}
}

// Append records one base64-encoded PCM chunk. Decoding is deferred to
// Assemble so a corrupt chunk never interrupts a live recording.
func (a *Archiver) Append(chunk string) {
	a.chunks = append(a.chunks, chunk)
}

// Len returns the number of buffered chunks.
func (a *Archiver) Len() int {
	return len(a.chunks)
}

// Assemble decodes every buffered chunk and wraps the concatenated PCM in a
// WAV container. Chunks that fail to decode are dropped with a warning; if
// none decode, the recording produced no usable audio and Assemble fails
// with ErrNoAudio rather than archiving an empty file.
func (a *Archiver) Assemble() ([]byte, error) {
	return AssembleWAV(a.chunks, a.logger)
}

// Reset discards all buffered chunks.
func (a *Archiver) Reset() {
	a.chunks = nil
}

// AssembleWAV builds a WAV blob from base64 PCM chunks. The result is
// exactly 44 bytes of header plus the decoded payload.
func AssembleWAV(chunks []string, logger logging.Logger) ([]byte, error) {
	var pcm bytes.Buffer
	decoded := 0
	for i, chunk := range chunks {
		raw, err := base64.StdEncoding.DecodeString(chunk)
		if err != nil {
			logger.Warn("Dropping undecodable audio chunk",
				logging.F("chunk_index", i),
				logging.Err(err))
			continue
		}
		pcm.Write(raw)
		decoded++
	}

	if decoded == 0 {
		return nil, fmt.Errorf("no decodable audio chunks (%d received): %w",
			len(chunks), dterrors.ErrNoAudio)
	}

	out := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+pcm.Len()))
	header := newWavHeader(uint32(pcm.Len()))
	if err := binary.Write(out, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	out.Write(pcm.Bytes())

	return out.Bytes(), nil
}

// DurationSeconds reports the playback length of a PCM payload of the given
// size in the session format.
func DurationSeconds(dataSize int) float64 {
	return float64(dataSize) / float64(SampleRate*Channels*BitsPerSample/8)
}
