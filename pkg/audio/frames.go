package audio

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
)

// frameQueueSize bounds the capture channel. At 50ms per frame this is ten
// seconds of backlog; past that the consumer is stuck and frames are dropped
// rather than growing memory without bound.
const frameQueueSize = 200

// FrameSource produces raw PCM frames from an audio input. Frames are
// little-endian 16-bit mono at SampleRate, FrameBytes long.
type FrameSource interface {
	// Start begins capture. Frames arrive on the returned channel until
	// Stop is called, at which point the channel is closed.
	Start() (<-chan []byte, error)

	// Stop ends capture and releases the device.
	Stop() error
}

// MicrophoneSource captures from the default input device via PortAudio.
type MicrophoneSource struct {
	logger logging.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	frames  chan []byte
	started bool

	// Incremented on the PortAudio callback thread, read at Stop.
	dropped atomic.Int64
}

// NewMicrophoneSource creates a microphone frame source.
func NewMicrophoneSource(logger logging.Logger) *MicrophoneSource {
	return &MicrophoneSource{
		logger: logger.With(logging.F("component", "microphone")),
	}
}

// Start initializes PortAudio and opens the default input stream.
func (m *MicrophoneSource) Start() (<-chan []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return nil, fmt.Errorf("microphone capture already started")
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize audio subsystem: %w", err)
	}

	m.frames = make(chan []byte, frameQueueSize)

	stream, err := portaudio.OpenDefaultStream(Channels, 0, float64(SampleRate), FrameSamples, m.onChunk)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	m.stream = stream
	m.started = true
	m.logger.Info("Microphone capture started",
		logging.F("sample_rate", SampleRate),
		logging.F("frame_ms", FrameDurationMs))
	return m.frames, nil
}

// onChunk runs on the PortAudio callback thread; it must never block, so a
// full queue drops the frame.
func (m *MicrophoneSource) onChunk(in []int16) {
	frame := make([]byte, len(in)*2)
	for i, sample := range in {
		binary.LittleEndian.PutUint16(frame[i*2:], uint16(sample))
	}

	select {
	case m.frames <- frame:
	default:
		m.dropped.Add(1)
	}
}

// Stop halts capture, closes the frame channel and tears down PortAudio.
func (m *MicrophoneSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return nil
	}
	m.started = false

	if n := m.dropped.Load(); n > 0 {
		m.logger.Warn("Frames dropped during capture",
			logging.F("dropped", n))
	}

	var firstErr error
	if err := m.stream.Stop(); err != nil {
		firstErr = fmt.Errorf("failed to stop input stream: %w", err)
	}
	if err := m.stream.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close input stream: %w", err)
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to tear down audio subsystem: %w", err)
	}

	close(m.frames)
	m.stream = nil
	return firstErr
}

// ChanSource adapts a caller-fed channel to FrameSource; used in tests and
// for piping prerecorded audio through the session controller.
type ChanSource struct {
	Frames chan []byte
}

// NewChanSource creates a channel-backed frame source with a small buffer.
func NewChanSource() *ChanSource {
	return &ChanSource{Frames: make(chan []byte, frameQueueSize)}
}

// Start returns the underlying channel.
func (s *ChanSource) Start() (<-chan []byte, error) {
	return s.Frames, nil
}

// Stop closes the channel.
func (s *ChanSource) Stop() error {
	close(s.Frames)
	return nil
}
