package audio

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
)

func TestOnChunkDeliversFrames(t *testing.T) {
	m := NewMicrophoneSource(logging.NewNopLogger())
	m.frames = make(chan []byte, 4)

	m.onChunk([]int16{100, -100})

	require.Len(t, m.frames, 1)
	require.Equal(t, pcmFrame(100, -100), <-m.frames)
	require.Zero(t, m.dropped.Load())
}

func TestOnChunkDropsWhenQueueFull(t *testing.T) {
	m := NewMicrophoneSource(logging.NewNopLogger())
	m.frames = make(chan []byte, 1)
	m.frames <- pcmFrame(1)

	// The callback runs on PortAudio's own thread while Stop reads the
	// counter; hammer it from several goroutines so -race can see it.
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				m.dropped.Load()
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.onChunk([]int16{42})
			}
		}()
	}
	wg.Wait()
	close(done)

	require.Equal(t, int64(400), m.dropped.Load())
	require.Len(t, m.frames, 1)
}
