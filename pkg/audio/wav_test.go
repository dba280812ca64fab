package audio

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	wavreader "github.com/youpy/go-wav"

	dterrors "github.com/otherjamesbrown/dicta-cli/pkg/errors"
	"github.com/otherjamesbrown/dicta-cli/pkg/logging"
)

// pcmFrame builds a little-endian 16-bit frame with the given samples.
func pcmFrame(samples ...int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestAssembleWAVContainer(t *testing.T) {
	frames := [][]byte{
		pcmFrame(100, -100, 200),
		pcmFrame(300, -300),
	}
	totalPCM := 0
	archiver := NewArchiver(logging.NewNopLogger())
	for _, f := range frames {
		archiver.Append(EncodeChunk(f))
		totalPCM += len(f)
	}

	blob, err := archiver.Assemble()
	require.NoError(t, err)
	require.Len(t, blob, 44+totalPCM)

	// Header fields must describe 16kHz mono 16-bit PCM.
	r := wavreader.NewReader(bytes.NewReader(blob))
	format, err := r.Format()
	require.NoError(t, err)
	require.Equal(t, uint16(1), format.AudioFormat)
	require.Equal(t, uint16(1), format.NumChannels)
	require.Equal(t, uint32(16000), format.SampleRate)
	require.Equal(t, uint32(32000), format.ByteRate)
	require.Equal(t, uint16(2), format.BlockAlign)
	require.Equal(t, uint16(16), format.BitsPerSample)

	// Declared data length must equal the decoded payload length.
	dataLen := binary.LittleEndian.Uint32(blob[40:44])
	require.Equal(t, uint32(totalPCM), dataLen)
	require.Equal(t, bytes.Join(frames, nil), blob[44:])
}

func TestAssembleSkipsUndecodableChunks(t *testing.T) {
	archiver := NewArchiver(logging.NewNopLogger())
	archiver.Append("!!!not base64!!!")
	archiver.Append(EncodeChunk(pcmFrame(1, 2, 3)))

	blob, err := archiver.Assemble()
	require.NoError(t, err)
	require.Len(t, blob, 44+6)
}

func TestAssembleFailsWithNoDecodableAudio(t *testing.T) {
	archiver := NewArchiver(logging.NewNopLogger())

	_, err := archiver.Assemble()
	require.ErrorIs(t, err, dterrors.ErrNoAudio)

	archiver.Append("%%%")
	_, err = archiver.Assemble()
	require.ErrorIs(t, err, dterrors.ErrNoAudio)
}

func TestArchiverReset(t *testing.T) {
	archiver := NewArchiver(logging.NewNopLogger())
	archiver.Append(EncodeChunk(pcmFrame(1)))
	require.Equal(t, 1, archiver.Len())

	archiver.Reset()
	require.Equal(t, 0, archiver.Len())
}

func TestDurationSeconds(t *testing.T) {
	// One second of 16kHz mono 16-bit audio is 32000 bytes.
	require.InDelta(t, 1.0, DurationSeconds(32000), 1e-9)
	require.InDelta(t, 0.05, DurationSeconds(FrameBytes), 1e-9)
}
