package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"mime"
	"strconv"
	"time"
)

const (
	HeaderSize        = 44
	Channels          = 1
	BitDepth          = 16
	DefaultSampleRate = 24000
	MIMEType          = "audio/wav"
	Extension         = ".wav"

	pcmFormat    = 1
	fmtChunkSize = 16
)

var (
	ErrOddLength     = errors.New("pcm payload length must be a multiple of 2")
	ErrSampleRate    = errors.New("sample rate must be positive")
	ErrTooLarge      = errors.New("pcm payload too large for a RIFF container")
	ErrInvalidHeader = errors.New("invalid wav header")
)

// Header holds the decoded fields of a canonical 44-byte PCM header
type Header struct {
	RIFFSize      uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32
}

// Encode wraps a headerless signed 16-bit little-endian mono PCM stream in a
// RIFF/WAVE container. The payload is copied unmodified after the header.
func Encode(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, ErrOddLength
	}
	if sampleRate <= 0 {
		return nil, ErrSampleRate
	}
	if uint64(len(pcm))+HeaderSize > math.MaxUint32 || uint64(sampleRate) > math.MaxUint32/(Channels*BitDepth/8) {
		return nil, ErrTooLarge
	}

	blockAlign := Channels * BitDepth / 8
	byteRate := sampleRate * blockAlign
	total := HeaderSize + len(pcm)

	out := make([]byte, total)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(total-8))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], fmtChunkSize)
	binary.LittleEndian.PutUint16(out[20:22], pcmFormat)
	binary.LittleEndian.PutUint16(out[22:24], Channels)
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], BitDepth)

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[HeaderSize:], pcm)

	return out, nil
}

// DecodeHeader parses the header of a container produced by Encode and checks
// that its sizes agree with the length of b.
func DecodeHeader(b []byte) (Header, error) {
	var h Header
	if len(b) < HeaderSize {
		return h, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidHeader, len(b))
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return h, fmt.Errorf("%w: missing RIFF/WAVE markers", ErrInvalidHeader)
	}
	if string(b[12:16]) != "fmt " || string(b[36:40]) != "data" {
		return h, fmt.Errorf("%w: missing fmt/data chunks", ErrInvalidHeader)
	}

	h.RIFFSize = binary.LittleEndian.Uint32(b[4:8])
	h.AudioFormat = binary.LittleEndian.Uint16(b[20:22])
	h.Channels = binary.LittleEndian.Uint16(b[22:24])
	h.SampleRate = binary.LittleEndian.Uint32(b[24:28])
	h.ByteRate = binary.LittleEndian.Uint32(b[28:32])
	h.BlockAlign = binary.LittleEndian.Uint16(b[32:34])
	h.BitsPerSample = binary.LittleEndian.Uint16(b[34:36])
	h.DataSize = binary.LittleEndian.Uint32(b[40:44])

	if binary.LittleEndian.Uint32(b[16:20]) != fmtChunkSize || h.AudioFormat != pcmFormat {
		return h, fmt.Errorf("%w: not a PCM format chunk", ErrInvalidHeader)
	}
	if uint64(h.RIFFSize) != uint64(len(b))-8 || uint64(h.DataSize) != uint64(len(b))-HeaderSize {
		return h, fmt.Errorf("%w: chunk sizes do not match %d bytes", ErrInvalidHeader, len(b))
	}
	return h, nil
}

// Duration is the playback length of pcmLen bytes of mono 16-bit audio.
func Duration(pcmLen int, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := int64(pcmLen) / (BitDepth / 8)
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// SampleRateFromMIME reads the rate parameter of types such as
// "audio/L16;codec=pcm;rate=24000".
func SampleRateFromMIME(mimeType string, fallback int) int {
	if mimeType == "" {
		return fallback
	}
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return fallback
	}
	rate, err := strconv.Atoi(params["rate"])
	if err != nil || rate <= 0 {
		return fallback
	}
	return rate
}
