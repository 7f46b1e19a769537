package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// PCM is decoded 16-bit little-endian audio.
type PCM struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// Duration returns the clip length in seconds.
func (p *PCM) Duration() float64 {
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return 0
	}
	return float64(len(p.Data)) / float64(2*p.Channels*p.SampleRate)
}

// Decode parses WAV or MP3 bytes into PCM. Unrecognised or truncated
// input yields an error; callers treat that as unplayable audio.
func Decode(data []byte) (*PCM, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio data")
	}
	if bytes.HasPrefix(data, []byte("RIFF")) {
		return decodeWAV(data)
	}
	return decodeMP3(data)
}

// MeasureDuration decodes the audio just to read its length.
func MeasureDuration(data []byte) (float64, error) {
	pcm, err := Decode(data)
	if err != nil {
		return 0, err
	}
	return pcm.Duration(), nil
}

func decodeMP3(data []byte) (*PCM, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("read mp3 samples: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("mp3 stream produced no samples")
	}
	// go-mp3 always emits 16-bit stereo.
	return &PCM{Data: raw, SampleRate: dec.SampleRate(), Channels: 2}, nil
}

func decodeWAV(data []byte) (*PCM, error) {
	if len(data) < 44 {
		return nil, fmt.Errorf("wav header truncated")
	}
	if !bytes.Equal(data[8:12], []byte("WAVE")) {
		return nil, fmt.Errorf("not a wave file")
	}

	// Scan chunks for fmt and data; some encoders insert extra chunks.
	var (
		sampleRate int
		channels   int
		bits       int
		pcm        []byte
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+size > len(data) {
			return nil, fmt.Errorf("wav chunk %q overruns file", id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("wav fmt chunk too small")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("unsupported wav format code %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+size]
		}
		offset = body + size
		if size%2 == 1 {
			offset++
		}
	}

	if sampleRate == 0 || channels == 0 {
		return nil, fmt.Errorf("wav fmt chunk missing")
	}
	if bits != 16 {
		return nil, fmt.Errorf("unsupported wav bit depth %d", bits)
	}
	if pcm == nil {
		return nil, fmt.Errorf("wav data chunk missing")
	}
	return &PCM{Data: pcm, SampleRate: sampleRate, Channels: channels}, nil
}

// Silence produces seconds of PCM silence matching the given format.
func Silence(seconds float64, sampleRate, channels int) []byte {
	if seconds <= 0 {
		return nil
	}
	n := int(seconds * float64(sampleRate))
	return make([]byte, n*channels*2)
}

// Concat joins segments with a fixed silence gap between them. All
// segments must share a sample rate and channel count.
func Concat(segments []*PCM, gapSeconds float64) (*PCM, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("no segments to concatenate")
	}
	rate := segments[0].SampleRate
	channels := segments[0].Channels

	total := 0
	for i, seg := range segments {
		if seg.SampleRate != rate || seg.Channels != channels {
			return nil, fmt.Errorf("segment %d format mismatch: %d/%dch vs %d/%dch",
				i, seg.SampleRate, seg.Channels, rate, channels)
		}
		total += len(seg.Data)
	}

	gap := Silence(gapSeconds, rate, channels)
	total += len(gap) * (len(segments) - 1)

	out := make([]byte, 0, total)
	for i, seg := range segments {
		if i > 0 {
			out = append(out, gap...)
		}
		out = append(out, seg.Data...)
	}
	return &PCM{Data: out, SampleRate: rate, Channels: channels}, nil
}

// EncodeWAV wraps PCM in a canonical 44-byte RIFF header.
func EncodeWAV(p *PCM) []byte {
	dataLen := len(p.Data)
	byteRate := p.SampleRate * p.Channels * 2

	buf := make([]byte, 0, 44+dataLen)
	w := bytes.NewBuffer(buf)

	w.WriteString("RIFF")
	binary.Write(w, binary.LittleEndian, uint32(36+dataLen))
	w.WriteString("WAVE")
	w.WriteString("fmt ")
	binary.Write(w, binary.LittleEndian, uint32(16))
	binary.Write(w, binary.LittleEndian, uint16(1))
	binary.Write(w, binary.LittleEndian, uint16(p.Channels))
	binary.Write(w, binary.LittleEndian, uint32(p.SampleRate))
	binary.Write(w, binary.LittleEndian, uint32(byteRate))
	binary.Write(w, binary.LittleEndian, uint16(p.Channels*2))
	binary.Write(w, binary.LittleEndian, uint16(16))
	w.WriteString("data")
	binary.Write(w, binary.LittleEndian, uint32(dataLen))
	w.Write(p.Data)

	return w.Bytes()
}
