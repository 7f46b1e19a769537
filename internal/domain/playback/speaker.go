package playback

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"versecast/internal/domain/audio"
)

// SpeakerOutput plays PCM through the system audio device via beep.
// One instance drives one stream at a time.
type SpeakerOutput struct {
	mu       sync.Mutex
	streamer *pcmStreamer
	ctrl     *beep.Ctrl
}

// NewSpeakerOutput returns an output bound lazily to the device; the
// device is opened on the first Start.
func NewSpeakerOutput() *SpeakerOutput {
	return &SpeakerOutput{}
}

func (o *SpeakerOutput) Start(pcm *audio.PCM) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	sr := beep.SampleRate(pcm.SampleRate)
	if err := speaker.Init(sr, sr.N(time.Second/10)); err != nil {
		return fmt.Errorf("open audio device: %w", err)
	}

	o.streamer = newPCMStreamer(pcm)
	o.ctrl = &beep.Ctrl{Streamer: o.streamer, Paused: true}
	speaker.Play(o.ctrl)
	return nil
}

func (o *SpeakerOutput) SetPaused(paused bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctrl == nil {
		return
	}
	speaker.Lock()
	o.ctrl.Paused = paused
	speaker.Unlock()
}

func (o *SpeakerOutput) Seek(seconds float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.streamer == nil {
		return
	}
	speaker.Lock()
	o.streamer.seekTo(seconds)
	speaker.Unlock()
}

func (o *SpeakerOutput) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctrl == nil {
		return
	}
	speaker.Clear()
	o.streamer = nil
	o.ctrl = nil
}

// pcmStreamer feeds a fully-decoded PCM buffer to beep. Unlike a
// network-fed streamer it never underruns, so seek is a plain index move.
type pcmStreamer struct {
	pcm *audio.PCM
	pos int
}

func newPCMStreamer(pcm *audio.PCM) *pcmStreamer {
	return &pcmStreamer{pcm: pcm}
}

func (s *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	bytesPerFrame := 2 * s.pcm.Channels
	total := len(s.pcm.Data) / bytesPerFrame
	if s.pos >= total {
		return 0, false
	}

	n := 0
	for i := range samples {
		if s.pos >= total {
			break
		}
		offset := s.pos * bytesPerFrame
		if s.pcm.Channels == 1 {
			v := pcm16ToFloat(s.pcm.Data[offset:])
			samples[i][0] = v
			samples[i][1] = v
		} else {
			samples[i][0] = pcm16ToFloat(s.pcm.Data[offset:])
			samples[i][1] = pcm16ToFloat(s.pcm.Data[offset+2:])
		}
		s.pos++
		n++
	}
	return n, true
}

func (s *pcmStreamer) Err() error { return nil }

func (s *pcmStreamer) seekTo(seconds float64) {
	bytesPerFrame := 2 * s.pcm.Channels
	total := len(s.pcm.Data) / bytesPerFrame
	frame := int(seconds * float64(s.pcm.SampleRate))
	if frame < 0 {
		frame = 0
	}
	if frame > total {
		frame = total
	}
	s.pos = frame
}

func pcm16ToFloat(b []byte) float64 {
	if len(b) < 2 {
		return 0
	}
	return float64(int16(binary.LittleEndian.Uint16(b))) / 32768.0
}
