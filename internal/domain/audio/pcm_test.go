package audio

import (
	"math"
	"testing"
)

func tonePCM(seconds float64, sampleRate, channels int) *PCM {
	n := int(seconds * float64(sampleRate))
	data := make([]byte, n*channels*2)
	for i := 0; i < n*channels; i++ {
		v := int16(math.Sin(float64(i)/20) * 1000)
		data[2*i] = byte(v)
		data[2*i+1] = byte(v >> 8)
	}
	return &PCM{Data: data, SampleRate: sampleRate, Channels: channels}
}

func TestWAVEncodeDecodeRoundTrip(t *testing.T) {
	src := tonePCM(1.5, 24000, 1)
	encoded := EncodeWAV(src)

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if decoded.SampleRate != 24000 || decoded.Channels != 1 {
		t.Fatalf("format mismatch: %d/%dch", decoded.SampleRate, decoded.Channels)
	}
	if len(decoded.Data) != len(src.Data) {
		t.Fatalf("data length mismatch: %d vs %d", len(decoded.Data), len(src.Data))
	}
	if math.Abs(decoded.Duration()-1.5) > 1e-9 {
		t.Fatalf("duration mismatch: %v", decoded.Duration())
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if _, err := Decode([]byte("definitely not audio at all")); err == nil {
		t.Fatalf("expected error for garbage input")
	}
	if _, err := Decode([]byte("RIFFxxxx")); err == nil {
		t.Fatalf("expected error for truncated wav")
	}
}

func TestSilenceLength(t *testing.T) {
	s := Silence(0.5, 24000, 2)
	want := int(0.5*24000) * 2 * 2
	if len(s) != want {
		t.Fatalf("silence length %d, want %d", len(s), want)
	}
	for _, b := range s {
		if b != 0 {
			t.Fatalf("silence must be zero samples")
		}
	}
	if Silence(0, 24000, 2) != nil {
		t.Fatalf("zero-length silence should be nil")
	}
}

func TestConcatInsertsGaps(t *testing.T) {
	a := tonePCM(1.0, 24000, 1)
	b := tonePCM(2.0, 24000, 1)

	combined, err := Concat([]*PCM{a, b}, 0.5)
	if err != nil {
		t.Fatalf("Concat returned error: %v", err)
	}
	if got, want := combined.Duration(), 3.5; math.Abs(got-want) > 1e-6 {
		t.Fatalf("combined duration %v, want %v", got, want)
	}

	// The gap region must be silent.
	gapStart := len(a.Data)
	gapEnd := gapStart + len(Silence(0.5, 24000, 1))
	for i := gapStart; i < gapEnd; i++ {
		if combined.Data[i] != 0 {
			t.Fatalf("expected silence at offset %d", i)
		}
	}
}

func TestConcatRejectsFormatMismatch(t *testing.T) {
	a := tonePCM(1.0, 24000, 1)
	b := tonePCM(1.0, 44100, 1)
	if _, err := Concat([]*PCM{a, b}, 0.5); err == nil {
		t.Fatalf("expected format mismatch error")
	}
	if _, err := Concat(nil, 0.5); err == nil {
		t.Fatalf("expected error for no segments")
	}
}

func TestMeasureDurationWAV(t *testing.T) {
	src := tonePCM(2.25, 16000, 2)
	d, err := MeasureDuration(EncodeWAV(src))
	if err != nil {
		t.Fatalf("MeasureDuration error: %v", err)
	}
	if math.Abs(d-2.25) > 1e-6 {
		t.Fatalf("measured %v, want 2.25", d)
	}
}
