package hymnplay

import (
	"encoding/binary"
	"fmt"
	"math"

	intaudio "github.com/organpi/hymnplay-go/internal/audio"
	intscore "github.com/organpi/hymnplay-go/internal/score"
)

// RenderSamples bounces one straight pass of the hymn through a SoundFont
// synthesizer and returns interleaved stereo float32 samples. Intro jumps,
// verse repeats and ritardando are live-performance behavior and do not
// apply; tempo changes in the file do. tailSeconds of silence-fed rendering
// are appended so releases can ring out.
func RenderSamples(sc *intscore.Score, soundFontPath string, sampleRate int, tailSeconds float64) ([]float32, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("render: invalid sample rate %d", sampleRate)
	}
	synth, err := intaudio.NewSynth(sampleRate, soundFontPath)
	if err != nil {
		return nil, err
	}

	events := sc.Merged()

	// First pass: place every event on the real-time axis, tracking tempo
	// changes as they go by.
	usecPerTick := sc.USecPerTick()
	times := make([]int64, len(events))
	var nowUsec int64
	var lastTick uint32
	for i, ev := range events {
		nowUsec += int64(ev.Tick-lastTick) * usecPerTick
		lastTick = ev.Tick
		times[i] = nowUsec
		if usec, ok := intscore.TempoUSec(ev.Raw); ok && sc.PPQ > 0 {
			usecPerTick = int64(usec) / int64(sc.PPQ)
		}
	}
	totalUsec := nowUsec + int64(tailSeconds*1e6)
	totalFrames := int(totalUsec * int64(sampleRate) / 1000000)

	left := make([]float32, totalFrames)
	right := make([]float32, totalFrames)

	// Second pass: render the gap up to each event, then feed the event to
	// the synthesizer.
	cursor := 0
	for i, ev := range events {
		end := int(times[i] * int64(sampleRate) / 1000000)
		if end > totalFrames {
			end = totalFrames
		}
		if end > cursor {
			synth.Process(left[cursor:end], right[cursor:end])
			cursor = end
		}
		_ = synth.Send(ev.Raw)
	}
	if cursor < totalFrames {
		synth.Process(left[cursor:], right[cursor:])
	}

	out := make([]float32, 0, totalFrames*2)
	for i := 0; i < totalFrames; i++ {
		out = append(out, left[i], right[i])
	}
	return out, nil
}

// RenderWAV renders like RenderSamples and wraps the result in a WAV
// container.
func RenderWAV(sc *intscore.Score, soundFontPath string, sampleRate int, tailSeconds float64) ([]byte, error) {
	samples, err := RenderSamples(sc, soundFontPath, sampleRate, tailSeconds)
	if err != nil {
		return nil, err
	}
	return EncodeWAVFloat32LE(samples, sampleRate, 2), nil
}

// EncodeWAVFloat32LE wraps samples in a float32 PCM WAV container.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
