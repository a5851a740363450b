package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Clip is a decoded audio sample. Data keeps the original file bytes for
// backends that upload the file as-is.
type Clip struct {
	Path       string
	Data       []byte
	PCM        []int
	SampleRate int
	Channels   int
	BitDepth   int
}

// Load reads and decodes the WAV file at path. The file handle is released
// before Load returns.
func Load(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	clip, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	clip.Path = path
	return clip, nil
}

// Decode parses a WAV payload.
func Decode(data []byte) (*Clip, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil && err != io.EOF {
		return nil, err
	}
	if buf == nil {
		return nil, errors.New("empty wav buffer")
	}
	clip := &Clip{
		Data:       data,
		PCM:        buf.Data,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	if clip.SampleRate == 0 && buf.Format != nil {
		clip.SampleRate = buf.Format.SampleRate
	}
	if clip.Channels == 0 {
		clip.Channels = 1
	}
	if clip.BitDepth == 0 {
		clip.BitDepth = 16
	}
	return clip, nil
}

// Duration is the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	frames := len(c.PCM) / c.Channels
	return time.Duration(float64(frames) / float64(c.SampleRate) * float64(time.Second))
}

// Float32 returns mono samples normalized to [-1, 1]. Multi-channel clips are
// averaged down to one channel.
func (c *Clip) Float32() []float32 {
	channels := c.Channels
	if channels <= 0 {
		channels = 1
	}
	bits := c.BitDepth
	if bits <= 0 {
		bits = 16
	}
	scale := float32(int(1) << (bits - 1))
	out := make([]float32, len(c.PCM)/channels)
	for i := range out {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(c.PCM[i*channels+ch])
		}
		out[i] = sum / float32(channels) / scale
	}
	return out
}

// PCM16LE returns the samples as little-endian signed 16-bit PCM.
func (c *Clip) PCM16LE() []byte {
	shift := 0
	if c.BitDepth > 0 {
		shift = c.BitDepth - 16
	}
	out := make([]byte, len(c.PCM)*2)
	for i, v := range c.PCM {
		switch {
		case shift > 0:
			v >>= shift
		case shift < 0:
			v <<= -shift
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// WriteWAV encodes the clip as 16-bit PCM into w.
func (c *Clip) WriteWAV(w io.WriteSeeker) error {
	return WritePCM16(w, c.PCM16LE(), c.SampleRate, c.Channels)
}

// WritePCM16 encodes little-endian 16-bit PCM as a WAV stream.
func WritePCM16(w io.WriteSeeker, pcm []byte, sampleRate, channels int) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}
	buffer := &goaudio.IntBuffer{Format: &goaudio.Format{NumChannels: channels, SampleRate: sampleRate}}
	samples := make([]int, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer.Data = samples

	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
