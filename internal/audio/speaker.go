package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/eleven-am/dinevoice/internal/transport"
)

const outputFrameSize = 480

var (
	ErrEmptyBuffer    = errors.New("empty audio buffer")
	ErrFormatMismatch = errors.New("buffer format differs from open output stream")
)

// Speaker plays decoded PCM16 buffers on the default output device. One
// output stream stays open across units; units are played back to back from
// a shared FIFO so consecutive chunks have no device reopen between them.
type Speaker struct {
	log *slog.Logger

	mu       sync.Mutex
	stream   *portaudio.Stream
	rate     int
	channels int
	mix      *mixer
	stop     chan struct{}
	done     chan struct{}
}

func NewSpeaker(log *slog.Logger) *Speaker {
	if log == nil {
		log = slog.Default()
	}
	return &Speaker{log: log.With("component", "speaker")}
}

func (s *Speaker) Decode(ctx context.Context, wav []byte) (*transport.AudioBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parsed, err := ParseWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	return &transport.AudioBuffer{
		SampleRate: parsed.SampleRate,
		Channels:   parsed.Channels,
		Samples:    parsed.Samples,
	}, nil
}

// Start queues buf on the shared stream, opening the device on first use.
func (s *Speaker) Start(buf *transport.AudioBuffer, onEnded func()) (transport.PlaybackUnit, error) {
	if buf == nil || len(buf.Samples) == 0 {
		return nil, ErrEmptyBuffer
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		if err := s.open(buf.SampleRate, buf.Channels); err != nil {
			return nil, err
		}
	} else if buf.SampleRate != s.rate || buf.Channels != s.channels {
		return nil, fmt.Errorf("%w: got %d Hz x%d, stream is %d Hz x%d",
			ErrFormatMismatch, buf.SampleRate, buf.Channels, s.rate, s.channels)
	}

	u := &playbackUnit{mix: s.mix, samples: buf.Samples, onEnded: onEnded}
	s.mix.add(u)
	return u, nil
}

// open must be called with s.mu held.
func (s *Speaker) open(rate, channels int) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}

	out := make([]int16, outputFrameSize*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(rate), outputFrameSize, out)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("start output stream: %w", err)
	}

	s.stream = stream
	s.rate = rate
	s.channels = channels
	s.mix = &mixer{}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.log.Debug("output stream opened", "sample_rate", rate, "channels", channels)

	go s.run(stream, out, s.mix, s.stop, s.done)
	return nil
}

func (s *Speaker) run(stream *portaudio.Stream, out []int16, mix *mixer, stop, done chan struct{}) {
	defer func() {
		_ = stream.Stop()
		_ = stream.Close()
		_ = portaudio.Terminate()
		close(done)
	}()

	for {
		select {
		case <-stop:
			return
		default:
		}

		finished := mix.fill(out)
		err := stream.Write()
		for _, u := range finished {
			mix.finish(u)
		}

		if err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			s.log.Error("speaker write failed", "error", err)
			s.detach(stream)
			// Pending units can no longer play; report them ended so the
			// caller's queue keeps moving.
			for _, u := range mix.drain() {
				mix.finish(u)
			}
			return
		}
	}
}

func (s *Speaker) detach(stream *portaudio.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == stream {
		s.stream = nil
	}
}

// Close stops the output stream. A later Start opens a new one.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.stream == nil {
		s.mu.Unlock()
		return nil
	}
	stop, done := s.stop, s.done
	s.stream = nil
	s.mu.Unlock()

	close(stop)
	<-done
	return nil
}

// mixer is the FIFO of units sharing one output stream.
type mixer struct {
	mu    sync.Mutex
	units []*playbackUnit
}

func (m *mixer) add(u *playbackUnit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units = append(m.units, u)
}

// fill copies the next frame into out, continuing across unit boundaries,
// and zero-pads the rest. It returns the units whose last sample it copied.
func (m *mixer) fill(out []int16) []*playbackUnit {
	m.mu.Lock()
	defer m.mu.Unlock()

	var finished []*playbackUnit
	n := 0
	for n < len(out) && len(m.units) > 0 {
		u := m.units[0]
		c := copy(out[n:], u.samples[u.pos:])
		u.pos += c
		n += c
		if u.pos >= len(u.samples) {
			m.units[0] = nil
			m.units = m.units[1:]
			finished = append(finished, u)
		}
	}
	clear(out[n:])
	return finished
}

// finish fires the unit's ended callback unless it was stopped first.
func (m *mixer) finish(u *playbackUnit) {
	m.mu.Lock()
	fire := !u.stopped && !u.ended
	u.ended = true
	m.mu.Unlock()

	if fire && u.onEnded != nil {
		u.onEnded()
	}
}

func (m *mixer) remove(u *playbackUnit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.stopped = true
	for i, other := range m.units {
		if other == u {
			m.units = append(m.units[:i], m.units[i+1:]...)
			return
		}
	}
}

func (m *mixer) drain() []*playbackUnit {
	m.mu.Lock()
	defer m.mu.Unlock()
	units := m.units
	m.units = nil
	return units
}

type playbackUnit struct {
	mix     *mixer
	samples []int16
	pos     int
	onEnded func()

	// guarded by mix.mu
	stopped bool
	ended   bool
}

// Stop drops whatever of this unit has not reached the device yet. Other
// queued units keep playing.
func (u *playbackUnit) Stop() {
	u.mix.remove(u)
}
