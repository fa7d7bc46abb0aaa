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

const (
	DefaultFrameSize  = 4096
	frameChannelDepth = 32
)

var ErrUnsupportedConstraints = errors.New("unsupported capture constraints")

// Microphone captures float PCM from the default input device through
// PortAudio. Echo cancellation, noise suppression and gain control are left
// to the host audio stack.
type Microphone struct {
	log *slog.Logger
}

func NewMicrophone(log *slog.Logger) *Microphone {
	if log == nil {
		log = slog.Default()
	}
	return &Microphone{log: log.With("component", "microphone")}
}

func (m *Microphone) Open(ctx context.Context, c transport.CaptureConstraints) (transport.CaptureStream, error) {
	if c.SampleRate <= 0 {
		c.SampleRate = SampleRate
	}
	if c.Channels <= 0 {
		c.Channels = Channels
	}
	if c.FrameSize <= 0 {
		c.FrameSize = DefaultFrameSize
	}
	if c.Channels != 1 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedConstraints, c.Channels)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	buf := make([]float32, c.FrameSize)
	stream, err := portaudio.OpenDefaultStream(c.Channels, 0, float64(c.SampleRate), c.FrameSize, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start input stream: %w", err)
	}

	m.log.Info("microphone opened",
		"sample_rate", c.SampleRate,
		"frame_size", c.FrameSize,
		"echo_cancellation", c.EchoCancellation,
		"noise_suppression", c.NoiseSuppression,
		"auto_gain", c.AutoGainControl)

	s := &captureStream{
		stream: stream,
		buf:    buf,
		frames: make(chan []float32, frameChannelDepth),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		log:    m.log,
	}
	go s.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop()
		case <-s.done:
		}
	}()
	return s, nil
}

type captureStream struct {
	stream *portaudio.Stream
	buf    []float32
	frames chan []float32
	stop   chan struct{}
	done   chan struct{}
	log    *slog.Logger

	stopOnce sync.Once
	stopErr  error
}

func (s *captureStream) Frames() <-chan []float32 {
	return s.frames
}

func (s *captureStream) readLoop() {
	defer close(s.done)
	defer close(s.frames)

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				s.log.Debug("input overflowed")
				continue
			}
			s.log.Error("microphone read failed", "error", err)
			return
		}

		frame := make([]float32, len(s.buf))
		copy(frame, s.buf)
		select {
		case s.frames <- frame:
		case <-s.stop:
			return
		default:
			s.log.Warn("frame buffer full, dropping capture frame")
		}
	}
}

func (s *captureStream) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stop)
		if err := s.stream.Stop(); err != nil {
			s.stopErr = fmt.Errorf("stop input stream: %w", err)
		}
		<-s.done
		if err := s.stream.Close(); err != nil && s.stopErr == nil {
			s.stopErr = fmt.Errorf("close input stream: %w", err)
		}
		_ = portaudio.Terminate()
	})
	return s.stopErr
}
