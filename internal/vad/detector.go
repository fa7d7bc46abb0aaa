package vad

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultThreshold         = 30.0
	DefaultBufferLength      = 512
	DefaultConsecutiveFrames = 3
	DefaultFrameInterval     = 16 * time.Millisecond

	// DefaultPlaybackBoost is added to Threshold while the assistant is
	// audible. The capture path has no echo cancellation, so speaker bleed
	// must not read as the user talking.
	DefaultPlaybackBoost = 15.0
)

// Source is a frequency analysis tap on the capture graph.
type Source interface {
	FrequencyData(dst []uint8) int
	Disconnect()
}

type Config struct {
	Threshold float64

	// PlaybackThreshold replaces Threshold while SetPlaying(true) is in
	// effect. It never drops below Threshold.
	PlaybackThreshold float64

	BufferLength      int
	ConsecutiveFrames int
	FrameInterval     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.PlaybackThreshold <= 0 {
		c.PlaybackThreshold = c.Threshold + DefaultPlaybackBoost
	}
	c.PlaybackThreshold = max(c.PlaybackThreshold, c.Threshold)
	if c.BufferLength <= 0 {
		c.BufferLength = DefaultBufferLength
	}
	if c.ConsecutiveFrames <= 0 {
		c.ConsecutiveFrames = DefaultConsecutiveFrames
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = DefaultFrameInterval
	}
	return c
}

// Detector turns the mean spectral level of a Source into a debounced
// activity signal. The counter rises one step per loud frame and falls one
// step per quiet frame, so activity starts after ConsecutiveFrames loud
// frames but only ends once the counter has drained back to zero.
type Detector struct {
	cfg        Config
	source     Source
	onActivity func(active bool)
	log        *slog.Logger

	mu      sync.Mutex
	bins    []uint8
	counter int
	active  bool
	playing bool

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func New(source Source, cfg Config, onActivity func(active bool), log *slog.Logger) *Detector {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Detector{
		cfg:        cfg,
		source:     source,
		onActivity: onActivity,
		log:        log.With("component", "vad"),
		bins:       make([]uint8, cfg.BufferLength),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (d *Detector) Config() Config {
	return d.cfg
}

// Start begins sampling the source every FrameInterval until ctx is done or
// Stop is called. Calling Start more than once has no effect.
func (d *Detector) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		go d.run(ctx)
	})
}

func (d *Detector) run(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.cfg.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stop:
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

func (d *Detector) tick() {
	if d.source == nil {
		return
	}
	d.mu.Lock()
	n := d.source.FrequencyData(d.bins)
	level := mean(d.bins[:n])
	d.mu.Unlock()

	d.Observe(level)
}

// Observe feeds one frame's mean level through the debounce and reports the
// edge it produced, if any. The activity callback runs outside the lock.
func (d *Detector) Observe(level float64) (edge, active bool) {
	d.mu.Lock()
	threshold := d.cfg.Threshold
	if d.playing {
		threshold = d.cfg.PlaybackThreshold
	}
	if level > threshold {
		d.counter = min(d.counter+1, d.cfg.ConsecutiveFrames)
	} else {
		d.counter = max(d.counter-1, 0)
	}

	switch {
	case !d.active && d.counter >= d.cfg.ConsecutiveFrames:
		d.active = true
		edge = true
	case d.active && d.counter == 0:
		d.active = false
		edge = true
	}
	active = d.active
	d.mu.Unlock()

	if edge {
		d.log.Debug("voice activity changed", "active", active, "level", level)
		if d.onActivity != nil {
			d.onActivity(active)
		}
	}
	return edge, active
}

// SetPlaying switches between the normal and playback thresholds.
func (d *Detector) SetPlaying(playing bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.playing = playing
}

func (d *Detector) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Stop halts the ticker and disconnects the source. It is safe to call
// more than once, and before Start.
func (d *Detector) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
		started := true
		d.startOnce.Do(func() { started = false })
		if started {
			<-d.done
		}
		if d.source != nil {
			d.source.Disconnect()
		}
	})
}

func mean(bins []uint8) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum int
	for _, b := range bins {
		sum += int(b)
	}
	return float64(sum) / float64(len(bins))
}
