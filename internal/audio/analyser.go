package audio

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	DefaultFFTSize     = 1024
	defaultMinDecibels = -100.0
	defaultMaxDecibels = -30.0
	defaultSmoothing   = 0.8
)

type AnalyserConfig struct {
	FFTSize     int
	MinDecibels float64
	MaxDecibels float64
	Smoothing   float64
}

// Analyser is a tap on the capture graph that exposes byte-scaled frequency
// magnitudes of the most recent FFTSize samples, the way a browser
// AnalyserNode does.
type Analyser struct {
	cfg    AnalyserConfig
	fft    *fourier.FFT
	window []float64

	mu           sync.Mutex
	ring         []float32
	pos          int
	filled       bool
	smoothed     []float64
	seq          []float64
	coeffs       []complex128
	disconnected bool
}

func NewAnalyser(cfg AnalyserConfig) *Analyser {
	if cfg.FFTSize <= 0 || cfg.FFTSize&(cfg.FFTSize-1) != 0 {
		cfg.FFTSize = DefaultFFTSize
	}
	if cfg.MinDecibels == 0 && cfg.MaxDecibels == 0 {
		cfg.MinDecibels = defaultMinDecibels
		cfg.MaxDecibels = defaultMaxDecibels
	}
	if cfg.Smoothing < 0 || cfg.Smoothing >= 1 {
		cfg.Smoothing = defaultSmoothing
	}

	return &Analyser{
		cfg:      cfg,
		fft:      fourier.NewFFT(cfg.FFTSize),
		window:   blackman(cfg.FFTSize),
		ring:     make([]float32, cfg.FFTSize),
		smoothed: make([]float64, cfg.FFTSize/2),
		seq:      make([]float64, cfg.FFTSize),
		coeffs:   make([]complex128, cfg.FFTSize/2+1),
	}
}

func (a *Analyser) BinCount() int {
	return a.cfg.FFTSize / 2
}

func (a *Analyser) Write(samples []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disconnected {
		return
	}
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos++
		if a.pos == len(a.ring) {
			a.pos = 0
			a.filled = true
		}
	}
}

// FrequencyData fills dst with magnitudes in 0..255, where 0 maps to
// MinDecibels and 255 to MaxDecibels. It returns the number of bins written.
func (a *Analyser) FrequencyData(dst []uint8) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := min(len(dst), len(a.smoothed))
	if a.disconnected {
		clear(dst[:n])
		return n
	}

	size := a.cfg.FFTSize
	for i := 0; i < size; i++ {
		idx := i
		if a.filled {
			idx = (a.pos + i) % size
		}
		a.seq[i] = float64(a.ring[idx]) * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.seq)

	span := a.cfg.MaxDecibels - a.cfg.MinDecibels
	k := a.cfg.Smoothing
	for i := 0; i < len(a.smoothed); i++ {
		c := a.coeffs[i]
		mag := math.Hypot(real(c), imag(c)) / float64(size)
		a.smoothed[i] = k*a.smoothed[i] + (1-k)*mag
		if i >= n {
			continue
		}

		db := math.Inf(-1)
		if a.smoothed[i] > 0 {
			db = 20 * math.Log10(a.smoothed[i])
		}
		scaled := 255 * (db - a.cfg.MinDecibels) / span
		switch {
		case scaled <= 0 || math.IsNaN(scaled):
			dst[i] = 0
		case scaled >= 255:
			dst[i] = 255
		default:
			dst[i] = uint8(scaled)
		}
	}
	return n
}

func (a *Analyser) Disconnect() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disconnected = true
	clear(a.ring)
	clear(a.smoothed)
}

func blackman(n int) []float64 {
	const alpha = 0.16
	a0 := (1 - alpha) / 2
	a1 := 0.5
	a2 := alpha / 2

	w := make([]float64, n)
	for i := range w {
		x := float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(2*math.Pi*x) + a2*math.Cos(4*math.Pi*x)
	}
	return w
}
