package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/eleven-am/dinevoice/internal/audio"
	"github.com/eleven-am/dinevoice/internal/credentials"
	"github.com/eleven-am/dinevoice/internal/gateway"
	"github.com/eleven-am/dinevoice/internal/metrics"
	"github.com/eleven-am/dinevoice/internal/realtime"
	"github.com/eleven-am/dinevoice/internal/tools"
	"github.com/eleven-am/dinevoice/internal/transport"
	"github.com/eleven-am/dinevoice/internal/voicesession"
)

func ProvideMetrics() *metrics.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

func ProvideTokenSource(cfg *Config, m *metrics.Metrics, logger *slog.Logger) (transport.TokenSource, error) {
	switch cfg.TokenIssuer {
	case "ephemeral", "":
		return credentials.NewEphemeralIssuer(credentials.EphemeralConfig{
			APIBase:           cfg.APIBase,
			APIKey:            cfg.APIKey,
			Model:             cfg.RealtimeModel,
			Voice:             cfg.RealtimeVoice,
			RequestsPerSecond: cfg.IssuerRPS,
			Burst:             cfg.IssuerBurst,
		}, &http.Client{Timeout: 20 * time.Second}, m, logger)
	case "oauth":
		return credentials.NewOAuthIssuer(credentials.OAuthConfig{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			TokenURL:     cfg.OAuthTokenURL,
			Scopes:       cfg.OAuthScopes,
		}, m)
	case "static":
		if cfg.APIKey == "" {
			return nil, credentials.ErrMissingAPIKey
		}
		return credentials.StaticIssuer{Key: cfg.APIKey}, nil
	default:
		return nil, fmt.Errorf("unknown token issuer %q", cfg.TokenIssuer)
	}
}

func ProvideRealtimeConfig(cfg *Config) realtime.Config {
	rc := realtime.DefaultConfig()
	if cfg.RealtimeURL != "" {
		rc.URL = cfg.RealtimeURL
	}
	if cfg.RealtimeModel != "" {
		rc.Model = cfg.RealtimeModel
	}
	if cfg.RealtimeVoice != "" {
		rc.Voice = cfg.RealtimeVoice
	}
	if cfg.Instructions != "" {
		rc.Instructions = cfg.Instructions
	}
	if cfg.TranscribeModel != "" {
		rc.TranscribeModel = cfg.TranscribeModel
	}
	rc.Temperature = realtime.Float(cfg.Temperature)
	rc.MaxOutputTokens = cfg.MaxOutputTokens
	if !cfg.ServerVAD {
		rc.TurnDetection = nil
	}
	if cfg.CaptureSampleRate > 0 {
		rc.Capture.SampleRate = cfg.CaptureSampleRate
	}
	rc.VAD.Threshold = cfg.VADThreshold
	rc.VAD.PlaybackThreshold = cfg.VADPlaybackThreshold
	rc.VAD.BufferLength = cfg.VADBins
	rc.VAD.ConsecutiveFrames = cfg.VADFrames
	rc.VAD.FrameInterval = cfg.VADInterval
	return rc
}

func ProvideSpeaker(lc fx.Lifecycle, logger *slog.Logger) *audio.Speaker {
	speaker := audio.NewSpeaker(logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return speaker.Close()
		},
	})
	return speaker
}

type VoiceDepsParams struct {
	fx.In

	Tokens  transport.TokenSource
	Tools   *tools.Registry
	Speaker *audio.Speaker
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func ProvideRealtimeDeps(p VoiceDepsParams) realtime.Deps {
	return realtime.Deps{
		Tokens:     p.Tokens,
		Microphone: audio.NewMicrophone(p.Logger),
		Player:     p.Speaker,
		Tools:      p.Tools,
		Metrics:    p.Metrics,
	}
}

func ProvideBridge(lc fx.Lifecycle, client *redis.Client, logger *slog.Logger) *gateway.Bridge {
	bridge := gateway.NewBridge(client, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return bridge.Close()
		},
	})
	return bridge
}

func ProvideVoiceSessionManager(
	lc fx.Lifecycle,
	cfg *Config,
	rc realtime.Config,
	deps realtime.Deps,
	bridge *gateway.Bridge,
	logger *slog.Logger,
) *voicesession.Manager {
	mgr := voicesession.NewManager(voicesession.ManagerConfig{
		Publisher:   bridge,
		Realtime:    rc,
		Deps:        deps,
		MaxSessions: cfg.MaxSessions,
		Log:         logger,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return mgr.Close()
		},
	})
	return mgr
}

func ProvideGatewayHandler(mgr *voicesession.Manager, bridge *gateway.Bridge, reg *tools.Registry, logger *slog.Logger) *gateway.Handler {
	return gateway.NewHandler(mgr, bridge, reg, logger)
}

func RegisterVoiceRoutes(lc fx.Lifecycle, e *echo.Echo, h *gateway.Handler, cfg *Config) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})

	g := e.Group("/api/v1/voice", gateway.RateLimiter(ctx, gateway.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateBurst,
	}))
	h.RegisterRoutes(g)
}

var VoiceModule = fx.Options(
	fx.Provide(
		ProvideMetrics,
		ProvideTokenSource,
		ProvideRealtimeConfig,
		ProvideSpeaker,
		ProvideRealtimeDeps,
		ProvideBridge,
		ProvideVoiceSessionManager,
		ProvideGatewayHandler,
	),
	fx.Invoke(RegisterVoiceRoutes),
)
