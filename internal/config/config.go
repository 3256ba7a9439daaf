package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/tikozap/backend/internal/quality"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	AdminKey        string        `mapstructure:"ADMIN_KEY"`
	AIURL           string        `mapstructure:"AI_URL"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	MaxUploadSizeMB int64         `mapstructure:"MAX_UPLOAD_MB"`
	MetricsEnabled  bool          `mapstructure:"METRICS_ENABLED"`
	PublicBaseURL   string        `mapstructure:"PUBLIC_BASE_URL"`
	VoiceHandoff    string        `mapstructure:"VOICE_HANDOFF_NUMBER"`
	TwilioToken     string        `mapstructure:"TWILIO_AUTH_TOKEN"`

	AssistantBaseURL   string `mapstructure:"ASSISTANT_BASE_URL"`
	AssistantModel     string `mapstructure:"ASSISTANT_MODEL"`
	AssistantAPIKey    string `mapstructure:"ASSISTANT_API_KEY"`
	AssistantMaxTokens int    `mapstructure:"ASSISTANT_MAX_TOKENS"`

	RedisURL  string        `mapstructure:"REDIS_URL"`
	DedupeTTL time.Duration `mapstructure:"DEDUPE_TTL"`

	QualityFirstTokenSlowMs     float64 `mapstructure:"QUALITY_FIRST_TOKEN_SLOW_MS"`
	QualityFirstTokenModerateMs float64 `mapstructure:"QUALITY_FIRST_TOKEN_MODERATE_MS"`
	QualityTotalSlowMs          float64 `mapstructure:"QUALITY_TOTAL_SLOW_MS"`
	QualityTotalModerateMs      float64 `mapstructure:"QUALITY_TOTAL_MODERATE_MS"`
	QualityMOSPoor              float64 `mapstructure:"QUALITY_MOS_POOR"`
	QualityMOSFair              float64 `mapstructure:"QUALITY_MOS_FAIR"`
	QualityJitterMs             float64 `mapstructure:"QUALITY_JITTER_MS"`
	QualityPacketLossPct        float64 `mapstructure:"QUALITY_PACKET_LOSS_PCT"`
	QualityRoundTripMs          float64 `mapstructure:"QUALITY_ROUND_TRIP_MS"`
	QualityRegionReviewScore    int     `mapstructure:"QUALITY_REGION_REVIEW_SCORE"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 20)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("ASSISTANT_MAX_TOKENS", 400)
	v.SetDefault("DEDUPE_TTL", "10m")

	// AutomaticEnv only resolves keys viper already knows about, so every
	// threshold gets an explicit default.
	th := quality.DefaultThresholds()
	v.SetDefault("QUALITY_FIRST_TOKEN_SLOW_MS", th.FirstTokenSlowMs)
	v.SetDefault("QUALITY_FIRST_TOKEN_MODERATE_MS", th.FirstTokenModerateMs)
	v.SetDefault("QUALITY_TOTAL_SLOW_MS", th.TotalSlowMs)
	v.SetDefault("QUALITY_TOTAL_MODERATE_MS", th.TotalModerateMs)
	v.SetDefault("QUALITY_MOS_POOR", th.MOSPoor)
	v.SetDefault("QUALITY_MOS_FAIR", th.MOSFair)
	v.SetDefault("QUALITY_JITTER_MS", th.JitterMs)
	v.SetDefault("QUALITY_PACKET_LOSS_PCT", th.PacketLossPct)
	v.SetDefault("QUALITY_ROUND_TRIP_MS", th.RoundTripMs)
	v.SetDefault("QUALITY_REGION_REVIEW_SCORE", th.RegionReviewScore)

	// Keys with no default still need binding for AutomaticEnv + Unmarshal.
	for _, key := range []string{
		"DATABASE_URL", "ADMIN_KEY", "AI_URL", "PUBLIC_BASE_URL",
		"ASSISTANT_BASE_URL", "ASSISTANT_MODEL", "ASSISTANT_API_KEY", "REDIS_URL",
		"VOICE_HANDOFF_NUMBER", "TWILIO_AUTH_TOKEN",
	} {
		_ = v.BindEnv(key)
	}
}

func (c Config) QualityThresholds() quality.Thresholds {
	return quality.Thresholds{
		FirstTokenSlowMs:     c.QualityFirstTokenSlowMs,
		FirstTokenModerateMs: c.QualityFirstTokenModerateMs,
		TotalSlowMs:          c.QualityTotalSlowMs,
		TotalModerateMs:      c.QualityTotalModerateMs,
		MOSPoor:              c.QualityMOSPoor,
		MOSFair:              c.QualityMOSFair,
		JitterMs:             c.QualityJitterMs,
		PacketLossPct:        c.QualityPacketLossPct,
		RoundTripMs:          c.QualityRoundTripMs,
		RegionReviewScore:    c.QualityRegionReviewScore,
	}
}
