package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	Secret     string        `mapstructure:"secret"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`

	Media       MediaConfig       `mapstructure:"media"`
	Denoise     DenoiseConfig     `mapstructure:"denoise"`
	VAD         VADConfig         `mapstructure:"vad"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	Synthesis   SynthesisConfig   `mapstructure:"synthesis"`
	Sink        SinkConfig        `mapstructure:"sink"`
	Dialogue    DialogueConfig    `mapstructure:"dialogue"`
	Control     ControlConfig     `mapstructure:"control"`
	ICEServers  []string          `mapstructure:"ice_servers"`
}

type MediaConfig struct {
	SampleRate    int           `mapstructure:"sample_rate"`
	FrameDuration time.Duration `mapstructure:"frame_duration"`
	ChunkQueue    int           `mapstructure:"chunk_queue"`
}

type DenoiseConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type VADConfig struct {
	Threshold      float64       `mapstructure:"threshold"`
	SilenceTimeout time.Duration `mapstructure:"silence_timeout"`
}

type RecognitionConfig struct {
	Mode          string        `mapstructure:"mode"` // mock | exec
	SampleRate    int           `mapstructure:"sample_rate"`
	ChunkDuration time.Duration `mapstructure:"chunk_duration"`
	Command       string        `mapstructure:"command"`
	ModelPath     string        `mapstructure:"model_path"`
	Language      string        `mapstructure:"language"`
}

type SynthesisConfig struct {
	Mode       string `mapstructure:"mode"` // mock | exec
	SampleRate int    `mapstructure:"sample_rate"`
	Command    string `mapstructure:"command"`
	Voice      string `mapstructure:"voice"`
}

type SinkConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DialogueConfig struct {
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

type ControlConfig struct {
	BufferSize int           `mapstructure:"buffer_size"`
	FinalWait  time.Duration `mapstructure:"final_wait"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")

	v.SetDefault("media.sample_rate", 48000)
	v.SetDefault("media.frame_duration", "20ms")
	v.SetDefault("media.chunk_queue", 16)

	v.SetDefault("denoise.enabled", true)

	v.SetDefault("vad.threshold", 0.5)
	v.SetDefault("vad.silence_timeout", "800ms")

	v.SetDefault("recognition.mode", "mock")
	v.SetDefault("recognition.sample_rate", 16000)
	v.SetDefault("recognition.chunk_duration", "200ms")

	v.SetDefault("synthesis.mode", "mock")
	v.SetDefault("synthesis.sample_rate", 16000)
	v.SetDefault("synthesis.voice", "default")

	v.SetDefault("sink.url", "http://localhost:9090")
	v.SetDefault("sink.timeout", "2s")

	v.SetDefault("dialogue.url", "http://localhost:9091")
	v.SetDefault("dialogue.timeout", "5s")
	v.SetDefault("dialogue.max_attempts", 3)
	v.SetDefault("dialogue.retry_delay", "200ms")

	v.SetDefault("control.buffer_size", 64)
	v.SetDefault("control.final_wait", "500ms")

	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
}

// FrameSamples is the per-channel sample count of one media frame.
func (m MediaConfig) FrameSamples() int {
	return int(time.Duration(m.SampleRate) * m.FrameDuration / time.Second)
}

// ChunkSamples is the sample count of one recognition chunk.
func (r RecognitionConfig) ChunkSamples() int {
	return int(time.Duration(r.SampleRate) * r.ChunkDuration / time.Second)
}
