// Package config loads ctcdecode's runtime configuration from flags,
// environment variables, and an optional config file, in that order of
// precedence, using pflag/viper the way the rest of this stack does.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig   `mapstructure:"paths"`
	Decoder  DecoderConfig `mapstructure:"decoder"`
	Server   ServerConfig  `mapstructure:"server"`
	LogLevel string        `mapstructure:"log_level"`
}

type PathsConfig struct {
	DictPath     string `mapstructure:"dict_path"`
	NgramModel   string `mapstructure:"ngram_model"`
	ONNXManifest string `mapstructure:"onnx_manifest"`
}

// DecoderConfig holds the beam-search/greedy decoding parameters of
// spec.md §4.2/§4.3.
type DecoderConfig struct {
	Backend       string  `mapstructure:"backend"`
	BlankID       int     `mapstructure:"blank_id"`
	BeamSize      int     `mapstructure:"beam_size"`
	BeamSizeToken int     `mapstructure:"beam_size_token"`
	BeamThreshold float64 `mapstructure:"beam_threshold"`
	LMWeight      float64 `mapstructure:"lm_weight"`
}

type ServerConfig struct {
	ListenAddr        string `mapstructure:"listen_addr"`
	Workers           int    `mapstructure:"workers"`
	ShutdownTimeout   int    `mapstructure:"shutdown_timeout_secs"`
	MaxEmissionFloats int    `mapstructure:"max_emission_floats"`
	RequestTimeout    int    `mapstructure:"request_timeout_secs"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			DictPath:     "models/dict.txt",
			NgramModel:   "models/lm.binary",
			ONNXManifest: "models/onnx/manifest.json",
		},
		Decoder: DecoderConfig{
			Backend:       DecoderBackendBeamSearch,
			BlankID:       0,
			BeamSize:      25,
			BeamSizeToken: 100,
			BeamThreshold: 25.0,
			LMWeight:      0.0,
		},
		Server: ServerConfig{
			ListenAddr:        ":8080",
			Workers:           2,
			ShutdownTimeout:   30,
			MaxEmissionFloats: 8 << 20,
			RequestTimeout:    60,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-dict-path", defaults.Paths.DictPath, "Path to the token vocabulary file")
	fs.String("paths-ngram-model", defaults.Paths.NgramModel, "Path to the binary n-gram LM model")
	fs.String("paths-onnx-manifest", defaults.Paths.ONNXManifest, "Path to the acoustic model's ONNX manifest JSON")
	fs.String("backend", defaults.Decoder.Backend, "Decoder backend (greedy|beamsearch)")
	fs.Int("blank-id", defaults.Decoder.BlankID, "CTC blank token id")
	fs.Int("beam-size", defaults.Decoder.BeamSize, "Maximum number of surviving hypotheses per timestep")
	fs.Int("beam-size-token", defaults.Decoder.BeamSizeToken, "Maximum number of candidate tokens considered per timestep")
	fs.Float64("beam-threshold", defaults.Decoder.BeamThreshold, "Log-probability admission window below the best candidate")
	fs.Float64("lm-weight", defaults.Decoder.LMWeight, "Language model fusion weight")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent decode requests for the serve command")
	fs.Int("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain timeout in seconds")
	fs.Int("max-emission-floats", defaults.Server.MaxEmissionFloats, "Maximum POST /decode emissions size in float32 elements")
	fs.Int("request-timeout", defaults.Server.RequestTimeout, "Per-request decode timeout in seconds")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("CTCDECODE")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("ctcdecode")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.dict_path", c.Paths.DictPath)
	v.SetDefault("paths.ngram_model", c.Paths.NgramModel)
	v.SetDefault("paths.onnx_manifest", c.Paths.ONNXManifest)
	v.SetDefault("decoder.backend", c.Decoder.Backend)
	v.SetDefault("decoder.blank_id", c.Decoder.BlankID)
	v.SetDefault("decoder.beam_size", c.Decoder.BeamSize)
	v.SetDefault("decoder.beam_size_token", c.Decoder.BeamSizeToken)
	v.SetDefault("decoder.beam_threshold", c.Decoder.BeamThreshold)
	v.SetDefault("decoder.lm_weight", c.Decoder.LMWeight)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.shutdown_timeout_secs", c.Server.ShutdownTimeout)
	v.SetDefault("server.max_emission_floats", c.Server.MaxEmissionFloats)
	v.SetDefault("server.request_timeout_secs", c.Server.RequestTimeout)
	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("paths.dict_path", "paths-dict-path")
	v.RegisterAlias("paths.ngram_model", "paths-ngram-model")
	v.RegisterAlias("paths.onnx_manifest", "paths-onnx-manifest")
	v.RegisterAlias("decoder.backend", "backend")
	v.RegisterAlias("decoder.blank_id", "blank-id")
	v.RegisterAlias("decoder.beam_size", "beam-size")
	v.RegisterAlias("decoder.beam_size_token", "beam-size-token")
	v.RegisterAlias("decoder.beam_threshold", "beam-threshold")
	v.RegisterAlias("decoder.lm_weight", "lm-weight")
	v.RegisterAlias("server.listen_addr", "server-listen-addr")
	v.RegisterAlias("server.workers", "workers")
	v.RegisterAlias("server.shutdown_timeout_secs", "shutdown-timeout")
	v.RegisterAlias("server.max_emission_floats", "max-emission-floats")
	v.RegisterAlias("server.request_timeout_secs", "request-timeout")
	v.RegisterAlias("log_level", "log-level")
}
