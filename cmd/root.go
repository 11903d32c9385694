package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/lead-scorer/internal/ai"
	"github.com/spigell/lead-scorer/internal/ai/gemini"
	"github.com/spigell/lead-scorer/internal/httpapi"
	"github.com/spigell/lead-scorer/internal/logger"
	"github.com/spigell/lead-scorer/internal/rules"
	"github.com/spigell/lead-scorer/internal/scoring"
	"github.com/spigell/lead-scorer/internal/secrets"
	"github.com/spigell/lead-scorer/internal/session"
)

const (
	app = "lead-scorer"
)

type Config struct {
	Listen  string         `mapstructure:"listen"`
	HTTP    httpapi.Config `mapstructure:"http"`
	Scoring scoring.Config `mapstructure:"scoring"`
	Rules   rules.Policy   `mapstructure:"rules"`
	AI      *AIConfig      `mapstructure:"ai"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string  `mapstructure:"api-key"`
	APIKeyFile   string  `mapstructure:"api-key-file"`
	Model        string  `mapstructure:"model"`
	MaxRetries   int     `mapstructure:"max-retries"`
	MaxLogLength int     `mapstructure:"max-log-length"`
	Temperature  float32 `mapstructure:"temperature"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "lead-scorer ranks sales leads against an offer using rules and AI intent classification",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	setDefaults()

	viper.SetEnvPrefix("LEAD_SCORER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is lead-scorer.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().Bool("no-ai", false, "disable AI classification; every lead gets the fallback intent")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("no-ai", rootCmd.PersistentFlags().Lookup("no-ai"))
}

func setDefaults() {
	viper.SetDefault("listen", ":8080")
	viper.SetDefault("scoring.concurrency", scoring.DefaultConcurrency)
	viper.SetDefault("scoring.timeout", ai.DefaultTimeout)
	viper.SetDefault("scoring.requests-per-second", 0)
	viper.SetDefault("scoring.burst", 0)
	viper.SetDefault("http.max-upload-bytes", httpapi.DefaultMaxUploadBytes)
	viper.SetDefault("ai.enabled", true)
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.gemini.max-retries", 2)
}

func initConfig() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// Defaults and environment are enough to run; a broken config file is not.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		return nil, errors.New("config is required")
	}

	if viper.GetBool("no-ai") {
		if config.AI == nil {
			config.AI = &AIConfig{}
		}
		config.AI.Enabled = false
	}

	return config, nil
}

// bootstrap prepares the logger, config and an orchestrator around a fresh session.
func bootstrap(ctx context.Context) (*zap.Logger, *Config, *session.Session, *scoring.Orchestrator) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the lead-scorer", zap.String("version", version))
	logger.Debug("starting with config",
		zap.String("listen", config.Listen),
		zap.Int("concurrency", config.Scoring.Concurrency),
		zap.Duration("timeout", config.Scoring.Timeout),
		zap.Float64("requests_per_second", config.Scoring.RequestsPerSecond),
	)

	classifier, err := newClassifier(ctx, config.AI, logger)
	if err != nil {
		logger.Warn("AI classification disabled, every lead will get the fallback intent",
			zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY, GEMINI_API_KEY_FILE or ai.gemini.api-key-file"),
		)
		classifier = ai.Disabled{}
	}

	s := session.New()
	orchestrator := scoring.New(s, rules.NewScorer(config.Rules), classifier, config.Scoring, logger)

	return logger, config, s, orchestrator
}

func newClassifier(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Classifier, error) {
	if cfg == nil || !cfg.Enabled {
		return ai.Disabled{}, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	gcfg := cfg.Gemini
	if gcfg == nil {
		gcfg = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  gcfg.APIKeyFile,
		Value: gcfg.APIKey,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, err
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, gemini.Options{
		Model:       gcfg.Model,
		MaxRetries:  gcfg.MaxRetries,
		Temperature: gcfg.Temperature,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating gemini generator: %w", err)
	}

	return gemini.NewClassifier(generator, gcfg.MaxLogLength, logger), nil
}
