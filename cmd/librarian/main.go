package main

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/go-go-golems/librarian/cmd/librarian/cmds"
)

var rootCmd = &cobra.Command{
	Use:   "librarian",
	Short: "librarian is a tool-calling assistant for your book collection",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		initLogger()
	},
	SilenceUsage: true,
}

func initLogger() {
	logLevel := viper.GetString("log-level")
	verbose := viper.GetBool("verbose")
	if verbose && logLevel != "trace" {
		logLevel = "debug"
	}

	err := InitLogger(&logConfig{
		Level:      logLevel,
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
	cobra.CheckErr(err)
}

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
}

func initCommands(rootCmd *cobra.Command, configPath string) error {
	viper.SetEnvPrefix("librarian")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.librarian")

		xdgConfigPath, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(xdgConfigPath + "/librarian")
		}
	}

	err := viper.ReadInConfig()
	// if the file does not exist, continue normally
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file not found; ignore error
	} else if err != nil {
		return err
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	for key, env := range map[string]string{
		"anthropic-api-key": "ANTHROPIC_API_KEY",
		"openai-api-key":    "OPENAI_API_KEY",
	} {
		if err := viper.BindEnv(key, "LIBRARIAN_"+strings.ToUpper(strings.ReplaceAll(key, "-", "_")), env); err != nil {
			return err
		}
	}

	err = viper.BindPFlags(rootCmd.PersistentFlags())
	if err != nil {
		return err
	}

	// --verbose is not parsed yet, but the config file and environment are
	initLogger()

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")

	return nil
}

func InitLogger(config *logConfig) error {
	if config.WithCaller {
		log.Logger = log.With().Caller().Logger()
	}
	// default is json
	var logWriter io.Writer
	if config.LogFormat == "text" {
		logWriter = zerolog.ConsoleWriter{
			Out:     os.Stderr,
			NoColor: !isatty.IsTerminal(os.Stderr.Fd()),
		}
	} else {
		logWriter = os.Stderr
	}

	if config.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, //days
					Compress:   false,
				},
			})
	}

	log.Logger = log.Output(logWriter)

	switch config.Level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.String("config", "", "Path to config file (default ./config.yaml, ~/.librarian/config.yaml)")
	pf.String("log-level", "warn", "Log level (trace, debug, info, warn, error, fatal)")
	pf.String("log-format", "text", "Log format (json, text)")
	pf.String("log-file", "", "Also write logs to this file (rotated)")
	pf.Bool("with-caller", false, "Log caller")
	pf.BoolP("verbose", "v", false, "Print model requests and debug logs")

	pf.String("provider", "claude", "Model backend (claude, openai, fixture)")
	pf.String("model", "", "Model name (defaults to the provider default)")
	pf.Int("max-tokens", 1024, "Maximum tokens per model reply")
	pf.Float64("temperature", 0.1, "Sampling temperature")
	pf.String("anthropic-api-key", "", "Anthropic API key")
	pf.String("anthropic-base-url", "", "Anthropic API base URL")
	pf.String("openai-api-key", "", "OpenAI API key")
	pf.String("openai-base-url", "", "OpenAI API base URL")
	pf.Duration("model-timeout", cmds.DefaultModelTimeout, "Timeout for a single model call")
	pf.Int("retry-max", 2, "Retries after a rate limited or failed model call")
	pf.Duration("retry-backoff", cmds.DefaultRetryBackoff, "Base backoff between model call retries")
	pf.String("fixture", "", "YAML script of model replies, used with --provider fixture")

	pf.Int("max-iterations", 5, "Maximum number of tool calling rounds per answer")
	pf.String("books-db", cmds.DefaultBooksDB, "Path to the book catalog database")
	pf.String("conversations-db", cmds.DefaultConversationsDB, "Path to the conversation database")
	pf.Duration("cache-ttl", cmds.DefaultCacheTTL, "How long genre and author listings are cached (0 disables)")
	pf.String("system-prompt", "", "System prompt template (sprig functions, .Tools and .Now available)")

	// the config flag has to be known before the command line is parsed
	configPath := ""
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			configPath = os.Args[i+1]
		} else if strings.HasPrefix(arg, "--config=") {
			configPath = strings.TrimPrefix(arg, "--config=")
		}
	}
	err := initCommands(rootCmd, configPath)
	cobra.CheckErr(err)

	rootCmd.AddCommand(
		cmds.NewChatCommand(),
		cmds.NewAskCommand(),
		cmds.NewInitDBCommand(),
		cmds.NewConversationsCommand(),
	)
}
