package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stoik/tempmail/internal/models"
	"github.com/stoik/tempmail/services/tempmail/internal/config"
	"github.com/stoik/tempmail/services/tempmail/internal/db"
	"github.com/stoik/tempmail/services/tempmail/internal/prefs"
	"github.com/stoik/tempmail/services/tempmail/internal/provider"
	"github.com/stoik/tempmail/services/tempmail/internal/session"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "tempmail",
	Short: "Disposable mailbox client",
	Long:  "Generates disposable addresses on Mail.tm or Guerrilla Mail and follows their inbox",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return configureLogging(viper.GetString("log.level"), viper.GetString("log.format"))
	},
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ./config.yaml)")
	flags.String("provider.default", "mailtm", "Provider to start with: 'mailtm' or 'guerrilla'")
	flags.String("provider.mailtm.api_url", "https://api.mail.tm", "Mail.tm API base URL")
	flags.String("provider.guerrilla.api_url", "https://api.guerrillamail.com/ajax.php", "Guerrilla Mail AJAX endpoint")
	flags.Duration("poll.interval", session.DefaultPollInterval, "Inbox refresh interval")
	flags.String("database.url", "", "Database connection URL for preferences (optional)")
	flags.String("log.level", "info", "Log level")
	flags.String("log.format", "text", "Log format: 'text' or 'json'")

	// Bind flags to viper
	for _, name := range []string{
		"provider.default",
		"provider.mailtm.api_url",
		"provider.guerrilla.api_url",
		"poll.interval",
		"database.url",
		"log.level",
		"log.format",
	} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./services/tempmail")
	}
	viper.SetEnvPrefix("tempmail")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func configureLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)

	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// newManager builds a session Manager over every configured provider
func newManager(cfg *config.Config) (*session.Manager, error) {
	kind, err := models.ParseProviderKind(cfg.Provider.Default)
	if err != nil {
		return nil, err
	}

	return session.NewManager(kind, provider.NewProviders(cfg.Provider),
		session.WithPollInterval(cfg.Poll.Interval))
}

// openPrefs returns the database store when database.url is set, the local file store otherwise
func openPrefs(ctx context.Context, cfg *config.Config) (prefs.Store, func(), error) {
	if cfg.Database.URL == "" {
		store, err := prefs.NewFileStore(cfg.Prefs.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}

	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return prefs.NewPostgresStore(pool), pool.Close, nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
