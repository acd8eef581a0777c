// Package main provides the entry point for the AnkiVox CLI application.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/ankivox/internal/anki"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string

	rootCmd = &cobra.Command{
		Use:   "ankivox",
		Short: "Give your Anki notes a voice",
		Long: paragraph(
			fmt.Sprintf("\nGenerate %s audio for Anki notes and attach it to a field, powered by Azure Speech.", keyword("text-to-speech")),
		),
		SilenceErrors: false,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
	}
)

// credentials is the environment-derived service configuration, built once
// at startup and passed into the adapters.
type credentials struct {
	AnkiURL      string `env:"ANKI_CONNECT_URL"`
	SpeechKey    string `env:"AZURE_SPEECH_KEY"`
	SpeechRegion string `env:"AZURE_SPEECH_REGION"`
	DefaultVoice string `env:"DEFAULT_VOICE"`
}

// loadCredentials reads service settings from the environment, falling
// back to the config file for anything the environment left empty.
func loadCredentials() (credentials, error) {
	creds, err := env.ParseAs[credentials]()
	if err != nil {
		return credentials{}, fmt.Errorf("error parsing config: %w", err)
	}

	if creds.AnkiURL == "" {
		creds.AnkiURL = viper.GetString("anki_connect_url")
	}
	if creds.SpeechKey == "" {
		creds.SpeechKey = viper.GetString("azure.key")
	}
	if creds.SpeechRegion == "" {
		creds.SpeechRegion = viper.GetString("azure.region")
	}
	if creds.DefaultVoice == "" {
		creds.DefaultVoice = viper.GetString("azure.voice")
	}

	if creds.AnkiURL == "" {
		creds.AnkiURL = anki.DefaultURL
	}
	return creds, nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))

	viper.SetDefault("anki_connect_url", anki.DefaultURL)
	viper.SetDefault("temp_dir", "temp_audios")

	rootCmd.AddCommand(syncCmd, voicesCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "ankivox")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find a configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "ankivox")}, dirs...)
	}

	if c := os.Getenv("ANKIVOX_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("ankivox")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("ankivox")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	configFile = filepath.Join(dirs[0], "ankivox.yml")
}
