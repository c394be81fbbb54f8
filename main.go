// Package main provides the entry point for the prisma CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/biglexj/prisma-vtuber/internal/app"
	"github.com/biglexj/prisma-vtuber/internal/config"
	"github.com/biglexj/prisma-vtuber/internal/events"
	"github.com/biglexj/prisma-vtuber/ui"
)

// shutdownTimeout bounds how long queued speech may keep the process alive
// after chat processing stops.
const shutdownTimeout = 30 * time.Second

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	headless   bool
	debug      bool
	source     string
	backend    string
	engine     string

	rootCmd = &cobra.Command{
		Use:   "prisma [IDENTIFIER]",
		Short: "A VTuber that reads live chat and answers out loud",
		Long: paragraph(
			fmt.Sprintf("\nReads live chat, answers with canned rules or a language model, and %s.", keyword("speaks the reply")),
		),
		Example:          paragraph("prisma https://youtu.be/dQw4w9WgXcQ\nprisma --headless --source console\nprisma --source websocket ws://localhost:8765/chat"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
	}

	debug = viper.GetBool("debug")
	if debug {
		log.SetLevel(log.DebugLevel)
	}
	headless = viper.GetBool("headless")
	if viper.GetString("chat.source") == "console" && !headless {
		// The console source and the TUI would both read stdin.
		log.Debug("Console chat source selected, running headless")
		headless = true
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		headless = true
	}
	return nil
}

// loadConfig turns the merged viper state into a validated Config.
func loadConfig() (config.Config, error) {
	return config.FromViper(viper.GetViper())
}

func execute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var identifier string
	if len(args) > 0 {
		identifier = args[0]
	}

	if headless {
		useStderrLog()
		return runHeadless(cmd.Context(), cfg, identifier)
	}
	return runTUI(cmd.Context(), cfg, identifier)
}

func runTUI(ctx context.Context, cfg config.Config, identifier string) error {
	sink := events.NewChanSink(512)
	a, err := app.New(ctx, cfg, app.Options{Events: sink})
	if err != nil {
		return err
	}

	p := ui.NewProgram(ctx, ui.Config{
		Identifier:  identifier,
		Source:      cfg.Chat.Source,
		Backend:     a.Backend.Name(),
		Engine:      cfg.Speech.Engine,
		PersonaName: a.Persona.Name(),
		Rules:       a.Matcher.Len(),
	}, a, sink.C())

	_, runErr := p.Run()
	sink.Close()

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(sctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Warn("Shutdown failed", "err", err)
	}

	if runErr != nil {
		return fmt.Errorf("unable to run tui program: %w", runErr)
	}
	return nil
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
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")
	rootCmd.PersistentFlags().StringVar(&source, "source", "", "chat source (youtube/websocket/console)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "language model backend (gemini/openai)")
	rootCmd.PersistentFlags().StringVar(&engine, "engine", "", "speech engine (piper/gtts/command/print)")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "run without the TUI, printing a transcript")

	// Config bindings
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("chat.source", rootCmd.PersistentFlags().Lookup("source"))
	_ = viper.BindPFlag("generation.backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("speech.engine", rootCmd.PersistentFlags().Lookup("engine"))
	_ = viper.BindPFlag("headless", rootCmd.Flags().Lookup("headless"))

	config.SetDefaults(viper.GetViper())
	viper.SetDefault("debug", false)
	viper.SetDefault("headless", false)

	rootCmd.AddCommand(configCmd, manCmd, rulesCmd, sayCmd, personaCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "prisma")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "prisma")}, dirs...)
	}

	if c := os.Getenv("PRISMA_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("prisma")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("prisma")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
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

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "prisma.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
