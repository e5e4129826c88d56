// Command chaz runs the Matrix chatbot: it logs in, follows the sync stream,
// and answers messages by assembling room history into LLM requests.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/chazbot/chaz/internal/bot"
	"github.com/chazbot/chaz/internal/config"
	"github.com/chazbot/chaz/internal/matrix"
	"github.com/chazbot/chaz/internal/ratelimit"
	"github.com/chazbot/chaz/internal/tags"
)

func main() {
	var (
		configPath string
		verbose    bool
	)

	root := &cobra.Command{
		Use:           "chaz",
		Short:         "Matrix chatbot backed by LLM chat backends",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath, verbose)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	root.MarkFlagRequired("config")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "chaz:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, verbose bool) error {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	allow, err := cfg.AllowListRegexp()
	if err != nil {
		return err
	}
	if allow == nil {
		log.Warn().Msg("allow_list is empty, nobody can talk to the bot")
	}

	dbPath, err := cfg.DBPath()
	if err != nil {
		return err
	}
	sessionFile, err := cfg.SessionFile()
	if err != nil {
		return err
	}

	store, err := tags.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// A saved session makes the password unnecessary; otherwise ask for it
	// rather than requiring it in the config file.
	password := cfg.Password
	if password == "" {
		if _, err := os.Stat(sessionFile); err != nil {
			password, err = promptPassword(cfg.Username)
			if err != nil {
				return err
			}
		}
	}

	client, err := matrix.Connect(ctx, matrix.Options{
		HomeserverURL: cfg.HomeserverURL,
		Username:      cfg.Username,
		Password:      password,
		SessionFile:   sessionFile,
		AllowList:     allow,
		Log:           log,
	})
	if err != nil {
		return err
	}

	limiter := ratelimit.New(cfg.MessageLimit, cfg.RoomSizeLimit)
	b := bot.New(cfg, client, store, limiter, client, client, allow, log)
	client.OnMessage(b.HandleEvent)

	log.Info().Str("user_id", client.UserID()).Msg("connected, starting sync")
	if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("shutting down")
	return nil
}

func promptPassword(username string) (string, error) {
	fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
