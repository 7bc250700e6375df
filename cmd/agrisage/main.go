package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kerala-agrisage/agrisage/internal/client"
)

var (
	// Global flags
	serverURL   string
	sessionFile string
	language    string
	timeout     time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "agrisage",
	Short: "Kerala AgriSage from the terminal",
	Long: `agrisage talks to an AgriSage server: ask the farming assistant, diagnose
crop images, assess crop risk and check weather and market prices.

Sign in once with 'agrisage login'; the session is kept in --session.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("AGRISAGE_URL", "http://localhost:8080"), "AgriSage server URL (or set AGRISAGE_URL)")
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session", defaultSessionFile(), "File holding the signed-in session")
	rootCmd.PersistentFlags().StringVarP(&language, "lang", "l", "en", "Answer language: en, ml or hi")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Timeout for a single command")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newClient() (*client.Client, error) {
	return client.New(client.Options{BaseURL: serverURL, SessionFile: sessionFile})
}

// commandContext is cancelled by Ctrl+C or when --timeout elapses.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".agrisage-session.json"
	}
	return filepath.Join(dir, "agrisage", "session.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
