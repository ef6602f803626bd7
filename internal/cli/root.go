package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/campusbridge/lti-outcomes/internal/logger"
	"github.com/campusbridge/lti-outcomes/internal/version"
)

var appLogger *slog.Logger

// connection flags shared by the commands that talk to a service endpoint
var (
	serviceURL  string
	consumerKey string
	secret      string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:               "outcomes-client",
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	Short:             "LTI Basic Outcomes client CLI",
	Long:              `Client CLI for exercising an LTI 1.1 Basic Outcomes service: send grade messages, request rosters and work with sourcedId tokens`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		appLogger = logger.InitLogger(logger.ParseLogLevel(logLevel), "dev")
		return nil
	},
}

func Execute() {
	v := version.Get()
	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serviceURL, "url", "http://localhost:8080/service", "Outcomes service endpoint")
	rootCmd.PersistentFlags().StringVar(&consumerKey, "key", "", "OAuth consumer key")
	rootCmd.PersistentFlags().StringVar(&secret, "secret", "", "OAuth shared secret")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(gradeCmd)
	rootCmd.AddCommand(rosterCmd)
	rootCmd.AddCommand(sourcedIDCmd)
}
