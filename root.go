package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/filedrop/filedrop-go/internal/config"
	"github.com/filedrop/filedrop-go/internal/controller"
	"github.com/filedrop/filedrop-go/internal/route"
	"github.com/filedrop/filedrop-go/internal/session"
	"github.com/filedrop/filedrop-go/internal/transfer"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagServerURL  string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
// It is available to all subcommands after the root pre-run phase completes.
var resolvedCfg *config.Resolved

// commandRoutes maps protected commands to the view they stand in for, so
// the auth gate is the same guard decision the rendering layer uses.
var commandRoutes = map[string]route.Route{
	"filedrop ls":       route.RouteDashboard,
	"filedrop rm":       route.RouteDashboard,
	"filedrop history":  route.RouteDashboard,
	"filedrop upload":   route.RouteUpload,
	"filedrop download": route.RouteDashboard,
	"filedrop watch":    route.RouteUpload,
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "filedrop",
		Short:   "File vault CLI client",
		Long:    "A CLI client for the filedrop vault: authenticate, then upload and download files with progress and cancellation.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.CLIOverrides{
				ConfigPath: flagConfigPath,
				ServerURL:  flagServerURL,
			})
			if err != nil {
				return err
			}

			resolvedCfg = cfg

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagServerURL, "server", "", "vault server URL")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "machine-readable JSON output")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress status output")

	cmd.AddCommand(
		newLoginCmd(),
		newSignupCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newLsCmd(),
		newUploadCmd(),
		newDownloadCmd(),
		newRmCmd(),
		newHistoryCmd(),
		newWatchCmd(),
	)

	return cmd
}

// buildLogger creates the slog logger from resolved config and flags.
// --verbose forces debug, --quiet forces error.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch resolvedCfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if resolvedCfg != nil && resolvedCfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// newController assembles the controller with a restored session.
// observer may be nil for commands that do not transfer.
func newController(observer transfer.Observer) *controller.Controller {
	logger := buildLogger()
	store := session.NewFileStore(resolvedCfg.SessionPath)
	httpClient := &http.Client{Timeout: resolvedCfg.ConnectTimeout}

	ctrl := controller.New(resolvedCfg, httpClient, store, observer, logger)
	ctrl.Restore()

	return ctrl
}

// gateCommand applies the route guard to a protected command: the same
// decision the UI would make for the command's view. Anonymous callers get
// the redirect-to-login verdict rendered as an error.
func gateCommand(cmd *cobra.Command, ctrl *controller.Controller) error {
	r, ok := commandRoutes[cmd.CommandPath()]
	if !ok {
		return nil
	}

	decision := ctrl.Decide(r)
	if decision.Action == route.RedirectLogin {
		return fmt.Errorf("not logged in, run 'filedrop login' first")
	}

	return nil
}
