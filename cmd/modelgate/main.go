package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/go-arcade/modelgate/internal/bootstrap"
	"github.com/go-arcade/modelgate/pkg/log"
	"github.com/go-arcade/modelgate/pkg/version"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:          "modelgate",
	Short:        "modelgate is a multi-tenant persistence gateway",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations, the health monitor and the ops server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			return bootstrap.Run(ctx, app)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			applied, err := bootstrap.Migrate(ctx, app)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d migrations applied\n", app.Backend.Provider(), len(applied))
			return err
		})
	},
}

var healthTimeout time.Duration

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Print the readiness report and exit non-zero when not ready",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, app *bootstrap.App) error {
			ctx, cancel := context.WithTimeout(ctx, healthTimeout)
			defer cancel()
			st := app.Monitor.Refresh(ctx)
			out, err := sonic.ConfigStd.MarshalIndent(st, "", "  ")
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(out)); err != nil {
				return err
			}
			if !st.Ready() {
				return fmt.Errorf("not ready: database=%s storage=%s", st.Database.State, st.Storage.State)
			}
			return nil
		})
	},
}

func withApp(ctx context.Context, fn func(context.Context, *bootstrap.App) error) (err error) {
	app, cleanup, err := bootstrap.Bootstrap(ctx, configFile, initApp)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cleanup(); cerr != nil {
			log.Warnw("cleanup failed", "error", cerr)
		}
	}()
	return fn(ctx, app)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "conf", "c", "", "config file path, e.g. -c conf.d/config.toml")
	healthCmd.Flags().DurationVar(&healthTimeout, "timeout", 10*time.Second, "overall deadline for the probes")
	rootCmd.AddCommand(serveCmd, migrateCmd, healthCmd, version.VersionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
