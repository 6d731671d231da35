package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/buildphase/internal/httpapi"
	"github.com/valter-silva-au/buildphase/internal/integration"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the schedule over HTTP",
	Long: `Start the HTTP API and Prometheus endpoint.

The schedule is rebuilt whenever files in the data directory change, so
clients always read the current phase tree.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Service == nil {
			return fmt.Errorf("schedule service not initialized")
		}
		addr := serveAddr
		if addr == "" && Config != nil {
			addr = Config.HTTPAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := logger().Named("serve")
		if _, err := Service.Refresh(ctx); err != nil {
			return fmt.Errorf("building schedule: %w", err)
		}

		gin.SetMode(gin.ReleaseMode)
		router := httpapi.NewRouter(httpapi.NewHandlers(Service, AlertEngine, MetricsGatherer, appVersion), log)
		srv := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info("listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving HTTP: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if DataDir != "" {
			w := integration.NewWatcher(DataDir, watchDebounce(), func(files []string) {
				if _, err := Service.Refresh(gctx); err != nil {
					log.Warn("rebuild after data change", zap.Strings("files", files), zap.Error(err))
				}
			}, log)
			g.Go(func() error {
				return w.Run(gctx)
			})
		}

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to http.addr from .bphconfig)")
	rootCmd.AddCommand(serveCmd)
}
