package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/incomeml/income"
	"github.com/YuminosukeSato/incomeml/pkg/log"
	"github.com/YuminosukeSato/incomeml/serving"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		modelPath string
		addr      string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if modelPath == "" {
				modelPath = a.cfg.Model.ArtifactPath
			}
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			logger := log.GetLoggerWithName("serving")

			artifact, err := income.LoadArtifact(modelPath)
			if err != nil {
				return err
			}
			logger.Info("Model loaded",
				log.PathKey, modelPath,
				log.ArtifactIDKey, artifact.ID.String(),
				log.FeaturesKey, len(artifact.Pipeline.Features),
			)

			if !logger.Enabled(cmd.Context(), log.LevelDebug) {
				gin.SetMode(gin.ReleaseMode)
			}
			srv := serving.NewServer(artifact, serving.Options{
				Adjustment: a.cfg.Adjustment,
				RateLimit:  a.cfg.Server.RateLimit,
				Burst:      a.cfg.Server.Burst,
				Logger:     logger,
			}).HTTPServer(addr, a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("Listening", "http.addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
				defer cancel()
				logger.Info("Shutting down")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVarP(&modelPath, "model", "m", "", "artifact path; defaults to model.artifact_path")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address; defaults to server.addr")
	return cmd
}
