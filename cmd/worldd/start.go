package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/godyy/gworld/world"
	"github.com/godyy/gworld/world/session"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var (
	// 配置文件路径
	configPath string

	// 指标服务地址，为空不启动
	metricsAddr string
)

func init() {
	flags := startCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "worldd.yaml", "config file, yaml or toml")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "address to serve prometheus metrics on")
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the world server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		config, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		logger, err := createLogger(&config.Log)
		if err != nil {
			return errors.WithMessage(err, "create logger")
		}

		w, err := world.CreateWorld(&config.World, world.Params{Logger: logger})
		if err != nil {
			return errors.WithMessage(err, "create world")
		}

		var ms *http.Server
		if metricsAddr != "" {
			session.RegisterMetrics()
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			ms = &http.Server{Addr: metricsAddr, Handler: mux}
			go func() {
				if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("metrics server: %v", err)
				}
			}()
		}

		if err := w.Start(); err != nil {
			return errors.WithMessage(err, "start world")
		}

		<-ctx.Done()
		stop()
		logger.Info("shutting down")

		err = w.Stop()
		if ms != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = multierr.Append(err, ms.Shutdown(sctx))
		}
		return err
	},
}
