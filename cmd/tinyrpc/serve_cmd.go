package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tiny-rpc/arith"
	"tiny-rpc/discovery"
	"tiny-rpc/middleware"
	"tiny-rpc/registry"
	"tiny-rpc/server"
)

type serveOpts struct {
	*rootOpts
	config        server.Config
	rateLimit     float64
	burst         int
	metricsAddr   string
	etcdEndpoints []string
	shutdownWait  time.Duration
}

func newServe(parent *rootOpts) *serveOpts {
	return &serveOpts{rootOpts: parent, config: server.DefaultConfig()}
}

func (opts *serveOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the arith methods until interrupted",
		RunE:  opts.RunE,
	}
	opts.config.BindFlags(cmd.Flags())
	cmd.Flags().Float64Var(&opts.rateLimit, "rate-limit", 0, "requests per second admitted (0 for no limit)")
	cmd.Flags().IntVar(&opts.burst, "burst", 1, "rate limiter burst size")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "listen address for /metrics and /healthz (empty to disable)")
	cmd.Flags().StringSliceVar(&opts.etcdEndpoints, "etcd-endpoints", nil, "etcd endpoints to announce the service to")
	cmd.Flags().DurationVar(&opts.shutdownWait, "shutdown-timeout", 5*time.Second, "how long to wait for the request in flight on shutdown")
	return cmd
}

func (opts *serveOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return newUsageError("expected no (non-flag) arguments")
	}
	if opts.rateLimit < 0 {
		return newUsageError("--rate-limit must not be negative")
	}
	logger := opts.Logger
	defer logger.Sync()

	methods := registry.New()
	if err := arith.Register(methods); err != nil {
		return err
	}

	var svrOpts []server.Option
	svrOpts = append(svrOpts, server.WithLogger(logger.With(zap.String("component", "server"))))
	if len(opts.etcdEndpoints) > 0 {
		etcd, err := discovery.NewEtcdRegistry(opts.etcdEndpoints)
		if err != nil {
			return err
		}
		defer etcd.Close()
		svrOpts = append(svrOpts, server.WithDiscovery(etcd))
	}

	svr, err := server.NewServer(methods, opts.config, svrOpts...)
	if err != nil {
		return err
	}
	svr.Use(middleware.Logging(logger.With(zap.String("component", "rpc"))))
	svr.Use(middleware.Metrics())
	if opts.rateLimit > 0 {
		svr.Use(middleware.RateLimit(opts.rateLimit, opts.burst))
	}

	errc := make(chan error, 2)
	if opts.metricsAddr != "" {
		go func() {
			logger := logger.With(zap.String("transport", "HTTP"))
			logger.Info("serving metrics", zap.String("addr", opts.metricsAddr))
			errc <- errors.Wrap(http.ListenAndServe(opts.metricsAddr, newMetricsHandler()), "metrics")
		}()
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- svr.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	var exitErr error
	select {
	case err := <-serveErr:
		return err
	case err := <-errc:
		exitErr = err
	case s := <-sig:
		logger.Info("received signal", zap.Stringer("signal", s))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.shutdownWait)
	defer cancel()
	if err := svr.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "shutting down")
	}
	if err := <-serveErr; err != nil {
		return err
	}
	return exitErr
}

func newMetricsHandler() http.Handler {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods("GET")
	return router
}
