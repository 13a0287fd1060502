package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"

	"github.com/Ultimatetsuivan/online-auction-sub003/internal/app"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/clock"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/config"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/notify"
	"github.com/Ultimatetsuivan/online-auction-sub003/internal/storage/postgres"
	transporthttp "github.com/Ultimatetsuivan/online-auction-sub003/internal/transport/http"
	"github.com/Ultimatetsuivan/online-auction-sub003/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := log.Default()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("connect to db: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		log.Fatalf("db ping: %v", err)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	var sink notify.Sink
	if cfg.NATS.URL != "" {
		conn, err := nats.Connect(cfg.NATS.URL, nats.Name("auctiond"))
		if err != nil {
			log.Fatalf("connect to nats: %v", err)
		}
		defer conn.Drain()
		sink = notify.NewNATSSink(conn, cfg.NATS.SubjectPrefix)
		logger.Printf("publishing lifecycle events to nats url=%s prefix=%s", cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	} else {
		logger.Printf("WARN: nats url not set, lifecycle events are log-only")
	}
	bridge := notify.NewBridge(sink, logger)

	minIncrement, err := cfg.MinIncrementAmount()
	if err != nil {
		log.Fatalf("min increment: %v", err)
	}

	clk := clock.NewSystem()
	repo := postgres.NewAuctionRepository(pool)
	auctionSvc := app.NewAuctionService(repo, clk, bridge)
	bidSvc := app.NewBidService(repo, clk, bridge,
		app.WithMinIncrement(minIncrement),
		app.WithSelfOutbid(cfg.Auction.AllowSelfOutbid),
	)
	reconciler := app.NewReconciler(repo, clk, bridge, logger,
		app.WithInterval(time.Duration(cfg.Auction.ReconcileInterval)),
		app.WithEndingSoonThreshold(time.Duration(cfg.Auction.EndingSoonThreshold)),
	)

	reconciler.Start()

	mux := http.NewServeMux()
	mux.Handle("/health", transporthttp.HandleHealth(repo))
	mux.Handle("/auctions", transporthttp.HandleAuctions(auctionSvc))
	mux.Handle("/auctions/", transporthttp.HandleAuctionByID(auctionSvc, bidSvc))
	mux.Handle("/admin/reconcile", transporthttp.HandleReconcile(reconciler))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.Server.CORSOrigins, mux), logger)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: handler,
	}

	log.Printf("auctiond listening on :%s", cfg.Server.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server error: %v", err)
		}
	case <-stopCtx.Done():
		log.Printf("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("server shutdown error: %v", err)
	}
	reconciler.Stop()
	log.Printf("server stopped")
}
