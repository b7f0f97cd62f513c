package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"netreport/pkg/api"
	"netreport/pkg/db"
	"netreport/pkg/store"
	"netreport/pkg/version"
)

func main() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("load .env failed: %v", err)
		}
	}
	addr := flag.String("addr", envOr("CONTROLLER_ADDR", ":8080"), "listen address")
	storeType := flag.String("store", envOr("REPORT_STORE", "memory"), "store backend: memory|sqlite|mysql|consul (consul requires build tag consul)")
	sqlitePath := flag.String("sqlite-path", "./data/reports.db", "sqlite database file (when store=sqlite)")
	consulAddr := flag.String("consul-addr", "127.0.0.1:8500", "consul address (when store=consul)")
	tlsCert := flag.String("tls-cert", "", "TLS cert path (enables HTTPS if set with --tls-key)")
	tlsKey := flag.String("tls-key", "", "TLS key path (enables HTTPS if set with --tls-cert)")
	showVersion := flag.Bool("v", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		log.Printf("controller version=%s", version.String())
		return
	}

	reports, err := openStore(*storeType, *sqlitePath, *consulAddr)
	if err != nil {
		log.Fatalf("open %s store: %v", *storeType, err)
	}
	defer reports.Close()

	hub := api.NewReportHub()
	mux := http.NewServeMux()
	api.RegisterRoutes(mux, reports, hub)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("controller listening on %s store=%s version=%s", *addr, *storeType, version.String())
	if *tlsCert != "" && *tlsKey != "" {
		cfg, errTLS := api.ServerTLSConfig(*tlsCert, *tlsKey)
		if errTLS != nil {
			log.Fatalf("failed to build TLS config: %v", errTLS)
		}
		srv.TLSConfig = cfg
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("controller stopped")
}

func openStore(kind, sqlitePath, consulAddr string) (store.ReportStore, error) {
	switch kind {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		return store.OpenSQLite(sqlitePath)
	case "mysql":
		gdb, err := db.Init()
		if err != nil {
			return nil, err
		}
		return store.NewGormStore(gdb)
	case "consul":
		return store.NewConsulStore(consulAddr)
	}
	return nil, errors.New("unsupported store type: " + kind)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
