package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netreport/pkg/collector"
	"netreport/pkg/config"
	"netreport/pkg/reporter"
	"netreport/pkg/shell"
	"netreport/pkg/version"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("load .env failed: %v", err)
	}
	defaultCA := os.Getenv("CA_FILE")

	configPath := flag.String("config", os.Getenv("NETREPORT_CONFIG"), "config file (.yaml, .yml or .json)")
	endpoint := flag.String("endpoint", "", "report endpoint base URL (overrides config and NETREPORT_ENDPOINT)")
	once := flag.String("once", "", "collect, send to real|mock and exit instead of starting the shell")
	fake := flag.Bool("fake", false, "report a simulated host instead of querying this one")
	noWatch := flag.Bool("no-watch", false, "do not watch the network path; read it on every collection")
	caFile := flag.String("ca", defaultCA, "CA file for endpoint TLS (optional)")
	insecure := flag.Bool("insecure", false, "skip TLS verify for the endpoint (not recommended)")
	showVersion := flag.Bool("v", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		log.Printf("agent version=%s", version.String())
		return
	}

	cfg := &config.Config{}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	if *endpoint != "" {
		cfg.Endpoint = *endpoint
	}
	if *noWatch {
		cfg.PathWatch.Disabled = true
	}
	cfg.Defaults()

	client, err := buildHTTPClient(*caFile, *insecure, cfg.RequestTimeout())
	if err != nil {
		log.Fatalf("http client build failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	col := buildCollector(cfg, *fake)
	defer col.Close()

	tracker := reporter.NewTracker(cfg.ResetDelay(), func(st reporter.Status) {
		fmt.Fprintf(os.Stdout, "[status] %s\n", shell.RenderStatus(os.Stdout, st))
	})
	defer tracker.Stop()
	rep := reporter.New(reporter.Config{
		BaseURL:   cfg.Endpoint,
		Timeout:   cfg.RequestTimeout(),
		MockDelay: cfg.MockDelay(),
		Client:    client,
	}, tracker)

	log.Printf("agent version=%s endpoint=%s mock=%v", version.String(), rep.Endpoint(), reporter.MockEnabled)
	sh := shell.New(col, rep, tracker, os.Stdout)

	if *once != "" {
		dest, err := reporter.ParseDestination(*once)
		if err != nil {
			log.Fatal(err)
		}
		if err := sh.Once(ctx, dest); err != nil {
			log.Fatalf("report failed: %v", err)
		}
		return
	}
	if err := sh.Run(ctx, os.Stdin); err != nil {
		log.Fatalf("shell: %v", err)
	}
}

func buildCollector(cfg *config.Config, fake bool) *collector.Collector {
	opts := collector.Options{QueryTimeout: cfg.QueryTimeout()}
	if fake {
		return collector.New(opts, collector.Fake())
	}
	hn, providers := collector.NewHost(collector.HostOptions{
		AppKey:           cfg.AppKey,
		ReachabilityHost: cfg.Reachability.Host,
		CaptiveURL:       cfg.Reachability.CaptiveURL,
	})
	if !cfg.PathWatch.Disabled {
		opts.Watcher = collector.NewPathWatcher(hn, cfg.PathWatchInterval(), nil)
	}
	return collector.New(opts, providers...)
}

func buildHTTPClient(caFile string, insecure bool, timeout time.Duration) (*http.Client, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: insecure} //nolint:gosec
	if caFile != "" {
		caCertPool := x509.NewCertPool()
		caData, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		caCertPool.AppendCertsFromPEM(caData)
		tlsConfig.RootCAs = caCertPool
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: tlsConfig,
		},
	}, nil
}
