// Command sprada logs in to an admin API, hammers one collection with
// concurrent authenticated reads and reports latency, refresh and error counts.
//
// With -mock it runs against an in-process backend, so it needs no network:
//
//	go run ./cmd/sprada -mock -expire -concurrency 64 -requests 2000 -metrics
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	sprada "github.com/Khatrip009/adminsprada-sub000"
	"github.com/Khatrip009/adminsprada-sub000/apierr"
	"github.com/Khatrip009/adminsprada-sub000/internal/fakeapi"
	"github.com/Khatrip009/adminsprada-sub000/metrics/export/prometheus"
	"github.com/Khatrip009/adminsprada-sub000/resource"
	"github.com/alicebob/miniredis/v2"
	"github.com/common-nighthawk/go-figure"
	"github.com/redis/go-redis/v9"
)

const appname = "sprada"

type options struct {
	baseURL     string
	email       string
	password    string
	collection  string
	method      string
	path        string
	body        string
	timeout     time.Duration
	storage     string
	sessionFile string
	redisAddr   string
	concurrency int
	requests    int
	seed        int
	mock        bool
	expire      bool
	metrics     bool
	quiet       bool
	logLevel    string
	logFormat   string
}

func main() {
	var o options
	flag.StringVar(&o.baseURL, "base-url", sprada.EnvString("SPRADA_API_BASE_URL", ""), "API base URL; ignored with -mock")
	flag.StringVar(&o.email, "email", sprada.EnvString("SPRADA_EMAIL", "admin@example.com"), "login email")
	flag.StringVar(&o.password, "password", sprada.EnvString("SPRADA_PASSWORD", "correct-horse"), "login password")
	flag.StringVar(&o.collection, "collection", "products", "collection to read")
	flag.StringVar(&o.method, "method", http.MethodGet, "method for -path")
	flag.StringVar(&o.path, "path", "", "send one request to this path instead of the list run")
	flag.StringVar(&o.body, "body", "", "JSON body for -path")
	flag.DurationVar(&o.timeout, "timeout", 0, "per-request timeout; 0 uses the configured default")
	flag.StringVar(&o.storage, "storage", string(sprada.StorageMemory), "session storage: memory, file or redis")
	flag.StringVar(&o.sessionFile, "session-file", "", "session file for -storage file")
	flag.StringVar(&o.redisAddr, "redis-addr", "", "redis address for -storage redis; if empty, REDIS_ADDR env or miniredis is used")
	flag.IntVar(&o.concurrency, "concurrency", 16, "concurrent workers")
	flag.IntVar(&o.requests, "requests", 500, "total list requests")
	flag.IntVar(&o.seed, "seed", 10, "with -mock, records to create before the run")
	flag.BoolVar(&o.mock, "mock", false, "serve an in-process backend")
	flag.BoolVar(&o.expire, "expire", false, "with -mock, expire every access token before the run")
	flag.BoolVar(&o.metrics, "metrics", false, "print Prometheus metrics when done")
	flag.BoolVar(&o.quiet, "quiet", false, "skip the banner")
	flag.StringVar(&o.logLevel, "log-level", sprada.EnvString("SPRADA_LOG_LEVEL", "warn"), "log level")
	flag.StringVar(&o.logFormat, "log-format", sprada.EnvString("SPRADA_LOG_FORMAT", "text"), "log format: json or text")
	flag.Parse()

	if o.concurrency <= 0 || o.requests <= 0 || o.seed < 0 {
		fmt.Fprintln(os.Stderr, "concurrency and requests must be > 0, seed must be >= 0")
		os.Exit(2)
	}
	if !o.quiet {
		displayAppname(appname)
	}
	if err := run(context.Background(), o); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appname, err)
		os.Exit(1)
	}
}

func displayAppname(name string) {
	figure.NewFigure(name, "cybermedium", true).Print()
	fmt.Println()
}

func run(ctx context.Context, o options) error {
	logger := sprada.NewLogger(o.logLevel, o.logFormat)

	var api *fakeapi.Server
	if o.mock {
		api = fakeapi.New(fakeapi.WithLogger(logger))
		if _, err := api.AddUser(o.email, o.password, "Demo Admin", 1); err != nil {
			return fmt.Errorf("seed user: %w", err)
		}
		addr, stop, err := serve(api)
		if err != nil {
			return err
		}
		defer stop()
		o.baseURL = "http://" + addr
		fmt.Printf("using in-process API at %s\n", o.baseURL)
	}

	cfg := sprada.DefaultConfig()
	cfg.API.BaseURL = o.baseURL
	cfg.Session.Storage = sprada.StorageKind(o.storage)
	cfg.Session.FilePath = o.sessionFile

	b := sprada.New().WithConfig(cfg).WithLogger(logger)
	if cfg.Session.Storage == sprada.StorageRedis {
		rdb, cleanup, err := redisClient(o.redisAddr)
		if err != nil {
			return err
		}
		defer cleanup()
		b = b.WithRedis(rdb)
	}

	client, err := b.Build()
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}
	defer client.Close()

	if !client.IsAuthenticated() {
		user, err := client.Login(ctx, o.email, o.password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if user != nil {
			fmt.Printf("logged in as %s\n", user.Email)
		}
	} else {
		fmt.Println("restored saved session")
	}

	coll := resource.NewCollection[resource.Record](client, o.collection)
	for i := 0; api != nil && i < o.seed; i++ {
		_, err := coll.Create(ctx, resource.Record{
			"name": fmt.Sprintf("item %d", i+1),
			"slug": fmt.Sprintf("item-%d-%d", time.Now().UnixNano(), i),
		})
		if err != nil {
			return fmt.Errorf("seed %s: %w", o.collection, err)
		}
	}

	if o.expire {
		if api == nil {
			return errors.New("-expire needs -mock")
		}
		api.Expire()
		fmt.Println("expired all access tokens")
	}

	var reqOpts []sprada.RequestOption
	if o.timeout > 0 {
		reqOpts = append(reqOpts, sprada.WithTimeout(o.timeout))
	}

	fmt.Println("---- results ----")
	if o.path != "" {
		if err := oneShot(ctx, client, o, reqOpts); err != nil {
			return err
		}
	} else {
		printStats("list "+o.collection, runListPhase(ctx, coll, o.requests, o.concurrency, o.timeout))
	}
	snap := client.MetricsSnapshot()
	fmt.Printf("refresh: requested=%d started=%d success=%d failure=%d\n",
		snap.Counters[sprada.MetricRefreshRequested],
		snap.Counters[sprada.MetricRefreshStarted],
		snap.Counters[sprada.MetricRefreshSuccess],
		snap.Counters[sprada.MetricRefreshFailure],
	)
	if api != nil {
		fmt.Printf("backend: logins=%d refreshes=%d\n", api.LoginCalls(), api.RefreshCalls())
	}

	if o.metrics {
		out, err := prometheus.NewPrometheusExporter(client).Render()
		if err != nil {
			return err
		}
		fmt.Println("---- metrics ----")
		fmt.Print(out)
	}
	return nil
}

func serve(h http.Handler) (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mock api stopped", slog.String("error", err.Error()))
		}
	}()
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return ln.Addr().String(), stop, nil
}

func redisClient(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func oneShot(ctx context.Context, client *sprada.Client, o options, opts []sprada.RequestOption) error {
	var body any
	if o.body != "" {
		body = json.RawMessage(o.body)
	}
	res, err := client.Do(ctx, strings.ToUpper(o.method), o.path, body, opts...)
	if err != nil {
		var reqErr *apierr.RequestError
		if errors.As(err, &reqErr) {
			fmt.Printf("%s %s: kind=%s status=%d body=%v\n", o.method, o.path, reqErr.Kind, reqErr.Status, reqErr.RawBody)
			return nil
		}
		return err
	}
	fmt.Printf("%s %s: status=%d\n%s\n", o.method, o.path, res.Status, res.Text())
	return nil
}

func runListPhase(ctx context.Context, coll *resource.Collection[resource.Record], requests, concurrency int, timeout time.Duration) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, requests)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if int(atomic.AddInt64(&cursor, 1)) > requests {
					return
				}
				callCtx, cancel := ctx, context.CancelFunc(func() {})
				if timeout > 0 {
					callCtx, cancel = context.WithTimeout(ctx, timeout)
				}
				t0 := time.Now()
				_, err := coll.List(callCtx, resource.ListOptions{Limit: 50})
				d := time.Since(t0)
				cancel()
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
