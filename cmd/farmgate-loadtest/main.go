package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	farmgate "github.com/farmsight/farmgate"
	"github.com/farmsight/farmgate/credstore"
	"github.com/farmsight/farmgate/identity"
)

func main() {
	var (
		devices     = flag.Int("devices", 100000, "number of device sessions to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (bootstrap + redirect)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "fgc", "credential key prefix")
		revalidate  = flag.Bool("revalidate", false, "run background revalidation during the bootstrap phase")
	)
	flag.Parse()

	if *devices <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "devices, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	idp := newMemIdentity()

	cfg := farmgate.DefaultConfig()
	cfg.Store.RedisPrefix = *prefix
	cfg.Revalidate.Disabled = !*revalidate

	engine, err := farmgate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithIdentity(idp).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	deviceIDs := make([]string, *devices)
	fmt.Printf("seeding %d devices...\n", *devices)
	startSeed := time.Now()
	for i := 0; i < *devices; i++ {
		deviceID := fmt.Sprintf("dev-%d", i)
		token := fmt.Sprintf("tok-%d", i)
		profile := profileFor(i)
		deviceIDs[i] = deviceID
		idp.PutToken(token, profile)
		if err := engine.Store().Write(ctx, nil, deviceID, token, profile); err != nil {
			fmt.Fprintf(os.Stderr, "seed write failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	bootstrapStats := runBootstrapPhase(ctx, engine, deviceIDs, *ops, *concurrency)
	engine.WaitRevalidation()
	redirectStats := runRedirectPhase(engine, deviceIDs, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("bootstrap", bootstrapStats)
	printStats("redirect", redirectStats)
}

// runBootstrapPhase restores sessions from the durable store through the
// full Bootstrap path, one synthesized page load per operation.
func runBootstrapPhase(ctx context.Context, engine *farmgate.Engine, deviceIDs []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(deviceIDs))

				req := httptest.NewRequest(http.MethodGet, "/overview", nil)
				req.AddCookie(&http.Cookie{Name: credstore.DeviceCookieName, Value: deviceIDs[idx]})
				rec := httptest.NewRecorder()

				t0 := time.Now()
				state, err := engine.Bootstrap(ctx, rec, req)
				d := time.Since(t0)
				if err != nil || !state.Authenticated() {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

// runRedirectPhase measures the in-memory routing decision against the
// session table populated by the bootstrap phase.
func runRedirectPhase(engine *farmgate.Engine, deviceIDs []string, ops, concurrency int) phaseStats {
	paths := []string{"/admin", "/overview", "/login", "/details/herd-12"}

	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(deviceIDs))
				path := paths[r.Intn(len(paths))]

				t0 := time.Now()
				_, _ = engine.RedirectFor(deviceIDs[idx], path, url.Values{})
				d := time.Since(t0)

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
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

func profileFor(i int) identity.Profile {
	role := identity.RoleFarmer
	if i%10 == 0 {
		role = identity.RoleAdmin
	}
	p := identity.Profile{
		ID:        fmt.Sprintf("u-%d", i),
		Email:     fmt.Sprintf("user%d@farmsight.io", i),
		FirstName: "Load",
		LastName:  fmt.Sprintf("Tester%d", i),
		Role:      role,
	}
	if role == identity.RoleFarmer {
		p.AssignedFarm = &identity.FarmRef{
			ID:   fmt.Sprintf("farm-%d", i%100),
			Name: fmt.Sprintf("Farm %d", i%100),
		}
	}
	return p
}

// memIdentity resolves tokens from an in-memory table so the load test
// never leaves the process.
type memIdentity struct {
	mu       sync.RWMutex
	byToken  map[string]identity.Profile
	failures int64
}

func newMemIdentity() *memIdentity {
	return &memIdentity{byToken: make(map[string]identity.Profile)}
}

func (m *memIdentity) PutToken(token string, p identity.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byToken[token] = p
}

func (m *memIdentity) Login(context.Context, string, string) (*identity.Grant, error) {
	return nil, &identity.APIError{StatusCode: http.StatusNotImplemented, Message: "login not supported in load test"}
}

func (m *memIdentity) Profile(_ context.Context, token string) (*identity.Profile, error) {
	m.mu.RLock()
	p, ok := m.byToken[token]
	m.mu.RUnlock()
	if !ok {
		atomic.AddInt64(&m.failures, 1)
		return nil, &identity.APIError{StatusCode: http.StatusUnauthorized, Message: "unknown token"}
	}
	out := p
	return &out, nil
}
