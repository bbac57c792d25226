package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/gatekeeper"
	"github.com/MrEthical07/gatekeeper/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// seededUsers is an in-memory credential provider for load generation.
type seededUsers struct {
	passwords map[string]string
}

func (u *seededUsers) VerifyCredentials(_ context.Context, username, password string) (bool, error) {
	stored, ok := u.passwords[username]
	return ok && stored == password, nil
}

func newLoadtestCmd() *cobra.Command {
	var (
		users       int
		concurrency int
		ops         int
		redisAddr   string
	)

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure login and validate latency against an in-process engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			if users <= 0 || concurrency <= 0 || ops <= 0 {
				return errors.New("users, concurrency, and ops must be > 0")
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), users, concurrency, ops, redisAddr)
		},
	}

	cmd.Flags().IntVar(&users, "users", 10000, "Number of distinct users to log in")
	cmd.Flags().IntVar(&concurrency, "concurrency", 256, "Number of concurrent workers")
	cmd.Flags().IntVar(&ops, "ops", 200000, "Validate operations to run")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", config.RedisMemory, "Redis address for the session registry (memory starts an embedded one)")
	return cmd
}

func runLoadtest(ctx context.Context, out io.Writer, users, concurrency, ops int, redisAddr string) error {
	rc := cfg.Redis
	rc.Addr = redisAddr
	client, closeRedis, err := openRedis(ctx, rc)
	if err != nil {
		return err
	}
	defer closeRedis()

	provider := &seededUsers{passwords: make(map[string]string, users)}
	for i := 0; i < users; i++ {
		provider.passwords[fmt.Sprintf("user-%d", i)] = fmt.Sprintf("pw-%d", i)
	}

	engineCfg := cfg.EngineConfig()
	engineCfg.Audit.Enabled = false
	engineCfg.Security.LoginThrottle = false

	quiet := logrus.New()
	quiet.Out = io.Discard
	builder := gatekeeper.New().
		WithConfig(engineCfg).
		WithUserProvider(provider).
		WithLogger(quiet)
	if client != nil {
		builder = builder.WithRedis(client)
		fmt.Fprintf(out, "using redis at %s\n", redisAddr)
	} else {
		fmt.Fprintln(out, "using in-memory registry")
	}
	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	tokens := make([]string, users)
	loginStats := runPhase(concurrency, users, func(i int, _ *rand.Rand) error {
		name := fmt.Sprintf("user-%d", i)
		res, err := engine.Login(ctx, name, provider.passwords[name])
		if err != nil {
			return err
		}
		tokens[i] = res.Token
		return nil
	})

	validateStats := runPhase(concurrency, ops, func(_ int, r *rand.Rand) error {
		token := tokens[r.Intn(len(tokens))]
		if token == "" {
			return errors.New("no token")
		}
		_, err := engine.Validate(ctx, token, gatekeeper.RoleUser)
		return err
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "login", loginStats)
	printStats(out, "validate", validateStats)
	return nil
}

// runPhase calls op ops times across concurrency workers and records each call's latency.
func runPhase(concurrency, ops int, op func(i int, r *rand.Rand) error) phaseStats {
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
				t0 := time.Now()
				err := op(i, r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
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
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
