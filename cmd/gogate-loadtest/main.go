// Command gogate-loadtest seeds sessions through session.Manager and then
// drives concurrent validations against Redis or an embedded miniredis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/MrEthical07/goGate/session"
)

const loadUserAgent = "gogate-loadtest/1.0"

type options struct {
	sessions    int
	users       int
	tenants     int
	concurrency int
	ops         int
	rps         float64
	redisAddr   string
	prefix      string
}

type seeded struct {
	id     string
	ip     string
	device string
}

func main() {
	var opts options
	flag.IntVar(&opts.sessions, "sessions", 20000, "number of sessions to seed")
	flag.IntVar(&opts.users, "users", 5000, "distinct users the sessions are spread over")
	flag.IntVar(&opts.tenants, "tenants", 16, "distinct tenants the users belong to")
	flag.IntVar(&opts.concurrency, "concurrency", 256, "number of concurrent workers")
	flag.IntVar(&opts.ops, "ops", 200000, "validations to run")
	flag.Float64Var(&opts.rps, "rps", 0, "cap on validations per second; 0 is unlimited")
	flag.StringVar(&opts.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "redis address; miniredis when empty")
	flag.StringVar(&opts.prefix, "prefix", "gs", "session key prefix")
	flag.Parse()

	if err := run(context.Background(), opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	if opts.sessions <= 0 || opts.users <= 0 || opts.tenants <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
		return errors.New("sessions, users, tenants, concurrency and ops must be > 0")
	}

	client, closeRedis, err := openRedis(opts.redisAddr)
	if err != nil {
		return err
	}
	defer closeRedis()

	cfg := session.DefaultConfig()
	cfg.Timeout = time.Hour
	// Every seeded user may hold all of its sessions at once.
	cfg.MaxConcurrentSessions = opts.sessions/opts.users + 1
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	manager := session.NewManager(session.NewRedisStore(client, opts.prefix), cfg, session.WithLogger(logger))

	fmt.Printf("seeding %d sessions over %d users...\n", opts.sessions, opts.users)
	states := make([]seeded, opts.sessions)
	create := runPhase(ctx, opts.sessions, opts.concurrency, nil, func(i int, _ *rand.Rand) error {
		st := seeded{
			ip:     fmt.Sprintf("10.%d.%d.%d", (i>>16)&0xff, (i>>8)&0xff, i&0xff),
			device: fmt.Sprintf("device-%d", i),
		}
		sess, err := manager.Create(ctx, session.CreateParams{
			UserID:            fmt.Sprintf("user-%d", i%opts.users),
			TenantID:          fmt.Sprintf("tenant-%d", (i%opts.users)%opts.tenants),
			IP:                st.ip,
			UserAgent:         loadUserAgent,
			DeviceFingerprint: st.device,
		})
		if err != nil {
			return err
		}
		st.id = sess.SessionID
		states[i] = st // each index has exactly one writer
		return nil
	})
	if create.firstErr != nil && create.failures == int64(opts.sessions) {
		return fmt.Errorf("seed failed: %w", create.firstErr)
	}

	live := states[:0]
	for _, st := range states {
		if st.id != "" {
			live = append(live, st)
		}
	}

	var limiter *rate.Limiter
	if opts.rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.rps), opts.concurrency)
	}
	validate := runPhase(ctx, opts.ops, opts.concurrency, limiter, func(_ int, r *rand.Rand) error {
		st := live[r.Intn(len(live))]
		res, err := manager.Validate(ctx, st.id, session.RequestInfo{
			IP:          st.ip,
			UserAgent:   loadUserAgent,
			Fingerprint: st.device,
		})
		if err != nil {
			return err
		}
		if !res.Valid {
			return errors.New("session rejected")
		}
		return nil
	})

	fmt.Println("---- results ----")
	fmt.Println(create.summary("create"))
	fmt.Println(validate.summary("validate"))
	return nil
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
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
