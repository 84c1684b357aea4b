// posbench 压测下单与并发收款。先运行 cmd/seed 准备终端与商品。
//
//	N=2000 CONC=32 go run ./cmd/posbench
package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/d60-Lab/cafe-pos/config"
	"github.com/d60-Lab/cafe-pos/internal/catalog"
	"github.com/d60-Lab/cafe-pos/internal/model"
	"github.com/d60-Lab/cafe-pos/internal/repository"
	"github.com/d60-Lab/cafe-pos/internal/service"
	"github.com/d60-Lab/cafe-pos/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

type latencies struct {
	mu sync.Mutex
	xs []time.Duration
}

func (l *latencies) add(d time.Duration) {
	l.mu.Lock()
	l.xs = append(l.xs, d)
	l.mu.Unlock()
}

func (l *latencies) pct(p float64) time.Duration {
	if len(l.xs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), l.xs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	k = max(0, min(k, len(xs)-1))
	return xs[k]
}

func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	if err := repository.Migrate(db); err != nil {
		panic(err)
	}
	store := repository.NewStore(db)

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}
	lookup := catalog.New(store.Products, store.Terminals, rdb, cfg.Redis.CatalogTTL)
	orders := service.NewOrderService(store, lookup)
	payments := service.NewPaymentService(store, lookup)
	sessions := service.NewSessionService(store, lookup)

	n := envInt("N", 1000)
	conc := envInt("CONC", 16)
	terminalID := int64(envInt("TERMINAL", 1))
	ctx := context.Background()

	if cur, err := sessions.CurrentSession(ctx, terminalID); err == nil {
		if _, err := sessions.CloseSession(ctx, cur.ID, nil); err != nil {
			panic(err)
		}
	} else if !errors.Is(err, service.ErrSessionNotFound) {
		panic(err)
	}

	// 同一终端并发开班，只能成功一次
	var session *model.PosSession
	var openWins, openLosses atomic.Int64
	var sessMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for u := 1; u <= conc; u++ {
		g.Go(func() error {
			s, err := sessions.OpenSession(gctx, service.OpenSessionInput{TerminalID: terminalID, UserID: int64(u)})
			switch {
			case err == nil:
				openWins.Add(1)
				sessMu.Lock()
				session = s
				sessMu.Unlock()
			case errors.Is(err, service.ErrSessionAlreadyOpen):
				openLosses.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		panic(err)
	}
	if session == nil {
		panic("no session opened")
	}

	// 下单
	ids := make([]int64, n)
	var createLat latencies
	t0 := time.Now()
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(conc)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			st := time.Now()
			o, err := orders.CreateOrder(gctx, service.CreateOrderInput{
				SessionID: session.ID,
				Lines: []service.LineInput{
					{ProductID: 1, Quantity: 1 + i%3},
					{ProductID: 2, Quantity: 1},
				},
			})
			if err != nil {
				return err
			}
			createLat.add(time.Since(st))
			ids[i] = o.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		panic(err)
	}
	createDur := time.Since(t0)

	// 每单两次并发全额收款，只能有一次成功
	var payLat latencies
	var settled, alreadyPaid, conflicts atomic.Int64
	t1 := time.Now()
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(conc)
	for _, id := range ids {
		for range 2 {
			g.Go(func() error {
				st := time.Now()
				_, err := payments.ProcessPayment(gctx, service.PaymentInput{OrderID: id, Method: model.PaymentMethodDigital})
				payLat.add(time.Since(st))
				switch {
				case err == nil:
					settled.Add(1)
				case errors.Is(err, service.ErrAlreadyPaid), errors.Is(err, service.ErrOverpayment):
					alreadyPaid.Add(1)
				case errors.Is(err, service.ErrConcurrentUpdate):
					conflicts.Add(1)
				default:
					return err
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		panic(err)
	}
	payDur := time.Since(t1)

	report := must(sessions.GetSession(ctx, session.ID))

	fmt.Printf("N=%d, CONC=%d, session=%d\n", n, conc, session.ID)
	fmt.Printf("OpenSession concurrent: won=%d rejected=%d\n", openWins.Load(), openLosses.Load())
	fmt.Printf("CreateOrder total: %v, per op: %v, p50: %v, p95: %v, p99: %v\n",
		createDur, createDur/time.Duration(n), createLat.pct(0.50), createLat.pct(0.95), createLat.pct(0.99))
	fmt.Printf("ProcessPayment total: %v, p50: %v, p95: %v, p99: %v\n",
		payDur, payLat.pct(0.50), payLat.pct(0.95), payLat.pct(0.99))
	fmt.Printf("settled=%d rejected=%d retry-exhausted=%d catalog-db-loads=%d\n",
		settled.Load(), alreadyPaid.Load(), conflicts.Load(), lookup.ProductLoads())
	fmt.Printf("session orders=%d unpaid=%d sales=%s\n",
		report.Summary.TotalOrders, report.Summary.UnpaidOrders, report.Summary.TotalSales.StringFixed(2))
}
