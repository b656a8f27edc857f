package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type client struct {
	http *http.Client
	base string
}

func (c *client) open(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/sessions", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("open session: status %d", resp.StatusCode)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *client) close(id string) {
	req, err := http.NewRequest(http.MethodDelete, c.base+"/sessions/"+id, nil)
	if err != nil {
		return
	}
	if resp, err := c.http.Do(req); err == nil {
		resp.Body.Close()
	}
}

func (c *client) exec(ctx context.Context, id, line string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/sessions/"+id+"/exec", strings.NewReader(line))
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: status %d", line, resp.StatusCode)
	}
	return nil
}

func main() {
	concurrency := flag.Int("concurrency", 10, "Number of concurrent sessions")
	duration := flag.Duration("duration", 10*time.Second, "Test duration")
	addr := flag.String("addr", "http://localhost:7070", "Node base URL")
	keys := flag.Int("keys", 10000, "Key space size")
	rollbackRatio := flag.Float64("rollback", 0.2, "Fraction of transactions rolled back")
	flag.Parse()

	fmt.Printf("Starting Benchmark: %d sessions, %v duration, target %s\n", *concurrency, *duration, *addr)

	var ops, txns, errs int64
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	c := &client{http: &http.Client{Timeout: 5 * time.Second}, base: *addr}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < *concurrency; i++ {
		i := i // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			id, err := c.open(gctx)
			if err != nil {
				return err
			}
			defer c.close(id)

			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(i)))
			for gctx.Err() == nil {
				// One transaction: BEGIN, a few writes and reads, then COMMIT or ROLLBACK.
				lines := []string{"BEGIN"}
				for n := 1 + rng.Intn(4); n > 0; n-- {
					key := fmt.Sprintf("user%d", rng.Intn(*keys))
					lines = append(lines,
						fmt.Sprintf("SET %s val%d", key, rng.Intn(1000)),
						"GET "+key)
				}
				if rng.Float64() < *rollbackRatio {
					lines = append(lines, "ROLLBACK")
				} else {
					lines = append(lines, "COMMIT")
				}

				for _, line := range lines {
					if err := c.exec(gctx, id, line); err != nil {
						if gctx.Err() != nil {
							return nil
						}
						if n := atomic.AddInt64(&errs, 1); n <= 5 {
							fmt.Printf("Error: %v\n", err)
						}
						continue
					}
					atomic.AddInt64(&ops, 1)
				}
				atomic.AddInt64(&txns, 1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		fmt.Printf("Benchmark aborted: %v\n", err)
	}
	elapsed := time.Since(start)

	fmt.Println("Benchmark Finished.")
	fmt.Printf("Total Ops: %d\n", ops)
	fmt.Printf("Transactions: %d\n", txns)
	fmt.Printf("Errors: %d\n", errs)
	fmt.Printf("Duration: %v\n", elapsed)
	fmt.Printf("RPS: %.2f\n", float64(ops)/elapsed.Seconds())
}
