// README: Benchmark runner against a live freight API; executes HTTP/DB/Redis checks and prints results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BaseURL     string
	DSN         string
	RedisAddr   string
	JWTSecret   string
	JWTIssuer   string
	Strict      bool
	Timeout     time.Duration
	Concurrency int
	Duration    time.Duration
}

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	counts := tally(NewRunner(cfg).RunAll(ctx))
	fmt.Printf("\n== Summary ==\nPASS=%d FAIL=%d SKIP=%d\n", counts["PASS"], counts["FAIL"], counts["SKIP"])

	if failed(counts, cfg.Strict) {
		os.Exit(1)
	}
}

func tally(results []Result) map[string]int {
	counts := map[string]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}

// failed reports whether the run should exit non-zero; strict runs also fail on skips.
func failed(counts map[string]int, strict bool) bool {
	return counts["FAIL"] > 0 || (strict && counts["SKIP"] > 0)
}

// loadConfig reads flags; connection settings default to the API's FREIGHT_* variables
// after an optional .env, so the bench can share the server's settings.
func loadConfig() Config {
	_ = godotenv.Load()

	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	flag.StringVar(&cfg.DSN, "dsn", os.Getenv("FREIGHT_DB_DSN"), "Postgres DSN; empty skips storage checks")
	flag.StringVar(&cfg.RedisAddr, "redis", os.Getenv("FREIGHT_REDIS_ADDR"), "Redis address; empty skips the Redis check")
	flag.StringVar(&cfg.JWTSecret, "jwt-secret", os.Getenv("FREIGHT_JWT_SECRET"), "HS256 secret shared with the API")
	flag.StringVar(&cfg.JWTIssuer, "jwt-issuer", "freightbid", "JWT issuer")
	flag.BoolVar(&cfg.Strict, "strict", false, "Fail on skipped checks")
	flag.DurationVar(&cfg.Timeout, "timeout", time.Minute, "Total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", 20, "Concurrent accepts and load workers")
	flag.DurationVar(&cfg.Duration, "duration", 10*time.Second, "Duration for the load check")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}
