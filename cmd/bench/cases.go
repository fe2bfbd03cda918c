// README: Bench checks: storage reachability, schema, auth, the concurrent accept race and list load.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"freightbid/internal/identity"
	"freightbid/internal/types"
	"freightbid/migrations"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	dbErr error
	redis *redis.Client
	jwt   *identity.JWTVerifier
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	r := &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
	if cfg.JWTSecret != "" {
		r.jwt = identity.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	}
	return r
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		r.db, r.dbErr = pgxpool.New(ctx, r.cfg.DSN)
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.dbErr != nil {
					return Result{Status: "FAIL", Note: r.dbErr.Error()}
				}
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Schema: migrated tables exist",
			Run:  schemaCheck,
		},
		{
			Name: "HTTP: health",
			Run: func(ctx context.Context, r *Runner) Result {
				status, latency, err := r.call(ctx, http.MethodGet, base+"/health", "", nil, nil)
				return expect(status, latency, err, http.StatusOK)
			},
		},
		{
			Name: "HTTP: missing token is 401",
			Run: func(ctx context.Context, r *Runner) Result {
				status, latency, err := r.call(ctx, http.MethodGet, base+"/api/bookings", "", nil, nil)
				return expect(status, latency, err, http.StatusUnauthorized)
			},
		},
		{
			Name: "Race: concurrent accepts award exactly one bid",
			Run:  concurrentAccept,
		},
		{
			Name: "Perf: open bookings list",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.jwt == nil {
					return Result{Status: "SKIP", Note: "jwt secret not configured"}
				}
				return perfLoad(ctx, r, base+"/api/bookings", r.token(identity.RoleCarrier))
			},
		},
	}
}

func (r *Runner) token(role identity.Role) string {
	tok, _ := r.jwt.Issue(identity.Principal{
		IdentityID: types.ID("bench-" + uuid.NewString()),
		Role:       role,
		Active:     true,
	}, time.Hour)
	return tok
}

// call sends one JSON request and decodes the response into out when non-nil.
func (r *Runner) call(ctx context.Context, method, url, token string, body, out any) (int, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	latency := time.Since(start)
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, latency, err
		}
		return resp.StatusCode, latency, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, latency, nil
}

func expect(status int, latency time.Duration, err error, want int) Result {
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if status != want {
		return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d want=%d", status, want)}
	}
	return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
}

func schemaCheck(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: "SKIP", Note: "db not configured"}
	}
	tables, err := extractTables(migrations.FS)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, t).Scan(&exists)
		if err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
		if !exists {
			return Result{Status: "FAIL", Note: "missing table " + t}
		}
	}
	return Result{Status: "PASS", Note: fmt.Sprintf("tables=%d", len(tables))}
}

// concurrentAccept opens a booking, collects one bid per worker and fires every
// accept at once. Exactly one must succeed and storage must hold one charge.
func concurrentAccept(ctx context.Context, r *Runner) Result {
	if r.jwt == nil {
		return Result{Status: "SKIP", Note: "jwt secret not configured"}
	}
	base := r.cfg.BaseURL
	owner := r.token(identity.RoleCustomer)

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	status, _, err := r.call(ctx, http.MethodPost, base+"/api/bookings", owner, map[string]any{
		"origin":      "Bench Origin",
		"destination": "Bench Destination",
		"publish":     true,
	}, &created)
	if err != nil || status != http.StatusCreated {
		return Result{Status: "FAIL", Note: fmt.Sprintf("create booking: status=%d err=%v", status, err)}
	}

	bidIDs := make([]uuid.UUID, 0, r.cfg.Concurrency)
	for i := 0; i < r.cfg.Concurrency; i++ {
		var b struct {
			ID uuid.UUID `json:"id"`
		}
		status, _, err := r.call(ctx, http.MethodPost, base+"/api/bookings/"+created.ID.String()+"/bids",
			r.token(identity.RoleCarrier), map[string]string{"amount": fmt.Sprintf("%d.00", 300+i)}, &b)
		if err != nil || status != http.StatusCreated {
			return Result{Status: "FAIL", Note: fmt.Sprintf("submit bid: status=%d err=%v", status, err)}
		}
		bidIDs = append(bidIDs, b.ID)
	}

	start := time.Now()
	wg := sync.WaitGroup{}
	mu := sync.Mutex{}
	succ, conflicts := 0, 0
	for _, id := range bidIDs {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			status, _, err := r.call(ctx, http.MethodPost, base+"/api/bids/"+id.String()+"/accept", owner, nil, nil)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch status {
			case http.StatusOK:
				succ++
			case http.StatusConflict:
				conflicts++
			}
		}(id)
	}
	wg.Wait()
	latency := time.Since(start)

	if succ != 1 {
		return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("success=%d conflict=%d", succ, conflicts)}
	}
	if r.db != nil {
		var accepted, charges int
		err := r.db.QueryRow(ctx, `
			SELECT
				(SELECT count(*) FROM bids b JOIN bookings k ON k.id = b.booking_id WHERE k.uuid = $1 AND b.status = 'accepted'),
				(SELECT count(*) FROM platform_charges c JOIN bookings k ON k.id = c.booking_id WHERE k.uuid = $1)`,
			created.ID).Scan(&accepted, &charges)
		if err != nil {
			return Result{Status: "FAIL", Latency: latency, Note: err.Error()}
		}
		if accepted != 1 || charges != 1 {
			return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("accepted=%d charges=%d", accepted, charges)}
		}
	}
	return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("success=%d conflict=%d", succ, conflicts)}
}

func perfLoad(ctx context.Context, r *Runner, url, token string) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count int64
	var errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, err := r.call(ctx, http.MethodGet, url, token, nil, nil)
				mu.Lock()
				if err != nil || status != http.StatusOK {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

var createTableRe = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)

func extractTables(fsys fs.FS) ([]string, error) {
	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}
	var tables []string
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, err
		}
		for _, m := range createTableRe.FindAllStringSubmatch(string(b), -1) {
			tables = append(tables, m[1])
		}
	}
	return tables, nil
}
