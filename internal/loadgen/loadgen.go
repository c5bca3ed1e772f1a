// Package loadgen drives the conversion endpoint the way a crowd of users
// would and reports how the answers were spread across replicas.
package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/neomorfeo/celsiusify/internal/domain"
)

// Config controls one load run.
type Config struct {
	Target   string        // base URL, e.g. http://localhost:8080
	Users    int           // concurrent simulated users
	Duration time.Duration // run length; zero means until ctx is done
	Rate     float64       // total requests per second across users; zero means unlimited
	MinWait  time.Duration // pause between a user's requests
	MaxWait  time.Duration
	Client   *http.Client
}

// DefaultConfig mirrors the load profile the service is usually tested with.
func DefaultConfig() Config {
	return Config{
		Target:   "http://localhost:8080",
		Users:    10,
		Duration: 30 * time.Second,
		MinWait:  5 * time.Millisecond,
		MaxWait:  100 * time.Millisecond,
	}
}

func (c Config) validate() error {
	if _, err := url.ParseRequestURI(c.Target); err != nil {
		return fmt.Errorf("target %q: %w", c.Target, err)
	}
	if c.Users < 1 {
		return fmt.Errorf("users must be at least 1, got %d", c.Users)
	}
	if c.MinWait < 0 || c.MaxWait < c.MinWait {
		return fmt.Errorf("wait range [%s, %s] is invalid", c.MinWait, c.MaxWait)
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must not be negative, got %v", c.Rate)
	}
	return nil
}

// Report aggregates a load run.
type Report struct {
	Requests     int
	Failures     int
	ByIdentifier map[string]int
	Errors       map[string]int
	Elapsed      time.Duration
}

// Replica is one row of Report.Replicas.
type Replica struct {
	AppIdentifier string
	Responses     int
}

// Replicas lists the identifiers seen, busiest first.
func (r Report) Replicas() []Replica {
	out := make([]Replica, 0, len(r.ByIdentifier))
	for id, n := range r.ByIdentifier {
		out = append(out, Replica{AppIdentifier: id, Responses: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Responses != out[j].Responses {
			return out[i].Responses > out[j].Responses
		}
		return out[i].AppIdentifier < out[j].AppIdentifier
	})
	return out
}

// Print writes a human-readable summary of r to w.
func (r Report) Print(w io.Writer) {
	fmt.Fprintf(w, "requests: %d  failures: %d  elapsed: %s\n", r.Requests, r.Failures, r.Elapsed.Round(time.Millisecond))
	if r.Elapsed > 0 {
		fmt.Fprintf(w, "throughput: %.1f req/s\n", float64(r.Requests)/r.Elapsed.Seconds())
	}

	replicas := r.Replicas()
	fmt.Fprintf(w, "replicas: %d\n", len(replicas))
	for _, rep := range replicas {
		share := 0.0
		if ok := r.Requests - r.Failures; ok > 0 {
			share = 100 * float64(rep.Responses) / float64(ok)
		}
		fmt.Fprintf(w, "  %s  %6d  %5.1f%%\n", rep.AppIdentifier, rep.Responses, share)
	}

	if len(r.Errors) > 0 {
		kinds := make([]string, 0, len(r.Errors))
		for k := range r.Errors {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		fmt.Fprintln(w, "errors:")
		for _, k := range kinds {
			fmt.Fprintf(w, "  %6d  %s\n", r.Errors[k], k)
		}
	}
}

// collector is the shared, mutex-guarded Report under construction.
type collector struct {
	mu     sync.Mutex
	report Report
}

func (c *collector) success(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.Requests++
	c.report.ByIdentifier[id]++
}

func (c *collector) failure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.Requests++
	c.report.Failures++
	c.report.Errors[err.Error()]++
}

// Run drives cfg.Users users against cfg.Target until cfg.Duration elapses or
// ctx is cancelled. Failed requests are counted, not returned.
func Run(ctx context.Context, cfg Config) (Report, error) {
	if err := cfg.validate(); err != nil {
		return Report{}, err
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	col := &collector{report: Report{
		ByIdentifier: make(map[string]int),
		Errors:       make(map[string]int),
	}}

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Users; i++ {
		u := &user{
			cfg:     cfg,
			limiter: limiter,
			rnd:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
			col:     col,
		}
		g.Go(func() error { return u.loop(ctx) })
	}
	err := g.Wait()

	col.mu.Lock()
	defer col.mu.Unlock()
	col.report.Elapsed = time.Since(start)
	return col.report, err
}

type user struct {
	cfg     Config
	limiter *rate.Limiter
	rnd     *rand.Rand
	col     *collector
}

func (u *user) loop(ctx context.Context) error {
	for {
		if u.limiter != nil {
			if err := u.limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		fahrenheit := RandomFahrenheit(u.rnd)
		id, err := u.convert(ctx, fahrenheit)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			u.col.failure(err)
		default:
			u.col.success(id)
		}

		if !sleep(ctx, u.wait()) {
			return nil
		}
	}
}

func (u *user) wait() time.Duration {
	span := u.cfg.MaxWait - u.cfg.MinWait
	if span <= 0 {
		return u.cfg.MinWait
	}
	return u.cfg.MinWait + time.Duration(u.rnd.Int64N(int64(span)+1))
}

// RandomFahrenheit draws a value in [0, 1001): a whole degree in [0, 1000]
// plus a uniform fraction.
func RandomFahrenheit(rnd *rand.Rand) float64 {
	return float64(rnd.IntN(1001)) + rnd.Float64()
}

type convertBody struct {
	Celsius       string `json:"celsius"`
	AppIdentifier string `json:"app_identifier"`
}

// Sentinel failure kinds, used as Report.Errors keys.
var (
	errBadIdentifier = errors.New("malformed app_identifier")
	errWrongCelsius  = errors.New("celsius does not match (f-32)*5/9")
	errTimeout       = errors.New("request timed out")
	errRefused       = errors.New("connection refused")
	errReset         = errors.New("connection reset")
	errTransport     = errors.New("request failed")
)

// transportFailure maps a client error to a coarse failure kind so that
// per-request details do not fan out into one Report.Errors key each.
func transportFailure(err error) error {
	var urlErr *url.Error
	switch {
	case errors.As(err, &urlErr) && urlErr.Timeout(), errors.Is(err, context.DeadlineExceeded):
		return errTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return errRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return errReset
	default:
		return errTransport
	}
}

// convert issues one request and checks the answer against the local formula.
func (u *user) convert(ctx context.Context, fahrenheit float64) (string, error) {
	endpoint := strings.TrimRight(u.cfg.Target, "/") + "/convert/?fahrenheit=" +
		url.QueryEscape(strconv.FormatFloat(fahrenheit, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := u.cfg.Client.Do(req)
	if err != nil {
		return "", transportFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var body convertBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.New("undecodable body")
	}

	if !domain.AppIdentifier(body.AppIdentifier).Valid() {
		return "", errBadIdentifier
	}
	if body.Celsius != domain.FormatCelsius(domain.FahrenheitToCelsius(fahrenheit)) {
		return "", errWrongCelsius
	}

	return body.AppIdentifier, nil
}

// sleep waits for d or until ctx is done; it reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
