package loadgen_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/neomorfeo/celsiusify/internal/domain"
	"github.com/neomorfeo/celsiusify/internal/loadgen"
)

var replicaIDs = []string{
	"aaaaaaaa-aaaaaaaa-aaaaaaaa-aaaaaaaa",
	"bbbbbbbb-bbbbbbbb-bbbbbbbb-bbbbbbbb",
}

// fakeReplicas answers like two load-balanced replicas, alternating per request.
func fakeReplicas(t *testing.T) *httptest.Server {
	t.Helper()
	var n atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/convert/" {
			http.NotFound(w, r)
			return
		}
		f, err := strconv.ParseFloat(r.URL.Query().Get("fahrenheit"), 64)
		if err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		id := replicaIDs[n.Add(1)%2]
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"celsius":        domain.FormatCelsius(domain.FahrenheitToCelsius(f)),
			"app_identifier": id,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fastConfig(target string) loadgen.Config {
	cfg := loadgen.DefaultConfig()
	cfg.Target = target
	cfg.Users = 4
	cfg.Duration = 300 * time.Millisecond
	cfg.MinWait = time.Millisecond
	cfg.MaxWait = 2 * time.Millisecond
	return cfg
}

func TestRun_CountsPerReplica(t *testing.T) {
	srv := fakeReplicas(t)

	report, err := loadgen.Run(context.Background(), fastConfig(srv.URL))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Requests == 0 {
		t.Fatal("no requests issued")
	}
	if report.Failures != 0 {
		t.Errorf("Failures = %d, want 0 (errors: %v)", report.Failures, report.Errors)
	}
	if len(report.ByIdentifier) != 2 {
		t.Fatalf("saw %d replicas, want 2: %v", len(report.ByIdentifier), report.ByIdentifier)
	}

	total := 0
	for _, n := range report.ByIdentifier {
		total += n
	}
	if total != report.Requests {
		t.Errorf("per-replica total = %d, want %d", total, report.Requests)
	}
}

func TestRun_WrongAnswersAreFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"celsius":        "0.000000",
			"app_identifier": replicaIDs[0],
		})
	}))
	t.Cleanup(srv.Close)

	report, err := loadgen.Run(context.Background(), fastConfig(srv.URL))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Requests == 0 {
		t.Fatal("no requests issued")
	}
	if report.Failures != report.Requests {
		t.Errorf("Failures = %d, want all %d requests", report.Failures, report.Requests)
	}
	if report.Errors["celsius does not match (f-32)*5/9"] == 0 {
		t.Errorf("Errors = %v, want celsius mismatches", report.Errors)
	}
}

func TestRun_MalformedIdentifierIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, _ := strconv.ParseFloat(r.URL.Query().Get("fahrenheit"), 64)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"celsius":        domain.FormatCelsius(domain.FahrenheitToCelsius(f)),
			"app_identifier": "replica-1",
		})
	}))
	t.Cleanup(srv.Close)

	report, err := loadgen.Run(context.Background(), fastConfig(srv.URL))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Errors["malformed app_identifier"] == 0 {
		t.Errorf("Errors = %v, want malformed identifier failures", report.Errors)
	}
}

func TestRun_ServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	report, err := loadgen.Run(context.Background(), fastConfig(srv.URL))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Errors["status 500"] != report.Failures || report.Failures == 0 {
		t.Errorf("Errors = %v, Failures = %d, want only status 500", report.Errors, report.Failures)
	}
}

func TestRun_Timeouts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	cfg := fastConfig(srv.URL)
	cfg.Client = &http.Client{Timeout: 20 * time.Millisecond}

	report, err := loadgen.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Failures == 0 || report.Errors["request timed out"] != report.Failures {
		t.Errorf("Errors = %v, Failures = %d, want only timeouts", report.Errors, report.Failures)
	}
}

func TestRun_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	report, err := loadgen.Run(context.Background(), fastConfig(target))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Failures == 0 || report.Errors["connection refused"] != report.Failures {
		t.Errorf("Errors = %v, Failures = %d, want only refused connections", report.Errors, report.Failures)
	}
}

func TestRun_RateLimited(t *testing.T) {
	srv := fakeReplicas(t)

	cfg := fastConfig(srv.URL)
	cfg.Rate = 20
	cfg.Duration = 500 * time.Millisecond

	report, err := loadgen.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// 20 req/s for half a second with burst 1 allows about 11 requests.
	if report.Requests == 0 || report.Requests > 15 {
		t.Errorf("Requests = %d, want between 1 and 15 at 20 req/s", report.Requests)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	srv := fakeReplicas(t)

	cfg := fastConfig(srv.URL)
	cfg.Duration = 0

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := loadgen.Run(ctx, cfg); err != nil {
			t.Errorf("Run failed: %v", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cases := map[string]func(*loadgen.Config){
		"no users":      func(c *loadgen.Config) { c.Users = 0 },
		"bad target":    func(c *loadgen.Config) { c.Target = "not a url" },
		"inverted wait": func(c *loadgen.Config) { c.MinWait, c.MaxWait = time.Second, time.Millisecond },
		"negative rate": func(c *loadgen.Config) { c.Rate = -1 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := loadgen.DefaultConfig()
			mutate(&cfg)
			if _, err := loadgen.Run(context.Background(), cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRandomFahrenheit_Range(t *testing.T) {
	rnd := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < 10000; i++ {
		f := loadgen.RandomFahrenheit(rnd)
		if f < 0 || f >= 1001 {
			t.Fatalf("RandomFahrenheit() = %v, want [0, 1001)", f)
		}
	}
}

func TestReport_Print(t *testing.T) {
	report := loadgen.Report{
		Requests: 10,
		Failures: 1,
		ByIdentifier: map[string]int{
			replicaIDs[0]: 3,
			replicaIDs[1]: 6,
		},
		Errors:  map[string]int{"status 500": 1},
		Elapsed: 2 * time.Second,
	}

	var buf bytes.Buffer
	report.Print(&buf)
	out := buf.String()

	for _, want := range []string{"requests: 10", "failures: 1", "replicas: 2", "status 500", "throughput: 5.0 req/s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// Busiest replica first.
	if strings.Index(out, replicaIDs[1]) > strings.Index(out, replicaIDs[0]) {
		t.Errorf("replicas not sorted by responses:\n%s", out)
	}
}
