package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"kursbot/internal/currency"
	"kursbot/internal/delivery"
	logx "kursbot/pkg/logx"
)

func TestObserversCount(t *testing.T) {
	m := New()
	m.FetchDone(currency.USD, 10*time.Millisecond, nil)
	m.FetchDone(currency.USD, 10*time.Millisecond, errors.New("down"))
	m.CacheHit(currency.EUR)
	m.PersistFailed(currency.USD)
	m.Delivered("subscription", delivery.OutcomeSent)
	m.Delivered("subscription", delivery.OutcomeSent)
	m.Delivered("broadcast", delivery.OutcomeBlocked)
	m.UpdateHandled("cmd:kurs")

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"fetch ok", testutil.ToFloat64(m.FetchTotal.WithLabelValues("USD", "ok")), 1},
		{"fetch error", testutil.ToFloat64(m.FetchTotal.WithLabelValues("USD", "error")), 1},
		{"cache hit", testutil.ToFloat64(m.CacheHits.WithLabelValues("EUR")), 1},
		{"persist", testutil.ToFloat64(m.PersistFailures.WithLabelValues("USD")), 1},
		{"sent", testutil.ToFloat64(m.Deliveries.WithLabelValues("subscription", "sent")), 2},
		{"blocked", testutil.ToFloat64(m.Deliveries.WithLabelValues("broadcast", "blocked")), 1},
		{"updates", testutil.ToFloat64(m.Updates.WithLabelValues("cmd:kurs")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Fatalf("%s=%v want %v", c.name, c.got, c.want)
		}
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.CacheHit(currency.USD)
	srv := NewServer(ServerConfig{Enabled: true}, m, logx.Nop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `kursbot_rate_cache_hits_total{currency="USD"} 1`) {
		t.Fatalf("body missing counter:\n%s", rec.Body.String())
	}
}

func TestServerStartStop(t *testing.T) {
	srv := NewServer(ServerConfig{Enabled: true, Addr: "127.0.0.1:0"}, New(), logx.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop(ctx)

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Fatalf("body=%q", body)
	}
}

func TestServerRefusesPublicAddr(t *testing.T) {
	srv := NewServer(ServerConfig{Enabled: true, Addr: "0.0.0.0:0"}, New(), logx.Nop())
	if err := srv.Start(context.Background()); !errors.Is(err, ErrPublicAddr) {
		t.Fatalf("err=%v", err)
	}
}

func TestPprofMountedOnlyWhenEnabled(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		srv := NewServer(ServerConfig{Enabled: true, Pprof: enabled}, New(), logx.Nop())
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
		if got := rec.Code == http.StatusOK; got != enabled {
			t.Fatalf("pprof=%v status=%d", enabled, rec.Code)
		}
	}
}
