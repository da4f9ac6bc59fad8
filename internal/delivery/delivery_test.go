package delivery

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"kursbot/internal/currency"
	"kursbot/internal/transport"
	logx "kursbot/pkg/logx"
)

type fakeSender struct {
	mu    sync.Mutex
	fail  map[int64]error
	sent  []int64
	texts map[int64]string
	at    []time.Time
}

func (s *fakeSender) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to.ChatID)
	s.at = append(s.at, time.Now())
	if s.texts == nil {
		s.texts = map[int64]string{}
	}
	s.texts[to.ChatID] = text
	if err := s.fail[to.ChatID]; err != nil {
		return transport.MessageRef{}, err
	}
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(s.sent)}, nil
}

type fakePruner struct {
	mu     sync.Mutex
	pruned []int64
}

func (p *fakePruner) DeleteSubscriptions(ctx context.Context, userID int64) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pruned = append(p.pruned, userID)
	return 1, nil
}

type countingObserver struct {
	mu  sync.Mutex
	got map[Outcome]int
}

func (o *countingObserver) Delivered(source string, outcome Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.got == nil {
		o.got = map[Outcome]int{}
	}
	o.got[outcome]++
}

func blockedErr(id int64) error {
	return &transport.SendError{ChatID: id, Code: 403, Unreachable: true, Err: errors.New("Forbidden: bot was blocked by the user")}
}

func envs(ids ...int64) []Envelope {
	out := make([]Envelope, 0, len(ids))
	for _, id := range ids {
		out = append(out, Envelope{UserID: id, Text: "hi"})
	}
	return out
}

func TestDeliverClassifiesAndPrunes(t *testing.T) {
	sender := &fakeSender{fail: map[int64]error{
		2: blockedErr(2),
		3: errors.New("Bad Request: message is too long"),
	}}
	pruner := &fakePruner{}
	obs := &countingObserver{}
	var hooked int
	e := New(Config{Interval: time.Millisecond}, sender, pruner, logx.Nop(),
		WithObserver(obs), WithBlockedHook(func(n int) { hooked += n }))

	res := e.Deliver(context.Background(), "test", envs(1, 2, 3, 4))
	if res != (Result{Sent: 2, Blocked: 1, Errors: 1}) {
		t.Fatalf("result=%+v", res)
	}
	if len(pruner.pruned) != 1 || pruner.pruned[0] != 2 {
		t.Fatalf("pruned=%v want [2]", pruner.pruned)
	}
	if hooked != 1 {
		t.Fatalf("blocked hook=%d", hooked)
	}
	if obs.got[OutcomeSent] != 2 || obs.got[OutcomeBlocked] != 1 || obs.got[OutcomeError] != 1 {
		t.Fatalf("observer=%v", obs.got)
	}
}

func TestDeliverSkipsUserAlreadyBlockedInBatch(t *testing.T) {
	sender := &fakeSender{fail: map[int64]error{5: blockedErr(5)}}
	pruner := &fakePruner{}
	e := New(Config{Interval: time.Millisecond}, sender, pruner, logx.Nop())

	// user 5 subscribed to two currencies
	res := e.Deliver(context.Background(), "subscription", envs(5, 6, 5))
	if res != (Result{Sent: 1, Blocked: 1}) {
		t.Fatalf("result=%+v", res)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sends=%v, blocked user must not be retried", sender.sent)
	}
	if len(pruner.pruned) != 1 {
		t.Fatalf("pruned=%v", pruner.pruned)
	}
}

func TestDeliverIsPaced(t *testing.T) {
	sender := &fakeSender{}
	interval := 20 * time.Millisecond
	e := New(Config{Interval: interval}, sender, nil, logx.Nop())

	e.Deliver(context.Background(), "test", envs(1, 2, 3, 4))
	if len(sender.at) != 4 {
		t.Fatalf("sends=%d", len(sender.at))
	}
	for i := 1; i < len(sender.at); i++ {
		// allow a little slack for timer granularity
		if gap := sender.at[i].Sub(sender.at[i-1]); gap < interval-5*time.Millisecond {
			t.Fatalf("gap %d = %v, want >= %v", i, gap, interval)
		}
	}
}

func TestConcurrentBatchesSharePace(t *testing.T) {
	sender := &fakeSender{}
	interval := 20 * time.Millisecond
	e := New(Config{Interval: interval}, sender, nil, logx.Nop())

	var wg sync.WaitGroup
	for _, ids := range [][]int64{{1, 2, 3, 4, 5}, {6, 7, 8, 9, 10}} {
		wg.Add(1)
		go func(ids []int64) {
			defer wg.Done()
			e.Deliver(context.Background(), "test", envs(ids...))
		}(ids)
	}
	wg.Wait()

	at := append([]time.Time(nil), sender.at...)
	if len(at) != 10 {
		t.Fatalf("sends=%d", len(at))
	}
	sort.Slice(at, func(i, j int) bool { return at[i].Before(at[j]) })
	for i := 1; i < len(at); i++ {
		if gap := at[i].Sub(at[i-1]); gap < interval-5*time.Millisecond {
			t.Fatalf("gap %d = %v, want >= %v", i, gap, interval)
		}
	}
}

func TestDeliverStopsOnCancel(t *testing.T) {
	sender := &fakeSender{}
	e := New(Config{Interval: time.Hour}, sender, nil, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() { done <- e.Deliver(ctx, "test", envs(1, 2, 3)) }()

	// the first token is available immediately; the second waits an hour
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case res := <-done:
		if res.Sent != 1 || res.Total() != 1 {
			t.Fatalf("result=%+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Deliver did not stop after cancel")
	}
}

func TestComposeByLanguage(t *testing.T) {
	sel := ByLanguage(map[currency.Language]string{
		currency.RU: "привет",
		currency.EN: "hello",
		currency.UZ: "",
	})
	got := Compose([]Recipient{
		{UserID: 1, Language: "en-US"},
		{UserID: 2, Language: "uz"},
		{UserID: 3, Language: "de"},
		{UserID: 4},
	}, sel, nil)

	want := map[int64]string{1: "hello", 2: "привет", 3: "привет", 4: "привет"}
	if len(got) != len(want) {
		t.Fatalf("envelopes=%+v", got)
	}
	for _, env := range got {
		if want[env.UserID] != env.Text {
			t.Fatalf("user %d got %q want %q", env.UserID, env.Text, want[env.UserID])
		}
	}
}

func TestComposeLiteralSkipsEmpty(t *testing.T) {
	if got := Compose([]Recipient{{UserID: 1}}, Literal(""), nil); len(got) != 0 {
		t.Fatalf("got %+v", got)
	}
	if got := Compose([]Recipient{{UserID: 1}, {UserID: 2}}, Literal("x"), nil); len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
}

type fakeProber struct{ fail map[int64]error }

func (p fakeProber) Probe(ctx context.Context, chatID int64) error { return p.fail[chatID] }

type fakeRemover struct{ removed []int64 }

func (r *fakeRemover) DeleteUser(ctx context.Context, userID int64) error {
	r.removed = append(r.removed, userID)
	return nil
}

func TestCleanupRemovesOnlyUnreachable(t *testing.T) {
	e := New(Config{Interval: time.Millisecond}, &fakeSender{}, nil, logx.Nop())
	prober := fakeProber{fail: map[int64]error{
		2: blockedErr(2),
		3: errors.New("timeout"),
	}}
	rm := &fakeRemover{}

	res := e.Cleanup(context.Background(), []int64{1, 2, 3}, prober, rm)
	if res != (CleanupResult{Checked: 3, Removed: 1}) {
		t.Fatalf("result=%+v", res)
	}
	if len(rm.removed) != 1 || rm.removed[0] != 2 {
		t.Fatalf("removed=%v", rm.removed)
	}
}
