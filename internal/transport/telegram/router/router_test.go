package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "kursbot/internal/transport"
	logx "kursbot/pkg/logx"
)

type fakeAdapter struct {
	mu       sync.Mutex
	sent     []string
	answered []string
}

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }
func (f *fakeAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}
func (f *fakeAdapter) Probe(ctx context.Context, chatID int64) error { return nil }

func (f *fakeAdapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, callbackID)
	return nil
}

func (f *fakeAdapter) answers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.answered)
}

type recordingObserver struct {
	mu     sync.Mutex
	routes []string
}

func (o *recordingObserver) UpdateHandled(route string) {
	o.mu.Lock()
	o.routes = append(o.routes, route)
	o.mu.Unlock()
}

const adminID = 42

func message(from int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: from, From: kit.Sender{ID: from}, Text: text}}
}

func callback(from int64, data string) kit.Update {
	return kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "cb-" + data, ChatID: from, From: kit.Sender{ID: from}, Data: data}}
}

// runRouter starts the dispatch loop and returns the update channel plus a
// stop function that waits for the loop to exit.
func runRouter(t *testing.T, r *Router) (chan<- kit.Update, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.DispatchLoop(ctx, updates)
	}()
	return updates, func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("dispatch loop did not stop")
		}
	}
}

func waitFor(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for handler")
		return ""
	}
}

func TestCommandRouting(t *testing.T) {
	ad := &fakeAdapter{}
	r := New(Config{AdminID: adminID, Workers: 2}, ad, logx.Nop())
	got := make(chan string, 4)
	r.SetRegistry([]Command{
		{Name: "kurs", Aliases: []string{"rate"}, Handle: func(ctx context.Context, req *Request) error {
			got <- req.Command + "|" + req.ReqID
			return nil
		}},
	}, nil)

	updates, stop := runRouter(t, r)
	defer stop()

	updates <- message(7, "/Kurs@KursBot usd")
	v := waitFor(t, got)
	if v[:5] != "kurs|" || len(v) <= 5 {
		t.Fatalf("got %q", v)
	}
	updates <- message(7, "/rate")
	if v := waitFor(t, got); v[:5] != "kurs|" {
		t.Fatalf("alias got %q", v)
	}
}

func TestAdminOnlyCommandIgnoredForOthers(t *testing.T) {
	ad := &fakeAdapter{}
	r := New(Config{AdminID: adminID}, ad, logx.Nop())
	got := make(chan string, 4)
	r.SetRegistry([]Command{
		{Name: "admin", Access: AccessAdminOnly, Handle: func(ctx context.Context, req *Request) error {
			got <- "admin"
			return nil
		}},
		{Name: "help", Handle: func(ctx context.Context, req *Request) error {
			got <- "help"
			return nil
		}},
	}, nil)

	updates, stop := runRouter(t, r)
	defer stop()

	updates <- message(7, "/admin")
	updates <- message(7, "/help")
	if v := waitFor(t, got); v != "help" {
		t.Fatalf("non-admin reached %q", v)
	}
	updates <- message(adminID, "/admin")
	if v := waitFor(t, got); v != "admin" {
		t.Fatalf("admin got %q", v)
	}
}

func TestTextFallbackAndUnknownCommand(t *testing.T) {
	ad := &fakeAdapter{}
	r := New(Config{AdminID: adminID}, ad, logx.Nop())
	got := make(chan string, 4)
	r.SetRegistry(nil, nil)
	r.OnText(func(ctx context.Context, req *Request) error {
		got <- req.Text
		return nil
	})

	updates, stop := runRouter(t, r)
	defer stop()

	updates <- message(7, "/nope")
	updates <- message(7, "   ")
	updates <- message(7, " hello ")
	if v := waitFor(t, got); v != "hello" {
		t.Fatalf("text got %q", v)
	}
	ad.mu.Lock()
	defer ad.mu.Unlock()
	if len(ad.sent) != 0 {
		t.Fatalf("unknown command produced replies: %v", ad.sent)
	}
}

func TestCallbackRoutingAnswersAndObserves(t *testing.T) {
	ad := &fakeAdapter{}
	obs := &recordingObserver{}
	r := New(Config{AdminID: adminID}, ad, logx.Nop(), WithObserver(obs))
	got := make(chan string, 4)
	r.SetRegistry(nil, []CallbackRoute{
		{Namespace: "rate", Action: "kurs", Handle: func(ctx context.Context, req *Request, payload string) error {
			got <- payload
			return nil
		}},
		{Namespace: "adm", Action: "users", Access: AccessAdminOnly, Handle: func(ctx context.Context, req *Request, payload string) error {
			got <- "adm"
			return nil
		}},
	})

	updates, stop := runRouter(t, r)
	defer stop()

	updates <- callback(7, "adm:users")
	updates <- callback(7, "rate:kurs:USD")
	if v := waitFor(t, got); v != "USD" {
		t.Fatalf("payload %q", v)
	}

	deadline := time.Now().Add(2 * time.Second)
	for ad.answers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if ad.answers() != 1 {
		t.Fatalf("answers=%d want 1", ad.answers())
	}
	for {
		obs.mu.Lock()
		n := len(obs.routes)
		obs.mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.routes) != 1 || obs.routes[0] != "callback:rate:kurs" {
		t.Fatalf("routes=%v", obs.routes)
	}
}

func TestHandlerPanicDoesNotKillWorker(t *testing.T) {
	ad := &fakeAdapter{}
	r := New(Config{Workers: 1}, ad, logx.Nop())
	got := make(chan string, 4)
	r.SetRegistry([]Command{
		{Name: "boom", Handle: func(ctx context.Context, req *Request) error { panic("boom") }},
		{Name: "ok", Handle: func(ctx context.Context, req *Request) error {
			got <- "ok"
			return nil
		}},
	}, nil)

	updates, stop := runRouter(t, r)
	defer stop()

	updates <- message(1, "/boom")
	updates <- message(1, "/ok")
	if v := waitFor(t, got); v != "ok" {
		t.Fatalf("got %q", v)
	}
}

func TestChainOrderAndTimeout(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *Request) error {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}
	h := Chain(func(ctx context.Context, req *Request) error {
		<-ctx.Done()
		return ctx.Err()
	}, mw("a"), mw("b"), MWTimeout(10*time.Millisecond))

	err := h(context.Background(), &Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v", err)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order=%v", order)
	}
}

func TestMenuSkipsAdminCommands(t *testing.T) {
	r := New(Config{}, &fakeAdapter{}, logx.Nop())
	noop := func(ctx context.Context, req *Request) error { return nil }
	r.SetRegistry([]Command{
		{Name: "start", Description: "Start", Handle: noop},
		{Name: "admin", Access: AccessAdminOnly, Handle: noop},
		{Name: "All-Rates", Handle: noop},
	}, nil)

	menu := r.Menu()
	if len(menu) != 2 {
		t.Fatalf("menu=%v", menu)
	}
	if menu[0].Command != "start" || menu[1].Command != "all_rates" || menu[1].Description != "all_rates" {
		t.Fatalf("menu=%v", menu)
	}
}

func TestNormalizeCommand(t *testing.T) {
	cases := map[string]string{
		"/start":        "start",
		"/Kurs@KursBot": "kurs",
		" help ":        "help",
		"/":             "",
	}
	for in, want := range cases {
		if got := normalizeCommand(in); got != want {
			t.Fatalf("normalizeCommand(%q)=%q want %q", in, got, want)
		}
	}
}
