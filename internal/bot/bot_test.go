package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"kursbot/internal/activity"
	"kursbot/internal/broadcast"
	"kursbot/internal/currency"
	"kursbot/internal/delivery"
	"kursbot/internal/format"
	"kursbot/internal/history"
	"kursbot/internal/rates"
	"kursbot/internal/storage"
	kit "kursbot/internal/transport"
	"kursbot/internal/transport/telegram/router"
	logx "kursbot/pkg/logx"
	"kursbot/pkg/tgui"
)

const adminID = 1

type sent struct {
	chatID int64
	text   string
	opt    *kit.SendOptions
}

type fakeAdapter struct {
	mu   sync.Mutex
	msgs []sent
}

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{chatID: to.ChatID, text: text, opt: opt})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.msgs)}, nil
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }
func (f *fakeAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}
func (f *fakeAdapter) AnswerCallback(ctx context.Context, id, text string) error { return nil }
func (f *fakeAdapter) Probe(ctx context.Context, chatID int64) error             { return nil }

func (f *fakeAdapter) sentTo(chatID int64) []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sent
	for _, m := range f.msgs {
		if m.chatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

type fakeStore struct {
	mu         sync.Mutex
	users      map[int64]storage.User
	subs       map[string]int // "<user>:<CODE>" -> hour
	deleted    []int64
	subscribed []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[int64]storage.User{}, subs: map[string]int{}}
}

func subKey(userID int64, code string) string {
	return strconv.FormatInt(userID, 10) + ":" + code
}

func (s *fakeStore) AddUser(ctx context.Context, u storage.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return false, nil
	}
	s.users[u.ID] = u
	return true, nil
}

func (s *fakeStore) Users(ctx context.Context) ([]storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *fakeStore) UserIDs(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.users))
	for id := range s.users {
		out = append(out, id)
	}
	return out, nil
}

func (s *fakeStore) DeleteUser(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	s.deleted = append(s.deleted, userID)
	return nil
}

func (s *fakeStore) UserStats(ctx context.Context, dayStart, weekStart time.Time) (storage.UserStats, error) {
	return storage.UserStats{Total: len(s.users)}, nil
}

func (s *fakeStore) Subscribe(ctx context.Context, userID int64, code string, hour int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[subKey(userID, code)] = hour
	s.subscribed = append(s.subscribed, code)
	return nil
}

func (s *fakeStore) Unsubscribe(ctx context.Context, userID int64, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := subKey(userID, code)
	if _, ok := s.subs[k]; !ok {
		return false, nil
	}
	delete(s.subs, k)
	return true, nil
}

func (s *fakeStore) IsSubscribed(ctx context.Context, userID int64, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[subKey(userID, code)]
	return ok, nil
}

func (s *fakeStore) SubscriptionCounts(ctx context.Context) ([]storage.CurrencyCount, error) {
	return []storage.CurrencyCount{{Currency: "USD", Count: len(s.subs)}}, nil
}

type fakeRates struct {
	snap rates.Snapshot
	prev map[currency.Symbol]int64
	err  error
}

func (r *fakeRates) Symbols() []currency.Symbol { return []currency.Symbol{currency.USD, currency.EUR} }

func (r *fakeRates) GetRate(ctx context.Context, sym currency.Symbol) (rates.Snapshot, error) {
	if r.err != nil {
		return rates.Snapshot{}, r.err
	}
	s := r.snap
	s.Symbol = sym
	return s, nil
}

func (r *fakeRates) GetAllRates(ctx context.Context) (map[currency.Symbol]rates.Snapshot, error) {
	if r.err != nil {
		return nil, r.err
	}
	return map[currency.Symbol]rates.Snapshot{currency.USD: r.snap}, nil
}

func (r *fakeRates) YesterdayRates(ctx context.Context) (map[currency.Symbol]int64, error) {
	return r.prev, nil
}

type fakeHistory struct{ limit int }

func (h *fakeHistory) History(ctx context.Context, sym currency.Symbol, limit int) ([]history.Record, error) {
	h.limit = limit
	return nil, nil
}

type fakeCleaner struct{ remove []int64 }

func (c *fakeCleaner) Cleanup(ctx context.Context, ids []int64, prober delivery.Prober, remover delivery.Remover) delivery.CleanupResult {
	for _, id := range c.remove {
		_ = remover.DeleteUser(ctx, id)
	}
	return delivery.CleanupResult{Checked: len(ids), Removed: len(c.remove)}
}

type fakeConv struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (c *fakeConv) Handle(ctx context.Context, ev broadcast.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return true
}

type fixture struct {
	bot   *Bot
	ad    *fakeAdapter
	store *fakeStore
	rates *fakeRates
	hist  *fakeHistory
	clean *fakeCleaner
	conv  *fakeConv
	act   *activity.Log
}

func newFixture() *fixture {
	f := &fixture{
		ad:    &fakeAdapter{},
		store: newFakeStore(),
		rates: &fakeRates{
			snap: rates.Snapshot{
				Symbol: currency.USD,
				CBRate: 12750,
				Buy:    []rates.Offer{{Bank: "Ipak", Rate: 12700}},
				Sell:   []rates.Offer{{Bank: "Kapital", Rate: 12800}},
			},
			prev: map[currency.Symbol]int64{currency.USD: 12700},
		},
		hist:  &fakeHistory{},
		clean: &fakeCleaner{},
		conv:  &fakeConv{},
		act:   activity.New(adminID),
	}
	f.bot = New(Config{AdminID: adminID, SendHours: []int{6, 9, 18}}, Deps{
		Store:    f.store,
		Rates:    f.rates,
		History:  f.hist,
		Cleaner:  f.clean,
		Prober:   f.ad,
		Conv:     f.conv,
		Activity: f.act,
		Notifier: f.ad,
	}, logx.Nop(),
		WithClock(func() time.Time { return time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC) }),
		WithSpawner(func(name string, fn func(ctx context.Context)) { fn(context.Background()) }),
	)
	return f
}

func (f *fixture) msgReq(from int64, lang, text string) *router.Request {
	sender := kit.Sender{ID: from, FirstName: "Ann", Username: "ann", LanguageCode: lang}
	return &router.Request{
		Update:  kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: from, From: sender, Text: text}},
		Chat:    kit.ChatTarget{ChatID: from},
		From:    sender,
		Text:    strings.TrimSpace(text),
		Adapter: f.ad,
		Logger:  logx.Nop(),
	}
}

func (f *fixture) cbReq(from int64, lang, data string) *router.Request {
	sender := kit.Sender{ID: from, LanguageCode: lang}
	return &router.Request{
		Update:  kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "1", ChatID: from, From: sender, Data: data}},
		Chat:    kit.ChatTarget{ChatID: from},
		From:    sender,
		Adapter: f.ad,
		Logger:  logx.Nop(),
	}
}

func keyboardData(t *testing.T, opt *kit.SendOptions) []string {
	t.Helper()
	if opt == nil {
		t.Fatalf("no send options")
	}
	rm, ok := opt.ReplyMarkupAdapter.(*tele.ReplyMarkup)
	if !ok || rm == nil {
		t.Fatalf("no inline keyboard")
	}
	var out []string
	for _, row := range rm.InlineKeyboard {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}

func TestStartRegistersAndNotifiesAdmin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := f.bot.start(ctx, f.msgReq(7, "ru", "/start")); err != nil {
		t.Fatalf("start: %v", err)
	}
	replies := f.ad.sentTo(7)
	if len(replies) != 1 || !strings.Contains(replies[0].text, "Привет") {
		t.Fatalf("welcome=%v", replies)
	}
	notices := f.ad.sentTo(adminID)
	if len(notices) != 1 || !strings.Contains(notices[0].text, "@ann") {
		t.Fatalf("admin notices=%v", notices)
	}
	if n := len(f.act.Snapshot().NewUsers); n != 1 {
		t.Fatalf("new users=%d", n)
	}

	// a second /start is not a new user
	if err := f.bot.start(ctx, f.msgReq(7, "ru", "/start")); err != nil {
		t.Fatalf("start: %v", err)
	}
	if n := len(f.ad.sentTo(adminID)); n != 1 {
		t.Fatalf("admin notices=%d after repeat start", n)
	}
}

func TestStartByAdminIsNotAnnounced(t *testing.T) {
	f := newFixture()
	if err := f.bot.start(context.Background(), f.msgReq(adminID, "en", "/start")); err != nil {
		t.Fatalf("start: %v", err)
	}
	replies := f.ad.sentTo(adminID)
	if len(replies) != 1 || !strings.Contains(replies[0].text, "Hello") {
		t.Fatalf("replies=%v", replies)
	}
	if n := len(f.act.Snapshot().NewUsers); n != 0 {
		t.Fatalf("new users=%d", n)
	}
}

func TestKursOffersCurrencyKeyboard(t *testing.T) {
	f := newFixture()
	if err := f.bot.kurs(context.Background(), f.msgReq(7, "en", "/kurs")); err != nil {
		t.Fatalf("kurs: %v", err)
	}
	data := keyboardData(t, f.ad.sentTo(7)[0].opt)
	if len(data) != 2 || data[0] != "rate:kurs:USD" || data[1] != "rate:kurs:EUR" {
		t.Fatalf("data=%v", data)
	}
}

func TestRateViewRendersWithNavigation(t *testing.T) {
	f := newFixture()
	h := f.bot.view(viewKurs)
	if err := h(context.Background(), f.cbReq(7, "en", "rate:kurs:USD"), "USD"); err != nil {
		t.Fatalf("view: %v", err)
	}
	msgs := f.ad.sentTo(7)
	if len(msgs) != 1 {
		t.Fatalf("msgs=%d", len(msgs))
	}
	if !strings.Contains(msgs[0].text, "12 750") || !strings.Contains(msgs[0].text, "↑") {
		t.Fatalf("card=%q", msgs[0].text)
	}
	want := []string{"rate:banks:USD", "rate:spread:USD", "rate:history:USD", "sub:toggle:USD"}
	got := keyboardData(t, msgs[0].opt)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("nav=%v want %v", got, want)
	}
	snap := f.act.Snapshot()
	if snap.Actions[viewKurs] != 1 || snap.Currencies[currency.USD] != 1 {
		t.Fatalf("activity=%+v", snap)
	}
}

func TestRateViewIgnoresUnknownCurrency(t *testing.T) {
	f := newFixture()
	for _, code := range []string{"XYZ", "GBP"} {
		if err := f.bot.view(viewKurs)(context.Background(), f.cbReq(7, "en", ""), code); err != nil {
			t.Fatalf("view %s: %v", code, err)
		}
	}
	if n := len(f.ad.sentTo(7)); n != 0 {
		t.Fatalf("replies=%d", n)
	}
}

func TestRateViewFetchErrorRepliesError(t *testing.T) {
	f := newFixture()
	f.rates.err = errors.New("upstream down")
	err := f.bot.view(viewBanks)(context.Background(), f.cbReq(7, "ru", ""), "USD")
	if err == nil {
		t.Fatalf("expected error")
	}
	msgs := f.ad.sentTo(7)
	if len(msgs) != 1 || !strings.Contains(msgs[0].text, "Ошибка") {
		t.Fatalf("msgs=%v", msgs)
	}
	if f.act.Snapshot().TotalActions() != 0 {
		t.Fatalf("failed view counted as activity")
	}
}

func TestHistoryViewUsesConfiguredDays(t *testing.T) {
	f := newFixture()
	if err := f.bot.view(viewHistory)(context.Background(), f.cbReq(7, "en", ""), "EUR"); err != nil {
		t.Fatalf("history: %v", err)
	}
	if f.hist.limit != DefaultHistoryDays {
		t.Fatalf("limit=%d", f.hist.limit)
	}
}

func TestSubscriptionToggleAndTime(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := f.bot.subToggle(ctx, f.cbReq(7, "en", ""), "USD"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	picker := f.ad.sentTo(7)[0]
	data := keyboardData(t, picker.opt)
	if strings.Join(data, ",") != "sub:time:USD:6,sub:time:USD:9,sub:time:USD:18" {
		t.Fatalf("picker=%v", data)
	}

	// hours outside the allowed set are rejected
	if err := f.bot.subTime(ctx, f.cbReq(7, "en", ""), "USD:11"); err != nil {
		t.Fatalf("subTime: %v", err)
	}
	if len(f.store.subscribed) != 0 {
		t.Fatalf("subscribed to a disallowed hour")
	}

	if err := f.bot.subTime(ctx, f.cbReq(7, "en", ""), "USD:9"); err != nil {
		t.Fatalf("subTime: %v", err)
	}
	if f.store.subs[subKey(7, "USD")] != 9 {
		t.Fatalf("subs=%v", f.store.subs)
	}
	msgs := f.ad.sentTo(7)
	if last := msgs[len(msgs)-1].text; !strings.Contains(last, "9:00") {
		t.Fatalf("confirmation=%q", last)
	}

	if err := f.bot.subToggle(ctx, f.cbReq(7, "en", ""), "USD"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, ok := f.store.subs[subKey(7, "USD")]; ok {
		t.Fatalf("subscription not removed")
	}
	snap := f.act.Snapshot()
	if snap.SubsAdded != 1 || snap.SubsRemoved != 1 {
		t.Fatalf("activity=%+v", snap)
	}
}

func TestAllRecordsActivity(t *testing.T) {
	f := newFixture()
	if err := f.bot.all(context.Background(), f.msgReq(7, "en", "/all")); err != nil {
		t.Fatalf("all: %v", err)
	}
	if got := f.act.Snapshot().Actions["all"]; got != 1 {
		t.Fatalf("all actions=%d", got)
	}
	if n := len(f.ad.sentTo(7)); n != 1 {
		t.Fatalf("replies=%d", n)
	}
}

func TestCleanupRemovesAndReports(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for _, id := range []int64{7, 8, 9} {
		_, _ = f.store.AddUser(ctx, storage.User{ID: id})
	}
	f.clean.remove = []int64{8}

	if err := f.bot.admCleanup(ctx, f.cbReq(adminID, "ru", ""), ""); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	msgs := f.ad.sentTo(adminID)
	if len(msgs) != 2 || !strings.Contains(msgs[1].text, "удалено: 1") {
		t.Fatalf("msgs=%v", msgs)
	}
	if f.act.Snapshot().Blocked != 1 {
		t.Fatalf("blocked not counted")
	}
	if len(f.store.deleted) != 1 || f.store.deleted[0] != 8 {
		t.Fatalf("deleted=%v", f.store.deleted)
	}
}

func TestTextGoesToConversationForAdminOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_ = f.bot.text(ctx, f.msgReq(7, "en", "hi"))
	_ = f.bot.text(ctx, f.msgReq(adminID, "ru", "  <b>Новости</b> "))

	if len(f.conv.events) != 1 {
		t.Fatalf("events=%v", f.conv.events)
	}
	ev := f.conv.events[0]
	if ev.Kind != broadcast.EvText || ev.UserID != adminID || ev.Text != "  <b>Новости</b> " {
		t.Fatalf("event=%+v", ev)
	}
}

func TestBroadcastCallbacksMapToEvents(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_ = f.bot.admBroadcast(ctx, f.cbReq(adminID, "ru", "adm:broadcast"), "")
	_ = f.bot.broadcastCallback(ctx, f.cbReq(adminID, "ru", broadcast.CbEditRU), "ru")
	_ = f.bot.broadcastCallback(ctx, f.cbReq(adminID, "ru", "bc:bogus"), "")
	_ = f.bot.cancel(ctx, f.msgReq(adminID, "ru", "/cancel"))

	want := []broadcast.EventKind{broadcast.EvStart, broadcast.EvEditRU, broadcast.EvCancel}
	if len(f.conv.events) != len(want) {
		t.Fatalf("events=%v", f.conv.events)
	}
	for i, k := range want {
		if f.conv.events[i].Kind != k {
			t.Fatalf("event %d kind=%v want %v", i, f.conv.events[i].Kind, k)
		}
	}
}

func TestEveryKeyboardButtonHasARoute(t *testing.T) {
	f := newFixture()
	_, cbs := f.bot.Routes()
	routes := map[string]bool{}
	for _, cb := range cbs {
		routes[cb.Namespace+":"+cb.Action] = true
	}

	var all []string
	opts := []*kit.SendOptions{
		tgui.Msg("").With(currencyKeyboard(f.rates.Symbols())).Options(),
		tgui.Msg("").With(navKeyboard(format.For("ru"), currency.USD, viewHistory, true)).Options(),
		tgui.Msg("").With(hourKeyboard(currency.USD, f.bot.cfg.SendHours)).Options(),
		tgui.Msg("").With(adminKeyboard()).Options(),
	}
	for _, o := range opts {
		all = append(all, keyboardData(t, o)...)
	}
	all = append(all, broadcast.CbSingle, broadcast.CbMulti, broadcast.CbSend, broadcast.CbCancel,
		broadcast.CbEditSingle, broadcast.CbEditRU, broadcast.CbEditEN, broadcast.CbEditUZ)

	for _, data := range all {
		if err := tgui.CheckData(data); err != nil {
			t.Fatalf("%q: %v", data, err)
		}
		ns, action, _, ok := tgui.ParseData(data)
		if !ok || !routes[ns+":"+action] {
			t.Fatalf("no route for %q", data)
		}
	}
}
