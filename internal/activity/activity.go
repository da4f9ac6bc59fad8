// Package activity counts user activity between two daily digests.
package activity

import (
	"sort"
	"sync"

	"kursbot/internal/currency"
)

type NewUser struct {
	Name     string
	Username string
}

// Snapshot is a copy of the counters at one instant.
type Snapshot struct {
	Actions     map[string]int
	ActiveUsers int
	NewUsers    []NewUser
	Currencies  map[currency.Symbol]int
	SubsAdded   int
	SubsRemoved int
	Blocked     int
}

// TotalActions sums every action kind.
func (s Snapshot) TotalActions() int {
	n := 0
	for _, v := range s.Actions {
		n += v
	}
	return n
}

// Counted pairs a key with its count.
type Counted struct {
	Key   string
	Count int
}

// TopActions returns action counts sorted by count, then name.
func (s Snapshot) TopActions() []Counted {
	out := make([]Counted, 0, len(s.Actions))
	for k, v := range s.Actions {
		out = append(out, Counted{Key: k, Count: v})
	}
	sortCounted(out)
	return out
}

// TopCurrencies returns currency popularity sorted by count, then code.
func (s Snapshot) TopCurrencies() []Counted {
	out := make([]Counted, 0, len(s.Currencies))
	for k, v := range s.Currencies {
		out = append(out, Counted{Key: k.String(), Count: v})
	}
	sortCounted(out)
	return out
}

func sortCounted(c []Counted) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Count != c[j].Count {
			return c[i].Count > c[j].Count
		}
		return c[i].Key < c[j].Key
	})
}

// Log is safe for concurrent use. Activity of the administrator is not counted.
type Log struct {
	adminID int64

	mu          sync.Mutex
	actions     map[string]int
	active      map[int64]struct{}
	newUsers    []NewUser
	currencies  map[currency.Symbol]int
	subsAdded   int
	subsRemoved int
	blocked     int
}

func New(adminID int64) *Log {
	l := &Log{adminID: adminID}
	l.resetLocked()
	return l
}

func (l *Log) resetLocked() {
	l.actions = map[string]int{}
	l.active = map[int64]struct{}{}
	l.newUsers = nil
	l.currencies = map[currency.Symbol]int{}
	l.subsAdded, l.subsRemoved, l.blocked = 0, 0, 0
}

// Record counts one action by userID. sym may be empty.
func (l *Log) Record(userID int64, action string, sym currency.Symbol) {
	if l == nil || userID == l.adminID {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active[userID] = struct{}{}
	l.actions[action]++
	if sym != "" {
		l.currencies[sym]++
	}
}

func (l *Log) AddNewUser(name, username string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.newUsers = append(l.newUsers, NewUser{Name: name, Username: username})
	l.mu.Unlock()
}

func (l *Log) SubAdded() {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.subsAdded++
	l.mu.Unlock()
}

func (l *Log) SubRemoved() {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.subsRemoved++
	l.mu.Unlock()
}

func (l *Log) AddBlocked(n int) {
	if l == nil || n <= 0 {
		return
	}
	l.mu.Lock()
	l.blocked += n
	l.mu.Unlock()
}

func (l *Log) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Log) snapshotLocked() Snapshot {
	s := Snapshot{
		Actions:     make(map[string]int, len(l.actions)),
		ActiveUsers: len(l.active),
		NewUsers:    append([]NewUser(nil), l.newUsers...),
		Currencies:  make(map[currency.Symbol]int, len(l.currencies)),
		SubsAdded:   l.subsAdded,
		SubsRemoved: l.subsRemoved,
		Blocked:     l.blocked,
	}
	for k, v := range l.actions {
		s.Actions[k] = v
	}
	for k, v := range l.currencies {
		s.Currencies[k] = v
	}
	return s
}

func (l *Log) Reset() {
	l.mu.Lock()
	l.resetLocked()
	l.mu.Unlock()
}

// SnapshotAndReset returns the counters and clears them atomically.
func (l *Log) SnapshotAndReset() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.snapshotLocked()
	l.resetLocked()
	return s
}
