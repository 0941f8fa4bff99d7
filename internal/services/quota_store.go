package services

import (
	"errors"
	"sync"
	"time"

	"chat_relay_go_backend/internal/models"
)

const DefaultDailyLimit = 50

var ErrQuotaExceeded = errors.New("daily quota exceeded")

type quotaRecord struct {
	models.UserQuota
	pending int
}

// QuotaStore keeps a per-user daily request counter. A successful check
// hands out a Lease that reserves a slot until the caller commits or
// releases it, so concurrent requests cannot overshoot the limit while the
// counter itself still only moves on success.
type QuotaStore struct {
	mu      sync.Mutex
	records map[string]*quotaRecord
	limit   int
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

func NewQuotaStore(dailyLimit int, cleanupInterval time.Duration, opts ...StoreOption) *QuotaStore {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	o := applyStoreOptions(opts)
	qs := &QuotaStore{
		records: make(map[string]*quotaRecord),
		limit:   dailyLimit,
		now:     o.now,
		stop:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go qs.periodicCleanup(cleanupInterval)
	}
	return qs
}

func (qs *QuotaStore) Limit() int {
	return qs.limit
}

func (qs *QuotaStore) today() string {
	return qs.now().UTC().Format(models.DayLayout)
}

// recordLocked returns the user's record for today, creating or resetting it.
func (qs *QuotaStore) recordLocked(userID, today string) *quotaRecord {
	rec, ok := qs.records[userID]
	if !ok {
		rec = &quotaRecord{UserQuota: models.UserQuota{UserID: userID, Date: today}}
		qs.records[userID] = rec
	}
	if rec.Date != today {
		rec.Count = 0
		rec.pending = 0
		rec.Date = today
	}
	return rec
}

// CheckAndConsume reserves one request for userID. Exempt callers always
// get a lease that never touches the counter.
func (qs *QuotaStore) CheckAndConsume(userID string, exempt bool) (*Lease, error) {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	today := qs.today()
	rec := qs.recordLocked(userID, today)
	if exempt {
		return &Lease{store: qs, userID: userID, day: today, exempt: true}, nil
	}
	if rec.Count+rec.pending >= qs.limit {
		return nil, ErrQuotaExceeded
	}
	rec.pending++
	return &Lease{store: qs, userID: userID, day: today}, nil
}

// Usage reports the user's consumption for today without creating a record.
func (qs *QuotaStore) Usage(userID string) models.QuotaUsage {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	today := qs.today()
	used := 0
	if rec, ok := qs.records[userID]; ok && rec.Date == today {
		used = rec.Count
	}
	remaining := qs.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return models.QuotaUsage{
		UserID:    userID,
		Date:      today,
		Used:      used,
		Limit:     qs.limit,
		Remaining: remaining,
	}
}

func (qs *QuotaStore) settle(l *Lease, success bool) {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	rec, ok := qs.records[l.userID]
	if !ok || rec.Date != l.day {
		// The day rolled over while the request was in flight.
		return
	}
	if rec.pending > 0 {
		rec.pending--
	}
	if success {
		rec.Count++
	}
}

func (qs *QuotaStore) periodicCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-qs.stop:
			return
		case <-ticker.C:
			qs.CleanupStaleRecords()
		}
	}
}

// CleanupStaleRecords drops records from previous days. They would be reset
// on next use anyway, so removing them only bounds memory.
func (qs *QuotaStore) CleanupStaleRecords() int {
	qs.mu.Lock()
	defer qs.mu.Unlock()

	today := qs.today()
	removed := 0
	for userID, rec := range qs.records {
		if rec.Date != today && rec.pending == 0 {
			delete(qs.records, userID)
			removed++
		}
	}
	return removed
}

func (qs *QuotaStore) Len() int {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	return len(qs.records)
}

func (qs *QuotaStore) Close() {
	qs.stopOnce.Do(func() { close(qs.stop) })
}

// Lease is a reserved slot in a user's daily quota.
type Lease struct {
	store  *QuotaStore
	userID string
	day    string
	exempt bool
	once   sync.Once
}

func (l *Lease) Exempt() bool {
	return l.exempt
}

// Commit counts the reserved request against the quota.
func (l *Lease) Commit() {
	l.once.Do(func() {
		if !l.exempt {
			l.store.settle(l, true)
		}
	})
}

// Release gives the reserved slot back without counting it.
func (l *Lease) Release() {
	l.once.Do(func() {
		if !l.exempt {
			l.store.settle(l, false)
		}
	})
}
