package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"
)

// Reminder is one scheduled reminder. Owned by exactly one user; the
// sweep only ever flips IsNotified.
type Reminder struct {
	ID          int64  `json:"id"` // creation-time milliseconds, sortable unique key
	OwnerID     string `json:"-"`
	Title       string `json:"title"`
	Time        string `json:"time"` // "HH:MM"
	Date        string `json:"date"` // "DD/MM/YYYY"
	Category    string `json:"category"`
	Color       string `json:"color"`
	IsNotified  bool   `json:"is_notified"`
	IsDefaulted bool   `json:"is_defaulted"`
}

const (
	reminderTimeLayout = "15:04"
	reminderDateLayout = "02/01/2006"
)

// Category keyword classification. Health is checked before work; first
// match wins, personal is the default.
var (
	healthKeywords = []string{"thuốc", "bác sĩ", "khám", "gym", "tập", "thể dục", "ngủ", "ăn", "uống", "đau"}
	workKeywords   = []string{"họp", "deadline", "báo cáo", "mail", "team", "dự án", "code", "nộp", "sếp", "học", "bài"}

	categoryColors = map[string]string{
		"work":     "#007BFF",
		"health":   "#10B981",
		"personal": "#FF6B9D",
	}
	categoryNamesVi = map[string]string{
		"work":     "công việc",
		"health":   "sức khỏe",
		"personal": "cá nhân",
	}
)

func determineCategory(text string) string {
	lower := strings.ToLower(text)
	if containsAny(lower, healthKeywords) {
		return "health"
	}
	if containsAny(lower, workKeywords) {
		return "work"
	}
	return "personal"
}

// ReminderEngine owns the reminder lifecycle: creation, the recurring
// due-check sweep, and startup catch-up of missed reminders.
type ReminderEngine struct {
	store    ReminderStore
	notifier Notifier
	interval time.Duration
	grace    time.Duration

	now func() time.Time // injectable clock for tests

	idMu   sync.Mutex
	lastID int64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func newReminderEngine(store ReminderStore, notifier Notifier, cfg ReminderConfig) *ReminderEngine {
	return &ReminderEngine{
		store:    store,
		notifier: notifier,
		interval: cfg.checkIntervalOrDefault(),
		grace:    cfg.missedGraceOrDefault(),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// nextID returns a creation-time millisecond timestamp, bumped past the
// previous one so two reminders created in the same millisecond still
// get distinct sortable keys.
func (e *ReminderEngine) nextID() int64 {
	e.idMu.Lock()
	defer e.idMu.Unlock()
	id := e.now().UnixMilli()
	if id <= e.lastID {
		id = e.lastID + 1
	}
	e.lastID = id
	return id
}

// AddFromText creates a reminder from a voice phrase like
// "9 giờ sáng mai họp team" and returns a spoken confirmation. When the
// time could not be understood the one-minute default applies and the
// confirmation says so explicitly.
func (e *ReminderEngine) AddFromText(ownerID, text string) (Reminder, string, error) {
	if ownerID == "" {
		return Reminder{}, "", fmt.Errorf("missing owner id")
	}
	resolved, defaulted := resolveTime(text, e.now())
	category := determineCategory(text)

	r := Reminder{
		ID:          e.nextID(),
		OwnerID:     ownerID,
		Title:       capitalizeFirst(strings.TrimSpace(text)),
		Time:        resolved.Format(reminderTimeLayout),
		Date:        resolved.Format(reminderDateLayout),
		Category:    category,
		Color:       categoryColors[category],
		IsDefaulted: defaulted,
	}
	if err := e.store.Put(ownerID, r); err != nil {
		return Reminder{}, "", fmt.Errorf("save reminder: %w", err)
	}

	msg := fmt.Sprintf("Đã lên lịch %s: %s lúc %s ngày %s",
		categoryNamesVi[category], r.Title, r.Time, r.Date)
	if defaulted {
		msg = "Tôi không nghe rõ giờ, nên đặt sau 1 phút nhé. " + msg
	}
	logInfo("reminder added", "owner", ownerID, "id", r.ID,
		"time", r.Time, "date", r.Date, "category", category, "defaulted", defaulted)
	return r, msg, nil
}

// AddFromStructured persists caller-supplied fields directly, assigning
// a fresh id and forcing the pending state.
func (e *ReminderEngine) AddFromStructured(ownerID string, r Reminder) (Reminder, error) {
	if ownerID == "" {
		return Reminder{}, fmt.Errorf("missing owner id")
	}
	r.ID = e.nextID()
	r.OwnerID = ownerID
	r.IsNotified = false
	if r.Category == "" {
		r.Category = "personal"
	}
	if r.Color == "" {
		r.Color = categoryColors[r.Category]
	}
	if err := e.store.Put(ownerID, r); err != nil {
		return Reminder{}, fmt.Errorf("save reminder: %w", err)
	}
	return r, nil
}

func (e *ReminderEngine) List(ownerID string) ([]Reminder, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("missing owner id")
	}
	return e.store.List(ownerID)
}

func (e *ReminderEngine) Delete(ownerID string, id int64) error {
	if ownerID == "" {
		return fmt.Errorf("missing owner id")
	}
	return e.store.Delete(ownerID, id)
}

// Update applies a partial edit. The store resets is_notified so an
// edited time is picked up again by the sweep.
func (e *ReminderEngine) Update(ownerID string, id int64, patch ReminderPatch) error {
	if ownerID == "" {
		return fmt.Errorf("missing owner id")
	}
	return e.store.Update(ownerID, id, patch)
}

// Start launches the recurring sweep goroutine. Stop (or ctx
// cancellation) shuts it down.
func (e *ReminderEngine) Start(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		logInfo("reminder engine started", "interval", e.interval.String())
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stopCh:
				return
			case <-ticker.C:
				e.sweep()
			}
		}
	}()
}

// Stop halts the sweep loop and waits for it to exit.
func (e *ReminderEngine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

// sweep fires every reminder due at the current wall-clock minute.
// Comparison is string equality on the stored "HH:MM"/"DD/MM/YYYY"
// fields; firing is idempotent through the store's conditional mark.
// Coinciding reminders are batched into one notification per owner so
// the user is not interrupted back-to-back.
func (e *ReminderEngine) sweep() {
	now := e.now()
	curTime := now.Format(reminderTimeLayout)
	curDate := now.Format(reminderDateLayout)

	pending, err := e.store.ListPending(true, "")
	if err != nil {
		// Retried on the next tick.
		logWarn("sweep query failed", "error", err)
		return
	}

	due := map[string][]string{}
	var owners []string
	for _, r := range pending {
		if r.Date != curDate || r.Time != curTime {
			continue
		}
		fired, err := e.store.MarkNotified(r.OwnerID, r.ID)
		if err != nil {
			logWarn("mark notified failed", "owner", r.OwnerID, "id", r.ID, "error", err)
			continue
		}
		if !fired {
			continue // already fired by an earlier scan
		}
		if _, seen := due[r.OwnerID]; !seen {
			owners = append(owners, r.OwnerID)
		}
		due[r.OwnerID] = append(due[r.OwnerID], r.Title)
		logInfo("reminder fired", "owner", r.OwnerID, "id", r.ID, "title", r.Title)
	}

	for _, owner := range owners {
		titles := due[owner]
		var msg string
		if len(titles) == 1 {
			msg = fmt.Sprintf("Đến giờ rồi bạn ơi: %s", titles[0])
		} else {
			msg = fmt.Sprintf("Đến giờ rồi, có %d việc cần làm: %s",
				len(titles), strings.Join(titles, ", "))
		}
		e.notifier.Notify(owner, msg)
	}
}

// CatchMissed runs once at startup. Pending reminders overdue by less
// than the grace window fire with a distinct "missed" phrasing; older
// ones are left alone so stale alerts never resurface.
func (e *ReminderEngine) CatchMissed() {
	now := e.now()
	pending, err := e.store.ListPending(true, "")
	if err != nil {
		logWarn("catch-missed query failed", "error", err)
		return
	}

	missed := map[string][]string{}
	var owners []string
	for _, r := range pending {
		due, err := time.ParseInLocation(
			reminderDateLayout+" "+reminderTimeLayout, r.Date+" "+r.Time, now.Location())
		if err != nil {
			logWarn("skip reminder with bad timestamp", "owner", r.OwnerID, "id", r.ID, "error", err)
			continue
		}
		if !due.Before(now) || now.Sub(due) >= e.grace {
			continue
		}
		fired, err := e.store.MarkNotified(r.OwnerID, r.ID)
		if err != nil || !fired {
			continue
		}
		if _, seen := missed[r.OwnerID]; !seen {
			owners = append(owners, r.OwnerID)
		}
		missed[r.OwnerID] = append(missed[r.OwnerID], r.Title)
		logInfo("missed reminder fired", "owner", r.OwnerID, "id", r.ID, "title", r.Title)
	}

	for _, owner := range owners {
		e.notifier.Notify(owner, fmt.Sprintf(
			"Xin chào, bạn đã lỡ các nhắc nhở sau: %s", strings.Join(missed[owner], ", ")))
	}
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
