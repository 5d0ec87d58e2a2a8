package subscription

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/magabrotheeeer/mealkit-lifecycle/internal/models"
)

// memRepository повторяет условия SQL-запросов хранилища, включая уникальность
// активной подписки пользователя и единственной открытой заморозки.
type memRepository struct {
	mu         sync.Mutex
	subs       map[int64]*models.Subscription
	freezes    map[int64]*models.FreezeRecord
	nextSub    int64
	nextFreeze int64
	createErr  error
	freezeErr  error
}

func newMemRepository() *memRepository {
	return &memRepository{
		subs:    make(map[int64]*models.Subscription),
		freezes: make(map[int64]*models.FreezeRecord),
	}
}

// seed добавляет подписку без проверки ограничений.
func (r *memRepository) seed(sub models.Subscription) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	sub.ID = r.nextSub
	r.subs[sub.ID] = &sub
	return sub.ID
}

func (r *memRepository) seedFreeze(rec models.FreezeRecord) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextFreeze++
	rec.ID = r.nextFreeze
	r.freezes[rec.ID] = &rec
	return rec.ID
}

func (r *memRepository) sub(id int64) models.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.subs[id]
}

func (r *memRepository) activeOf(userID string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for _, s := range r.subs {
		if s.UserID == userID && s.Status == models.SubscriptionActive {
			ids = append(ids, s.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *memRepository) GetSubscription(_ context.Context, id int64) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (r *memRepository) ActiveSubscriptionByUser(_ context.Context, userID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.UserID == userID && s.Status == models.SubscriptionActive {
			c := *s
			return &c, nil
		}
	}
	return nil, models.ErrNotFound
}

func (r *memRepository) CreateSubscription(_ context.Context, sub models.Subscription) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return 0, r.createErr
	}
	for _, s := range r.subs {
		if s.UserID == sub.UserID && s.Status == models.SubscriptionActive && sub.Status == models.SubscriptionActive {
			return 0, models.ErrConflict
		}
	}
	r.nextSub++
	sub.ID = r.nextSub
	r.subs[sub.ID] = &sub
	return sub.ID, nil
}

func (r *memRepository) list(match func(*models.Subscription) bool) []*models.Subscription {
	var out []*models.Subscription
	for _, s := range r.subs {
		if match(s) {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memRepository) ListActiveSubscriptionsDue(_ context.Context, now time.Time) ([]*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(s *models.Subscription) bool {
		return s.Status == models.SubscriptionActive && !s.EndDate.After(now)
	}), nil
}

func (r *memRepository) hasFreeze(subID int64, match func(*models.FreezeRecord) bool) bool {
	for _, f := range r.freezes {
		if f.SubscriptionID == subID && match(f) {
			return true
		}
	}
	return false
}

func (r *memRepository) ListSubscriptionsToFreeze(_ context.Context, now time.Time) ([]*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.freezeErr != nil {
		return nil, r.freezeErr
	}
	return r.list(func(s *models.Subscription) bool {
		return s.Status == models.SubscriptionActive && !s.IsFrozen && r.hasFreeze(s.ID, func(f *models.FreezeRecord) bool {
			return f.Open() && !f.FreezeStartDate.After(now)
		})
	}), nil
}

func (r *memRepository) ListSubscriptionsToUnfreeze(_ context.Context, now time.Time) ([]*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(s *models.Subscription) bool {
		return s.Status == models.SubscriptionActive && s.IsFrozen &&
			r.hasFreeze(s.ID, func(f *models.FreezeRecord) bool {
				return !f.Open() && !f.FreezeEndDate.After(now)
			}) &&
			!r.hasFreeze(s.ID, func(f *models.FreezeRecord) bool {
				return f.Open() && !f.FreezeStartDate.After(now)
			})
	}), nil
}

func (r *memRepository) SetFrozen(_ context.Context, id int64, frozen bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok || s.IsFrozen == frozen {
		return false, nil
	}
	s.IsFrozen = frozen
	return true, nil
}

func (r *memRepository) ExpireSubscription(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok || s.Status != models.SubscriptionActive {
		return false, nil
	}
	s.Status = models.SubscriptionExpired
	return true, nil
}

func (r *memRepository) CancelSubscription(_ context.Context, id int64, endDate time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok || s.Status != models.SubscriptionActive {
		return false, nil
	}
	s.Status = models.SubscriptionCanceled
	s.EndDate = endDate
	return true, nil
}

func (r *memRepository) ListFreezes(_ context.Context, subscriptionID int64) ([]models.FreezeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.FreezeRecord
	for _, f := range r.freezes {
		if f.SubscriptionID == subscriptionID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FreezeStartDate.Before(out[j].FreezeStartDate) })
	return out, nil
}

func (r *memRepository) GetFreeze(_ context.Context, id int64) (*models.FreezeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.freezes[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := *f
	return &c, nil
}

func (r *memRepository) CreateFreeze(_ context.Context, subscriptionID int64, start time.Time) (*models.FreezeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hasFreeze(subscriptionID, func(f *models.FreezeRecord) bool {
		return f.Open() || f.FreezeStartDate.Equal(start)
	}) {
		return nil, models.ErrConflict
	}
	r.nextFreeze++
	rec := &models.FreezeRecord{ID: r.nextFreeze, SubscriptionID: subscriptionID, FreezeStartDate: start}
	r.freezes[rec.ID] = rec
	s := r.subs[subscriptionID]
	s.ScheduledFreezeStart = &start
	s.ScheduledFreezeEnd = nil
	c := *rec
	return &c, nil
}

func (r *memRepository) DeleteFreeze(_ context.Context, subscriptionID, freezeID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.freezes[freezeID]
	if !ok || f.SubscriptionID != subscriptionID || !f.Open() {
		return models.ErrNotFound
	}
	delete(r.freezes, freezeID)
	s := r.subs[subscriptionID]
	s.ScheduledFreezeStart = nil
	s.ScheduledFreezeEnd = nil
	return nil
}

func (r *memRepository) CloseFreeze(_ context.Context, subscriptionID, freezeID int64, end time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.freezes[freezeID]
	if !ok || f.SubscriptionID != subscriptionID || !f.Open() {
		return models.ErrInvalidState
	}
	f.FreezeEndDate = &end
	s := r.subs[subscriptionID]
	s.IsFrozen = false
	s.ScheduledFreezeEnd = &end
	return nil
}
