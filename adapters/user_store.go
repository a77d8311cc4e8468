package adapters

import (
	"context"
	"time"

	f "github.com/soffa-projects/matchqueue/core"
	"github.com/soffa-projects/matchqueue/h"
	"github.com/uptrace/bun"
)

type UserStore struct {
	db *DB
}

func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Save(ctx context.Context, user *f.User) error {
	_, err := s.db.NewInsert().
		Model(user).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("hide_status = EXCLUDED.hide_status").
		Exec(ctx)
	return err
}

// GetUsers returns the users matching ids, in the order of ids. Unknown
// ids are skipped.
func (s *UserStore) GetUsers(ctx context.Context, ids []string) ([]f.User, error) {
	if len(ids) == 0 {
		return []f.User{}, nil
	}
	var users []f.User
	if err := s.db.NewSelect().Model(&users).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, err
	}
	byID := make(map[string]f.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]f.User, 0, len(users))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// CachedUserDirectory memoizes lookups per user id.
type CachedUserDirectory struct {
	next  f.UserDirectory
	cache *h.Cache[f.User]
}

func NewCachedUserDirectory(next f.UserDirectory, ttl time.Duration) (*CachedUserDirectory, error) {
	cache, err := h.NewCache[f.User](ttl)
	if err != nil {
		return nil, err
	}
	return &CachedUserDirectory{next: next, cache: cache}, nil
}

func (d *CachedUserDirectory) GetUsers(ctx context.Context, ids []string) ([]f.User, error) {
	found := make(map[string]f.User, len(ids))
	var missing []string
	for _, id := range ids {
		if u, ok := d.cache.Get(id); ok {
			found[id] = u
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		loaded, err := d.next.GetUsers(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, u := range loaded {
			found[u.ID] = u
			d.cache.Set(u.ID, u)
		}
	}
	out := make([]f.User, 0, len(found))
	for _, id := range ids {
		if u, ok := found[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// Invalidate drops a user so the next lookup reloads it, e.g. after the
// user toggled HideStatus.
func (d *CachedUserDirectory) Invalidate(id string) {
	d.cache.Del(id)
}

func (d *CachedUserDirectory) Close() {
	d.cache.Close()
}
