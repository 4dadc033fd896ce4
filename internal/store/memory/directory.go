package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"FriendsWebServer/internal/domain"

	"github.com/google/uuid"
)

type Directory struct {
	mu    sync.RWMutex
	users map[string]domain.User
}

func NewDirectory() *Directory {
	return &Directory{users: make(map[string]domain.User)}
}

// Add stores u, assigning an id when it has none, and returns the stored user.
func (d *Directory) Add(u domain.User) domain.User {
	d.mu.Lock()
	defer d.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Status == "" {
		u.Status = domain.UserStatusActive
	}
	d.users[u.ID] = u
	return u
}

func (d *Directory) GetUserByID(_ context.Context, id string) (domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (d *Directory) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	u, err := d.GetUserByID(ctx, id)
	if err != nil {
		return domain.Profile{}, err
	}
	return u.Profile(), nil
}

func (d *Directory) GetProfiles(_ context.Context, ids []string) ([]domain.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.Profile, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if u, ok := d.users[id]; ok {
			out = append(out, u.Profile())
		}
	}
	return out, nil
}

func (d *Directory) ListProfiles(_ context.Context, excludeID, query string, skip, limit int) ([]domain.Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	query = strings.ToLower(query)
	var all []domain.Profile
	for _, u := range d.users {
		if u.ID == excludeID || u.Status != domain.UserStatusActive {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(u.Username), query) &&
			!strings.Contains(strings.ToLower(u.DisplayName), query) {
			continue
		}
		all = append(all, u.Profile())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })

	if skip >= len(all) {
		return []domain.Profile{}, nil
	}
	return all[skip:min(skip+limit, len(all))], nil
}
