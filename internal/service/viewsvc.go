package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"FriendsWebServer/internal/domain"
)

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 100
)

// RelationshipsReader is the read side of the relationship store. Results are
// ordered by creation time.
type RelationshipsReader interface {
	ListAccepted(ctx context.Context, userID string) ([]domain.Relationship, error)
	ListPendingReceived(ctx context.Context, userID string) ([]domain.Relationship, error)
	ListBetween(ctx context.Context, viewerID string, otherIDs []string) ([]domain.Relationship, error)
}

// Directory is the user directory as seen by the view builder.
type Directory interface {
	GetProfiles(ctx context.Context, ids []string) ([]domain.Profile, error)
	GetProfile(ctx context.Context, id string) (domain.Profile, error)
	ListProfiles(ctx context.Context, excludeID, query string, skip, limit int) ([]domain.Profile, error)
}

// FriendIDsCache holds accepted friend ids per user. Set must drop the write
// when the entry was invalidated after the Get that returned version.
type FriendIDsCache interface {
	Get(ctx context.Context, userID string) (ids []string, version int64, ok bool, err error)
	Set(ctx context.Context, userID string, version int64, friendIDs []string) error
}

// RelationshipViews builds per-viewer projections over relationships and the
// directory. It never writes relationship records.
type RelationshipViews struct {
	Relationships RelationshipsReader
	Directory     Directory
	Cache         FriendIDsCache
	Logger        *slog.Logger
}

func (v *RelationshipViews) ListFriends(ctx context.Context, viewerID string, skip, limit int) ([]domain.Profile, error) {
	skip, limit, err := normalizePage(skip, limit)
	if err != nil {
		return nil, err
	}

	ids, err := v.friendIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.Profile{}, nil
	}

	profiles, err := v.Directory.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Username != profiles[j].Username {
			return profiles[i].Username < profiles[j].Username
		}
		return profiles[i].ID < profiles[j].ID
	})

	if skip >= len(profiles) {
		return []domain.Profile{}, nil
	}
	end := min(skip+limit, len(profiles))
	return profiles[skip:end], nil
}

func (v *RelationshipViews) friendIDs(ctx context.Context, viewerID string) ([]string, error) {
	var (
		version   int64
		cacheable bool
	)
	if v.Cache != nil {
		ids, ver, ok, err := v.Cache.Get(ctx, viewerID)
		switch {
		case err != nil:
			v.logger().Warn("friend cache read failed", "err", err, "user_id", viewerID)
		case ok:
			return ids, nil
		default:
			version, cacheable = ver, true
		}
	}

	rels, err := v.Relationships.ListAccepted(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rels))
	for _, rel := range rels {
		ids = append(ids, rel.OtherParty(viewerID))
	}

	if cacheable {
		if err := v.Cache.Set(ctx, viewerID, version, ids); err != nil {
			v.logger().Warn("friend cache write failed", "err", err, "user_id", viewerID)
		}
	}
	return ids, nil
}

func (v *RelationshipViews) ListPendingReceived(ctx context.Context, viewerID string) ([]domain.PendingRequest, error) {
	rels, err := v.Relationships.ListPendingReceived(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if len(rels) == 0 {
		return []domain.PendingRequest{}, nil
	}

	ids := make([]string, 0, len(rels))
	for _, rel := range rels {
		ids = append(ids, rel.RequesterID)
	}
	byID, err := v.profilesByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.PendingRequest, 0, len(rels))
	for _, rel := range rels {
		p, ok := byID[rel.RequesterID]
		if !ok {
			v.logger().Warn("pending request without requester profile",
				"relationship_id", rel.ID, "requester_id", rel.RequesterID, "user_id", viewerID)
			continue
		}
		out = append(out, domain.PendingRequest{
			ID:        rel.ID,
			Requester: p,
			Status:    rel.Status,
			CreatedAt: rel.CreatedAt,
			UpdatedAt: rel.UpdatedAt,
		})
	}
	return out, nil
}

// AnnotateUsers labels every candidate with its relationship to the viewer.
// The viewer is dropped from the result; candidate order is kept.
func (v *RelationshipViews) AnnotateUsers(ctx context.Context, viewerID string, candidates []domain.Profile) ([]domain.UserWithLabel, error) {
	others := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.ID != viewerID {
			others = append(others, c.ID)
		}
	}
	if len(others) == 0 {
		return []domain.UserWithLabel{}, nil
	}

	rels, err := v.Relationships.ListBetween(ctx, viewerID, others)
	if err != nil {
		return nil, err
	}
	byOther := make(map[string]*domain.Relationship, len(rels))
	for i := range rels {
		byOther[rels[i].OtherParty(viewerID)] = &rels[i]
	}

	out := make([]domain.UserWithLabel, 0, len(others))
	for _, c := range candidates {
		if c.ID == viewerID {
			continue
		}
		out = append(out, domain.UserWithLabel{
			ID:                 c.ID,
			Username:           c.Username,
			DisplayName:        c.DisplayName,
			AvatarPath:         c.AvatarPath,
			RelationshipStatus: domain.DeriveLabel(byOther[c.ID], viewerID),
		})
	}
	return out, nil
}

// BrowseUsers pages through the directory, excluding the viewer, and labels each user.
func (v *RelationshipViews) BrowseUsers(ctx context.Context, viewerID, query string, skip, limit int) ([]domain.UserWithLabel, error) {
	skip, limit, err := normalizePage(skip, limit)
	if err != nil {
		return nil, err
	}
	profiles, err := v.Directory.ListProfiles(ctx, viewerID, strings.TrimSpace(query), skip, limit)
	if err != nil {
		return nil, err
	}
	return v.AnnotateUsers(ctx, viewerID, profiles)
}

func (v *RelationshipViews) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Profile{}, domain.NewValidationError(map[string]string{"id": "required"})
	}
	return v.Directory.GetProfile(ctx, id)
}

func (v *RelationshipViews) profilesByID(ctx context.Context, ids []string) (map[string]domain.Profile, error) {
	profiles, err := v.Directory.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Profile, len(profiles))
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

func (v *RelationshipViews) logger() *slog.Logger {
	if v.Logger == nil {
		return slog.Default()
	}
	return v.Logger
}

func normalizePage(skip, limit int) (int, int, error) {
	if skip < 0 {
		return 0, 0, domain.NewValidationError(map[string]string{"skip": "must be >= 0"})
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return skip, limit, nil
}
