// Package cache keeps each user's accepted friend ids in redis so the friends
// list does not rescan relationships on every read.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// emptyMarker stands in for an empty friend set, which redis cannot store.
const emptyMarker = "-"

// versionTTL outlives any single read of the friend list.
const versionTTL = 24 * time.Hour

var errStaleVersion = errors.New("friend ids version changed")

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type FriendIDs struct {
	client goredis.UniversalClient
	ttl    time.Duration
	prefix string
}

func Open(ctx context.Context, cfg Config) (*FriendIDs, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, cfg.TTL), nil
}

func New(client goredis.UniversalClient, ttl time.Duration) *FriendIDs {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &FriendIDs{client: client, ttl: ttl, prefix: "friends:ids:"}
}

func (c *FriendIDs) key(userID string) string        { return c.prefix + userID }
func (c *FriendIDs) versionKey(userID string) string { return c.prefix + "v:" + userID }

// Get returns the cached friend ids for userID. On a miss it still returns the
// entry's current version, which the caller hands back to Set.
func (c *FriendIDs) Get(ctx context.Context, userID string) ([]string, int64, bool, error) {
	pipe := c.client.Pipeline()
	membersCmd := pipe.SMembers(ctx, c.key(userID))
	versionCmd := pipe.Get(ctx, c.versionKey(userID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, 0, false, fmt.Errorf("read friend ids: %w", err)
	}

	version, err := versionOf(versionCmd)
	if err != nil {
		return nil, 0, false, err
	}
	members := membersCmd.Val()
	if len(members) == 0 {
		return nil, version, false, nil
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m != emptyMarker {
			ids = append(ids, m)
		}
	}
	return ids, version, true, nil
}

// Set stores friendIDs for userID unless the entry was invalidated after the
// read that produced version. A skipped write is not an error.
func (c *FriendIDs) Set(ctx context.Context, userID string, version int64, friendIDs []string) error {
	key, vkey := c.key(userID), c.versionKey(userID)
	members := make([]any, 0, len(friendIDs)+1)
	if len(friendIDs) == 0 {
		members = append(members, emptyMarker)
	}
	for _, id := range friendIDs {
		members = append(members, id)
	}

	err := c.client.Watch(ctx, func(tx *goredis.Tx) error {
		current, err := versionOf(tx.Get(ctx, vkey))
		if err != nil {
			return err
		}
		if current != version {
			return errStaleVersion
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SAdd(ctx, key, members...)
			pipe.Expire(ctx, key, c.ttl)
			return nil
		})
		return err
	}, vkey)
	if errors.Is(err, errStaleVersion) || errors.Is(err, goredis.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("write friend ids: %w", err)
	}
	return nil
}

// Invalidate drops the entries of userIDs and bumps their versions so that
// reads already in flight cannot write them back.
func (c *FriendIDs) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, id := range userIDs {
			pipe.Del(ctx, c.key(id))
			pipe.Incr(ctx, c.versionKey(id))
			pipe.Expire(ctx, c.versionKey(id), versionTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate friend ids: %w", err)
	}
	return nil
}

func versionOf(cmd *goredis.StringCmd) (int64, error) {
	v, err := cmd.Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read friend ids version: %w", err)
	}
	return v, nil
}

func (c *FriendIDs) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *FriendIDs) Close() error {
	return c.client.Close()
}
