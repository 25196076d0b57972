package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"ropatopia/internal/model"
)

// HistoryCache keeps a session's detail and chat records for historyTTL so
// reloading a questionnaire does not refetch them from the backend. An edit
// drops the entry and sets a dirty marker; while the marker lives
// (dirtyMarkerTTL) reads go to the backend and nothing is cached again.
type HistoryCache struct {
	client         *redisv9.Client
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewHistoryCache(client *redisv9.Client, historyTTL, dirtyMarkerTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &HistoryCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *HistoryCache) GetHistory(ctx context.Context, clientID, sessionID string) (*model.SessionDetail, bool, error) {
	raw, err := c.client.Get(ctx, c.historyKey(clientID, sessionID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var detail model.SessionDetail
	if err := json.Unmarshal([]byte(raw), &detail); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return &detail, true, nil
}

func (c *HistoryCache) SetHistory(ctx context.Context, clientID, sessionID string, detail *model.SessionDetail) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.historyKey(clientID, sessionID), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) DeleteHistory(ctx context.Context, clientID, sessionID string) error {
	if err := c.client.Del(ctx, c.historyKey(clientID, sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

// MarkDirty blocks repopulation for a short while after a write, so a read
// racing the write cannot put the old history back.
func (c *HistoryCache) MarkDirty(ctx context.Context, clientID, sessionID string) error {
	if err := c.client.Set(ctx, c.dirtyKey(clientID, sessionID), "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) IsDirty(ctx context.Context, clientID, sessionID string) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(clientID, sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *HistoryCache) historyKey(clientID, sessionID string) string {
	return fmt.Sprintf("ropatopia:chat:history:%s:%s", clientID, sessionID)
}

func (c *HistoryCache) dirtyKey(clientID, sessionID string) string {
	return fmt.Sprintf("ropatopia:chat:history:dirty:%s:%s", clientID, sessionID)
}
