package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDraftTTL bounds how long an untouched draft survives.
const DefaultDraftTTL = 24 * time.Hour

// DraftStore keeps one builder state per workflow and user in Redis.
// Writes are last-write-wins.
type DraftStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewDraftStore constructs a DraftStore. A non-positive ttl uses DefaultDraftTTL.
func NewDraftStore(client redis.Cmdable, ttl time.Duration) *DraftStore {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &DraftStore{client: client, ttl: ttl}
}

// Load returns the saved state. ok is false when no draft exists.
func (d *DraftStore) Load(ctx context.Context, workflow, userID string) (State, bool, error) {
	payload, err := d.client.Get(ctx, draftKey(workflow, userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("orders: load draft: %w", err)
	}
	var st State
	if err := json.Unmarshal(payload, &st); err != nil {
		return State{}, false, fmt.Errorf("orders: decode draft: %w", err)
	}
	return st, true, nil
}

// Save stores st and refreshes the TTL.
func (d *DraftStore) Save(ctx context.Context, workflow, userID string, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("orders: encode draft: %w", err)
	}
	if err := d.client.Set(ctx, draftKey(workflow, userID), data, d.ttl).Err(); err != nil {
		return fmt.Errorf("orders: save draft: %w", err)
	}
	return nil
}

// Delete drops the saved draft.
func (d *DraftStore) Delete(ctx context.Context, workflow, userID string) error {
	if err := d.client.Del(ctx, draftKey(workflow, userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("orders: delete draft: %w", err)
	}
	return nil
}

func draftKey(workflow, userID string) string {
	return "draft:" + workflow + ":" + userID
}
