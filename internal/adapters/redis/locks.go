package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	rdb *redis.Client
}

func NewClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) Raw() *redis.Client {
	return c.rdb
}

// AcquireIssueLock serializes ticket issuance for one (event, attendee) pair
// across processes. Best effort: losing the lock only costs a wasted insert
// round trip, the unique index on tickets is the real guarantee.
func (c *Client) AcquireIssueLock(ctx context.Context, eventID, userID string, ttl time.Duration) (bool, error) {
	res := c.rdb.SetNX(ctx, "issue:"+eventID+":"+userID, "1", ttl)
	return res.Val(), res.Err()
}

func (c *Client) ReleaseIssueLock(ctx context.Context, eventID, userID string) error {
	return c.rdb.Del(ctx, "issue:"+eventID+":"+userID).Err()
}
