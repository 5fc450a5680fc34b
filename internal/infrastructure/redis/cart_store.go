package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultCartTTL is how long an untouched cart is kept.
const DefaultCartTTL = 7 * 24 * time.Hour

// CartStore keeps each cart in a hash "cart:<userID>" mapping product id to
// quantity. Every write refreshes the key's TTL.
type CartStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCartStore(client *redis.Client, ttl time.Duration) *CartStore {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &CartStore{client: client, ttl: ttl}
}

// Connect opens a client and pings it.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func cartKey(userID string) string {
	return "cart:" + userID
}

func (s *CartStore) Items(ctx context.Context, userID string) (map[string]int, error) {
	raw, err := s.client.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}

	items := make(map[string]int, len(raw))
	for productID, v := range raw {
		qty, err := strconv.Atoi(v)
		if err != nil || qty <= 0 {
			continue
		}
		items[productID] = qty
	}
	return items, nil
}

func (s *CartStore) SetItem(ctx context.Context, userID, productID string, quantity int) error {
	key := cartKey(userID)
	if err := s.client.HSet(ctx, key, productID, strconv.Itoa(quantity)).Err(); err != nil {
		return fmt.Errorf("failed to write cart item: %w", err)
	}
	return s.touch(ctx, key)
}

func (s *CartStore) RemoveItem(ctx context.Context, userID, productID string) error {
	if err := s.client.HDel(ctx, cartKey(userID), productID).Err(); err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

func (s *CartStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (s *CartStore) touch(ctx context.Context, key string) error {
	if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to refresh cart ttl: %w", err)
	}
	return nil
}
