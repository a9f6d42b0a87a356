package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"bitcoin-ai-trader/config"
	"bitcoin-ai-trader/logger"
	"bitcoin-ai-trader/types"
)

const (
	maxSignals = 500
	maxTrades  = 1000

	redisKeySignals = "trader:signals"
	redisKeyTrades  = "trader:trades"
	redisRetention  = 7 * 24 * time.Hour
	redisTimeout    = 3 * time.Second
)

// Store keeps the signal and trade history in bounded in-memory rings
// and, when Redis is configured and reachable, mirrors every record
// into Redis sorted sets keyed by timestamp. Redis failures degrade to
// memory-only operation, never to an error for the caller.
type Store struct {
	mu      sync.RWMutex
	signals []types.SignalOpinion
	trades  []types.Trade

	rdb      *redis.Client
	useRedis bool
}

// NewStore builds the store and probes Redis once at startup.
func NewStore(cfg config.RedisConfig) *Store {
	s := &Store{}

	if !cfg.Enabled || cfg.Addr == "" {
		logger.Info("Redis disabled, signal history kept in memory only")
		return s
	}

	s.rdb = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.rdb.Ping(ctx).Result(); err != nil {
		logger.Warn(fmt.Sprintf("Redis unreachable at %s, falling back to memory only: %v", cfg.Addr, err))
		return s
	}

	s.useRedis = true
	logger.Info(fmt.Sprintf("Redis connected at %s", cfg.Addr))
	return s
}

// SaveSignal appends an emitted signal to the history.
func (s *Store) SaveSignal(opinion types.SignalOpinion) {
	s.mu.Lock()
	s.signals = append(s.signals, opinion)
	if len(s.signals) > maxSignals {
		s.signals = s.signals[len(s.signals)-maxSignals:]
	}
	s.mu.Unlock()

	if s.useRedis {
		go s.mirror(redisKeySignals, opinion.Timestamp, opinion)
	}
}

// SaveTrade appends an executed trade to the history.
func (s *Store) SaveTrade(trade types.Trade) {
	s.mu.Lock()
	s.trades = append(s.trades, trade)
	if len(s.trades) > maxTrades {
		s.trades = s.trades[len(s.trades)-maxTrades:]
	}
	s.mu.Unlock()

	if s.useRedis {
		go s.mirror(redisKeyTrades, trade.Timestamp, trade)
	}
}

// mirror writes one record into a Redis sorted set scored by unix time
// and trims anything past the retention window.
func (s *Store) mirror(key string, ts time.Time, record interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	value, err := json.Marshal(record)
	if err != nil {
		logger.Warn(fmt.Sprintf("marshal for redis mirror failed: %v", err))
		return
	}

	if err := s.rdb.ZAdd(ctx, key, &redis.Z{
		Score:  float64(ts.Unix()),
		Member: value,
	}).Err(); err != nil {
		logger.Warn(fmt.Sprintf("redis mirror %s failed: %v", key, err))
		return
	}

	cutoff := float64(time.Now().Add(-redisRetention).Unix())
	s.rdb.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%.0f", cutoff))
	s.rdb.Expire(ctx, key, redisRetention)
}

// LatestSignal returns the most recent signal, or nil before the first
// cycle completes.
func (s *Store) LatestSignal() *types.SignalOpinion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.signals) == 0 {
		return nil
	}
	latest := s.signals[len(s.signals)-1]
	return &latest
}

// Signals returns up to limit most recent signals, oldest first.
func (s *Store) Signals(limit int) []types.SignalOpinion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.signals) {
		limit = len(s.signals)
	}
	out := make([]types.SignalOpinion, limit)
	copy(out, s.signals[len(s.signals)-limit:])
	return out
}

// Trades returns up to limit most recent trades, oldest first.
func (s *Store) Trades(limit int) []types.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.trades) {
		limit = len(s.trades)
	}
	out := make([]types.Trade, limit)
	copy(out, s.trades[len(s.trades)-limit:])
	return out
}

// Stats reports the store's occupancy and Redis status.
func (s *Store) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"signals":       len(s.signals),
		"trades":        len(s.trades),
		"redis_enabled": s.useRedis,
	}
}
