package service

import (
	"context"

	"gamevault/internal/model"

	"github.com/go-redis/redis/v8"
)

// 排行榜 Redis 键名
const (
	LeaderboardLevelKey = "leaderboard:level"
	LeaderboardCoinKey  = "leaderboard:coin"
)

// Leaderboard Redis 排行榜
// 战斗结算后异步刷新，只是展示数据，允许和账本短暂不一致
type Leaderboard struct {
	client *redis.Client
}

func NewLeaderboard(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client}
}

// UpdatePlayer 刷新玩家在各榜单上的分数
func (l *Leaderboard) UpdatePlayer(ctx context.Context, p *model.Player) error {
	if l.client == nil || p == nil {
		return nil
	}
	if err := l.client.ZAdd(ctx, LeaderboardLevelKey, &redis.Z{
		Score:  float64(p.Level),
		Member: p.PlayerID,
	}).Err(); err != nil {
		return err
	}
	return l.client.ZAdd(ctx, LeaderboardCoinKey, &redis.Z{
		Score:  float64(p.Coin),
		Member: p.PlayerID,
	}).Err()
}

// LeaderboardEntry 榜单条目
type LeaderboardEntry struct {
	Rank     int     `json:"rank"`
	PlayerID string  `json:"player_id"`
	Score    float64 `json:"score"`
}

// Top 返回榜单前 N 名
func (l *Leaderboard) Top(ctx context.Context, key string, n int64) ([]LeaderboardEntry, error) {
	if l.client == nil {
		return nil, nil
	}
	zs, err := l.client.ZRevRangeWithScores(ctx, key, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		entries = append(entries, LeaderboardEntry{
			Rank:     i + 1,
			PlayerID: member,
			Score:    z.Score,
		})
	}
	return entries, nil
}
