package service

import (
	"context"
	"testing"

	"gamevault/internal/game"
	"gamevault/internal/ledger"
	"gamevault/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBattleFixture(t *testing.T) (*ledger.MemoryStore, *BattleService) {
	t.Helper()
	store := ledger.NewMemoryStore()
	svc := NewBattleService(store, nil, testConfig())

	players := NewPlayerService(store, nil, testConfig())
	_, err := players.Register(context.Background(), &RegisterRequest{
		PlayerID: "p1", Name: "alice", Wallet: testWallet,
	})
	require.NoError(t, err)
	return store, svc
}

func TestBattleStart(t *testing.T) {
	store, svc := newBattleFixture(t)

	resp, err := svc.Start(context.Background(), "p1", 1)
	require.NoError(t, err)

	assert.NotEmpty(t, resp.BattleNo)
	assert.Equal(t, int64(20), resp.EntryFee)
	assert.Equal(t, int64(20), resp.Coin)

	// 入场费走流水
	var fee *model.CoinTransaction
	for _, tx := range store.Transactions {
		if tx.Type == model.TransactionTypeBattleFee {
			fee = tx
		}
	}
	require.NotNil(t, fee)
	assert.Equal(t, int64(-20), fee.Amount)
	assert.Equal(t, resp.BattleNo, fee.RefNo)
}

func TestBattleStartInsufficientCoin(t *testing.T) {
	_, svc := newBattleFixture(t)

	settleDraw := func() {
		_, err := svc.Result(context.Background(), &BattleResultRequest{
			PlayerID: "p1", MonsterID: 1, Result: model.BattleResultDraw,
		})
		require.NoError(t, err)
	}

	// 40 金币只够开两场（平局不返还托管费）
	_, err := svc.Start(context.Background(), "p1", 1)
	require.NoError(t, err)
	settleDraw()
	_, err = svc.Start(context.Background(), "p1", 1)
	require.NoError(t, err)
	settleDraw()

	_, err = svc.Start(context.Background(), "p1", 1)
	assert.ErrorIs(t, err, game.ErrInsufficientCoin)
}

// 托管中不允许重复开战，连点开战不会重复扣费
func TestBattleStartWhileInBattle(t *testing.T) {
	store, svc := newBattleFixture(t)

	_, err := svc.Start(context.Background(), "p1", 1)
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), "p1", 1)
	assert.ErrorIs(t, err, game.ErrBattleInProgress)

	p, err := store.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), p.Coin)
}

// 没开战就上报结算一分钱也刷不到
func TestBattleResultWithoutStart(t *testing.T) {
	store, svc := newBattleFixture(t)

	for i := 0; i < 3; i++ {
		_, err := svc.Result(context.Background(), &BattleResultRequest{
			PlayerID:    "p1",
			MonsterID:   1,
			Result:      model.BattleResultWin,
			PlayerHpPct: 1,
		})
		assert.ErrorIs(t, err, game.ErrNoActiveBattle)
	}

	p, err := store.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(game.StartingCoin), p.Coin)
	assert.Equal(t, int64(0), p.EarnedToday)
	assert.Empty(t, store.Battles)
	assert.Empty(t, store.Outbox)
}

func TestBattleStartUnknownMonster(t *testing.T) {
	_, svc := newBattleFixture(t)
	_, err := svc.Start(context.Background(), "p1", 99)
	assert.ErrorIs(t, err, ErrMonsterNotFound)
}

func TestBattleStartNotRegistered(t *testing.T) {
	store := ledger.NewMemoryStore()
	svc := NewBattleService(store, nil, testConfig())
	_, err := svc.Start(context.Background(), "ghost", 1)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestBattleResultWin(t *testing.T) {
	store, svc := newBattleFixture(t)

	start, err := svc.Start(context.Background(), "p1", 1)
	require.NoError(t, err)

	resp, err := svc.Result(context.Background(), &BattleResultRequest{
		PlayerID:    "p1",
		MonsterID:   1,
		Result:      model.BattleResultWin,
		PlayerHpPct: 0.8,
		EnemyHpPct:  0,
		BattleNo:    start.BattleNo,
	})
	require.NoError(t, err)

	// 40 - 20(入场) + 20(返还) + 20(奖励)
	assert.Equal(t, int64(60), resp.Coin)
	assert.Equal(t, int64(20), resp.FeeRefund)
	assert.Equal(t, int64(20), resp.RewardCoin)
	assert.Equal(t, int64(1), resp.RewardExp)
	assert.Equal(t, int64(20), resp.EarnedToday)
	assert.False(t, resp.IsLevelUp)

	// 战斗记录落库
	require.Len(t, store.Battles, 1)
	assert.Equal(t, start.BattleNo, store.Battles[0].BattleNo)
	assert.Equal(t, model.BattleResultWin, store.Battles[0].Result)

	// 返还与奖励两笔流水，余额链路连续
	var refund, reward *model.CoinTransaction
	for _, tx := range store.Transactions {
		switch tx.Type {
		case model.TransactionTypeBattleRefund:
			refund = tx
		case model.TransactionTypeBattleReward:
			reward = tx
		}
	}
	require.NotNil(t, refund)
	require.NotNil(t, reward)
	assert.Equal(t, refund.BalanceAfter, reward.BalanceBefore)
	assert.Equal(t, int64(60), reward.BalanceAfter)

	// 结算事件进 outbox
	require.Len(t, store.Outbox, 1)
	assert.Equal(t, "battle.settled", store.Outbox[0].Topic)
	assert.Equal(t, model.OutboxStatusPending, store.Outbox[0].Status)
}

func TestBattleResultLose(t *testing.T) {
	store, svc := newBattleFixture(t)

	start, err := svc.Start(context.Background(), "p1", 1)
	require.NoError(t, err)

	resp, err := svc.Result(context.Background(), &BattleResultRequest{
		PlayerID:   "p1",
		MonsterID:  1,
		Result:     model.BattleResultLose,
		EnemyHpPct: 0.9,
		BattleNo:   start.BattleNo,
	})
	require.NoError(t, err)

	// 惨败全额没收，余额停在入场费扣除后
	assert.Equal(t, int64(20), resp.Coin)
	assert.Equal(t, int64(0), resp.FeeRefund)
	assert.Equal(t, int64(0), resp.RewardCoin)

	require.Len(t, store.Battles, 1)
	// 没收场次没有返还/奖励流水
	for _, tx := range store.Transactions {
		assert.NotEqual(t, model.TransactionTypeBattleRefund, tx.Type)
		assert.NotEqual(t, model.TransactionTypeBattleReward, tx.Type)
	}
}

func TestBattleResultDailyLimitClamp(t *testing.T) {
	store, svc := newBattleFixture(t)

	// 把今日额度几乎用光
	err := store.RunAtomic(context.Background(), "p1", func(p *model.Player) (*ledger.Effects, error) {
		p.Coin = 1000
		p.EarnedToday = testConfig().Business.DailyGameLimit - 10
		return nil, nil
	})
	require.NoError(t, err)

	start, err := svc.Start(context.Background(), "p1", 6) // boss HP 150
	require.NoError(t, err)

	resp, err := svc.Result(context.Background(), &BattleResultRequest{
		PlayerID:    "p1",
		MonsterID:   6,
		Result:      model.BattleResultWin,
		PlayerHpPct: 1,
		BattleNo:    start.BattleNo,
	})
	require.NoError(t, err)

	assert.True(t, resp.HitDailyLimit)
	assert.Equal(t, int64(10), resp.RewardCoin)
	assert.Equal(t, testConfig().Business.DailyGameLimit, resp.EarnedToday)
	// 入场费返还不占额度
	assert.Equal(t, int64(20), resp.FeeRefund)
}

func TestBattleResultUnknownMonster(t *testing.T) {
	_, svc := newBattleFixture(t)
	_, err := svc.Result(context.Background(), &BattleResultRequest{
		PlayerID: "p1", MonsterID: 42, Result: model.BattleResultWin,
	})
	assert.ErrorIs(t, err, ErrMonsterNotFound)
}
