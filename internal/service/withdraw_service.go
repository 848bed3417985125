package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"time"

	"gamevault/internal/chain"
	"gamevault/internal/config"
	"gamevault/internal/game"
	"gamevault/internal/ledger"
	"gamevault/internal/model"
	"gamevault/pkg/idgen"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrSigningFailure 扣款已提交但签名失败
	// 返回此错误时金币已扣，凭证停留在 CREATED 等待补签任务处理，
	// 调用方拿到 claim_no 后可轮询凭证状态，绝不要重新发起提现
	ErrSigningFailure = errors.New("签名服务暂不可用，扣款已生效，凭证稍后自动补签")
)

// ClaimSigner 提现签名能力
type ClaimSigner interface {
	SignClaim(wallet string, tokenAmount *big.Int, nonce int64) (string, error)
	Vault() string
}

// ClaimStore 凭证仓储能力（由 repository.ClaimRepository 实现）
type ClaimStore interface {
	GetByClaimNo(ctx context.Context, claimNo string) (*model.WithdrawClaim, error)
	GetByNonce(ctx context.Context, nonce int64) (*model.WithdrawClaim, error)
	AttachSignature(ctx context.Context, claimNo, signature string) error
	MarkDone(ctx context.Context, claimNo, txHash string) error
	ListByPlayerID(ctx context.Context, playerID string, page, pageSize int) ([]*model.WithdrawClaim, int64, error)
}

// WithdrawService 提现：链下扣款 + 签发链上领取凭证
type WithdrawService struct {
	store  ledger.Store
	claims ClaimStore
	signer ClaimSigner
	rdb    *redis.Client
	cfg    *config.Config
}

func NewWithdrawService(store ledger.Store, claims ClaimStore, signer ClaimSigner, rdb *redis.Client, cfg *config.Config) *WithdrawService {
	return &WithdrawService{
		store:  store,
		claims: claims,
		signer: signer,
		rdb:    rdb,
		cfg:    cfg,
	}
}

type WithdrawRequest struct {
	PlayerID string `json:"player_id"`
	Wallet   string `json:"wallet" binding:"required"`
	Amount   int64  `json:"amount" binding:"required,gt=0"`
}

type WithdrawResponse struct {
	ClaimNo      string `json:"claim_no"`
	Coin         int64  `json:"coin"` // 扣款后余额
	CoinAmount   int64  `json:"coin_amount"`
	TokenAmount  string `json:"token_amount"` // 代币最小单位，十进制字符串
	Nonce        int64  `json:"nonce"`
	Signature    string `json:"signature"`
	VaultAddress string `json:"vault_address"`
	Status       string `json:"status"`
}

// Withdraw 提现
//
// 【关键点】三段式流程，顺序不能动：
//  1. 纯校验：汇率换算结果 ≤0 直接拒绝（AMOUNT_TOO_SMALL），此时没有任何状态变更
//  2. 账本事务：扣款 + 凭证（CREATED，nonce 已定）+ 流水 + outbox 一起提交，
//     凭证和扣款不可分离——不存在"签名有了但没扣款"或反过来的中间态
//  3. 事务提交之后才调用签名器。签名是不可重入的外部操作，
//     放进事务体会在乐观锁重试时重复签名
//
// 签名失败不回滚扣款：凭证停留在 CREATED，由补签任务用同一个 nonce
// 重新签名。nonce 在扣款事务里就已固定，补签不产生第二笔有效凭证
func (s *WithdrawService) Withdraw(ctx context.Context, req *WithdrawRequest) (*WithdrawResponse, error) {
	// 先做纯换算校验，失败时无任何状态变更
	tokenAmount, err := chain.TokenAmount(req.Amount, s.cfg.Chain.SellRate)
	if err != nil {
		return nil, err
	}

	claimNo := idgen.GenerateClaimNo()
	nonce := idgen.NextNonce()
	var resp *WithdrawResponse
	var boundWallet string

	err = withPlayerLock(ctx, s.rdb, req.PlayerID, func() error {
		return s.store.RunAtomic(ctx, req.PlayerID, func(p *model.Player) (*ledger.Effects, error) {
			before := p.Coin
			now := time.Now()
			if err := game.ApplyWithdraw(p, req.Wallet, req.Amount, now); err != nil {
				return nil, err
			}
			boundWallet = p.WalletAddress

			claim := &model.WithdrawClaim{
				ClaimNo:       claimNo,
				PlayerID:      req.PlayerID,
				WalletAddress: p.WalletAddress,
				CoinAmount:    req.Amount,
				TokenAmount:   tokenAmount.String(),
				Nonce:         nonce,
				VaultAddress:  s.signer.Vault(),
				Status:        model.ClaimStatusCreated,
			}

			payload, _ := json.Marshal(map[string]interface{}{
				"claim_no":     claimNo,
				"player_id":    req.PlayerID,
				"coin_amount":  req.Amount,
				"token_amount": tokenAmount.String(),
				"nonce":        nonce,
			})

			resp = &WithdrawResponse{
				ClaimNo:      claimNo,
				Coin:         p.Coin,
				CoinAmount:   req.Amount,
				TokenAmount:  tokenAmount.String(),
				Nonce:        nonce,
				VaultAddress: claim.VaultAddress,
				Status:       model.ClaimStatusCreated,
			}
			return &ledger.Effects{
				Claims: []*model.WithdrawClaim{claim},
				Transactions: []*model.CoinTransaction{{
					TransactionNo: idgen.GenerateTransactionNo(),
					PlayerID:      req.PlayerID,
					RefNo:         claimNo,
					Amount:        -req.Amount,
					Type:          model.TransactionTypeWithdraw,
					BalanceBefore: before,
					BalanceAfter:  p.Coin,
					Remark:        "提现扣款",
				}},
				Outbox: []*model.OutboxMessage{{
					MessageKey: req.PlayerID,
					Topic:      s.cfg.Kafka.Topic.WithdrawClaim,
					Payload:    string(payload),
				}},
			}, nil
		})
	})
	if errors.Is(err, ledger.ErrPlayerNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, err
	}

	// 扣款已提交，从这里开始的失败都不能再影响账本
	signature, signErr := s.signer.SignClaim(boundWallet, tokenAmount, nonce)
	if signErr != nil {
		log.WithFields(log.Fields{
			"claim_no":  claimNo,
			"player_id": req.PlayerID,
			"nonce":     nonce,
		}).Errorf("提现签名失败，待补签: %v", signErr)
		return resp, ErrSigningFailure
	}

	if err := s.claims.AttachSignature(ctx, claimNo, signature); err != nil {
		// 补签任务可能抢先签好了，以库里的为准
		claim, getErr := s.claims.GetByClaimNo(ctx, claimNo)
		if getErr != nil || claim.Signature == "" {
			log.WithFields(log.Fields{"claim_no": claimNo}).Errorf("写入签名失败: %v", err)
			return resp, ErrSigningFailure
		}
		signature = claim.Signature
	}

	resp.Signature = signature
	resp.Status = model.ClaimStatusPrepared

	log.WithFields(log.Fields{
		"claim_no":     claimNo,
		"player_id":    req.PlayerID,
		"coin_amount":  req.Amount,
		"token_amount": tokenAmount.String(),
		"nonce":        nonce,
	}).Info("提现凭证签发成功")

	return resp, nil
}

// ListClaims 查询玩家提现记录
func (s *WithdrawService) ListClaims(ctx context.Context, playerID string, page, pageSize int) ([]*model.WithdrawClaim, int64, error) {
	return s.claims.ListByPlayerID(ctx, playerID, page, pageSize)
}
