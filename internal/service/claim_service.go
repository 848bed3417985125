package service

import (
	"context"
	"errors"
	"fmt"

	"gamevault/internal/model"
	"gamevault/internal/repository"

	log "github.com/sirupsen/logrus"
)

var (
	ErrClaimNotFound  = errors.New("提现凭证不存在")
	ErrClaimNotReady  = errors.New("凭证尚未完成签名，请稍后重试")
	ErrTxNotConfirmed = errors.New("链上交易尚未确认")
)

// ChainQuery 链上交易查询能力
type ChainQuery interface {
	TransactionConfirmed(ctx context.Context, txHash string) (bool, error)
}

// ClaimService 提现凭证登记处
// 按 nonce 记录每一张已签发的凭证，防止同一 nonce 被重复确认
type ClaimService struct {
	claims ClaimStore
	chain  ChainQuery
}

func NewClaimService(claims ClaimStore, chain ChainQuery) *ClaimService {
	return &ClaimService{claims: claims, chain: chain}
}

type ConfirmRequest struct {
	Nonce  int64  `json:"nonce" binding:"required"`
	TxHash string `json:"tx_hash" binding:"required"`
}

// Confirm 确认链上领取结果
//
// 【幂等】同一 nonce 重复确认：
//   - 已 DONE → 直接返回成功，不查链、不改任何状态
//   - PREPARED → 查链上回执，成功则落终态
//
// 确认只改凭证状态，金币在签发时就已扣除，这里永远不会再动余额
func (s *ClaimService) Confirm(ctx context.Context, req *ConfirmRequest) (*model.WithdrawClaim, error) {
	claim, err := s.claims.GetByNonce(ctx, req.Nonce)
	if err != nil {
		if errors.Is(err, repository.ErrClaimNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}

	switch claim.Status {
	case model.ClaimStatusDone:
		// 重复确认，幂等返回
		return claim, nil
	case model.ClaimStatusCreated:
		return nil, ErrClaimNotReady
	}

	confirmed, err := s.chain.TransactionConfirmed(ctx, req.TxHash)
	if err != nil {
		return nil, fmt.Errorf("查询链上交易失败: %w", err)
	}
	if !confirmed {
		return nil, ErrTxNotConfirmed
	}

	if err := s.claims.MarkDone(ctx, claim.ClaimNo, req.TxHash); err != nil {
		// 并发确认竞态：对方已落终态，重读后幂等返回
		if errors.Is(err, repository.ErrClaimStatusInvalid) {
			latest, getErr := s.claims.GetByNonce(ctx, req.Nonce)
			if getErr == nil && latest.Status == model.ClaimStatusDone {
				return latest, nil
			}
		}
		return nil, err
	}

	log.WithFields(log.Fields{
		"claim_no": claim.ClaimNo,
		"nonce":    req.Nonce,
		"tx_hash":  req.TxHash,
	}).Info("提现凭证链上确认完成")

	claim.Status = model.ClaimStatusDone
	claim.TxHash = &req.TxHash
	return claim, nil
}
