package job

import (
	"context"
	"math/big"
	"time"

	"gamevault/internal/config"
	"gamevault/internal/model"
	"gamevault/internal/repository"
	"gamevault/internal/service"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ClaimReconciler 提现凭证补签任务
//
// 【为什么需要补签？】
//
// 提现流程里扣款事务先提交，签名在事务之后执行。
// 签名器不可用时会出现"金币已扣、凭证无签名"的 CREATED 凭证——
// 玩家的钱已经扣了，不能让它悬空，也绝不能让玩家重新提现（那是二次扣款）。
//
// 本任务周期性扫描滞留的 CREATED 凭证，用凭证里固定的 nonce 重新签名。
// 同一 (wallet, amount, nonce) 签出来的永远是同一张领取凭证，
// 补签任意多次也只对应那一笔扣款
type ClaimReconciler struct {
	db        *gorm.DB
	claimRepo *repository.ClaimRepository
	signer    service.ClaimSigner
	cfg       *config.Config
	interval  time.Duration
	batchSize int
}

func NewClaimReconciler(db *gorm.DB, signer service.ClaimSigner, cfg *config.Config) *ClaimReconciler {
	return &ClaimReconciler{
		db:        db,
		claimRepo: repository.NewClaimRepository(db),
		signer:    signer,
		cfg:       cfg,
		interval:  30 * time.Second,
		batchSize: 50,
	}
}

func (r *ClaimReconciler) Start(ctx context.Context) {
	log.Info("[ClaimReconciler] 凭证补签任务启动")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("[ClaimReconciler] 收到停止信号，任务退出")
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

func (r *ClaimReconciler) reconcile(ctx context.Context) {
	// 只处理创建一段时间后仍无签名的凭证，避免和请求路径的签名赛跑
	before := time.Now().Add(-time.Duration(r.cfg.Business.ResignAfterSec) * time.Second)
	claims, err := r.claimRepo.GetUnsignedClaims(ctx, before, r.batchSize)
	if err != nil {
		log.Errorf("[ClaimReconciler] 扫描待补签凭证失败: %v", err)
		return
	}

	for _, claim := range claims {
		r.resign(ctx, claim)
	}
}

func (r *ClaimReconciler) resign(ctx context.Context, claim *model.WithdrawClaim) {
	tokenAmount, ok := new(big.Int).SetString(claim.TokenAmount, 10)
	if !ok {
		log.Errorf("[ClaimReconciler] 凭证代币数非法: claim_no=%s, token_amount=%s", claim.ClaimNo, claim.TokenAmount)
		return
	}

	signature, err := r.signer.SignClaim(claim.WalletAddress, tokenAmount, claim.Nonce)
	if err != nil {
		log.Warnf("[ClaimReconciler] 补签失败: claim_no=%s, err=%v", claim.ClaimNo, err)
		return
	}

	if err := r.claimRepo.AttachSignature(ctx, claim.ClaimNo, signature); err != nil {
		// 请求路径可能刚好也签完了，状态守卫保证只有一个生效
		log.Warnf("[ClaimReconciler] 写入补签签名失败: claim_no=%s, err=%v", claim.ClaimNo, err)
		return
	}

	log.WithFields(log.Fields{
		"claim_no": claim.ClaimNo,
		"nonce":    claim.Nonce,
	}).Info("[ClaimReconciler] 凭证补签完成")
}
