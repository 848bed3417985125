package chain

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ============================================================================
// 提现签名器
// ============================================================================
//
// 把一笔已扣款的链下提现变成金库合约可验证的领取凭证。
// 纯密码学变换，不碰账本；唯一的随机性（nonce）由调用方传入，
// 因此同一 (wallet, amount, nonce) 补签多少次结果都指向同一笔领取。
//
// 【编码约定】合约端按 abi.encodePacked(wallet, amount, nonce, vault) 还原消息：
//   地址 20 字节原样，整数 256 位大端左填零，共 20+32+32+20 = 104 字节。
// 字节序或字段顺序差一位，合约 ecrecover 出来的就是另一个地址。

var (
	// ErrAmountTooSmall 按当前汇率兑换结果为 0，不值得上链
	ErrAmountTooSmall = errors.New("提现金额过小，兑换结果为 0")
	ErrInvalidWallet  = errors.New("无效的钱包地址")
)

// weiPerToken 代币最小单位换算（18 位小数）
var weiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// TokenAmount 金币 → 代币最小单位：floor(coin * 10^18 / sellRate)
//
// 【重要】必须用大整数精确计算并向零截断，
// 任何浮点参与都可能和合约端的整数除法差出 1 wei，导致签名校验对不上账
func TokenAmount(coinAmount, sellRate int64) (*big.Int, error) {
	if sellRate <= 0 {
		return nil, fmt.Errorf("非法汇率: %d", sellRate)
	}
	amount := new(big.Int).Mul(big.NewInt(coinAmount), weiPerToken)
	amount.Quo(amount, big.NewInt(sellRate))
	if amount.Sign() <= 0 {
		return nil, ErrAmountTooSmall
	}
	return amount, nil
}

// Signer 持有服务端签名私钥和金库合约地址
type Signer struct {
	key   *ecdsa.PrivateKey
	vault common.Address
}

// NewSigner 从十六进制私钥构造签名器
func NewSigner(privateKeyHex, vaultAddress string) (*Signer, error) {
	if !common.IsHexAddress(vaultAddress) {
		return nil, fmt.Errorf("无效的金库合约地址: %s", vaultAddress)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("解析签名私钥失败: %w", err)
	}
	return &Signer{
		key:   key,
		vault: common.HexToAddress(vaultAddress),
	}, nil
}

// Address 返回签名者公钥地址（部署时核对合约里配置的 signer）
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// Vault 返回金库合约地址
func (s *Signer) Vault() string {
	return s.vault.Hex()
}

// PackClaim 按合约约定打包领取消息
// wallet(20) ‖ amount(uint256) ‖ nonce(uint256) ‖ vault(20)
func PackClaim(wallet common.Address, tokenAmount *big.Int, nonce int64, vault common.Address) []byte {
	buf := make([]byte, 0, 104)
	buf = append(buf, wallet.Bytes()...)
	buf = append(buf, common.LeftPadBytes(tokenAmount.Bytes(), 32)...)
	buf = append(buf, common.LeftPadBytes(new(big.Int).SetInt64(nonce).Bytes(), 32)...)
	buf = append(buf, vault.Bytes()...)
	return buf
}

// SignClaim 生成领取凭证签名
//
// 签名对象是 personal_sign 风格的带前缀哈希：
//   keccak256("\x19Ethereum Signed Message:\n32" ‖ keccak256(packed))
// 合约端先拼同样的前缀再 ecrecover，恢复地址必须等于 Address()
func (s *Signer) SignClaim(wallet string, tokenAmount *big.Int, nonce int64) (string, error) {
	if !common.IsHexAddress(wallet) {
		return "", ErrInvalidWallet
	}

	packed := PackClaim(common.HexToAddress(wallet), tokenAmount, nonce, s.vault)
	digest := crypto.Keccak256(packed)
	prefixed := crypto.Keccak256(
		[]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(digest))),
		digest,
	)

	sig, err := crypto.Sign(prefixed, s.key)
	if err != nil {
		return "", fmt.Errorf("签名失败: %w", err)
	}
	// crypto.Sign 产出 v ∈ {0,1}，合约 ecrecover 期望 27/28
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// RecoverClaimSigner 从签名恢复签名者地址（自检与测试用）
// 恢复失败必须返回错误，绝不允许"恢复不出来也放行"
func RecoverClaimSigner(wallet string, tokenAmount *big.Int, nonce int64, vault string, sigHex string) (common.Address, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("解析签名失败: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("签名长度非法: %d", len(sig))
	}

	packed := PackClaim(common.HexToAddress(wallet), tokenAmount, nonce, common.HexToAddress(vault))
	digest := crypto.Keccak256(packed)
	prefixed := crypto.Keccak256(
		[]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(digest))),
		digest,
	)

	recoverSig := make([]byte, 65)
	copy(recoverSig, sig)
	if recoverSig[64] >= 27 {
		recoverSig[64] -= 27
	}

	pub, err := crypto.SigToPub(prefixed, recoverSig)
	if err != nil {
		return common.Address{}, fmt.Errorf("恢复公钥失败: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
