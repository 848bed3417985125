package chain

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVault = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := NewSigner(hex.EncodeToString(crypto.FromECDSA(key)), testVault)
	require.NoError(t, err)
	return signer
}

func TestTokenAmount(t *testing.T) {
	t.Run("整除情况精确换算", func(t *testing.T) {
		// 1100 金币 @ 1100:1 = 正好 1 个代币
		amount, err := TokenAmount(1100, 1100)
		require.NoError(t, err)
		want := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
		assert.Zero(t, amount.Cmp(want))
	})

	t.Run("不整除时向零截断", func(t *testing.T) {
		amount, err := TokenAmount(1, 1100)
		require.NoError(t, err)
		want, _ := new(big.Int).SetString("909090909090909090", 10)
		assert.Zero(t, amount.Cmp(want))
	})

	t.Run("换算结果为零拒绝", func(t *testing.T) {
		_, err := TokenAmount(0, 1100)
		assert.ErrorIs(t, err, ErrAmountTooSmall)
	})

	t.Run("非法汇率拒绝", func(t *testing.T) {
		_, err := TokenAmount(100, 0)
		assert.Error(t, err)
		_, err = TokenAmount(100, -1)
		assert.Error(t, err)
	})
}

func TestPackClaim(t *testing.T) {
	wallet := common.HexToAddress("0x52908400098527886E0F7030069857D2E4169EE7")
	vault := common.HexToAddress(testVault)
	amount := big.NewInt(1_000_000)

	packed := PackClaim(wallet, amount, 42, vault)

	// wallet(20) ‖ amount(32) ‖ nonce(32) ‖ vault(20)
	require.Len(t, packed, 104)
	assert.Equal(t, wallet.Bytes(), packed[:20])
	assert.Equal(t, common.LeftPadBytes(amount.Bytes(), 32), packed[20:52])
	assert.Equal(t, byte(42), packed[83])
	assert.Equal(t, vault.Bytes(), packed[84:])
}

func TestSignAndRecoverClaim(t *testing.T) {
	signer := newTestSigner(t)
	wallet := "0x52908400098527886E0F7030069857D2E4169EE7"
	amount := big.NewInt(5_000_000_000)
	nonce := int64(123456789)

	sig, err := signer.SignClaim(wallet, amount, nonce)
	require.NoError(t, err)

	// 0x + 65 字节 hex
	assert.Len(t, sig, 132)
	// v 必须是合约 ecrecover 期望的 27/28
	raw, err := hex.DecodeString(sig[2:])
	require.NoError(t, err)
	assert.Contains(t, []byte{27, 28}, raw[64])

	recovered, err := RecoverClaimSigner(wallet, amount, nonce, testVault, sig)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), recovered)
}

func TestRecoverClaimSignerMismatch(t *testing.T) {
	signer := newTestSigner(t)
	wallet := "0x52908400098527886E0F7030069857D2E4169EE7"
	amount := big.NewInt(1000)

	sig, err := signer.SignClaim(wallet, amount, 1)
	require.NoError(t, err)

	// 任一字段被篡改，恢复出的都不再是签名者地址
	recovered, err := RecoverClaimSigner(wallet, amount, 2, testVault, sig)
	require.NoError(t, err)
	assert.NotEqual(t, signer.Address(), recovered)

	recovered, err = RecoverClaimSigner(wallet, big.NewInt(1001), 1, testVault, sig)
	require.NoError(t, err)
	assert.NotEqual(t, signer.Address(), recovered)

	otherVault := "0x1111111111111111111111111111111111111111"
	recovered, err = RecoverClaimSigner(wallet, amount, 1, otherVault, sig)
	require.NoError(t, err)
	assert.NotEqual(t, signer.Address(), recovered)
}

func TestSignClaimDeterministic(t *testing.T) {
	signer := newTestSigner(t)
	wallet := "0x52908400098527886E0F7030069857D2E4169EE7"
	amount := big.NewInt(777)

	// 同一 (wallet, amount, nonce) 补签结果完全一致
	sig1, err := signer.SignClaim(wallet, amount, 99)
	require.NoError(t, err)
	sig2, err := signer.SignClaim(wallet, amount, 99)
	require.NoError(t, err)
	assert.Equal(t, sig1, sig2)
}

func TestRecoverClaimSignerInvalidInput(t *testing.T) {
	wallet := "0x52908400098527886E0F7030069857D2E4169EE7"

	_, err := RecoverClaimSigner(wallet, big.NewInt(1), 1, testVault, "not-hex")
	assert.Error(t, err)

	_, err = RecoverClaimSigner(wallet, big.NewInt(1), 1, testVault, "0x1234")
	assert.Error(t, err)
}

func TestNewSignerValidation(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	keyHex := hex.EncodeToString(crypto.FromECDSA(key))

	t.Run("私钥支持可选0x前缀", func(t *testing.T) {
		s1, err := NewSigner(keyHex, testVault)
		require.NoError(t, err)
		s2, err := NewSigner("0x"+keyHex, testVault)
		require.NoError(t, err)
		assert.Equal(t, s1.Address(), s2.Address())
	})

	t.Run("非法私钥拒绝", func(t *testing.T) {
		_, err := NewSigner("zzzz", testVault)
		assert.Error(t, err)
	})

	t.Run("非法金库地址拒绝", func(t *testing.T) {
		_, err := NewSigner(keyHex, "not-an-address")
		assert.Error(t, err)
	})
}
