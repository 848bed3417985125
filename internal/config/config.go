package config

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	BattleSettled string `mapstructure:"battle_settled"`
	WithdrawClaim string `mapstructure:"withdraw_claim"`
}

// ChainConfig 链相关配置
// 签名私钥不进配置文件，只从环境变量 SIGNER_PRIVATE_KEY 读取
type ChainConfig struct {
	RPCURL       string `mapstructure:"rpc_url"`
	VaultAddress string `mapstructure:"vault_address"` // 金库合约地址
	SellRate     int64  `mapstructure:"sell_rate"`     // 汇率：多少金币兑 1 个代币
}

type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours"`
}

type BusinessConfig struct {
	DailyGameLimit int64 `mapstructure:"daily_game_limit"` // 每日净收益上限（金币）
	MaxRetryCount  int   `mapstructure:"max_retry_count"`  // outbox 消息最大重试次数
	ResignAfterSec int   `mapstructure:"resign_after_sec"` // 凭证补签的最小等待秒数
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("business.daily_game_limit", 10000)
	viper.SetDefault("business.max_retry_count", 3)
	viper.SetDefault("business.resign_after_sec", 60)
	viper.SetDefault("chain.sell_rate", 1100)
	viper.SetDefault("auth.token_ttl_hours", 24)

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}

// SignerPrivateKey 读取服务端签名私钥
// 私钥只存在于环境变量里，绝不落盘到配置文件或日志
func SignerPrivateKey() string {
	return os.Getenv("SIGNER_PRIVATE_KEY")
}
