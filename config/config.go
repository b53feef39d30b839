package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Storage  StorageConfig  `mapstructure:"storage"`
	OSS      OSSConfig      `mapstructure:"oss"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	PayPal   PayPalConfig   `mapstructure:"paypal"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Plans    PlansConfig    `mapstructure:"plans"`

	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

type ServerConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Mode      string `mapstructure:"mode"`
	PublicURL string `mapstructure:"public_url"` // 二维码中编码的对外访问地址
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // sqlite, mysql, postgres
	DSN          string `mapstructure:"dsn"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // text, json
	File       string `mapstructure:"file"`   // 为空时只输出到 stdout
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type StorageConfig struct {
	Root      string `mapstructure:"root"`       // 二维码文件根目录
	MaxPixels int    `mapstructure:"max_pixels"` // 栅格图最大边长
}

// MaintenanceConfig 可选的定时任务，默认全部关闭，到期检查仍在请求时进行
type MaintenanceConfig struct {
	SweepIntervalMinutes int  `mapstructure:"sweep_interval_minutes"` // 0 表示不定时清理
	NightlyReconcile     bool `mapstructure:"nightly_reconcile"`
}

type OSSConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
	Prefix          string `mapstructure:"prefix"`
}

type StripeConfig struct {
	SecretKey  string `mapstructure:"secret_key"`
	SuccessURL string `mapstructure:"success_url"` // 可包含 {CHECKOUT_SESSION_ID} 占位符
	CancelURL  string `mapstructure:"cancel_url"`
}

type PayPalConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	BaseURL      string `mapstructure:"base_url"`
}

type AdminConfig struct {
	BootstrapUsernames []string `mapstructure:"bootstrap_usernames"`
}

// PlansConfig 套餐目录，启动时加载一次
type PlansConfig struct {
	Tiers               []TierConfig      `mapstructure:"tiers"` // 从低到高
	PromoCodes          []PromoCodeConfig `mapstructure:"promo_codes"`
	Currency            string            `mapstructure:"currency"`
	MonthTermDays       int               `mapstructure:"month_term_days"`
	YearTermDays        int               `mapstructure:"year_term_days"`
	PromoTermDays       int               `mapstructure:"promo_term_days"`
	DeleteRetentionDays int               `mapstructure:"delete_retention_days"`
	PublicIDLength      int               `mapstructure:"public_id_length"`
}

type TierConfig struct {
	Name                  string `mapstructure:"name"`
	Limit                 int    `mapstructure:"limit"`         // -1 表示不限
	MonthlyPrice          int64  `mapstructure:"monthly_price"` // 分
	YearlyPrice           int64  `mapstructure:"yearly_price"`  // 为 0 时按折扣计算
	YearlyDiscountPercent int    `mapstructure:"yearly_discount_percent"`
}

type PromoCodeConfig struct {
	Code string `mapstructure:"code"`
	Tier string `mapstructure:"tier"`
}

// DefaultPlans 默认套餐目录
func DefaultPlans() PlansConfig {
	return PlansConfig{
		Tiers: []TierConfig{
			{Name: "basic", Limit: 1},
			{Name: "starter", Limit: 5, MonthlyPrice: 99, YearlyDiscountPercent: 30},
			{Name: "pro", Limit: 20, MonthlyPrice: 199, YearlyDiscountPercent: 30},
			{Name: "premium", Limit: 50, MonthlyPrice: 499, YearlyDiscountPercent: 30},
			{Name: "unlimited", Limit: -1, MonthlyPrice: 999, YearlyDiscountPercent: 30},
		},
		PromoCodes: []PromoCodeConfig{
			{Code: "2025STARTER", Tier: "starter"},
			{Code: "2025PRO", Tier: "pro"},
			{Code: "2025PREMIUM", Tier: "premium"},
			{Code: "2025UNLIMITED", Tier: "unlimited"},
		},
		Currency:            "eur",
		MonthTermDays:       30,
		YearTermDays:        365,
		PromoTermDays:       30,
		DeleteRetentionDays: 14,
		PublicIDLength:      8,
	}
}

func Load(configPath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyPlanDefaults(&cfg.Plans)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8010)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.public_url", "http://localhost:8010")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "instance/users.db")
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("jwt.expire_hours", 72)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("storage.root", "static/qrcodes")
	v.SetDefault("storage.max_pixels", 400)
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"})
	v.SetDefault("paypal.base_url", "https://api-m.paypal.com")
}

// applyPlanDefaults 未配置的套餐字段回落到默认值
func applyPlanDefaults(p *PlansConfig) {
	def := DefaultPlans()
	if len(p.Tiers) == 0 {
		p.Tiers = def.Tiers
	}
	if len(p.PromoCodes) == 0 {
		p.PromoCodes = def.PromoCodes
	}
	if p.Currency == "" {
		p.Currency = def.Currency
	}
	if p.MonthTermDays <= 0 {
		p.MonthTermDays = def.MonthTermDays
	}
	if p.YearTermDays <= 0 {
		p.YearTermDays = def.YearTermDays
	}
	if p.PromoTermDays <= 0 {
		p.PromoTermDays = def.PromoTermDays
	}
	if p.DeleteRetentionDays <= 0 {
		p.DeleteRetentionDays = def.DeleteRetentionDays
	}
	if p.PublicIDLength <= 0 {
		p.PublicIDLength = def.PublicIDLength
	}
}
