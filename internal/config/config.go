package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例: PT_DATABASE_DSN
const EnvPrefix = "PT"

// ==================== 配置结构 ====================

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Reference ReferenceConfig `mapstructure:"reference"`
	Mail      MailConfig      `mapstructure:"mail"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	RulesFile string          `mapstructure:"rules_file"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	TriggerCooldown time.Duration `mapstructure:"trigger_cooldown"`
}

type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=silent error warn info"`
}

type LogConfig struct {
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=dev development prod production"`
}

// HTTPConfig 出站请求公共参数
type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryCount   int           `mapstructure:"retry_count" validate:"gte=0,lte=10"`
	RetryWait    time.Duration `mapstructure:"retry_wait"`
	RetryMaxWait time.Duration `mapstructure:"retry_max_wait"`
	UserAgent    string        `mapstructure:"user_agent"`
	Proxy        string        `mapstructure:"proxy"`
}

// ProvidersConfig 各竞品供应商
type ProvidersConfig struct {
	OVH        OVHConfig        `mapstructure:"ovh"`
	Teraswitch TeraswitchConfig `mapstructure:"teraswitch"`
	DataPacket DataPacketConfig `mapstructure:"datapacket"`
	Vultr      VultrConfig      `mapstructure:"vultr"`
	Cherry     CherryConfig     `mapstructure:"cherry"`
	Hetzner    HetznerConfig    `mapstructure:"hetzner"`
	// Order 每日任务中供应商的执行顺序
	Order []string `mapstructure:"order"`
}

type OVHConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url" validate:"required_if=Enabled true"`
	AppKey      string        `mapstructure:"app_key"`
	AppSecret   string        `mapstructure:"app_secret"`
	ConsumerKey string        `mapstructure:"consumer_key"`
	Subsidiary  string        `mapstructure:"subsidiary"`
	Delay       time.Duration `mapstructure:"delay"`
}

type TeraswitchConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url" validate:"required_if=Enabled true"`
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	Delay     time.Duration `mapstructure:"delay"`
}

type DataPacketConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Endpoint string        `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	APIKey   string        `mapstructure:"api_key"`
	Delay    time.Duration `mapstructure:"delay"`
}

type VultrConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url" validate:"required_if=Enabled true"`
	APIKey  string        `mapstructure:"api_key"` // 公开接口，可为空
	Delay   time.Duration `mapstructure:"delay"`
}

type CherryConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url" validate:"required_if=Enabled true"`
	Delay   time.Duration `mapstructure:"delay"`
}

// HetznerConfig 无公开 API，读取快照
type HetznerConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	SnapshotKey string `mapstructure:"snapshot_key"`
}

// ReferenceConfig 基准厂商目录
type ReferenceConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	PlanPrefixes  []string      `mapstructure:"plan_prefixes"`
	DefaultRegion string        `mapstructure:"default_region"`
	Delay         time.Duration `mapstructure:"delay"`
}

// MailConfig 价格告警邮件
type MailConfig struct {
	APIKey     string   `mapstructure:"api_key"`
	BaseURL    string   `mapstructure:"base_url"`
	From       string   `mapstructure:"from"`
	Recipients []string `mapstructure:"recipients" validate:"omitempty,dive,email"`
}

// SnapshotConfig 静态快照/原始目录归档存储
type SnapshotConfig struct {
	Driver     string `mapstructure:"driver" validate:"omitempty,oneof=local s3"`
	Dir        string `mapstructure:"dir"`
	Bucket     string `mapstructure:"bucket" validate:"required_if=Driver s3"`
	Region     string `mapstructure:"region"`
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Prefix     string `mapstructure:"prefix"`
	ArchiveRaw bool   `mapstructure:"archive_raw"`
}

// RedisConfig 跨实例运行锁，Addr 为空时只使用进程内锁
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type ScheduleConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Cron       string        `mapstructure:"cron" validate:"required_if=Enabled true"`
	RunOnStart bool          `mapstructure:"run_on_start"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type MatchingConfig struct {
	IncludeOutOfStock bool `mapstructure:"include_out_of_stock"`
	// EligibleOnlyIngest 入库前按 CPU 代际过滤
	EligibleOnlyIngest bool `mapstructure:"eligible_only_ingest"`
}

// ==================== 加载 ====================

// Load 读取配置：.env -> 配置文件(可选) -> 环境变量
func Load(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+"("+fe.Tag()+")")
			}
			return fmt.Errorf("配置校验失败: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("配置校验失败: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.trigger_cooldown", 5*time.Minute)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("log.mode", "dev")

	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.retry_count", 3)
	v.SetDefault("http.retry_wait", 500*time.Millisecond)
	v.SetDefault("http.retry_max_wait", 10*time.Second)
	v.SetDefault("http.user_agent", "metal-price-tracker/1.0")
	v.SetDefault("http.proxy", "")

	v.SetDefault("providers.order", []string{"OVHCLOUD", "TERASWITCH", "DATAPACKET", "VULTR", "CHERRYSERVERS", "HETZNER"})

	v.SetDefault("providers.ovh.enabled", false)
	v.SetDefault("providers.ovh.base_url", "https://ca.api.ovh.com/1.0")
	v.SetDefault("providers.ovh.app_key", "")
	v.SetDefault("providers.ovh.app_secret", "")
	v.SetDefault("providers.ovh.consumer_key", "")
	v.SetDefault("providers.ovh.subsidiary", "CA")
	v.SetDefault("providers.ovh.delay", 200*time.Millisecond)

	v.SetDefault("providers.teraswitch.enabled", true)
	v.SetDefault("providers.teraswitch.base_url", "https://api.tsw.io")
	v.SetDefault("providers.teraswitch.api_key", "")
	v.SetDefault("providers.teraswitch.api_secret", "")
	v.SetDefault("providers.teraswitch.delay", 100*time.Millisecond)

	v.SetDefault("providers.datapacket.enabled", false)
	v.SetDefault("providers.datapacket.endpoint", "https://api.datapacket.com/v0/graphql")
	v.SetDefault("providers.datapacket.api_key", "")
	v.SetDefault("providers.datapacket.delay", 100*time.Millisecond)

	v.SetDefault("providers.vultr.enabled", false)
	v.SetDefault("providers.vultr.base_url", "https://api.vultr.com/v2")
	v.SetDefault("providers.vultr.api_key", "")
	v.SetDefault("providers.vultr.delay", 100*time.Millisecond)

	v.SetDefault("providers.cherry.enabled", false)
	v.SetDefault("providers.cherry.base_url", "https://api.cherryservers.com/v1")
	v.SetDefault("providers.cherry.delay", 100*time.Millisecond)

	v.SetDefault("providers.hetzner.enabled", false)
	v.SetDefault("providers.hetzner.snapshot_key", "snapshots/hetzner.json")

	v.SetDefault("reference.base_url", "https://api.latitude.sh")
	v.SetDefault("reference.api_key", "")
	v.SetDefault("reference.plan_prefixes", []string{"m4.", "f4.", "rs4."})
	v.SetDefault("reference.default_region", "United States")
	v.SetDefault("reference.delay", 100*time.Millisecond)

	v.SetDefault("mail.api_key", "")
	v.SetDefault("mail.base_url", "https://api.resend.com")
	v.SetDefault("mail.from", "Pricing Tracker <alerts@example.com>")
	v.SetDefault("mail.recipients", []string{})

	v.SetDefault("snapshot.driver", "local")
	v.SetDefault("snapshot.dir", "./data")
	v.SetDefault("snapshot.bucket", "")
	v.SetDefault("snapshot.region", "")
	v.SetDefault("snapshot.endpoint", "")
	v.SetDefault("snapshot.access_key", "")
	v.SetDefault("snapshot.secret_key", "")
	v.SetDefault("snapshot.prefix", "pricing")
	v.SetDefault("snapshot.archive_raw", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 2*time.Hour)

	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.cron", "0 0 6 * * *")
	v.SetDefault("schedule.run_on_start", false)
	v.SetDefault("schedule.timeout", 2*time.Hour)

	v.SetDefault("matching.include_out_of_stock", true)
	v.SetDefault("matching.eligible_only_ingest", true)

	v.SetDefault("rules_file", "")
}
