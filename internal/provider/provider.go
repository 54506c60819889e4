package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/normalize"
	"metal_price_tracker/pkg/logger"
	"metal_price_tracker/pkg/utils"
)

// ==================== 错误定义 ====================

var (
	// ErrUnauthorized 供应商返回 401/403，整次运行中止
	ErrUnauthorized = errors.New("供应商鉴权失败")
	// ErrMissingCredentials 启用的供应商缺少凭证，启动即失败
	ErrMissingCredentials = errors.New("缺少供应商凭证")
)

// IsFatal 鉴权/配置类错误需要中止运行
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrMissingCredentials)
}

// ==================== 适配器接口 ====================

// RawEntry 供应商原始目录条目(每个适配器自己的结构)
type RawEntry any

// CityRef 条目所在位置
type CityRef struct {
	Code    string // 带供应商前缀，如 "ovh-fra"
	Name    string
	Country string
}

// Specs 归一化后的规格与价格
type Specs struct {
	Name         string
	CPU          string
	CPUCores     int
	RAMGB        int
	Storage      normalize.Storage
	NetworkGbps  int
	PriceUSD     float64
	SourceURL    string
	InventoryURL *string
}

// Stock 库存状态，Quantity 为 nil 表示未知
type Stock struct {
	InStock  bool
	Quantity *int
}

// Adapter 竞品供应商适配器
type Adapter interface {
	Competitor() model.Competitor
	// FetchCatalog 拉取目录；单个地区/子资源失败只记录日志，返回的错误表示整体失败
	FetchCatalog(ctx context.Context) ([]RawEntry, error)
	// CityOf 未知位置返回 false
	CityOf(entry RawEntry) (CityRef, bool)
	// SpecsOf 无价格等无效条目返回 false
	SpecsOf(entry RawEntry) (Specs, bool)
	StockOf(entry RawEntry) Stock
}

// Upserter 按 (competitor, name, city) 增量更新而不是整表替换的适配器
type Upserter interface {
	Upserts() bool
}

// UsesUpsert 判断适配器的写入策略
func UsesUpsert(a Adapter) bool {
	u, ok := a.(Upserter)
	return ok && u.Upserts()
}

// ==================== 运行环境 ====================

// Env 单次运行内所有适配器共享的规则与工具
type Env struct {
	Rules    *config.RuleSet
	Cores    normalize.CoreTable
	Rates    normalize.RateTable
	HTTP     utils.ClientOptions
	Log      *logger.Logger
	Recorder *Recorder
	Now      func() time.Time
}

// NewEnv 由规则集构建运行环境
func NewEnv(rules *config.RuleSet, httpOpts utils.ClientOptions, log *logger.Logger) (*Env, error) {
	if rules == nil {
		return nil, fmt.Errorf("规则集为空")
	}
	if log == nil {
		log = logger.Nop()
	}
	rates, err := normalize.NewRateTable(rules.CurrencyRates)
	if err != nil {
		return nil, err
	}
	return &Env{
		Rules: rules,
		Cores: normalize.NewCoreTable(rules.CoreTable.Default, rules.CoreTable.Models),
		Rates: rates,
		HTTP:  httpOpts,
		Log:   log,
		Now:   time.Now,
	}, nil
}

// coresFor 先用描述中的核数，失败时查型号表；回退到默认值时记录日志
func (e *Env) coresFor(competitor model.Competitor, cpu string, descriptor string) int {
	if n, ok := normalize.ParseCoresFromDescriptor(descriptor); ok {
		return n
	}
	cores, fellBack := e.Cores.CoresOrDefault(cpu)
	if fellBack {
		e.Log.Warn("[Provider] 无法识别 CPU 核数，使用默认值",
			"competitor", competitor, "cpu", cpu, "default", cores)
	}
	return cores
}

func intPtr(v int) *int {
	return &v
}
