package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// ==================== 规则集 ====================

// RuleSet 比价业务规则，按版本管理，可热替换
type RuleSet struct {
	Version          string                     `yaml:"version"`
	ChangeThreshold  float64                    `yaml:"change_threshold"`
	CPU              CPURules                   `yaml:"cpu"`
	ToleranceWindows map[string]ToleranceWindow `yaml:"tolerance_windows"`
	HomeRegions      []HomeCity                 `yaml:"home_regions"`
	CountryRegions   map[string]string          `yaml:"country_regions"`
	EUFallbackRegion string                     `yaml:"eu_fallback_region"`
	EUCountries      []string                   `yaml:"eu_countries"`
	CoreTable        CoreTableRules             `yaml:"core_table"`
	CurrencyRates    map[string]string          `yaml:"currency_rates"`
	Locations        LocationTables             `yaml:"locations"`
}

// CPURules CPU 代际判定
type CPURules struct {
	FamilyMarker    string   `yaml:"family_marker"`
	ModernDigits    []string `yaml:"modern_digits"`
	LegacyDigits    []string `yaml:"legacy_digits"`
	ModernCodenames []string `yaml:"modern_codenames"`
	LegacyCodenames []string `yaml:"legacy_codenames"`
	IncludeLegacy   bool     `yaml:"include_legacy"`
}

// ToleranceWindow 核数/内存闭区间
type ToleranceWindow struct {
	MinCores int `yaml:"min_cores"`
	MaxCores int `yaml:"max_cores"`
	MinRAM   int `yaml:"min_ram"`
	MaxRAM   int `yaml:"max_ram"`
}

// Contains 判断规格是否落在窗口内
func (w ToleranceWindow) Contains(cores, ramGB int) bool {
	return cores >= w.MinCores && cores <= w.MaxCores &&
		ramGB >= w.MinRAM && ramGB <= w.MaxRAM
}

type HomeCity struct {
	Name    string `yaml:"name"`
	Country string `yaml:"country"`
}

type CoreTableRules struct {
	Default int            `yaml:"default"`
	Models  map[string]int `yaml:"models"`
}

// LocationTables 各供应商机房/地区映射
type LocationTables struct {
	Teraswitch       []TeraswitchCity       `yaml:"teraswitch"`
	OVH              map[string]CityCountry `yaml:"ovh"`
	DataPacket       map[string]string      `yaml:"datapacket"`
	VultrCountries   map[string]string      `yaml:"vultr_countries"`
	Cherry           map[string]CityCountry `yaml:"cherry"`
	ReferenceRegions map[string]string      `yaml:"reference_regions"`
}

type TeraswitchCity struct {
	Code    string   `yaml:"code"`
	City    string   `yaml:"city"`
	Country string   `yaml:"country"`
	Regions []string `yaml:"regions"`
}

type CityCountry struct {
	City    string `yaml:"city"`
	Country string `yaml:"country"`
}

// ==================== 加载 ====================

// RuleLoader 规则加载器，Path 为空时只使用内置默认规则
type RuleLoader struct {
	Path string
}

// Load 读取规则：内置默认值打底，外部文件覆盖同名字段(map 按键合并)
func (l RuleLoader) Load() (*RuleSet, error) {
	rules, err := DefaultRules()
	if err != nil {
		return nil, err
	}
	if l.Path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("读取规则文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("解析规则文件失败: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// DefaultRules 内置默认规则
func DefaultRules() (*RuleSet, error) {
	var rules RuleSet
	if err := yaml.Unmarshal(defaultRulesYAML, &rules); err != nil {
		return nil, fmt.Errorf("解析内置规则失败: %w", err)
	}
	return &rules, nil
}

// MustDefaultRules 测试与 seed 使用
func MustDefaultRules() *RuleSet {
	rules, err := DefaultRules()
	if err != nil {
		panic(err)
	}
	return rules
}

// Validate 校验规则一致性
func (r *RuleSet) Validate() error {
	if r.Version == "" {
		return fmt.Errorf("规则集缺少 version")
	}
	if r.ChangeThreshold <= 0 {
		return fmt.Errorf("change_threshold 必须大于 0")
	}
	if strings.TrimSpace(r.CPU.FamilyMarker) == "" {
		return fmt.Errorf("cpu.family_marker 不能为空")
	}
	for name, w := range r.ToleranceWindows {
		if w.MinCores > w.MaxCores || w.MinRAM > w.MaxRAM {
			return fmt.Errorf("容差窗口 %s 无效: min 大于 max", name)
		}
	}
	if r.CoreTable.Default <= 0 {
		return fmt.Errorf("core_table.default 必须大于 0")
	}
	return nil
}

// WindowFor 查找基准 SKU 的容差窗口
func (r *RuleSet) WindowFor(referenceName string) (ToleranceWindow, bool) {
	w, ok := r.ToleranceWindows[referenceName]
	return w, ok
}

// ==================== 热替换 ====================

// RuleStore 保存当前生效的规则集，每次流水线运行前 Reload
type RuleStore struct {
	loader  RuleLoader
	current atomic.Pointer[RuleSet]
}

// NewRuleStore 立即加载一次，失败直接返回错误
func NewRuleStore(loader RuleLoader) (*RuleStore, error) {
	s := &RuleStore{loader: loader}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// StaticRuleStore 固定规则，测试使用
func StaticRuleStore(rules *RuleSet) *RuleStore {
	s := &RuleStore{}
	s.current.Store(rules)
	return s
}

// Reload 重新读取规则文件；失败时保留旧规则
func (s *RuleStore) Reload() (*RuleSet, error) {
	if s.loader.Path == "" && s.current.Load() != nil {
		return s.current.Load(), nil
	}
	rules, err := s.loader.Load()
	if err != nil {
		return nil, err
	}
	s.current.Store(rules)
	return rules, nil
}

// Current 当前规则
func (s *RuleStore) Current() *RuleSet {
	return s.current.Load()
}
