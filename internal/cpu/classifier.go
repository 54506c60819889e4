package cpu

import (
	"fmt"
	"regexp"
	"strings"

	"metal_price_tracker/internal/config"
)

// Tier CPU 代际分级
type Tier string

const (
	TierModern  Tier = "modern"
	TierLegacy  Tier = "legacy"
	TierUnknown Tier = "unknown"
)

// Classifier CPU 代际判定，规则来自 RuleSet，不做 I/O
type Classifier struct {
	modelRe         *regexp.Regexp
	family          string
	modernDigits    map[byte]bool
	legacyDigits    map[byte]bool
	modernCodenames []string
	legacyCodenames []string
	includeLegacy   bool
}

// NewClassifier 根据规则构建判定器
func NewClassifier(rules config.CPURules) (*Classifier, error) {
	family := strings.ToLower(strings.TrimSpace(rules.FamilyMarker))
	if family == "" {
		return nil, fmt.Errorf("CPU 规则缺少 family_marker")
	}

	re, err := regexp.Compile(regexp.QuoteMeta(family) + `[- _]?(\d)\d{3}`)
	if err != nil {
		return nil, fmt.Errorf("编译 CPU 规则失败: %w", err)
	}

	return &Classifier{
		modelRe:         re,
		family:          family,
		modernDigits:    digitSet(rules.ModernDigits),
		legacyDigits:    digitSet(rules.LegacyDigits),
		modernCodenames: lowerAll(rules.ModernCodenames),
		legacyCodenames: lowerAll(rules.LegacyCodenames),
		includeLegacy:   rules.IncludeLegacy,
	}, nil
}

// Classify 返回 CPU 描述所属代际，大小写不敏感
func (c *Classifier) Classify(cpu string) Tier {
	s := strings.ToLower(cpu)
	if !strings.Contains(s, c.family) {
		return TierUnknown
	}

	for _, m := range c.modelRe.FindAllStringSubmatch(s, -1) {
		d := m[1][0]
		if c.modernDigits[d] {
			return TierModern
		}
		if c.legacyDigits[d] {
			return TierLegacy
		}
	}

	for _, name := range c.modernCodenames {
		if strings.Contains(s, name) {
			return TierModern
		}
	}
	for _, name := range c.legacyCodenames {
		if strings.Contains(s, name) {
			return TierLegacy
		}
	}
	return TierUnknown
}

// IsEligible 是否参与比价
func (c *Classifier) IsEligible(cpu string) bool {
	switch c.Classify(cpu) {
	case TierModern:
		return true
	case TierLegacy:
		return c.includeLegacy
	default:
		return false
	}
}

func digitSet(digits []string) map[byte]bool {
	set := make(map[byte]bool, len(digits))
	for _, d := range digits {
		d = strings.TrimSpace(d)
		if len(d) == 1 && d[0] >= '0' && d[0] <= '9' {
			set[d[0]] = true
		}
	}
	return set
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
