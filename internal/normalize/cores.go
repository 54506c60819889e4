package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	coresDescriptorRe = regexp.MustCompile(`(?i)(\d+)\s*c(?:ores?)?\b`)
	cpuModelRe        = regexp.MustCompile(`(\d{4}[A-Z]*)`)
)

// ParseCoresFromDescriptor 从 "32c/64t" 之类的描述中提取核数
func ParseCoresFromDescriptor(desc string) (int, bool) {
	m := coresDescriptorRe.FindStringSubmatch(desc)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// CPUModel 提取 CPU 型号，如 "AMD EPYC 9454P" -> "9454P"
func CPUModel(cpu string) string {
	m := cpuModelRe.FindStringSubmatch(strings.ToUpper(cpu))
	if m == nil {
		return ""
	}
	return m[1]
}

// ==================== 核数表 ====================

// CoreTable 型号 -> 物理核数
type CoreTable struct {
	Default int
	Models  map[string]int
}

// NewCoreTable 创建核数表，型号统一为大写
func NewCoreTable(defaultCores int, models map[string]int) CoreTable {
	t := CoreTable{Default: defaultCores, Models: make(map[string]int, len(models))}
	for k, v := range models {
		t.Models[strings.ToUpper(k)] = v
	}
	return t
}

// Lookup 查找型号核数；带后缀的型号找不到时退回纯数字型号
func (t CoreTable) Lookup(cpu string) (int, bool) {
	model := CPUModel(cpu)
	if model == "" {
		return 0, false
	}
	if n, ok := t.Models[model]; ok {
		return n, true
	}
	if n, ok := t.Models[model[:4]]; ok {
		return n, true
	}
	return 0, false
}

// CoresOrDefault 返回核数，fellBack 为 true 表示使用了默认值，调用方需记录日志
func (t CoreTable) CoresOrDefault(cpu string) (cores int, fellBack bool) {
	if n, ok := t.Lookup(cpu); ok {
		return n, false
	}
	return t.Default, true
}
