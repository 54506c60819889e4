package normalize

import (
	"math"
	"regexp"
	"strconv"
)

var ramAddonRe = regexp.MustCompile(`ram-(\d+)g`)

// RAMFromMB MB -> GB，四舍五入
func RAMFromMB(mb float64) int {
	return int(math.Round(mb / 1024))
}

// RAMFromAddon 解析 "ram-128g-ecc-4800" 形式的内存附加项
func RAMFromAddon(addon string) (int, bool) {
	m := ramAddonRe.FindStringSubmatch(addon)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
