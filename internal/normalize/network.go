package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var networkSpeedRe = regexp.MustCompile(`(?i)([\d.]+)\s*(G|M)(?:bps|bit|b)?`)

// NetworkGbps 多端口求和，非零的亚千兆速率向上取整为 1
func NetworkGbps(portsGbps ...float64) int {
	var total float64
	for _, p := range portsGbps {
		if p > 0 {
			total += p
		}
	}
	if total <= 0 {
		return 0
	}
	if total < 1 {
		return 1
	}
	return int(math.Round(total))
}

// ParseNetworkSpeed 解析 "10Gbps" / "500Mbps"，返回 Gbps
func ParseNetworkSpeed(s string) (float64, bool) {
	m := networkSpeedRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if strings.EqualFold(m[2], "M") {
		v /= 1000
	}
	return v, true
}
