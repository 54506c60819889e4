package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	StorageNotSpecified = "Not specified"
	StorageSystemOnly   = "System drives only"
)

var (
	capacityRe   = regexp.MustCompile(`(?i)([\d.]+)\s*(GB|TB)`)
	ovhStorageRe = regexp.MustCompile(`(\d+)x(\d+)(nvme|ssd|sa)`)
)

// Drive 一组同规格硬盘
type Drive struct {
	Count      int
	CapacityGB float64
	Type       string
}

// Storage 规范化后的存储描述
type Storage struct {
	Description string
	TotalTB     float64
}

// DescribeStorage 生成 "2x 1.92TB NVMe SSD + 2x 480GB NVMe" 形式的描述和总容量(TB)
// 数量或容量为 0 的槽位直接跳过
func DescribeStorage(drives []Drive) Storage {
	parts := make([]string, 0, len(drives))
	var totalGB float64

	for _, d := range drives {
		if d.Count <= 0 || d.CapacityGB <= 0 {
			continue
		}
		part := fmt.Sprintf("%dx %s", d.Count, FormatCapacity(d.CapacityGB))
		if t := strings.TrimSpace(d.Type); t != "" {
			part += " " + t
		}
		parts = append(parts, part)
		totalGB += float64(d.Count) * d.CapacityGB
	}

	if len(parts) == 0 {
		return Storage{Description: StorageNotSpecified}
	}
	return Storage{
		Description: strings.Join(parts, " + "),
		TotalTB:     totalGB / 1000,
	}
}

// FormatCapacity 960 -> "960GB"，1920 -> "1.92TB"
func FormatCapacity(gb float64) string {
	if gb >= 1000 {
		tb := math.Round(gb/10) / 100
		return strconv.FormatFloat(tb, 'f', -1, 64) + "TB"
	}
	return strconv.FormatFloat(math.Round(gb), 'f', -1, 64) + "GB"
}

// ParseCapacityGB 解析 "1.92 TB" / "480GB"
func ParseCapacityGB(s string) (float64, bool) {
	m := capacityRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if strings.EqualFold(m[2], "TB") {
		v *= 1000
	}
	return v, true
}

// ParseOVHStorageAddon 解析 OVH 存储附加项
// "softraid-2x1920nvme-pcie-gen5" -> 2x 1.92TB NVMe SSD
// "noraid-0-26scaleamd01" -> System drives only
func ParseOVHStorageAddon(addon string) Storage {
	if strings.Contains(addon, "noraid-0") {
		return Storage{Description: StorageSystemOnly}
	}
	m := ovhStorageRe.FindStringSubmatch(addon)
	if m == nil {
		return Storage{Description: StorageNotSpecified}
	}
	count, _ := strconv.Atoi(m[1])
	capacity, _ := strconv.Atoi(m[2])

	var typ string
	switch m[3] {
	case "nvme":
		typ = "NVMe SSD"
	case "ssd":
		typ = "SSD"
	default:
		typ = "SAS"
	}

	return Storage{
		Description: fmt.Sprintf("%dx %.2fTB %s", count, float64(capacity)/1000, typ),
		TotalTB:     float64(count*capacity) / 1000,
	}
}
