package normalize

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCoresFromDescriptor(t *testing.T) {
	tests := []struct {
		name   string
		desc   string
		want   int
		wantOK bool
	}{
		{"标准格式", "32c/64t", 32, true},
		{"括号内", "AMD EPYC 9124 (8c/16t @ 3.0-3.7GHz)", 8, true},
		{"cores 文字", "24 cores", 24, true},
		{"无法解析", "AMD EPYC 9354P", 0, false},
		{"空字符串", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCoresFromDescriptor(tt.desc)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoreTable(t *testing.T) {
	table := NewCoreTable(16, map[string]int{"9354": 32, "9454P": 48, "4584PX": 16})

	tests := []struct {
		name         string
		cpu          string
		wantCores    int
		wantFellBack bool
	}{
		{"精确型号", "AMD EPYC 9454P", 48, false},
		{"带 X 后缀", "EPYC 4584PX", 16, false},
		{"后缀退回数字型号", "AMD EPYC 9354P", 32, false},
		{"未知型号", "AMD EPYC 9999", 16, true},
		{"无型号", "Unknown CPU", 16, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cores, fellBack := table.CoresOrDefault(tt.cpu)
			assert.Equal(t, tt.wantCores, cores)
			assert.Equal(t, tt.wantFellBack, fellBack)
		})
	}
}

func TestRAMFromMB(t *testing.T) {
	tests := []struct {
		mb   float64
		want int
	}{
		{65536, 64},
		{131072, 128},
		{262144, 256},
		{1536, 2}, // 1.5 四舍五入
		{0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RAMFromMB(tt.mb), "mb=%v", tt.mb)
	}
}

func TestRAMFromAddon(t *testing.T) {
	n, ok := RAMFromAddon("ram-128g-ecc-4800-26scaleamd01-v2")
	assert.True(t, ok)
	assert.Equal(t, 128, n)

	_, ok = RAMFromAddon("softraid-2x960nvme")
	assert.False(t, ok)
}

func TestDescribeStorage(t *testing.T) {
	tests := []struct {
		name     string
		drives   []Drive
		wantDesc string
		wantTB   float64
	}{
		{
			name:     "单组 NVMe",
			drives:   []Drive{{Count: 2, CapacityGB: 1920, Type: "NVMe SSD"}},
			wantDesc: "2x 1.92TB NVMe SSD",
			wantTB:   3.84,
		},
		{
			name: "混合单位",
			drives: []Drive{
				{Count: 2, CapacityGB: 480, Type: "NVMe"},
				{Count: 2, CapacityGB: 3840, Type: "NVMe"},
			},
			wantDesc: "2x 480GB NVMe + 2x 3.84TB NVMe",
			wantTB:   8.64,
		},
		{
			name: "跳过空槽位",
			drives: []Drive{
				{Count: 0, CapacityGB: 960, Type: "SSD"},
				{Count: 1, CapacityGB: 0, Type: "SSD"},
				{Count: 1, CapacityGB: 1000, Type: "SSD"},
			},
			wantDesc: "1x 1TB SSD",
			wantTB:   1,
		},
		{
			name:     "无硬盘",
			drives:   nil,
			wantDesc: StorageNotSpecified,
			wantTB:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DescribeStorage(tt.drives)
			assert.Equal(t, tt.wantDesc, got.Description)
			assert.InDelta(t, tt.wantTB, got.TotalTB, 1e-9)
		})
	}
}

func TestDescribeStorage_TotalIsSumOverThousand(t *testing.T) {
	drives := []Drive{
		{Count: 3, CapacityGB: 7680, Type: "NVMe"},
		{Count: 2, CapacityGB: 480, Type: "SATA"},
	}
	want := (3*7680.0 + 2*480.0) / 1000
	assert.InDelta(t, want, DescribeStorage(drives).TotalTB, 1e-9)
}

func TestParseCapacityGB(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"1.92 TB", 1920, true},
		{"480GB", 480, true},
		{"8tb", 8000, true},
		{"unknown", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseCapacityGB(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, tt.in)
	}
}

func TestParseOVHStorageAddon(t *testing.T) {
	tests := []struct {
		name     string
		addon    string
		wantDesc string
		wantTB   float64
	}{
		{"NVMe", "softraid-2x1920nvme-pcie-gen5-26scaleamd01-v2", "2x 1.92TB NVMe SSD", 3.84},
		{"六盘", "softraid-6x3840nvme-pcie-gen5", "6x 3.84TB NVMe SSD", 23.04},
		{"SAS", "hardraid-4x8000sa", "4x 8.00TB SAS", 32},
		{"仅系统盘", "noraid-0-26scaleamd01-v2", StorageSystemOnly, 0},
		{"无法识别", "custom", StorageNotSpecified, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseOVHStorageAddon(tt.addon)
			assert.Equal(t, tt.wantDesc, got.Description)
			assert.InDelta(t, tt.wantTB, got.TotalTB, 1e-9)
		})
	}
}

func TestNetwork(t *testing.T) {
	assert.Equal(t, 20, NetworkGbps(10, 10))
	assert.Equal(t, 1, NetworkGbps(0.5))
	assert.Equal(t, 0, NetworkGbps())
	assert.Equal(t, 25, NetworkGbps(25, 0))

	v, ok := ParseNetworkSpeed("10Gbps")
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)

	v, ok = ParseNetworkSpeed("500Mbps")
	assert.True(t, ok)
	assert.Equal(t, 0.5, v)

	_, ok = ParseNetworkSpeed("fast")
	assert.False(t, ok)
}

func TestRateTable_ToUSD(t *testing.T) {
	rates, err := NewRateTable(map[string]string{"CAD": "0.74", "eur": "1.08"})
	require.NoError(t, err)

	// OVH: 价格单位为 1e-8 CAD，整美元
	cad := decimal.NewFromInt(21500000000).Div(decimal.NewFromInt(100000000))
	usd, err := rates.ToUSD(cad, "CAD", 0)
	require.NoError(t, err)
	assert.Equal(t, 159.0, usd)

	// Cherry: EUR 保留美分
	usd, err = rates.ToUSD(decimal.RequireFromString("199.99"), "EUR", 2)
	require.NoError(t, err)
	assert.Equal(t, 215.99, usd)

	usd, err = rates.ToUSD(decimal.NewFromInt(100), "usd", 2)
	require.NoError(t, err)
	assert.Equal(t, 100.0, usd)

	_, err = rates.ToUSD(decimal.NewFromInt(1), "JPY", 0)
	assert.Error(t, err)
}

func TestNewRateTable_Invalid(t *testing.T) {
	_, err := NewRateTable(map[string]string{"CAD": "abc"})
	assert.Error(t, err)

	_, err = NewRateTable(map[string]string{"CAD": "0"})
	assert.Error(t, err)
}
