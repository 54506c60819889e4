package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metal_price_tracker/internal/normalize"
	"metal_price_tracker/internal/provider"
)

type fakePlanSource struct {
	plans []provider.ReferencePlan
	err   error
}

func (f *fakePlanSource) FetchPlans(ctx context.Context) ([]provider.ReferencePlan, error) {
	return f.plans, f.err
}

func TestGenerationOf(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"m4.metal.small", 4},
		{"rs4.metal.xlarge", 4},
		{"c3.large.x86", 3},
		{"s12.metal", 12},
		{"metal", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerationOf(tt.name))
		})
	}
}

func TestReferenceService_Seed(t *testing.T) {
	db := setupServiceTestDB(t)
	r := newRepos(db)
	ctx := context.Background()
	svc := NewReferenceService(r.ref, nil, nil)

	// 已存在的 SKU 不覆盖
	seedReference(t, r, "m4.metal.small", 6, 64, 150, nil)

	created, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultReferenceProducts())-1, created)

	created, err = svc.Seed(ctx)
	require.NoError(t, err)
	assert.Zero(t, created)

	small, err := r.ref.FindByName(ctx, "m4.metal.small")
	require.NoError(t, err)
	assert.Equal(t, 150.0, small.PriceUSD)

	total, err := r.ref.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), total)
}

func TestReferenceService_Import(t *testing.T) {
	db := setupServiceTestDB(t)
	r := newRepos(db)
	ctx := context.Background()
	svc := NewReferenceService(r.ref, nil, nil)

	existing := seedReference(t, r, "m4.metal.medium", 16, 128, 400, map[string]float64{"JP": 999})

	source := &fakePlanSource{plans: []provider.ReferencePlan{
		{
			Name: "m4.metal.small", CPU: "AMD 4244P @ 3.8 GHz", CPUCores: 6, RAMGB: 64,
			Storage:         normalize.Storage{Description: "2 x 960GB NVME", TotalTB: 1.92},
			NetworkGbps:     20,
			DefaultPriceUSD: 189,
			RegionalPrices:  map[string]float64{"US": 189, "BR": 250},
			UnknownRegions:  []string{"Mars"},
		},
		{Name: "m4.metal.medium", DefaultPriceUSD: 455, RegionalPrices: map[string]float64{"DE": 480}},
		{Name: "f4.metal.small", DefaultPriceUSD: 0, RegionalPrices: map[string]float64{"DE": 300}},
	}}

	result, err := svc.Import(ctx, source)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Plans)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 3, result.RegionalPrices)
	assert.Equal(t, []string{"Mars"}, result.UnknownRegions)

	small, err := r.ref.FindByName(ctx, "m4.metal.small")
	require.NoError(t, err)
	require.NotNil(t, small)
	assert.Equal(t, 4, small.Generation)
	assert.Equal(t, 189.0, small.PriceUSD)
	assert.Len(t, small.RegionalPrices, 2)

	medium, err := r.ref.GetByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, 455.0, medium.PriceUSD)
	require.Len(t, medium.RegionalPrices, 1)
	assert.Equal(t, "DE", medium.RegionalPrices[0].Region)

	missing, err := r.ref.FindByName(ctx, "f4.metal.small")
	require.NoError(t, err)
	assert.Nil(t, missing)

	t.Run("拉取失败返回错误", func(t *testing.T) {
		_, err := svc.Import(ctx, &fakePlanSource{err: errors.New("boom")})
		assert.Error(t, err)
	})
}

func TestReferenceService_CRUDTriggersMatching(t *testing.T) {
	db := setupServiceTestDB(t)
	r := newRepos(db)
	ctx := context.Background()
	regen := &countingRegenerator{}
	svc := NewReferenceService(r.ref, regen, nil)

	_, err := svc.Create(ctx, ReferenceInput{})
	assert.True(t, IsValidation(err))

	created, err := svc.Create(ctx, ReferenceInput{Name: ptr("m4.metal.small"), CPUCores: ptr(6), RAMGB: ptr(64), PriceUSD: ptr(189.0)})
	require.NoError(t, err)
	assert.Equal(t, 4, created.Generation)
	assert.Equal(t, 1, regen.calls)

	_, err = svc.Create(ctx, ReferenceInput{Name: ptr("m4.metal.small")})
	assert.True(t, IsValidation(err))

	// 只改 CPU 描述不触发
	_, err = svc.Update(ctx, created.ID, ReferenceInput{CPU: ptr("AMD 4244P")})
	require.NoError(t, err)
	assert.Equal(t, 1, regen.calls)

	updated, err := svc.Update(ctx, created.ID, ReferenceInput{PriceUSD: ptr(199.0)})
	require.NoError(t, err)
	assert.Equal(t, 199.0, updated.PriceUSD)
	assert.Equal(t, "AMD 4244P", updated.CPU)
	assert.Equal(t, 2, regen.calls)

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.Equal(t, 3, regen.calls)

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, created.ID), ErrNotFound)
}
