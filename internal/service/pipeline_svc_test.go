package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/model"
	"metal_price_tracker/internal/provider"
	"metal_price_tracker/internal/repository"
	"metal_price_tracker/pkg/utils"
)

func newTestPipeline(t *testing.T, db *gorm.DB, providers config.ProvidersConfig, sender *fakeSender) (*PipelineService, repos) {
	t.Helper()
	r := newRepos(db)
	rules := testRuleStore()
	matcher := NewMatcherService(r.ref, r.comp, r.comparison, rules, config.MatchingConfig{IncludeOutOfStock: true}, nil)

	return NewPipelineService(PipelineDeps{
		Registry:   provider.NewRegistry(providers, nil),
		HTTP:       utils.ClientOptions{},
		Rules:      rules,
		Ingest:     NewIngestService(r.comp, r.city, nil, IngestOptions{}, nil),
		Detector:   NewDetectorService(r.comp, r.history, rules, nil),
		Alert:      NewAlertService(sender, config.MailConfig{Recipients: []string{"ops@example.com"}}, rules, nil),
		Matcher:    matcher,
		References: NewReferenceService(r.ref, matcher, nil),
		CompRepo:   r.comp,
		RunRepo:    r.run,
	}), r
}

func hetznerOnly() config.ProvidersConfig {
	return config.ProvidersConfig{Hetzner: config.HetznerConfig{Enabled: true}}
}

func TestPipelineService_Run(t *testing.T) {
	db := setupServiceTestDB(t)
	ctx := context.Background()
	sender := &fakeSender{enabled: true}
	svc, r := newTestPipeline(t, db, hetznerOnly(), sender)

	_, err := NewReferenceService(r.ref, nil, nil).Seed(ctx)
	require.NoError(t, err)

	summary, err := svc.Run(ctx, model.RunTriggerManual)
	require.NoError(t, err)
	require.Len(t, summary.Providers, 1)
	assert.Equal(t, model.CompetitorHetzner, summary.Providers[0].Competitor)
	assert.Equal(t, 20, summary.Ingested)
	assert.Equal(t, 10, summary.Comparisons)
	assert.Empty(t, summary.PriceChanges)
	assert.False(t, summary.AlertSent)
	assert.Equal(t, config.MustDefaultRules().Version, summary.RuleVersion)

	run, err := r.run.GetByRunID(ctx, summary.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusSucceeded, run.Status)
	assert.Equal(t, model.RunTriggerManual, run.Trigger)
	assert.Equal(t, "HETZNER=20", run.InStockSummary)
	assert.Equal(t, 10, run.Comparisons)
	require.NotNil(t, run.FinishedAt)

	t.Run("第二次运行检测到价格变动", func(t *testing.T) {
		products, err := r.comp.ListAll(ctx)
		require.NoError(t, err)
		var target *model.CompetitorProduct
		for i := range products {
			if products[i].Name == "AX42" && products[i].City.Name == "Ashburn" {
				target = &products[i]
			}
		}
		require.NotNil(t, target)
		require.NoError(t, r.comp.UpdateFields(ctx, target.ID, map[string]interface{}{"price_usd": 50}))

		summary, err := svc.Run(ctx, model.RunTriggerCron)
		require.NoError(t, err)
		require.Len(t, summary.PriceChanges, 1)
		assert.Equal(t, "AX42", summary.PriceChanges[0].ProductName)
		assert.InDelta(t, 30.0, summary.PriceChanges[0].ChangePercent, 1e-9)
		assert.True(t, summary.AlertSent)
		require.Len(t, sender.sent, 1)
		assert.Equal(t, "Price Alert: 1 competitor SKU(s) changed by >10%", sender.sent[0].Subject)

		history, err := r.history.List(ctx, repository.PriceHistoryFilter{Competitor: model.CompetitorHetzner})
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, 50.0, history[0].OldPrice)
		assert.Equal(t, 65.0, history[0].NewPrice)

		runs, err := r.run.List(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, runs, 2)
	})
}

type comparisonRow struct {
	ReferenceID int64
	Competitor  string
	Product     string
	City        string
	Diff        float64
}

func comparisonRows(t *testing.T, r repos) []comparisonRow {
	t.Helper()
	list, err := r.comparison.List(context.Background(), repository.ComparisonFilter{})
	require.NoError(t, err)
	rows := make([]comparisonRow, 0, len(list))
	for _, c := range list {
		require.NotNil(t, c.CompetitorProduct)
		require.NotNil(t, c.CompetitorProduct.City)
		rows = append(rows, comparisonRow{
			ReferenceID: c.ReferenceProductID,
			Competitor:  string(c.CompetitorProduct.Competitor),
			Product:     c.CompetitorProduct.Name,
			City:        c.CompetitorProduct.City.Name,
			Diff:        c.PriceDifferencePercent,
		})
	}
	return rows
}

func TestPipelineService_RunTwiceUnchanged(t *testing.T) {
	db := setupServiceTestDB(t)
	ctx := context.Background()
	sender := &fakeSender{enabled: true}
	svc, r := newTestPipeline(t, db, hetznerOnly(), sender)

	_, err := NewReferenceService(r.ref, nil, nil).Seed(ctx)
	require.NoError(t, err)

	first, err := svc.Run(ctx, model.RunTriggerCron)
	require.NoError(t, err)
	firstRows := comparisonRows(t, r)
	require.NotEmpty(t, firstRows)

	second, err := svc.Run(ctx, model.RunTriggerCron)
	require.NoError(t, err)
	assert.Empty(t, second.PriceChanges)
	assert.False(t, second.AlertSent)
	assert.Empty(t, sender.sent)
	assert.Equal(t, first.Ingested, second.Ingested)
	assert.Equal(t, first.Comparisons, second.Comparisons)

	// 两次运行之间上游数据未变：无历史记录，比价集合一致
	history, err := r.history.List(ctx, repository.PriceHistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Equal(t, firstRows, comparisonRows(t, r))
}

func TestPipelineService_ValidateProviders(t *testing.T) {
	db := setupServiceTestDB(t)

	svc, _ := newTestPipeline(t, db, hetznerOnly(), &fakeSender{})
	assert.NoError(t, svc.ValidateProviders())

	providers := hetznerOnly()
	providers.Teraswitch = config.TeraswitchConfig{Enabled: true, BaseURL: "https://api.tsw.io"}
	svc, _ = newTestPipeline(t, db, providers, &fakeSender{})
	assert.ErrorIs(t, svc.ValidateProviders(), provider.ErrMissingCredentials)
}

func TestPipelineService_RunAbortsOnMissingCredentials(t *testing.T) {
	db := setupServiceTestDB(t)
	ctx := context.Background()
	providers := hetznerOnly()
	providers.OVH = config.OVHConfig{Enabled: true, BaseURL: "https://ca.api.ovh.com/1.0"}
	svc, r := newTestPipeline(t, db, providers, &fakeSender{})

	summary, err := svc.Run(ctx, model.RunTriggerCLI)
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrMissingCredentials)
	require.NotNil(t, summary)

	run, err := r.run.GetByRunID(ctx, summary.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.NotEmpty(t, run.Error)

	// 没有写入任何竞品
	total, err := r.comp.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestPipelineService_ImportOne(t *testing.T) {
	db := setupServiceTestDB(t)
	ctx := context.Background()
	svc, r := newTestPipeline(t, db, hetznerOnly(), &fakeSender{})

	result, err := svc.ImportOne(ctx, model.CompetitorHetzner)
	require.NoError(t, err)
	assert.Equal(t, 20, result.Stored)

	_, err = svc.ImportOne(ctx, model.CompetitorVultr)
	assert.ErrorIs(t, err, provider.ErrProviderDisabled)

	assert.Equal(t, []model.Competitor{model.CompetitorHetzner}, svc.Competitors())

	total, err := r.comp.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20), total)
}

func TestFormatInStock(t *testing.T) {
	got := FormatInStock(map[model.Competitor]int64{
		model.CompetitorTeraswitch: 30,
		model.CompetitorOVHcloud:   12,
	})
	assert.Equal(t, "OVHCLOUD=12,TERASWITCH=30", got)
	assert.Empty(t, FormatInStock(nil))
}
