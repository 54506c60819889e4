package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/pkg/logger"
	"metal_price_tracker/pkg/mailer"
)

// ==================== 价格告警邮件 ====================

var alertTemplate = template.Must(template.New("alert").Funcs(template.FuncMap{
	"price":  func(v float64) string { return fmt.Sprintf("$%.2f", v) },
	"change": formatChangePercent,
	"color": func(c PriceChange) string {
		if c.Increase() {
			return "#dc2626"
		}
		return "#16a34a"
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; }
table { border-collapse: collapse; width: 100%; margin: 16px 0; }
th { background: #f3f4f6; padding: 12px 8px; text-align: left; border-bottom: 2px solid #e5e7eb; }
td { padding: 8px; border-bottom: 1px solid #e5e7eb; }
.summary { background: #f9fafb; padding: 16px; border-radius: 8px; margin-bottom: 24px; }
</style>
</head>
<body>
<h1>Competitor Price Alert</h1>
<div class="summary">
<p><strong>{{len .All}}</strong> competitor SKU(s) changed price by more than {{.Threshold}}%:</p>
<ul>
{{- if .Increases}}<li><strong>{{len .Increases}}</strong> price increase(s)</li>{{end}}
{{- if .Decreases}}<li><strong>{{len .Decreases}}</strong> price decrease(s)</li>{{end}}
</ul>
</div>
{{- define "rows"}}
<table>
<thead><tr><th>Competitor</th><th>Product</th><th>City</th><th>Old Price</th><th>New Price</th><th>Change</th></tr></thead>
<tbody>
{{- range .}}
<tr><td>{{.Competitor}}</td><td>{{.ProductName}}</td><td>{{.CityName}}</td><td>{{price .OldPrice}}</td><td>{{price .NewPrice}}</td><td style="color: {{color .}}; font-weight: bold;">{{change .ChangePercent}}</td></tr>
{{- end}}
</tbody>
</table>
{{- end}}
{{if .Increases}}<h2>Price Increases</h2>{{template "rows" .Increases}}{{end}}
{{if .Decreases}}<h2>Price Decreases</h2>{{template "rows" .Decreases}}{{end}}
</body>
</html>
`))

type alertView struct {
	All       []PriceChange
	Increases []PriceChange
	Decreases []PriceChange
	Threshold string
}

func formatChangePercent(pct float64) string {
	if pct > 0 {
		return fmt.Sprintf("+%.1f%%", pct)
	}
	return fmt.Sprintf("%.1f%%", pct)
}

// AlertSubject 邮件标题
func AlertSubject(count int, threshold float64) string {
	return fmt.Sprintf("Price Alert: %d competitor SKU(s) changed by >%g%%", count, threshold)
}

// RenderAlert 渲染告警邮件正文，涨价和降价分表展示
func RenderAlert(changes []PriceChange, threshold float64) (string, error) {
	view := alertView{All: changes, Threshold: fmt.Sprintf("%g", threshold)}
	for _, c := range changes {
		if c.Increase() {
			view.Increases = append(view.Increases, c)
		} else {
			view.Decreases = append(view.Decreases, c)
		}
	}

	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("渲染告警邮件失败: %w", err)
	}
	return buf.String(), nil
}

// AlertService 价格变动通知
type AlertService struct {
	sender mailer.Sender
	cfg    config.MailConfig
	rules  *config.RuleStore
	log    *logger.Logger
}

func NewAlertService(sender mailer.Sender, cfg config.MailConfig, rules *config.RuleStore, log *logger.Logger) *AlertService {
	if log == nil {
		log = logger.Nop()
	}
	return &AlertService{sender: sender, cfg: cfg, rules: rules, log: log}
}

// Notify 发送告警；未配置或发送失败只记录日志，不影响流水线
func (s *AlertService) Notify(ctx context.Context, changes []PriceChange) bool {
	if len(changes) == 0 {
		return false
	}

	for _, c := range changes {
		s.log.Info("[Alert] 价格变动",
			"competitor", c.Competitor, "product", c.ProductName, "city", c.CityName,
			"old", c.OldPrice, "new", c.NewPrice, "change", formatChangePercent(c.ChangePercent))
	}

	if s.sender == nil || !s.sender.Enabled() {
		s.log.Warn("[Alert] 未配置邮件服务，跳过告警邮件", "changes", len(changes))
		return false
	}
	if len(s.cfg.Recipients) == 0 {
		s.log.Warn("[Alert] 未配置收件人，跳过告警邮件", "changes", len(changes))
		return false
	}

	threshold := s.rules.Current().ChangeThreshold
	html, err := RenderAlert(changes, threshold)
	if err != nil {
		s.log.Error("[Alert] 告警邮件渲染失败", "error", err)
		return false
	}

	err = s.sender.Send(ctx, mailer.Message{
		From:    s.cfg.From,
		To:      s.cfg.Recipients,
		Subject: AlertSubject(len(changes), threshold),
		HTML:    html,
	})
	if err != nil {
		s.log.Error("[Alert] 告警邮件发送失败", "error", err)
		return false
	}

	s.log.Info("[Alert] 告警邮件已发送", "recipients", len(s.cfg.Recipients), "changes", len(changes))
	return true
}
