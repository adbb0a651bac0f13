package livehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"crossguard/internal/logger"
	"crossguard/internal/store"
	"crossguard/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	chartWidth      = "1100px"
	chartHeight     = "420px"
	colorEquity     = "#4f8ef7"
	colorProfit     = "#26a69a"
	colorLoss       = "#ef5350"
	colorTextAccent = "#8a94a6"
)

// equityPoint 是净值曲线上的一个点。
type equityPoint struct {
	At    time.Time
	Total float64
}

func (r *Router) handleEquityPage(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days <= 0 || days > 365 {
		days = 30
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()
	points, err := r.equitySeries(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		r.fail(c, "equity series", err)
		return
	}
	stats, err := r.ledger.DailyStats(ctx, days, time.Now())
	if err != nil {
		r.fail(c, "daily stats", err)
		return
	}
	var buf bytes.Buffer
	if err := renderEquityPage(&buf, points, stats); err != nil {
		r.fail(c, "render equity", err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// equitySeries 优先使用余额快照；没有快照时退回到资金流水里的余额。
func (r *Router) equitySeries(ctx context.Context, since time.Time) ([]equityPoint, error) {
	recs, err := r.ledger.SnapshotRange(ctx, store.SnapshotBalance, since, 2000)
	if err != nil {
		return nil, err
	}
	points := make([]equityPoint, 0, len(recs))
	for _, rec := range recs {
		var bal types.Balance
		if err := json.Unmarshal(rec.Payload, &bal); err != nil {
			logger.Warnf("跳过损坏的余额快照 %s: %v", rec.ID, err)
			continue
		}
		points = append(points, equityPoint{At: rec.Timestamp, Total: bal.Total})
	}
	if len(points) > 0 {
		return points, nil
	}
	flows, err := r.ledger.QueryFundFlows(ctx, store.FlowFilter{Since: since, Limit: 2000})
	if err != nil {
		return nil, err
	}
	for _, f := range flows {
		if f.Balance <= 0 {
			continue
		}
		points = append(points, equityPoint{At: f.Timestamp, Total: f.Balance})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].At.Before(points[j].At) })
	return points, nil
}

func renderEquityPage(w io.Writer, points []equityPoint, stats []types.DailyStats) error {
	page := components.NewPage()
	page.PageTitle = "crossguard equity"
	page.AddCharts(buildEquityLine(points), buildDailyPnLBar(stats))
	return page.Render(w)
}

func buildEquityLine(points []equityPoint) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:         "Equity",
			Subtitle:      equitySubtitle(points),
			SubtitleStyle: &opts.TextStyle{Color: colorTextAccent},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	x := make([]string, len(points))
	data := make([]opts.LineData, len(points))
	for i, p := range points {
		x[i] = p.At.UTC().Format("01-02 15:04")
		data[i] = opts.LineData{Value: round2(p.Total)}
	}
	line.SetXAxis(x).AddSeries("equity", data, charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}))
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line
}

func buildDailyPnLBar(stats []types.DailyStats) *charts.Bar {
	sorted := append([]types.DailyStats(nil), stats...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Day < sorted[j].Day })

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: "300px"}),
		charts.WithTitleOpts(opts.Title{Title: "Daily PnL"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	x := make([]string, len(sorted))
	pnl := make([]opts.BarData, len(sorted))
	fees := make([]opts.BarData, len(sorted))
	for i, s := range sorted {
		x[i] = s.Day
		color := colorProfit
		if s.PnL < 0 {
			color = colorLoss
		}
		pnl[i] = opts.BarData{Value: round2(s.PnL), ItemStyle: &opts.ItemStyle{Color: color}}
		fees[i] = opts.BarData{Value: round2(-s.Commission)}
	}
	bar.SetXAxis(x).
		AddSeries("pnl", pnl).
		AddSeries("commission", fees, charts.WithItemStyleOpts(opts.ItemStyle{Color: colorTextAccent}))
	return bar
}

func equitySubtitle(points []equityPoint) string {
	if len(points) == 0 {
		return "暂无余额快照"
	}
	first, last := points[0].Total, points[len(points)-1].Total
	change := last - first
	pct := 0.0
	if first > 0 {
		pct = change / first * 100
	}
	return fmt.Sprintf("%.2f → %.2f (%+.2f, %+.2f%%)", first, last, change, pct)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
