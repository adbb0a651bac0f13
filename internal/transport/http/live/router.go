package livehttp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"crossguard/internal/execution"
	"crossguard/internal/logger"
	"crossguard/internal/market"
	"crossguard/internal/pkg/circuit"
	"crossguard/internal/risk"
	"crossguard/internal/store"
	"crossguard/internal/types"

	"github.com/gin-gonic/gin"
)

// Ledger 是 dashboard 读取的账本查询面。
type Ledger interface {
	QueryTrades(ctx context.Context, filter store.TradeFilter) ([]types.TradeRecord, error)
	QueryFundFlows(ctx context.Context, filter store.FlowFilter) ([]types.FundFlowRecord, error)
	RecentIntents(ctx context.Context, limit int) ([]types.OrderIntent, error)
	RecentDrifts(ctx context.Context, limit int) ([]types.DriftEvent, error)
	LatestSnapshot(ctx context.Context, kind string) (store.SnapshotRecord, error)
	SnapshotRange(ctx context.Context, kind string, since time.Time, limit int) ([]store.SnapshotRecord, error)
	DailyStats(ctx context.Context, days int, now time.Time) ([]types.DailyStats, error)
	Ping(ctx context.Context) error
}

// Book 暴露执行层的内存状态，由 execution.Governor 实现。
type Book interface {
	Positions() []types.Position
	InFlight() []types.OrderIntent
	Outcomes() []execution.Outcome
	RiskCounter(ctx context.Context) (types.DailyRiskCounter, error)
	RiskLimits() risk.Limits
}

// GatewayStatus 暴露交易所适配器的熔断与请求统计；dry-run 下可为空。
type GatewayStatus interface {
	Name() string
	BreakerState() circuit.State
	Stats() market.SourceStats
}

const queryTimeout = 3 * time.Second

// Router 暴露只读查询接口。
type Router struct {
	ledger  Ledger
	book    Book
	gw      GatewayStatus
	symbols []string
	logPath string
}

// NewRouter 构造 live HTTP router。
func NewRouter(cfg ServerConfig) *Router {
	return &Router{
		ledger:  cfg.Ledger,
		book:    cfg.Book,
		gw:      cfg.Gateway,
		symbols: cfg.Symbols,
		logPath: strings.TrimSpace(cfg.LogPath),
	}
}

// Register 将 /api/live 路由挂载到给定分组下。没有写接口。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/positions", r.handlePositions)
	group.GET("/risk", r.handleRisk)
	group.GET("/trades", r.handleTrades)
	group.GET("/flows", r.handleFlows)
	group.GET("/intents", r.handleIntents)
	group.GET("/drifts", r.handleDrifts)
	group.GET("/stats", r.handleStats)
	group.GET("/outcomes", r.handleOutcomes)
	group.GET("/gateway", r.handleGateway)
	group.GET("/snapshots/:kind", r.handleSnapshot)
	group.GET("/logs", r.handleLogs)
}

func (r *Router) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()
	if err := r.ledger.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "ledger unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "symbols": r.symbols})
}

func (r *Router) handlePositions(c *gin.Context) {
	if r.book == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "执行层未启用"})
		return
	}
	positions := r.book.Positions()
	var unrealized float64
	for _, p := range positions {
		unrealized += p.UnrealizedPnL(p.MarkPrice)
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions, "unrealized_pnl": unrealized})
}

func (r *Router) handleRisk(c *gin.Context) {
	if r.book == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "执行层未启用"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()
	counter, err := r.book.RiskCounter(ctx)
	if err != nil {
		r.fail(c, "risk counter", err)
		return
	}
	limits := r.book.RiskLimits()
	remaining := 0.0
	if limits.DailyLossLimit > 0 {
		remaining = limits.DailyLossLimit - counter.RealizedLoss
		if remaining < 0 {
			remaining = 0
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"counter": counter,
		"limits": gin.H{
			"stop_loss_pct":    limits.StopLossPct,
			"take_profit_pct":  limits.TakeProfitPct,
			"max_positions":    limits.MaxPositions,
			"daily_loss_limit": limits.DailyLossLimit,
		},
		"remaining_loss": remaining,
		"open_allowed":   !counter.Tripped,
	})
}

func (r *Router) handleTrades(c *gin.Context) {
	since, err := parseSince(c.Query("since"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter := store.TradeFilter{
		Symbol: strings.ToUpper(strings.TrimSpace(c.Query("symbol"))),
		Since:  since,
		Limit:  parseLimit(c, 100, 1000),
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()
	trades, err := r.ledger.QueryTrades(ctx, filter)
	if err != nil {
		r.fail(c, "trades", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (r *Router) handleFlows(c *gin.Context) {
	since, err := parseSince(c.Query("since"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter := store.FlowFilter{
		Type:  types.FundFlowType(strings.ToUpper(strings.TrimSpace(c.Query("type")))),
		Since: since,
		Limit: parseLimit(c, 100, 1000),
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()
	flows, err := r.ledger.QueryFundFlows(ctx, filter)
	if err != nil {
		r.fail(c, "fund flows", err)
		return
	}
	var total float64
	for _, f := range flows {
		total += f.Amount
	}
	c.JSON(http.StatusOK, gin.H{"flows": flows, "count": len(flows), "net": total})
}

func (r *Router) handleIntents(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()
	recent, err := r.ledger.RecentIntents(ctx, parseLimit(c, 50, 500))
	if err != nil {
		r.fail(c, "intents", err)
		return
	}
	resp := gin.H{"intents": recent}
	if r.book != nil {
		resp["in_flight"] = r.book.InFlight()
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleDrifts(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()
	drifts, err := r.ledger.RecentDrifts(ctx, parseLimit(c, 50, 500))
	if err != nil {
		r.fail(c, "drifts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drifts": drifts})
}

func (r *Router) handleStats(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
	if days <= 0 || days > 365 {
		days = 7
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()
	stats, err := r.ledger.DailyStats(ctx, days, time.Now())
	if err != nil {
		r.fail(c, "daily stats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "stats": stats})
}

func (r *Router) handleOutcomes(c *gin.Context) {
	if r.book == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "执行层未启用"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": r.book.Outcomes()})
}

func (r *Router) handleGateway(c *gin.Context) {
	if r.gw == nil {
		c.JSON(http.StatusOK, gin.H{"name": "paper"})
		return
	}
	stats := r.gw.Stats()
	c.JSON(http.StatusOK, gin.H{
		"name":       r.gw.Name(),
		"breaker":    r.gw.BreakerState().String(),
		"requests":   stats.Requests,
		"failures":   stats.Failures,
		"last_error": stats.LastError,
	})
}

func (r *Router) handleSnapshot(c *gin.Context) {
	kind := strings.ToLower(strings.TrimSpace(c.Param("kind")))
	if kind != store.SnapshotBalance && kind != store.SnapshotPositions {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown snapshot kind"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()
	rec, err := r.ledger.LatestSnapshot(ctx, kind)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot yet"})
		return
	}
	if err != nil {
		r.fail(c, "snapshot", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": rec.Kind, "timestamp": rec.Timestamp, "payload": json.RawMessage(rec.Payload)})
}

func (r *Router) handleLogs(c *gin.Context) {
	if r.logPath == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "未配置日志文件"})
		return
	}
	limit := parseLimit(c, 200, 2000)
	lines, err := readLastLines(r.logPath, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "path": r.logPath})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": r.logPath, "lines": lines})
}

func (r *Router) fail(c *gin.Context, what string, err error) {
	logger.Errorf("[api] %s query failed ip=%s err=%v", what, c.ClientIP(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func parseLimit(c *gin.Context, def, max int) int {
	limit, err := strconv.Atoi(strings.TrimSpace(c.DefaultQuery("limit", strconv.Itoa(def))))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// parseSince 接受 RFC3339 或毫秒时间戳。
func parseSince(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New("since must be RFC3339 or unix milliseconds")
	}
	return t.UTC(), nil
}

const maxLogLineSize = 4 * 1024 * 1024

func readLastLines(path string, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLogLineSize)
	lines := make([]string, 0, limit)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > limit {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
