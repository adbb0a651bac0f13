package notifier

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"crossguard/internal/types"
)

// Telegram 单条上限 4096 字符，留出余量。
const maxMessageRunes = 3800

const fence = "```"

// Field 是代码块中按键对齐的一行。
type Field struct {
	Key   string
	Value string
}

// MessageSection 是代码块中的一段：Fields 对齐输出，Lines 以列表输出。
type MessageSection struct {
	Title  string
	Fields []Field
	Lines  []string
}

// StructuredMessage 描述统一格式的 Telegram 推送。
type StructuredMessage struct {
	Icon      string
	Title     string
	Sections  []MessageSection
	Footer    string
	Timestamp time.Time
}

// RenderMarkdown 生成 Markdown 文本；按字符裁剪，裁剪后补齐代码块。
func (m StructuredMessage) RenderMarkdown() string {
	var b strings.Builder
	if header := strings.TrimSpace(m.Icon + " " + m.Title); header != "" {
		b.WriteString(header + "\n\n")
	}
	blocks := make([]string, 0, len(m.Sections))
	for _, sec := range m.Sections {
		if block := sec.render(); block != "" {
			blocks = append(blocks, block)
		}
	}
	if len(blocks) > 0 {
		b.WriteString(fence + "\n")
		b.WriteString(strings.Join(blocks, "\n"))
		b.WriteString(fence + "\n\n")
	}
	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(escapeFence(footer) + "\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("时间：" + m.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
	}
	return truncate(strings.TrimSpace(b.String()), maxMessageRunes)
}

func (s MessageSection) render() string {
	var b strings.Builder
	width := 0
	for _, f := range s.Fields {
		if n := utf8.RuneCountInString(f.Key); n > width {
			width = n
		}
	}
	for _, f := range s.Fields {
		v := strings.TrimSpace(f.Value)
		if v == "" {
			continue
		}
		pad := strings.Repeat(" ", width-utf8.RuneCountInString(f.Key))
		b.WriteString(f.Key + pad + " : " + escapeFence(v) + "\n")
	}
	for _, line := range s.Lines {
		if line = strings.TrimSpace(line); line != "" {
			b.WriteString("- " + escapeFence(line) + "\n")
		}
	}
	if b.Len() == 0 {
		return ""
	}
	if title := strings.TrimSpace(s.Title); title != "" {
		return "[" + escapeFence(title) + "]\n" + b.String()
	}
	return b.String()
}

func truncate(body string, limit int) string {
	if utf8.RuneCountInString(body) <= limit {
		return body
	}
	body = string([]rune(body)[:limit]) + "..."
	if strings.Count(body, fence)%2 == 1 {
		body += "\n" + fence
	}
	return body
}

func escapeFence(s string) string {
	return strings.ReplaceAll(s, fence, "'''")
}

func qty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FillMessage 成交确认。
func FillMessage(intent types.OrderIntent, trade types.TradeRecord) StructuredMessage {
	fields := []Field{
		{"动作", fmt.Sprintf("%s %s", intent.Action, intent.Side)},
		{"数量", fmt.Sprintf("%s @ %.4f", qty(trade.Quantity), trade.Price)},
		{"手续费", fmt.Sprintf("%.4f", trade.Fee)},
		{"原因", intent.Reason},
	}
	if trade.RealizedPnL != nil {
		fields = append(fields, Field{"已实现盈亏", fmt.Sprintf("%.4f", *trade.RealizedPnL)})
	}
	var lines []string
	if intent.Error != "" {
		lines = append(lines, intent.Error)
	}
	msg := StructuredMessage{
		Icon:      "✅",
		Title:     "成交 " + intent.Symbol,
		Sections:  []MessageSection{{Fields: fields, Lines: lines}},
		Timestamp: trade.Timestamp,
	}
	if intent.DryRun {
		msg.Footer = "paper"
	}
	return msg
}

// IntentMessage 意图以 FAILED / ABANDONED 结束。
func IntentMessage(intent types.OrderIntent) StructuredMessage {
	return StructuredMessage{
		Icon:  "⚠️",
		Title: fmt.Sprintf("%s %s", intent.State, intent.Symbol),
		Sections: []MessageSection{{Fields: []Field{
			{"意图", intent.ID},
			{"动作", fmt.Sprintf("%s qty=%s", intent.Action, qty(intent.Quantity))},
			{"尝试", strconv.Itoa(intent.Attempts)},
			{"错误", intent.Error},
		}}},
		Timestamp: intent.UpdatedAt,
	}
}

func DriftMessage(d types.DriftEvent) StructuredMessage {
	return StructuredMessage{
		Icon:  "🔁",
		Title: "持仓漂移 " + d.Symbol,
		Sections: []MessageSection{{Fields: []Field{
			{"类型", fmt.Sprintf("%s %s", d.Kind, d.Side)},
			{"本地", qty(d.LocalSize)},
			{"交易所", fmt.Sprintf("%s @ %.4f", qty(d.RemoteSize), d.RemoteEntry)},
		}}},
		Timestamp: d.DetectedAt,
	}
}

func BreakerMessage(c types.DailyRiskCounter) StructuredMessage {
	return StructuredMessage{
		Icon:  "🛑",
		Title: "每日亏损熔断",
		Sections: []MessageSection{{
			Fields: []Field{
				{"交易日", c.Day},
				{"累计亏损", fmt.Sprintf("%.4f", c.RealizedLoss)},
				{"平仓次数", strconv.Itoa(c.TradeCount)},
			},
			Lines: []string{"新开仓已暂停，平仓不受影响"},
		}},
		Timestamp: c.UpdatedAt,
	}
}
