package model

import (
	"time"

	"crossguard/internal/types"
)

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMilli(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func FromTrade(r types.TradeRecord) TradeModel {
	return TradeModel{
		ID:          r.ID,
		IntentID:    r.IntentID,
		Symbol:      r.Symbol,
		Side:        string(r.Side),
		Action:      string(r.Action),
		Quantity:    r.Quantity,
		Price:       r.Price,
		Notional:    r.Notional,
		RealizedPnL: r.RealizedPnL,
		Fee:         r.Fee,
		Leverage:    r.Leverage,
		IsSimulated: boolInt(r.DryRun),
		Day:         types.DayKey(r.Timestamp),
		Timestamp:   unixMilli(r.Timestamp),
	}
}

func (m TradeModel) ToRecord() types.TradeRecord {
	return types.TradeRecord{
		ID:          m.ID,
		IntentID:    m.IntentID,
		Symbol:      m.Symbol,
		Side:        types.Side(m.Side),
		Action:      types.Action(m.Action),
		Quantity:    m.Quantity,
		Price:       m.Price,
		Notional:    m.Notional,
		RealizedPnL: m.RealizedPnL,
		Fee:         m.Fee,
		Leverage:    m.Leverage,
		DryRun:      m.IsSimulated == 1,
		Timestamp:   fromMilli(m.Timestamp),
	}
}

func FromFundFlow(r types.FundFlowRecord) FundFlowModel {
	return FundFlowModel{
		ID:          r.ID,
		Type:        string(r.Type),
		Asset:       r.Asset,
		Amount:      r.Amount,
		Balance:     r.Balance,
		TradeID:     r.TradeID,
		Description: r.Description,
		Day:         types.DayKey(r.Timestamp),
		Timestamp:   unixMilli(r.Timestamp),
	}
}

func (m FundFlowModel) ToRecord() types.FundFlowRecord {
	return types.FundFlowRecord{
		ID:          m.ID,
		Type:        types.FundFlowType(m.Type),
		Asset:       m.Asset,
		Amount:      m.Amount,
		Balance:     m.Balance,
		TradeID:     m.TradeID,
		Description: m.Description,
		Timestamp:   fromMilli(m.Timestamp),
	}
}

func FromIntent(i types.OrderIntent) OrderIntentModel {
	return OrderIntentModel{
		ID:            i.ID,
		Symbol:        i.Symbol,
		Action:        string(i.Action),
		Side:          string(i.Side),
		Quantity:      i.Quantity,
		EntryPrice:    i.EntryPrice,
		Leverage:      i.Leverage,
		State:         string(i.State),
		Attempts:      i.Attempts,
		FilledQty:     i.FilledQty,
		AvgPrice:      i.AvgPrice,
		Reason:        i.Reason,
		Error:         i.Error,
		IsSimulated:   boolInt(i.DryRun),
		CreatedAtUnix: unixMilli(i.CreatedAt),
		UpdatedAtUnix: unixMilli(i.UpdatedAt),
	}
}

func (m OrderIntentModel) ToIntent() types.OrderIntent {
	return types.OrderIntent{
		ID:         m.ID,
		Symbol:     m.Symbol,
		Action:     types.Action(m.Action),
		Side:       types.Side(m.Side),
		Quantity:   m.Quantity,
		EntryPrice: m.EntryPrice,
		Leverage:   m.Leverage,
		State:      types.IntentState(m.State),
		Attempts:   m.Attempts,
		FilledQty:  m.FilledQty,
		AvgPrice:   m.AvgPrice,
		Reason:     m.Reason,
		Error:      m.Error,
		DryRun:     m.IsSimulated == 1,
		CreatedAt:  fromMilli(m.CreatedAtUnix),
		UpdatedAt:  fromMilli(m.UpdatedAtUnix),
	}
}

func FromDrift(e types.DriftEvent) DriftEventModel {
	return DriftEventModel{
		ID:          e.ID,
		Kind:        string(e.Kind),
		Symbol:      e.Symbol,
		Side:        string(e.Side),
		LocalSize:   e.LocalSize,
		RemoteSize:  e.RemoteSize,
		RemoteEntry: e.RemoteEntry,
		DetectedAt:  unixMilli(e.DetectedAt),
	}
}

func (m DriftEventModel) ToEvent() types.DriftEvent {
	return types.DriftEvent{
		ID:          m.ID,
		Kind:        types.DriftKind(m.Kind),
		Symbol:      m.Symbol,
		Side:        types.Side(m.Side),
		LocalSize:   m.LocalSize,
		RemoteSize:  m.RemoteSize,
		RemoteEntry: m.RemoteEntry,
		DetectedAt:  fromMilli(m.DetectedAt),
	}
}

func FromCounter(c types.DailyRiskCounter) RiskCounterModel {
	return RiskCounterModel{
		Day:           c.Day,
		RealizedLoss:  c.RealizedLoss,
		TradeCount:    c.TradeCount,
		Tripped:       boolInt(c.Tripped),
		UpdatedAtUnix: unixMilli(c.UpdatedAt),
	}
}

func (m RiskCounterModel) ToCounter() types.DailyRiskCounter {
	return types.DailyRiskCounter{
		Day:          m.Day,
		RealizedLoss: m.RealizedLoss,
		TradeCount:   m.TradeCount,
		Tripped:      m.Tripped == 1,
		UpdatedAt:    fromMilli(m.UpdatedAtUnix),
	}
}
