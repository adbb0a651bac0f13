package execution

import (
	"crossguard/internal/gateway/notifier"
	"crossguard/internal/logger"
	"crossguard/internal/types"
)

func (g *Governor) send(msg notifier.StructuredMessage) {
	deliver(g.notifier, msg)
}

// deliver hands msg to n inline; the app wires n as a notifier.Queue so this never waits on the network.
func deliver(n notifier.TextNotifier, msg notifier.StructuredMessage) {
	if n == nil {
		return
	}
	if err := n.SendText(msg.RenderMarkdown()); err != nil {
		logger.Warnf("通知未送出 %q: %v", msg.Title, err)
	}
}

func (g *Governor) notifyFill(intent types.OrderIntent, trade types.TradeRecord) {
	g.send(notifier.FillMessage(intent, trade))
}

func (g *Governor) notifyTerminal(intent types.OrderIntent) {
	g.send(notifier.IntentMessage(intent))
}

func (g *Governor) notifyDrift(d types.DriftEvent) {
	g.send(notifier.DriftMessage(d))
}

// BreakerHook returns a risk trip hook that alerts through n.
func BreakerHook(n notifier.TextNotifier) func(types.DailyRiskCounter) {
	return func(c types.DailyRiskCounter) {
		deliver(n, notifier.BreakerMessage(c))
	}
}
