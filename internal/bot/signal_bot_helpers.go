package bot

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

// StartupInfo is printed once before the loop starts
type StartupInfo struct {
	Feed        string
	Exchange    string
	Environment string
	RiskAmount  float64
	QuoteAsset  string
	LogPath     string
	JournalPath string
	Monitoring  string
}

// PrintStartupInfo prints the startup table
func (b *SignalBot) PrintStartupInfo(info StartupInfo) {
	t := table.NewWriter()
	t.SetOutputMirror(b.console)
	t.SetTitle("SIGNAL BOT INITIALIZATION")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"📡 Feed", info.Feed},
		{"🏪 Exchange", info.Exchange},
		{"🔧 Environment", info.Environment},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"💰 Risk / Trade", fmt.Sprintf("%.2f %s", info.RiskAmount, info.QuoteAsset)},
		{"⏰ Interval", b.interval.String()},
		{"🚪 Close Policy", string(b.machine.Policy())},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"📝 Log File", orDash(info.LogPath)},
		{"📒 Journal", orDash(info.JournalPath)},
		{"📈 Monitoring", orDash(info.Monitoring)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 60, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Fprintln(b.console)
}

func (b *SignalBot) printTradeTable(title string, trade types.ActiveTrade, reason string) {
	t := table.NewWriter()
	t.SetOutputMirror(b.console)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)

	tp := "-"
	if trade.TakeProfit != nil {
		tp = fmt.Sprintf("%g", *trade.TakeProfit)
	}

	fmt.Fprintln(b.console)
	t.AppendRows([]table.Row{
		{"📌 Asset", trade.Asset},
		{"🧭 Direction", strings.ToUpper(string(trade.Direction))},
		{"💰 Entry", fmt.Sprintf("%g", trade.Entry)},
		{"🛑 Stop Loss", fmt.Sprintf("%g", trade.StopLoss)},
		{"🎯 Take Profit", tp},
		{"📦 Quantity", fmt.Sprintf("%.6f", trade.Quantity)},
	})
	if reason != "" {
		t.AppendSeparator()
		t.AppendRow(table.Row{"📝 Reason", reason})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 15, WidthMax: 15, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, WidthMax: 60, Align: text.AlignLeft},
	})
	t.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
