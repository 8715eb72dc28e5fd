package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/hayatoko/frarb/internal/domain"
)

// FormatEvalResult renders a screening result as a notification body.
func FormatEvalResult(ev domain.EvalResult) (title, message string) {
	title = fmt.Sprintf("%s %s: short %s / long %s",
		strings.ToUpper(string(ev.Decision)), ev.Symbol, ev.ShortExchange, ev.LongExchange)

	var b strings.Builder
	fmt.Fprintf(&b, "diff/4h: %.4f%%  break-even/4h: %.4f%%\n", ev.Diff4h*100, ev.BreakEven4h*100)
	fmt.Fprintf(&b, "APR gross: %.1f%%  net: %.1f%%\n", ev.AprGrossPct, ev.AprNetPct)
	fmt.Fprintf(&b, "margin: %.1f bps  min hold: %s intervals\n", ev.MarginBps, ev.MinIntervals)
	fmt.Fprintf(&b, "cost: $%.4f fees+slip, $%.4f basis on $%.0f notional",
		ev.FeeSlipCostUSD, ev.BasisCostUSD, ev.NotionalTotalUSD)
	return title, b.String()
}

// FormatPositionSnapshot renders a position re-evaluation as a notification
// body.
func FormatPositionSnapshot(snap domain.PositionSnapshot) (title, message string) {
	title = fmt.Sprintf("%s position %s (%s)",
		strings.ToUpper(string(snap.Decision)), snap.Symbol, shortID(snap.PositionID))

	var b strings.Builder
	fmt.Fprintf(&b, "short %s / long %s", snap.ShortExchange, snap.LongExchange)
	if snap.Flipped {
		b.WriteString(" (flipped since entry)")
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "diff/interval: %.4f%% (entry %.4f%%)\n",
		snap.DiffPerInterval*100, snap.EntryDiffPerInterval*100)
	fmt.Fprintf(&b, "APR gross: %.1f%% (entry %.1f%%)  margin: %.1f bps\n",
		snap.AprGrossPct, snap.EntryAprGrossPct, snap.MarginBps)
	fmt.Fprintf(&b, "held %.1f intervals  est. PnL: $%.4f", snap.PeriodsElapsed, snap.EstimatedPnLUSD)
	return title, b.String()
}

// FormatRankResult renders a liquidity rank as a notification body.
func FormatRankResult(r domain.RankResult) (title, message string) {
	title = fmt.Sprintf("Rank %s %s: short %s / long %s",
		r.Rank, r.Symbol, r.ShortExchange, r.LongExchange)

	var b strings.Builder
	fmt.Fprintf(&b, "score: %d  APR: %.1f%%  gap: %.1f bps\n",
		r.Score, r.Metrics.AprPct, r.Metrics.GapBps)
	fmt.Fprintf(&b, "volume: $%s / $%s  depth: $%s / $%s",
		humanUSD(r.Metrics.VolumeShortUSD), humanUSD(r.Metrics.VolumeLongUSD),
		humanUSD(r.Metrics.DepthShortUSD), humanUSD(r.Metrics.DepthLongUSD))
	return title, b.String()
}

// FormatAprDropAlert renders a warning that an open position's gross APR has
// fallen below the configured floor.
func FormatAprDropAlert(snap domain.PositionSnapshot, floorPct float64) (title, message string) {
	title = fmt.Sprintf("APR drop %s (%s): %.1f%% gross", snap.Symbol, shortID(snap.PositionID), snap.AprGrossPct)
	message = fmt.Sprintf("short %s / long %s below %.0f%% floor (entry %.1f%%, margin %.1f bps)",
		snap.ShortExchange, snap.LongExchange, floorPct, snap.EntryAprGrossPct, snap.MarginBps)
	return title, message
}

// FormatFundingSoon renders an imminent-settlement reminder for an open
// position.
func FormatFundingSoon(pos domain.Position, at time.Time) (title, message string) {
	title = fmt.Sprintf("Funding soon %s (%s)", pos.Symbol, shortID(pos.ID))
	message = fmt.Sprintf("settlement at %s UTC  short %s / long %s",
		at.UTC().Format("15:04"), pos.ShortLeg.Exchange, pos.LongLeg.Exchange)
	return title, message
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// humanUSD renders large dollar figures with a metric suffix.
func humanUSD(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
