package simulation

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

type Report struct {
	Strategy      string
	StartDate     time.Time
	EndDate       time.Time
	Periods       int
	InitialEquity float64
	FinalEquity   float64
	TotalReturn   float64
	MaxDrawdown   float64
	SharpeRatio   float64
	AvgReturn     float64
	Volatility    float64
	Trades        int
	TotalTurnover float64
	Costs         float64
}

func NewReport(result BacktestResult) Report {
	report := Report{
		Strategy:      result.Metadata["strategy"],
		Periods:       result.Len(),
		TotalReturn:   result.Stats.TotalReturn,
		MaxDrawdown:   result.Stats.MaxDrawdown,
		SharpeRatio:   result.Stats.Sharpe,
		AvgReturn:     result.Stats.AvgDailyReturn,
		Volatility:    result.Stats.VolDaily,
		Trades:        result.Trades(),
		TotalTurnover: result.TotalTurnover(),
		Costs:         result.Costs,
	}
	if n := result.Len(); n > 0 {
		report.StartDate = result.TimeStamps[0]
		report.EndDate = result.TimeStamps[n-1]
		report.FinalEquity = result.Equity[len(result.Equity)-1]
		report.InitialEquity = report.FinalEquity / (1 + result.Stats.TotalReturn)
	}
	return report
}

func (report Report) Print(logger *zap.Logger) {
	logger.Info("performance report",
		zap.String("strategy", report.Strategy),
		zap.Time("start", report.StartDate),
		zap.Time("end", report.EndDate),
		zap.Int("periods", report.Periods),
		zap.String("initial_equity", fmt.Sprintf("%.2f", report.InitialEquity)),
		zap.String("final_equity", fmt.Sprintf("%.2f", report.FinalEquity)),
		zap.String("total_return", fmt.Sprintf("%.2f%%", report.TotalReturn*100)),
		zap.String("max_drawdown", fmt.Sprintf("%.2f%%", report.MaxDrawdown*100)),
	)

	logger.Info("trade statistics",
		zap.Int("trades", report.Trades),
		zap.String("total_turnover", fmt.Sprintf("%.4f", report.TotalTurnover)),
		zap.String("costs", fmt.Sprintf("%.6f", report.Costs)),
	)

	logger.Info("risk metrics",
		zap.String("sharpe_ratio", fmt.Sprintf("%.4f", report.SharpeRatio)),
		zap.String("avg_return", fmt.Sprintf("%.6f", report.AvgReturn)),
		zap.String("volatility", fmt.Sprintf("%.6f", report.Volatility)),
	)
}
