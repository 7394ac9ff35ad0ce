package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/internal/logging"
	"github.com/peter-kozarec/quantex/pkg/common"
	"github.com/peter-kozarec/quantex/pkg/datasource"
	"github.com/peter-kozarec/quantex/pkg/datasource/historical"
)

// dumpIt converts the bars of one symbol in a CSV file into the fixed-width binary format read by
// the historical data source.
func dumpIt(ctx context.Context, csvPath, binPath, symbol string) (int, error) {
	src, err := datasource.OpenCSV(csvPath)
	if err != nil {
		return 0, err
	}
	defer func(src *datasource.CSV) {
		_ = src.Close()
	}(src)

	bars, err := datasource.Collect(ctx, src)
	if err != nil {
		return 0, err
	}

	selected, err := selectSymbol(bars, symbol)
	if err != nil {
		return 0, err
	}
	if err := historical.WriteFile(binPath, selected); err != nil {
		return 0, err
	}
	return len(selected), nil
}

func selectSymbol(bars []common.Bar, symbol string) ([]common.Bar, error) {
	if symbol == "" {
		for _, bar := range bars {
			if bar.Symbol != bars[0].Symbol {
				return nil, fmt.Errorf("file holds several symbols (%s, %s), pick one with -symbol", bars[0].Symbol, bar.Symbol)
			}
		}
		return bars, nil
	}

	selected := make([]common.Bar, 0, len(bars))
	for _, bar := range bars {
		if bar.Symbol == symbol {
			selected = append(selected, bar)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no bars for symbol %s", symbol)
	}
	return selected, nil
}

func main() {
	csvPath := flag.String("csv", "", "path to the input CSV file")
	binPath := flag.String("bin", "", "path to the output binary file")
	symbol := flag.String("symbol", "", "symbol to extract when the CSV holds several")
	flag.Parse()

	logger := logging.NewDevLogger()
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	if *csvPath == "" || *binPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	n, err := dumpIt(context.Background(), *csvPath, *binPath, *symbol)
	if err != nil {
		logger.Fatal("dump failed", zap.Error(err))
	}
	logger.Info("dump finished", zap.String("bin", *binPath), zap.Int("bars", n))
}
