package middleware

import (
	"context"

	"github.com/peter-kozarec/quantex/pkg/common"
)

//goland:noinspection ALL
var (
	NoopMarketHdl = func(context.Context, common.Bar) error { return nil }
	NoopSignalHdl = func(context.Context, common.Signal) error { return nil }
	NoopOrderHdl  = func(context.Context, common.OrderRequest) error { return nil }
	NoopFillHdl   = func(context.Context, common.Fill) error { return nil }
)
