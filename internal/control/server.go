// Package control exposes the HTTP control plane of a live run.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/peter-kozarec/quantex/pkg/ledger"
	"github.com/peter-kozarec/quantex/pkg/utility"
	"github.com/peter-kozarec/quantex/pkg/utility/fixed"
)

const componentName = "control"

// Runner is the part of a live run the control plane reads and steers.
type Runner interface {
	ExecutionID() utility.ExecutionID
	Ledger() ledger.Snapshot
}

// KillSwitch is flipped by PUT /killswitch.
type KillSwitch interface {
	Engaged() bool
	Set(engaged bool)
}

type ledgerResponse struct {
	ExecutionID string                     `json:"eid"`
	TimeStamp   time.Time                  `json:"ts"`
	Cash        fixed.Point                `json:"cash"`
	Equity      fixed.Point                `json:"equity"`
	Gross       fixed.Point                `json:"gross_notional"`
	RealizedPnL fixed.Point                `json:"realized_pnl"`
	FillCount   int                        `json:"fill_count"`
	Positions   map[string]ledger.Position `json:"positions"`
}

type killSwitchBody struct {
	Engaged *bool `json:"engaged"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewRouter(logger *zap.Logger, runner Runner, killSwitch KillSwitch) chi.Router {
	logger = logger.Named(componentName)
	r := chi.NewRouter()
	r.Use(requestLogging(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "eid": runner.ExecutionID().String()})
	})

	r.Get("/ledger", func(w http.ResponseWriter, _ *http.Request) {
		snapshot := runner.Ledger()
		writeJSON(w, http.StatusOK, ledgerResponse{
			ExecutionID: runner.ExecutionID().String(),
			TimeStamp:   snapshot.TimeStamp,
			Cash:        snapshot.Cash,
			Equity:      snapshot.Equity(),
			Gross:       snapshot.GrossNotional(),
			RealizedPnL: snapshot.RealizedPnL(),
			FillCount:   snapshot.FillCount,
			Positions:   snapshot.Positions,
		})
	})

	r.Get("/killswitch", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"engaged": killSwitch.Engaged()})
	})

	r.Put("/killswitch", func(w http.ResponseWriter, req *http.Request) {
		var body killSwitchBody
		decoder := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<10))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&body); err != nil || body.Engaged == nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: `expected {"engaged": true|false}`})
			return
		}

		killSwitch.Set(*body.Engaged)
		logger.Warn("kill switch set over http", zap.Bool("engaged", *body.Engaged), zap.String("remote", req.RemoteAddr))
		writeJSON(w, http.StatusOK, map[string]bool{"engaged": killSwitch.Engaged()})
	})

	return r
}

// Serve runs the control plane on addr until ctx is done.
func Serve(ctx context.Context, logger *zap.Logger, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("control server listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func requestLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
