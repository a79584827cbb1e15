// Package report exposes a finished backtest run two ways: a read-only
// JSON HTTP API for programmatic inspection, and a terminal summary table
// for the CLI path — the same split the teacher draws between its
// websocket/HTTP API server and AlejandroRuiz99-polybot's console notifier.
package report

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/atlas-desktop/trading-backend/pkg/utils"
	"github.com/gorilla/mux"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Server serves a single, already-finished BacktestResult over a small
// read-only JSON API, mirroring the teacher's internal/api/server.go
// mux.NewRouter + rs/cors wiring without any of the live trading/websocket
// surface a batch report has no use for.
type Server struct {
	logger     *zap.Logger
	router     *mux.Router
	httpServer *http.Server
	result     types.BacktestResult
	registry   *prometheus.Registry
}

// NewServer builds a report server for a completed run. registry may be
// nil, in which case /metrics is not registered.
func NewServer(logger *zap.Logger, result types.BacktestResult, registry *prometheus.Registry) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:   logger,
		router:   mux.NewRouter(),
		result:   result,
		registry: registry,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/summary", s.handleSummary).Methods("GET")
	s.router.HandleFunc("/api/v1/trades", s.handleTrades).Methods("GET")
	s.router.HandleFunc("/api/v1/equity", s.handleEquity).Methods("GET")
	s.router.HandleFunc("/api/v1/metrics", s.handleMetrics).Methods("GET")
	if s.registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")
	}
}

// summaryResponse is the top-level payload returned from /api/v1/summary.
type summaryResponse struct {
	TradeCount  int           `json:"tradeCount"`
	TotalReturn float64       `json:"totalReturn"`
	Sharpe      float64       `json:"sharpe"`
	MaxDrawdown float64       `json:"maxDrawdown"`
	WinRate     float64       `json:"winRate"`
	Config      types.Config  `json:"config"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, summaryResponse{
		TradeCount:  len(s.result.Trades),
		TotalReturn: s.result.Metrics.TotalReturn,
		Sharpe:      s.result.Metrics.Sharpe,
		MaxDrawdown: s.result.Metrics.MaxDrawdown,
		WinRate:     s.result.Metrics.Overall.WinRate,
		Config:      s.result.Config,
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.result.Trades)
}

func (s *Server) handleEquity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.result.EquityCurve)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.result.Metrics)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Handler returns the CORS-wrapped router, ready to pass to an http.Server
// or httptest.Server.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"*"},
	}).Handler(s.router)
}

// ListenAndServe starts the report server at addr and blocks until it
// stops or errors.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.logger.Info("starting report server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// PrintSummary renders a terminal summary of a finished run: a headline
// metrics block followed by a closed-trade table, in the
// AlejandroRuiz99-polybot console-notifier style (tablewriter.NewWriter,
// Header, per-row Append, Render).
func PrintSummary(result types.BacktestResult) {
	printHeadline(result)
	printTradeTable(result)
}

func printHeadline(result types.BacktestResult) {
	m := result.Metrics
	fmt.Fprintf(os.Stdout, "\nbacktest summary — %d trades, %d bars\n", len(result.Trades), len(result.TimeIndex))
	fmt.Fprintf(os.Stdout, "  total return : %8.2f%%\n", m.TotalReturn*100)
	fmt.Fprintf(os.Stdout, "  CAGR         : %8.2f%%\n", m.CAGR*100)
	fmt.Fprintf(os.Stdout, "  max drawdown : %8.2f%%  (%d bars)\n", m.MaxDrawdown*100, m.MaxDrawdownDuration)
	fmt.Fprintf(os.Stdout, "  sharpe       : %8.2f\n", m.Sharpe)
	fmt.Fprintf(os.Stdout, "  sortino      : %8.2f\n", m.Sortino)
	fmt.Fprintf(os.Stdout, "  calmar       : %8.2f\n", m.Calmar)
	fmt.Fprintf(os.Stdout, "  win rate     : %8.2f%%  (%d/%d)\n", m.Overall.WinRate*100, m.Overall.Wins, m.Overall.TotalTrades)
	fmt.Fprintf(os.Stdout, "  profit factor: %8.2f\n", m.Overall.ProfitFactor)
	fmt.Fprintf(os.Stdout, "  expectancy   : %8.2f R\n", m.Overall.Expectancy)
}

func printTradeTable(result types.BacktestResult) {
	closed := make([]types.TradeRecord, 0, len(result.Trades))
	for _, t := range result.Trades {
		if !t.Open {
			closed = append(closed, t)
		}
	}
	if len(closed) == 0 {
		fmt.Fprintln(os.Stdout, "\nno closed trades")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "POI", "Dir", "Entry", "Exit", "Reason", "PnL", "R", "Outcome"})

	for i, t := range closed {
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			t.POIID,
			directionLabel(t.Direction),
			t.EntryTime.Format("2006-01-02 15:04"),
			t.ExitTime.Format("2006-01-02 15:04"),
			string(t.ExitReason),
			utils.FormatMoney(t.RealizedPnL, ""),
			fmt.Sprintf("%.2f", t.RMultiple),
			string(t.Outcome),
		})
	}
	table.Render()
}

func directionLabel(d types.Direction) string {
	if d == types.Bullish {
		return "long"
	}
	return "short"
}
