package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/funding-tracker/internal/model"
	"github.com/sells-group/funding-tracker/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		gw, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer gw.Close()

		if err := gw.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(gw),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown with a drain window for in-flight requests
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(drainCtx); err != nil {
				zap.L().Warn("server shutdown incomplete", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(gw store.Gateway) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/events", func(w http.ResponseWriter, req *http.Request) {
		filter, err := eventFilter(req)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		filtered := filter.Query != "" || filter.Sector != "" || !filter.Since.IsZero() || !filter.Until.IsZero()

		var events []model.FundingEvent
		if filtered {
			events, err = gw.SearchEvents(req.Context(), filter)
		} else {
			events, err = gw.ListRecentEvents(req.Context(), filter.Limit)
		}
		if err != nil {
			writeError(w, "list events", err)
			return
		}
		writeJSON(w, http.StatusOK, events)
	})

	r.Get("/companies", func(w http.ResponseWriter, req *http.Request) {
		companies, err := gw.ListCompanies(req.Context())
		if err != nil {
			writeError(w, "list companies", err)
			return
		}
		writeJSON(w, http.StatusOK, companies)
	})

	r.Get("/investors", func(w http.ResponseWriter, req *http.Request) {
		investors, err := gw.ListInvestors(req.Context())
		if err != nil {
			writeError(w, "list investors", err)
			return
		}
		writeJSON(w, http.StatusOK, investors)
	})

	r.Get("/analytics/sectors", func(w http.ResponseWriter, req *http.Request) {
		rows, err := gw.FundingBySector(req.Context())
		if err != nil {
			writeError(w, "funding by sector", err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	})

	r.Get("/analytics/investors", func(w http.ResponseWriter, req *http.Request) {
		limit := queryLimit(req, 20)
		rows, err := gw.TopInvestors(req.Context(), limit)
		if err != nil {
			writeError(w, "top investors", err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	})

	return r
}

// eventFilter builds a search filter from /events query parameters:
// q, sector, since, until (dates as 2006-01-02), limit.
func eventFilter(req *http.Request) (store.EventFilter, error) {
	q := req.URL.Query()
	filter := store.EventFilter{
		Query: q.Get("q"),
		Limit: queryLimit(req, 50),
	}

	if raw := q.Get("sector"); raw != "" {
		sector, ok := model.ParseSector(raw)
		if !ok {
			return filter, eris.Errorf("unknown sector %q", raw)
		}
		filter.Sector = sector
	}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{
		{"since", &filter.Since},
		{"until", &filter.Until},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, eris.Errorf("invalid %s date %q", p.name, raw)
		}
		*p.dst = t
	}
	return filter, nil
}

func queryLimit(req *http.Request, def int) int {
	raw := req.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, action string, err error) {
	zap.L().Error("api request failed", zap.String("action", action), zap.Error(err))
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
