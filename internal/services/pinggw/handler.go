package pinggw

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/play-it-team/healthchecks/internal/domain/ping"
	"github.com/play-it-team/healthchecks/internal/repository/postgres"
)

// maxPingBody caps how much of a ping request body gets stored with the row.
const maxPingBody = 10 * 1024

var (
	mPingsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pinggw_pings_received_total",
		Help: "Ping signals accepted, by ping kind",
	}, []string{"kind"})
	mPingsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pinggw_pings_rejected_total",
		Help: "Ping requests refused, by reason",
	}, []string{"reason"})
)

type Handler struct {
	UC  *Usecase
	Log *zap.Logger
}

func NewHandler(uc *Usecase, log *zap.Logger) *Handler {
	return &Handler{UC: uc, Log: log.With(zap.String("component", "pinggw-http"))}
}

// Router wires the ping endpoints. Signal paths accept HEAD, GET and POST so
// that curl one-liners, crontab lines and HTTP client libraries all work
// without ceremony.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	signal := func(kind ping.Kind) http.HandlerFunc {
		return func(w http.ResponseWriter, req *http.Request) {
			h.servePing(w, req, kind)
		}
	}
	for _, method := range []string{http.MethodHead, http.MethodGet, http.MethodPost} {
		r.Method(method, "/ping/{code}", signal(ping.KindPlain))
		r.Method(method, "/ping/{code}/start", signal(ping.KindStart))
		r.Method(method, "/ping/{code}/fail", signal(ping.KindFail))
	}

	r.Post("/api/v1/checks/{code}/pause", h.serveFlag(h.UC.Pause))
	r.Post("/api/v1/checks/{code}/resume", h.serveFlag(h.UC.Resume))

	return r
}

func (h *Handler) servePing(w http.ResponseWriter, req *http.Request, kind ping.Kind) {
	code := chi.URLParam(req, "code")

	body := ""
	if req.Body != nil {
		b, _ := io.ReadAll(io.LimitReader(req.Body, maxPingBody))
		body = string(b)
	}

	meta := PingMeta{
		Kind:       kind,
		Scheme:     requestScheme(req),
		RemoteAddr: remoteHost(req),
		Method:     req.Method,
		UserAgent:  req.UserAgent(),
		Body:       body,
	}

	err := h.UC.RecordPing(req.Context(), code, meta)
	switch {
	case err == nil:
		mPingsReceived.WithLabelValues(kindLabel(kind)).Inc()
		plainText(w, http.StatusOK, "OK")
	case errors.Is(err, postgres.ErrNotFound):
		mPingsRejected.WithLabelValues("unknown_code").Inc()
		plainText(w, http.StatusNotFound, "not found")
	default:
		mPingsRejected.WithLabelValues("error").Inc()
		h.Log.Error("record ping", zap.String("check", code), zap.Error(err))
		plainText(w, http.StatusInternalServerError, "error")
	}
}

func (h *Handler) serveFlag(op func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		code := chi.URLParam(req, "code")

		err := op(req.Context(), code)
		switch {
		case err == nil:
			plainText(w, http.StatusOK, "OK")
		case errors.Is(err, postgres.ErrNotFound):
			plainText(w, http.StatusNotFound, "not found")
		default:
			h.Log.Error("flag check", zap.String("check", code), zap.Error(err))
			plainText(w, http.StatusInternalServerError, "error")
		}
	}
}

func plainText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func kindLabel(k ping.Kind) string {
	if k == ping.KindPlain {
		return "plain"
	}
	return string(k)
}

func requestScheme(req *http.Request) string {
	if proto := req.Header.Get("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if req.TLS != nil {
		return "https"
	}
	return "http"
}

func remoteHost(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
