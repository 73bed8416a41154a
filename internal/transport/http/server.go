package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"trivia-party-service/internal/app"
	"trivia-party-service/internal/domain"
)

const qrSize = 320

// CategorySource is implemented by question sources that can list categories.
type CategorySource interface {
	Categories(ctx context.Context) ([]domain.Category, error)
}

// RouterConfig holds the optional parts of the HTTP surface.
type RouterConfig struct {
	// PublicURL is the client app address encoded in join QR codes.
	// When empty it is derived from the request.
	PublicURL  string
	Origins    *OriginPolicy
	Categories CategorySource
	Health     func(ctx context.Context) error
}

type partyInfo struct {
	PartyID string          `json:"partyId"`
	Exists  bool            `json:"exists"`
	Members []domain.Member `json:"members"`
}

// NewRouter wires the websocket endpoint and the JSON/PNG helpers.
func NewRouter(ws *WSHandler, coordinator *app.Coordinator, cfg RouterConfig, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		log.Error("http handler panic", "path", r.URL.Path, "panic", v)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}

	mux.GET("/healthz", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				log.Warn("health check failed", "err", err)
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	})

	mux.GET("/ws", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ws.ServeWS(w, r)
	})

	mux.GET("/parties/:party", func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		partyID := ps.ByName("party")
		if !domain.ValidPartyID(partyID) {
			http.Error(w, domain.ErrInvalidPartyID.Error(), http.StatusBadRequest)
			return
		}
		members, err := coordinator.Members(r.Context(), partyID)
		if err != nil {
			log.Error("list party members", "party", partyID, "err", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, log, partyInfo{PartyID: partyID, Exists: len(members) > 0, Members: members})
	})

	mux.GET("/parties/:party/qr", func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		partyID := ps.ByName("party")
		if !domain.ValidPartyID(partyID) {
			http.Error(w, domain.ErrInvalidPartyID.Error(), http.StatusBadRequest)
			return
		}
		png, err := qrcode.Encode(joinURL(cfg.PublicURL, r, partyID), qrcode.Medium, qrSize)
		if err != nil {
			log.Error("qr generation failed", "party", partyID, "err", err)
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	})

	mux.GET("/categories", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if cfg.Categories == nil {
			http.NotFound(w, r)
			return
		}
		cats, err := cfg.Categories.Categories(r.Context())
		if err != nil {
			log.Warn("list categories", "err", err)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, log, cats)
	})

	return cfg.Origins.Wrap(mux)
}

// joinURL builds the client link for partyID.
func joinURL(publicURL string, r *http.Request, partyID string) string {
	base := strings.TrimSuffix(publicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/?party=" + url.QueryEscape(partyID)
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("write json response", "err", err)
	}
}
