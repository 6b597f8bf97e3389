package node

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrwiki/internal/telemetry"
	"github.com/ryandielhenn/zephyrwiki/pkg/gossip"
)

// Router wires every endpoint. Operational routes live at fixed paths; the
// wiki API is selected by the ?path= query parameter and answers on any
// other path, so a node can be mounted under a prefix.
func (n *Node) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(n.recoverer, n.withBaseURL)

	r.HandleFunc("/healthz", n.Healthz).Methods(http.MethodGet)
	r.Handle("/info", telemetry.Instrument("info", http.HandlerFunc(n.Info))).Methods(http.MethodGet)
	r.Handle("/metrics", telemetry.MetricsHandler()).Methods(http.MethodGet)

	for _, rt := range []struct {
		method, op string
		h          http.HandlerFunc
	}{
		{http.MethodGet, "pages", n.Pages},
		{http.MethodGet, "page", n.Page},
		{http.MethodGet, "page_by_title", n.PageByTitle},
		{http.MethodGet, "stats", n.Stats},
		{http.MethodGet, "peers", n.Peers},
		{http.MethodGet, "external_index", n.ExternalIndex},
		{http.MethodGet, "mode", n.Mode},
		{http.MethodPost, "create", n.Create},
		{http.MethodPost, "update", n.Update},
		{http.MethodPost, "delete", n.Delete},
		{http.MethodPost, "gossip", n.Gossip},
		{http.MethodPost, "add_peer", n.AddPeer},
		{http.MethodPost, "remove_peer", n.RemovePeer},
		{http.MethodPost, "add_external_wiki", n.AddExternalWiki},
		{http.MethodPost, "remove_external_wiki", n.RemoveExternalWiki},
		{http.MethodPost, "set_mode", n.SetMode},
	} {
		r.NewRoute().
			Methods(rt.method).
			Queries("path", rt.op).
			MatcherFunc(singlePath).
			Handler(telemetry.Instrument(rt.op, rt.h))
	}

	invalid := telemetry.Instrument("invalid", http.HandlerFunc(n.InvalidEndpoint))
	r.NotFoundHandler = invalid
	r.MethodNotAllowedHandler = invalid
	return r
}

// singlePath rejects requests naming more than one operation, which would
// otherwise be served by whichever value the router happens to match.
func singlePath(r *http.Request, _ *mux.RouteMatch) bool {
	return len(r.URL.Query()["path"]) == 1
}

// recoverer turns a handler panic into a 500 envelope.
func (n *Node) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				n.log.Error("handler panic",
					zap.String("op", r.URL.Query().Get("path")),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()))
				n.respond(w, http.StatusInternalServerError, false, nil, fmt.Sprintf("internal error: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withBaseURL caps the body and records the URL this node was reached at, the
// gossip origin fallback when no self URL is configured.
func (n *Node) withBaseURL(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		if u := RequestBaseURL(r); u != "" {
			r = r.WithContext(gossip.WithRequestBaseURL(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}
