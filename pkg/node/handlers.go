package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ryandielhenn/zephyrwiki/internal/telemetry"
	"github.com/ryandielhenn/zephyrwiki/pkg/wiki"
)

const (
	msgPageNotFound     = "Page not found"
	msgInvalidEndpoint  = "Invalid endpoint"
	msgGossipReceived   = "Gossip received"
	msgPeerNotFound     = "Peer not found"
	msgExternalNotFound = "External wiki not found"
)

// Envelope wraps every API response.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type badRequest struct{ err error }

func (e *badRequest) Error() string { return e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (n *Node) respond(w http.ResponseWriter, status int, ok bool, data any, msg string) {
	env := Envelope{Success: ok, Error: msg}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			n.log.Error("encoding response", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Envelope{Error: err.Error()})
			return
		}
		env.Data = raw
	}
	writeJSON(w, status, env)
}

func (n *Node) ok(w http.ResponseWriter, data any) {
	n.respond(w, http.StatusOK, true, data, "")
}

func (n *Node) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		n.log.Error("request failed", zap.String("op", r.URL.Query().Get("path")), zap.Error(err))
	}
	n.respond(w, status, false, nil, err.Error())
}

func statusFor(err error) int {
	var (
		ve *wiki.ValidationError
		br *badRequest
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &br), errors.Is(err, wiki.ErrInvalidMode):
		return http.StatusBadRequest
	case errors.Is(err, wiki.ErrFeatureUnavailable):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &badRequest{errors.New("request body required")}
		}
		return &badRequest{fmt.Errorf("invalid JSON: %w", err)}
	}
	return nil
}

func scope(r *http.Request) wiki.Scope {
	return wiki.NewScope(r.URL.Query().Get("wikiId"))
}

// Healthz returns 200 OK to indicate the Node is alive.
func (n *Node) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Info writes process and node identity with the default wiki's page counts.
func (n *Node) Info(w http.ResponseWriter, r *http.Request) {
	type resp struct {
		PID     int       `json:"pid"`
		Now     time.Time `json:"now"`
		ID      string    `json:"id"`
		SelfURL string    `json:"selfUrl,omitempty"`
		Backend string    `json:"backend,omitempty"`
		Mode    wiki.Mode `json:"mode"`
		Local   int       `json:"localPages"`
		Cached  int       `json:"cachedPages"`
		Rows    *int      `json:"storedRows,omitempty"`
	}
	sc := wiki.NewScope("")
	st, err := n.svc.Stats(r.Context(), sc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	mode, err := n.svc.Mode(r.Context(), sc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := resp{
		PID: os.Getpid(), Now: time.Now(), ID: n.opts.ID, SelfURL: n.opts.SelfURL,
		Backend: n.opts.Backend, Mode: mode, Local: st.LocalPages, Cached: st.CachedPages,
	}
	if n.opts.StoredRows != nil {
		rows := n.opts.StoredRows()
		out.Rows = &rows
	}
	writeJSON(w, http.StatusOK, out)
}

func (n *Node) Pages(w http.ResponseWriter, r *http.Request) {
	pages, err := n.svc.ListPages(r.Context(), scope(r))
	if err != nil {
		n.fail(w, r, err)
		return
	}
	if pages == nil {
		pages = []wiki.Page{}
	}
	n.ok(w, pages)
}

func (n *Node) Page(w http.ResponseWriter, r *http.Request) {
	p, err := n.svc.GetPage(r.Context(), scope(r), r.URL.Query().Get("id"))
	n.pageResult(w, r, p, err)
}

func (n *Node) PageByTitle(w http.ResponseWriter, r *http.Request) {
	p, err := n.svc.GetPageByTitle(r.Context(), scope(r), r.URL.Query().Get("title"))
	n.pageResult(w, r, p, err)
}

func (n *Node) pageResult(w http.ResponseWriter, r *http.Request, p *wiki.Page, err error) {
	switch {
	case err != nil:
		n.fail(w, r, err)
	case p == nil:
		n.respond(w, http.StatusNotFound, false, nil, msgPageNotFound)
	default:
		n.ok(w, p)
	}
}

func (n *Node) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := n.svc.Stats(r.Context(), scope(r))
	if err != nil {
		n.fail(w, r, err)
		return
	}
	n.ok(w, st)
}

func (n *Node) Peers(w http.ResponseWriter, r *http.Request) {
	peers, err := n.svc.ListPeers(r.Context(), scope(r))
	if err != nil {
		n.fail(w, r, err)
		return
	}
	if peers == nil {
		peers = []wiki.Peer{}
	}
	n.ok(w, peers)
}

func (n *Node) ExternalIndex(w http.ResponseWriter, r *http.Request) {
	idx, err := n.svc.ExternalIndex(r.Context(), scope(r))
	if err != nil {
		n.fail(w, r, err)
		return
	}
	if idx == nil {
		idx = []wiki.ExternalWiki{}
	}
	n.ok(w, idx)
}

type ModeResponse struct {
	Mode wiki.Mode `json:"mode"`
}

func (n *Node) Mode(w http.ResponseWriter, r *http.Request) {
	m, err := n.svc.Mode(r.Context(), scope(r))
	if err != nil {
		n.fail(w, r, err)
		return
	}
	n.ok(w, ModeResponse{Mode: m})
}

type CreateRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
	Path    string   `json:"path,omitempty"`
	Author  string   `json:"author,omitempty"`
}

func (n *Node) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := decode(r, &req); err != nil {
		n.fail(w, r, err)
		return
	}
	p, err := n.svc.CreatePage(r.Context(), scope(r), wiki.NewPage{
		Title: req.Title, Content: req.Content, Tags: req.Tags, Path: req.Path, Author: req.Author,
	})
	if err != nil {
		n.fail(w, r, err)
		return
	}
	n.ok(w, p)
}

type UpdateRequest struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

func (n *Node) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := decode(r, &req); err != nil {
		n.fail(w, r, err)
		return
	}
	p, err := n.svc.UpdatePage(r.Context(), scope(r), req.ID, req.Title, req.Content, req.Tags)
	n.pageResult(w, r, p, err)
}

type DeleteRequest struct {
	ID string `json:"id"`
}

type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

func (n *Node) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if err := decode(r, &req); err != nil {
		n.fail(w, r, err)
		return
	}
	ok, err := n.svc.DeletePage(r.Context(), scope(r), req.ID)
	if err != nil {
		n.fail(w, r, err)
		return
	}
	if !ok {
		n.respond(w, http.StatusNotFound, false, DeleteResponse{}, msgPageNotFound)
		return
	}
	n.ok(w, DeleteResponse{Deleted: true})
}

type GossipRequest struct {
	Page *wiki.Page `json:"page"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (n *Node) Gossip(w http.ResponseWriter, r *http.Request) {
	var req GossipRequest
	if err := decode(r, &req); err != nil {
		telemetry.RecordGossipReceived(telemetry.GossipRejected)
		n.fail(w, r, err)
		return
	}
	if err := n.svc.ReceiveGossip(r.Context(), scope(r), req.Page); err != nil {
		result := telemetry.GossipRejected
		if statusFor(err) == http.StatusInternalServerError {
			result = telemetry.GossipError
		}
		telemetry.RecordGossipReceived(result)
		n.fail(w, r, err)
		return
	}
	telemetry.RecordGossipReceived(telemetry.GossipOK)
	n.ok(w, MessageResponse{Message: msgGossipReceived})
}

type PeerRequest struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

func (n *Node) AddPeer(w http.ResponseWriter, r *http.Request) {
	var req PeerRequest
	if err := decode(r, &req); err != nil {
		n.fail(w, r, err)
		return
	}
	p, err := n.svc.AddPeer(r.Context(), scope(r), req.URL, req.Name)
	if err != nil {
		n.fail(w, r, err)
		return
	}
	n.ok(w, p)
}

func (n *Node) RemovePeer(w http.ResponseWriter, r *http.Request) {
	var req PeerRequest
	if err := decode(r, &req); err != nil {
		n.fail(w, r, err)
		return
	}
	removed, err := n.svc.RemovePeer(r.Context(), scope(r), req.URL)
	n.removed(w, r, removed, err, msgPeerNotFound)
}

type ExternalWikiRequest struct {
	WikiID      string `json:"wikiId"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	AccessURL   string `json:"accessUrl"`
	Tags        string `json:"tags,omitempty"`
}

func (n *Node) AddExternalWiki(w http.ResponseWriter, r *http.Request) {
	var req ExternalWikiRequest
	if err := decode(r, &req); err != nil {
		n.fail(w, r, err)
		return
	}
	ok, err := n.svc.AddExternalWiki(r.Context(), scope(r), wiki.ExternalWiki{
		WikiID: req.WikiID, Title: req.Title, Description: req.Description,
		AccessURL: req.AccessURL, Tags: req.Tags,
	})
	if err != nil {
		n.fail(w, r, err)
		return
	}
	n.respond(w, http.StatusOK, ok, nil, "")
}

func (n *Node) RemoveExternalWiki(w http.ResponseWriter, r *http.Request) {
	var req ExternalWikiRequest
	if err := decode(r, &req); err != nil {
		n.fail(w, r, err)
		return
	}
	removed, err := n.svc.RemoveExternalWiki(r.Context(), scope(r), req.AccessURL)
	n.removed(w, r, removed, err, msgExternalNotFound)
}

func (n *Node) removed(w http.ResponseWriter, r *http.Request, removed bool, err error, notFound string) {
	switch {
	case err != nil:
		n.fail(w, r, err)
	case !removed:
		n.respond(w, http.StatusNotFound, false, nil, notFound)
	default:
		n.respond(w, http.StatusOK, true, nil, "")
	}
}

type ModeRequest struct {
	Mode string `json:"mode"`
}

func (n *Node) SetMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := decode(r, &req); err != nil {
		n.fail(w, r, err)
		return
	}
	m, err := n.svc.SetMode(r.Context(), scope(r), req.Mode)
	if err != nil {
		n.fail(w, r, err)
		return
	}
	n.ok(w, ModeResponse{Mode: m})
}

// InvalidEndpoint answers any ?path= the router does not know.
func (n *Node) InvalidEndpoint(w http.ResponseWriter, _ *http.Request) {
	n.respond(w, http.StatusBadRequest, false, nil, msgInvalidEndpoint)
}
