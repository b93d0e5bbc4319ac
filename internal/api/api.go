// Package api exposes the reconciliation engine over HTTP. Every route maps
// 1:1 to one engine operation; the handlers do transport work only
// (decoding, status mapping) and hold no state of their own.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/roach88/shelftrack/internal/engine"
	"github.com/roach88/shelftrack/internal/tag"
)

// Server is the HTTP surface over one engine.
type Server struct {
	engine *engine.Engine
}

// NewServer creates an API server over the given engine.
func NewServer(e *engine.Engine) *Server {
	return &Server{engine: e}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/detections", s.handleDetection)
	mux.HandleFunc("POST /api/connectivity", s.handleConnectivity)
	mux.HandleFunc("GET /api/readers", s.handleListReaders)
	mux.HandleFunc("POST /api/readers", s.handleRegisterReader)
	mux.HandleFunc("DELETE /api/readers/{identity}", s.handleRemoveReader)
	mux.HandleFunc("GET /api/items", s.handleListItems)
	mux.HandleFunc("POST /api/items", s.handleRegisterItem)
	return mux
}

type detectionRequest struct {
	ReaderIdentity string         `json:"reader_identity"`
	Key            string         `json:"key"`
	Kind           tag.ReaderKind `json:"kind"`
	// Detected defaults to true when omitted: readers that only ever report
	// sightings send the short form.
	Detected *bool `json:"detected"`
}

func (s *Server) handleDetection(w http.ResponseWriter, r *http.Request) {
	var req detectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}
	detected := req.Detected == nil || *req.Detected

	err := s.engine.SubmitDetection(r.Context(), req.ReaderIdentity, req.Key, req.Kind, detected)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "detection processed"})
}

type connectivityRequest struct {
	ReaderIdentity string `json:"reader_identity"`
	Connected      *bool  `json:"connected"`
}

func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	var req connectivityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}
	if req.Connected == nil {
		writeError(w, http.StatusBadRequest, string(engine.CodeInvalidEvent), "missing connected flag")
		return
	}

	if err := s.engine.ReportConnectivity(req.ReaderIdentity, *req.Connected); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "connectivity updated"})
}

type presentItemResponse struct {
	Key      tag.Key   `json:"key"`
	LastSeen time.Time `json:"last_seen"`
	Item     *itemResponse `json:"item,omitempty"`
}

type readerResponse struct {
	Identity  string                `json:"identity"`
	Kind      tag.ReaderKind        `json:"kind"`
	Name      string                `json:"name"`
	Connected bool                  `json:"connected"`
	Present   []presentItemResponse `json:"present"`
}

func (s *Server) handleListReaders(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.engine.QueryReaders(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	out := make([]readerResponse, 0, len(statuses))
	for _, st := range statuses {
		resp := readerResponse{
			Identity:  st.Reader.Identity,
			Kind:      st.Reader.Kind,
			Name:      st.Reader.Name,
			Connected: st.Connected,
			Present:   []presentItemResponse{},
		}
		for _, p := range st.Present {
			entry := presentItemResponse{Key: p.Key, LastSeen: p.LastSeen}
			if p.Item != nil {
				item := toItemResponse(*p.Item)
				entry.Item = &item
			}
			resp.Present = append(resp.Present, entry)
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, map[string][]readerResponse{"readers": out})
}

type registerReaderRequest struct {
	Identity string         `json:"identity"`
	Kind     tag.ReaderKind `json:"kind"`
	Name     string         `json:"name"`
}

func (s *Server) handleRegisterReader(w http.ResponseWriter, r *http.Request) {
	var req registerReaderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}

	reader, err := s.engine.RegisterReader(r.Context(), req.Kind, req.Identity, req.Name)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reader)
}

func (s *Server) handleRemoveReader(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")
	kind := tag.ReaderKind(r.URL.Query().Get("kind"))

	if err := s.engine.RemoveReader(r.Context(), kind, identity); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "reader removed"})
}

type logEntryResponse struct {
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

type itemResponse struct {
	Key                 tag.Key            `json:"key"`
	Title               string             `json:"title"`
	Authors             []string           `json:"authors"`
	IndustryIdentifiers []string           `json:"industry_identifiers"`
	Status              tag.Status         `json:"status"`
	ReaderIdentity      string             `json:"reader_identity,omitempty"`
	UpdatedAt           time.Time          `json:"updated_at"`
	Log                 []logEntryResponse `json:"log"`
}

func toItemResponse(item tag.Item) itemResponse {
	resp := itemResponse{
		Key:                 item.Key,
		Title:               item.Title,
		Authors:             item.Authors,
		IndustryIdentifiers: item.IndustryIdentifiers,
		Status:              item.Status,
		ReaderIdentity:      item.ReaderIdentity,
		UpdatedAt:           item.UpdatedAt,
		Log:                 make([]logEntryResponse, 0, len(item.Log)),
	}
	for _, entry := range item.Log {
		resp.Log = append(resp.Log, logEntryResponse{Message: entry.Message, Time: entry.Time})
	}
	return resp
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.ListItems(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item))
	}
	writeJSON(w, http.StatusOK, map[string][]itemResponse{"items": out})
}

type registerItemRequest struct {
	Key                 string     `json:"key"`
	Title               string     `json:"title"`
	Authors             []string   `json:"authors"`
	IndustryIdentifiers []string   `json:"industry_identifiers"`
	Status              tag.Status `json:"status"`
}

func (s *Server) handleRegisterItem(w http.ResponseWriter, r *http.Request) {
	var req registerItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadJSON(w, err)
		return
	}

	item, err := s.engine.RegisterItem(r.Context(), req.Key, req.Title, req.Authors, req.IndustryIdentifiers, req.Status)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(*item))
}

func decodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

func writeBadJSON(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, string(engine.CodeInvalidEvent), "invalid request body: "+err.Error())
}

// writeEngineError maps an engine error onto an HTTP status. Reader
// authorization rejections are 422 rather than 404: the request was well
// formed and the resource namespace is the registry, not the URL space.
func writeEngineError(w http.ResponseWriter, err error) {
	var status int
	switch engine.CodeOf(err) {
	case engine.CodeInvalidEvent:
		status = http.StatusBadRequest
	case engine.CodeNotFound:
		status = http.StatusNotFound
	case engine.CodeConflict:
		status = http.StatusConflict
	case engine.CodeUnknownReader, engine.CodeUnregisteredReader:
		status = http.StatusUnprocessableEntity
	case engine.CodePersistenceFailure:
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}

	var ee *engine.Error
	if errors.As(err, &ee) {
		writeError(w, status, string(ee.Code), ee.Message)
		return
	}
	writeError(w, status, "INTERNAL", err.Error())
}
