// Package server exposes the narration pipeline over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/narration-service/internal/core"
	"github.com/book-expert/narration-service/internal/pipeline"
	"github.com/book-expert/narration-service/internal/segment"
)

const (
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"

	maxRequestBytes   = 1 << 20
	readHeaderTimeout = 10 * time.Second
)

// ErrInvalidJSON indicates an unparseable request body.
var ErrInvalidJSON = errors.New("invalid JSON request body")

// NarrationRequest is the POST /narration body.
type NarrationRequest struct {
	Text      string                `json:"text"`
	BookID    string                `json:"bookId"`
	EpisodeID string                `json:"episodeId,omitempty"`
	Options   core.NarrationOptions `json:"options"`
}

// NarrationResponse is the success body for POST /narration.
type NarrationResponse struct {
	URL     string                 `json:"url"`
	Timings []core.ParagraphTiming `json:"timings,omitempty"`
	Details *pipeline.Diagnostics  `json:"details,omitempty"`
}

// ParagraphNarrationRequest is the POST /narration/paragraph body.
type ParagraphNarrationRequest struct {
	Text           string                `json:"text"`
	BookID         string                `json:"bookId"`
	ParagraphIndex int                   `json:"paragraphIndex"`
	Options        core.NarrationOptions `json:"options"`
}

// MetadataPayload is the wire shape of a content descriptor.
type MetadataPayload struct {
	Mood      string `json:"mood"`
	Genre     string `json:"genre"`
	Intensity int    `json:"intensity"`
	Tempo     string `json:"tempo"`
}

// ParagraphNarrationResponse is the success body for POST /narration/paragraph.
type ParagraphNarrationResponse struct {
	URL          string          `json:"url"`
	Metadata     MetadataPayload `json:"metadata"`
	UsedFallback bool            `json:"usedFallback,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server routes HTTP requests to a narration service.
type Server struct {
	service pipeline.Service
	log     *logger.Logger
}

// New creates a server around the given narration service.
func New(service pipeline.Service, log *logger.Logger) *Server {
	return &Server{service: service, log: log}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /narration", s.handleNarration)
	mux.HandleFunc("POST /narration/paragraph", s.handleParagraph)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return mux
}

// ListenAndServe blocks serving the API on the given address.
func (s *Server) ListenAndServe(address string) error {
	httpServer := &http.Server{
		Addr:              address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.log.Info("HTTP API listening on %s", address)

	return httpServer.ListenAndServe()
}

func (s *Server) handleNarration(
	writer http.ResponseWriter,
	request *http.Request,
) {
	var body NarrationRequest

	err := decodeJSON(request, &body)
	if err != nil {
		s.writeError(writer, http.StatusBadRequest, err)

		return
	}

	result, err := s.service.Run(request.Context(), pipeline.Request{
		BookID:           body.BookID,
		EpisodeID:        body.EpisodeID,
		Text:             body.Text,
		Options:          body.Options,
		OnState:          nil,
		OnUploadProgress: nil,
	})
	if err != nil {
		s.writeError(writer, statusFor(err), err)

		return
	}

	response := NarrationResponse{
		URL:     result.URL,
		Timings: result.Timings,
		Details: nil,
	}
	if len(result.Diagnostics.FallbackMetadata) > 0 ||
		len(result.Diagnostics.MissingBackground) > 0 {
		response.Details = &result.Diagnostics
	}

	s.writeJSON(writer, http.StatusOK, response)
}

func (s *Server) handleParagraph(
	writer http.ResponseWriter,
	request *http.Request,
) {
	var body ParagraphNarrationRequest

	err := decodeJSON(request, &body)
	if err != nil {
		s.writeError(writer, http.StatusBadRequest, err)

		return
	}

	result, err := s.service.RunParagraph(request.Context(), pipeline.ParagraphRequest{
		BookID:           body.BookID,
		Text:             body.Text,
		ParagraphIndex:   body.ParagraphIndex,
		Options:          body.Options,
		OnUploadProgress: nil,
	})
	if err != nil {
		s.writeError(writer, statusFor(err), err)

		return
	}

	s.writeJSON(writer, http.StatusOK, ParagraphNarrationResponse{
		URL: result.URL,
		Metadata: MetadataPayload{
			Mood:      string(result.Metadata.Mood),
			Genre:     result.Metadata.Genre,
			Intensity: result.Metadata.Intensity,
			Tempo:     string(result.Metadata.Tempo),
		},
		UsedFallback: result.UsedFallback,
	})
}

func (s *Server) handleHealth(writer http.ResponseWriter, _ *http.Request) {
	s.writeJSON(writer, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(
	writer http.ResponseWriter,
	status int,
	payload any,
) {
	writer.Header().Set(headerContentType, mimeJSON)
	writer.WriteHeader(status)

	err := json.NewEncoder(writer).Encode(payload)
	if err != nil {
		s.log.Error("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(writer http.ResponseWriter, status int, err error) {
	s.log.Warn("Request failed (%d): %v", status, err)
	s.writeJSON(writer, status, errorResponse{Error: err.Error()})
}

func decodeJSON(request *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, request.Body, maxRequestBytes))

	err := decoder.Decode(target)
	if err != nil {
		return ErrInvalidJSON
	}

	return nil
}

// statusFor maps run errors onto the fatal-failure taxonomy: caller mistakes
// are 400s, everything else is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrTextEmpty),
		errors.Is(err, pipeline.ErrBookIDEmpty),
		errors.Is(err, segment.ErrEmptyText),
		errors.Is(err, core.ErrVolumeRange),
		errors.Is(err, core.ErrNegativeDuration),
		errors.Is(err, core.ErrVoiceEmpty):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
