package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/CTAG07/Markovian/pkg/corpus"
	"github.com/CTAG07/Markovian/pkg/markov"
	"github.com/CTAG07/Markovian/pkg/speaker"
)

// SpeakerAPI holds the dependencies for the identification and corpus API handlers.
type SpeakerAPI struct {
	store   *corpus.Store
	model   *ModelConfig
	maxBody int64
	logger  *slog.Logger
}

// VersionInfo defines the structure for build/version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// NewSpeakerAPI creates a new instance of the SpeakerAPI.
func NewSpeakerAPI(store *corpus.Store, config *Config, logger *slog.Logger) *SpeakerAPI {
	return &SpeakerAPI{
		store:   store,
		model:   config.Model,
		maxBody: config.Server.MaxBodyBytes,
		logger:  logger,
	}
}

// RegisterRoutes sets up the routing for all /api endpoints.
func (a *SpeakerAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/identify", a.handleIdentify)
	mux.HandleFunc("/api/speakers", a.handleListAndCreateSpeakers)
	mux.HandleFunc("/api/speakers/", a.handleSpeakerByName)
	mux.HandleFunc("/api/history", a.handleHistory)
	mux.HandleFunc("/api/version", handleVersion)
}

// IdentifyRequest names the two training samples, inline or by corpus
// speaker, and the query text. An inline text takes precedence over a speaker.
// An omitted order uses the configured default.
type IdentifyRequest struct {
	TextA    string `json:"text_a"`
	TextB    string `json:"text_b"`
	SpeakerA string `json:"speaker_a"`
	SpeakerB string `json:"speaker_b"`
	Text     string `json:"text"`
	Order    *int   `json:"order"`
	Record   bool   `json:"record"`
}

// IdentifyResponse is the scored result plus its sentence form.
type IdentifyResponse struct {
	speaker.Result
	Conclusion string `json:"conclusion"`
	ID         int    `json:"id,omitempty"`
}

type CreateSpeakerRequest struct {
	Name string `json:"name"`
}

type SpeakerTextResponse struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// handleIdentify scores a query against two speakers.
func (a *SpeakerAPI) handleIdentify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req IdentifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.maxBody)).Decode(&req); err != nil {
		respondWithError(w, statusFor(err, http.StatusBadRequest), "Invalid JSON request body")
		return
	}
	order := a.model.DefaultOrder
	if req.Order != nil {
		order = *req.Order
	}

	textA, nameA, err := a.resolveSample(r, req.TextA, req.SpeakerA, speaker.SpeakerA)
	if err != nil {
		respondWithError(w, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}
	textB, nameB, err := a.resolveSample(r, req.TextB, req.SpeakerB, speaker.SpeakerB)
	if err != nil {
		respondWithError(w, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}

	result, err := speaker.Identify(textA, textB, req.Text, order, a.model.Options(a.logger)...)
	if err != nil {
		respondWithError(w, statusFor(err, http.StatusInternalServerError), fmt.Sprintf("Identification failed: %v", err))
		return
	}

	resp := IdentifyResponse{Result: result, Conclusion: result.Conclusion()}
	if req.Record {
		ident, err := a.store.RecordIdentification(r.Context(), corpus.Identification{
			SpeakerA:   nameA,
			SpeakerB:   nameB,
			Order:      order,
			QueryRunes: utf8.RuneCountInString(req.Text),
			Result:     result,
		})
		if err != nil {
			a.logger.Error("Failed to record identification", "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to record identification: %v", err))
			return
		}
		resp.ID = ident.ID
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// resolveSample returns the inline text if set, otherwise the stored text of
// name. The second value labels the sample in the history.
func (a *SpeakerAPI) resolveSample(r *http.Request, text, name string, label speaker.Label) (string, string, error) {
	if text != "" {
		return text, "inline", nil
	}
	if name == "" {
		return "", "", fmt.Errorf("%w: speaker %s needs text or a stored speaker name", markov.ErrInvalidInput, label)
	}
	stored, err := a.store.Text(r.Context(), name)
	if err != nil {
		return "", "", fmt.Errorf("speaker %s: %w", label, err)
	}
	return stored, name, nil
}

// handleListAndCreateSpeakers handles GET for listing and POST for creating speakers.
func (a *SpeakerAPI) handleListAndCreateSpeakers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		speakers, err := a.store.Speakers(r.Context())
		if err != nil {
			a.logger.Error("Failed to list speakers", "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve speakers: %v", err))
			return
		}
		respondWithJSON(w, http.StatusOK, speakers)

	case http.MethodPost:
		var req CreateSpeakerRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.maxBody)).Decode(&req); err != nil {
			respondWithError(w, statusFor(err, http.StatusBadRequest), "Invalid JSON request body")
			return
		}
		if req.Name == "" || strings.Contains(req.Name, "/") {
			respondWithError(w, http.StatusBadRequest, "A speaker name without '/' is required")
			return
		}
		if err := a.store.AddSpeaker(r.Context(), req.Name); err != nil {
			a.logger.Error("Failed to create speaker", "name", req.Name, "error", err)
			respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to create speaker: %v", err))
			return
		}
		respondWithJSON(w, http.StatusCreated, corpus.SpeakerInfo{Name: req.Name})

	default:
		w.Header().Set("Allow", "GET, POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleSpeakerByName routes actions for a specific speaker: show, delete and adding samples.
func (a *SpeakerAPI) handleSpeakerByName(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/speakers/")
	parts := strings.Split(path, "/")
	name := parts[0]

	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Speaker name not specified")
		return
	}

	if len(parts) == 1 { // Path is just /api/speakers/{name}
		switch r.Method {
		case http.MethodGet:
			text, err := a.store.Text(r.Context(), name)
			if err != nil {
				respondWithError(w, statusFor(err, http.StatusInternalServerError), err.Error())
				return
			}
			respondWithJSON(w, http.StatusOK, SpeakerTextResponse{Name: name, Text: text})
		case http.MethodDelete:
			if err := a.store.RemoveSpeaker(r.Context(), name); err != nil {
				if !errors.Is(err, corpus.ErrSpeakerNotFound) {
					a.logger.Error("Failed to remove speaker", "name", name, "error", err)
				}
				respondWithError(w, statusFor(err, http.StatusInternalServerError), err.Error())
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			w.Header().Set("Allow", "GET, DELETE")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	if len(parts) != 2 || parts[1] != "samples" {
		respondWithError(w, http.StatusNotFound, "Action not found")
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxBody))
	if err != nil {
		respondWithError(w, statusFor(err, http.StatusBadRequest), "Failed to read sample body")
		return
	}
	if len(body) == 0 || !utf8.Valid(body) {
		respondWithError(w, http.StatusBadRequest, "Sample must be non-empty UTF-8 text")
		return
	}
	if err = a.store.AddSample(r.Context(), name, string(body)); err != nil {
		a.logger.Error("Failed to add sample", "name", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to add sample: %v", err))
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// handleHistory lists logged identifications, newest first.
func (a *SpeakerAPI) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
	}
	history, err := a.store.History(r.Context(), limit)
	if err != nil {
		a.logger.Error("Failed to read history", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve history: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, history)
}

// handleVersion returns the build information of the running binary.
func handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	respondWithJSON(w, http.StatusOK, VersionInfo{Version: Version, Commit: Commit, BuildDate: BuildDate})
}

// statusFor maps domain errors onto HTTP status codes, falling back to def.
func statusFor(err error, def int) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, markov.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, corpus.ErrSpeakerNotFound):
		return http.StatusNotFound
	default:
		return def
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		err := json.NewEncoder(w).Encode(payload)
		if err != nil {
			fmt.Printf("ERROR: Failed to encode JSON response: %v\n", err)
		}
	}
}
