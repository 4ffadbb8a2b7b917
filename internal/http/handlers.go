package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"voice-chat-service/internal/app"
	"voice-chat-service/internal/models"
	"voice-chat-service/internal/observability/logging"
	"voice-chat-service/internal/schema"
	"voice-chat-service/internal/service/chat"
	"voice-chat-service/internal/service/recording"
	"voice-chat-service/internal/service/upload"
	"voice-chat-service/internal/service/voice"
)

const (
	maxJSONBytes  = 1 << 20
	maxAudioBytes = 1 << 20
	wsWriteWait   = 5 * time.Second
)

type handlers struct {
	app      *app.Application
	upgrader websocket.Upgrader
}

type errorBody struct {
	Error   string      `json:"error"`
	Session *voice.View `json:"session,omitempty"`
}

type sendResult struct {
	Message  string `json:"message"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, voice.ErrSessionNotFound), errors.Is(err, voice.ErrUnknownCommand):
		return http.StatusNotFound
	case errors.Is(err, recording.ErrInvalidTransition),
		errors.Is(err, recording.ErrNothingToSend),
		errors.Is(err, voice.ErrNotRecording):
		return http.StatusConflict
	case errors.Is(err, recording.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, schema.ErrInvalid),
		errors.Is(err, upload.ErrNoFile),
		errors.Is(err, upload.ErrNoFilename),
		errors.Is(err, upload.ErrTypeNotAllowed):
		return http.StatusBadRequest
	case errors.Is(err, upload.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, chat.ErrResponder):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ChatResponse{Error: "invalid JSON body"})
		return
	}

	resp, err := h.app.Chat.Handle(r.Context(), req, chat.SourceText)
	if err != nil {
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) upload(w http.ResponseWriter, r *http.Request) {
	store := h.app.Uploads
	// Leave room for the multipart framing around the file.
	r.Body = http.MaxBytesReader(w, r.Body, store.MaxBytes()+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.app.Metrics.RecordUpload("too_large", 0)
			err = upload.ErrTooLarge
		case errors.Is(err, http.ErrMissingFile) && r.MultipartForm != nil && len(r.MultipartForm.Value["file"]) > 0:
			// A file field submitted without a filename.
			h.app.Metrics.RecordUpload("rejected", 0)
			err = upload.ErrNoFilename
		default:
			h.app.Metrics.RecordUpload("rejected", 0)
			err = upload.ErrNoFile
		}
		writeJSON(w, statusFor(err), models.UploadResult{Error: err.Error()})
		return
	}
	defer file.Close()

	res, err := store.Save(header.Filename, file)
	if err != nil {
		status := statusFor(err)
		if res.Error == "" {
			log.Error().Err(err).Str("filename", header.Filename).Msg("Upload failed")
			res.Error = "Upload failed"
		}
		writeJSON(w, status, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.app.Voice.Create()
	if err != nil {
		log.Error().Err(err).Msg("Failed to create voice session")
		writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, s.View())
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.app.Voice.Get(chi.URLParam(r, "sessionId"))
	if err != nil {
		writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

func (h *handlers) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Voice.Close(chi.URLParam(r, "sessionId")); err != nil {
		writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) command(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	command := chi.URLParam(r, "command")

	view, err := h.app.Voice.Command(id, command)
	if err != nil {
		body := errorBody{Error: err.Error()}
		if view.ID != "" {
			body.Session = &view
		}
		status := statusFor(err)
		if status >= http.StatusInternalServerError && status != http.StatusNotImplemented {
			sessionLog := logging.WithSession(id)
			sessionLog.Error().Err(err).Str("command", command).Msg("Voice command failed")
		}
		writeJSON(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) audio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAudioBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "audio chunk too large"})
		return
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "empty audio chunk"})
		return
	}

	if err := h.app.Voice.SendAudio(r.Context(), id, data); err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			sessionLog := logging.WithSession(id)
			sessionLog.Error().Err(err).Msg("Failed to forward audio")
		}
		writeJSON(w, status, errorBody{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) send(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")

	resp, text, err := h.app.Voice.Send(r.Context(), id)
	if err != nil {
		if text == "" {
			writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
			return
		}
		writeJSON(w, statusFor(err), sendResult{Message: text, Error: resp.Error})
		return
	}
	writeJSON(w, http.StatusOK, sendResult{Message: text, Response: resp.Response})
}

// waveform streams frames as JSON text messages until either side goes away.
func (h *handlers) waveform(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")

	sub, err := h.app.Voice.Subscribe(id)
	if err != nil {
		writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sessionLog := logging.WithSession(id)
		sessionLog.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// Client messages are ignored; a read error means the client left.
	go func() {
		defer sub.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for frame := range sub.C {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
		time.Now().Add(wsWriteWait))
}
