package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path"
	"strconv"

	"github.com/ppiankov/reportlens/internal/cache"
	"github.com/ppiankov/reportlens/internal/chat"
	"github.com/ppiankov/reportlens/internal/factcheck"
	"github.com/ppiankov/reportlens/internal/model"
	"github.com/ppiankov/reportlens/internal/section"
	"github.com/ppiankov/reportlens/internal/statements"
	"github.com/ppiankov/reportlens/internal/upload"
)

// Chat

type chatRequest struct {
	Message string `json:"message"`
	Option  string `json:"option"`
}

type chatResponse struct {
	User  model.ChatMessage  `json:"user"`
	Reply *model.ChatMessage `json:"reply,omitempty"`
	Error string             `json:"error,omitempty"`
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	writeJSON(w, http.StatusOK, map[string]any{
		"messages":  sess.Chat.Messages(),
		"input":     sess.Chat.Input(),
		"in_flight": sess.Chat.InFlight(),
		"error":     sess.Chat.Error(),
	})
}

type inputRequest struct {
	Input string `json:"input"`
}

// handleChatInput keeps the unsent draft so a reload can restore it
func (s *Server) handleChatInput(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	var req inputRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess.Chat.SetInput(req.Input)
	writeJSON(w, http.StatusOK, map[string]string{"input": sess.Chat.Input()})
}

func (s *Server) handleClearChatError(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	sess.Chat.ClearError()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := sess.Chat.Submit(r.Context(), req.Message, req.Option)
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}

	resp := chatResponse{User: res.User}
	if res.Reply.ID != "" {
		resp.Reply = &res.Reply
	}
	if res.Err != nil {
		log.Printf("session %s: chat failed: %v", sess.ID, res.Err)
		resp.Error = chat.ErrorBanner
	}
	writeJSON(w, http.StatusOK, resp)
}

type factCheckResponse struct {
	MessageID string                  `json:"message_id"`
	FactCheck model.FactCheckState    `json:"fact_check"`
	Summary   *model.FactCheckSummary `json:"summary,omitempty"`
}

func (s *Server) handleMessageFactCheck(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	id := r.PathValue("id")
	state, err := sess.Chat.RequestFactCheck(r.Context(), id)
	s.writeFactCheck(w, sess, id, state, err)
}

func (s *Server) handleMessageResync(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	id := r.PathValue("id")
	state, err := sess.Chat.ResyncFactCheck(r.Context(), id)
	s.writeFactCheck(w, sess, id, state, err)
}

func (s *Server) writeFactCheck(w http.ResponseWriter, sess *Session, id string, state model.FactCheckState, err error) {
	if err != nil {
		status := statusFor(err, http.StatusBadGateway)
		if status == http.StatusBadGateway {
			log.Printf("session %s: fact-check %s failed: %v", sess.ID, id, err)
		}
		writeError(w, status, err.Error())
		return
	}

	resp := factCheckResponse{MessageID: id, FactCheck: state}
	if state.Result != nil {
		summary := factcheck.Summary(state.Result)
		resp.Summary = &summary
	}
	writeJSON(w, http.StatusOK, resp)
}

// Sections

func parseSection(r *http.Request) (model.Section, error) {
	sec, err := model.ParseSection(r.PathValue("section"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errNotFound, err)
	}
	return sec, nil
}

func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	sec, err := parseSection(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	view, err := sess.Sections.Load(r.Context(), sec)
	if err != nil {
		log.Printf("session %s: %v", sess.ID, err)
		writeError(w, statusFor(err, http.StatusBadGateway), section.LoadErrorMessage(sec))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSectionResync(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	sec, err := parseSection(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	view, err := sess.Sections.Resync(r.Context(), sec)
	if err != nil {
		if errors.Is(err, factcheck.ErrPending) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		log.Printf("session %s: %v", sess.ID, err)
		writeError(w, statusFor(err, http.StatusBadGateway), section.LoadErrorMessage(sec))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSectionFactCheck(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	sec, err := parseSection(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	view, err := sess.Sections.FactCheck(r.Context(), sec)
	if err != nil {
		if errors.Is(err, factcheck.ErrPending) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		log.Printf("session %s: fact-check %s: %v", sess.ID, sec, err)
		writeError(w, statusFor(err, http.StatusBadGateway), section.FactCheckErrorMessage(sec))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Financial statements

func (s *Server) handleStatements(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	if r.URL.Query().Get("refresh") == "" {
		if raw, ok := sess.Cache.Get(cache.FinancialStatementsKey); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "hit")
			_, _ = w.Write(raw)
			return
		}
	}

	body, err := s.opts.Backend.FinancialStatements(r.Context())
	if err != nil {
		log.Printf("session %s: financial statements: %v", sess.ID, err)
		writeError(w, statusFor(err, http.StatusBadGateway), "Failed to load financial statements. Please try again later.")
		return
	}

	st, err := statements.Parse(body)
	if err != nil {
		log.Printf("session %s: financial statements: %v", sess.ID, err)
		writeError(w, http.StatusBadGateway, "Failed to load financial statements. Please try again later.")
		return
	}

	raw, err := json.Marshal(st)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = sess.Cache.Set(cache.FinancialStatementsKey, raw, cache.NoExpiration)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "miss")
	_, _ = w.Write(raw)
}

// Uploads

type uploadResponse struct {
	Message  string        `json:"message"`
	Filename string        `json:"filename"`
	Path     string        `json:"path"`
	Report   *model.Report `json:"report"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Leave room for multipart framing
	limit := s.opts.Uploads.MaxSize() + (1 << 20)
	if r.ContentLength > limit {
		writeError(w, http.StatusBadRequest, upload.FileSizeMessage)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, upload.FileSizeMessage)
			return
		}
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	if err := s.opts.Uploads.Validate(header.Filename, header.Header.Get("Content-Type"), header.Size); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.opts.Uploads.Save(header.Filename, file)
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}
	s.record(r, report)

	writeJSON(w, http.StatusOK, uploadResponse{
		Message:  "File uploaded successfully",
		Filename: report.Filename,
		Path:     "/uploads/" + report.Filename,
		Report:   report,
	})
}

type savePDFRequest struct {
	Data     string `json:"data"`
	Filename string `json:"filename"`
}

func (s *Server) handleSavePDF(w http.ResponseWriter, r *http.Request) {
	// base64 inflates by a third
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.Uploads.MaxSize()*4/3+(1<<20))

	var req savePDFRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, upload.FileSizeMessage)
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Data == "" || req.Filename == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields: data and filename")
		return
	}

	data, err := upload.DecodeDataURL(req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid base64 data")
		return
	}
	if err := s.opts.Uploads.Validate(req.Filename, "", int64(len(data))); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.opts.Uploads.Save(req.Filename, bytes.NewReader(data))
	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}
	s.record(r, report)

	writeJSON(w, http.StatusOK, uploadResponse{
		Message:  "PDF saved successfully",
		Filename: report.Filename,
		Path:     path.Join("/uploads", report.Filename),
		Report:   report,
	})
}

func (s *Server) record(r *http.Request, report *model.Report) {
	if s.opts.Registry == nil {
		return
	}
	if err := s.opts.Registry.Record(r.Context(), report); err != nil {
		log.Printf("record upload %s: %v", report.Filename, err)
	}
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	reports := []model.Report{}
	if s.opts.Registry != nil {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		list, err := s.opts.Registry.List(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		reports = list
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}
