package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ppiankov/reportlens/internal/model"
)

type viewerRequest struct {
	MessageID string `json:"message_id,omitempty"`
	Section   string `json:"section,omitempty"`
	PDFURL    string `json:"pdf_url,omitempty"`
	Index     int    `json:"index"`
	NumPages  int    `json:"num_pages"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	writeJSON(w, http.StatusOK, sess.Viewer.Snapshot())
}

func (s *Server) handleViewerAction(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	var req viewerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	v := sess.Viewer
	var err error
	switch action := r.PathValue("action"); action {
	case "open":
		var result *model.FactCheckResult
		result, err = s.viewerResult(sess, req)
		if err == nil {
			v.Open(result, s.pdfURL(r, req.PDFURL))
		}
	case "toggle":
		err = v.Toggle(req.Index)
	case "view":
		err = v.ViewDocument(req.Index)
	case "loaded":
		err = v.DocumentLoaded(req.NumPages)
	case "failed":
		err = v.DocumentFailed(errors.New(req.Error))
	case "next":
		err = v.NextPage()
	case "prev":
		err = v.PrevPage()
	case "zoom-in":
		err = v.ZoomIn()
	case "zoom-out":
		err = v.ZoomOut()
	case "back":
		err = v.Back()
	case "close":
		err = v.Close()
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown viewer action: %q", action))
		return
	}

	if err != nil {
		writeError(w, statusFor(err, http.StatusInternalServerError), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

// viewerResult finds the verified result the viewer should show:
// a chat message's, or a section's cached fact-check
func (s *Server) viewerResult(sess *Session, req viewerRequest) (*model.FactCheckResult, error) {
	switch {
	case req.MessageID != "":
		msg, ok := sess.Chat.Message(req.MessageID)
		if !ok {
			return nil, fmt.Errorf("%w: message %s", errNotFound, req.MessageID)
		}
		if msg.FactCheck.Status != model.FactCheckAvailable || msg.FactCheck.Result == nil {
			return nil, fmt.Errorf("%w: message %s has no fact-check result", errBadRequest, req.MessageID)
		}
		return msg.FactCheck.Result, nil

	case req.Section != "":
		sec, err := model.ParseSection(req.Section)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errNotFound, err)
		}
		view, ok := sess.Sections.CachedFactCheck(sec)
		if !ok {
			return nil, fmt.Errorf("%w: section %s has no fact-check result", errBadRequest, sec)
		}
		return view.Result, nil
	}
	return nil, fmt.Errorf("%w: message_id or section is required", errBadRequest)
}

// pdfURL defaults to the most recent upload
func (s *Server) pdfURL(r *http.Request, requested string) string {
	if requested != "" || s.opts.Registry == nil {
		return requested
	}
	reports, err := s.opts.Registry.List(r.Context(), 1)
	if err != nil || len(reports) == 0 {
		return ""
	}
	return "/uploads/" + reports[0].Filename
}
