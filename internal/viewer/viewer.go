// Package viewer holds the evidence viewer state of one session: the claim
// list of a fact-check result and navigation into the source document.
package viewer

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ppiankov/reportlens/internal/model"
)

// State is the viewer's position in its state machine
type State string

const (
	StateClaimList    State = "claim-list"
	StateDocumentView State = "document-view"
	StateClosed       State = "closed"
)

// Zoom bounds
const (
	MinZoom     = 0.5
	MaxZoom     = 2.0
	ZoomStep    = 0.1
	DefaultZoom = 1.0
)

// LoadErrorMessage is shown when the document cannot be rendered
const LoadErrorMessage = "Failed to load PDF document."

var (
	ErrInvalidTransition = errors.New("invalid viewer transition")
	ErrClaimIndex        = errors.New("claim index out of range")
	ErrPageCount         = errors.New("page count must be positive")
)

// Viewer is safe for concurrent use. It never modifies the result it shows.
type Viewer struct {
	mu sync.Mutex

	state    State
	result   *model.FactCheckResult
	pdfURL   string
	expanded map[int]bool

	selected    int
	currentPage int
	numPages    int // 0 until the document reports its page count
	zoom        float64
	loading     bool
	loadError   string
}

// New returns a closed viewer
func New() *Viewer {
	return &Viewer{state: StateClosed, selected: -1}
}

// Open shows result's claims, discarding any previous viewer state
func (v *Viewer) Open(result *model.FactCheckResult, pdfURL string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.resetLocked()
	v.state = StateClaimList
	v.result = result
	v.pdfURL = pdfURL
}

// Toggle expands or collapses claim i
func (v *Viewer) Toggle(i int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireLocked(StateClaimList, "toggle"); err != nil {
		return err
	}
	if err := v.checkIndexLocked(i); err != nil {
		return err
	}
	if v.expanded[i] {
		delete(v.expanded, i)
	} else {
		v.expanded[i] = true
	}
	return nil
}

// ViewDocument opens the source document at claim i's page
func (v *Viewer) ViewDocument(i int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireLocked(StateClaimList, "view document"); err != nil {
		return err
	}
	if err := v.checkIndexLocked(i); err != nil {
		return err
	}

	page := v.result.Claims[i].Page
	if page < 1 {
		page = 1
	}

	v.state = StateDocumentView
	v.selected = i
	v.currentPage = page
	v.numPages = 0
	v.zoom = DefaultZoom
	v.loading = true
	v.loadError = ""
	return nil
}

// DocumentLoaded records a successful render of a document with numPages pages
func (v *Viewer) DocumentLoaded(numPages int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireLocked(StateDocumentView, "document loaded"); err != nil {
		return err
	}
	if numPages < 1 {
		return ErrPageCount
	}

	v.loading = false
	v.loadError = ""
	v.numPages = numPages
	if v.currentPage > numPages {
		v.currentPage = numPages
	}
	return nil
}

// DocumentFailed records a render failure. The cause is not shown to the user.
func (v *Viewer) DocumentFailed(cause error) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireLocked(StateDocumentView, "document failed"); err != nil {
		return err
	}
	v.loading = false
	v.loadError = LoadErrorMessage
	return nil
}

// NextPage advances one page; a no-op on the last page or while the page count is unknown
func (v *Viewer) NextPage() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireLocked(StateDocumentView, "next page"); err != nil {
		return err
	}
	if v.canNextLocked() {
		v.currentPage++
	}
	return nil
}

// PrevPage goes back one page; a no-op on page 1
func (v *Viewer) PrevPage() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireLocked(StateDocumentView, "previous page"); err != nil {
		return err
	}
	if v.canPrevLocked() {
		v.currentPage--
	}
	return nil
}

// CanNext reports whether the next-page control is enabled
func (v *Viewer) CanNext() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state == StateDocumentView && v.canNextLocked()
}

// CanPrev reports whether the previous-page control is enabled
func (v *Viewer) CanPrev() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state == StateDocumentView && v.canPrevLocked()
}

// ZoomIn increases the zoom by one step up to MaxZoom
func (v *Viewer) ZoomIn() error {
	return v.zoomBy(ZoomStep, "zoom in")
}

// ZoomOut decreases the zoom by one step down to MinZoom
func (v *Viewer) ZoomOut() error {
	return v.zoomBy(-ZoomStep, "zoom out")
}

func (v *Viewer) zoomBy(delta float64, action string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireLocked(StateDocumentView, action); err != nil {
		return err
	}
	v.zoom = clampZoom(v.zoom + delta)
	return nil
}

// Back returns from the document to the claim list, keeping claim expansion
func (v *Viewer) Back() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireLocked(StateDocumentView, "back"); err != nil {
		return err
	}
	v.state = StateClaimList
	v.clearDocumentLocked()
	return nil
}

// Close resets all viewer state
func (v *Viewer) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.state == StateClosed {
		return fmt.Errorf("%w: close from %s", ErrInvalidTransition, v.state)
	}
	v.resetLocked()
	return nil
}

// State returns the current state
func (v *Viewer) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Snapshot is a read-only copy of the viewer state
type Snapshot struct {
	State       State                   `json:"state"`
	Result      *model.FactCheckResult  `json:"result,omitempty"`
	Summary     *model.FactCheckSummary `json:"summary,omitempty"`
	PDFURL      string                  `json:"pdf_url,omitempty"`
	Expanded    []int                   `json:"expanded"`
	Selected    int                     `json:"selected"`
	CurrentPage int                     `json:"current_page,omitempty"`
	NumPages    int                     `json:"num_pages,omitempty"`
	Zoom        float64                 `json:"zoom,omitempty"`
	IsLoading   bool                    `json:"is_loading"`
	LoadError   string                  `json:"load_error,omitempty"`
	CanNext     bool                    `json:"can_next"`
	CanPrev     bool                    `json:"can_prev"`
	DocumentURL string                  `json:"document_url,omitempty"`
}

// Snapshot captures the current state
func (v *Viewer) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	s := Snapshot{
		State:    v.state,
		Result:   v.result,
		PDFURL:   v.pdfURL,
		Expanded: make([]int, 0, len(v.expanded)),
		Selected: v.selected,
	}
	for i := range v.expanded {
		s.Expanded = append(s.Expanded, i)
	}
	sort.Ints(s.Expanded)

	if v.result != nil {
		summary := model.Summarize(*v.result)
		s.Summary = &summary
	}

	if v.state == StateDocumentView {
		s.CurrentPage = v.currentPage
		s.NumPages = v.numPages
		s.Zoom = v.zoom
		s.IsLoading = v.loading
		s.LoadError = v.loadError
		s.CanNext = v.canNextLocked()
		s.CanPrev = v.canPrevLocked()
		if v.pdfURL != "" {
			s.DocumentURL = fmt.Sprintf("%s#page=%d", v.pdfURL, v.currentPage)
		}
	}
	return s
}

func (v *Viewer) requireLocked(want State, action string) error {
	if v.state != want {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, v.state)
	}
	return nil
}

func (v *Viewer) checkIndexLocked(i int) error {
	if v.result == nil || i < 0 || i >= len(v.result.Claims) {
		return fmt.Errorf("%w: %d", ErrClaimIndex, i)
	}
	return nil
}

func (v *Viewer) canNextLocked() bool {
	return v.numPages > 0 && v.currentPage < v.numPages
}

func (v *Viewer) canPrevLocked() bool {
	return v.currentPage > 1
}

func (v *Viewer) clearDocumentLocked() {
	v.selected = -1
	v.currentPage = 0
	v.numPages = 0
	v.zoom = 0
	v.loading = false
	v.loadError = ""
}

func (v *Viewer) resetLocked() {
	v.state = StateClosed
	v.result = nil
	v.pdfURL = ""
	v.expanded = make(map[int]bool)
	v.clearDocumentLocked()
}

func clampZoom(z float64) float64 {
	z = math.Round(z*10) / 10
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}
