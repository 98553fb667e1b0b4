package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"fonreal/internal/chart"
	"fonreal/internal/log"
	"fonreal/internal/pipeline"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.loader.Loaded() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("dataset not loaded"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// run loads the table and executes the pipeline for the request's query.
// It answers 503 itself when the dataset is unavailable.
func (s *Server) run(w http.ResponseWriter, r *http.Request) (pipeline.Result, bool) {
	ctx := r.Context()
	logger := s.requestLogger(ctx)

	table, err := s.loader.Load(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Dataset load failed", log.FieldError, err, log.FieldPath, r.URL.Path)
		writeError(w, http.StatusServiceUnavailable, "dataset unavailable")
		return pipeline.Result{}, false
	}

	sel := ParseSelection(r.URL.Query())
	res := s.pipeline.Run(table, sel)
	logger.DebugContext(ctx, "Pipeline run",
		log.NewFields().
			WithOperation(log.OpRender).
			WithSelection(res.Selection.Unit, res.Selection.Items, res.Selection.Jurisdictions).
			ToSlice()...)
	return res, true
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	res, ok := s.run(w, r)
	if !ok {
		return
	}
	if err := writeJSON(w, http.StatusOK, res); err != nil {
		s.requestLogger(r.Context()).ErrorContext(r.Context(), "Chart response failed", log.FieldError, err)
	}
}

func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	res, ok := s.run(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := chart.RenderPNG(&buf, res.Chart); err != nil {
		s.requestLogger(r.Context()).ErrorContext(r.Context(), "PNG render failed", log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type refreshResponse struct {
	Invalidated bool   `json:"invalidated"`
	MessageID   string `json:"message_id,omitempty"`
}

// handleRefresh drops the cached table and, when a publisher is wired,
// asks the import worker for a new snapshot.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := s.requestLogger(ctx)

	s.loader.Invalidate()
	resp := refreshResponse{Invalidated: true}

	if s.publisher != nil {
		msg, err := s.publisher.PublishRefresh(ctx, "manual")
		if err != nil {
			logger.ErrorContext(ctx, "Refresh publish failed", log.FieldError, err)
			writeError(w, http.StatusBadGateway, "cache invalidated but refresh request could not be queued")
			return
		}
		resp.MessageID = msg.ID
	}

	logger.InfoContext(ctx, "Dataset cache invalidated", log.FieldMessageID, resp.MessageID)
	_ = writeJSON(w, http.StatusAccepted, resp)
}

type option struct {
	Value    string
	Label    string
	Selected bool
}

// unavailableUnit labels the placeholder shown when the requested unit is
// not in the dataset.
const unavailableUnit = "(unit not available)"

type indexData struct {
	Title         string
	Units         []option
	Items         []option
	Jurisdictions []option
	ChartJSON     string
	PNGURL        string
	Empty         bool
}

func markSelected(values, selected []string) []option {
	chosen := make(map[string]bool, len(selected))
	for _, s := range selected {
		chosen[s] = true
	}
	out := make([]option, len(values))
	for i, v := range values {
		out[i] = option{Value: v, Selected: chosen[v]}
	}
	return out
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := s.requestLogger(ctx)
	if s.templates == nil {
		logger.ErrorContext(ctx, "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	res, ok := s.run(w, r)
	if !ok {
		return
	}
	chartJSON, err := json.Marshal(res.Chart)
	if err != nil {
		logger.ErrorContext(ctx, "Chart encoding failed", log.FieldError, err)
		http.Error(w, "chart encoding failed", http.StatusInternalServerError)
		return
	}

	units := markSelected(res.Options.Units, []string{res.Selection.Unit})
	if res.Selection.Unit == "" && len(units) > 0 {
		units = append([]option{{Label: unavailableUnit, Selected: true}}, units...)
	}
	link := LinkSelection(ParseSelection(r.URL.Query()), res.Selection)

	data := indexData{
		Title:         chart.Banner,
		Units:         units,
		Items:         markSelected(res.Options.Items, res.Selection.Items),
		Jurisdictions: markSelected(res.Options.Jurisdictions, res.Selection.Jurisdictions),
		ChartJSON:     string(chartJSON),
		PNGURL:        "/chart.png?" + SelectionQuery(link).Encode(),
		Empty:         len(res.Chart.Data) == 0,
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		logger.ErrorContext(ctx, "Index template execution failed", log.FieldError, err, "template", "index.html")
		http.Error(w, "template execution failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
