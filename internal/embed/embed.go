// Package embed serves approved policies as standalone HTML pages meant to be
// loaded in an iframe on the customer's site.
package embed

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"

	"policybolt/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// PolicySource resolves the policy shown by an embed route. Both lookups
// return nil when there is no active policy.
type PolicySource interface {
	ActiveForProject(ctx context.Context, projectID string) (*model.Policy, error)
	ActivePolicy(ctx context.Context, policyID string) (*model.Policy, error)
}

type Handler struct {
	policies PolicySource
	md       goldmark.Markdown
	logger   zerolog.Logger
}

func NewHandler(policies PolicySource, logger zerolog.Logger) *Handler {
	return &Handler{
		policies: policies,
		// Raw HTML in the markdown is dropped since goldmark runs without html.WithUnsafe.
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger: logger.With().Str("handler", "embed").Logger(),
	}
}

// Routes mounts the embed pages on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/embed/projects/{projectId}", h.ProjectPolicy)
	r.Get("/embed/policies/{policyId}", h.Policy)
}

func (h *Handler) ProjectPolicy(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectId")
	p, err := h.policies.ActiveForProject(r.Context(), projectID)
	if err != nil {
		h.logger.Error().Err(err).Str("project_id", projectID).Msg("Failed to load active policy")
		h.write(w, http.StatusInternalServerError, unavailablePage())
		return
	}
	h.serve(w, p)
}

func (h *Handler) Policy(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "policyId")
	p, err := h.policies.ActivePolicy(r.Context(), policyID)
	if err != nil {
		h.logger.Error().Err(err).Str("policy_id", policyID).Msg("Failed to load policy")
		h.write(w, http.StatusInternalServerError, unavailablePage())
		return
	}
	h.serve(w, p)
}

func (h *Handler) serve(w http.ResponseWriter, p *model.Policy) {
	if p == nil {
		h.write(w, http.StatusNotFound, unavailablePage())
		return
	}
	body, err := h.Render(p.Content)
	if err != nil {
		h.logger.Error().Err(err).Str("policy_id", p.ID).Msg("Failed to render policy markdown")
		h.write(w, http.StatusInternalServerError, unavailablePage())
		return
	}
	h.write(w, http.StatusOK, page{Title: p.Title, Version: p.Version, Body: body})
}

// Render converts policy markdown to HTML.
func (h *Handler) Render(markdown string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func (h *Handler) write(w http.ResponseWriter, status int, p page) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		h.logger.Error().Err(err).Msg("Failed to execute embed template")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "frame-ancestors *")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
