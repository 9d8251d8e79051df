package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"onboarding-forms/internal/formschema"
	"onboarding-forms/internal/importer"
	"onboarding-forms/internal/ledger"
	"onboarding-forms/internal/patch"
	"onboarding-forms/internal/resolver"
)

// snippetRequest is the body of the snippet endpoints. An empty kind is
// inferred from the fragment.
type snippetRequest struct {
	Kind            string          `json:"kind"`
	Fragment        json.RawMessage `json:"fragment" binding:"required"`
	ApplyTo         string          `json:"applyTo"`
	TargetSectionID string          `json:"targetSectionId"`
}

func (r snippetRequest) snippet() (patch.Snippet, error) {
	var (
		kind patch.Kind
		err  error
	)
	if r.Kind != "" {
		kind, err = patch.ParseKind(r.Kind)
	} else {
		kind, err = importer.InferKind(r.Fragment)
		if err != nil {
			err = badRequest(err)
		}
	}
	if err != nil {
		return patch.Snippet{}, err
	}
	return patch.Snippet{Kind: kind, Fragment: r.Fragment, Target: patch.Target{SectionID: r.TargetSectionID}}, nil
}

type reorderRequest struct {
	Collection string `json:"collection" binding:"required"`
	ParentID   string `json:"parentId"`
	From       *int   `json:"from" binding:"required"`
	To         *int   `json:"to" binding:"required"`
}

func (r reorderRequest) collection() (patch.Collection, error) {
	kind, err := patch.ParseCollectionKind(r.Collection)
	if err != nil {
		return patch.Collection{}, err
	}
	return patch.Collection{Kind: kind, ParentID: r.ParentID}, nil
}

type valuesRequest struct {
	Stage  string         `json:"stage"`
	Values map[string]any `json:"values"`
}

type resolveResponse struct {
	Stage        formschema.Stage                `json:"stage"`
	KnownStage   bool                            `json:"knownStage"`
	Visible      []string                        `json:"visible"`
	Required     []string                        `json:"required"`
	NextRequired map[string]formschema.Stage     `json:"nextRequired"`
	Groups       map[string]resolver.GroupStatus `json:"groups"`
	Missing      []resolver.Gap                  `json:"missing"`
	Complete     bool                            `json:"complete"`
}

func bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return badRequest(fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.svc.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errorBody{Code: CodeUnavailable, Message: err.Error()}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListProducts(c *gin.Context) {
	ids, err := s.svc.Products(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": ids})
}

func (s *Server) handleGetConfiguration(c *gin.Context) {
	loaded, err := s.svc.Load(c.Request.Context(), c.Param("productId"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, loaded)
}

// importFormat picks the format from ?format=, then Content-Type, then the
// body itself.
func importFormat(c *gin.Context, data []byte) (importer.Format, error) {
	if raw := c.Query("format"); raw != "" {
		f, err := importer.ParseFormat(raw)
		if err != nil {
			return "", badRequest(err)
		}
		return f, nil
	}
	ct := c.ContentType()
	switch {
	case strings.Contains(ct, "yaml"):
		return importer.FormatYAML, nil
	case strings.Contains(ct, "csv"):
		return importer.FormatCSV, nil
	case strings.Contains(ct, "json"):
		return importer.FormatJSON, nil
	}
	return importer.DetectFormat("", data), nil
}

func (s *Server) handleImportConfiguration(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.abortWithError(c, badRequest(fmt.Errorf("failed to read body: %w", err)))
		return
	}
	format, err := importFormat(c, data)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	res, err := s.svc.Import(c.Request.Context(), c.Param("productId"), format, data, author(c), c.Query("notes"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleExportConfiguration(c *gin.Context) {
	productID := c.Param("productId")
	data, err := s.svc.Export(c.Request.Context(), productID, author(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", productID+".json"))
	c.Data(http.StatusOK, "application/json", data)
}

func (s *Server) handleApplySnippet(c *gin.Context) {
	var req snippetRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}
	if strings.EqualFold(req.ApplyTo, "all") {
		s.broadcast(c, req)
		return
	}
	snippet, err := req.snippet()
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	res, err := s.svc.ApplySnippet(c.Request.Context(), c.Param("productId"), snippet, author(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleBroadcastSnippet(c *gin.Context) {
	var req snippetRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.broadcast(c, req)
}

// broadcast answers 200 even when some products failed; the report lists
// every product's status.
func (s *Server) broadcast(c *gin.Context, req snippetRequest) {
	snippet, err := req.snippet()
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	report, err := s.svc.Broadcast(c.Request.Context(), snippet, author(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleReorder(c *gin.Context) {
	var req reorderRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}
	coll, err := req.collection()
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	res, err := s.svc.Reorder(c.Request.Context(), c.Param("productId"), coll, *req.From, *req.To, author(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handlePromoteField(c *gin.Context) {
	res, err := s.svc.Promote(c.Request.Context(), c.Param("productId"), c.Param("fieldId"), author(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleEdit(c *gin.Context) {
	var e patch.Edit
	if err := bindJSON(c, &e); err != nil {
		s.abortWithError(c, err)
		return
	}
	op, err := patch.ParseOp(string(e.Op))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	e.Op = op
	res, err := s.svc.Edit(c.Request.Context(), c.Param("productId"), e, author(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleDedupe(c *gin.Context) {
	drep, saved, err := s.svc.Dedupe(c.Request.Context(), c.Param("productId"), author(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dedupe": drep, "saved": saved})
}

func (s *Server) handleListVersions(c *gin.Context) {
	history, err := s.svc.History(c.Request.Context(), c.Param("productId"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"versions":  history,
		"anomalies": ledger.CheckIntegrity(history),
	})
}

func (s *Server) handleRestoreVersion(c *gin.Context) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		s.abortWithError(c, badRequest(fmt.Errorf("version must be a positive integer, got %q", c.Param("version"))))
		return
	}
	save := c.Query("save") == "true"
	doc, saved, err := s.svc.Restore(c.Request.Context(), c.Param("productId"), version, save, author(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if saved != nil {
		c.JSON(http.StatusOK, saved)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": doc, "restoredFrom": version})
}

func (s *Server) handleResolve(c *gin.Context) {
	var req valuesRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}
	stage := formschema.ParseStage(req.Stage)
	values := resolver.Values(req.Values)
	res, err := s.svc.Resolve(c.Request.Context(), c.Param("productId"), stage, values)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	missing := res.Missing(values)
	c.JSON(http.StatusOK, resolveResponse{
		Stage:        res.Stage,
		KnownStage:   res.Stage.Known(),
		Visible:      res.VisibleIDs(),
		Required:     res.RequiredIDs(),
		NextRequired: res.NextRequired,
		Groups:       res.Groups,
		Missing:      missing,
		Complete:     len(missing) == 0,
	})
}

func (s *Server) handleRuleContext(c *gin.Context) {
	var req valuesRequest
	if err := bindJSON(c, &req); err != nil {
		s.abortWithError(c, err)
		return
	}
	ctx := c.Request.Context()
	productID := c.Param("productId")
	if c.Query("assess") == "true" {
		a, err := s.svc.Assess(ctx, productID, req.Values)
		if err != nil {
			s.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
		return
	}
	rc, assignments, err := s.svc.RuleContext(ctx, productID, req.Values)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"context": rc, "assignments": assignments})
}

func (s *Server) handleListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": s.svc.Templates()})
}

func (s *Server) handleApplyTemplate(c *gin.Context) {
	res, err := s.svc.ApplyTemplate(c.Request.Context(), c.Param("productId"), c.Param("name"), author(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
