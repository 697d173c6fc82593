package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"aijudge-backend/extraction"
	"aijudge-backend/models"
	"aijudge-backend/service"

	"github.com/gin-gonic/gin"
)

// CaseHandler handles HTTP requests for cases
type CaseHandler struct {
	caseService       *service.CaseService
	similarity        *service.SimilarityIndexer
	maxFileSize       int64
	allowedExtensions map[string]bool
}

// NewCaseHandler creates a new case handler. The similarity indexer is
// optional; without it the similar-cases endpoint reports unavailable.
func NewCaseHandler(caseService *service.CaseService, similarity *service.SimilarityIndexer) *CaseHandler {
	return &CaseHandler{
		caseService: caseService,
		similarity:  similarity,
		maxFileSize: 10 * 1024 * 1024, // 10MB
		allowedExtensions: map[string]bool{
			".pdf":  true,
			".docx": true,
			".doc":  true,
			".txt":  true,
		},
	}
}

// CreateCaseRequest represents the request body for creating a case
type CreateCaseRequest struct {
	CaseID string `json:"case_id"`
}

// CreateCase handles POST /api/cases
func (h *CaseHandler) CreateCase(c *gin.Context) {
	var req CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	result, err := h.caseService.CreateCase(c.Request.Context(), service.CreateCaseRequest{
		CaseID: req.CaseID,
	})
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    result.Case,
	})
}

// ListCases handles GET /api/cases
func (h *CaseHandler) ListCases(c *gin.Context) {
	result, err := h.caseService.ListCases(c.Request.Context())
	if err != nil {
		h.serviceError(c, err)
		return
	}

	ids := result.CaseIDs
	if ids == nil {
		ids = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"case_ids": ids,
			"count":    len(ids),
		},
	})
}

// GetCase handles GET /api/cases/:id
func (h *CaseHandler) GetCase(c *gin.Context) {
	result, err := h.caseService.GetCase(c.Request.Context(), service.GetCaseRequest{
		CaseID: c.Param("id"),
	})
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Case,
	})
}

// SubmitMaterialRequest represents the request body for typed material
type SubmitMaterialRequest struct {
	Text string `json:"text" binding:"required"`
}

// SubmitMaterial handles POST /api/cases/:id/sides/:side/material
func (h *CaseHandler) SubmitMaterial(c *gin.Context) {
	var req SubmitMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	result, err := h.caseService.SubmitMaterial(c.Request.Context(), service.SubmitMaterialRequest{
		CaseID: c.Param("id"),
		Side:   models.Side(c.Param("side")),
		Text:   req.Text,
	})
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Submission,
	})
}

// SubmitDocuments handles POST /api/cases/:id/sides/:side/documents
func (h *CaseHandler) SubmitDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILE",
				"message": "At least one file is required",
			},
		})
		return
	}

	var uploads []service.DocumentUpload
	for _, fh := range fileHeaders {
		if fh.Size > h.maxFileSize {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FILE_TOO_LARGE",
					"message": fmt.Sprintf("File %s exceeds maximum of %d bytes", fh.Filename, h.maxFileSize),
				},
			})
			return
		}

		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if !h.allowedExtensions[ext] {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNSUPPORTED_FILE_TYPE",
					"message": fmt.Sprintf("File type %s is not supported (allowed: .pdf, .docx, .doc, .txt)", ext),
				},
			})
			return
		}

		file, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FILE_OPEN_ERROR",
					"message": err.Error(),
				},
			})
			return
		}
		blob, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FILE_READ_ERROR",
					"message": err.Error(),
				},
			})
			return
		}

		uploads = append(uploads, service.DocumentUpload{
			Filename: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Blob:     blob,
		})
	}

	result, err := h.caseService.SubmitMaterial(c.Request.Context(), service.SubmitMaterialRequest{
		CaseID:    c.Param("id"),
		Side:      models.Side(c.Param("side")),
		Documents: uploads,
	})
	if err != nil {
		h.serviceError(c, err)
		return
	}

	failures := result.Failures
	if failures == nil {
		failures = []extraction.Failure{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"submission": result.Submission,
			"failures":   failures,
		},
	})
}

// RequestVerdict handles POST /api/cases/:id/verdict
func (h *CaseHandler) RequestVerdict(c *gin.Context) {
	result, err := h.caseService.RequestVerdict(c.Request.Context(), service.RequestVerdictRequest{
		CaseID: c.Param("id"),
	})
	if err != nil {
		h.serviceError(c, err)
		return
	}

	truncated := result.TruncatedSides
	if truncated == nil {
		truncated = []models.Side{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"verdict":         result.Verdict,
			"cached":          result.Cached,
			"truncated_sides": truncated,
		},
	})
}

// SubmitFollowUpRequest represents the request body for a follow-up round
type SubmitFollowUpRequest struct {
	Side     string `json:"side" binding:"required"`
	Argument string `json:"argument" binding:"required"`
}

// SubmitFollowUp handles POST /api/cases/:id/follow-ups
func (h *CaseHandler) SubmitFollowUp(c *gin.Context) {
	var req SubmitFollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	result, err := h.caseService.SubmitFollowUp(c.Request.Context(), service.SubmitFollowUpRequest{
		CaseID:   c.Param("id"),
		Side:     models.Side(req.Side),
		Argument: req.Argument,
	})
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"round":     result.Round,
			"remaining": result.Remaining,
		},
	})
}

// CloseCase handles POST /api/cases/:id/close
func (h *CaseHandler) CloseCase(c *gin.Context) {
	result, err := h.caseService.CloseCase(c.Request.Context(), service.CloseCaseRequest{
		CaseID: c.Param("id"),
	})
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Case,
	})
}

// SimilarCases handles GET /api/cases/:id/similar
func (h *CaseHandler) SimilarCases(c *gin.Context) {
	if h.similarity == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SIMILARITY_UNAVAILABLE",
				"message": "Case similarity index is not configured",
			},
		})
		return
	}

	limit := 5
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 50 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_LIMIT",
					"message": "limit must be an integer between 1 and 50",
				},
			})
			return
		}
		limit = parsed
	}

	matches, err := h.similarity.SimilarCases(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		if errors.Is(err, service.ErrCaseNotIndexed) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "CASE_NOT_INDEXED",
					"message": err.Error(),
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SEARCH_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	if matches == nil {
		matches = []models.CaseMatch{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"matches": matches,
			"count":   len(matches),
		},
	})
}

// serviceError maps case service errors onto HTTP statuses and stable
// error codes
func (h *CaseHandler) serviceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"

	switch {
	case errors.Is(err, service.ErrCaseNotFound):
		status, code = http.StatusNotFound, "CASE_NOT_FOUND"
	case errors.Is(err, service.ErrDuplicateCase):
		status, code = http.StatusConflict, "CASE_EXISTS"
	case errors.Is(err, service.ErrInvalidSide):
		status, code = http.StatusBadRequest, "INVALID_SIDE"
	case errors.Is(err, service.ErrInvalidState):
		status, code = http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, service.ErrIncompleteCase):
		status, code = http.StatusBadRequest, "INCOMPLETE_CASE"
	case errors.Is(err, service.ErrFollowUpLimit):
		status, code = http.StatusConflict, "FOLLOW_UP_LIMIT"
	case errors.Is(err, service.ErrEmptyArgument):
		status, code = http.StatusBadRequest, "EMPTY_ARGUMENT"
	case errors.Is(err, service.ErrGenerationFailed):
		status, code = http.StatusBadGateway, "GENERATION_FAILED"
	}

	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": err.Error(),
		},
	})
}
