package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/spigell/lead-scorer/internal/leads"
	"github.com/spigell/lead-scorer/internal/scoring"
	"github.com/spigell/lead-scorer/internal/upload"
)

type offerResponse struct {
	Message string      `json:"message,omitempty"`
	Offer   leads.Offer `json:"offer"`
}

type leadsResponse struct {
	Count int          `json:"count"`
	Leads []leads.Lead `json:"leads"`
}

type uploadResponse struct {
	Message string `json:"message"`
	upload.Result
}

type scoreResponse struct {
	Summary scoring.Summary `json:"summary"`
	Results leads.Results   `json:"results"`
}

type resultsResponse struct {
	Count   int           `json:"count"`
	Order   string        `json:"order"`
	Results leads.Results `json:"results"`
}

func (h *handler) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "lead-scorer",
		"endpoints": []string{
			"GET /health",
			"POST /offer",
			"GET /offer",
			"POST /leads/upload",
			"POST /leads",
			"GET /leads",
			"POST /score",
			"GET /results",
			"GET /results/export",
			"DELETE /session",
		},
	})
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"session": h.session.Status(),
	})
}

func (h *handler) setOffer(c *gin.Context) {
	var offer leads.Offer
	if err := c.ShouldBindJSON(&offer); err != nil {
		abortWithError(c, fmt.Errorf("%w: decoding offer: %v", leads.ErrInvalidOffer, err))
		return
	}

	saved, err := h.session.SetOffer(offer)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, offerResponse{Message: "offer saved", Offer: saved})
}

func (h *handler) getOffer(c *gin.Context) {
	offer, err := h.session.Offer()
	if err != nil {
		abortWithStatus(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, offerResponse{Offer: offer})
}

func (h *handler) uploadLeads(c *gin.Context) {
	body, err := h.uploadBody(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer body.Close()

	src, err := upload.CSV(body)
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: %w", errInvalidRequest, err))
		return
	}

	h.storeLeads(c, upload.Ingest(src))
}

func (h *handler) setLeads(c *gin.Context) {
	var raw []any
	if err := c.ShouldBindJSON(&raw); err != nil {
		abortWithError(c, fmt.Errorf("%w: expected a JSON array of lead objects: %v", errInvalidRequest, err))
		return
	}

	h.storeLeads(c, upload.Ingest(upload.JSON(raw)))
}

func (h *handler) storeLeads(c *gin.Context, res upload.Result) {
	h.session.SetLeads(res.Leads)
	c.JSON(http.StatusOK, uploadResponse{
		Message: fmt.Sprintf("uploaded %d leads", res.Accepted),
		Result:  res,
	})
}

func (h *handler) getLeads(c *gin.Context) {
	batch, err := h.session.Leads()
	if err != nil {
		abortWithStatus(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, leadsResponse{Count: len(batch), Leads: batch})
}

func (h *handler) score(c *gin.Context) {
	results, summary, err := h.scorer.Run(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, scoreResponse{Summary: summary, Results: results})
}

func (h *handler) results(c *gin.Context) {
	results, order, err := h.selectResults(c)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resultsResponse{Count: len(results), Order: order, Results: results})
}

func (h *handler) exportResults(c *gin.Context) {
	results, _, err := h.selectResults(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := leads.WriteCSV(&buf, results); err != nil {
		abortWithError(c, fmt.Errorf("writing csv: %w", err))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="scored_leads.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *handler) resetSession(c *gin.Context) {
	h.session.Reset()
	c.JSON(http.StatusOK, gin.H{"message": "session reset"})
}

// selectResults applies the ?order and ?intent query parameters.
func (h *handler) selectResults(c *gin.Context) (leads.Results, string, error) {
	order := strings.ToLower(c.DefaultQuery("order", "score"))
	if order != "score" && order != "upload" {
		return nil, "", fmt.Errorf("%w: order must be score or upload", errInvalidRequest)
	}

	var intent leads.Intent
	if raw := c.Query("intent"); raw != "" {
		parsed, err := leads.ParseIntent(raw)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", errInvalidRequest, err)
		}
		intent = parsed
	}

	results, err := h.session.Results()
	if err != nil {
		return nil, "", err
	}

	if order == "score" {
		results = results.Ranked()
	}
	if intent != "" {
		results = results.WithIntent(intent)
	}

	return results, order, nil
}

// uploadBody accepts a multipart "file" field or a raw CSV body.
func (h *handler) uploadBody(c *gin.Context) (io.ReadCloser, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("%w: multipart field \"file\" is required: %v", errInvalidRequest, err)
		}
		f, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("opening uploaded file: %w", err)
		}
		return f, nil
	}

	if c.Request.ContentLength == 0 {
		return nil, fmt.Errorf("%w: empty upload", errInvalidRequest)
	}

	var tooLarge *http.MaxBytesError
	data, err := io.ReadAll(c.Request.Body)
	if errors.As(err, &tooLarge) {
		return nil, fmt.Errorf("%w: upload exceeds %d bytes", errInvalidRequest, tooLarge.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}
