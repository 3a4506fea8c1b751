// Package similarity exposes ranked nearest-entity queries.
package similarity

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/similarity"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Handler handles similarity API endpoints
type Handler struct {
	service  *similarity.Service
	defaultK int
	maxK     int
	logger   ectologger.Logger
}

// NewHandler creates a new similarity handler
func NewHandler(service *similarity.Service, defaultK, maxK int, logger ectologger.Logger) *Handler {
	return &Handler{
		service:  service,
		defaultK: defaultK,
		maxK:     maxK,
		logger:   logger,
	}
}

// Register registers similarity routes
func (h *Handler) Register(g *echo.Group) {
	g.GET("/organizations/:id/similar", h.SimilarOrganizations)
	g.GET("/people/:id/similar", h.SimilarPeople)
}

// SimilarOrganizations returns the k most similar organizations
func (h *Handler) SimilarOrganizations(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "similarity.Handler.SimilarOrganizations")
	defer span.End()

	id, err := parseUUID(c)
	if err != nil {
		return err
	}
	k, weights, err := h.queryOptions(c)
	if err != nil {
		return err
	}

	result, err := h.service.SimilarOrganizations(ctx, id, k, weights)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// SimilarPeople returns the k most similar people by founder features
func (h *Handler) SimilarPeople(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "similarity.Handler.SimilarPeople")
	defer span.End()

	id, err := parseUUID(c)
	if err != nil {
		return err
	}
	k, weights, err := h.queryOptions(c)
	if err != nil {
		return err
	}

	result, err := h.service.SimilarPeople(ctx, id, k, weights)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// queryOptions parses k and the optional weights override. Weights arrive
// as a JSON object in the "weights" query parameter.
func (h *Handler) queryOptions(c echo.Context) (int, models.SimilarityWeights, error) {
	k := h.defaultK
	if kStr := c.QueryParam("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil || parsed < 1 {
			return 0, nil, httperror.NewHTTPError(http.StatusBadRequest, "k must be a positive integer")
		}
		k = parsed
	}
	if k > h.maxK {
		k = h.maxK
	}

	var weights models.SimilarityWeights
	if weightsStr := c.QueryParam("weights"); weightsStr != "" {
		if err := json.Unmarshal([]byte(weightsStr), &weights); err != nil {
			return 0, nil, httperror.NewHTTPError(http.StatusBadRequest, "weights must be a JSON object of factor weights")
		}
		for factor, weight := range weights {
			if weight < 0 {
				return 0, nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "weight for %q must be non-negative", factor)
			}
		}
	}

	return k, weights, nil
}

func parseUUID(c echo.Context) (uuid.UUID, error) {
	idStr := c.Param("id")
	if idStr == "" {
		return uuid.Nil, httperror.NewHTTPError(http.StatusBadRequest, "missing id")
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, httperror.NewHTTPError(http.StatusBadRequest, "invalid id: must be a valid UUID")
	}

	return id, nil
}
