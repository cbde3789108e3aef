package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonathanmorav/unified-dashboard/internal/domain/event"
	journeydomain "github.com/jonathanmorav/unified-dashboard/internal/domain/journey"
)

// ListEvents returns recent webhook events, optionally filtered by state.
func (r *Router) ListEvents(c *gin.Context) {
	state := event.State(c.Query("state"))
	limit := queryInt(c, "limit", 100)

	items, err := r.events.List(c.Request.Context(), state, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": items, "count": len(items)})
}

// QueueStatus reports whether the retry loop is running plus event
// counts by state.
func (r *Router) QueueStatus(c *gin.Context) {
	status, err := r.queue.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// StartQueue launches the retry loop. Idempotent.
func (r *Router) StartQueue(c *gin.Context) {
	r.queue.Start(context.Background())
	c.JSON(http.StatusOK, gin.H{"active": true})
}

// StopQueue halts the retry loop after the current batch. Idempotent.
func (r *Router) StopQueue(c *gin.Context) {
	r.queue.Stop()
	c.JSON(http.StatusOK, gin.H{"active": false})
}

// ListJourneys returns journey instances by status.
func (r *Router) ListJourneys(c *gin.Context) {
	statuses := []journeydomain.Status{
		journeydomain.StatusActive,
		journeydomain.StatusStuck,
	}
	if raw, ok := c.GetQueryArray("status"); ok {
		statuses = statuses[:0]
		for _, s := range raw {
			statuses = append(statuses, journeydomain.Status(s))
		}
	}
	limit := queryInt(c, "limit", 100)

	items, err := r.journeys.ListByStatus(c.Request.Context(), statuses, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	type journeyView struct {
		*journeydomain.Instance
		RecommendedAction string `json:"recommended_action,omitempty"`
	}
	views := make([]journeyView, 0, len(items))
	for _, inst := range items {
		view := journeyView{Instance: inst}
		if inst.Status == journeydomain.StatusStuck {
			view.RecommendedAction = journeydomain.RecommendAction(inst)
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, gin.H{"journeys": views, "count": len(views)})
}

// GetJourney returns one instance with its full step history.
func (r *Router) GetJourney(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid journey id"})
		return
	}

	inst, err := r.journeys.FindByID(c.Request.Context(), id)
	if err != nil {
		if err == journeydomain.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "journey not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	steps, err := r.journeys.ListSteps(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"journey": inst, "steps": steps})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
