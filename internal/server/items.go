package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/kode4food/swfcatalog/pkg/api"
	"github.com/kode4food/swfcatalog/pkg/log"
)

const processesPath = "/management/processes"

func (s *Server) listItems(c *gin.Context) {
	status, body, err := s.fetch(
		c.Request.Context(), s.runtimeURL+processesPath,
	)
	if err != nil {
		s.logger.Error("Failed to list workflows", log.Error(err))
		upstreamError(c, err)
		return
	}
	if status != http.StatusOK {
		upstreamError(c, fmt.Errorf("%w: HTTP %d", ErrUpstreamStatus, status))
		return
	}

	var ids []api.WorkflowID
	if err := json.Unmarshal(body, &ids); err != nil {
		upstreamError(c, fmt.Errorf("%w: %w", ErrInvalidProcessList, err))
		return
	}

	items := make([]*api.WorkflowItem, 0, len(ids))
	for _, id := range ids {
		items = append(items, &api.WorkflowItem{
			ID:    id,
			Title: string(id),
		})
	}
	c.JSON(http.StatusOK, api.WorkflowListResult{
		Items:      items,
		TotalCount: len(items),
	})
}

func (s *Server) getItem(c *gin.Context) {
	id := api.WorkflowID(c.Param("swfId"))
	target := s.runtimeURL + processesPath + "/" +
		url.PathEscape(string(id)) + "/source"

	status, body, err := s.fetch(c.Request.Context(), target)
	if err != nil {
		s.logger.Error("Failed to fetch workflow source",
			log.WorkflowID(id), log.Error(err))
		upstreamError(c, err)
		return
	}

	switch {
	case status == http.StatusNotFound:
		c.JSON(http.StatusNotFound, api.ErrorResponse{
			Error:  fmt.Sprintf("Workflow not found: %s", id),
			Status: http.StatusNotFound,
		})
		return
	case status != http.StatusOK:
		upstreamError(c, fmt.Errorf("%w: HTTP %d", ErrUpstreamStatus, status))
		return
	}

	c.JSON(http.StatusOK, api.WorkflowItem{
		ID:         id,
		Title:      gjson.GetBytes(body, "name").String(),
		Definition: string(body),
	})
}
