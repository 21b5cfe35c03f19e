package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pipeline_backend/models"
	"github.com/mmdatafocus/pipeline_backend/models/reports"
	"github.com/mmdatafocus/pipeline_backend/workflow"
	"github.com/xuri/excelize/v2"
)

type PipelineHandler struct {
	pipeline *workflow.Pipeline
}

func (h *PipelineHandler) ListLeads(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	leads, err := h.pipeline.ListLeads(c.Request.Context(), principal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, leads)
}

func (h *PipelineHandler) CreateLead(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var input models.NewLead
	if !bindJSON(c, &input, false) {
		return
	}
	lead, err := h.pipeline.CreateLead(c.Request.Context(), principal, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

func (h *PipelineHandler) UpdateLead(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var input models.UpdateLead
	if !bindJSON(c, &input, true) {
		return
	}
	lead, err := h.pipeline.UpdateLead(c.Request.Context(), principal, c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

func (h *PipelineHandler) DeleteLead(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	if err := h.pipeline.DeleteLead(c.Request.Context(), principal, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Lead deleted successfully"})
}

func (h *PipelineHandler) ConvertLead(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var input models.ConvertLead
	if !bindJSON(c, &input, true) {
		return
	}
	opp, err := h.pipeline.ConvertLead(c.Request.Context(), principal, c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, opp)
}

func (h *PipelineHandler) ListOpportunities(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	opportunities, err := h.pipeline.ListOpportunities(c.Request.Context(), principal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, opportunities)
}

func (h *PipelineHandler) CreateOpportunity(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var input models.NewOpportunity
	if !bindJSON(c, &input, false) {
		return
	}
	opp, err := h.pipeline.CreateOpportunity(c.Request.Context(), principal, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, opp)
}

func (h *PipelineHandler) UpdateOpportunity(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var input models.UpdateOpportunity
	if !bindJSON(c, &input, true) {
		return
	}
	opp, err := h.pipeline.UpdateOpportunity(c.Request.Context(), principal, c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, opp)
}

func (h *PipelineHandler) DeleteOpportunity(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	if err := h.pipeline.DeleteOpportunity(c.Request.Context(), principal, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Opportunity deleted successfully"})
}

func (h *PipelineHandler) DashboardStats(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	report, err := reports.GetDashboardReport(c.Request.Context(), h.pipeline, principal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *PipelineHandler) ExportLeads(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	f, err := reports.ExportLeads(c.Request.Context(), h.pipeline, principal)
	if err != nil {
		respondError(c, err)
		return
	}
	writeWorkbook(c, f, "leads.xlsx")
}

func (h *PipelineHandler) ExportOpportunities(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	f, err := reports.ExportOpportunities(c.Request.Context(), h.pipeline, principal)
	if err != nil {
		respondError(c, err)
		return
	}
	writeWorkbook(c, f, "opportunities.xlsx")
}

func writeWorkbook(c *gin.Context, f *excelize.File, filename string) {
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, reports.ExcelContentType, buf.Bytes())
}
