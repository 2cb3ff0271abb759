package handler

import (
	"errors"
	"fmt"
	"net/http"

	apprinting "github.com/erp/labelprint/internal/application/printing"
	"github.com/erp/labelprint/internal/domain/printing"
	"github.com/erp/labelprint/internal/infrastructure/printer"
	"github.com/erp/labelprint/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PrinterHandler exposes printer settings, pending previews and the print
// agent websocket
type PrinterHandler struct {
	BaseHandler
	settings *apprinting.SettingsStore
	previews *printer.PreviewSink
	agents   *printer.AgentHub
	logger   *zap.Logger
}

// NewPrinterHandler creates a new PrinterHandler. previews and agents may be nil.
func NewPrinterHandler(settings *apprinting.SettingsStore, previews *printer.PreviewSink, agents *printer.AgentHub, logger *zap.Logger) *PrinterHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PrinterHandler{settings: settings, previews: previews, agents: agents, logger: logger}
}

type settingsResponse struct {
	Settings printing.PrinterSettings `json:"settings"`
	Version  int                      `json:"version"`
}

// GetSettings godoc
//
//	@ID				getPrinterSettings
//
//	@Summary		Get printer settings
//	@Description	Return the current printer settings and their version
//	@Tags			printers
//	@Produce		json
//	@Success		200	{object}	dto.Response
//	@Failure		500	{object}	dto.Response
//	@Router			/printers/settings [get]
func (h *PrinterHandler) GetSettings(c *gin.Context) {
	h.Success(c, settingsResponse{Settings: h.settings.Snapshot(), Version: h.settings.Version()})
}

// UpdateSettings godoc
//
//	@ID				updatePrinterSettings
//
//	@Summary		Update printer settings
//	@Description	Change the printer settings. Absent fields are kept and running jobs keep the snapshot they started with.
//	@Tags			printers
//	@Accept			json
//	@Produce		json
//	@Param			request	body	dto.UpdatePrinterSettingsRequest	true	"Settings changes"
//	@Success		200	{object}	dto.Response
//	@Failure		400	{object}	dto.Response
//	@Failure		422	{object}	dto.Response
//	@Router			/printers/settings [put]
func (h *PrinterHandler) UpdateSettings(c *gin.Context) {
	var req dto.UpdatePrinterSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if req.Destination != nil && *req.Destination != "" {
		if _, err := printer.ParseDestination(*req.Destination); err != nil {
			h.Error(c, http.StatusUnprocessableEntity, dto.ErrCodeValidation, err.Error())
			return
		}
	}
	updated, err := h.settings.Update(func(s *printing.PrinterSettings) {
		if req.Destination != nil {
			s.Destination = *req.Destination
		}
		if req.AutoPrint != nil {
			s.AutoPrint = *req.AutoPrint
		}
		if req.StartPosition != nil {
			s.StartPosition = *req.StartPosition
		}
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.logger.Info("printer settings updated",
		zap.String("destination", updated.Destination),
		zap.Bool("auto_print", updated.AutoPrint),
		zap.Int("start_position", updated.StartPosition))
	h.Success(c, settingsResponse{Settings: updated, Version: h.settings.Version()})
}

// ListPreviews godoc
//
//	@ID				listPreviews
//
//	@Summary		List pending previews
//	@Description	List the rendered documents waiting for confirmation
//	@Tags			previews
//	@Produce		json
//	@Success		200	{object}	dto.Response
//	@Failure		500	{object}	dto.Response
//	@Router			/previews [get]
func (h *PrinterHandler) ListPreviews(c *gin.Context) {
	if h.previews == nil {
		h.Success(c, []printer.Preview{})
		return
	}
	h.Success(c, h.previews.Pending())
}

// PreviewDocument godoc
//
//	@ID				getPreviewDocument
//
//	@Summary		Get preview document
//	@Description	Return the rendered document of a pending preview
//	@Tags			previews
//	@Produce		application/pdf
//	@Param			id	path	string	true	"Preview ID (UUID)"
//	@Success		200	{file}	binary
//	@Failure		400	{object}	dto.Response
//	@Failure		404	{object}	dto.Response
//	@Router			/previews/{id}/document [get]
func (h *PrinterHandler) PreviewDocument(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	if h.previews == nil {
		h.NotFound(c, "Preview not found")
		return
	}
	doc, found := h.previews.Document(id)
	if !found {
		h.NotFound(c, "Preview not found")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=\"labels-%s.pdf\"", id))
	c.Data(http.StatusOK, doc.ContentType, doc.Data)
}

// ConfirmPreview godoc
//
//	@ID				confirmPreview
//
//	@Summary		Confirm a preview
//	@Description	Print a pending preview on its destination
//	@Tags			previews
//	@Produce		json
//	@Param			id	path	string	true	"Preview ID (UUID)"
//	@Success		200	{object}	dto.Response
//	@Failure		400	{object}	dto.Response
//	@Failure		404	{object}	dto.Response
//	@Failure		503	{object}	dto.Response
//	@Router			/previews/{id}/confirm [post]
func (h *PrinterHandler) ConfirmPreview(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	if h.previews == nil {
		h.NotFound(c, "Preview not found")
		return
	}
	err := h.previews.Confirm(c.Request.Context(), id)
	switch {
	case errors.Is(err, printer.ErrPreviewNotFound):
		h.NotFound(c, "Preview not found")
	case err != nil:
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodePrinterUnavailable), dto.ErrCodePrinterUnavailable, err.Error())
	default:
		h.Success(c, gin.H{"id": id, "printed": true})
	}
}

// CancelPreview godoc
//
//	@ID				cancelPreview
//
//	@Summary		Cancel a preview
//	@Description	Dismiss a pending preview without printing it
//	@Tags			previews
//	@Produce		json
//	@Param			id	path	string	true	"Preview ID (UUID)"
//	@Success		200	{object}	dto.Response
//	@Failure		400	{object}	dto.Response
//	@Failure		404	{object}	dto.Response
//	@Router			/previews/{id}/cancel [post]
func (h *PrinterHandler) CancelPreview(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	if h.previews == nil || errors.Is(h.previews.Cancel(id), printer.ErrPreviewNotFound) {
		h.NotFound(c, "Preview not found")
		return
	}
	h.Success(c, gin.H{"id": id, "cancelled": true})
}

// ListAgents godoc
//
//	@ID				listPrintAgents
//
//	@Summary		List print agents
//	@Description	Return the keys of connected print agents
//	@Tags			printers
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=[]string}
//	@Failure		500	{object}	dto.Response
//	@Router			/printers/agents [get]
func (h *PrinterHandler) ListAgents(c *gin.Context) {
	if h.agents == nil {
		h.Success(c, []string{})
		return
	}
	h.Success(c, h.agents.Connected())
}

// AgentSocket godoc
//
//	@ID				printAgentSocket
//
//	@Summary		Print agent websocket
//	@Description	Upgrade to the websocket print agents connect to
//	@Tags			agents
//	@Produce		json
//	@Param			X-Api-Key	header	string	false	"Agent API key"
//	@Success		101	{string}	string	"Switching Protocols"
//	@Failure		401	{string}	string	"invalid api key"
//	@Failure		503	{object}	dto.Response
//	@Router			/agents/ws [get]
func (h *PrinterHandler) AgentSocket(c *gin.Context) {
	if h.agents == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Print agents are not enabled")
		return
	}
	h.agents.ServeHTTP(c.Writer, c.Request)
}
