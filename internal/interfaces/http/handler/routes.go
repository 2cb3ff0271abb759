package handler

import (
	"github.com/erp/labelprint/internal/interfaces/http/router"
)

// LabelJobRoutes creates the route groups for label jobs and the layout preview
func LabelJobRoutes(h *LabelJobHandler) []*router.DomainGroup {
	jobs := router.NewDomainGroup("label-jobs", "/label-jobs")
	jobs.POST("", h.Create)
	jobs.GET("", h.List)
	jobs.GET("/:id", h.Get)
	jobs.DELETE("/:id", h.Cancel)
	jobs.GET("/:id/events", h.Events)
	jobs.POST("/:id/reprint", h.Reprint)

	layout := router.NewDomainGroup("layout", "/layout")
	layout.GET("", h.Layout)

	return []*router.DomainGroup{jobs, layout}
}

// PrinterRoutes creates the route groups for printers, previews and agents
func PrinterRoutes(h *PrinterHandler) []*router.DomainGroup {
	printers := router.NewDomainGroup("printers", "/printers")
	printers.GET("/settings", h.GetSettings)
	printers.PUT("/settings", h.UpdateSettings)
	printers.GET("/agents", h.ListAgents)

	previews := router.NewDomainGroup("previews", "/previews")
	previews.GET("", h.ListPreviews)
	previews.GET("/:id/document", h.PreviewDocument)
	previews.POST("/:id/confirm", h.ConfirmPreview)
	previews.POST("/:id/cancel", h.CancelPreview)

	agents := router.NewDomainGroup("agents", "/agents")
	agents.GET("/ws", h.AgentSocket)

	return []*router.DomainGroup{printers, previews, agents}
}
