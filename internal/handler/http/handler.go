package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	_ "github.com/robosms/twilio-sms-service/docs"
	"github.com/robosms/twilio-sms-service/internal/domain"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// CommandService is the single generic dispatch entry point.
type CommandService interface {
	Dispatch(ctx context.Context, raw map[string]any) (domain.Result, error)
}

// Reconfigurer reloads the configuration and swaps the active snapshot.
type Reconfigurer interface {
	Reconfigure() error
}

type Handler struct {
	commands     CommandService
	reconfigurer Reconfigurer
	server       *http.Server
}

// @title Twilio SMS Service API
// @version 1.0
// @description Generic command dispatch for the Twilio messaging adapter
// @host localhost:8080
// @BasePath /
func NewHttpHandler(addr string, commands CommandService, reconfigurer Reconfigurer) *Handler {
	h := &Handler{
		commands:     commands,
		reconfigurer: reconfigurer,
	}

	// create router
	router := gin.Default()

	// register routes
	router.POST("/command", h.doCommand)
	router.POST("/reconfigure", h.reconfigure)
	router.GET("/healthz", h.health)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// create http server
	h.server = &http.Server{
		Addr:    addr,
		Handler: router.Handler(),
	}

	return h
}

func (h *Handler) Run() error {
	return h.server.ListenAndServe()
}

func (h *Handler) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// DoCommand godoc
// @Summary Dispatch a generic command
// @Description Accepts a key-value command ("send" or "get") and returns a key-value result
// @Tags Commands
// @Accept json
// @Produce json
// @Success 200 {object} domain.Result
// @Failure 500 {object} domain.Result
// @Router /command [post]
func (h *Handler) doCommand(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, domain.ErrorResult("request body must be a json object"))
		return
	}

	result, err := h.commands.Dispatch(c.Request.Context(), raw)
	if err != nil {
		c.JSON(http.StatusInternalServerError, domain.ErrorResult(err.Error()))
		return
	}

	c.JSON(http.StatusOK, result)
}

// Reconfigure godoc
// @Summary Reload configuration
// @Description Rebuilds the active configuration snapshot and restarts the telemetry sync loop
// @Tags Control
// @Success 200
// @Failure 500 {object} domain.Result
// @Router /reconfigure [post]
func (h *Handler) reconfigure(c *gin.Context) {
	if err := h.reconfigurer.Reconfigure(); err != nil {
		c.JSON(http.StatusInternalServerError, domain.ErrorResult(err.Error()))
		return
	}
	c.Status(http.StatusOK)
}

// Health godoc
// @Summary Liveness probe
// @Tags Control
// @Success 200
// @Router /healthz [get]
func (h *Handler) health(c *gin.Context) {
	c.Status(http.StatusOK)
}
