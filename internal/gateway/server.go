package gateway

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/yapper/campaign/internal/client"
	"github.com/yapper/campaign/internal/config"
	"github.com/yapper/campaign/internal/model"
	"github.com/yapper/campaign/internal/workflow"
	"github.com/yapper/campaign/pkg/response"
)

// CampaignHandler exposes the campaign workflow over HTTP for the local
// frontend.
type CampaignHandler struct {
	orc       *workflow.Orchestrator
	yapper    *client.Client
	validator *validator.Validate
	extract   config.ExtractConfig
}

func NewCampaignHandler(orc *workflow.Orchestrator, yapper *client.Client, v *validator.Validate, extract config.ExtractConfig) *CampaignHandler {
	return &CampaignHandler{
		orc:       orc,
		yapper:    yapper,
		validator: v,
		extract:   extract,
	}
}

// NewServer assembles the fiber app: middleware, campaign routes, remote
// proxies, and the WebSocket endpoint.
func NewServer(h *CampaignHandler, hub *Hub) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	app.Get("/", h.Info)
	app.Get("/health", h.Health)

	campaign := app.Group("/campaign")
	campaign.Get("/", h.GetCampaign)
	campaign.Post("/url", h.SubmitURL)
	campaign.Post("/highlights", h.SelectHighlights)
	campaign.Post("/upload", h.UploadReels)
	campaign.Post("/dm", h.SendDMs)
	campaign.Post("/ack", h.Acknowledge)
	campaign.Post("/back", h.Back)
	campaign.Post("/new", h.StartNew)
	campaign.Post("/stream/restart", h.RestartStream)
	campaign.Get("/job", h.JobSnapshot)
	campaign.Get("/artifacts", h.Artifacts)

	// Read-only views onto the remote job queue
	app.Get("/jobs", h.Jobs)
	app.Get("/queue", h.Queue)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/campaign", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c)
	}))

	return app
}

// Info handles GET /
func (h *CampaignHandler) Info(c *fiber.Ctx) error {
	state := h.orc.State()
	return response.OK(c, fiber.Map{
		"service": "yapper-campaign",
		"stage":   state.Stage,
	})
}

// Health handles GET /health. The remote API being down is reported, not
// treated as a gateway failure.
func (h *CampaignHandler) Health(c *fiber.Ctx) error {
	remote := "ok"
	if _, err := h.yapper.Health(c.Context()); err != nil {
		remote = "unreachable"
	}
	return response.OK(c, fiber.Map{
		"status": "ok",
		"remote": remote,
	})
}

// GetCampaign handles GET /campaign
func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	return response.OK(c, h.orc.State())
}

// SubmitURL handles POST /campaign/url
func (h *CampaignHandler) SubmitURL(c *fiber.Ctx) error {
	var req model.SubmitURLRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	lang := req.SubtitleLanguage
	if lang == "" {
		lang = h.extract.SubtitleLanguage
	}
	noAutoSubs := req.NoAutoSubs || h.extract.NoAutoSubs

	if err := h.orc.SubmitURL(c.Context(), req.VideoURL, lang, noAutoSubs); err != nil {
		return h.fail(c, err)
	}
	return response.OK(c, h.orc.State())
}

// SelectHighlights handles POST /campaign/highlights
func (h *CampaignHandler) SelectHighlights(c *fiber.Ctx) error {
	var req model.SelectHighlightsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := h.orc.StartGeneration(c.Context(), req.HighlightIDs); err != nil {
		return h.fail(c, err)
	}
	return response.Accepted(c, h.orc.State())
}

// UploadReels handles POST /campaign/upload
func (h *CampaignHandler) UploadReels(c *fiber.Ctx) error {
	if err := h.orc.UploadReels(c.Context()); err != nil {
		return h.fail(c, err)
	}
	return response.OK(c, h.orc.State())
}

// SendDMs handles POST /campaign/dm
func (h *CampaignHandler) SendDMs(c *fiber.Ctx) error {
	if err := h.orc.SendFollowerDMs(c.Context()); err != nil {
		return h.fail(c, err)
	}
	return response.OK(c, h.orc.State())
}

// Acknowledge handles POST /campaign/ack
func (h *CampaignHandler) Acknowledge(c *fiber.Ctx) error {
	if err := h.orc.Acknowledge(); err != nil {
		return h.fail(c, err)
	}
	return response.OK(c, h.orc.State())
}

// Back handles POST /campaign/back
func (h *CampaignHandler) Back(c *fiber.Ctx) error {
	if err := h.orc.Back(); err != nil {
		return h.fail(c, err)
	}
	return response.OK(c, h.orc.State())
}

// StartNew handles POST /campaign/new
func (h *CampaignHandler) StartNew(c *fiber.Ctx) error {
	if err := h.orc.StartNew(); err != nil {
		return h.fail(c, err)
	}
	return response.OK(c, h.orc.State())
}

// RestartStream handles POST /campaign/stream/restart
func (h *CampaignHandler) RestartStream(c *fiber.Ctx) error {
	if err := h.orc.RestartStream(); err != nil {
		return h.fail(c, err)
	}
	return response.OK(c, h.orc.State())
}

// JobSnapshot handles GET /campaign/job: a one-shot status fetch, useful
// as a polling fallback while the push stream is down.
func (h *CampaignHandler) JobSnapshot(c *fiber.Ctx) error {
	state := h.orc.State()
	if state.JobID == "" {
		return response.NotFound(c, "No generation job in progress")
	}
	update, err := h.yapper.JobStatus(c.Context(), state.JobID)
	if err != nil {
		return h.fail(c, err)
	}
	return response.OK(c, update)
}

// Artifacts handles GET /campaign/artifacts, resolving each produced
// artifact to its remote streaming and download URLs.
func (h *CampaignHandler) Artifacts(c *fiber.Ctx) error {
	state := h.orc.State()

	type artifactView struct {
		Path        string `json:"path"`
		FileURL     string `json:"file_url"`
		DownloadURL string `json:"download_url"`
	}
	views := make([]artifactView, 0, len(state.Artifacts))
	for _, a := range state.Artifacts {
		views = append(views, artifactView{
			Path:        a,
			FileURL:     h.yapper.FileURL(a),
			DownloadURL: h.yapper.DownloadURL(a),
		})
	}
	return response.OK(c, fiber.Map{"artifacts": views})
}

// Jobs handles GET /jobs
func (h *CampaignHandler) Jobs(c *fiber.Ctx) error {
	result, err := h.yapper.ListJobs(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return response.OK(c, result)
}

// Queue handles GET /queue
func (h *CampaignHandler) Queue(c *fiber.Ctx) error {
	result, err := h.yapper.QueueStatus(c.Context())
	if err != nil {
		return h.fail(c, err)
	}
	return response.OK(c, result)
}

// fail maps workflow and remote errors onto the response envelope.
func (h *CampaignHandler) fail(c *fiber.Ctx, err error) error {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, workflow.ErrInvalidInput), errors.Is(err, workflow.ErrNoSelection):
		return response.ValidationError(c, err.Error(), nil)
	case errors.Is(err, workflow.ErrWrongStage), errors.Is(err, workflow.ErrCallInFlight):
		return response.NotAllowed(c, err.Error())
	case errors.As(err, &apiErr):
		return response.RemoteError(c, apiErr.StatusCode, apiErr.Message)
	default:
		return response.ServiceError(c, err.Error())
	}
}

func formatValidationErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Field()+" failed on "+fe.Tag())
	}
	return out
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return response.Error(c, code, response.CodeServiceError, message, nil)
}
