package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/alter5/project-zurich/internal/app/service"
	"github.com/alter5/project-zurich/internal/app/store"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger   *zap.Logger
	Tracking service.TrackingService
}

// APIHandler implements the visitor and analytics endpoints.
type APIHandler struct {
	logger   *zap.Logger
	tracking service.TrackingService
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:   logger,
		tracking: deps.Tracking,
	}
}

// Register wires API routes onto the provided router. The optional extra
// handlers (rate limiting) are applied to the ingest POST routes only.
func (h *APIHandler) Register(router fiber.Router, ingestMiddleware ...fiber.Handler) {
	ingest := append(append([]fiber.Handler{}, ingestMiddleware...), h.Ingest)

	api := router.Group("/api")
	{
		api.Post("/visitors", ingest...)
		api.Get("/visitors", h.ListVisitors)

		api.Post("/analytics-events", ingest...)
		api.Get("/analytics-events", h.ListEvents)
		api.Get("/analytics", h.ListEvents)
	}
}

// ingestRequest accepts every field-name variant the tracking clients have
// shipped over time. Normalization into the canonical shape happens here,
// once, instead of per handler.
type ingestRequest struct {
	// analytics event fields
	EventType     string         `json:"eventType"`
	EventTypeAlt  string         `json:"event_type"`
	VisitorToken  string         `json:"visitorToken"`
	VisitorTokAlt string         `json:"visitor_token"`
	VisitorEmail  string         `json:"visitor_email"`
	Data          map[string]any `json:"data"`
	EventData     map[string]any `json:"event_data"`
	SessionID     string         `json:"session_id"`
	PageURL       string         `json:"page_url"`
	UserAgent     string         `json:"user_agent"`
	Timestamp     string         `json:"timestamp"`

	// visitor fields
	Email   string `json:"email"`
	Token   string `json:"token"`
	Name    string `json:"name"`
	Company string `json:"company"`
	Status  string `json:"status"`
}

func (r *ingestRequest) eventType() string {
	if r.EventType != "" {
		return r.EventType
	}
	return r.EventTypeAlt
}

func (r *ingestRequest) visitorToken() string {
	if r.VisitorToken != "" {
		return r.VisitorToken
	}
	return r.VisitorTokAlt
}

func (r *ingestRequest) eventData() map[string]any {
	if r.Data != nil {
		return r.Data
	}
	return r.EventData
}

// Ingest handles POST /api/visitors and POST /api/analytics-events. The
// payload kind is determined by the presence of an event type: present
// means analytics event, absent means visitor registration.
func (h *APIHandler) Ingest(c *fiber.Ctx) error {
	var req ingestRequest
	if err := c.BodyParser(&req); err != nil {
		// Malformed JSON is recovered as an empty payload, never surfaced.
		req = ingestRequest{}
	}

	ctx := requestContext(c)

	if req.eventType() != "" {
		return h.ingestEvent(c, ctx, &req)
	}
	return h.ingestVisitor(c, ctx, &req)
}

func (h *APIHandler) ingestVisitor(c *fiber.Ctx, ctx context.Context, req *ingestRequest) error {
	visitor, err := h.tracking.CreateVisitor(ctx, service.VisitorInput{
		Email:   req.Email,
		Token:   req.Token,
		Name:    req.Name,
		Company: req.Company,
		Status:  req.Status,
	})
	if err != nil {
		h.logger.Error("failed to create visitor", zap.Error(err))
		return serverError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(visitor)
}

func (h *APIHandler) ingestEvent(c *fiber.Ctx, ctx context.Context, req *ingestRequest) error {
	input := service.EventInput{
		EventType:    req.eventType(),
		VisitorToken: req.visitorToken(),
		VisitorEmail: req.VisitorEmail,
		Data:         req.eventData(),
		SessionID:    req.SessionID,
		PageURL:      req.PageURL,
		UserAgent:    req.UserAgent,
		IPAddress:    clientIP(c),
	}

	if input.SessionID == "" {
		input.SessionID, _ = input.Data["session"].(string)
	}
	if input.PageURL == "" {
		input.PageURL, _ = input.Data["page"].(string)
	}
	if input.UserAgent == "" {
		input.UserAgent = c.Get(fiber.HeaderUserAgent)
	}
	if req.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
			input.Timestamp = &ts
		}
	}

	event, err := h.tracking.RecordEvent(ctx, input)
	if err != nil {
		h.logger.Error("failed to record event",
			zap.String("event_type", input.EventType),
			zap.Error(err))
		return serverError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(event)
}

// ListVisitors handles GET /api/visitors.
func (h *APIHandler) ListVisitors(c *fiber.Ctx) error {
	limit, page, offset := paging(c)

	result, err := h.tracking.ListVisitors(requestContext(c), store.VisitorFilter{
		Limit:  limit,
		Offset: offset,
		Search: c.Query("search"),
	})
	if err != nil {
		h.logger.Error("failed to list visitors", zap.Error(err))
		return serverError(c, err)
	}

	resp := fiber.Map{
		"data":   result.Data,
		"total":  result.Total,
		"page":   page,
		"limit":  limit,
		"table":  "visitors",
		"source": result.Source,
	}
	if result.Source == store.SourceMemory {
		resp["real_count"] = result.RealCount
		resp["demo_count"] = result.DemoCount
	}
	return c.JSON(resp)
}

// ListEvents handles GET /api/analytics-events (and its /api/analytics alias).
func (h *APIHandler) ListEvents(c *fiber.Ctx) error {
	limit, page, offset := paging(c)

	result, err := h.tracking.ListEvents(requestContext(c), store.EventFilter{
		Limit:        limit,
		Offset:       offset,
		EventType:    c.Query("event_type"),
		VisitorToken: c.Query("visitor_token"),
		Search:       c.Query("search"),
	})
	if err != nil {
		h.logger.Error("failed to list events", zap.Error(err))
		return serverError(c, err)
	}

	resp := fiber.Map{
		"data":   result.Data,
		"total":  result.Total,
		"page":   page,
		"limit":  limit,
		"table":  "analytics",
		"source": result.Source,
	}
	if result.Source == store.SourceMemory {
		resp["real_count"] = result.RealCount
		resp["demo_count"] = result.DemoCount
	}
	return c.JSON(resp)
}

// Health is a simple root endpoint so we know the service is running.
func (h *APIHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "project-zurich",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// paging resolves limit/page/offset: an explicit offset wins, otherwise
// offset = (page-1) * limit.
func paging(c *fiber.Ctx) (limit, page, offset int) {
	limit = c.QueryInt("limit", 100)
	if limit <= 0 {
		limit = 100
	}
	page = c.QueryInt("page", 1)
	if page <= 0 {
		page = 1
	}
	if v := c.Query("offset"); v != "" {
		offset = c.QueryInt("offset")
		if offset < 0 {
			offset = 0
		}
		return limit, page, offset
	}
	return limit, page, (page - 1) * limit
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

func clientIP(c *fiber.Ctx) string {
	if fwd := c.Get(fiber.HeaderXForwardedFor); fwd != "" {
		return fwd
	}
	return c.IP()
}

func serverError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "Internal Server Error",
		"message": err.Error(),
	})
}
