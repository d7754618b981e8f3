package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docqa-be/internal/dto"
	"docqa-be/internal/pkg/serverutils"
	"docqa-be/internal/repository"
	"docqa-be/internal/service"
	"docqa-be/pkg/queue"
)

type IRagController interface {
	RegisterRoutes(r fiber.Router)
	Ask(ctx *fiber.Ctx) error
	AskSync(ctx *fiber.Ctx) error
	AskFile(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
}

type ragController struct {
	ragService service.IRagService
}

func NewRagController(ragService service.IRagService) IRagController {
	return &ragController{
		ragService: ragService,
	}
}

func (c *ragController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/rag")
	h.Use(serverutils.JwtMiddleware)
	h.Post("/ask", c.Ask)
	h.Post("/ask-sync", c.AskSync)
	h.Post("/ask-file/:fileId", c.AskFile)
	h.Get("/status/:jobId", c.Status)
	h.Get("/stats", c.Stats)
}

func (c *ragController) parseRequest(ctx *fiber.Ctx) (*dto.AskRequest, string, error) {
	userIdStr, _ := ctx.Locals("user_id").(string)
	if userIdStr == "" {
		return nil, "", ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Unauthorized"))
	}

	var req dto.AskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return nil, "", ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, "", ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}
	return &req, userIdStr, nil
}

// Ask queues the question and returns 202 with a status URL. If the queue
// is down the answer is computed inline and returned with 200.
func (c *ragController) Ask(ctx *fiber.Ctx) error {
	req, userId, err := c.parseRequest(ctx)
	if err != nil {
		return err
	}

	outcome, err := c.ragService.Ask(ctx.Context(), userId, *req)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	if outcome.Enqueued != nil {
		return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Question queued", outcome.Enqueued))
	}
	return ctx.JSON(serverutils.SuccessResponse("Question answered", outcome.Answer))
}

func (c *ragController) AskSync(ctx *fiber.Ctx) error {
	req, userId, err := c.parseRequest(ctx)
	if err != nil {
		return err
	}

	answer, err := c.ragService.AskSync(ctx.Context(), userId, *req)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("Question answered", answer))
}

func (c *ragController) AskFile(ctx *fiber.Ctx) error {
	req, userId, err := c.parseRequest(ctx)
	if err != nil {
		return err
	}

	fileId := ctx.Params("fileId")
	outcome, err := c.ragService.AskFile(ctx.Context(), userId, fileId, *req)
	if err != nil {
		if errors.Is(err, repository.ErrFileNotFound) || errors.Is(err, repository.ErrNotOwned) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "File not found"))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	if outcome.Enqueued != nil {
		return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Question queued", outcome.Enqueued))
	}
	return ctx.JSON(serverutils.SuccessResponse("Question answered", outcome.Answer))
}

func (c *ragController) Status(ctx *fiber.Ctx) error {
	jobId := ctx.Params("jobId")

	snapshot, err := c.ragService.Status(ctx.Context(), jobId)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Job not found"))
		}
		if errors.Is(err, queue.ErrUnavailable) {
			return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, "Queue unavailable"))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("Job status retrieved", snapshot))
}

func (c *ragController) Stats(ctx *fiber.Ctx) error {
	userId, _ := ctx.Locals("user_id").(string)
	if userId == "" {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Unauthorized"))
	}

	stats, err := c.ragService.Stats(ctx.Context(), userId)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("Stats retrieved", stats))
}
