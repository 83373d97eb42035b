package controller

import (
	"errors"

	"essay-coach-be/internal/dto"
	"essay-coach-be/internal/pkg/serverutils"
	"essay-coach-be/internal/service"
	"essay-coach-be/pkg/embedding"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Search(ctx *fiber.Ctx) error
	Analyze(ctx *fiber.Ctx) error
	Stats(ctx *fiber.Ctx) error
}

type documentController struct {
	corpusService service.ICorpusService
}

func NewDocumentController(corpusService service.ICorpusService) IDocumentController {
	return &documentController{
		corpusService: corpusService,
	}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/document/v1")

	// Reads stay open, writes require a token
	h.Post("/search", c.Search)
	h.Post("/analyze", c.Analyze)
	h.Get("/stats", c.Stats)
	h.Get("/:id", c.Show)
	h.Post("", serverutils.JwtMiddleware, c.Create)
	h.Delete("/:id", serverutils.JwtMiddleware, c.Delete)
}

func (c *documentController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateDocumentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.corpusService.CreateDocument(ctx.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCategory) {
			return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Document created", res))
}

func (c *documentController) Show(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid document ID"))
	}

	res, err := c.corpusService.GetDocument(ctx.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Document not found"))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Document details", res))
}

func (c *documentController) Delete(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid document ID"))
	}

	if err := c.corpusService.DeleteDocument(ctx.Context(), id); err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Document not found"))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Document deleted", nil))
}

func (c *documentController) Search(ctx *fiber.Ctx) error {
	var req dto.SearchDocumentsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.corpusService.Search(ctx.Context(), &req)
	if err != nil {
		if errors.Is(err, embedding.ErrModelNotReady) {
			return ctx.Status(fiber.StatusServiceUnavailable).JSON(serverutils.ErrorResponse(503, "Embedding model is warming up, try again shortly"))
		}
		if errors.Is(err, service.ErrInvalidCategory) {
			return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Search results", res))
}

func (c *documentController) Analyze(ctx *fiber.Ctx) error {
	var req dto.AnalyzeTextRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.corpusService.Analyze(ctx.Context(), &req)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Analysis", res))
}

func (c *documentController) Stats(ctx *fiber.Ctx) error {
	res, err := c.corpusService.Stats(ctx.Context())
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	return ctx.JSON(serverutils.SuccessResponse("Corpus stats", res))
}
