package handlers

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

type PostHandler struct {
	s        service.CompositionService
	timeline service.TimelineService
	resync   service.Resyncer
}

func NewPostHandler(service service.CompositionService, timeline service.TimelineService, resync service.Resyncer) *PostHandler {
	return &PostHandler{s: service, timeline: timeline, resync: resync}
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	entries, err := h.timeline.Recent(c.UserContext())
	if err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list posts",
		})
	}

	return c.JSON(fiber.Map{
		"posts": entries,
	})
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		slog.Error(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse form",
		})
	}

	files, err := h.s.StageUploads(form.File["files"])
	if err != nil {
		return errorResponse(c, err)
	}

	results, err := h.s.Compose(c.UserContext(), &transfer.Composition{
		Text:     c.FormValue("text"),
		Files:    files,
		Services: parseServices(form.Value["services"]),
		Reply: transfer.Target{
			TwitterID: c.FormValue("replyTwitterId"),
			BlueskyID: c.FormValue("replyBlueskyId"),
		},
		Quote: transfer.Target{
			TwitterID: c.FormValue("quoteTwitterId"),
			BlueskyID: c.FormValue("quoteBlueskyId"),
		},
	})
	if err != nil {
		return errorResponse(c, err)
	}

	return resultsResponse(c, results)
}

func (h *PostHandler) DeletePosts(c *fiber.Ctx) error {
	var req transfer.DeleteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse form",
		})
	}

	results, err := h.s.Delete(c.UserContext(), transfer.Target{TwitterID: req.TwitterID, BlueskyID: req.BlueskyID})
	if err != nil {
		return errorResponse(c, err)
	}

	return resultsResponse(c, results)
}

func (h *PostHandler) DeleteTweet(c *fiber.Ctx) error {
	tweetID := c.Params("tweetId")
	if !service.ValidTweetID(tweetID) {
		return errorResponse(c, service.ErrInvalidTweetID)
	}

	results, err := h.s.Delete(c.UserContext(), transfer.Target{TwitterID: tweetID})
	if err != nil {
		return errorResponse(c, err)
	}

	return resultsResponse(c, results)
}

// Sync refreshes both caches in the background.
func (h *PostHandler) Sync(c *fiber.Ctx) error {
	h.resync.Resync(context.Background(), models.PlatformTwitter, models.PlatformBluesky)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Sync started",
	})
}

func resultsResponse(c *fiber.Ctx, results transfer.Results) error {
	status := fiber.StatusOK
	if !results.AllOK() {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(fiber.Map{
		"results": results,
	})
}
