package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"dealhub/internal/middleware"
	"dealhub/internal/models"
	"dealhub/internal/services"

	"github.com/gofiber/fiber/v2"
)

// DealHandler handles HTTP requests for deals and their images.
type DealHandler struct {
	service        *services.DealService
	maxUploadBytes int64
}

// NewDealHandler creates a new DealHandler. Uploaded files larger than
// maxUploadBytes are rejected.
func NewDealHandler(service *services.DealService, maxUploadBytes int64) *DealHandler {
	return &DealHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes registers the deal routes. Every mutation goes through authRequired.
func (h *DealHandler) RegisterRoutes(router fiber.Router, authRequired fiber.Handler) {
	dealRoutes := router.Group("/deals")
	dealRoutes.Get("/", h.HandleGetDeals)
	dealRoutes.Post("/", authRequired, h.HandleCreateDeal)
	dealRoutes.Post("/upload-image", authRequired, h.HandleUploadImages)
	dealRoutes.Get("/:id", h.HandleGetDealByID)
	dealRoutes.Get("/:id/images/:slot", h.HandleGetDealImage)
	dealRoutes.Put("/:id", authRequired, h.HandleUpdateDeal)
	dealRoutes.Delete("/:id", authRequired, h.HandleDeleteDeal)
}

// HandleGetDeals returns one page of deals, optionally filtered by title.
func (h *DealHandler) HandleGetDeals(c *fiber.Ctx) error {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		return badRequest(c, "Invalid page", err)
	}
	pageSize, err := intQuery(c, "pageSize", services.DefaultPageSize)
	if err != nil {
		return badRequest(c, "Invalid pageSize", err)
	}

	result, err := h.service.List(c.UserContext(), page, pageSize, c.Query("name"))
	if err != nil {
		return respondError(c, err, "Could not retrieve deals")
	}
	return c.JSON(result)
}

// HandleGetDealByID retrieves a single deal by its ID.
func (h *DealHandler) HandleGetDealByID(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid deal id", nil)
	}
	deal, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, fmt.Sprintf("Could not retrieve deal %d", id))
	}
	return c.JSON(deal)
}

// HandleGetDealImage streams the image stored in a slot of a deal.
func (h *DealHandler) HandleGetDealImage(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid deal id", nil)
	}
	slot, err := strconv.Atoi(c.Params("slot"))
	if err != nil {
		return badRequest(c, "Invalid image slot", err)
	}
	img, err := h.service.ResolveImage(c.UserContext(), id, slot)
	if err != nil {
		return respondError(c, err, "Could not retrieve image")
	}
	c.Set(fiber.HeaderContentType, img.ContentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
	return c.Send(img.Data)
}

// HandleCreateDeal creates a deal from a JSON body or a multipart form with
// up to three image files.
func (h *DealHandler) HandleCreateDeal(c *fiber.Ctx) error {
	in, files, err := h.parseDealRequest(c)
	if err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	deal, err := h.service.Create(c.UserContext(), middleware.Claims(c), in, files)
	if err != nil {
		return respondError(c, err, "Could not create deal")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Deal created successfully",
		"id":      deal.ID,
	})
}

// HandleUpdateDeal writes the supplied fields of a deal.
func (h *DealHandler) HandleUpdateDeal(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid deal id", nil)
	}
	in, files, err := h.parseDealRequest(c)
	if err != nil {
		return badRequest(c, "Invalid request body", err)
	}
	deal, err := h.service.Update(c.UserContext(), middleware.Claims(c), id, in, files)
	if err != nil {
		return respondError(c, err, fmt.Sprintf("Could not update deal %d", id))
	}
	return c.JSON(fiber.Map{
		"message": "Deal updated successfully",
		"deal":    deal,
	})
}

// HandleDeleteDeal deletes a deal by its ID.
func (h *DealHandler) HandleDeleteDeal(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid deal id", nil)
	}
	if err := h.service.Delete(c.UserContext(), middleware.Claims(c), id); err != nil {
		return respondError(c, err, fmt.Sprintf("Could not delete deal %d", id))
	}
	return c.JSON(fiber.Map{
		"message": "Deal deleted successfully",
	})
}

// HandleUploadImages stores up to three "images" files, optionally attaching
// them to the deal named by the dealId form field.
func (h *DealHandler) HandleUploadImages(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "Expected a multipart form", err)
	}

	var dealID uint
	if raw := strings.TrimSpace(c.FormValue("dealId")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return badRequest(c, "Invalid dealId", err)
		}
		dealID = uint(id)
	}

	files, err := h.readFiles(form, "images", "image")
	if err != nil {
		return badRequest(c, "Invalid upload", err)
	}
	refs, err := h.service.UploadImages(c.UserContext(), middleware.Claims(c), dealID, files)
	if err != nil {
		return respondError(c, err, "Could not upload images")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"filenames": refs,
	})
}

// parseDealRequest reads deal fields and, for multipart bodies, the image files.
func (h *DealHandler) parseDealRequest(c *fiber.Ctx) (models.DealInput, []services.ImageFile, error) {
	var in models.DealInput
	if len(c.Body()) == 0 {
		return in, nil, nil
	}
	if err := c.BodyParser(&in); err != nil {
		return in, nil, err
	}
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return in, nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return in, nil, err
	}
	files, err := h.readFiles(form, "image", "images")
	return in, files, err
}

// readFiles loads the files of the given form fields in order. The count
// limit is left to the service so that it reports a validation error.
func (h *DealHandler) readFiles(form *multipart.Form, fields ...string) ([]services.ImageFile, error) {
	var files []services.ImageFile
	for _, field := range fields {
		for _, fh := range form.File[field] {
			if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
				return nil, fmt.Errorf("%s exceeds the %d byte limit", fh.Filename, h.maxUploadBytes)
			}
			data, err := readFileHeader(fh)
			if err != nil {
				return nil, err
			}
			files = append(files, services.ImageFile{
				Name:        fh.Filename,
				ContentType: fh.Header.Get(fiber.HeaderContentType),
				Data:        data,
			})
		}
	}
	return files, nil
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return data, nil
}

// intQuery reads an integer query parameter, falling back to def when absent.
func intQuery(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}
