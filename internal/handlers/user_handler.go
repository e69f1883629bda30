package handlers

import (
	"dealhub/internal/middleware"
	"dealhub/internal/models"
	"dealhub/internal/services"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles HTTP requests for user accounts.
type UserHandler struct {
	service *services.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// RegisterRoutes registers the user routes. Mutations of an existing account
// go through authRequired.
func (h *UserHandler) RegisterRoutes(router fiber.Router, authRequired fiber.Handler) {
	userRoutes := router.Group("/users")
	userRoutes.Post("/", h.HandleCreateUser)
	userRoutes.Get("/", h.HandleGetUsers)
	userRoutes.Get("/by-email", h.HandleGetUserByEmail)
	userRoutes.Get("/:id", h.HandleGetUserByID)
	userRoutes.Put("/:id", authRequired, h.HandleUpdateUser)
	userRoutes.Delete("/:id", authRequired, h.HandleDeleteUser)
}

// HandleCreateUser registers a new account and returns its id and token.
func (h *UserHandler) HandleCreateUser(c *fiber.Ctx) error {
	var req models.UserCreate
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body", err)
	}

	id, token, err := h.service.Register(c.UserContext(), req)
	if err != nil {
		return respondError(c, err, "Could not register user")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":    id,
		"token": token,
	})
}

// HandleGetUsers lists all users without their credentials.
func (h *UserHandler) HandleGetUsers(c *fiber.Ctx) error {
	users, err := h.service.List(c.UserContext())
	if err != nil {
		return respondError(c, err, "Could not retrieve users")
	}
	return c.JSON(users)
}

// HandleGetUserByEmail looks a user up by the email query parameter.
func (h *UserHandler) HandleGetUserByEmail(c *fiber.Ctx) error {
	user, err := h.service.GetByEmail(c.UserContext(), c.Query("email"))
	if err != nil {
		return respondError(c, err, "Could not retrieve user")
	}
	return c.JSON(user)
}

// HandleGetUserByID retrieves a single user by its ID.
func (h *UserHandler) HandleGetUserByID(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid user id", nil)
	}
	user, err := h.service.GetByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, err, "Could not retrieve user")
	}
	return c.JSON(user)
}

// HandleUpdateUser applies a partial update and returns a refreshed token.
func (h *UserHandler) HandleUpdateUser(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid user id", nil)
	}
	var upd models.UserUpdate
	if err := c.BodyParser(&upd); err != nil {
		return badRequest(c, "Invalid request body", err)
	}

	token, err := h.service.Update(c.UserContext(), middleware.Claims(c), id, upd)
	if err != nil {
		return respondError(c, err, "Could not update user")
	}
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"token":   token,
	})
}

// HandleDeleteUser deletes an account.
func (h *UserHandler) HandleDeleteUser(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return badRequest(c, "Invalid user id", nil)
	}
	if err := h.service.Delete(c.UserContext(), middleware.Claims(c), id); err != nil {
		return respondError(c, err, "Could not delete user")
	}
	return c.JSON(fiber.Map{
		"message": "User deleted successfully",
	})
}
