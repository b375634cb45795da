package handlers

import (
	"errors"

	"github.com/mutalechilando/DigitalWalletBackend/internal/models"
	"github.com/mutalechilando/DigitalWalletBackend/internal/services/auth"
	"github.com/mutalechilando/DigitalWalletBackend/internal/services/user"
	"github.com/mutalechilando/DigitalWalletBackend/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService auth.Service
	userService user.Service
}

func NewAuthHandler(authService auth.Service, userService user.Service) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
	}
}

// Register creates a user and their zero-balance account.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input models.CreateUserInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	newUser, account, err := h.userService.Register(&input)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken), errors.Is(err, user.ErrUsernameTaken):
			return response.Conflict(c, err.Error())
		default:
			return response.BadRequest(c, err.Error())
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "user registered successfully",
		"data": fiber.Map{
			"user": fiber.Map{
				"id":       newUser.ID,
				"username": newUser.Username,
				"email":    newUser.Email,
			},
			"account_id": account.ID,
		},
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if input.Email == "" || input.Password == "" {
		return response.BadRequest(c, "email and password are required")
	}

	loggedIn, token, err := h.authService.Login(c.Context(), input.Email, input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return response.Unauthorized(c, "invalid email or password")
		}
		return response.ServerError(c, "authentication failed")
	}

	return response.Success(c, "login successful", fiber.Map{
		"token": token,
		"user": fiber.Map{
			"username": loggedIn.Username,
			"email":    loggedIn.Email,
		},
	})
}

// Logout revokes the presented token until it expires on its own.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token, ok := c.Locals("token").(string)
	if !ok || token == "" {
		return response.BadRequest(c, "token is required")
	}

	if err := h.authService.Logout(c.Context(), token); err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			return response.Unauthorized(c, "token already expired")
		case errors.Is(err, auth.ErrInvalidToken):
			return response.Unauthorized(c, "invalid token")
		default:
			return response.ServerError(c, "failed to logout")
		}
	}
	return response.Success(c, "logged out successfully", nil)
}
