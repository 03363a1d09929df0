package handlers

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/middleware"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/models"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/internal/services"
	"github.com/Zaid-Lakdawala/healthcare-chatbot-backend/pkg/auth"
)

// AuthHandler serves registration, login, and profile endpoints.
type AuthHandler struct {
	users *services.UserService
	jwt   *auth.JWTAuth
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(users *services.UserService, jwt *auth.JWTAuth) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt}
}

// Register handles POST /api/users/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Name, email, and password are required"})
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("❌ [AUTH] Failed to hash password: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to register"})
	}

	user, err := h.users.Create(c.Context(), &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		DOB:          req.DOB,
		Role:         "user",
		Status:       "active",
	})
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	token, err := h.jwt.GenerateToken(user.ID.Hex(), user.Email)
	if err != nil {
		log.Printf("❌ [AUTH] Failed to issue token: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to register"})
	}

	log.Printf("✅ [AUTH] Registered user %s", user.Email)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"token": token, "user": user})
}

// Login handles POST /api/users/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.users.FindByEmail(c.Context(), email)
	if err != nil {
		log.Printf("❌ [AUTH] Login lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to log in"})
	}

	invalid := fiber.Map{"error": "Invalid email or password"}
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(invalid)
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil || !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(invalid)
	}

	token, err := h.jwt.GenerateToken(user.ID.Hex(), user.Email)
	if err != nil {
		log.Printf("❌ [AUTH] Failed to issue token: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to log in"})
	}

	return c.JSON(fiber.Map{"token": token, "user": user})
}

// Me handles GET /api/users/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.users.FindByID(c.Context(), middleware.UserID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load profile"})
	}
	if user == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	}
	return c.JSON(user)
}

// UpdateQuestionnaire handles PUT /api/users/questionnaire.
func (h *AuthHandler) UpdateQuestionnaire(c *fiber.Ctx) error {
	var q models.Questionnaire
	if err := c.BodyParser(&q); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := h.users.UpdateQuestionnaire(c.Context(), middleware.UserID(c), &q); err != nil {
		log.Printf("❌ [AUTH] Failed to update questionnaire: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save questionnaire"})
	}

	return c.JSON(fiber.Map{"success": true, "questionnaire": q})
}
