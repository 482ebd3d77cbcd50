package handlers

import (
	"errors"
	"strconv"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/eduniche/eduniche-backend/internal/services"
	groupws "github.com/eduniche/eduniche-backend/internal/websocket"
	"github.com/eduniche/eduniche-backend/pkg/utils"
)

// GroupWSHandler upgrades study-group members onto the live message stream.
type GroupWSHandler struct {
	service   *services.GroupService
	hub       *groupws.Hub
	jwtSecret string
}

func NewGroupWSHandler(service *services.GroupService, hub *groupws.Hub, jwtSecret string) *GroupWSHandler {
	return &GroupWSHandler{
		service:   service,
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

// WebSocketAuth runs before the upgrade. Browsers cannot set headers on
// websocket requests, so the token is also accepted as a query parameter.
func (h *GroupWSHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil || userID <= 0 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	groupID, err := parseGroupID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid group id"})
	}

	if err := h.service.RequireMembership(c.Context(), groupID, userID); err != nil {
		return mapGroupError(c, err)
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	c.Locals("group_id", groupID)
	return c.Next()
}

func (h *GroupWSHandler) HandleWebSocket(conn *websocket.Conn) {
	rawUserID, _ := conn.Locals("user_id").(string)
	userID, err := strconv.ParseInt(rawUserID, 10, 64)
	if err != nil {
		_ = conn.Close()
		return
	}
	groupID, ok := conn.Locals("group_id").(int64)
	if !ok {
		_ = conn.Close()
		return
	}

	client := groupws.NewClient(h.hub, conn, userID, groupID)

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump(h.service)
}

func (h *GroupWSHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}

	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}
