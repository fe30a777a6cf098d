package api

import (
	"encoding/hex"
	"strconv"

	"github.com/gofiber/fiber/v2"
	gofiberws "github.com/gofiber/websocket/v2"

	"github.com/nciadapter/nciadapter/internal/adapter"
	"github.com/nciadapter/nciadapter/internal/nci"
	"github.com/nciadapter/nciadapter/internal/websocket"
)

// Handler holds the API's fiber route handlers, adapted from the
// teacher's Handler (NewHandler/SetupRoutes shape kept, flow/node/
// module/terminal endpoints replaced by the adapter control surface).
type Handler struct {
	service *Service
	wsHub   *websocket.Hub
}

// NewHandler creates a new API handler bound to service.
func NewHandler(service *Service, wsHub *websocket.Hub) *Handler {
	return &Handler{service: service, wsHub: wsHub}
}

func (h *Handler) healthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "nciadapter",
	})
}

// getStatus handles GET /v1/status.
func (h *Handler) getStatus(c *fiber.Ctx) error {
	return c.JSON(h.service.Status())
}

type modeRequest struct {
	Mode uint32 `json:"mode"`
}

// submitMode handles POST /v1/mode.
func (h *Handler) submitMode(c *fiber.Ctx) error {
	var req modeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	accepted := h.service.SubmitMode(adapter.OperatingMode(req.Mode))
	if !accepted {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "mode request rejected"})
	}
	return c.JSON(fiber.Map{"accepted": true})
}

// cancelMode handles DELETE /v1/mode.
func (h *Handler) cancelMode(c *fiber.Ctx) error {
	h.service.CancelMode()
	return c.JSON(fiber.Map{"message": "mode request cancelled"})
}

// getSupportedTechs handles GET /v1/techs.
func (h *Handler) getSupportedTechs(c *fiber.Ctx) error {
	techs := h.service.SupportedTechs()
	return c.JSON(fiber.Map{"techs": uint32(techs)})
}

type techsRequest struct {
	Techs uint32 `json:"techs"`
}

// setAllowedTechs handles PUT /v1/techs.
func (h *Handler) setAllowedTechs(c *fiber.Ctx) error {
	var req techsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	h.service.SetAllowedTechs(nci.TechMask(req.Techs))
	return c.JSON(fiber.Map{"message": "allowed techs updated"})
}

// getParams handles GET /v1/params and GET /v1/params?id=....
func (h *Handler) getParams(c *fiber.Ctx) error {
	if id := c.Query("id"); id != "" {
		value, ok := h.service.GetParam(id)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "param not found: " + id})
		}
		return c.JSON(fiber.Map{"id": id, "value": hex.EncodeToString(value)})
	}

	ids, err := h.service.ListParams()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"params": ids})
}

type setParamsRequest struct {
	Values      map[string]string `json:"values"` // hex-encoded byte values
	ResetOthers bool              `json:"reset_others"`
}

// setParams handles PUT /v1/params.
func (h *Handler) setParams(c *fiber.Ctx) error {
	var req setParamsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	values := make(map[string][]byte, len(req.Values))
	for id, hexValue := range req.Values {
		decoded, err := hex.DecodeString(hexValue)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid hex value for " + id})
		}
		values[id] = decoded
	}

	if err := h.service.SetParams(values, req.ResetOthers); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "params updated"})
}

// reactivate handles POST /v1/reactivate.
func (h *Handler) reactivate(c *fiber.Ctx) error {
	ok := h.service.Reactivate()
	if !ok {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "reactivate denied"})
	}
	return c.JSON(fiber.Map{"message": "reactivation started"})
}

// deactivateTarget handles POST /v1/targets/{id}/deactivate.
func (h *Handler) deactivateTarget(c *fiber.Ctx) error {
	h.service.DeactivateTarget()
	return c.JSON(fiber.Map{"id": c.Params("id"), "message": "target deactivated"})
}

// deactivateInitiator handles POST /v1/initiators/{id}/deactivate.
func (h *Handler) deactivateInitiator(c *fiber.Ctx) error {
	h.service.DeactivateInitiator()
	return c.JSON(fiber.Map{"id": c.Params("id"), "message": "initiator deactivated"})
}

// listActivations handles GET /v1/activations.
func (h *Handler) listActivations(c *fiber.Ctx) error {
	limit := 50
	if q := c.Query("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	records, err := h.service.ListActivations(limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"activations": records})
}

// handleWebSocket serves push notifications of mode/param change
// events to a connected operator UI (spec §6).
func (h *Handler) handleWebSocket(c *gofiberws.Conn) {
	if h.wsHub == nil {
		c.Close()
		return
	}
	h.wsHub.HandleWebSocket(c)
}
