package roleapi

import (
	"github.com/Abraxas-365/sentinel/pkg/errx"
	"github.com/Abraxas-365/sentinel/pkg/iam/role/rolesrv"
	"github.com/Abraxas-365/sentinel/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// RoleHandlers exposes role administration. Every route sits behind a
// root only guard supplied by the caller.
type RoleHandlers struct {
	service *rolesrv.RoleService
}

func NewRoleHandlers(service *rolesrv.RoleService) *RoleHandlers {
	return &RoleHandlers{service: service}
}

type rolesRequest struct {
	Roles []string `json:"roles"`
}

func (h *RoleHandlers) RegisterRoutes(router fiber.Router, rootGuard fiber.Handler) {
	router.Get("/roles", rootGuard, h.ListAssignable)

	users := router.Group("/users/:id", rootGuard)
	users.Post("/roles", h.Assign)
	users.Delete("/roles", h.Remove)
	users.Post("/block", h.Block)
	users.Post("/unblock", h.Unblock)
}

func (h *RoleHandlers) ListAssignable(c *fiber.Ctx) error {
	return c.JSON(h.service.EnumerateAssignableRoles())
}

func (h *RoleHandlers) Assign(c *fiber.Ctx) error {
	var req rolesRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body")
	}
	roles, err := h.service.AssignRoles(c.UserContext(), kernel.UserID(c.Params("id")), req.Roles)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"roles": roles})
}

func (h *RoleHandlers) Remove(c *fiber.Ctx) error {
	var req rolesRequest
	if err := c.BodyParser(&req); err != nil {
		return errx.Validation("invalid request body")
	}
	roles, err := h.service.RemoveRoles(c.UserContext(), kernel.UserID(c.Params("id")), req.Roles)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"roles": roles})
}

func (h *RoleHandlers) Block(c *fiber.Ctx) error {
	if err := h.service.SetBlocked(c.UserContext(), kernel.UserID(c.Params("id")), true); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *RoleHandlers) Unblock(c *fiber.Ctx) error {
	if err := h.service.SetBlocked(c.UserContext(), kernel.UserID(c.Params("id")), false); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
