package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// CatalogHandler serves categories and trigger rules.
type CatalogHandler struct {
	categories *service.CategoryService
	rules      *service.TriggerRuleService
}

// NewCatalogHandler constructs handler.
func NewCatalogHandler(categories *service.CategoryService, rules *service.TriggerRuleService) *CatalogHandler {
	return &CatalogHandler{categories: categories, rules: rules}
}

// ListCategories GET /categories.
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.categories.List(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.CategoryResponse, 0, len(categories))
	for i := range categories {
		items = append(items, dto.NewCategoryResponse(&categories[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateCategory POST /categories.
func (h *CatalogHandler) CreateCategory(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CategoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	category, err := h.categories.Create(c.UserContext(), user, service.CategoryInput{
		Name: req.Name, Description: req.Description, Color: req.Color,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCategoryResponse(category)})
}

// UpdateCategory PUT /categories/:id.
func (h *CatalogHandler) UpdateCategory(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CategoryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	category, err := h.categories.Update(c.UserContext(), user, c.Params("id"), service.CategoryInput{
		Name: req.Name, Description: req.Description, Color: req.Color,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCategoryResponse(category)})
}

// DeleteCategory DELETE /categories/:id.
func (h *CatalogHandler) DeleteCategory(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	if err := h.categories.Delete(c.UserContext(), user, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func ruleInput(req dto.TriggerRuleRequest) service.TriggerRuleInput {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return service.TriggerRuleInput{
		Name:          req.Name,
		Keywords:      req.Keywords,
		Action:        req.Action,
		CategoryID:    req.CategoryID,
		NotifyUserIDs: req.NotifyUserIDs,
		Active:        active,
	}
}

// ListRules GET /trigger-rules.
func (h *CatalogHandler) ListRules(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	rules, err := h.rules.List(c.UserContext(), user)
	if err != nil {
		return err
	}
	items := make([]dto.TriggerRuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, dto.NewTriggerRuleResponse(&rules[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetRule GET /trigger-rules/:id.
func (h *CatalogHandler) GetRule(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	rule, err := h.rules.Get(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTriggerRuleResponse(rule)})
}

// CreateRule POST /trigger-rules.
func (h *CatalogHandler) CreateRule(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.TriggerRuleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rule, err := h.rules.Create(c.UserContext(), user, ruleInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTriggerRuleResponse(rule)})
}

// UpdateRule PUT /trigger-rules/:id.
func (h *CatalogHandler) UpdateRule(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.TriggerRuleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rule, err := h.rules.Update(c.UserContext(), user, c.Params("id"), ruleInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTriggerRuleResponse(rule)})
}

// ToggleRule POST /trigger-rules/:id/toggle.
func (h *CatalogHandler) ToggleRule(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.ToggleRuleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rule, err := h.rules.SetActive(c.UserContext(), user, c.Params("id"), *req.Active)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTriggerRuleResponse(rule)})
}

// DeleteRule DELETE /trigger-rules/:id.
func (h *CatalogHandler) DeleteRule(c *fiber.Ctx) error {
	user, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	if err := h.rules.Delete(c.UserContext(), user, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
