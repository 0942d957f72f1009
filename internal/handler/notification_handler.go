package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
	"github.com/kursadbilgin/notify-dispatcher/internal/observability"
	"github.com/kursadbilgin/notify-dispatcher/internal/repository"
	"github.com/kursadbilgin/notify-dispatcher/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type NotificationService interface {
	CreateAndDispatch(
		ctx context.Context,
		kind string,
		user domain.User,
		actionSymbol string,
		opts service.CreateOptions,
	) (*domain.Notification, error)
	Dispatch(ctx context.Context, id string) (*domain.Notification, error)
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string, params repository.ListParams) ([]domain.Notification, int64, error)
	ActionSymbol(n *domain.Notification) (string, error)
}

type NotificationHandler struct {
	service NotificationService
}

func NewNotificationHandler(service NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	return &NotificationHandler{service: service}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service NotificationService) error {
	h, err := NewNotificationHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications", h.CreateNotification)
	v1.Post("/notifications/:id/deliver", h.DeliverNotification)
	v1.Get("/notifications/:id", h.GetNotification)
	v1.Get("/users/:userId/notifications", h.ListUserNotifications)

	return nil
}

type createNotificationRequest struct {
	Kind              string                    `json:"kind"`
	UserID            string                    `json:"userId"`
	UserEmail         string                    `json:"userEmail"`
	Action            string                    `json:"action"`
	Message           *string                   `json:"message"`
	ShortMessage      *string                   `json:"shortMessage"`
	FullMessage       *string                   `json:"fullMessage"`
	Subject           *string                   `json:"subject"`
	DeliveryPlatforms []string                  `json:"deliveryPlatforms"`
	Metadata          map[string]any            `json:"metadata"`
	DeliverySettings  map[string]map[string]any `json:"deliverySettings"`
}

type statusEntryResponse struct {
	Platform     string `json:"platform"`
	PlatformCode int    `json:"platformCode"`
	Code         int    `json:"code"`
	Status       string `json:"status"`
	Note         string `json:"note"`
}

type notificationResponse struct {
	ID                string                    `json:"id"`
	Kind              string                    `json:"kind"`
	UserID            string                    `json:"userId"`
	ActionCode        int                       `json:"actionCode"`
	ActionSymbol      string                    `json:"actionSymbol,omitempty"`
	Message           *string                   `json:"message,omitempty"`
	ShortMessage      *string                   `json:"shortMessage,omitempty"`
	FullMessage       *string                   `json:"fullMessage,omitempty"`
	HTMLMessage       *string                   `json:"htmlMessage,omitempty"`
	Subject           *string                   `json:"subject,omitempty"`
	DeliveryPlatforms []string                  `json:"deliveryPlatforms"`
	Metadata          map[string]any            `json:"metadata,omitempty"`
	DeliverySettings  map[string]map[string]any `json:"deliverySettings"`
	StatusLog         []statusEntryResponse     `json:"statusLog"`
	CreatedAt         time.Time                 `json:"createdAt,omitempty"`
	UpdatedAt         time.Time                 `json:"updatedAt,omitempty"`
	Warning           string                    `json:"warning,omitempty"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *NotificationHandler) CreateNotification(c *fiber.Ctx) error {
	var req createNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	kind := strings.TrimSpace(req.Kind)
	action := strings.TrimSpace(req.Action)
	if kind == "" {
		return toHTTPError(fmt.Errorf("%w: kind is required", domain.ErrValidation))
	}
	if action == "" {
		return toHTTPError(fmt.Errorf("%w: action is required", domain.ErrValidation))
	}

	user := domain.User{
		ID:    strings.TrimSpace(req.UserID),
		Email: strings.TrimSpace(req.UserEmail),
	}
	opts := service.CreateOptions{
		Message:           req.Message,
		ShortMessage:      req.ShortMessage,
		FullMessage:       req.FullMessage,
		Subject:           req.Subject,
		DeliveryPlatforms: req.DeliveryPlatforms,
		Metadata:          req.Metadata,
		DeliverySettings:  req.DeliverySettings,
	}

	created, err := h.service.CreateAndDispatch(requestContext(c), kind, user, action, opts)
	if created == nil {
		if err == nil {
			err = errors.New("notification was not created")
		}
		return toHTTPError(err)
	}
	if !created.Persisted {
		return fiber.NewError(fiber.StatusServiceUnavailable, "notification could not be stored")
	}

	resp := h.toNotificationResponse(created)
	if err != nil {
		resp.Warning = err.Error()
	}
	return c.Status(fiber.StatusAccepted).JSON(resp)
}

func (h *NotificationHandler) DeliverNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	notification, err := h.service.Dispatch(requestContext(c), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(h.toNotificationResponse(notification))
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	notification, err := h.service.GetByID(requestContext(c), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(h.toNotificationResponse(notification))
}

func (h *NotificationHandler) ListUserNotifications(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	userID := strings.TrimSpace(c.Params("userId"))
	notifications, total, err := h.service.ListByUser(requestContext(c), userID, params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]notificationResponse, 0, len(notifications))
	for i := range notifications {
		data = append(data, h.toNotificationResponse(&notifications[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if kind := strings.TrimSpace(c.Query("kind")); kind != "" {
		params.Kind = &kind
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return repository.ListParams{}, fmt.Errorf("%w: to must not be before from", domain.ErrValidation)
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

// requestContext carries the request's correlation id into service calls.
func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if id := requestCorrelationID(c); id != "" {
		ctx = observability.WithCorrelationID(ctx, id)
	}
	return ctx
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func (h *NotificationHandler) toNotificationResponse(n *domain.Notification) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	// An unregistered code still renders the record; the symbol is just left out.
	symbol, _ := h.service.ActionSymbol(n)

	platforms := n.DeliveryPlatforms
	if platforms == nil {
		platforms = []string{}
	}
	settings := n.DeliverySettings
	if settings == nil {
		settings = map[string]map[string]any{}
	}

	statusLog := make([]statusEntryResponse, 0, len(n.StatusLog))
	for _, entry := range n.StatusLog {
		statusLog = append(statusLog, statusEntryResponse{
			Platform:     entry.Platform.String(),
			PlatformCode: entry.Platform.Code(),
			Code:         int(entry.Code),
			Status:       entry.Code.String(),
			Note:         entry.Note,
		})
	}

	return notificationResponse{
		ID:                n.ID,
		Kind:              n.Kind,
		UserID:            n.UserID,
		ActionCode:        n.ActionCode,
		ActionSymbol:      symbol,
		Message:           n.Message,
		ShortMessage:      n.ShortMessage,
		FullMessage:       n.FullMessage,
		HTMLMessage:       n.HTMLMessage(),
		Subject:           n.Subject,
		DeliveryPlatforms: platforms,
		Metadata:          n.Meta,
		DeliverySettings:  settings,
		StatusLog:         statusLog,
		CreatedAt:         n.CreatedAt,
		UpdatedAt:         n.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnknownKind),
		errors.Is(err, domain.ErrUnknownAction),
		errors.Is(err, domain.ErrUnknownActionCode):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return err
	}
}
