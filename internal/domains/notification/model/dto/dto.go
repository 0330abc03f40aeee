package dto

import (
	"encoding/json"
	"eventasap/internal/domains/notification/model"
	"eventasap/shared"
	gDto "eventasap/shared/dto"
	gModel "eventasap/shared/model"
	"eventasap/shared/timezone"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

type CreateNotificationRequest struct {
	UserID    string         `json:"user_id"    validate:"required,uuid"`
	Type      model.Type     `json:"type"       validate:"required"`
	Title     string         `json:"title"      validate:"required,max=255"`
	Message   string         `json:"message"    validate:"required"`
	ActionURL *string        `json:"action_url" validate:"omitempty,max=512"`
	Data      map[string]any `json:"data"       validate:"omitempty"`
}

func (c *CreateNotificationRequest) ToModel() (model.Notification, error) {
	var data *types.JSONText

	if c.Data != nil {
		raw, err := json.Marshal(c.Data)
		if err != nil {
			return model.Notification{}, err
		}

		jsonText := types.JSONText(raw)
		data = &jsonText
	}

	return model.Notification{
		ID:        uuid.NewString(),
		UserID:    c.UserID,
		Type:      c.Type,
		Title:     c.Title,
		Message:   c.Message,
		ActionURL: c.ActionURL,
		Data:      data,
		IsRead:    false,
		Metadata: gModel.Metadata{
			CreatedAt:  timezone.Now(),
			ModifiedAt: timezone.Now(),
			CreatedBy:  c.UserID,
			ModifiedBy: c.UserID,
		},
	}, nil
}

type NotificationResponse struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	ActionURL *string        `json:"action_url,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	IsRead    bool           `json:"is_read"`
	gDto.Metadata
}

func (r *NotificationResponse) FromModel(model model.Notification) {
	r.ID = model.ID
	r.UserID = model.UserID
	r.Type = string(model.Type)
	r.Title = model.Title
	r.Message = model.Message
	r.ActionURL = model.ActionURL
	r.IsRead = model.IsRead

	if model.Data != nil {
		_ = json.Unmarshal(*model.Data, &r.Data)
	}

	r.Metadata.FromModel(model.Metadata)
}

type GetNotificationsResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	TotalPage     int                    `json:"total_page"`
	TotalData     int                    `json:"total_data"`
}

func (r *GetNotificationsResponse) FromModels(models []model.Notification, totalData, limit int) {
	r.TotalData = totalData
	r.TotalPage = shared.CalculateTotalPage(totalData, limit)

	r.Notifications = make([]NotificationResponse, len(models))
	for i, mod := range models {
		r.Notifications[i].FromModel(mod)
	}
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}
