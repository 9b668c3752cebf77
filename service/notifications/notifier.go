package notifications

import (
	"encoding/json"
	"log"
	"time"

	"github.com/mahalbook/mahalbook-server/cmd/models"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"gorm.io/gorm"
)

// Notifier sends Expo push notifications to every device a user has
// registered. Like the activity log, it is fire-and-forget: a push failure
// must never abort the booking or approval flow that triggered it.
type Notifier struct {
	db         *gorm.DB
	expoClient *expo.PushClient
}

func NewNotifier(db *gorm.DB) *Notifier {
	return &Notifier{
		db:         db,
		expoClient: expo.NewPushClient(nil),
	}
}

// PushToUser delivers the message to all of the user's devices in the
// background and records it in the notification history.
func (n *Notifier) PushToUser(userID uint, title, body string, data map[string]string) {
	go func() {
		var devices []models.Device
		if err := n.db.Where("user_id = ?", userID).Find(&devices).Error; err != nil {
			log.Printf("Error loading devices for user %d: %v", userID, err)
			return
		}

		status := "sent"
		if len(devices) == 0 {
			status = "no_devices"
		} else if err := n.publish(devices, title, body, data); err != nil {
			log.Printf("Error pushing notification to user %d: %v", userID, err)
			status = "failed"
		}

		payload, _ := json.Marshal(data)
		history := models.NotificationHistory{
			UserID: userID,
			Title:  title,
			Body:   body,
			Data:   string(payload),
			Status: status,
			SentAt: time.Now(),
		}
		if err := n.db.Create(&history).Error; err != nil {
			log.Printf("Error recording notification history: %v", err)
		}
	}()
}

func (n *Notifier) publish(devices []models.Device, title, body string, data map[string]string) error {
	var tokens []expo.ExponentPushToken
	for _, device := range devices {
		pushToken, err := expo.NewExponentPushToken(device.Token)
		if err != nil {
			log.Printf("Skipping invalid push token for device %d", device.ID)
			continue
		}
		tokens = append(tokens, pushToken)
	}
	if len(tokens) == 0 {
		return nil
	}

	pushMessage := &expo.PushMessage{
		To:       tokens,
		Title:    title,
		Body:     body,
		Data:     data,
		Sound:    "default",
		Priority: expo.DefaultPriority,
	}

	response, err := n.expoClient.Publish(pushMessage)
	if err != nil {
		return err
	}
	if validationErr := response.ValidateResponse(); validationErr != nil {
		return validationErr
	}
	return nil
}
