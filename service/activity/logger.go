package activity

import (
	"log"
	"net/http"
	"strings"

	"github.com/mahalbook/mahalbook-server/cmd/models"
	"gorm.io/gorm"
)

// Logger records significant actions for the admin audit trail. It is
// advisory: failures are logged server-side and never propagated to the
// operation being recorded.
type Logger struct {
	db *gorm.DB
}

func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

type Entry struct {
	UserID      uint
	UserName    string
	Role        string
	Action      string
	Description string
	TargetType  string
	TargetID    uint
	TargetName  string
	IPAddress   string
	UserAgent   string
}

// Log persists the entry asynchronously. The caller never waits on it and
// never sees its errors.
func (l *Logger) Log(entry Entry) {
	go func() {
		record := models.ActivityLog{
			UserID:      entry.UserID,
			UserName:    entry.UserName,
			Role:        entry.Role,
			Action:      entry.Action,
			Description: entry.Description,
			TargetType:  entry.TargetType,
			TargetID:    entry.TargetID,
			TargetName:  entry.TargetName,
			IPAddress:   entry.IPAddress,
			UserAgent:   entry.UserAgent,
		}
		if err := l.db.Create(&record).Error; err != nil {
			log.Printf("Error logging activity %q: %v", entry.Action, err)
		}
	}()
}

// IPAddress extracts the client address, preferring proxy headers.
func IPAddress(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-Ip"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}

func UserAgent(r *http.Request) string {
	return r.Header.Get("User-Agent")
}
