package listing

import (
	"errors"
	"strings"

	"github.com/mahalbook/mahalbook-server/cmd/models"
	"gorm.io/gorm"
)

// Kind identifies one of the three listing variants. The set is closed:
// every variant shares the same approval sub-model and is wired into the
// registry below, so the approval engine never switches on raw strings.
type Kind string

const (
	KindMahal      Kind = "mahal"
	KindContractor Kind = "contractor"
	KindService    Kind = "service"
)

var (
	ErrUnknownKind     = errors.New("unknown listing kind")
	ErrInvalidDecision = errors.New("approval decision must be approved or declined")
	ErrReasonRequired  = errors.New("a rejection reason is required when declining")
)

// Summary is the uniform view of a listing consumed by the approval engine,
// the cart and the booking engine, independent of the concrete kind.
type Summary struct {
	ID              uint    `json:"id"`
	Kind            Kind    `json:"kind"`
	OwnerID         uint    `json:"owner_id"`
	Name            string  `json:"name"`
	BasePrice       float64 `json:"base_price"`
	ApprovalStatus  string  `json:"approval_status"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
	IsActive        bool    `json:"is_active"`
}

type kindEntry struct {
	label     string
	newRecord func() interface{}
	summarize func(interface{}) Summary
}

var kinds = map[Kind]kindEntry{
	KindMahal: {
		label:     "Mahal",
		newRecord: func() interface{} { return &models.Mahal{} },
		summarize: func(record interface{}) Summary {
			m := record.(*models.Mahal)
			return Summary{
				ID:              m.ID,
				Kind:            KindMahal,
				OwnerID:         m.OwnerID,
				Name:            m.Name,
				BasePrice:       m.BasePrice,
				ApprovalStatus:  m.ApprovalStatus,
				RejectionReason: m.RejectionReason,
				IsActive:        m.IsActive,
			}
		},
	},
	KindContractor: {
		label:     "Contractor",
		newRecord: func() interface{} { return &models.Contractor{} },
		summarize: func(record interface{}) Summary {
			c := record.(*models.Contractor)
			return Summary{
				ID:              c.ID,
				Kind:            KindContractor,
				OwnerID:         c.OwnerID,
				Name:            c.Name,
				BasePrice:       c.BasePrice,
				ApprovalStatus:  c.ApprovalStatus,
				RejectionReason: c.RejectionReason,
				IsActive:        c.IsActive,
			}
		},
	},
	KindService: {
		label:     "Service",
		newRecord: func() interface{} { return &models.Service{} },
		summarize: func(record interface{}) Summary {
			s := record.(*models.Service)
			return Summary{
				ID:              s.ID,
				Kind:            KindService,
				OwnerID:         s.OwnerID,
				Name:            s.Name,
				BasePrice:       s.BasePrice,
				ApprovalStatus:  s.ApprovalStatus,
				RejectionReason: s.RejectionReason,
				IsActive:        s.IsActive,
			}
		},
	},
}

// Fetch loads one listing of the given kind and returns both the concrete
// record and its uniform summary.
func Fetch(db *gorm.DB, kind Kind, id uint) (interface{}, Summary, error) {
	entry, ok := kinds[kind]
	if !ok {
		return nil, Summary{}, ErrUnknownKind
	}
	record := entry.newRecord()
	if err := db.First(record, id).Error; err != nil {
		return nil, Summary{}, err
	}
	return record, entry.summarize(record), nil
}

// Decide applies an admin approval decision. Approving clears any earlier
// rejection reason; declining requires one. Every state is re-enterable, so
// no current-status check is made.
func Decide(db *gorm.DB, kind Kind, id uint, decision, reason string) (Summary, error) {
	entry, ok := kinds[kind]
	if !ok {
		return Summary{}, ErrUnknownKind
	}
	if decision != models.ApprovalApproved && decision != models.ApprovalDeclined {
		return Summary{}, ErrInvalidDecision
	}
	reason = strings.TrimSpace(reason)
	if decision == models.ApprovalDeclined && reason == "" {
		return Summary{}, ErrReasonRequired
	}

	record := entry.newRecord()
	if err := db.First(record, id).Error; err != nil {
		return Summary{}, err
	}

	updates := map[string]interface{}{
		"approval_status": decision,
	}
	if decision == models.ApprovalDeclined {
		updates["rejection_reason"] = reason
	} else {
		updates["rejection_reason"] = ""
	}

	if err := db.Model(record).Updates(updates).Error; err != nil {
		return Summary{}, err
	}

	if err := db.First(record, id).Error; err != nil {
		return Summary{}, err
	}
	return entry.summarize(record), nil
}

// ResetOnEdit sends an edited listing back to the review queue. Approval is
// not sticky across content edits, and a declined listing gets a fresh
// review instead of being stuck. Pending listings are left untouched.
func ResetOnEdit(db *gorm.DB, kind Kind, id uint) error {
	entry, ok := kinds[kind]
	if !ok {
		return ErrUnknownKind
	}
	return db.Model(entry.newRecord()).
		Where("id = ? AND approval_status <> ?", id, models.ApprovalPending).
		Updates(map[string]interface{}{
			"approval_status":  models.ApprovalPending,
			"rejection_reason": "",
		}).Error
}

// VisibleTo reports whether the viewer may see the listing at all.
// Non-approved listings are hidden from everyone except the owner and
// admins; callers translate false into a 404 so existence is not leaked.
func VisibleTo(s Summary, viewerID uint, role string) bool {
	if s.ApprovalStatus == models.ApprovalApproved {
		return true
	}
	if role == models.RoleAdmin {
		return true
	}
	return viewerID != 0 && viewerID == s.OwnerID
}

// ParseKind maps a URL segment onto a registered kind.
func ParseKind(raw string) (Kind, error) {
	kind := Kind(raw)
	if _, ok := kinds[kind]; !ok {
		return "", ErrUnknownKind
	}
	return kind, nil
}

// Label returns the human-readable name of a kind for messages.
func Label(kind Kind) string {
	if entry, ok := kinds[kind]; ok {
		return entry.label
	}
	return "Listing"
}
