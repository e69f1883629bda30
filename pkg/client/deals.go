package client

import (
	"time"

	"dealhub/internal/models"
)

// Window is the time state of a deal as shown to users.
type Window int

const (
	// Permanent deals have no validity window.
	Permanent Window = iota
	// Upcoming deals start in the future.
	Upcoming
	// Active deals are running at the reference time.
	Active
	// Expired deals ended before the reference time.
	Expired
)

func (w Window) String() string {
	switch w {
	case Permanent:
		return "permanent"
	case Upcoming:
		return "upcoming"
	case Active:
		return "active"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// DealWindow derives the state of deal at now. Missing dates leave that side
// of the window open.
func DealWindow(deal *models.Deal, now time.Time) Window {
	if deal.Permanent {
		return Permanent
	}
	if deal.StartDate != nil && now.Before(*deal.StartDate) {
		return Upcoming
	}
	if deal.EndDate != nil && now.After(*deal.EndDate) {
		return Expired
	}
	return Active
}

// CanEdit reports whether the session user created deal. This only decides
// which controls to show; the server enforces ownership on its own.
func CanEdit(s *Session, deal *models.Deal) bool {
	claims := s.Claims()
	return claims != nil && claims.ID != 0 && claims.ID == deal.CreatorID
}
