package service

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/AnTengye/contractwatch/model"
)

// ExpirationWindow is how long before expiry a contract starts raising an alert
const ExpirationWindow = 30 * 24 * time.Hour

// AlertFilter narrows the alert feed. Nil fields match everything.
type AlertFilter struct {
	Severity     string
	Acknowledged *bool
}

// GenerateExpirationAlerts appends an expiration alert to every contract whose expiration date
// falls within the next ExpirationWindow and which has no expiration alert for that date yet.
// It returns the alerts it created.
func (s *SessionStore) GenerateExpirationAlerts(now time.Time) []model.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created []model.Alert
	for id, c := range s.contracts {
		if c.ExtractedData == nil {
			continue
		}
		expires, ok := model.ParseDate(c.ExtractedData.ExpirationDate)
		if !ok {
			continue
		}
		if now.Before(expires.Add(-ExpirationWindow)) || now.After(expires) {
			continue
		}
		if hasExpirationAlert(c.Alerts, expires) {
			continue
		}

		triggered := now
		due := expires
		alert := model.Alert{
			ID:          uuid.New().String(),
			Type:        model.AlertExpiration,
			Message:     fmt.Sprintf("Contract %q is expiring soon.", c.Name),
			DueDate:     &due,
			Severity:    model.SeverityHigh,
			TriggeredAt: &triggered,
		}
		next := c.Clone()
		next.Alerts = append(next.Alerts, alert)
		next.UpdatedAt = now
		s.contracts[id] = next

		slog.Info("expiration alert raised", "contract_id", id, "due_date", due.Format(model.DateLayout))
		alert.ContractID, alert.ContractName = id, c.Name
		created = append(created, alert.Clone())
	}
	return created
}

func hasExpirationAlert(alerts []model.Alert, due time.Time) bool {
	for _, a := range alerts {
		if a.Type == model.AlertExpiration && a.DueDate != nil && a.DueDate.Equal(due) {
			return true
		}
	}
	return false
}

// AlertFeed returns system alerts and every contract's alerts, unacknowledged first,
// then by due date, latest first. Contract alerts carry the contract id and name.
func (s *SessionStore) AlertFeed(filter AlertFilter) []model.Alert {
	s.mu.RLock()
	feed := make([]model.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		feed = append(feed, a.Clone())
	}
	for id, c := range s.contracts {
		for _, a := range c.Alerts {
			a = a.Clone()
			a.ContractID, a.ContractName = id, c.Name
			feed = append(feed, a)
		}
	}
	s.mu.RUnlock()

	filtered := feed[:0]
	for _, a := range feed {
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		if filter.Acknowledged != nil && a.Acknowledged != *filter.Acknowledged {
			continue
		}
		filtered = append(filtered, a)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.Acknowledged != b.Acknowledged {
			return !a.Acknowledged
		}
		da, db := dueUnix(a), dueUnix(b)
		if da != db {
			return da > db
		}
		return a.ID < b.ID
	})
	return filtered
}

func dueUnix(a model.Alert) int64 {
	if a.DueDate == nil {
		return 0
	}
	return a.DueDate.Unix()
}

// AcknowledgeAlert marks an alert acknowledged wherever it is stored
func (s *SessionStore) AcknowledgeAlert(alertID string) (model.Alert, error) {
	return s.UpdateAlert(alertID, func(a *model.Alert) {
		a.Acknowledged = true
	})
}
