package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AnTengye/contractwatch/config"
	"github.com/AnTengye/contractwatch/model"
)

var (
	// ErrNotFound is returned when no contract has the requested id
	ErrNotFound = errors.New("contract not found")
	// ErrAlertNotFound is returned when no alert has the requested id
	ErrAlertNotFound = errors.New("alert not found")
	// ErrInvalidTransition is returned when a patch would move a contract's status backwards
	ErrInvalidTransition = errors.New("invalid status transition")
)

// SessionStore is the in-memory store for contracts and system alerts.
// Every method works on copies; callers never share memory with the store.
type SessionStore struct {
	contracts    map[string]*model.Contract
	alerts       []model.Alert // system alerts not tied to a contract
	mu           sync.RWMutex
	maxContracts int // Maximum contracts to keep, 0 = unlimited
	now          func() time.Time
}

// ListFilter narrows List results. Empty fields match everything.
type ListFilter struct {
	Search string // case-insensitive, matched against name and parties
	Status string
}

// NewSessionStore creates an empty store
func NewSessionStore(cfg *config.StoreConfig) *SessionStore {
	maxContracts := cfg.MaxContracts
	if maxContracts < 0 {
		maxContracts = 0
	}
	slog.Info("session store initialized", "max_contracts", maxContracts)
	return &SessionStore{
		contracts:    make(map[string]*model.Contract),
		maxContracts: maxContracts,
		now:          time.Now,
	}
}

// Add stores a new contract, filling in id, upload time and status when unset
func (s *SessionStore) Add(c *model.Contract) *model.Contract {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := c.Clone()
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	now := s.now()
	if stored.UploadedAt.IsZero() {
		stored.UploadedAt = now
	}
	if stored.Status == "" {
		stored.Status = model.StatusNew
	}
	stored.UpdatedAt = now
	s.contracts[stored.ID] = stored

	s.cleanupIfNeeded()
	return stored.Clone()
}

// Get returns a copy of the contract
func (s *SessionStore) Get(id string) (*model.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.Clone(), nil
}

// List returns matching contracts, most recently uploaded first
func (s *SessionStore) List(filter ListFilter) []*model.Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	result := make([]*model.Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if search != "" && !matchesSearch(c, search) {
			continue
		}
		result = append(result, c.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UploadedAt.Equal(result[j].UploadedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})
	return result
}

func matchesSearch(c *model.Contract, search string) bool {
	if strings.Contains(strings.ToLower(c.Name), search) {
		return true
	}
	if c.ExtractedData == nil {
		return false
	}
	for _, p := range c.ExtractedData.PartiesInvolved {
		if strings.Contains(strings.ToLower(p), search) {
			return true
		}
	}
	return false
}

// Update merges patch into the stored contract. Nil patch fields are left alone.
func (s *SessionStore) Update(id string, patch model.ContractPatch) (*model.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if patch.Status != nil {
		if !model.CanTransition(c.Status, *patch.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, *patch.Status)
		}
	}

	next := c.Clone()
	applyPatch(next, patch)
	next.UpdatedAt = s.now()
	s.contracts[id] = next
	return next.Clone(), nil
}

func applyPatch(c *model.Contract, p model.ContractPatch) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.OriginalText != nil {
		c.OriginalText = *p.OriginalText
	}
	if p.SourceObject != nil {
		c.SourceObject = *p.SourceObject
	}
	if p.OCRImproved != nil {
		v := *p.OCRImproved
		c.OCRImproved = &v
	}
	if p.ExtractedData != nil {
		c.ExtractedData = p.ExtractedData.Clone()
	}
	if p.QualityAssessment != nil {
		v := *p.QualityAssessment
		c.QualityAssessment = &v
	}
	if p.BreachDetection != nil {
		c.BreachDetection = p.BreachDetection.Clone()
	}
	if p.Penalties != nil {
		c.Penalties = append([]model.CalculatedPenalty(nil), p.Penalties...)
	}
	if p.Alerts != nil {
		c.Alerts = model.CloneAlerts(p.Alerts)
	}
	if p.FailedStage != nil {
		c.FailedStage = *p.FailedStage
	}
	if p.ErrorMsg != nil {
		c.ErrorMsg = *p.ErrorMsg
	}
}

// SetPenalties replaces the contract's penalty list
func (s *SessionStore) SetPenalties(id string, penalties []model.CalculatedPenalty) error {
	if penalties == nil {
		penalties = []model.CalculatedPenalty{}
	}
	_, err := s.Update(id, model.ContractPatch{Penalties: penalties})
	return err
}

// AppendAlerts adds alerts to a contract, assigning ids where missing
func (s *SessionStore) AppendAlerts(id string, alerts ...model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := c.Clone()
	for _, a := range alerts {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		a.ContractID, a.ContractName = "", ""
		next.Alerts = append(next.Alerts, a.Clone())
	}
	next.UpdatedAt = s.now()
	s.contracts[id] = next
	return nil
}

// AddAlert stores a system alert and returns it with its id
func (s *SessionStore) AddAlert(a model.Alert) model.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.TriggeredAt == nil {
		now := s.now()
		a.TriggeredAt = &now
	}
	s.alerts = append(s.alerts, a.Clone())
	return a.Clone()
}

// UpdateAlert applies fn to the alert with the given id, whether it is a system alert or
// belongs to a contract
func (s *SessionStore) UpdateAlert(alertID string, fn func(a *model.Alert)) (model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == alertID {
			fn(&s.alerts[i])
			return s.alerts[i].Clone(), nil
		}
	}
	for id, c := range s.contracts {
		for i := range c.Alerts {
			if c.Alerts[i].ID != alertID {
				continue
			}
			next := c.Clone()
			fn(&next.Alerts[i])
			next.UpdatedAt = s.now()
			s.contracts[id] = next
			a := next.Alerts[i].Clone()
			a.ContractID, a.ContractName = id, next.Name
			return a, nil
		}
	}
	return model.Alert{}, fmt.Errorf("%w: %s", ErrAlertNotFound, alertID)
}

// Alerts returns the system alerts
func (s *SessionStore) Alerts() []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneAlerts(s.alerts)
}

// cleanupIfNeeded removes oldest contracts if store exceeds maxContracts
// Must be called with lock held
func (s *SessionStore) cleanupIfNeeded() {
	if s.maxContracts <= 0 {
		return // Unlimited
	}

	if len(s.contracts) <= s.maxContracts {
		return
	}

	contracts := make([]*model.Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		contracts = append(contracts, c)
	}
	sort.Slice(contracts, func(i, j int) bool {
		return contracts[i].UploadedAt.Before(contracts[j].UploadedAt)
	})

	removeCount := len(contracts) - s.maxContracts
	for i := 0; i < removeCount; i++ {
		slog.Info("evicting old contract",
			"contract_id", contracts[i].ID,
			"uploaded_at", contracts[i].UploadedAt,
		)
		delete(s.contracts, contracts[i].ID)
	}
}

// Count returns the number of contracts in the store
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contracts)
}

// CountByStatus returns how many contracts are in each status
func (s *SessionStore) CountByStatus() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int, 4)
	for _, c := range s.contracts {
		counts[c.Status]++
	}
	return counts
}
