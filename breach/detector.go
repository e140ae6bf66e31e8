package breach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/AnTengye/contractwatch/model"
	"github.com/AnTengye/contractwatch/pkg/logger"
	"github.com/AnTengye/contractwatch/prompt"
	"github.com/AnTengye/contractwatch/service"
)

// ErrNoExtraction is returned when breach detection is requested before extraction finished
var ErrNoExtraction = errors.New("contract has no extracted data")

// Detector runs the breach detection stage for stored contracts
type Detector struct {
	stage *prompt.Stage[prompt.BreachInput, model.BreachResult]
	store *service.SessionStore
	group singleflight.Group
	now   func() time.Time
}

// NewDetector creates a Detector
func NewDetector(stage *prompt.Stage[prompt.BreachInput, model.BreachResult], store *service.SessionStore) *Detector {
	return &Detector{stage: stage, store: store, now: time.Now}
}

// RulesFor returns the rules a contract was last checked with, or the defaults
func RulesFor(c *model.Contract) []model.BreachRule {
	if c.BreachDetection == nil {
		return DefaultRules()
	}
	if len(c.BreachDetection.Rules) > 0 {
		return append([]model.BreachRule(nil), c.BreachDetection.Rules...)
	}
	if c.BreachDetection.Conditions != "" {
		if rules, err := Parse(c.BreachDetection.Conditions); err == nil {
			return rules
		}
	}
	return DefaultRules()
}

// Detect checks the contract's extraction against rules and stores the result.
// Nil rules means the contract's previous rules, or the defaults.
// Identical concurrent requests for one contract share a single model call.
func (d *Detector) Detect(ctx context.Context, contractID string, rules []model.BreachRule) (*model.BreachDetectionRecord, error) {
	ctx = logger.WithContract(ctx, contractID)

	c, err := d.store.Get(contractID)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = RulesFor(c)
	}
	if err := Validate(rules); err != nil {
		return nil, err
	}
	if c.ExtractedData == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoExtraction, contractID)
	}

	conditions, err := Serialize(rules)
	if err != nil {
		return nil, err
	}
	contractData, err := json.Marshal(c.ExtractedData)
	if err != nil {
		return nil, fmt.Errorf("serialize extraction: %w", err)
	}

	v, err, shared := d.group.Do(contractID+"\x00"+conditions, func() (any, error) {
		result, err := d.stage.Invoke(ctx, prompt.BreachInput{
			ContractData:     string(contractData),
			BreachConditions: conditions,
		})
		if err != nil {
			return nil, err
		}

		detectedAt := d.now()
		record := &model.BreachDetectionRecord{
			Rules:      rules,
			Conditions: conditions,
			Result:     result,
			DetectedAt: &detectedAt,
		}
		if _, err := d.store.Update(contractID, model.ContractPatch{BreachDetection: record}); err != nil {
			return nil, err
		}
		logger.Info(ctx, "breach detection complete", "potential_breaches", len(result.PotentialBreaches))
		return record, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.Debug(ctx, "breach detection shared with concurrent request")
	}
	return v.(*model.BreachDetectionRecord).Clone(), nil
}
