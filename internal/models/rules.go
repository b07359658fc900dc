// internal/models/rules.go
package models

import "fmt"

// WildDrawFourMode selects how Wild Draw Four legality is enforced.
type WildDrawFourMode int

const (
	// DisallowBluffing rejects the play outright while the player holds a
	// matching-colour card.
	DisallowBluffing WildDrawFourMode = iota
	// AllowBluffing accepts every play and lets the victim challenge it.
	AllowBluffing
	// FreePlay applies no legality check and no challenge path.
	FreePlay
)

// Ruleset captures the per-room game configuration: wild rules, stacking,
// timers, and all scoring knobs. A zero Ruleset is not usable; start from
// DefaultRules.
type Ruleset struct {
	WildDrawFour      WildDrawFourMode `json:"wildDrawFour"`
	Progressive       bool             `json:"progressive"`
	ProgressiveCap    int              `json:"progressiveCap"`
	OutLimit          int              `json:"outLimit"`
	AllowMidRoundJoin bool             `json:"allowMidRoundJoin"`

	EntryTimeSec int `json:"entryTimeSec"`
	TurnTimeSec  int `json:"turnTimeSec"`
	HintTimeSec  int `json:"hintTimeSec"`

	HandBonus             bool  `json:"handBonus"`
	VictoryBonus          []int `json:"victoryBonus"`
	VictoryBonusRepeat    bool  `json:"victoryBonusRepeat"`
	VictoryBonusLastPlace bool  `json:"victoryBonusLastPlace"`
	ParticipationBonus    int   `json:"participationBonus"`

	QuitPenalty                int `json:"quitPenalty"`
	QuitsAllowedWithoutPenalty int `json:"quitsAllowedWithoutPenalty"`
	QuitsAllowedTimeSec        int `json:"quitsAllowedTimeSec"`

	AIEnabled bool `json:"aiEnabled"`
}

// DefaultRules returns the standard configuration: bluffable draw fours,
// progressive stacking capped at 8, one player out ends the round.
func DefaultRules() Ruleset {
	return Ruleset{
		WildDrawFour:               AllowBluffing,
		Progressive:                true,
		ProgressiveCap:             8,
		OutLimit:                   1,
		EntryTimeSec:               60,
		TurnTimeSec:                90,
		HintTimeSec:                15,
		HandBonus:                  true,
		VictoryBonus:               []int{30, 10, 5},
		VictoryBonusRepeat:         false,
		VictoryBonusLastPlace:      false,
		ParticipationBonus:         5,
		QuitPenalty:                10,
		QuitsAllowedWithoutPenalty: 2,
		QuitsAllowedTimeSec:        3600,
		AIEnabled:                  true,
	}
}

// Update applies new rule values from a JSON-decoded map. Keys that are
// absent keep their old value; a value of the wrong type is an error and
// leaves the receiver unchanged from that key onward.
func (r *Ruleset) Update(newRules map[string]interface{}) error {
	assignBool := func(field *bool, key string) error {
		if val, exists := newRules[key]; exists && val != nil {
			b, ok := val.(bool)
			if !ok {
				return fmt.Errorf("invalid type for %s", key)
			}
			*field = b
		}
		return nil
	}

	assignInt := func(field *int, key string, minVal int) error {
		val, exists := newRules[key]
		if !exists || val == nil {
			return nil
		}
		var n int
		switch v := val.(type) {
		case float64:
			n = int(v)
		case int:
			n = v
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		if n < minVal {
			return fmt.Errorf("%s must be at least %d", key, minVal)
		}
		*field = n
		return nil
	}

	if val, exists := newRules["wildDrawFour"]; exists && val != nil {
		var n int
		switch v := val.(type) {
		case float64:
			n = int(v)
		case int:
			n = v
		default:
			return fmt.Errorf("invalid value for wildDrawFour")
		}
		if n < 0 || n > int(FreePlay) {
			return fmt.Errorf("invalid value for wildDrawFour")
		}
		r.WildDrawFour = WildDrawFourMode(n)
	}
	if err := assignBool(&r.Progressive, "progressive"); err != nil {
		return err
	}
	if err := assignInt(&r.ProgressiveCap, "progressiveCap", 2); err != nil {
		return err
	}
	if err := assignInt(&r.OutLimit, "outLimit", 1); err != nil {
		return err
	}
	if err := assignBool(&r.AllowMidRoundJoin, "allowMidRoundJoin"); err != nil {
		return err
	}
	if err := assignInt(&r.EntryTimeSec, "entryTimeSec", 0); err != nil {
		return err
	}
	if err := assignInt(&r.TurnTimeSec, "turnTimeSec", 0); err != nil {
		return err
	}
	if err := assignInt(&r.HintTimeSec, "hintTimeSec", 0); err != nil {
		return err
	}
	if err := assignBool(&r.HandBonus, "handBonus"); err != nil {
		return err
	}
	if val, exists := newRules["victoryBonus"]; exists && val != nil {
		arr, ok := val.([]interface{})
		if !ok {
			return fmt.Errorf("invalid type for victoryBonus")
		}
		bonus := make([]int, 0, len(arr))
		for _, e := range arr {
			f, ok := e.(float64)
			if !ok {
				return fmt.Errorf("invalid type for victoryBonus entry")
			}
			bonus = append(bonus, int(f))
		}
		r.VictoryBonus = bonus
	}
	if err := assignBool(&r.VictoryBonusRepeat, "victoryBonusRepeat"); err != nil {
		return err
	}
	if err := assignBool(&r.VictoryBonusLastPlace, "victoryBonusLastPlace"); err != nil {
		return err
	}
	if err := assignInt(&r.ParticipationBonus, "participationBonus", 0); err != nil {
		return err
	}
	if err := assignInt(&r.QuitPenalty, "quitPenalty", 0); err != nil {
		return err
	}
	if err := assignInt(&r.QuitsAllowedWithoutPenalty, "quitsAllowedWithoutPenalty", 0); err != nil {
		return err
	}
	if err := assignInt(&r.QuitsAllowedTimeSec, "quitsAllowedTimeSec", 0); err != nil {
		return err
	}
	return assignBool(&r.AIEnabled, "aiEnabled")
}
