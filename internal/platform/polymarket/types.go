package polymarket

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/alanyoungcy/polyrank/internal/domain"
)

// The data API is loose about field types: numbers arrive as JSON numbers or
// as strings, and fields go missing or null. The flex types below never fail
// to decode; anything unusable becomes the zero value.

// flexFloat unmarshals from a JSON number or numeric string. Missing, null,
// NaN and unparseable values decode as 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	*f = flexFloat(parseLooseFloat(data))
	return nil
}

// flexInt unmarshals from a JSON number or numeric string, truncating any
// fractional part.
type flexInt int64

func (i *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		data = []byte(strings.TrimSpace(s))
	}
	if n, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		*i = flexInt(n)
		return nil
	}
	*i = flexInt(math.Trunc(parseLooseFloat(data)))
	return nil
}

// flexString unmarshals from a JSON string, or the literal text of a number or
// bool. Objects, arrays and null decode as "".
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	if len(data) > 0 && data[0] != '{' && data[0] != '[' && string(data) != "null" {
		*s = flexString(data)
		return nil
	}
	*s = ""
	return nil
}

func parseLooseFloat(data []byte) float64 {
	data = bytes.TrimSpace(data)
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		data = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// --------------------------------------------------------------------------
// Data API DTOs
// --------------------------------------------------------------------------

// APIActivity is one row of GET /activity.
type APIActivity struct {
	ProxyWallet  flexString `json:"proxyWallet"`
	Timestamp    flexInt    `json:"timestamp"`
	Type         flexString `json:"type"`
	Side         flexString `json:"side"`
	Size         flexFloat  `json:"size"`
	USDCSize     flexFloat  `json:"usdcSize"`
	Price        flexFloat  `json:"price"`
	Title        flexString `json:"title"`
	Outcome      flexString `json:"outcome"`
	ConditionID  flexString `json:"conditionId"`
	OutcomeIndex flexInt    `json:"outcomeIndex"`
}

// ToDomainActivity converts an APIActivity to a domain.Activity.
func (a APIActivity) ToDomainActivity() domain.Activity {
	return domain.Activity{
		ProxyWallet:  string(a.ProxyWallet),
		Timestamp:    int64(a.Timestamp),
		Type:         domain.ActivityType(a.Type),
		Side:         domain.Side(a.Side),
		Size:         float64(a.Size),
		USDCSize:     float64(a.USDCSize),
		Price:        float64(a.Price),
		Title:        string(a.Title),
		Outcome:      string(a.Outcome),
		ConditionID:  string(a.ConditionID),
		OutcomeIndex: int(a.OutcomeIndex),
	}
}
