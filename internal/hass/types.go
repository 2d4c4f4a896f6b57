// Package hass speaks the Home Assistant websocket API: handshake,
// authentication and sequential request/response exchanges.
package hass

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrConnect wraps every socket-level failure (dial, read, write).
var ErrConnect = errors.New("hass: connection failed")

// AuthError is returned when the server answers the auth frame with anything
// other than auth_ok.
type AuthError struct {
	Type    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return "hass: authentication failed: " + e.Message
	}
	if e.Type != "" {
		return "hass: authentication failed (" + e.Type + ")"
	}
	return "hass: authentication failed"
}

// Command is one outgoing command frame without its id.
type Command map[string]any

// Result is the decoded "result" frame that answers a command.
type Result struct {
	ID      uint64          `json:"id"`
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *ResultError    `json:"error,omitempty"`
}

type ResultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Err converts an unsuccessful result into an error carrying the remote
// message. It returns nil for successful results.
func (r *Result) Err(fallback string) error {
	if r == nil {
		return errors.New(fallback)
	}
	if r.Success {
		return nil
	}
	if r.Error != nil && strings.TrimSpace(r.Error.Message) != "" {
		return &CommandError{Code: r.Error.Code, Message: r.Error.Message}
	}
	return &CommandError{Message: fallback}
}

// CommandError is a success:false answer to a command.
type CommandError struct {
	Code    string
	Message string
}

func (e *CommandError) Error() string { return e.Message }

// Decode unmarshals the result payload into dst.
func (r *Result) Decode(dst any) error {
	if len(r.Result) == 0 || string(r.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(r.Result, dst); err != nil {
		return fmt.Errorf("hass: decode result: %w", err)
	}
	return nil
}

// EntityState is one entry of a get_states answer. Attributes keep whatever
// JSON shape the integration published; integral numbers decode to int64 and
// every other number to float64.
type EntityState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

func (s *EntityState) UnmarshalJSON(b []byte) error {
	var w struct {
		EntityID    string          `json:"entity_id"`
		State       any             `json:"state"`
		Attributes  json.RawMessage `json:"attributes"`
		LastChanged string          `json:"last_changed"`
		LastUpdated string          `json:"last_updated"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	s.EntityID = w.EntityID
	s.State = looseString(w.State)
	s.LastChanged = ParseTime(w.LastChanged)
	s.LastUpdated = ParseTime(w.LastUpdated)
	s.Attributes = nil
	if attrs, ok := DecodeLoose(w.Attributes).(map[string]any); ok {
		s.Attributes = attrs
	}
	return nil
}

func (s EntityState) FriendlyName() string {
	return s.AttrString("friendly_name")
}

func (s EntityState) Unit() string {
	return s.AttrString("unit_of_measurement")
}

func (s EntityState) AttrString(key string) string {
	return looseString(s.Attributes[key])
}

// AttrFloat returns a numeric attribute, accepting numeric strings.
func (s EntityState) AttrFloat(key string) (float64, bool) {
	return LooseFloat(s.Attributes[key])
}

// DecodeLoose decodes arbitrary JSON into maps, slices, strings, bools, int64
// and float64. Invalid input yields nil.
func DecodeLoose(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return normalize(v)
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	default:
		return v
	}
}

// LooseFloat converts numbers and numeric strings.
func LooseFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func looseString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ParseTime accepts the timestamp layouts Home Assistant emits. Unparseable
// input yields the zero time.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
