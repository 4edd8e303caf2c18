package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

const ipAddressAttribute = "ipAddress"

// rejection is a validation failure whose text is returned to the caller verbatim.
type rejection string

func (r rejection) Error() string { return string(r) }

const (
	errInvalidPayload rejection = "Invalid or missing JSON payload"
	errMissingFields  rejection = "Missing required fields (changeType, clientId, ipAddress)"
	errInvalidIP      rejection = "Invalid ipAddress attribute"
)

// Event is a validated webhook delivery.
type Event struct {
	ChangeType string `validate:"required"`
	WebhookID  string
	EntityType string
	EntityID   string
	ClientID   int64  `validate:"gt=0"`
	IPAddress  string `validate:"required,ip"`
}

// flexInt accepts a JSON number or a numeric string.
type flexInt struct {
	Value int64
	Set   bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
		if s == "" {
			return nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Billing sends integral ids, occasionally as floats.
		fv, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || fv != float64(int64(fv)) {
			return fmt.Errorf("not an integer: %s", b)
		}
		n = int64(fv)
	}
	f.Value, f.Set = n, true
	return nil
}

type attribute struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type webhookPayload struct {
	UUID       string  `json:"uuid"`
	ChangeType string  `json:"changeType"`
	Entity     string  `json:"entity"`
	EntityID   flexInt `json:"entityId"`
	ExtraData  struct {
		Entity struct {
			ID         flexInt     `json:"id"`
			ClientID   flexInt     `json:"clientId"`
			Attributes []attribute `json:"attributes"`
		} `json:"entity"`
	} `json:"extraData"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseEvent decodes and validates a raw webhook body. The returned error's
// text is safe to send to the caller.
func ParseEvent(body []byte) (Event, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil || len(probe) == 0 {
		return Event{}, errInvalidPayload
	}

	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Event{}, errMissingFields
	}

	ev := Event{
		ChangeType: strings.TrimSpace(p.ChangeType),
		WebhookID:  strings.TrimSpace(p.UUID),
		EntityType: p.Entity,
		ClientID:   p.ExtraData.Entity.ClientID.Value,
	}
	switch {
	case p.ExtraData.Entity.ID.Set:
		ev.EntityID = strconv.FormatInt(p.ExtraData.Entity.ID.Value, 10)
	case p.EntityID.Set:
		ev.EntityID = strconv.FormatInt(p.EntityID.Value, 10)
	}
	for _, a := range p.ExtraData.Entity.Attributes {
		if a.Key == ipAddressAttribute {
			if s, ok := a.Value.(string); ok {
				ev.IPAddress = strings.TrimSpace(s)
			}
			break
		}
	}

	if err := validate.Struct(ev); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Event{}, errMissingFields
		}
		badIP := false
		for _, fe := range verrs {
			if fe.Field() != "IPAddress" || fe.Tag() != "ip" {
				return Event{}, errMissingFields
			}
			badIP = true
		}
		if badIP {
			return Event{}, errInvalidIP
		}
		return Event{}, errMissingFields
	}
	return ev, nil
}

func (ev Event) clientIDString() string { return strconv.FormatInt(ev.ClientID, 10) }
