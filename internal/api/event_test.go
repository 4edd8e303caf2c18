package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent([]byte(webhookBody("suspend", "abc-1", 42, "100.64.16.50")))
	require.NoError(t, err)
	assert.Equal(t, Event{
		ChangeType: "suspend",
		WebhookID:  "abc-1",
		EntityType: "service",
		EntityID:   "17",
		ClientID:   42,
		IPAddress:  "100.64.16.50",
	}, ev)
}

func TestParseEventStringClientID(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"changeType":"end","extraData":{"entity":{"clientId":"7","attributes":[{"key":"ipAddress","value":"2001:db8::5"}]}}}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), ev.ClientID)
	assert.Equal(t, "2001:db8::5", ev.IPAddress)
	assert.Empty(t, ev.WebhookID)
}

func TestParseEventRejections(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"not json":        {`nope`, "Invalid or missing JSON payload"},
		"empty object":    {`{}`, "Invalid or missing JSON payload"},
		"array":           {`[1,2]`, "Invalid or missing JSON payload"},
		"no change type":  {webhookBody("", "u", 42, "100.64.16.50"), "Missing required fields (changeType, clientId, ipAddress)"},
		"zero client":     {webhookBody("suspend", "u", 0, "100.64.16.50"), "Missing required fields (changeType, clientId, ipAddress)"},
		"no ip":           {`{"changeType":"suspend","extraData":{"entity":{"clientId":1,"attributes":[]}}}`, "Missing required fields (changeType, clientId, ipAddress)"},
		"bad client type": {`{"changeType":"suspend","extraData":{"entity":{"clientId":"abc"}}}`, "Missing required fields (changeType, clientId, ipAddress)"},
		"bad ip":          {webhookBody("suspend", "u", 42, "not-an-ip"), "Invalid ipAddress attribute"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseEvent([]byte(tc.body))
			require.Error(t, err)
			assert.Equal(t, tc.want, err.Error())
		})
	}
}
