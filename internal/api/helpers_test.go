package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v body=%q", err, rec.Body.String())
	}
	return body
}

func assertBodyContains(t *testing.T, rec *httptest.ResponseRecorder, substr string) {
	t.Helper()
	if !strings.Contains(rec.Body.String(), substr) {
		t.Fatalf("body %q does not contain %q", rec.Body.String(), substr)
	}
}

func webhookBody(changeType, uuid string, clientID int, ip string) string {
	payload := map[string]any{
		"uuid":       uuid,
		"changeType": changeType,
		"entity":     "service",
		"entityId":   "17",
		"extraData": map[string]any{
			"entity": map[string]any{
				"id":       17,
				"clientId": clientID,
				"attributes": []map[string]any{
					{"key": "other", "value": "x"},
					{"key": "ipAddress", "value": ip},
				},
			},
		},
	}
	b, _ := json.Marshal(payload)
	return string(b)
}
