package backend

import (
	"bytes"
	"encoding/json"
	"sort"

	"chat-client/internal/models"
)

// decodeList accepts either a bare JSON array or an object wrapping the
// array under key.
func decodeList[T any](data []byte, key string, out *[]T) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return err
	}
	raw, ok := wrapper[key]
	if !ok || string(raw) == "null" {
		*out = nil
		return nil
	}
	return json.Unmarshal(raw, out)
}

// sortByTimestamp orders messages oldest first. The order is left alone
// when any message lacks a timestamp.
func sortByTimestamp(messages []models.Message) {
	for _, m := range messages {
		if m.Timestamp.IsZero() {
			return
		}
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp.Time)
	})
}
