package records

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/magabrotheeeer/abo-portal/internal/models"
)

// MaxImportErrors — сколько сообщений об ошибках отдаётся вызывающему.
const MaxImportErrors = 5

var requiredRequestFields = []string{"id", "plan", "price", "status", "createdAt", "email"}

// ValidateRequests разбирает и проверяет список заявок для импорта.
// Импорт атомарен: если хотя бы одна запись некорректна, возвращается
// *models.ValidationError с первыми MaxImportErrors сообщениями и ничего не применяется.
func ValidateRequests(raw []byte) ([]models.Request, error) {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, models.NewValidationError("invalid JSON: " + err.Error())
	}
	items, ok := root.([]any)
	if !ok {
		return nil, models.NewValidationError("root is not an array")
	}

	var msgs []string
	seen := make(map[string]int, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			msgs = append(msgs, fmt.Sprintf("#%d: not an object", i))
			continue
		}
		msgs = append(msgs, validateRequestObject(i, obj, seen)...)
	}
	if len(msgs) > 0 {
		if len(msgs) > MaxImportErrors {
			msgs = msgs[:MaxImportErrors]
		}
		return nil, models.NewValidationError(msgs...)
	}

	var out []models.Request
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, models.NewValidationError("malformed record: " + err.Error())
	}
	return out, nil
}

func validateRequestObject(i int, obj map[string]any, seen map[string]int) []string {
	var msgs []string
	for _, field := range requiredRequestFields {
		if _, ok := obj[field]; !ok {
			msgs = append(msgs, fmt.Sprintf("#%d: missing field: %s", i, field))
		}
	}
	if v, ok := obj["id"]; ok {
		id, isStr := v.(string)
		switch {
		case !isStr || id == "":
			msgs = append(msgs, fmt.Sprintf("#%d: id must be a non-empty string", i))
		default:
			if prev, dup := seen[id]; dup {
				msgs = append(msgs, fmt.Sprintf("#%d: duplicate id %q (also #%d)", i, id, prev))
			} else {
				seen[id] = i
			}
		}
	}
	if v, ok := obj["plan"]; ok {
		if _, isStr := v.(string); !isStr {
			msgs = append(msgs, fmt.Sprintf("#%d: plan must be a string", i))
		}
	}
	if v, ok := obj["price"]; ok {
		if _, isNum := v.(float64); !isNum {
			msgs = append(msgs, fmt.Sprintf("#%d: price must be a number", i))
		}
	}
	if v, ok := obj["status"]; ok {
		if s, isStr := v.(string); !isStr || !models.Status(s).Valid() {
			msgs = append(msgs, fmt.Sprintf("#%d: unknown status", i))
		}
	}
	if v, ok := obj["createdAt"]; ok {
		s, isStr := v.(string)
		if !isStr {
			msgs = append(msgs, fmt.Sprintf("#%d: createdAt must be a timestamp", i))
		} else if _, err := time.Parse(time.RFC3339, s); err != nil {
			msgs = append(msgs, fmt.Sprintf("#%d: createdAt must be a timestamp", i))
		}
	}
	if v, ok := obj["email"]; ok {
		if s, isStr := v.(string); !isStr || !models.IsEmail(s) {
			msgs = append(msgs, fmt.Sprintf("#%d: invalid email", i))
		}
	}
	return msgs
}
