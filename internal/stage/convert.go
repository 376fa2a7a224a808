package stage

import (
	"encoding/json"
	"fmt"
)

// toMap переводит структуру в map[string]any через JSON-раунд-трип.
// Результаты стадий хранятся в журнале как generic-объекты, поэтому
// типизированные значения приводятся к той же форме перед записью.
func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode stage output: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode stage output: %w", err)
	}
	return m, nil
}

// fromMap переводит generic-объект обратно в типизированную структуру.
func fromMap(m map[string]any, dst any) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode stage output: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode stage output: %w", err)
	}
	return nil
}
