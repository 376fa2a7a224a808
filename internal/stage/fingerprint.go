package stage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shaiso/Kadra/internal/domain"
)

// Fingerprint вычисляет детерминированный хэш входа стадии.
//
// Хэш строится над каноническим представлением входных частей:
// ключи сортируются, значения сериализуются в JSON. Одинаковый вход —
// одинаковый fingerprint независимо от порядка добавления частей,
// что и позволяет идемпотентному гейту узнавать уже выполненную работу.
func Fingerprint(stage domain.Stage, parts map[string]any) string {
	keys := make([]string, 0, len(parts))
	for k := range parts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(stage))
	for _, k := range keys {
		b.WriteByte('\n')
		b.WriteString(k)
		b.WriteByte('=')
		raw, err := json.Marshal(parts[k])
		if err != nil {
			// Невалидное значение не должно ронять конвейер:
			// подставляем текстовое представление.
			raw = []byte(fmt.Sprintf("%v", parts[k]))
		}
		b.Write(raw)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
