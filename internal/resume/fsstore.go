package resume

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot — ссылка выходит за пределы каталога хранилища.
var ErrOutsideRoot = errors.New("document ref escapes storage root")

// FSStore — файловое хранилище документов и артефактов.
//
// Реализует и загрузку резюме (DocumentStore), и сохранение
// сгенерированных документов с оценкой (ArtifactStore). Ссылка —
// относительный путь внутри корневого каталога; выход за его пределы
// запрещён.
type FSStore struct {
	root string
}

// NewFSStore создаёт хранилище над каталогом root.
func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

// Fetch читает документ по ссылке.
func (s *FSStore) Fetch(ctx context.Context, ref string) ([]byte, string, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read document %q: %w", ref, err)
	}
	return data, filepath.Base(path), nil
}

// Put сохраняет артефакт и возвращает ссылку на него.
func (s *FSStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	path, err := s.resolve(name)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %q: %w", name, err)
	}
	return name, nil
}

// resolve превращает ссылку в абсолютный путь внутри корня.
func (s *FSStore) resolve(ref string) (string, error) {
	clean := filepath.Clean("/" + ref)
	if clean == "/" {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, ref)
	}
	path := filepath.Join(s.root, clean)
	if !strings.HasPrefix(path, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, ref)
	}
	return path, nil
}
