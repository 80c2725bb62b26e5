// Пакет filestore — хранилище артефактов на локальном диске.
// Запись: temp файл → запись + SHA-256 → fsync → atomic rename.
package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bigkaa/replaystore/internal/storage"
)

// FileStore — управление файлами артефактов на диске.
type FileStore struct {
	// dataDir — корневая директория хранения (RC_DATA_DIR)
	dataDir string
	logger  *slog.Logger
}

// New создаёт FileStore. Создаёт директорию, если она не существует.
func New(dataDir string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &FileStore{
		dataDir: dataDir,
		logger:  logger.With(slog.String("component", "filestore")),
	}, nil
}

// DataDir возвращает путь к директории данных.
func (s *FileStore) DataDir() string {
	return s.dataDir
}

// Put записывает данные из reader в новый файл и возвращает ссылку.
// При ошибке temp файл удаляется.
func (s *FileStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ref := storage.NewRef(name)
	fullPath := s.fullPath(ref)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("ошибка создания каталога артефакта: %w", err)
	}
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(r, hasher))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	s.logger.Debug("Артефакт сохранён",
		slog.String("ref", ref),
		slog.Int64("size", size),
		slog.String("sha256", hex.EncodeToString(hasher.Sum(nil))),
	)
	return ref, nil
}

// Read возвращает содержимое артефакта.
func (s *FileStore) Read(ctx context.Context, ref string) ([]byte, error) {
	if err := storage.ValidateRef(ref); err != nil {
		return nil, fmt.Errorf("%w: %q", err, ref)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.fullPath(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, ref)
		}
		return nil, fmt.Errorf("ошибка чтения артефакта %s: %w", ref, err)
	}
	return data, nil
}

// Delete удаляет файл артефакта и его опустевший каталог.
func (s *FileStore) Delete(ctx context.Context, ref string) error {
	if err := storage.ValidateRef(ref); err != nil {
		return fmt.Errorf("%w: %q", err, ref)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath := s.fullPath(ref)
	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, ref)
		}
		return fmt.Errorf("ошибка удаления артефакта %s: %w", ref, err)
	}

	// Каталог мог содержать только этот файл; непустой каталог не удаляется
	_ = os.Remove(filepath.Dir(fullPath))
	return nil
}

func (s *FileStore) fullPath(ref string) string {
	return filepath.Join(s.dataDir, filepath.FromSlash(ref))
}
