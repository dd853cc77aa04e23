package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrFileNotFound = errors.New("file not found")

// FileService relays uploaded blobs to a flat directory on disk. The
// generated name doubles as the download id; there is no registry row
// and no per-file ownership.
type FileService struct {
	dir string
}

type StoredFile struct {
	FileID       string `json:"fileId"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimetype"`
}

func NewFileService(dir string) (*FileService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir failed: %w", err)
	}
	return &FileService{dir: dir}, nil
}

// Save writes the blob under a collision-resistant generated name,
// timestamp plus random suffix, keeping the original extension.
func (s *FileService) Save(originalName, mimeType string, src io.Reader) (*StoredFile, error) {
	ext := filepath.Ext(originalName)
	fileID := fmt.Sprintf("file-%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)

	dst, err := os.Create(filepath.Join(s.dir, fileID))
	if err != nil {
		return nil, fmt.Errorf("create upload file failed: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(dst.Name())
		return nil, fmt.Errorf("write upload file failed: %w", err)
	}

	return &StoredFile{
		FileID:       fileID,
		OriginalName: originalName,
		MimeType:     mimeType,
	}, nil
}

// Resolve maps a file id to its on-disk path. Ids carrying path
// separators are treated as not found rather than followed.
func (s *FileService) Resolve(fileID string) (string, error) {
	if fileID == "" || fileID != filepath.Base(fileID) || strings.Contains(fileID, "..") {
		return "", ErrFileNotFound
	}

	path := filepath.Join(s.dir, fileID)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrFileNotFound
	}
	return path, nil
}
