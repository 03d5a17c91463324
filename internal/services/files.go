package services

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"agencydesk/internal/config"
	"agencydesk/internal/database"
	"agencydesk/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrFileTooLarge = errors.New("file exceeds the maximum upload size")
	ErrEmptyFile    = errors.New("file is empty")
)

// FileService stores uploaded files on disk and their metadata in the
// database. The upload size is checked against the declared size before
// any bytes are written, and again while copying so a lying
// Content-Length cannot slip an oversized body through.
type FileService struct {
	db  *database.DB
	cfg *config.Config
	log *logrus.Logger
}

func NewFileService(db *database.DB, cfg *config.Config, log *logrus.Logger) *FileService {
	return &FileService{db: db, cfg: cfg, log: log}
}

// SaveUpload persists an uploaded file to disk and records its metadata
func (s *FileService) SaveUpload(header *multipart.FileHeader, projectID, uploadedBy string) (*models.FileObject, error) {
	if header == nil || header.Size == 0 {
		return nil, ErrEmptyFile
	}
	if header.Size > s.cfg.Upload.MaxSizeBytes {
		return nil, ErrFileTooLarge
	}

	if projectID != "" {
		var project models.Project
		if err := s.db.First(&project, "id = ?", projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrProjectNotFound
			}
			return nil, fmt.Errorf("failed to find project: %w", err)
		}
	}

	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(s.cfg.Upload.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	id := uuid.New().String()
	safeName := filepath.Base(header.Filename)
	storagePath := filepath.Join(s.cfg.Upload.Dir, id+filepath.Ext(safeName))

	dst, err := os.Create(storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.LimitReader(src, s.cfg.Upload.MaxSizeBytes+1))
	if err != nil {
		os.Remove(storagePath)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if written > s.cfg.Upload.MaxSizeBytes {
		os.Remove(storagePath)
		return nil, ErrFileTooLarge
	}

	file := &models.FileObject{
		ID:          id,
		ProjectID:   projectID,
		UploadedBy:  uploadedBy,
		Name:        safeName,
		Size:        written,
		ContentType: header.Header.Get("Content-Type"),
		StoragePath: storagePath,
	}

	if err := s.db.Create(file).Error; err != nil {
		os.Remove(storagePath)
		return nil, fmt.Errorf("failed to record file: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"file_id": file.ID,
		"name":    file.Name,
		"size":    file.Size,
	}).Info("file uploaded")

	return file, nil
}

// GetFile returns file metadata by ID
func (s *FileService) GetFile(fileID string) (*models.FileObject, error) {
	if strings.TrimSpace(fileID) == "" {
		return nil, ErrFileNotFound
	}

	var file models.FileObject
	if err := s.db.First(&file, "id = ?", fileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to fetch file: %w", err)
	}
	return &file, nil
}

// Open returns a reader over the stored bytes; the caller must close it
func (s *FileService) Open(fileID string) (*models.FileObject, io.ReadCloser, error) {
	file, err := s.GetFile(fileID)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(file.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open stored file: %w", err)
	}
	return file, f, nil
}

// ListFiles returns file metadata, optionally scoped to a project
func (s *FileService) ListFiles(projectID string) ([]models.FileObject, error) {
	var files []models.FileObject
	query := s.db.Model(&models.FileObject{})
	if projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}
	if err := query.Order("created_at DESC").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// DeleteFile removes the metadata row and the bytes on disk. A missing
// disk file is logged but does not fail the delete.
func (s *FileService) DeleteFile(fileID string) error {
	file, err := s.GetFile(fileID)
	if err != nil {
		return err
	}

	if err := s.db.Delete(&models.FileObject{}, "id = ?", fileID).Error; err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}

	if err := os.Remove(file.StoragePath); err != nil && !os.IsNotExist(err) {
		s.log.WithError(err).WithField("file_id", fileID).Warn("failed to remove stored file")
	}

	return nil
}
