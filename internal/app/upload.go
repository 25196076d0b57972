package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"ropatopia/internal/auth"
	"ropatopia/internal/model"
	"ropatopia/internal/pkg/pdfinfo"
	"ropatopia/internal/repository"
)

const (
	DefaultTemplateType = "a"
	fileIDLength        = 9
	fileIDAlphabet      = "abcdefghijklmnopqrstuvwxyz0123456789"
	unknownFileType     = "Unknown"
	mimePDF             = "application/pdf"
)

var allowedUploadTypes = map[string]bool{
	mimePDF: true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"text/csv": true,
}

type UploadInput struct {
	Company      string
	SheetName    string
	TemplateType string
	File         *multipart.FileHeader
}

type UploadResult struct {
	BatchID     string          `json:"batch_id"`
	CompanyName string          `json:"company_name"`
	File        *model.FileInfo `json:"file"`
}

type UploadService struct {
	gateway   *Gateway
	maxSizeMB int
	logger    *slog.Logger
}

func NewUploadService(gateway *Gateway, maxSizeMB int, logger *slog.Logger) *UploadService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadService{gateway: gateway, maxSizeMB: maxSizeMB, logger: logger}
}

// Upload validates the form before anything is sent, then ingests the file.
func (s *UploadService) Upload(ctx context.Context, sess *auth.Session, input UploadInput) (*UploadResult, error) {
	company := strings.TrimSpace(input.Company)
	if company == "" {
		return nil, invalid("Please enter a company name.")
	}
	if input.File == nil {
		return nil, invalid("Please select a file to upload.")
	}
	info, err := NewFileInfo(input.File)
	if err != nil {
		return nil, err
	}
	if !IsAllowedUpload(info) {
		return nil, invalid("Only PDF, XLSX, and CSV files are allowed.")
	}
	if !repository.ValidateFileSize(info.Bytes, s.maxSizeMB) {
		return nil, invalid(fmt.Sprintf("File is too large. Maximum size is %d MB.", s.maxSizeMB))
	}

	template := strings.TrimSpace(input.TemplateType)
	if template == "" {
		template = DefaultTemplateType
	}

	f, err := input.File.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload failed: %w", err)
	}
	defer f.Close()

	batchID, err := s.gateway.For(sess).Ingestion.IngestFile(ctx, repository.FileUpload{
		Filename:    info.Name,
		ContentType: uploadContentType(info),
		Reader:      f,
	}, company, strings.TrimSpace(input.SheetName), template)
	if err != nil {
		s.logger.Error("ingest file failed", "client", sess.ID, "file", info.Name, "error", err)
		return nil, err
	}
	return &UploadResult{BatchID: batchID, CompanyName: company, File: info}, nil
}

func (s *UploadService) Batches(ctx context.Context, sess *auth.Session) ([]model.Batch, error) {
	return s.gateway.For(sess).Ingestion.ListBatches(ctx)
}

// NewFileInfo describes an uploaded file. The displayed type comes from the
// part header and is sniffed from the content when the header has none; the
// sniffed type never decides whether the upload is allowed.
func NewFileInfo(h *multipart.FileHeader) (*model.FileInfo, error) {
	declared := h.Header.Get("Content-Type")
	info := &model.FileInfo{
		ID:           randomFileID(),
		Name:         h.Filename,
		Size:         FormatFileSize(h.Size),
		Bytes:        h.Size,
		Type:         declared,
		Header:       h,
		DeclaredType: declared,
	}
	if info.Type == "application/octet-stream" {
		info.Type = ""
	}

	f, err := h.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload failed: %w", err)
	}
	defer f.Close()

	if info.Type == "" && h.Size > 0 {
		mt, err := mimetype.DetectReader(f)
		if err == nil {
			info.Type = mt.String()
		}
	}
	if info.Type == "" {
		info.Type = unknownFileType
	}

	if strings.HasPrefix(info.Type, mimePDF) || strings.EqualFold(filepath.Ext(h.Filename), ".pdf") {
		if pages, err := pdfinfo.PageCount(f, h.Size); err == nil {
			info.Pages = pages
		}
	}
	return info, nil
}

func uploadContentType(info *model.FileInfo) string {
	if info.Type == unknownFileType {
		return ""
	}
	return info.Type
}

// IsAllowedUpload accepts a file whose declared MIME type or extension is
// PDF, XLSX or CSV.
func IsAllowedUpload(info *model.FileInfo) bool {
	mt := info.DeclaredType
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return allowedUploadTypes[mt] || repository.IsFileTypeSupported(info.Name)
}

// FormatFileSize renders a byte count the way the upload form shows it,
// e.g. "0 Bytes", "512 Bytes", "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + units[i]
}

func randomFileID() string {
	buf := make([]byte, fileIDLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = fileIDAlphabet[int(b)%len(fileIDAlphabet)]
	}
	return string(buf)
}
