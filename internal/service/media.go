package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/lovemap/internal/db"
)

// DefaultMaxUploadBytes caps a single upload at 100 MB.
const DefaultMaxUploadBytes int64 = 100 << 20

var mediaExtensions = map[string]string{
	".jpg":  db.ItemImage,
	".jpeg": db.ItemImage,
	".png":  db.ItemImage,
	".gif":  db.ItemImage,
	".mp4":  db.ItemVideo,
	".webm": db.ItemVideo,
	".mp3":  db.ItemAudio,
	".wav":  db.ItemAudio,
	".m4a":  db.ItemAudio,
	".ogg":  db.ItemAudio,
}

// Browsers report these for recordings whose extension is not in the table.
// Such uploads must sniff as one of these containers and are stored under the
// detected extension.
var extraVideoMIMEs = map[string]struct{}{
	"video/mp4":       {},
	"video/webm":      {},
	"video/quicktime": {},
	"video/x-msvideo": {},
	"video/avi":       {},
}

// ClassifyMedia resolves the item type for an attached file. Known
// extensions decide the type; anything else keeps the declared type.
func ClassifyMedia(declared, filename string) string {
	if kind, ok := mediaExtensions[strings.ToLower(filepath.Ext(filename))]; ok {
		return kind
	}
	return declared
}

// Upload describes an incoming file independent of the transport.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// UploadFromHeader adapts a multipart file header.
func UploadFromHeader(header *multipart.FileHeader) *Upload {
	if header == nil {
		return nil
	}
	return &Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Open: func() (io.ReadCloser, error) {
			file, err := header.Open()
			if err != nil {
				return nil, err
			}
			return file, nil
		},
	}
}

// MediaStorage persists uploads and removes them by reference.
type MediaStorage interface {
	Save(upload *Upload) (string, error)
	Remove(ref string) error
}

// MediaStore keeps uploads in a local directory and hands out URL references
// of the form <urlPrefix>/<name>.
type MediaStore struct {
	dir       string
	urlPrefix string
	maxBytes  int64
}

// NewMediaStore creates a MediaStore. A non-positive maxBytes falls back to
// DefaultMaxUploadBytes.
func NewMediaStore(dir, urlPrefix string, maxBytes int64) *MediaStore {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	prefix := "/" + strings.Trim(strings.TrimSpace(urlPrefix), "/")
	if prefix == "/" {
		prefix = "/uploads"
	}
	return &MediaStore{dir: dir, urlPrefix: prefix, maxBytes: maxBytes}
}

// Dir returns the directory uploads are written to.
func (m *MediaStore) Dir() string {
	return m.dir
}

// URLPrefix returns the path references are rooted at.
func (m *MediaStore) URLPrefix() string {
	return m.urlPrefix
}

// Save validates upload and writes it under a generated name.
func (m *MediaStore) Save(upload *Upload) (string, error) {
	if upload == nil || upload.Open == nil {
		return "", ErrFileRequired
	}
	if upload.Size > m.maxBytes {
		return "", ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(upload.Filename))
	if !acceptUpload(ext, normalizeMIME(upload.ContentType)) {
		return "", ErrUnsupportedFile
	}

	src, err := upload.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	head := make([]byte, 261)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	ext, ok := storedExtension(head, ext)
	if !ok {
		return "", ErrUnsupportedFile
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s%s", time.Now().Format("20060102"), uuid.New().String(), ext)
	target := filepath.Join(m.dir, name)
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	written, err := io.Copy(dst, io.LimitReader(io.MultiReader(bytes.NewReader(head), src), m.maxBytes+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > m.maxBytes {
		err = ErrFileTooLarge
	}
	if err != nil {
		os.Remove(target)
		if errors.Is(err, ErrFileTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write upload file: %w", err)
	}

	return path.Join(m.urlPrefix, name), nil
}

// Remove deletes the file behind ref. A missing file is not an error.
func (m *MediaStore) Remove(ref string) error {
	target, err := m.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Path maps a reference returned by Save back to its location on disk.
func (m *MediaStore) Path(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	name := strings.TrimPrefix(trimmed, m.urlPrefix+"/")
	if name == trimmed || name == "" || name != path.Base(name) || name == ".." || strings.Contains(name, `\`) {
		return "", fmt.Errorf("invalid media reference %q", ref)
	}
	return filepath.Join(m.dir, name), nil
}

func normalizeMIME(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

func acceptUpload(ext, mimeType string) bool {
	kind, ok := mediaExtensions[ext]
	if !ok {
		_, video := extraVideoMIMEs[mimeType]
		return video
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		return true
	}
	return strings.HasPrefix(mimeType, kind+"/")
}

// storedExtension checks the leading bytes and returns the extension the file
// is written under. Extensions outside the table never reach the disk.
func storedExtension(head []byte, ext string) (string, bool) {
	if kind, ok := mediaExtensions[ext]; ok {
		return ext, sniffMatches(head, kind)
	}
	detected, err := filetype.Match(head)
	if err != nil || detected.MIME.Type != db.ItemVideo {
		return "", false
	}
	if _, ok := extraVideoMIMEs[detected.MIME.Value]; !ok {
		return "", false
	}
	return "." + detected.Extension, true
}

// sniffMatches rejects content whose magic bytes contradict the extension.
// Only audio may go undetected since several audio containers have no
// reliable signature.
func sniffMatches(head []byte, kind string) bool {
	detected, err := filetype.Match(head)
	if err != nil || detected == types.Unknown {
		return kind == db.ItemAudio
	}
	switch detected.MIME.Type {
	case db.ItemImage:
		return kind == db.ItemImage
	case db.ItemAudio, db.ItemVideo:
		return kind == db.ItemAudio || kind == db.ItemVideo
	default:
		return false
	}
}
