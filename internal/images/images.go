package images

import (
	"fmt"
	"log"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	targetWidth  = 600
	targetHeight = 600
	jpegQuality  = 90

	maxUploadSize = 5 << 20
)

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// Store writes uploaded images under a single public root, one subdirectory
// per entity, after normalizing them to a fixed-size JPEG.
type Store struct {
	RootDir string
}

func NewStore(rootDir string) *Store {
	return &Store{RootDir: rootDir}
}

// Save validates, decodes, resizes and re-encodes the uploaded file, then
// writes it under <root>/<entity>/. The returned name is the bare filename
// stored in the database.
func (s *Store) Save(file *multipart.FileHeader, entity string) (string, error) {
	extension := strings.ToLower(filepath.Ext(file.Filename))
	if extension == "" {
		return "", fmt.Errorf("image file extension is required")
	}
	if _, ok := allowedExtensions[extension]; !ok {
		return "", fmt.Errorf("unsupported image type: %s", extension)
	}
	if file.Size > maxUploadSize {
		return "", fmt.Errorf("image file too large (max 5MB)")
	}

	in, err := file.Open()
	if err != nil {
		log.Printf("[UPLOAD] Save: failed to open upload %s: %v", file.Filename, err)
		return "", err
	}
	defer in.Close()

	img, err := imaging.Decode(in, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("invalid image data: %w", err)
	}
	img = imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos)

	filename := fmt.Sprintf("%s-%s-%d.jpeg", entity, uuid.NewString(), time.Now().UnixMilli())

	dir := filepath.Join(s.RootDir, entity)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("[UPLOAD] Save: failed to create directory %s: %v", dir, err)
		return "", err
	}

	fullPath := filepath.Join(dir, filename)
	if err := imaging.Save(img, fullPath, imaging.JPEGQuality(jpegQuality)); err != nil {
		log.Printf("[UPLOAD] Save: failed to save file %s: %v", fullPath, err)
		return "", err
	}

	return filename, nil
}

// Delete removes a previously stored image. Paths that resolve outside the
// upload root are refused; a missing file is not an error.
func (s *Store) Delete(entity, filename string) error {
	trimmed := strings.TrimSpace(filename)
	if trimmed == "" {
		return nil
	}

	cleanRel := path.Clean("/" + strings.TrimPrefix(trimmed, "/"))
	cleanRel = strings.TrimPrefix(cleanRel, "/")
	if cleanRel == "" || strings.Contains(cleanRel, "/") {
		return fmt.Errorf("refusing to delete nested path: %s", filename)
	}

	cleanBase := filepath.Clean(filepath.Join(s.RootDir, entity))
	target := filepath.Clean(filepath.Join(cleanBase, cleanRel))
	if target == cleanBase || !strings.HasPrefix(target, cleanBase+string(os.PathSeparator)) {
		return fmt.Errorf("refusing to delete path outside upload root: %s", filename)
	}

	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return nil
}
