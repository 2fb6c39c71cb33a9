package render

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "github.com/edgard/affirmabot/internal/errors"
)

// Imager renders text into image bytes.
type Imager interface {
	Render(text string) ([]byte, error)
}

// Image is a rendered card on disk.
type Image struct {
	Path string
	Data []byte
}

// Cache stores rendered cards under dir. Files of a content item are named
// content_<id>_<hash>.png, so an edit of the text produces a new file.
type Cache struct {
	mu       sync.Mutex
	dir      string
	renderer Imager
	logger   *slog.Logger
}

// NewCache creates a render cache in dir.
func NewCache(dir string, renderer Imager, logger *slog.Logger) *Cache {
	return &Cache{
		dir:      dir,
		renderer: renderer,
		logger:   logger.With("component", "render_cache"),
	}
}

// Path returns the cache location of the card for a content item.
func (c *Cache) Path(id int64, text string) string {
	return filepath.Join(c.dir, fmt.Sprintf("content_%d_%s.png", id, textHash(text)))
}

// ForContent returns the card of a stored item, rendering it on a miss.
// Stale renders of the same item are removed.
func (c *Cache) ForContent(id int64, text string) (Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.Path(id, text)
	img, err := c.load(path, text)
	if err != nil {
		return Image{}, err
	}
	c.removeStale(id, path)
	return img, nil
}

// ForText returns the card of free text, such as a generated affirmation.
func (c *Cache) ForText(text string) (Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.load(filepath.Join(c.dir, fmt.Sprintf("text_%s.png", textHash(text))), text)
}

// Invalidate removes every cached card of a content item.
func (c *Cache) Invalidate(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(c.dir, fmt.Sprintf("content_%d_*.png", id)))
	if err != nil {
		return fmt.Errorf("failed to list cached renders: %w", err)
	}
	var errs []error
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(matches) > 0 {
		c.logger.Debug("Render cache invalidated", "content_id", id, "files", len(matches))
	}
	return errors.Join(errs...)
}

// PruneText removes free-text cards last written before cutoff and returns
// how many were deleted. Content cards are left to Invalidate.
func (c *Cache) PruneText(cutoff time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(c.dir, "text_*.png"))
	if err != nil {
		return 0, fmt.Errorf("failed to list cached renders: %w", err)
	}

	removed := 0
	var errs []error
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		c.logger.Info("Pruned free-text renders", "removed", removed, "cutoff", cutoff)
	}
	return removed, errors.Join(errs...)
}

func (c *Cache) load(path, text string) (Image, error) {
	if data, err := os.ReadFile(path); err == nil {
		return Image{Path: path, Data: data}, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("Failed to read cached render, re-rendering", "path", path, "error", err)
	}

	data, err := c.renderer.Render(text)
	if err != nil {
		return Image{}, apperrors.NewRenderError("failed to render card", err)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return Image{}, apperrors.NewRenderError("failed to create render cache dir", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return Image{}, apperrors.NewRenderError("failed to write render", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return Image{}, apperrors.NewRenderError("failed to store render", err)
	}

	c.logger.Debug("Card rendered", "path", path, "bytes", len(data))
	return Image{Path: path, Data: data}, nil
}

func (c *Cache) removeStale(id int64, keep string) {
	matches, err := filepath.Glob(filepath.Join(c.dir, fmt.Sprintf("content_%d_*.png", id)))
	if err != nil {
		return
	}
	for _, m := range matches {
		if m == keep {
			continue
		}
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("Failed to remove stale render", "path", m, "error", err)
		}
	}
}

func textHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:4])
}
