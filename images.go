package storyline

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/eringen/storyline/post"
)

const (
	maxCoverWidth    = 1600
	coverJPEGQuality = 82
)

// Cover describes a stored cover image.
type Cover struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Size     int    `json:"size"`
}

// processCover decodes an image from src, scales it down to maxCoverWidth
// if it is wider, and re-encodes it as JPEG.
func processCover(src io.Reader) (Cover, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return Cover{}, nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxCoverWidth {
		newH := max(h*maxCoverWidth/w, 1)
		dst := image.NewRGBA(image.Rect(0, 0, maxCoverWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = maxCoverWidth, newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: coverJPEGQuality}); err != nil {
		return Cover{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return Cover{Width: w, Height: h, Size: buf.Len()}, buf.Bytes(), nil
}

// uniqueUploadName slugifies the original file name and appends a counter
// until no file of that name exists in dir.
func uniqueUploadName(dir, original string) (string, error) {
	base := post.ToSlug(strings.TrimSuffix(original, filepath.Ext(original)))
	if base == "" {
		base = "cover"
	}
	candidate := base + ".jpg"
	for n := 2; ; n++ {
		_, err := os.Stat(filepath.Join(dir, candidate))
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s-%d.jpg", base, n)
	}
}

func (a *App) handleCoverUpload(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return &post.ValidationError{Field: "image", Message: "no image file provided"}
	}
	limit := int64(a.Config.MaxCoverUploadMiB) << 20
	if file.Size > limit {
		return &post.ValidationError{Field: "image", Message: fmt.Sprintf("file too large (max %dMB)", a.Config.MaxCoverUploadMiB)}
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	cover, data, err := processCover(src)
	if err != nil {
		return &post.ValidationError{Field: "image", Message: "invalid image: " + err.Error()}
	}

	dir := a.Config.UploadsDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &post.StorageError{Op: "mkdir", Path: dir, Err: err}
	}
	name, err := uniqueUploadName(dir, file.Filename)
	if err != nil {
		return &post.StorageError{Op: "stat", Path: dir, Err: err}
	}
	path := filepath.Join(dir, name)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return &post.StorageError{Op: "write", Path: path, Err: err}
	}
	if err := os.Chmod(path, 0o644); err != nil {
		return &post.StorageError{Op: "chmod", Path: path, Err: err}
	}

	cover.Filename = name
	cover.URL = BuildURL(a.Config.URL, "uploads", name)
	a.Log.Info("cover uploaded", zap.String("file", name), zap.Int("width", cover.Width), zap.Int("height", cover.Height))
	return RenderStatus(c, http.StatusCreated, cover, nil)
}
