package image

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif" // 支援 GIF
	_ "image/png" // 支援 PNG

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // 支援 WebP

	"recipe-assistant/internal/pkg/common"
)

// Service 圖片正規化服務：縮圖並重新編碼為 JPEG
type Service struct {
	maxSizeBytes int64
	maxDimension int
	quality      int
}

// NewService 創建新的圖片處理服務
func NewService(maxSizeBytes int64, maxDimension, quality int) *Service {
	return &Service{
		maxSizeBytes: maxSizeBytes,
		maxDimension: maxDimension,
		quality:      quality,
	}
}

// Normalize 解碼圖片、等比縮放至 maxDimension 以內（不放大），再以固定品質輸出單幀 JPEG
func (s *Service) Normalize(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", common.ErrImageDecode)
	}
	if s.maxSizeBytes > 0 && int64(len(data)) > s.maxSizeBytes {
		return nil, fmt.Errorf("%w: image size exceeds maximum limit of %d bytes", common.ErrImageDecode, s.maxSizeBytes)
	}

	// GIF 只取第一幀
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrImageDecode, err)
	}
	if !isSupportedFormat(format) {
		return nil, fmt.Errorf("%w: unsupported image format: %s", common.ErrImageDecode, format)
	}

	img = s.thumbnail(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode image as JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// thumbnail 等比縮放至邊界框內；已在範圍內則原樣回傳
func (s *Service) thumbnail(img image.Image) image.Image {
	b := img.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), s.maxDimension)
	if w == b.Dx() && h == b.Dy() {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// FitWithin 計算等比縮放後的尺寸，使 max(w,h) <= limit，且任一邊至少為 1
func FitWithin(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		nh := h * limit / w
		if nh < 1 {
			nh = 1
		}
		return limit, nh
	}
	nw := w * limit / h
	if nw < 1 {
		nw = 1
	}
	return nw, limit
}

// isSupportedFormat 檢查圖片格式是否支援
func isSupportedFormat(format string) bool {
	supportedFormats := map[string]bool{
		"jpeg": true,
		"png":  true,
		"gif":  true,
		"webp": true,
	}
	return supportedFormats[format]
}
