package handler

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
)

// maxListingImageWidth 商家照片的最大宽度，超出时等比缩小
const maxListingImageWidth = 1200

// UploadListingImage 处理商家照片上传：校验类型、统一缩放后以唯一文件名落盘。
func (a *API) UploadListingImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "Missing image file")
		return
	}

	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		respondError(c, http.StatusBadRequest, "Only image uploads are allowed")
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "Failed to read image")
		return
	}
	defer src.Close()

	decoded, format, err := image.Decode(src)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Unsupported image format")
		return
	}

	decoded = scaleDown(decoded, maxListingImageWidth)

	if err := os.MkdirAll(a.uploadDir, 0o755); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to prepare upload directory")
		return
	}

	ext := ".jpg"
	if format == "png" {
		ext = ".png"
	}
	filename := fmt.Sprintf("%s-%s%s", time.Now().Format("20060102"), uuid.NewString(), ext)
	path := filepath.Join(a.uploadDir, filename)

	out, err := os.Create(path)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to save image")
		return
	}
	defer out.Close()

	if format == "png" {
		err = png.Encode(out, decoded)
	} else {
		err = jpeg.Encode(out, decoded, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to save image")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"url":     strings.TrimRight(a.uploadURL, "/") + "/" + filename,
	})
}

// scaleDown 将图片等比缩小到不超过 maxWidth，已在范围内则原样返回。
func scaleDown(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= maxWidth {
		return img
	}

	height := bounds.Dy() * maxWidth / bounds.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
