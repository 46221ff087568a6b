package service

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"murmur/internal/config"
	"murmur/internal/testutil"
)

func TestImageServiceUploadAndResolve(t *testing.T) {
	cfg := &config.Config{ImageUploadDir: t.TempDir(), ImageMaxUploadSizeMB: 1}
	svc := NewImageService(cfg)

	content := testutil.TinyPNG(t, 1200, 800)
	img, err := svc.Upload(UploadImageInput{
		UserID:      42,
		Filename:    "attachment.png",
		ContentType: "image/png",
		Content:     content,
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if img.Hash == "" {
		t.Fatalf("expected content hash, got %+v", img)
	}
	if img.URL != "/media/i/"+img.Hash+"/master.jpg" {
		t.Fatalf("unexpected master URL %q", img.URL)
	}

	for _, rel := range []string{
		filepath.ToSlash(filepath.Join(img.Hash, "master.jpg")),
		filepath.ToSlash(filepath.Join(img.Hash, "master.webp")),
	} {
		path := cfg.ImageUploadDir + "/" + rel
		if _, statErr := os.Stat(path); statErr != nil {
			t.Fatalf("expected file at %s: %v", path, statErr)
		}
	}

	// Same content by same user hashes to the same location.
	img2, err := svc.Upload(UploadImageInput{
		UserID:      42,
		Filename:    "attachment-copy.png",
		ContentType: "image/png",
		Content:     content,
	})
	if err != nil {
		t.Fatalf("repeat upload failed: %v", err)
	}
	if img2.Hash != img.Hash {
		t.Fatalf("expected deterministic hash %s, got %s", img.Hash, img2.Hash)
	}

	fullPath, err := svc.ResolveForServing(img.Hash, "master.jpg")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if _, statErr := os.Stat(fullPath); statErr != nil {
		t.Fatalf("expected resolved file to exist: %v", statErr)
	}
}

func TestImageServiceNormalizesResolutionAndCompresses(t *testing.T) {
	cfg := &config.Config{ImageUploadDir: t.TempDir(), ImageMaxUploadSizeMB: 10}
	svc := NewImageService(cfg)

	content := noisyPNG(t, 3000, 1500)
	img, err := svc.Upload(UploadImageInput{
		UserID:      9,
		Filename:    "large.png",
		ContentType: "image/png",
		Content:     content,
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if img.Width > ImageMaxDimension || img.Height > ImageMaxDimension {
		t.Fatalf("expected normalized dimensions <= %d, got %dx%d", ImageMaxDimension, img.Width, img.Height)
	}
	if img.SizeBytes >= int64(len(content)) {
		t.Fatalf("expected compressed upload smaller than source (%d >= %d)", img.SizeBytes, len(content))
	}
}

func TestImageServiceUploadValidation(t *testing.T) {
	cfg := &config.Config{ImageUploadDir: t.TempDir(), ImageMaxUploadSizeMB: 1}
	svc := NewImageService(cfg)

	if _, err := svc.Upload(UploadImageInput{
		UserID:      0,
		Filename:    "anon.png",
		ContentType: "image/png",
		Content:     testutil.TinyPNG(t, 8, 8),
	}); err == nil {
		t.Fatal("expected unauthenticated error")
	}

	if _, err := svc.Upload(UploadImageInput{
		UserID:      1,
		Filename:    "bad.txt",
		ContentType: "text/plain",
		Content:     []byte("not an image"),
	}); err == nil {
		t.Fatal("expected invalid image error")
	}

	tooLarge := bytes.Repeat([]byte{'a'}, 2*1024*1024)
	if _, err := svc.Upload(UploadImageInput{
		UserID:      1,
		Filename:    "huge.png",
		ContentType: "image/png",
		Content:     tooLarge,
	}); err == nil {
		t.Fatal("expected size validation error")
	}
}

func TestImageServiceResolveRejectsBadHashes(t *testing.T) {
	svc := NewImageService(&config.Config{ImageUploadDir: t.TempDir()})

	for _, hash := range []string{"", "../../etc/passwd", "UPPERCASE", "zzz*"} {
		if _, err := svc.ResolveForServing(hash, "master.jpg"); err == nil {
			t.Fatalf("expected rejection for hash %q", hash)
		}
	}
}

func noisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	src := rand.NewSource(42)
	// #nosec G404: weak random is fine for test image generation
	rng := rand.New(src)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				// #nosec G115: Intn(256) is safe for uint8
				R: uint8(rng.Intn(256)),
				// #nosec G115
				G: uint8(rng.Intn(256)),
				// #nosec G115
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode noisy png: %v", err)
	}
	return buf.Bytes()
}
