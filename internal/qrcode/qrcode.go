// Package qrcode renders sale codes as PNG images in memory.
package qrcode

import (
	"fmt"

	goqrcode "github.com/skip2/go-qrcode"
)

const Size = 256

// Render encodes payload as a PNG with medium error recovery.
func Render(payload string) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("empty qr payload")
	}
	png, err := goqrcode.Encode(payload, goqrcode.Medium, Size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	return png, nil
}
