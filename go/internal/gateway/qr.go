package gateway

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

const DefaultQRSize = 256

// JoinQR renders the join URL for roomCode as a PNG
func JoinQR(publicURL, roomCode string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(JoinURL(publicURL, roomCode), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode join qr: %w", err)
	}
	return png, nil
}
