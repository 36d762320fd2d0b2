package renderer

import qrcode "github.com/skip2/go-qrcode"

// How long the credit QR stays on screen at the end of the video.
const creditShowSeconds = 6.0

func writeCreditQR(url, path string) error {
	return qrcode.WriteFile(url, qrcode.Medium, 220, path)
}
