package bot

import (
	"bytes"

	qrcode "github.com/skip2/go-qrcode"
	tele "gopkg.in/telebot.v3"
)

// qrPhoto renders the connection descriptor as a scannable PNG.
func qrPhoto(data string) (*tele.Photo, error) {
	png, err := qrcode.Encode(data, qrcode.Medium, 512)
	if err != nil {
		return nil, err
	}
	return &tele.Photo{
		File:    tele.FromReader(bytes.NewReader(png)),
		Caption: "QR для быстрой настройки",
	}, nil
}
