package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/qs3c/qrcode_go_server/internal/model"
	"github.com/qs3c/qrcode_go_server/internal/model/dto"
)

var ErrInvalidContent = errors.New("二维码内容无效")

const maxPayloadLength = 2000

// BuildPayload 按数据类型拼接二维码内容
func BuildPayload(req *dto.CreateQRCodeRequest) (string, error) {
	content := strings.TrimSpace(req.Content)
	phone := strings.TrimSpace(req.Phone)
	email := strings.TrimSpace(req.Email)

	var payload string
	switch req.DataType {
	case model.DataTypeURL, "":
		if content == "" {
			return "", fmt.Errorf("%w: url is required", ErrInvalidContent)
		}
		payload = content
	case model.DataTypeText:
		if content == "" {
			return "", fmt.Errorf("%w: text is required", ErrInvalidContent)
		}
		payload = content
	case model.DataTypeEmail:
		if email == "" {
			email = content
		}
		if email == "" {
			return "", fmt.Errorf("%w: email is required", ErrInvalidContent)
		}
		payload = "mailto:" + email
	case model.DataTypePhone:
		if phone == "" {
			phone = content
		}
		if phone == "" {
			return "", fmt.Errorf("%w: phone is required", ErrInvalidContent)
		}
		payload = "tel:" + phone
	case model.DataTypeSMS:
		if phone == "" {
			return "", fmt.Errorf("%w: phone is required", ErrInvalidContent)
		}
		payload = fmt.Sprintf("SMSTO:%s:%s", phone, req.Message)
	case model.DataTypeContact:
		name := strings.TrimSpace(req.Name)
		if name == "" && phone == "" && email == "" {
			return "", fmt.Errorf("%w: contact is empty", ErrInvalidContent)
		}
		payload = "BEGIN:VCARD\nVERSION:3.0\n" +
			"FN:" + oneLine(name) + "\n" +
			"TEL:" + oneLine(phone) + "\n" +
			"EMAIL:" + oneLine(email) + "\n" +
			"END:VCARD"
	default:
		return "", fmt.Errorf("%w: unknown data type %q", ErrInvalidContent, req.DataType)
	}

	if len(payload) > maxPayloadLength {
		return "", fmt.Errorf("%w: content too long", ErrInvalidContent)
	}
	return payload, nil
}

// ParseContact 解析名片字段
func ParseContact(payload string) *dto.ContactCard {
	card := &dto.ContactCard{}
	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "FN:"):
			card.Name = line[3:]
		case strings.HasPrefix(line, "TEL:"):
			card.Phone = line[4:]
		case strings.HasPrefix(line, "EMAIL:"):
			card.Email = line[6:]
		}
	}
	return card
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
