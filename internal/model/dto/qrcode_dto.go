package dto

// CreateQRCodeRequest 生成二维码请求
type CreateQRCodeRequest struct {
	DataType    string `json:"data_type" binding:"required,oneof=url text email phone sms contact"`
	Content     string `json:"content"`
	Phone       string `json:"phone"`
	Message     string `json:"message"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Description string `json:"description" binding:"max=200"`

	Color         string `json:"color"`
	Background    string `json:"background"`
	Style         string `json:"style" binding:"omitempty,oneof=square rounded circle vertical horizontal"`
	Gradient      bool   `json:"gradient"`
	GradientColor string `json:"gradient_color"`
}

// QRCodeInfo 二维码信息
type QRCodeInfo struct {
	PublicID    string            `json:"public_id"`
	DataType    string            `json:"data_type"`
	Payload     string            `json:"payload"`
	Description string            `json:"description"`
	Link        string            `json:"link"`
	MirrorURLs  map[string]string `json:"mirror_urls,omitempty"`
	CreatedAt   string            `json:"created_at"`
	DeletableAt string            `json:"deletable_at,omitempty"`
}

// QRCodeListResponse 二维码列表
type QRCodeListResponse struct {
	Items []*QRCodeInfo `json:"items"`
	Quota *QuotaInfo    `json:"quota"`
}

// ContactCard 名片解析结果
type ContactCard struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// QRCodePublicView 扫码后的公开展示
type QRCodePublicView struct {
	PublicID    string       `json:"public_id"`
	DataType    string       `json:"data_type"`
	Payload     string       `json:"payload"`
	Description string       `json:"description"`
	Contact     *ContactCard `json:"contact,omitempty"`
}
