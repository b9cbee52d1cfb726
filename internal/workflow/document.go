package workflow

import (
	"time"
)

// Document 公文聚合
// 包含状态、收件人与签署人,所有工作流操作都作用在同一个聚合上
type Document struct {
	ID                string
	Hash              string
	RegisterNumber    string
	Hal               string
	DrafType          int
	Sifat             int
	Urgensi           int
	Status            Status
	CreatedBy         string
	OwnerPegawaiID    string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	PeriodYear        int
	PeriodMonth       int
	SequentialSigning bool
	Body              string
	Recipients        []*Recipient
	Signers           []*Signer
	Artifact          *Artifact
	Version           int
}

// Recipient 收件人
type Recipient struct {
	RecipientID   string `json:"recipient_id"`
	Name          string `json:"name"`
	Jabatan       string `json:"jabatan"`
	Forwarded     bool   `json:"forwarded"`
	ForwardedFrom string `json:"forwarded_from,omitempty"`
	Sent          bool   `json:"sent"`
	Read          bool   `json:"read"`
	Responded     bool   `json:"responded"`
	Position      int    `json:"position"`
}

// Signer 签署人
type Signer struct {
	SignerID string           `json:"signer_id"`
	Sequence int              `json:"sequence"`
	Signed   bool             `json:"signed"`
	SignedAt *time.Time       `json:"signed_at,omitempty"`
	Payload  SignaturePayload `json:"payload"`
}

// Position 签章在页面上的位置
// Page 从 1 开始,0 表示最后一页;坐标单位为点,原点为页面左下角
type Position struct {
	Page int     `json:"page"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// SignaturePayload 签署请求携带的签章信息
type SignaturePayload struct {
	Text      string   `json:"text,omitempty"`
	Position  Position `json:"position"`
	Reference string   `json:"reference,omitempty"`
}

// SignatureMark 合并到文档上的签章
type SignatureMark struct {
	SignerID string
	Text     string
	SignedAt time.Time
}

// Artifact 封存后的最终文档引用
type Artifact struct {
	Ref      string
	Digest   string
	Size     int64
	SealedAt time.Time
}

// Signature 返回签署人对应的签章与位置
func (s *Signer) Signature() (SignatureMark, Position) {
	mark := SignatureMark{SignerID: s.SignerID, Text: s.Payload.Text}
	if s.SignedAt != nil {
		mark.SignedAt = *s.SignedAt
	}
	return mark, s.Payload.Position
}

// IsSealed 判断文档是否已经封存
func (d *Document) IsSealed() bool {
	return d.Artifact != nil && d.Artifact.Ref != ""
}
