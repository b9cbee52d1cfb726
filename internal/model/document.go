package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mautops/persuratan-gin/internal/workflow"
	"gorm.io/datatypes"
)

// DocumentModel 公文数据模型
type DocumentModel struct {
	ID                string     `gorm:"primaryKey;type:varchar(64)"`
	Hash              string     `gorm:"type:varchar(64);not null;uniqueIndex"` // 对外引用
	RegisterNumber    string     `gorm:"type:varchar(128);index"`
	Hal               string     `gorm:"type:text"`
	Body              string     `gorm:"type:text"`
	DrafType          int        `gorm:"type:int;not null;index"`
	Sifat             int        `gorm:"type:int;not null;index"`
	Urgensi           int        `gorm:"type:int;not null;index"`
	Status            int        `gorm:"type:int;not null;index"`
	CreatedBy         string     `gorm:"type:varchar(64);not null;index"`
	OwnerPegawaiID    string     `gorm:"type:varchar(64);not null;index"`
	PeriodYear        int        `gorm:"type:int;index:idx_documents_period"`
	PeriodMonth       int        `gorm:"type:int;index:idx_documents_period"`
	SequentialSigning bool       `gorm:"not null;default:false"`
	ArtifactRef       string     `gorm:"type:varchar(512)"`
	ArtifactDigest    string     `gorm:"type:varchar(80)"`
	ArtifactSize      int64      `gorm:"type:bigint"`
	SealedAt          *time.Time `gorm:"index"`
	Version           int        `gorm:"type:int;not null;default:1"` // 乐观锁版本
	CreatedAt         time.Time  `gorm:"not null;index"`
	UpdatedAt         time.Time  `gorm:"not null"`

	Recipients []RecipientModel `gorm:"foreignKey:DocumentID;references:ID"`
	Signers    []SignerModel    `gorm:"foreignKey:DocumentID;references:ID"`
}

// TableName 指定表名
func (DocumentModel) TableName() string {
	return "documents"
}

// Validate 验证公文模型
func (dm *DocumentModel) Validate() error {
	if dm.ID == "" {
		return errors.New("document ID is required")
	}
	if dm.Hash == "" {
		return errors.New("document hash is required")
	}
	if dm.Hash == dm.ID {
		return errors.New("document hash must differ from ID")
	}
	if _, err := workflow.ParseStatus(dm.Status); err != nil {
		return err
	}
	if dm.CreatedBy == "" {
		return errors.New("created by is required")
	}
	return nil
}

// RecipientModel 收件人数据模型
type RecipientModel struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	DocumentID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_recipient_document"`
	RecipientID   string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_recipient_document;index"`
	Name          string    `gorm:"type:varchar(255)"`
	Jabatan       string    `gorm:"type:varchar(255)"`
	Forwarded     bool      `gorm:"not null;default:false"`
	ForwardedFrom string    `gorm:"type:varchar(64)"`
	Sent          bool      `gorm:"not null;default:false"`
	ReadFlag      bool      `gorm:"column:read_flag;not null;default:false"`
	ResponseFlag  bool      `gorm:"column:response_flag;not null;default:false"`
	Position      int       `gorm:"type:int;not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName 指定表名
func (RecipientModel) TableName() string {
	return "document_recipients"
}

// SignerModel 签署人数据模型
type SignerModel struct {
	ID         uint           `gorm:"primaryKey;autoIncrement"`
	DocumentID string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_signer_document"`
	SignerID   string         `gorm:"type:varchar(64);not null;uniqueIndex:idx_signer_document;index"`
	Sequence   int            `gorm:"type:int;not null"`
	Signed     bool           `gorm:"not null;default:false"`
	SignedAt   *time.Time     `gorm:""`
	Payload    datatypes.JSON `gorm:"column:signature_payload"`
	CreatedAt  time.Time      `gorm:"not null"`
}

// TableName 指定表名
func (SignerModel) TableName() string {
	return "document_signers"
}

// NewDocumentModel 将公文聚合转换为数据模型
func NewDocumentModel(d *workflow.Document) (*DocumentModel, error) {
	m := &DocumentModel{
		ID:                d.ID,
		Hash:              d.Hash,
		RegisterNumber:    d.RegisterNumber,
		Hal:               d.Hal,
		Body:              d.Body,
		DrafType:          d.DrafType,
		Sifat:             d.Sifat,
		Urgensi:           d.Urgensi,
		Status:            d.Status.Code(),
		CreatedBy:         d.CreatedBy,
		OwnerPegawaiID:    d.OwnerPegawaiID,
		PeriodYear:        d.PeriodYear,
		PeriodMonth:       d.PeriodMonth,
		SequentialSigning: d.SequentialSigning,
		Version:           d.Version,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
	if d.Artifact != nil {
		sealedAt := d.Artifact.SealedAt
		m.ArtifactRef = d.Artifact.Ref
		m.ArtifactDigest = d.Artifact.Digest
		m.ArtifactSize = d.Artifact.Size
		m.SealedAt = &sealedAt
	}

	m.Recipients = make([]RecipientModel, 0, len(d.Recipients))
	for _, r := range d.Recipients {
		m.Recipients = append(m.Recipients, RecipientModel{
			DocumentID:    d.ID,
			RecipientID:   r.RecipientID,
			Name:          r.Name,
			Jabatan:       r.Jabatan,
			Forwarded:     r.Forwarded,
			ForwardedFrom: r.ForwardedFrom,
			Sent:          r.Sent,
			ReadFlag:      r.Read,
			ResponseFlag:  r.Responded,
			Position:      r.Position,
		})
	}

	m.Signers = make([]SignerModel, 0, len(d.Signers))
	for _, s := range d.Signers {
		payload, err := json.Marshal(s.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal signature payload: %w", err)
		}
		m.Signers = append(m.Signers, SignerModel{
			DocumentID: d.ID,
			SignerID:   s.SignerID,
			Sequence:   s.Sequence,
			Signed:     s.Signed,
			SignedAt:   s.SignedAt,
			Payload:    datatypes.JSON(payload),
		})
	}
	return m, nil
}

// ToDomain 将数据模型转换为公文聚合
// 收件人按 position 排序,签署人按 sequence 排序,调用方负责预加载
func (dm *DocumentModel) ToDomain() (*workflow.Document, error) {
	status, err := workflow.ParseStatus(dm.Status)
	if err != nil {
		return nil, err
	}
	d := &workflow.Document{
		ID:                dm.ID,
		Hash:              dm.Hash,
		RegisterNumber:    dm.RegisterNumber,
		Hal:               dm.Hal,
		Body:              dm.Body,
		DrafType:          dm.DrafType,
		Sifat:             dm.Sifat,
		Urgensi:           dm.Urgensi,
		Status:            status,
		CreatedBy:         dm.CreatedBy,
		OwnerPegawaiID:    dm.OwnerPegawaiID,
		CreatedAt:         dm.CreatedAt,
		UpdatedAt:         dm.UpdatedAt,
		PeriodYear:        dm.PeriodYear,
		PeriodMonth:       dm.PeriodMonth,
		SequentialSigning: dm.SequentialSigning,
		Version:           dm.Version,
	}
	if dm.ArtifactRef != "" {
		d.Artifact = &workflow.Artifact{
			Ref:    dm.ArtifactRef,
			Digest: dm.ArtifactDigest,
			Size:   dm.ArtifactSize,
		}
		if dm.SealedAt != nil {
			d.Artifact.SealedAt = *dm.SealedAt
		}
	}

	d.Recipients = make([]*workflow.Recipient, 0, len(dm.Recipients))
	for _, r := range dm.Recipients {
		d.Recipients = append(d.Recipients, &workflow.Recipient{
			RecipientID:   r.RecipientID,
			Name:          r.Name,
			Jabatan:       r.Jabatan,
			Forwarded:     r.Forwarded,
			ForwardedFrom: r.ForwardedFrom,
			Sent:          r.Sent,
			Read:          r.ReadFlag,
			Responded:     r.ResponseFlag,
			Position:      r.Position,
		})
	}

	d.Signers = make([]*workflow.Signer, 0, len(dm.Signers))
	for _, s := range dm.Signers {
		signer := &workflow.Signer{
			SignerID: s.SignerID,
			Sequence: s.Sequence,
			Signed:   s.Signed,
			SignedAt: s.SignedAt,
		}
		if len(s.Payload) > 0 {
			if err := json.Unmarshal(s.Payload, &signer.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal signature payload: %w", err)
			}
		}
		d.Signers = append(d.Signers, signer)
	}
	return d, nil
}
