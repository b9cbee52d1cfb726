package service

import (
	"time"

	"github.com/mautops/persuratan-gin/internal/workflow"
)

// RecipientView 收件人视图
type RecipientView struct {
	RecipientID   string `json:"recipient_id"`
	Name          string `json:"name"`
	Jabatan       string `json:"jabatan,omitempty"`
	Forwarded     bool   `json:"forwarded"`
	ForwardedFrom string `json:"forwarded_from,omitempty"`
	Sent          bool   `json:"sent"`
	Read          bool   `json:"read_flag"`
	Responded     bool   `json:"response_flag"`
}

// SignerView 签署人视图
type SignerView struct {
	SignerID string     `json:"signer_id"`
	Sequence int        `json:"sequence"`
	Signed   bool       `json:"signed"`
	SignedAt *time.Time `json:"signed_at,omitempty"`
}

// DocumentView 公文视图
// 内部 ID 不对外暴露,只使用 hash
type DocumentView struct {
	Hash              string          `json:"hash"`
	RegisterNumber    string          `json:"register_number"`
	Hal               string          `json:"hal"`
	DrafType          int             `json:"draf_type"`
	Sifat             int             `json:"sifat"`
	Urgensi           int             `json:"urgensi"`
	Status            int             `json:"status"`
	StatusName        string          `json:"status_name"`
	SignerStatus      int             `json:"signer_status"`
	SequentialSigning bool            `json:"sequential_signing"`
	CreatedBy         string          `json:"created_by"`
	Owner             string          `json:"owner_pegawai_id"`
	CreatedAt         time.Time       `json:"created_at"`
	PeriodYear        int             `json:"period_year"`
	PeriodMonth       int             `json:"period_month"`
	Recipients        []RecipientView `json:"recipients"`
	Signers           []SignerView    `json:"signers"`
	ForwardCount      int             `json:"forward_count"`
	Unacknowledged    int             `json:"unacknowledged"`
	ReadUser          bool            `json:"read_user"`
	ResponUser        bool            `json:"respon_user"`
	CanSign           bool            `json:"can_sign"`
	Sealed            bool            `json:"sealed"`
	ArtifactDigest    string          `json:"artifact_digest,omitempty"`
	SealedAt          *time.Time      `json:"sealed_at,omitempty"`
	Version           int             `json:"version"`
}

// NewDocumentView 构建当前员工视角的公文视图
func NewDocumentView(doc *workflow.Document, actorID string, policy workflow.Policy) *DocumentView {
	view := &DocumentView{
		Hash:              doc.Hash,
		RegisterNumber:    doc.RegisterNumber,
		Hal:               doc.Hal,
		DrafType:          doc.DrafType,
		Sifat:             doc.Sifat,
		Urgensi:           doc.Urgensi,
		Status:            doc.Status.Code(),
		StatusName:        doc.Status.Name(),
		SignerStatus:      int(doc.AggregateStatus()),
		SequentialSigning: doc.SequentialSigning,
		CreatedBy:         doc.CreatedBy,
		Owner:             doc.OwnerPegawaiID,
		CreatedAt:         doc.CreatedAt,
		PeriodYear:        doc.PeriodYear,
		PeriodMonth:       doc.PeriodMonth,
		Recipients:        make([]RecipientView, 0, len(doc.Recipients)),
		Signers:           make([]SignerView, 0, len(doc.Signers)),
		ForwardCount:      doc.ForwardCount(),
		Unacknowledged:    len(doc.ListUnacknowledged()),
		CanSign:           actorID != "" && doc.IsEligibleSigner(actorID, policy),
		Sealed:            doc.IsSealed(),
		Version:           doc.Version,
	}

	for _, r := range doc.Recipients {
		view.Recipients = append(view.Recipients, RecipientView{
			RecipientID:   r.RecipientID,
			Name:          r.Name,
			Jabatan:       r.Jabatan,
			Forwarded:     r.Forwarded,
			ForwardedFrom: r.ForwardedFrom,
			Sent:          r.Sent,
			Read:          r.Read,
			Responded:     r.Responded,
		})
	}
	for _, s := range doc.Signers {
		view.Signers = append(view.Signers, SignerView{
			SignerID: s.SignerID,
			Sequence: s.Sequence,
			Signed:   s.Signed,
			SignedAt: s.SignedAt,
		})
	}

	if r := doc.Recipient(actorID); r != nil {
		view.ReadUser = r.Read
		view.ResponUser = r.Responded
	}
	if doc.IsSealed() {
		sealedAt := doc.Artifact.SealedAt
		view.ArtifactDigest = doc.Artifact.Digest
		view.SealedAt = &sealedAt
	}
	return view
}
