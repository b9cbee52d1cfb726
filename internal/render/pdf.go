package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/mautops/persuratan-gin/internal/workflow"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func init() {
	// 不读写用户目录下的 pdfcpu 配置
	api.DisableConfigDir()
}

// PDFOptions PDF 渲染配置
type PDFOptions struct {
	Organization string
	FontFamily   string
	FontSize     float64
	StampSize    int
}

// PDFRenderer 基于 fpdf 渲染正文,基于 pdfcpu 叠加签章与合并页面
type PDFRenderer struct {
	opts PDFOptions
}

// NewPDFRenderer 创建 PDF 渲染器
func NewPDFRenderer(opts PDFOptions) *PDFRenderer {
	if opts.FontFamily == "" {
		opts.FontFamily = "Helvetica"
	}
	if opts.FontSize <= 0 {
		opts.FontSize = 11
	}
	if opts.StampSize <= 0 {
		opts.StampSize = 9
	}
	return &PDFRenderer{opts: opts}
}

// fixedEpoch 文档没有创建时间时使用的固定时间
var fixedEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// RenderBody 渲染公文正文
func (r *PDFRenderer) RenderBody(ctx context.Context, doc *workflow.Document) ([]byte, error) {
	return Run(ctx, "render body", func() ([]byte, error) {
		return r.renderBody(doc)
	})
}

func (r *PDFRenderer) renderBody(doc *workflow.Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	stamp := doc.CreatedAt.UTC()
	if doc.CreatedAt.IsZero() {
		stamp = fixedEpoch
	}
	pdf.SetCreationDate(stamp)
	pdf.SetModificationDate(stamp)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(tr(doc.Hal), false)
	pdf.SetAuthor(tr(r.opts.Organization), false)

	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	pdf.AddPage()

	if r.opts.Organization != "" {
		pdf.SetFont(r.opts.FontFamily, "B", r.opts.FontSize+3)
		pdf.CellFormat(0, 8, tr(strings.ToUpper(r.opts.Organization)), "B", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	pdf.SetFont(r.opts.FontFamily, "", r.opts.FontSize)
	lines := [][2]string{
		{"Nomor", doc.RegisterNumber},
		{"Sifat", strconv.Itoa(doc.Sifat)},
		{"Hal", doc.Hal},
	}
	for _, l := range lines {
		pdf.CellFormat(25, 6, l[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(5, 6, ":", "", 0, "L", false, 0, "")
		pdf.MultiCell(0, 6, tr(l[1]), "", "L", false)
	}
	pdf.Ln(4)

	if len(doc.Recipients) > 0 {
		pdf.CellFormat(0, 6, "Kepada Yth.", "", 1, "L", false, 0, "")
		for i, rc := range doc.Recipients {
			line := fmt.Sprintf("%d. %s", i+1, rc.Name)
			if rc.Jabatan != "" {
				line += " - " + rc.Jabatan
			}
			pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
		}
		pdf.Ln(4)
	}

	if doc.Body != "" {
		pdf.MultiCell(0, 6, tr(doc.Body), "", "J", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MergeSignature 在指定页叠加签章文字
func (r *PDFRenderer) MergeSignature(ctx context.Context, artifact []byte, sig workflow.SignatureMark, pos workflow.Position) ([]byte, error) {
	return Run(ctx, "merge signature", func() ([]byte, error) {
		return r.mergeSignature(artifact, sig, pos)
	})
}

func (r *PDFRenderer) mergeSignature(artifact []byte, sig workflow.SignatureMark, pos workflow.Position) ([]byte, error) {
	conf := model.NewDefaultConfiguration()

	pages, err := api.PageCount(bytes.NewReader(artifact), conf)
	if err != nil {
		return nil, err
	}
	page := pos.Page
	if page <= 0 || page > pages {
		page = pages
	}

	desc := fmt.Sprintf("fontname:%s, points:%d, position:bl, offset:%s %s, scalefactor:1 abs, rotation:0, opacity:1, fillcolor:#1a1a1a",
		r.opts.FontFamily, r.opts.StampSize,
		strconv.FormatFloat(pos.X, 'f', 2, 64), strconv.FormatFloat(pos.Y, 'f', 2, 64))
	wm, err := api.TextWatermark(stampText(sig), desc, true, false, types.POINTS)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(artifact), &out, []string{strconv.Itoa(page)}, wm, conf); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// stampText 签章文字,换行分隔
func stampText(sig workflow.SignatureMark) string {
	text := sig.Text
	if text == "" {
		text = "Ditandatangani secara elektronik"
	}
	// 逗号与冒号是 pdfcpu 描述语法的分隔符
	text = strings.NewReplacer(",", " ", ":", " ").Replace(text)
	if !sig.SignedAt.IsZero() {
		text += "\\n" + sig.SignerID + " " + sig.SignedAt.UTC().Format("2006-01-02 15.04 MST")
	}
	return text
}

// ImportPages 将文件拆分为单页文件
func (r *PDFRenderer) ImportPages(ctx context.Context, source []byte) ([][]byte, error) {
	return Run(ctx, "import pages", func() ([][]byte, error) {
		conf := model.NewDefaultConfiguration()
		count, err := api.PageCount(bytes.NewReader(source), conf)
		if err != nil {
			return nil, err
		}
		pages := make([][]byte, 0, count)
		for i := 1; i <= count; i++ {
			var out bytes.Buffer
			if err := api.Trim(bytes.NewReader(source), &out, []string{strconv.Itoa(i)}, conf); err != nil {
				return nil, fmt.Errorf("page %d: %w", i, err)
			}
			pages = append(pages, out.Bytes())
		}
		return pages, nil
	})
}

// Compose 按顺序合并多份文件
func (r *PDFRenderer) Compose(ctx context.Context, parts [][]byte) ([]byte, error) {
	return Run(ctx, "compose", func() ([]byte, error) {
		if len(parts) == 0 {
			return nil, fmt.Errorf("nothing to compose")
		}
		if len(parts) == 1 {
			return parts[0], nil
		}
		readers := make([]io.ReadSeeker, 0, len(parts))
		for _, p := range parts {
			readers = append(readers, bytes.NewReader(p))
		}
		var out bytes.Buffer
		if err := api.MergeRaw(readers, &out, false, model.NewDefaultConfiguration()); err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	})
}

// PageCount 返回文件页数
func PageCount(data []byte) (int, error) {
	return api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
}
