package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/anjiri1684/zukih_store/models"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// PDFRenderer turns an HTML document into a PDF.
type PDFRenderer interface {
	RenderPDF(ctx context.Context, html string) ([]byte, error)
}

// ReceiptStore keeps a generated receipt and returns where it can be fetched.
type ReceiptStore interface {
	Store(ctx context.Context, name string, pdf []byte) (string, error)
}

var receiptTemplate = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("KSH %.2f", v) },
	"line":  func(item models.OrderItem) float64 { return item.Price * float64(item.Quantity) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 40px; color: #222; }
h1 { font-size: 22px; margin-bottom: 4px; }
table { width: 100%; border-collapse: collapse; margin-top: 24px; }
th, td { text-align: left; padding: 8px; border-bottom: 1px solid #ddd; }
.total { font-weight: bold; }
.muted { color: #777; font-size: 12px; }
</style>
</head>
<body>
<h1>Receipt for order {{.Order.OrderNumber}}</h1>
<p class="muted">Issued {{.IssuedAt}}</p>
<p>{{.Order.CustomerName}}<br>{{.Order.CustomerEmail}}<br>{{.Order.CustomerPhone}}</p>
<table>
<tr><th>Item</th><th>Qty</th><th>Price</th><th>Total</th></tr>
{{range .Order.Items}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{money .Price}}</td><td>{{money (line .)}}</td></tr>
{{end}}<tr class="total"><td colspan="3">Total paid</td><td>{{money .Order.TotalAmount}}</td></tr>
</table>
<p>Paid via M-Pesa{{if .Receipt}}, receipt <b>{{.Receipt}}</b>{{end}}.</p>
</body>
</html>`))

type ReceiptService struct {
	db       *gorm.DB
	renderer PDFRenderer
	store    ReceiptStore
}

// NewReceiptService builds the receipt pipeline. store may be nil, in which case receipts are not archived.
func NewReceiptService(db *gorm.DB, renderer PDFRenderer, store ReceiptStore) *ReceiptService {
	return &ReceiptService{db: db, renderer: renderer, store: store}
}

// ReceiptHTML renders the receipt document for a paid order.
func ReceiptHTML(order models.Order) (string, error) {
	if order.PaymentID == nil || order.Payment == nil || order.Payment.Status != models.PaymentCompleted {
		return "", ErrOrderNotPaid
	}

	data := struct {
		Order    models.Order
		Receipt  string
		IssuedAt string
	}{
		Order:    order,
		IssuedAt: time.Now().Format("January 2, 2006"),
	}
	if order.Payment.ReceiptNumber != nil {
		data.Receipt = *order.Payment.ReceiptNumber
	}

	var rendered bytes.Buffer
	if err := receiptTemplate.Execute(&rendered, data); err != nil {
		return "", err
	}
	return rendered.String(), nil
}

// Generate renders the PDF receipt of an order and archives it the first time.
func (s *ReceiptService) Generate(ctx context.Context, order *models.Order) ([]byte, error) {
	html, err := ReceiptHTML(*order)
	if err != nil {
		return nil, err
	}

	pdf, err := s.renderer.RenderPDF(ctx, html)
	if err != nil {
		logrus.WithError(err).WithField("order_number", order.OrderNumber).Error("🔥 Failed to generate receipt PDF")
		return nil, err
	}

	if s.store != nil && order.ReceiptURL == nil {
		url, err := s.store.Store(ctx, order.OrderNumber, pdf)
		if err != nil {
			logrus.WithError(err).WithField("order_number", order.OrderNumber).Warn("Failed to archive receipt")
			return pdf, nil
		}
		if err := s.db.WithContext(ctx).Model(order).Update("receipt_url", url).Error; err != nil {
			logrus.WithError(err).WithField("order_number", order.OrderNumber).Warn("Failed to save receipt URL")
		} else {
			order.ReceiptURL = &url
			logrus.WithField("order_number", order.OrderNumber).Info("✅ Receipt archived")
		}
	}
	return pdf, nil
}

// ChromePDFRenderer prints HTML with a headless Chrome.
type ChromePDFRenderer struct{}

func (ChromePDFRenderer) RenderPDF(ctx context.Context, html string) ([]byte, error) {
	chromeCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	var pdfBuffer []byte
	err := chromedp.Run(chromeCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuffer, nil
}

// CloudinaryReceiptStore uploads receipts as raw files.
type CloudinaryReceiptStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryReceiptStore(cloudinaryURL, folder string) (*CloudinaryReceiptStore, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, err
	}
	return &CloudinaryReceiptStore{cld: cld, folder: folder}, nil
}

func (c *CloudinaryReceiptStore) Store(ctx context.Context, name string, pdf []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	uploadResult, err := c.cld.Upload.Upload(ctx, bytes.NewReader(pdf), uploader.UploadParams{
		PublicID:     fmt.Sprintf("receipts/%s", name),
		Folder:       c.folder,
		ResourceType: "raw",
	})
	if err != nil {
		return "", err
	}
	return uploadResult.SecureURL, nil
}
