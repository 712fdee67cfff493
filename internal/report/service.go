package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nexthr/linerelay/internal/conversation"
	"github.com/nexthr/linerelay/internal/mailer"
	"github.com/nexthr/linerelay/internal/storage"
	"github.com/nexthr/linerelay/internal/tenant"
)

// ConversationDirectory looks up the end user a report belongs to.
type ConversationDirectory interface {
	GetByID(ctx context.Context, id string) (conversation.Record, error)
}

// CompanyDirectory resolves the company that receives the report mail.
type CompanyDirectory interface {
	GetCompanyByID(ctx context.Context, companyID string) (tenant.Company, error)
}

// CreateParams is the /report/create payload, posted by Dify at the end
// of an interview conversation.
type CreateParams struct {
	LineUserID string
	DataA      string
	DataB      string
}

// Service runs the report pipeline: render PDF, upload, persist the
// row, mail the PDF to the company. Plain sequential I/O; each step
// fails the whole operation.
type Service struct {
	logger        *slog.Logger
	conversations ConversationDirectory
	companies     CompanyDirectory
	renderer      Renderer
	uploader      storage.Uploader
	store         Store
	sender        mailer.Sender
}

func NewService(log *slog.Logger, conversations ConversationDirectory, companies CompanyDirectory, renderer Renderer, uploader storage.Uploader, store Store, sender mailer.Sender) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		logger:        log.With(slog.String("service", "report")),
		conversations: conversations,
		companies:     companies,
		renderer:      renderer,
		uploader:      uploader,
		store:         store,
		sender:        sender,
	}
}

func (s *Service) Create(ctx context.Context, params CreateParams) (Report, error) {
	rec, err := s.conversations.GetByID(ctx, params.LineUserID)
	if err != nil {
		return Report{}, fmt.Errorf("line user %s: %w", params.LineUserID, err)
	}
	company, err := s.companies.GetCompanyByID(ctx, rec.CompanyID)
	if err != nil {
		return Report{}, err
	}

	pdfBytes, err := s.renderer.Render(Data{
		Title: "面接レポート",
		Fields: []Field{
			{Label: "評価サマリー", Value: params.DataA},
			{Label: "詳細", Value: params.DataB},
		},
	})
	if err != nil {
		return Report{}, err
	}

	key := fmt.Sprintf("reports/%s.pdf", uuid.NewString())
	storedKey, err := s.uploader.Upload(ctx, key, "application/pdf", pdfBytes)
	if err != nil {
		return Report{}, err
	}

	rep, err := s.store.Insert(ctx, Report{
		CompanyID:  rec.CompanyID,
		LineUserID: rec.ID,
		Payload:    map[string]string{"dataA": params.DataA, "dataB": params.DataB},
		S3Path:     storedKey,
		Remarks:    "レポート生成",
	})
	if err != nil {
		return Report{}, err
	}

	if company.EmailAddress == "" {
		s.logger.Warn("company has no email address, skipping report mail",
			slog.String("company_id", company.ID))
		return rep, nil
	}

	err = s.sender.Send(ctx, mailer.Message{
		To:       []string{company.EmailAddress},
		Subject:  "レポート作成完了",
		HTMLBody: "<p>レポートを添付いたします。</p>",
		Attachment: &mailer.Attachment{
			Filename:    "report.pdf",
			ContentType: "application/pdf",
			Content:     pdfBytes,
		},
	})
	if err != nil {
		return Report{}, fmt.Errorf("send report mail: %w", err)
	}

	s.logger.Info("report created",
		slog.String("report_id", rep.ID),
		slog.String("company_id", rep.CompanyID),
		slog.String("s3_path", rep.S3Path))
	return rep, nil
}
