package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/nexthr/linerelay/internal/mailer"
	"github.com/nexthr/linerelay/internal/report"
)

// MailHandler sends templated notification mail, optionally with the
// same content rendered as an attached PDF.
type MailHandler struct {
	logger   *slog.Logger
	sender   mailer.Sender
	renderer report.Renderer
	validate *validator.Validate
}

func NewMailHandler(log *slog.Logger, sender mailer.Sender, renderer report.Renderer) *MailHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MailHandler{
		logger:   log.With(slog.String("handler", "mail")),
		sender:   sender,
		renderer: renderer,
		validate: validator.New(),
	}
}

func (h *MailHandler) Register(e *echo.Echo) {
	e.POST("/mail/send", h.Send)
}

type sendMailRequest struct {
	To        string `json:"to" validate:"required,email"`
	Subject   string `json:"subject" validate:"required"`
	Name      string `json:"name"`
	ContentA  string `json:"contentA"`
	ContentB  string `json:"contentB"`
	AttachPDF bool   `json:"attachPdf"`
}

func (h *MailHandler) Send(c echo.Context) error {
	var req sendMailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	htmlBody, err := report.RenderMailBody(report.MailBodyData{
		Name:     req.Name,
		ContentA: req.ContentA,
		ContentB: req.ContentB,
	})
	if err != nil {
		h.logger.Error("render mail body failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render mail")
	}

	msg := mailer.Message{
		To:       []string{req.To},
		Subject:  req.Subject,
		HTMLBody: htmlBody,
	}
	if req.AttachPDF {
		pdfBytes, err := h.renderer.Render(report.Data{
			Title: req.Subject,
			Fields: []report.Field{
				{Label: req.Name, Value: req.ContentA},
				{Label: "", Value: req.ContentB},
			},
		})
		if err != nil {
			h.logger.Error("render mail pdf failed", slog.Any("error", err))
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to render pdf")
		}
		msg.Attachment = &mailer.Attachment{
			Filename:    "report.pdf",
			ContentType: "application/pdf",
			Content:     pdfBytes,
		}
	}

	if err := h.sender.Send(c.Request().Context(), msg); err != nil {
		h.logger.Error("send mail failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to send mail")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Mail sent successfully"})
}
