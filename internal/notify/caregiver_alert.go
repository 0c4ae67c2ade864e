package notify

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/olayemidamola/medsync/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// ============================================
// 日志报警通道（默认）
// ============================================

// LogAlertChannel 日志报警通道
// 未配置邮件或 Webhook 时的回落实现
type LogAlertChannel struct {
	logger *zap.Logger
}

// NewLogAlertChannel 创建日志报警通道
func NewLogAlertChannel(logger *zap.Logger) *LogAlertChannel {
	return &LogAlertChannel{logger: logger}
}

// Alert 以日志形式记录漏服报警
func (c *LogAlertChannel) Alert(ctx context.Context, med models.Medication, doseIndex int, dose models.DoseSchedule, caregivers []models.Caregiver) error {
	c.logger.Warn("MISSED DOSE ALERT",
		zap.String("medication", med.Name),
		zap.String("dosage", med.Dosage),
		zap.String("dose_time", dose.Time),
		zap.Int("caregiver_count", len(caregivers)),
	)
	return nil
}

// ============================================
// 邮件报警通道
// ============================================

const alertEmailPlain = `A scheduled medication dose was missed:

Medication: {{.MedicationName}} ({{.Dosage}})
Scheduled time: {{.ScheduledTime}}
Detected at: {{.DetectedAt}}

The dose was not confirmed within the allowed window. Please check in with the patient.
`

var alertEmailTemplate = template.Must(template.New("alert_email").Parse(alertEmailPlain))

type alertEmailData struct {
	MedicationName string
	Dosage         string
	ScheduledTime  string
	DetectedAt     string
}

// EmailAlertChannel 邮件报警通道（SendGrid）
type EmailAlertChannel struct {
	client    *sendgrid.Client
	fromEmail string
	subject   string
	logger    *zap.Logger
}

// NewEmailAlertChannel 创建邮件报警通道
func NewEmailAlertChannel(apiKey, fromEmail, subject string, logger *zap.Logger) *EmailAlertChannel {
	return &EmailAlertChannel{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		subject:   subject,
		logger:    logger,
	}
}

// Alert 向每位监护人发送漏服邮件
// 单个收件人失败不阻止其余收件人，最后返回首个错误
func (c *EmailAlertChannel) Alert(ctx context.Context, med models.Medication, doseIndex int, dose models.DoseSchedule, caregivers []models.Caregiver) error {
	if len(caregivers) == 0 {
		c.logger.Warn("Missed dose but no caregivers configured",
			zap.String("medication", med.Name),
			zap.String("dose_time", dose.Time),
		)
		return nil
	}

	textContent := &bytes.Buffer{}
	err := alertEmailTemplate.Execute(textContent, alertEmailData{
		MedicationName: med.Name,
		Dosage:         med.Dosage,
		ScheduledTime:  dose.Time,
		DetectedAt:     time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to render alert email: %w", err)
	}

	var firstErr error
	for _, caregiver := range caregivers {
		if caregiver.Email == "" {
			continue
		}
		if err := c.sendOne(ctx, caregiver, textContent.String()); err != nil {
			c.logger.Error("Failed to send alert email",
				zap.String("caregiver_id", caregiver.ID),
				zap.String("medication", med.Name),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (c *EmailAlertChannel) sendOne(ctx context.Context, caregiver models.Caregiver, content string) error {
	message := mail.NewV3Mail()
	message.From = mail.NewEmail("MedSync Bot", c.fromEmail)
	message.Subject = c.subject

	personalization := mail.NewPersonalization()
	personalization.To = append(personalization.To, mail.NewEmail(caregiver.Name, caregiver.Email))
	message.Personalizations = append(message.Personalizations, personalization)

	message.Content = append(message.Content, mail.NewContent("text/plain", content))

	resp, err := c.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send mail through SendGrid: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2XX response from SendGrid: %d %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// ============================================
// Webhook 报警通道
// ============================================

// caregiverAlertPayload Webhook 请求体
type caregiverAlertPayload struct {
	Medication models.Medication   `json:"medication"`
	DoseIndex  int                 `json:"dose_index"`
	Dose       models.DoseSchedule `json:"dose"`
	Caregivers []models.Caregiver  `json:"caregivers"`
	AlertedAt  time.Time           `json:"alerted_at"`
}

// WebhookAlertChannel Webhook 报警通道
// 把漏服事件 POST 到外部告警服务
type WebhookAlertChannel struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewWebhookAlertChannel 创建 Webhook 报警通道
func NewWebhookAlertChannel(url string, logger *zap.Logger) *WebhookAlertChannel {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookAlertChannel{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// Alert 把漏服事件推送到外部告警服务
func (c *WebhookAlertChannel) Alert(ctx context.Context, med models.Medication, doseIndex int, dose models.DoseSchedule, caregivers []models.Caregiver) error {
	payload := caregiverAlertPayload{
		Medication: med,
		DoseIndex:  doseIndex,
		Dose:       dose,
		Caregivers: caregivers,
		AlertedAt:  time.Now(),
	}

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("failed to post caregiver alert: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("caregiver alert webhook returned %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Info("Caregiver alert webhook delivered",
		zap.String("medication", med.Name),
		zap.String("dose_time", dose.Time),
		zap.Int("status_code", resp.StatusCode()),
	)
	return nil
}
