package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gopi7989/agri-connect/internal/apperr"
	"github.com/Gopi7989/agri-connect/internal/config"
	"github.com/Gopi7989/agri-connect/internal/logger"
	"github.com/Gopi7989/agri-connect/internal/metrics"
	"github.com/Gopi7989/agri-connect/internal/models"
	"github.com/Gopi7989/agri-connect/internal/notify"
	"github.com/Gopi7989/agri-connect/internal/services"
	"github.com/Gopi7989/agri-connect/internal/utils"
)

// TaskType defines the type of a background task.
const (
	TypeInquiryNotify = "inquiry:notify"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"

	notifyMaxRetry = 5
	notifyTimeout  = 30 * time.Second
)

// --- Task Client (Enqueuing tasks) ---

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

// Enqueuer is the part of *asynq.Client the notifier needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier schedules inquiry notifications on the task queue.
type Notifier struct {
	client Enqueuer
}

func NewNotifier(client Enqueuer) *Notifier {
	return &Notifier{client: client}
}

type InquiryNotifyPayload struct {
	InquiryID string `json:"inquiry_id"`
}

func NewInquiryNotifyTask(inquiryID utils.SixID) (*asynq.Task, error) {
	payload, err := json.Marshal(InquiryNotifyPayload{InquiryID: inquiryID.String()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInquiryNotify, payload), nil
}

// EnqueueInquiryNotification implements services.InquiryNotifier.
func (n *Notifier) EnqueueInquiryNotification(ctx context.Context, inquiryID utils.SixID) error {
	task, err := NewInquiryNotifyTask(inquiryID)
	if err != nil {
		return fmt.Errorf("failed to build notification task: %w", err)
	}
	info, err := n.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(notifyMaxRetry),
		asynq.Timeout(notifyTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue notification task: %w", err)
	}
	logger.Debug("Enqueued inquiry notification",
		zap.String("inquiry_id", inquiryID.String()),
		zap.String("task_id", info.ID))
	return nil
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
type TaskProcessor struct {
	cfg       *config.Config
	sender    notify.Sender
	inquiries services.IInquiryService
}

func NewTaskProcessor(cfg *config.Config, sender notify.Sender, inquiries services.IInquiryService) *TaskProcessor {
	return &TaskProcessor{
		cfg:       cfg,
		sender:    sender,
		inquiries: inquiries,
	}
}

// SetupServer configures the worker server and its handler mux. The caller runs it.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		redisOpt(rdb),
		asynq.Config{
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			Logger: logger.Get().Sugar(),
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("[Asynq] task failed",
					zap.String("type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err))
			}),
		},
	)

	return srv, NewServeMux(processor)
}

// NewServeMux registers every task handler.
func NewServeMux(processor *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeInquiryNotify, processor.HandleInquiryNotifyTask)
	return mux
}

// --- Task Handlers ---

// HandleInquiryNotifyTask tells the receiving farmer about a new inquiry.
func (p *TaskProcessor) HandleInquiryNotifyTask(ctx context.Context, t *asynq.Task) error {
	var payload InquiryNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal notification payload: %v: %w", err, asynq.SkipRetry)
	}
	inquiryID, err := utils.ParseSixID(payload.InquiryID)
	if err != nil {
		return fmt.Errorf("invalid inquiry ID in payload: %w", asynq.SkipRetry)
	}

	view, err := p.inquiries.FindInquiryView(ctx, inquiryID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return fmt.Errorf("inquiry %s not found: %w", inquiryID, asynq.SkipRetry)
		}
		return err
	}
	if view.ToFarmer == nil || view.ToFarmer.MobileNumber == "" {
		return fmt.Errorf("inquiry %s has no reachable farmer: %w", inquiryID, asynq.SkipRetry)
	}

	msg := RenderInquiryNotification(view, p.cfg.NotifyFrom)
	if err := p.sender.Send(ctx, msg); err != nil {
		metrics.NotificationsSent.WithLabelValues("failed").Inc()
		logger.Warn("[Notify] send failed, will retry",
			zap.String("inquiry_id", inquiryID.String()), zap.Error(err))
		return err
	}
	metrics.NotificationsSent.WithLabelValues("sent").Inc()

	// Retrying after a successful send would notify twice.
	if err := p.inquiries.MarkNotified(ctx, inquiryID); err != nil {
		logger.Warn("[Notify] failed to flag inquiry as notified",
			zap.String("inquiry_id", inquiryID.String()), zap.Error(err))
	}
	logger.Info("Inquiry notification sent",
		zap.String("inquiry_id", inquiryID.String()),
		zap.String("to", msg.To))
	return nil
}

// RenderInquiryNotification builds the text sent to the farmer.
func RenderInquiryNotification(view *models.InquiryView, from string) notify.Message {
	crop := "your"
	if view.Listing != nil && view.Listing.CropName != "" {
		crop = "your " + view.Listing.CropName
	}
	buyerName := "a buyer"
	if view.FromBuyer != nil && view.FromBuyer.Name != "" {
		buyerName = view.FromBuyer.Name
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "New inquiry for %s listing from %s", crop, buyerName)
	if view.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(view.Message)
	}
	var offer []string
	if view.OfferPrice != nil {
		offer = append(offer, "price "+view.OfferPrice.String())
	}
	if view.OfferQuantity != "" {
		offer = append(offer, "quantity "+view.OfferQuantity)
	}
	if len(offer) > 0 {
		fmt.Fprintf(&sb, " (offer: %s)", strings.Join(offer, ", "))
	}

	return notify.Message{
		To:      view.ToFarmer.MobileNumber,
		From:    from,
		Subject: "New inquiry on Agri-connect",
		Body:    sb.String(),
		SentAt:  time.Now().UTC(),
	}
}
