package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // registered for image.Decode
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"hometour/portal/internal/config"
	"hometour/portal/internal/email"
	"hometour/portal/internal/models"
	"hometour/portal/internal/notify"
	"hometour/portal/internal/services"
	"hometour/portal/internal/storage"
)

// Task types.
const (
	TypeTourCompleted  = "tour:completed"
	TypeContactAttempt = "contact:attempt"
	TypeEmailDelivery  = "email:deliver"
	TypePropertyPhotos = "property:photos"
)

// --- Task Client (Enqueuing tasks) ---

// IEnqueuer is the slice of *asynq.Client the sweeps use to re-enqueue work.
type IEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}
	return asynq.NewClient(clientOpt)
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg             *config.Config
	emailSender     email.Sender
	notifier        notify.IWebhookNotifier
	showingService  services.IShowingService
	actionService   services.IActionService
	propertyService services.IPropertyService
	storageService  storage.IS3Storage
	taskClient      IEnqueuer
	httpClient      *http.Client
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	notifier notify.IWebhookNotifier,
	showingService services.IShowingService,
	actionService services.IActionService,
	propertyService services.IPropertyService,
	storageService storage.IS3Storage,
	taskClient IEnqueuer,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:             cfg,
		emailSender:     emailSender,
		notifier:        notifier,
		showingService:  showingService,
		actionService:   actionService,
		propertyService: propertyService,
		storageService:  storageService,
		taskClient:      taskClient,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
	}
}

// SetupServer configures and runs an Asynq server instance.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeTourCompleted, processor.HandleTourCompletedTask)
	mux.HandleFunc(TypeContactAttempt, processor.HandleContactAttemptTask)
	mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
	mux.HandleFunc(TypePropertyPhotos, processor.HandlePropertyPhotosTask)
	log.Println("Registered background task handlers.")

	return srv, mux
}

// --- Task Handlers ---

// TourCompletedPayload carries the showing whose completion webhook is due.
type TourCompletedPayload struct {
	ShowingRequestID string `json:"showing_request_id"`
}

// HandleTourCompletedTask posts the completion notice to the configured
// webhook endpoint. The enqueue side claimed completion_notified already, so
// a retry here can only produce duplicate notices, which the endpoint
// tolerates.
func (p *TaskProcessor) HandleTourCompletedTask(ctx context.Context, t *asynq.Task) error {
	var payload TourCompletedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal tour completed payload: %v: %w", err, asynq.SkipRetry)
	}

	showing, err := p.showingService.FindByID(ctx, payload.ShowingRequestID)
	if err != nil {
		log.Printf("Error loading showing %s for completion notice: %v", payload.ShowingRequestID, err)
		return err
	}
	if showing.Status != models.StatusCompleted {
		log.Printf("WARN: showing %s is %s, dropping completion notice", showing.ID, showing.Status)
		return fmt.Errorf("showing not completed: %w", asynq.SkipRetry)
	}

	notice := notify.CompletionNotice{ShowingRequestID: showing.ID}
	if showing.CompletedAt != nil {
		notice.CompletedAt = *showing.CompletedAt
	}
	if err := p.notifier.NotifyTourCompleted(ctx, notice); err != nil {
		log.Printf("Completion webhook failed for showing %s: %v", showing.ID, err)
		return err
	}
	log.Printf("Completion notice delivered for showing %s", showing.ID)
	return nil
}

// ContactAttemptPayload carries a buyer's tap-to-contact event.
type ContactAttemptPayload struct {
	ShowingRequestID string `json:"showing_request_id"`
	BuyerID          string `json:"buyer_id"`
	Method           string `json:"method"` // sms | call | email
	AgentID          string `json:"agent_id,omitempty"`
	AgentName        string `json:"agent_name,omitempty"`
}

// HandleContactAttemptTask persists a contact-attempt analytics row.
// Best-effort end to end: the recording call swallows its own failures and a
// malformed payload is dropped rather than retried.
func (p *TaskProcessor) HandleContactAttemptTask(ctx context.Context, t *asynq.Task) error {
	var payload ContactAttemptPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal contact attempt payload: %v: %w", err, asynq.SkipRetry)
	}

	var details *models.ActionDetails
	if payload.AgentID != "" || payload.AgentName != "" {
		details = &models.ActionDetails{
			AgentID:   payload.AgentID,
			AgentName: payload.AgentName,
			Method:    payload.Method,
		}
	}
	p.actionService.RecordContactAttempt(ctx, payload.ShowingRequestID, payload.BuyerID, payload.Method, details)
	return nil
}

// EmailTaskPayload carries a rendered notification email.
type EmailTaskPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// HandleEmailDeliveryTask assembles and sends a notification email.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("email task has no recipient: %w", asynq.SkipRetry)
	}

	fromAddress := p.cfg.SmtpFromAddress
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", payload.To))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", payload.Subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(payload.Body)
	sb.WriteString("\r\n")

	if err := p.emailSender.Send(ctx, []string{payload.To}, payload.Subject, []byte(sb.String())); err != nil {
		log.Printf("Email sending failed for %s: %v", payload.To, err)
		return err
	}
	log.Printf("Email task processed successfully: To=%s, Subject=%s", payload.To, payload.Subject)
	return nil
}

// PropertyPhotosPayload names the property whose listing photos should be
// cached as thumbnails.
type PropertyPhotosPayload struct {
	PropertyID string   `json:"property_id"`
	ImageURLs  []string `json:"image_urls"`
}

// HandlePropertyPhotosTask downloads listing photos, normalizes them to the
// configured maximum dimension and stores them in S3, recording the keys on
// the property record. Individual photo failures are logged and skipped.
func (p *TaskProcessor) HandlePropertyPhotosTask(ctx context.Context, t *asynq.Task) error {
	var payload PropertyPhotosPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal property photos payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.PropertyID == "" || len(payload.ImageURLs) == 0 {
		return fmt.Errorf("property photos payload is incomplete: %w", asynq.SkipRetry)
	}

	cached := 0
	for _, sourceURL := range payload.ImageURLs {
		key, err := p.cachePhoto(ctx, payload.PropertyID, sourceURL)
		if err != nil {
			log.Printf("WARN: failed to cache photo %s for property %s: %v", sourceURL, payload.PropertyID, err)
			continue
		}
		if err := p.propertyService.AddImageKey(ctx, payload.PropertyID, key); err != nil {
			log.Printf("WARN: failed to record image key %s on property %s: %v", key, payload.PropertyID, err)
			continue
		}
		cached++
	}

	log.Printf("Cached %d/%d photos for property %s", cached, len(payload.ImageURLs), payload.PropertyID)
	return nil
}

func (p *TaskProcessor) cachePhoto(ctx context.Context, propertyID, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build photo request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("photo download returned status %d", resp.StatusCode)
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	imgData, err := io.ReadAll(io.LimitReader(resp.Body, maxSizeBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read photo data: %w", err)
	}
	if int64(len(imgData)) > maxSizeBytes {
		return "", fmt.Errorf("photo exceeds max size of %dMB", p.cfg.ImageMaxSizeMB)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		return "", fmt.Errorf("unsupported image format or corrupt image: %w", err)
	}

	maxDim := uint(p.cfg.ImageMaxDimension)
	data := imgData
	contentType := "image/" + format
	if uint(img.Bounds().Dx()) > maxDim || uint(img.Bounds().Dy()) > maxDim {
		resized := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
			return "", fmt.Errorf("failed to encode resized photo: %w", err)
		}
		data = buf.Bytes()
		contentType = "image/jpeg"
	}

	key := p.storageService.PropertyImageKey(propertyID, sourceURL)
	_, err = p.storageService.Client().PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.AwsS3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload photo to S3: %w", err)
	}
	return key, nil
}
