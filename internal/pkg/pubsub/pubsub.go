package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelBatchProgress = "competitive_progress"
)

// ProgressMessage 进度消息
type ProgressMessage struct {
	Type          string  `json:"type"`
	BatchID       string  `json:"batch_id"`
	RequestID     string  `json:"request_id,omitempty"`
	URL           string  `json:"url,omitempty"`
	Status        string  `json:"status"`
	Step          string  `json:"step,omitempty"`
	Progress      int     `json:"progress"`
	BatchProgress float64 `json:"batch_progress"`
	Message       string  `json:"message,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// 进度阶段常量
const (
	StepCrawling    = "crawling"
	StepSEOAnalysis = "seo_analysis"
	StepAEOAnalysis = "aeo_analysis"
	StepSaving      = "saving"
	StepDone        = "done"
)

// 阶段起始时的进度百分比
var StepProgress = map[string]int{
	StepCrawling:    10,
	StepSEOAnalysis: 35,
	StepAEOAnalysis: 65,
	StepSaving:      95,
	StepDone:        100,
}

// 阶段对应的消息
var StepMessages = map[string]string{
	StepCrawling:    "Crawling website",
	StepSEOAnalysis: "Analyzing SEO signals",
	StepAEOAnalysis: "Running AI analysis",
	StepSaving:      "Saving results",
	StepDone:        "Analysis complete",
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishProgress 发布进度消息
func (p *Publisher) PublishProgress(ctx context.Context, msg *ProgressMessage) error {
	msg.Type = "batch_progress"

	// 自动填充进度和消息
	if msg.Progress == 0 && msg.Step != "" {
		if progress, ok := StepProgress[msg.Step]; ok {
			msg.Progress = progress
		}
	}
	if msg.Message == "" && msg.Step != "" {
		if message, ok := StepMessages[msg.Step]; ok {
			msg.Message = message
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}

	return p.client.Publish(ctx, ChannelBatchProgress, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅进度消息
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*ProgressMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelBatchProgress)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var progressMsg ProgressMessage
			if err := json.Unmarshal([]byte(msg.Payload), &progressMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&progressMsg)
		}
	}
}
