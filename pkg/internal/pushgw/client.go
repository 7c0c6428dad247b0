package pushgw

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"git.solsynth.dev/hypernet/syncup/pkg/internal/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

// TopicFor is the push topic every member device of a channel joins.
func TopicFor(channelId string) string {
	return "group_" + channelId
}

type Config struct {
	// Endpoint is the send URL, derived from the project id when empty.
	Endpoint string
	Timeout  time.Duration
	Rate     rate.Limit
	Burst    int
}

type envelope struct {
	Message outbound `json:"message"`
}

type outbound struct {
	Topic   string            `json:"topic"`
	Data    map[string]string `json:"data"`
	Android struct {
		Priority string `json:"priority"`
	} `json:"android"`
}

type Client struct {
	endpoint string
	timeout  time.Duration
	tokens   *TokenSource
	limiter  *rate.Limiter
}

func NewClient(creds Credentials, cfg Config) (*Client, error) {
	cfg.Timeout = lo.Ternary(cfg.Timeout > 0, cfg.Timeout, 10*time.Second)
	if cfg.Rate <= 0 {
		cfg.Rate = rate.Inf
	}
	cfg.Burst = lo.Ternary(cfg.Burst > 0, cfg.Burst, 1)
	if len(cfg.Endpoint) == 0 {
		if len(creds.ProjectID) == 0 {
			return nil, fmt.Errorf("push credentials carry no project id")
		}
		cfg.Endpoint = fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", creds.ProjectID)
	}

	tokens, err := NewTokenSource(creds, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &Client{
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
		tokens:   tokens,
		limiter:  rate.NewLimiter(cfg.Rate, cfg.Burst),
	}, nil
}

// Send delivers data to every device subscribed to topic.
func (v *Client) Send(ctx context.Context, topic string, data map[string]string) error {
	if err := v.limiter.Wait(ctx); err != nil {
		return err
	}
	token, err := v.tokens.Token()
	if err != nil {
		return err
	}

	body := envelope{Message: outbound{Topic: topic, Data: data}}
	body.Message.Android.Priority = "high"

	agent := fiber.Post(v.endpoint).
		Set(fiber.HeaderAuthorization, "Bearer "+token).
		JSON(body).
		Timeout(v.timeout)
	code, resp, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("unable to reach push gateway: %v", errs[0])
	} else if code != fiber.StatusOK {
		return fmt.Errorf("push gateway rejected message: status %d: %s", code, resp)
	}
	return nil
}

// Publish sends in the background. Failures are only logged.
func (v *Client) Publish(topic string, data map[string]string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*v.timeout)
		defer cancel()
		if err := v.Send(ctx, topic, data); err != nil {
			metrics.PushDeliveries.WithLabelValues("failed").Inc()
			log.Warn().Err(err).Str("topic", topic).Msg("An error occurred when posting push notification...")
			return
		}
		metrics.PushDeliveries.WithLabelValues("sent").Inc()
	}()
}

// Topics tracks the push topics this device joined.
type Topics struct {
	mu     sync.Mutex
	joined map[string]bool
}

func NewTopics() *Topics {
	return &Topics{joined: make(map[string]bool)}
}

func (v *Topics) Join(topic string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.joined[topic] {
		v.joined[topic] = true
		log.Debug().Str("topic", topic).Msg("Subscribed to push topic...")
	}
}

func (v *Topics) Leave(topic string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.joined, topic)
}

func (v *Topics) Joined(topic string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.joined[topic]
}

// List returns the joined topics sorted.
func (v *Topics) List() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := lo.Keys(v.joined)
	sort.Strings(out)
	return out
}

// ChannelOf reverses TopicFor.
func ChannelOf(topic string) (string, bool) {
	return strings.CutPrefix(topic, "group_")
}
