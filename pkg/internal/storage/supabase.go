package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
)

// Supabase talks to a Supabase storage REST endpoint.
type Supabase struct {
	baseURL string
	key     string
	timeout time.Duration
}

func NewSupabase(baseURL, key string, timeout time.Duration) *Supabase {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Supabase{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		key:     key,
		timeout: timeout,
	}
}

func (v *Supabase) authorize(agent *fiber.Agent) *fiber.Agent {
	return agent.
		Set(fiber.HeaderAuthorization, "Bearer "+v.key).
		Set("apikey", v.key).
		Timeout(v.timeout)
}

func (v *Supabase) PublicURL(bucket, name string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", v.baseURL, bucket, name)
}

func (v *Supabase) Upload(ctx context.Context, bucket, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	agent := v.authorize(fiber.Post(fmt.Sprintf("%s/storage/v1/object/%s/%s", v.baseURL, bucket, name))).
		ContentType(contentType).
		Set("x-upsert", "false").
		Body(data)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return "", fmt.Errorf("unable to upload %s: %v", name, errs[0])
	} else if code != fiber.StatusOK {
		return "", fmt.Errorf("unable to upload %s: status %d: %s", name, code, body)
	}
	return v.PublicURL(bucket, name), nil
}

func (v *Supabase) Delete(ctx context.Context, bucket string, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	agent := v.authorize(fiber.Delete(fmt.Sprintf("%s/storage/v1/object/%s", v.baseURL, bucket))).
		JSON(fiber.Map{"prefixes": names})
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("unable to delete objects: %v", errs[0])
	} else if code != fiber.StatusOK {
		return fmt.Errorf("unable to delete objects: status %d: %s", code, body)
	}
	return nil
}

func (v *Supabase) List(ctx context.Context, bucket string) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	agent := v.authorize(fiber.Post(fmt.Sprintf("%s/storage/v1/object/list/%s", v.baseURL, bucket))).
		JSON(fiber.Map{
			"prefix": "",
			"limit":  1000,
			"offset": 0,
			"sortBy": fiber.Map{"column": "created_at", "order": "asc"},
		})
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("unable to list objects: %v", errs[0])
	} else if code != fiber.StatusOK {
		return nil, fmt.Errorf("unable to list objects: status %d: %s", code, body)
	}

	var out []Object
	if err := jsoniter.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unable to parse object list: %v", err)
	}
	return out, nil
}
