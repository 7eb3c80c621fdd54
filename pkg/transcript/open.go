package transcript

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// StoreConfig selects and configures a Store driver.
type StoreConfig struct {
	Type      StoreType
	Dir       string // file
	RedisURL  string // redis
	Table     string // dynamodb, supabase
	URL       string // supabase
	Key       string // supabase
	Retention time.Duration
}

// OpenStore builds the Store described by cfg. An empty Type means file
// when Dir is set and memory otherwise.
func OpenStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	t := StoreType(strings.ToLower(string(cfg.Type)))
	if t == "" {
		t = StoreMemory
		if cfg.Dir != "" {
			t = StoreFile
		}
	}

	switch t {
	case StoreMemory:
		return NewMemoryStore(), nil
	case StoreFile:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("%w: file store needs a directory", ErrInvalidConfig)
		}
		return NewFileStore(filepath.Join(cfg.Dir, DefaultFileName))
	case StoreRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("%w: redis store needs a url", ErrInvalidConfig)
		}
		return NewRedisStoreFromURL(cfg.RedisURL, cfg.Retention)
	case StoreDynamo:
		if cfg.Table == "" {
			return nil, fmt.Errorf("%w: dynamodb store needs a table", ErrInvalidConfig)
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("transcript: load aws config: %w", err)
		}
		return NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.Table, cfg.Retention)
	case StoreSupabase:
		return NewSupabaseStore(cfg.URL, cfg.Key, cfg.Table)
	default:
		return nil, fmt.Errorf("%w: unknown store type %q", ErrInvalidConfig, cfg.Type)
	}
}
