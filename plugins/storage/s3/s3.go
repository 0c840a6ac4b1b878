package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mdtangle/pkg/contract"
)

// Options: S3 兼容对象存储选项。
type Options struct {
	Endpoint string `json:"endpoint"`
	Region   string `json:"region,omitempty"`
	// AccessKey/SecretKey 缺省时读取 AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY。
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	Bucket    string `json:"bucket"`
	// Prefix: 对象键前缀（例如 "tangle/run-1"）。
	Prefix string `json:"prefix,omitempty"`
	UseSSL bool   `json:"use_ssl,omitempty"`
	// TruncateOnFirstOpen: 本次运行首次打开某对象时丢弃其已有内容。默认 true。
	TruncateOnFirstOpen *bool `json:"truncate_on_first_open,omitempty"`
	// CacheSize: 本次运行已写对象正文的 LRU 缓存条数；默认 256。
	CacheSize int `json:"cache_size,omitempty"`
}

// objects 为对象读写的最小能力，便于替换底层客户端。
type objects interface {
	put(ctx context.Context, key string, body []byte) error
	// get 返回对象内容；对象不存在时 ok=false。
	get(ctx context.Context, key string) (body []byte, ok bool, err error)
}

// S3 将每个目标路径映射为一个对象。对象不支持追加：
// 句柄在内存中累积内容，Close 时整体上传（已有内容 + 新内容）。
type S3 struct {
	obj      objects
	prefix   string
	truncate bool
	cache    *lru.Cache[string, []byte]

	mu   sync.Mutex
	busy bool
	seen map[string]struct{}
}

// New 创建 S3 存储。
func New(opts *Options) (*S3, error) {
	if opts == nil {
		return nil, fmt.Errorf("%w: s3 options are required", contract.ErrInvalidInput)
	}
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: s3 endpoint is required", contract.ErrInvalidInput)
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", contract.ErrInvalidInput)
	}
	access := firstNonEmpty(opts.AccessKey, os.Getenv("AWS_ACCESS_KEY_ID"))
	secret := firstNonEmpty(opts.SecretKey, os.Getenv("AWS_SECRET_ACCESS_KEY"))
	if access == "" || secret == "" {
		return nil, fmt.Errorf("%w: s3 access key and secret key are required", contract.ErrInvalidInput)
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return newWith(&minioObjects{client: client, bucket: bucket, region: region}, opts)
}

func newWith(obj objects, opts *Options) (*S3, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	truncate := true
	if opts.TruncateOnFirstOpen != nil {
		truncate = *opts.TruncateOnFirstOpen
	}
	return &S3{
		obj:      obj,
		prefix:   strings.Trim(strings.TrimSpace(opts.Prefix), "/"),
		truncate: truncate,
		cache:    cache,
		seen:     make(map[string]struct{}),
	}, nil
}

func firstNonEmpty(xs ...string) string {
	for _, x := range xs {
		if x = strings.TrimSpace(x); x != "" {
			return x
		}
	}
	return ""
}

var _ contract.Storage = (*S3)(nil)

// OpenAppend 返回 p 对应对象的追加句柄。
func (s *S3) OpenAppend(ctx context.Context, p contract.Path) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := s.objectKey(p)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return nil, contract.ErrHandleBusy
	}

	var base []byte
	_, seen := s.seen[key]
	switch {
	case !seen && s.truncate:
	case s.cache.Contains(key):
		base, _ = s.cache.Get(key)
	default:
		body, ok, err := s.obj.get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		if ok {
			base = body
		}
	}
	s.seen[key] = struct{}{}
	s.busy = true
	h := &handle{s: s, ctx: ctx, key: key}
	h.buf.Write(base)
	return h, nil
}

// objectKey: 规范化相对路径并拼接前缀；拒绝空路径、绝对路径与父级逃逸。
func (s *S3) objectKey(p contract.Path) (string, error) {
	raw := strings.TrimSpace(strings.ReplaceAll(string(p), "\\", "/"))
	if raw == "" || strings.HasPrefix(raw, "/") {
		return "", contract.ErrPathInvalid
	}
	rel := path.Clean(raw)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", contract.ErrPathInvalid
	}
	if s.prefix == "" {
		return rel, nil
	}
	return s.prefix + "/" + rel, nil
}

type handle struct {
	s      *S3
	ctx    context.Context
	key    string
	buf    bytes.Buffer
	closed bool
}

func (h *handle) Write(p []byte) (int, error) {
	if h.closed {
		return 0, os.ErrClosed
	}
	return h.buf.Write(p)
}

// Close 上传累积内容并释放句柄；上传失败时句柄同样释放。
func (h *handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	defer func() {
		h.s.mu.Lock()
		h.s.busy = false
		h.s.mu.Unlock()
	}()
	body := h.buf.Bytes()
	if err := h.s.obj.put(h.ctx, h.key, body); err != nil {
		h.s.cache.Remove(h.key)
		return fmt.Errorf("put %s: %w", h.key, err)
	}
	h.s.cache.Add(h.key, body)
	return nil
}

// minioObjects 以 minio 客户端实现 objects；首次访问时确保桶存在。
type minioObjects struct {
	client *minio.Client
	bucket string
	region string

	initOnce sync.Once
	initErr  error
}

func (m *minioObjects) ensureBucket(ctx context.Context) error {
	m.initOnce.Do(func() {
		exists, err := m.client.BucketExists(ctx, m.bucket)
		if err != nil {
			m.initErr = err
			return
		}
		if exists {
			return
		}
		m.initErr = m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region})
	})
	return m.initErr
}

func (m *minioObjects) put(ctx context.Context, key string, body []byte) error {
	if err := m.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	return err
}

func (m *minioObjects) get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := m.ensureBucket(ctx); err != nil {
		return nil, false, fmt.Errorf("ensure bucket: %w", err)
	}
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, false, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}
