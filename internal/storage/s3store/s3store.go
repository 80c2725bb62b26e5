// Пакет s3store — хранилище артефактов в S3-совместимом объектном хранилище
// (AWS S3, MinIO, Ceph RGW). Один bucket; ссылка на артефакт — ключ объекта.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/bigkaa/replaystore/internal/storage"
)

// Config — параметры подключения к S3.
type Config struct {
	Bucket string
	Region string
	// Endpoint — адрес S3-совместимого сервиса ("" = AWS)
	Endpoint string
	// PathStyle — path-style адресация bucket'а
	PathStyle bool
}

// Store — реализация storage.Store поверх S3.
type Store struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

// New создаёт S3-хранилище. Учётные данные берутся из стандартной
// цепочки AWS SDK (AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY, профиль, IAM).
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: не задан bucket")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("s3: ошибка загрузки конфигурации AWS: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return NewWithClient(client, cfg.Bucket, logger), nil
}

// NewWithClient создаёт хранилище поверх готового клиента.
func NewWithClient(client *s3.Client, bucket string, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		bucket: bucket,
		logger: logger.With(slog.String("component", "s3store"), slog.String("bucket", bucket)),
	}
}

// Put загружает артефакт в bucket и возвращает ключ объекта.
// Содержимое буферизуется: размер загрузки ограничен на уровне HTTP.
func (s *Store) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("ошибка чтения данных артефакта: %w", err)
	}

	ref := storage.NewRef(name)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(ref),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("ошибка загрузки артефакта в S3: %w", err)
	}

	s.logger.Debug("Артефакт загружен", slog.String("ref", ref), slog.Int("size", len(data)))
	return ref, nil
}

// Read скачивает содержимое артефакта.
func (s *Store) Read(ctx context.Context, ref string) ([]byte, error) {
	if err := storage.ValidateRef(ref); err != nil {
		return nil, fmt.Errorf("%w: %q", err, ref)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, ref)
		}
		return nil, fmt.Errorf("ошибка чтения артефакта %s из S3: %w", ref, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения тела объекта %s: %w", ref, err)
	}
	return data, nil
}

// Delete удаляет объект. DeleteObject в S3 не сообщает об отсутствии ключа,
// поэтому существование проверяется через HeadObject.
func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := storage.ValidateRef(ref); err != nil {
		return fmt.Errorf("%w: %q", err, ref)
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, ref)
		}
		return fmt.Errorf("ошибка проверки артефакта %s в S3: %w", ref, err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления артефакта %s из S3: %w", ref, err)
	}
	return nil
}

// isNotFound распознаёт ответ 404 от S3 (NoSuchKey для GET, NotFound для HEAD).
func isNotFound(err error) bool {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}
