package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// deleteBatchSize — лимит DeleteObjects на один запрос.
const deleteBatchSize = 1000

// S3API — используемое подмножество клиента S3.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config — параметры подключения к S3-совместимому хранилищу.
type S3Config struct {
	Bucket string
	Region string
	// Endpoint — адрес не-AWS хранилища; пусто — AWS по региону.
	Endpoint string
	// PublicURL — префикс публичных ссылок на объекты бакета.
	PublicURL string
}

// S3Store — файлы в бакете S3.
type S3Store struct {
	client    S3API
	bucket    string
	publicURL string
}

// NewS3Store загружает AWS-конфигурацию (переменные окружения, профили)
// и создаёт хранилище. При заданном Endpoint используется path-style адресация.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки AWS конфигурации: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3StoreWithClient(client, cfg.Bucket, cfg.PublicURL), nil
}

// NewS3StoreWithClient создаёт хранилище поверх готового клиента.
func NewS3StoreWithClient(client S3API, bucket, publicURL string) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Upload выполняет PutObject. Тело читается в память целиком:
// SDK требует перематываемый поток для подписи запроса.
func (s *S3Store) Upload(ctx context.Context, name, contentType string, r io.Reader) error {
	if err := ValidatePath(name); err != nil {
		return err
	}

	body, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(ctxReader{ctx: ctx, r: r})
		if err != nil {
			return fmt.Errorf("ошибка чтения данных: %w", err)
		}
		body = bytes.NewReader(data)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("ошибка загрузки %s в S3: %w", name, err)
	}
	return nil
}

// PublicURL возвращает {publicURL}/{name}.
func (s *S3Store) PublicURL(name string) string {
	return s.publicURL + "/" + name
}

// PathFromURL восстанавливает ключ объекта из ссылки.
func (s *S3Store) PathFromURL(rawURL string) (string, bool) {
	return pathFromURL(rawURL)
}

// Remove удаляет объекты пакетами по 1000 ключей.
func (s *S3Store) Remove(ctx context.Context, names []string) error {
	var errs []error

	for start := 0; start < len(names); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(names))

		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, name := range names[start:end] {
			if err := ValidatePath(name); err != nil {
				errs = append(errs, err)
				continue
			}
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(name)})
		}
		if len(objects) == 0 {
			continue
		}

		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return errors.Join(append(errs, fmt.Errorf("ошибка удаления объектов S3: %w", err))...)
		}
		for _, e := range out.Errors {
			errs = append(errs, fmt.Errorf("ошибка удаления %s: %s",
				aws.ToString(e.Key), aws.ToString(e.Message)))
		}
	}

	return errors.Join(errs...)
}

// List перечисляет объекты бакета постранично.
func (s *S3Store) List(ctx context.Context) ([]Object, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})

	var objects []Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ошибка получения списка объектов S3: %w", err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Path:    aws.ToString(obj.Key),
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}
