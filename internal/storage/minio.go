// Package storage serves card images out of an object-storage bucket. The
// bucket holds one PNG per card, named <category>_<card-key>.png.
package storage

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"tarot-api/internal/apperr"
)

// CardImage is one selectable card image: the card key derived from the
// object name plus a client-usable URL.
type CardImage struct {
	Key        string
	ObjectName string
	URL        string
}

// ImageProvider picks a random card image for the daily draw.
type ImageProvider interface {
	RandomCardImage(ctx context.Context) (CardImage, error)
}

type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Secure        bool
	Bucket        string
	PublicBaseURL string
	Presign       bool
	PresignExpiry time.Duration
}

// MinioProvider lists the bucket on each draw and either presigns a GET URL
// or joins the object name onto a public base URL, depending on config.
type MinioProvider struct {
	client *minio.Client
	config Config
}

func NewMinioProvider(config Config) (*MinioProvider, error) {
	if config.PresignExpiry <= 0 {
		config.PresignExpiry = time.Hour
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	return &MinioProvider{client: client, config: config}, nil
}

// CheckBucket reports whether the configured bucket exists. Called once at
// startup; a missing bucket is logged, not fatal.
func (p *MinioProvider) CheckBucket(ctx context.Context) (bool, error) {
	exists, err := p.client.BucketExists(ctx, p.config.Bucket)
	if err != nil {
		return false, fmt.Errorf("check bucket %q: %w", p.config.Bucket, err)
	}
	return exists, nil
}

func (p *MinioProvider) RandomCardImage(ctx context.Context) (CardImage, error) {
	var objects []string
	for object := range p.client.ListObjects(ctx, p.config.Bucket, minio.ListObjectsOptions{Recursive: true}) {
		if object.Err != nil {
			return CardImage{}, fmt.Errorf("list bucket objects: %w", object.Err)
		}
		if strings.HasSuffix(strings.ToLower(object.Key), ".png") {
			objects = append(objects, object.Key)
		}
	}

	if len(objects) == 0 {
		return CardImage{}, apperr.ErrNoImagesAvailable
	}

	selected := objects[rand.Intn(len(objects))]

	imageURL, err := p.imageURL(ctx, selected)
	if err != nil {
		return CardImage{}, err
	}

	return CardImage{
		Key:        CardKeyFromObject(selected),
		ObjectName: selected,
		URL:        imageURL,
	}, nil
}

func (p *MinioProvider) imageURL(ctx context.Context, objectName string) (string, error) {
	if !p.config.Presign {
		base := strings.TrimRight(p.config.PublicBaseURL, "/")
		return base + "/" + objectName, nil
	}

	presigned, err := p.client.PresignedGetObject(ctx, p.config.Bucket, objectName, p.config.PresignExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %q: %w", objectName, err)
	}

	return presigned.String(), nil
}

// CardKeyFromObject derives the card key from an object name:
// "cards/major-arcana_the-fool.png" -> "major-arcana_the-fool".
func CardKeyFromObject(objectName string) string {
	name := objectName
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.Index(name, "."); idx >= 0 {
		name = name[:idx]
	}
	return strings.ToLower(name)
}
