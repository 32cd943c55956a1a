package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"policybolt/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
)

// PolicyArchive stores approved policies as markdown in Supabase storage.
type PolicyArchive interface {
	Archive(ctx context.Context, p *model.Policy) (string, error)
	// DownloadURL returns a short-lived link to an archived policy, or
	// ErrPolicyNotArchived when nothing was stored for it.
	DownloadURL(ctx context.Context, p *model.Policy) (string, error)
}

type s3PolicyArchive struct {
	s3Client      *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
	logger        zerolog.Logger
}

func NewPolicyArchive(s3Client *s3.Client, bucketName string, logger zerolog.Logger) PolicyArchive {
	return &s3PolicyArchive{
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		bucketName:    bucketName,
		logger:        logger.With().Str("service", "PolicyArchive").Logger(),
	}
}

// ArchiveKey is the object key of an archived policy.
func ArchiveKey(p *model.Policy) string {
	version := strings.ReplaceAll(p.Version, "/", "-")
	return fmt.Sprintf("projects/%s/policies/%s-%s.md", p.ProjectID, p.ID, version)
}

func (a *s3PolicyArchive) Archive(ctx context.Context, p *model.Policy) (string, error) {
	key := ArchiveKey(p)
	_, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucketName),
		Key:         aws.String(key),
		Body:        strings.NewReader(p.Content),
		ContentType: aws.String("text/markdown; charset=utf-8"),
		Metadata: map[string]string{
			"policy-id": p.ID,
			"version":   p.Version,
		},
	})
	if err != nil {
		a.logger.Error().Err(err).Str("policy_id", p.ID).Str("object_key", key).Msg("Failed to archive policy")
		return "", fmt.Errorf("archive policy %s: %w", p.ID, err)
	}
	return key, nil
}

func (a *s3PolicyArchive) DownloadURL(ctx context.Context, p *model.Policy) (string, error) {
	key := ArchiveKey(p)
	_, err := a.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey") {
			return "", ErrPolicyNotArchived
		}
		return "", fmt.Errorf("head archived policy %s: %w", p.ID, err)
	}

	resp, err := a.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(a.bucketName),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(fmt.Sprintf(`attachment; filename="privacy-policy-%s.md"`, p.Version)),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		a.logger.Error().Err(err).Str("object_key", key).Msg("Failed to generate presigned URL")
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return resp.URL, nil
}
