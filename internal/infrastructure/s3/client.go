package s3infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-onboarding/internal/domain"
)

// PutObjectAPI is the part of the S3 client the archive needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive uploads finished onboarding transcripts to a bucket.
type Archive struct {
	client PutObjectAPI
	bucket string
	now    func() time.Time
}

// NewClient creates an S3 client. When endpointURL is set (LocalStack),
// it overrides the endpoint and enables path-style addressing.
func NewClient(awsCfg aws.Config, endpointURL string) *s3.Client {
	var clientOpts []func(*s3.Options)
	if endpointURL != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpointURL)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, clientOpts...)
}

func NewArchive(client PutObjectAPI, bucket string) *Archive {
	return &Archive{client: client, bucket: bucket, now: time.Now}
}

// Archive writes the session transcript under
// onboarding/<yyyy>/<mm>/<dd>/<id>.log. The credential is never included.
func (a *Archive) Archive(ctx context.Context, s *domain.OnboardingSession) error {
	key := objectKey(a.now().UTC(), s.OnboardingID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(transcript(s)),
		ContentType: aws.String("text/plain; charset=utf-8"),
		Metadata: map[string]string{
			"username": s.Username,
			"status":   string(s.Status),
		},
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s: %w", key, err)
	}
	return nil
}

func objectKey(t time.Time, onboardingID string) string {
	return fmt.Sprintf("onboarding/%s/%s.log", t.Format("2006/01/02"), onboardingID)
}

func transcript(s *domain.OnboardingSession) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# onboarding %s\n", s.OnboardingID)
	fmt.Fprintf(&b, "# username: %s\n", s.Username)
	fmt.Fprintf(&b, "# status: %s\n", s.Status)
	fmt.Fprintf(&b, "# created: %s\n", s.CreatedAt.UTC().Format(time.RFC3339))
	for _, line := range s.Logs {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
