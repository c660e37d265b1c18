package aws

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"moff.io/moff-connector/pkg/errors"
	"moff.io/moff-connector/pkg/log"
)

var (
	Client *Clients
)

// Init loads the default credential chain for region. bucketName may be empty when no QR
// codes are hosted.
func Init(ctx context.Context, region, bucketName string) *Clients {
	if region == "" {
		log.Fatalf("aws region not present")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}
	Client = &Clients{
		bucketName: bucketName,
		region:     region,
		s3Client:   s3.NewFromConfig(cfg),
		ssmClient:  ssm.NewFromConfig(cfg),
		sqsClient:  sqs.NewFromConfig(cfg),
	}
	return Client
}

type Clients struct {
	bucketName string
	region     string
	s3Client   *s3.Client
	ssmClient  *ssm.Client
	sqsClient  *sqs.Client
}

// GetParameterValue returns the decrypted value of an SSM parameter.
func (s *Clients) GetParameterValue(ctx context.Context, paramName string) (string, error) {
	input := &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: true,
	}
	parameter, err := s.ssmClient.GetParameter(ctx, input)
	if err != nil {
		return "", errors.WrapAndReport(err, "query parameter from ssm")
	}
	if parameter.Parameter == nil || parameter.Parameter.Value == nil {
		return "", errors.Errorf("parameter %s has no value", paramName)
	}
	return *parameter.Parameter.Value, nil
}

func (s *Clients) GetS3PresignedAccessURL(ctx context.Context, key string, expire time.Duration) (string, error) {
	request, err := s3.NewPresignClient(s.s3Client).PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expire))
	if err != nil {
		return "", errors.WithStackAndReport(err)
	}
	return request.URL, nil
}

func (s *Clients) PutFileToS3(ctx context.Context, key, contentType string, file io.Reader) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        file,
	}
	_, err := s.s3Client.PutObject(ctx, input)
	return errors.WrapAndReport(err, "put object to s3")
}

func (s *Clients) DeleteFileFromS3(ctx context.Context, key string) error {
	input := &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}
	_, err := s.s3Client.DeleteObject(ctx, input)
	return errors.WrapAndReport(err, "delete s3 object")
}

const qrCodeURLExpiry = 10 * time.Minute

// HostQRCode uploads a pairing QR code and returns a presigned url valid while pairing.
func (s *Clients) HostQRCode(ctx context.Context, key string, png []byte) (string, error) {
	if err := s.PutFileToS3(ctx, key, "image/png", bytes.NewReader(png)); err != nil {
		return "", err
	}
	return s.GetS3PresignedAccessURL(ctx, key, qrCodeURLExpiry)
}

const (
	httpsStr  = "https://"
	s3DotStr  = ".s3."
	amazonStr = ".amazonaws.com/"
)

func (s *Clients) PublicS3AccessURLFrom(key string) string {
	var buf bytes.Buffer
	buf.WriteString(httpsStr)
	buf.WriteString(s.bucketName)
	buf.WriteString(s3DotStr)
	buf.WriteString(s.region)
	buf.WriteString(amazonStr)
	buf.WriteString(key)
	return buf.String()
}
