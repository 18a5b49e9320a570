// Package registry verifies the serving container image before submission.
package registry

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
)

var ecrImageRe = regexp.MustCompile(`^(\d{12})\.dkr\.ecr\.([a-z0-9-]+)\.amazonaws\.com/([^:@]+)(?::(.+))?$`)

type ecrAPI interface {
	DescribeImages(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error)
}

// Verifier checks that an image reference resolves in ECR.
type Verifier struct {
	client ecrAPI
}

// New creates a Verifier for the given region.
func New(ctx context.Context, region string) (*Verifier, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewWithClient(ecr.NewFromConfig(awsCfg)), nil
}

// NewWithClient wires an explicit ECR client. Used by tests.
func NewWithClient(client ecrAPI) *Verifier {
	return &Verifier{client: client}
}

// ImageRef is a parsed ECR image reference.
type ImageRef struct {
	RegistryID string
	Region     string
	Repository string
	Tag        string
}

// ParseImageRef splits an ECR image URI into its parts. Returns false for
// references hosted outside ECR; those are passed through unverified.
func ParseImageRef(uri string) (ImageRef, bool) {
	m := ecrImageRe.FindStringSubmatch(strings.TrimSpace(uri))
	if m == nil {
		return ImageRef{}, false
	}
	ref := ImageRef{RegistryID: m[1], Region: m[2], Repository: m[3], Tag: m[4]}
	if ref.Tag == "" {
		ref.Tag = "latest"
	}
	return ref, true
}

// Verify confirms the tagged image exists and returns its digest. A
// reference that is not an ECR URI verifies trivially with an empty digest.
func (v *Verifier) Verify(ctx context.Context, imageURI string) (string, error) {
	ref, ok := ParseImageRef(imageURI)
	if !ok {
		return "", nil
	}

	out, err := v.client.DescribeImages(ctx, &ecr.DescribeImagesInput{
		RegistryId:     aws.String(ref.RegistryID),
		RepositoryName: aws.String(ref.Repository),
		ImageIds: []ecrtypes.ImageIdentifier{
			{ImageTag: aws.String(ref.Tag)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("describe image %s: %w", imageURI, err)
	}
	if len(out.ImageDetails) == 0 {
		return "", fmt.Errorf("image %s not found in ECR", imageURI)
	}
	return aws.ToString(out.ImageDetails[0].ImageDigest), nil
}
