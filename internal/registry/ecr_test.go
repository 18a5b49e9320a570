package registry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
)

func TestParseImageRef(t *testing.T) {
	tests := []struct {
		uri  string
		want ImageRef
		ok   bool
	}{
		{
			uri:  "123456789012.dkr.ecr.us-west-2.amazonaws.com/pytorch-inference:1.13.1-cpu-py39",
			want: ImageRef{RegistryID: "123456789012", Region: "us-west-2", Repository: "pytorch-inference", Tag: "1.13.1-cpu-py39"},
			ok:   true,
		},
		{
			uri:  "123456789012.dkr.ecr.eu-central-1.amazonaws.com/team/serving",
			want: ImageRef{RegistryID: "123456789012", Region: "eu-central-1", Repository: "team/serving", Tag: "latest"},
			ok:   true,
		},
		{uri: "docker.io/library/python:3.9", ok: false},
		{uri: "ghcr.io/org/image:v1", ok: false},
		{uri: "", ok: false},
	}

	for _, tt := range tests {
		got, ok := ParseImageRef(tt.uri)
		if ok != tt.ok {
			t.Errorf("ParseImageRef(%q) ok = %v, want %v", tt.uri, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseImageRef(%q) = %+v, want %+v", tt.uri, got, tt.want)
		}
	}
}

type fakeECR struct {
	details []ecrtypes.ImageDetail
	err     error

	gotRepo string
	gotTag  string
	calls   int
}

func (f *fakeECR) DescribeImages(_ context.Context, in *ecr.DescribeImagesInput, _ ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error) {
	f.calls++
	f.gotRepo = aws.ToString(in.RepositoryName)
	if len(in.ImageIds) == 1 {
		f.gotTag = aws.ToString(in.ImageIds[0].ImageTag)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &ecr.DescribeImagesOutput{ImageDetails: f.details}, nil
}

func TestVerify(t *testing.T) {
	fake := &fakeECR{details: []ecrtypes.ImageDetail{
		{ImageDigest: aws.String("sha256:abc123")},
	}}
	v := NewWithClient(fake)

	digest, err := v.Verify(context.Background(), "123456789012.dkr.ecr.us-west-2.amazonaws.com/pytorch-inference:1.13.1-cpu-py39")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if digest != "sha256:abc123" {
		t.Errorf("digest = %s", digest)
	}
	if fake.gotRepo != "pytorch-inference" || fake.gotTag != "1.13.1-cpu-py39" {
		t.Errorf("looked up %s:%s", fake.gotRepo, fake.gotTag)
	}
}

func TestVerify_NonECRPassesThrough(t *testing.T) {
	fake := &fakeECR{}
	v := NewWithClient(fake)

	digest, err := v.Verify(context.Background(), "docker.io/library/python:3.9")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if digest != "" {
		t.Errorf("digest = %q, want empty for unverified reference", digest)
	}
	if fake.calls != 0 {
		t.Errorf("non-ECR reference should not hit the registry: %d calls", fake.calls)
	}
}

func TestVerify_MissingImage(t *testing.T) {
	fake := &fakeECR{}
	v := NewWithClient(fake)

	_, err := v.Verify(context.Background(), "123456789012.dkr.ecr.us-west-2.amazonaws.com/pytorch-inference:no-such-tag")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestVerify_ServiceError(t *testing.T) {
	fake := &fakeECR{err: errors.New("access denied")}
	v := NewWithClient(fake)

	if _, err := v.Verify(context.Background(), "123456789012.dkr.ecr.us-west-2.amazonaws.com/repo:tag"); !errors.Is(err, fake.err) {
		t.Errorf("expected wrapped service error, got %v", err)
	}
}
