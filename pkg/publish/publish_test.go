package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	kio "github.com/metasolutions/itada-infra/pkg/io"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/lambda"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"
)

// objectKey matches S3 inputs by their key.
type objectKey string

func (k objectKey) Matches(x any) bool {
	switch in := x.(type) {
	case *s3.HeadObjectInput:
		return aws.ToString(in.Key) == string(k)
	case *s3.PutObjectInput:
		return aws.ToString(in.Key) == string(k)
	}
	return false
}

func (k objectKey) String() string {
	return fmt.Sprintf("has key %s", string(k))
}

func notFound() error {
	return &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}
}

func TestCodeObjects(t *testing.T) {
	tests := []struct {
		name          string
		out           *lambda.Outputs
		want          []CodeObject
		wantUnchecked []string
	}{
		{
			name: "imported bucket",
			out: &lambda.Outputs{
				CodeObjects: map[string]string{"Trigger": "lambda_funcs/trigger.py", "Clean": "lambda_funcs/clean.py"},
				CodeBucket:  "itada-cdk-scripts",
			},
			want: []CodeObject{
				{Function: "Clean", Bucket: "itada-cdk-scripts", Key: "lambda_funcs/clean.py"},
				{Function: "Trigger", Bucket: "itada-cdk-scripts", Key: "lambda_funcs/trigger.py"},
			},
		},
		{
			name: "owned bucket",
			out: &lambda.Outputs{
				CodeObjects: map[string]string{"Trigger": "lambda_funcs/trigger.py"},
				CodeBucket:  map[string]any{"Ref": "S3Scripts"},
			},
			wantUnchecked: []string{"Trigger"},
		},
		{
			name: "no lambda layer",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, unchecked := CodeObjects(tt.out)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantUnchecked, unchecked)
		})
	}
}

func TestPublisher_Preflight(t *testing.T) {
	objects := []CodeObject{
		{Function: "Clean", Bucket: "scripts", Key: "clean.py"},
		{Function: "Trigger", Bucket: "scripts", Key: "trigger.py"},
	}
	tests := []struct {
		name    string
		results map[string]error
		wantErr []string
	}{
		{
			name:    "all present",
			results: map[string]error{"clean.py": nil, "trigger.py": nil},
		},
		{
			name:    "missing",
			results: map[string]error{"clean.py": notFound(), "trigger.py": notFound()},
			wantErr: []string{
				"function Clean: s3://scripts/clean.py does not exist",
				"function Trigger: s3://scripts/trigger.py does not exist",
			},
		},
		{
			name:    "denied",
			results: map[string]error{"clean.py": nil, "trigger.py": errors.New("access denied")},
			wantErr: []string{"function Trigger: could not check s3://scripts/trigger.py: access denied"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			s3c := NewMockS3Client(ctrl)
			for key, err := range tt.results {
				var out *s3.HeadObjectOutput
				if err == nil {
					out = &s3.HeadObjectOutput{}
				}
				s3c.EXPECT().HeadObject(gomock.Any(), objectKey(key)).Return(out, err)
			}

			p := &Publisher{S3: s3c, Concurrency: 2}
			err := p.Preflight(context.Background(), objects)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.ErrorContains(t, err, want)
			}
		})
	}
}

func TestPublisher_Publish(t *testing.T) {
	files := []kio.File{
		&kio.RawFile{FPath: "itada.template.json", Content: []byte(`{"Resources":{}}`)},
		&kio.RawFile{FPath: "itada.template.yaml", Content: []byte("Resources: {}\n")},
	}
	objects := []CodeObject{{Function: "Trigger", Bucket: "scripts", Key: "trigger.py"}}

	tests := []struct {
		name    string
		opts    Options
		mocks   func(stsc *MockSTSClient, s3c *MockS3Client)
		want    *Result
		wantErr string
	}{
		{
			name: "uploads after preflight",
			opts: Options{Bucket: "itada-templates-{{ .Account }}-{{ .Region }}", Prefix: "develop"},
			mocks: func(stsc *MockSTSClient, s3c *MockS3Client) {
				stsc.EXPECT().GetCallerIdentity(gomock.Any(), gomock.Any()).Return(&sts.GetCallerIdentityOutput{
					Account: aws.String("123456789012"),
					Arn:     aws.String("arn:aws:iam::123456789012:user/deployer"),
				}, nil)
				s3c.EXPECT().HeadObject(gomock.Any(), objectKey("trigger.py")).Return(&s3.HeadObjectOutput{}, nil)
				for _, f := range files {
					raw := f.(*kio.RawFile)
					s3c.EXPECT().PutObject(gomock.Any(), objectKey("develop/"+raw.FPath)).DoAndReturn(
						func(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
							assert.Equal(t, "itada-templates-123456789012-eu-north-1", aws.ToString(in.Bucket))
							body, err := io.ReadAll(in.Body)
							assert.NoError(t, err)
							assert.Equal(t, string(raw.Content), string(body))
							return &s3.PutObjectOutput{}, nil
						})
				}
			},
			want: &Result{
				Account: "123456789012",
				Bucket:  "itada-templates-123456789012-eu-north-1",
				Keys:    []string{"develop/itada.template.json", "develop/itada.template.yaml"},
				Bytes:   int64(len(`{"Resources":{}}`) + len("Resources: {}\n")),
			},
		},
		{
			name: "skip preflight",
			opts: Options{Bucket: "templates", SkipPreflight: true},
			mocks: func(stsc *MockSTSClient, s3c *MockS3Client) {
				stsc.EXPECT().GetCallerIdentity(gomock.Any(), gomock.Any()).Return(&sts.GetCallerIdentityOutput{
					Account: aws.String("123456789012"),
				}, nil)
				s3c.EXPECT().PutObject(gomock.Any(), gomock.Any()).Return(&s3.PutObjectOutput{}, nil).Times(2)
			},
			want: &Result{
				Account: "123456789012",
				Bucket:  "templates",
				Keys:    []string{"itada.template.json", "itada.template.yaml"},
				Bytes:   int64(len(`{"Resources":{}}`) + len("Resources: {}\n")),
			},
		},
		{
			name: "missing code stops the upload",
			opts: Options{Bucket: "templates"},
			mocks: func(stsc *MockSTSClient, s3c *MockS3Client) {
				stsc.EXPECT().GetCallerIdentity(gomock.Any(), gomock.Any()).Return(&sts.GetCallerIdentityOutput{
					Account: aws.String("123456789012"),
				}, nil)
				s3c.EXPECT().HeadObject(gomock.Any(), gomock.Any()).Return(nil, notFound())
			},
			wantErr: "preflight failed: function Trigger: s3://scripts/trigger.py does not exist",
		},
		{
			name: "no credentials",
			opts: Options{Bucket: "templates"},
			mocks: func(stsc *MockSTSClient, s3c *MockS3Client) {
				stsc.EXPECT().GetCallerIdentity(gomock.Any(), gomock.Any()).Return(nil, errors.New("no credentials"))
			},
			wantErr: "could not get caller identity: no credentials",
		},
		{
			name: "bad bucket template",
			opts: Options{Bucket: "templates-{{ .Acount }}"},
			mocks: func(stsc *MockSTSClient, s3c *MockS3Client) {
				stsc.EXPECT().GetCallerIdentity(gomock.Any(), gomock.Any()).Return(&sts.GetCallerIdentityOutput{
					Account: aws.String("123456789012"),
				}, nil)
			},
			wantErr: "could not render template bucket",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			stsc := NewMockSTSClient(ctrl)
			s3c := NewMockS3Client(ctrl)
			tt.mocks(stsc, s3c)

			p := &Publisher{STS: stsc, S3: s3c, Region: "eu-north-1"}
			got, err := p.Publish(context.Background(), tt.opts, files, objects)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
