package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/alitto/pond"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	kio "github.com/metasolutions/itada-infra/pkg/io"
	"github.com/metasolutions/itada-infra/pkg/logging"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/lambda"
	"github.com/metasolutions/itada-infra/pkg/templateutils"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

//go:generate mockgen -source=./publish.go --destination=./publish_mock_test.go --package=publish

const defaultConcurrency = 8

type (
	STSClient interface {
		GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
	}

	S3Client interface {
		HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
		PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	}

	Publisher struct {
		STS    STSClient
		S3     S3Client
		Region string
		// Concurrency bounds the parallel S3 requests.
		Concurrency int
	}

	Options struct {
		// Bucket receives the template. It is rendered with the caller's Account and the Region, eg
		// `itada-templates-{{ .Account }}`.
		Bucket string
		// Prefix is prepended to every uploaded key.
		Prefix        string
		SkipPreflight bool
	}

	// CodeObject is an object a function expects to find when the stack is deployed.
	CodeObject struct {
		Function string
		Bucket   string
		Key      string
	}

	Result struct {
		Account string
		Bucket  string
		Keys    []string
		Bytes   int64
	}

	bucketData struct {
		Account string
		Region  string
	}
)

func (o CodeObject) String() string {
	return fmt.Sprintf("s3://%s/%s", o.Bucket, o.Key)
}

// NewPublisher uses the default credential chain, optionally overriding the region.
func NewPublisher(ctx context.Context, region string) (*Publisher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not load AWS configuration: %w", err)
	}
	return &Publisher{
		STS:    sts.NewFromConfig(cfg),
		S3:     s3.NewFromConfig(cfg),
		Region: cfg.Region,
	}, nil
}

// CodeObjects lists the function code the stack references. Code in a bucket the stack creates itself cannot
// exist before deployment, so those functions are returned separately.
func CodeObjects(out *lambda.Outputs) (objects []CodeObject, unchecked []string) {
	if out == nil {
		return nil, nil
	}
	bucket, ok := out.CodeBucket.(string)
	for fn, key := range out.CodeObjects {
		if !ok {
			unchecked = append(unchecked, fn)
			continue
		}
		objects = append(objects, CodeObject{Function: fn, Bucket: bucket, Key: key})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Function < objects[j].Function })
	sort.Strings(unchecked)
	return objects, unchecked
}

func (p *Publisher) CallerAccount(ctx context.Context) (string, error) {
	out, err := p.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("could not get caller identity: %w", err)
	}
	account := aws.ToString(out.Account)
	logging.GetLogger(ctx).Named("publish").Info("Resolved caller",
		zap.String("account", account),
		zap.String("arn", aws.ToString(out.Arn)),
	)
	return account, nil
}

func (p *Publisher) pool(ctx context.Context, tasks int) *pond.WorkerPool {
	workers := p.Concurrency
	if workers <= 0 {
		workers = defaultConcurrency
	}
	return pond.New(workers, tasks+1, pond.Context(ctx))
}

// Preflight checks every code object exists. All objects are checked, the error lists each one that is missing.
func (p *Publisher) Preflight(ctx context.Context, objects []CodeObject) error {
	log := logging.GetLogger(ctx).Named("publish")
	pool := p.pool(ctx, len(objects))

	var errsMu sync.Mutex
	var errs []error
	for _, obj := range objects {
		obj := obj
		pool.Submit(func() {
			_, err := p.S3.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(obj.Bucket),
				Key:    aws.String(obj.Key),
			})
			if err == nil {
				log.Debug("Found code object", zap.String("function", obj.Function), zap.Stringer("object", obj))
				return
			}
			if isNotFound(err) {
				err = fmt.Errorf("function %s: %s does not exist", obj.Function, obj)
			} else {
				err = fmt.Errorf("function %s: could not check %s: %w", obj.Function, obj, err)
			}
			errsMu.Lock()
			errs = append(errs, err)
			errsMu.Unlock()
		})
	}
	pool.StopAndWait()

	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
		return errors.Join(errs...)
	}
	log.Info("Code objects present", zap.Int("count", len(objects)))
	return nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NotFound", "NoSuchKey":
		return true
	}
	return false
}

// Upload puts every file into bucket under prefix, returning the uploaded keys in file order.
func (p *Publisher) Upload(ctx context.Context, bucket, prefix string, files []kio.File) ([]string, int64, error) {
	log := logging.GetLogger(ctx).Named("publish")
	pool := p.pool(ctx, len(files))

	keys := make([]string, len(files))
	total := atomic.NewInt64(0)
	var errsMu sync.Mutex
	var errs error
	for i, f := range files {
		i, f := i, f
		keys[i] = path.Join(prefix, f.Path())
		pool.Submit(func() {
			buf := new(bytes.Buffer)
			if _, err := f.WriteTo(buf); err != nil {
				errsMu.Lock()
				errs = errors.Join(errs, fmt.Errorf("could not read %s: %w", f.Path(), err))
				errsMu.Unlock()
				return
			}
			size := int64(buf.Len())
			_, err := p.S3.PutObject(ctx, &s3.PutObjectInput{
				Bucket:      aws.String(bucket),
				Key:         aws.String(keys[i]),
				Body:        bytes.NewReader(buf.Bytes()),
				ContentType: aws.String(contentType(f.Path())),
			})
			if err != nil {
				errsMu.Lock()
				errs = errors.Join(errs, fmt.Errorf("could not upload %s: %w", keys[i], err))
				errsMu.Unlock()
				return
			}
			total.Add(size)
			log.Debug("Uploaded file", zap.String("key", keys[i]), logging.SizeField("size", size))
		})
	}
	pool.StopAndWait()
	return keys, total.Load(), errs
}

func contentType(p string) string {
	switch path.Ext(p) {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	}
	return "application/octet-stream"
}

// Publish resolves the caller's account, checks the function code is in place and uploads the synthesized files.
func (p *Publisher) Publish(ctx context.Context, opts Options, files []kio.File, objects []CodeObject) (*Result, error) {
	log := logging.GetLogger(ctx).Named("publish")

	account, err := p.CallerAccount(ctx)
	if err != nil {
		return nil, err
	}
	bucket, err := templateutils.Render("bucket", opts.Bucket, bucketData{Account: account, Region: p.Region})
	if err != nil {
		return nil, err
	}
	if bucket == "" {
		return nil, errors.New("no bucket to publish to")
	}

	if opts.SkipPreflight {
		log.Warn("Skipping code object preflight", zap.Int("objects", len(objects)))
	} else if err := p.Preflight(ctx, objects); err != nil {
		return nil, fmt.Errorf("preflight failed: %w", err)
	}

	keys, size, err := p.Upload(ctx, bucket, opts.Prefix, files)
	if err != nil {
		return nil, err
	}
	log.Info("Published stack",
		zap.String("bucket", bucket),
		zap.Int("files", len(keys)),
		logging.SizeField("size", size),
	)
	return &Result{Account: account, Bucket: bucket, Keys: keys, Bytes: size}, nil
}
