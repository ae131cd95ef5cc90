package storage

import (
	_ "embed"
	"fmt"

	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
	"go.uber.org/zap"
)

const (
	ScopeName = "S3"

	autoDeleteProvider = "AutoDeleteObjectsProvider"
	autoDeleteTag      = "auto-delete-objects"
)

//go:embed auto_delete_objects.py
var autoDeleteHandler string

type Outputs struct {
	// Buckets are the owned buckets by key.
	Buckets map[string]*construct.Resource
	// Names holds the bucket name of every bucket, imported or owned.
	Names map[string]any
}

// BucketName returns the name of an imported or owned bucket.
func (o *Outputs) BucketName(key string) (any, error) {
	if o != nil {
		if name, ok := o.Names[key]; ok {
			return name, nil
		}
	}
	return nil, fmt.Errorf("unknown bucket %s", key)
}

// Build adds the owned buckets. Buckets that auto delete their objects share one provider function that empties
// the bucket before it is deleted.
func Build(s *resources.Scope, cfg config.Storage) (*Outputs, error) {
	out := &Outputs{
		Buckets: make(map[string]*construct.Resource, len(cfg.Buckets)),
		Names:   make(map[string]any, len(cfg.Imported)+len(cfg.Buckets)),
	}
	for key, name := range cfg.Imported {
		out.Names[key] = name
	}

	var provider *autoDelete
	for _, key := range resources.SortedKeys(cfg.Buckets) {
		b := cfg.Buckets[key]
		if _, ok := out.Names[key]; ok {
			return nil, fmt.Errorf("bucket %s is both imported and owned", key)
		}

		policy := s.RemovalPolicy
		if b.RemovalPolicy != "" {
			policy = b.RemovalPolicy
		}
		if b.AutoDeleteObjects && policy != config.RemovalDestroy {
			return nil, fmt.Errorf("bucket %s: auto_delete_objects needs the %s removal policy, got %q",
				key, config.RemovalDestroy, policy)
		}

		props := construct.Properties{
			"BucketName": b.BucketName,
			"PublicAccessBlockConfiguration": map[string]any{
				"BlockPublicAcls":       true,
				"BlockPublicPolicy":     true,
				"IgnorePublicAcls":      true,
				"RestrictPublicBuckets": true,
			},
		}
		if b.AutoDeleteObjects {
			props["Tags"] = resources.Tags(map[string]string{autoDeleteTag: "true"})
		}
		bucket, err := s.Add(resources.S3BucketType, key, props, resources.WithRemovalPolicy(policy))
		if err != nil {
			return nil, err
		}
		out.Buckets[key] = bucket
		out.Names[key] = bucket.Ref()

		if !b.AutoDeleteObjects {
			continue
		}
		if provider == nil {
			if provider, err = addAutoDeleteProvider(s); err != nil {
				return nil, err
			}
		}
		if err := provider.attach(s, key, bucket); err != nil {
			return nil, fmt.Errorf("bucket %s: %w", key, err)
		}
	}

	s.Log.Debug("Created buckets", zap.Int("owned", len(out.Buckets)), zap.Int("imported", len(cfg.Imported)))
	s.Done()
	return out, nil
}

type autoDelete struct {
	role     *construct.Resource
	function *construct.Resource
}

func addAutoDeleteProvider(s *resources.Scope) (*autoDelete, error) {
	role, err := s.Add(resources.IamRoleType, autoDeleteProvider+"Role", construct.Properties{
		"AssumeRolePolicyDocument": resources.AssumeRolePolicy("lambda.amazonaws.com"),
		"ManagedPolicyArns": []any{
			resources.ManagedPolicyArn("service-role/AWSLambdaBasicExecutionRole"),
		},
	})
	if err != nil {
		return nil, err
	}
	fn, err := s.Add(resources.LambdaFunctionType, autoDeleteProvider, construct.Properties{
		"Code":        map[string]any{"ZipFile": autoDeleteHandler},
		"Handler":     "index.handler",
		"Runtime":     "python3.12",
		"MemorySize":  128,
		"Timeout":     900,
		"Role":        role.Attr("Arn"),
		"Description": "Empties buckets before they are deleted",
	})
	if err != nil {
		return nil, err
	}
	return &autoDelete{role: role, function: fn}, nil
}

// attach lets the provider's role empty the bucket and adds the custom resource that triggers it. The custom
// resource waits for the policy so the bucket is still accessible when the stack is deleted.
func (p *autoDelete) attach(s *resources.Scope, key string, bucket *construct.Resource) error {
	policy, err := s.Add(resources.S3BucketPolicyType, key+"Policy", construct.Properties{
		"Bucket": bucket.Ref(),
		"PolicyDocument": resources.PolicyDocument(map[string]any{
			"Effect":    "Allow",
			"Principal": map[string]any{"AWS": p.role.Attr("Arn")},
			"Action":    []string{"s3:DeleteObject*", "s3:GetBucket*", "s3:List*"},
			"Resource": []any{
				bucket.Attr("Arn"),
				resources.Join("", bucket.Attr("Arn"), "/*"),
			},
		}),
	})
	if err != nil {
		return err
	}
	_, err = s.Add(resources.AutoDeleteObjectsType, key+"AutoDeleteObjects", construct.Properties{
		"ServiceToken": p.function.Attr("Arn"),
		"BucketName":   bucket.Ref(),
	}, resources.DependsOn(policy.ID))
	return err
}
