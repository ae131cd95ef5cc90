package lambda

import (
	"fmt"

	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/network"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
	"github.com/metasolutions/itada-infra/pkg/templateutils"
	"go.uber.org/zap"
)

const (
	ScopeName = "Lambda"

	DefaultKeyTemplate = "lambda_funcs/{{ .FunctionName }}.py"
)

type (
	Outputs struct {
		// Functions are keyed by construct id.
		Functions map[string]*construct.Resource
		// CodeObjects maps each function to the object key of its code in CodeBucket.
		CodeObjects map[string]string
		CodeBucket  any
	}

	// RoleLookup finds the execution role of the functions.
	RoleLookup interface {
		Role(key string) (*construct.Resource, error)
	}

	// BucketLookup finds the bucket that holds the function code.
	BucketLookup interface {
		BucketName(key string) (any, error)
	}

	keyData struct {
		Key          string
		FunctionName string
		Runtime      string
	}
)

// Arns returns the ARN of each function, keyed by construct id.
func (o *Outputs) Arns() map[string]construct.PropertyRef {
	arns := make(map[string]construct.PropertyRef, len(o.Functions))
	for key, fn := range o.Functions {
		arns[key] = fn.Attr("Arn")
	}
	return arns
}

// Build adds one function per entry. The code is expected in the code bucket already, under the key rendered from
// the key template. Functions run in the private subnets of the network.
func Build(
	s *resources.Scope,
	cfg config.Lambda,
	net *network.Outputs,
	roles RoleLookup,
	buckets BucketLookup,
) (*Outputs, error) {
	role, err := roles.Role(cfg.Role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}
	bucket, err := buckets.BucketName(cfg.CodeBucket)
	if err != nil {
		return nil, fmt.Errorf("%s: code bucket: %w", s.Name, err)
	}
	sgs, err := net.SecurityGroupIds(cfg.SecurityGroups)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}
	keyTemplate := cfg.KeyTemplate
	if keyTemplate == "" {
		keyTemplate = DefaultKeyTemplate
	}
	tmpl, err := templateutils.Parse("key_template", keyTemplate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}

	out := &Outputs{
		Functions:   make(map[string]*construct.Resource, len(cfg.Functions)),
		CodeObjects: make(map[string]string, len(cfg.Functions)),
		CodeBucket:  bucket,
	}
	for _, key := range resources.SortedKeys(cfg.Functions) {
		fn := cfg.Functions[key]
		codeKey, err := templateutils.Execute(tmpl, keyData{Key: key, FunctionName: fn.FunctionName, Runtime: fn.Runtime})
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", key, err)
		}

		props := construct.Properties{
			"FunctionName": fn.FunctionName,
			"Handler":      cfg.Handler,
			"Runtime":      fn.Runtime,
			"Timeout":      fn.TimeoutSecs,
			"Role":         role.Attr("Arn"),
			"Code": map[string]any{
				"S3Bucket": bucket,
				"S3Key":    codeKey,
			},
			"VpcConfig": map[string]any{
				"SubnetIds":        network.SubnetIds(net.PrivateSubnets),
				"SecurityGroupIds": sgs,
			},
		}
		if fn.Description != "" {
			props["Description"] = fn.Description
		}
		if len(fn.Environment) > 0 {
			props["Environment"] = map[string]any{"Variables": fn.Environment}
		}
		r, err := s.Add(resources.LambdaFunctionType, key, props)
		if err != nil {
			return nil, err
		}
		out.Functions[key] = r
		out.CodeObjects[key] = codeKey
		s.Log.Debug("Added function", zap.String("function", fn.FunctionName), zap.String("code", codeKey))
	}

	s.Done()
	return out, nil
}
