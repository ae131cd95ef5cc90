package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type (
	// Application is the full description of one stack. Maps are keyed by construct id, which becomes part of
	// the resource names, so a user config can override a single entry of the defaults.
	Application struct {
		Stack       string `json:"stack" yaml:"stack" toml:"stack"`
		Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`

		// Format is what format the file was originally in.
		Format string `json:"-" yaml:"-" toml:"-"`

		RemovalPolicy RemovalPolicy `json:"removal_policy" yaml:"removal_policy" toml:"removal_policy"`
		Secrets       SecretsMode   `json:"secrets" yaml:"secrets" toml:"secrets"`

		IAM           IAM            `json:"iam" yaml:"iam" toml:"iam"`
		Network       Network        `json:"network" yaml:"network" toml:"network"`
		ALB           *ALB           `json:"alb,omitempty" yaml:"alb,omitempty" toml:"alb,omitempty"`
		Storage       Storage        `json:"storage" yaml:"storage" toml:"storage"`
		Redshift      *Redshift      `json:"redshift,omitempty" yaml:"redshift,omitempty" toml:"redshift,omitempty"`
		Aurora        *Aurora        `json:"aurora,omitempty" yaml:"aurora,omitempty" toml:"aurora,omitempty"`
		Lambda        *Lambda        `json:"lambda,omitempty" yaml:"lambda,omitempty" toml:"lambda,omitempty"`
		Glue          *Glue          `json:"glue,omitempty" yaml:"glue,omitempty" toml:"glue,omitempty"`
		StepFunctions *StepFunctions `json:"stepfunctions,omitempty" yaml:"stepfunctions,omitempty" toml:"stepfunctions,omitempty"`
	}

	IAM struct {
		Policies map[string]Policy `json:"policies,omitempty" yaml:"policies,omitempty" toml:"policies,omitempty"`
		Roles    map[string]Role   `json:"roles,omitempty" yaml:"roles,omitempty" toml:"roles,omitempty"`
	}

	Policy struct {
		Name string `json:"name" yaml:"name" toml:"name"`
		// AssignSids gives each statement a Sid from its index.
		AssignSids bool              `json:"assign_sids,omitempty" yaml:"assign_sids,omitempty" toml:"assign_sids,omitempty"`
		Statements []PolicyStatement `json:"statements" yaml:"statements" toml:"statements"`
	}

	PolicyStatement struct {
		Effect    string   `json:"effect,omitempty" yaml:"effect,omitempty" toml:"effect,omitempty"`
		Actions   []string `json:"actions" yaml:"actions" toml:"actions"`
		Resources []string `json:"resources" yaml:"resources" toml:"resources"`
	}

	Role struct {
		Service     string `json:"service" yaml:"service" toml:"service"`
		Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
		// ManagedPolicies are AWS managed policy names, eg `service-role/AWSGlueServiceRole`.
		ManagedPolicies []string `json:"managed_policies,omitempty" yaml:"managed_policies,omitempty" toml:"managed_policies,omitempty"`
		// Policies are keys of IAM.Policies.
		Policies []string `json:"policies,omitempty" yaml:"policies,omitempty" toml:"policies,omitempty"`
	}

	Network struct {
		Vpc            Vpc                      `json:"vpc" yaml:"vpc" toml:"vpc"`
		SecurityGroups map[string]SecurityGroup `json:"security_groups,omitempty" yaml:"security_groups,omitempty" toml:"security_groups,omitempty"`
		Instances      map[string]Instance      `json:"instances,omitempty" yaml:"instances,omitempty" toml:"instances,omitempty"`
	}

	Vpc struct {
		Name   string `json:"name" yaml:"name" toml:"name"`
		Cidr   string `json:"cidr" yaml:"cidr" toml:"cidr"`
		MaxAzs int    `json:"max_azs" yaml:"max_azs" toml:"max_azs"`
		// NatGateways defaults to one per availability zone.
		NatGateways *int `json:"nat_gateways,omitempty" yaml:"nat_gateways,omitempty" toml:"nat_gateways,omitempty"`
	}

	SecurityGroup struct {
		GroupName   string        `json:"group_name" yaml:"group_name" toml:"group_name"`
		Description string        `json:"description" yaml:"description" toml:"description"`
		Ingress     []IngressRule `json:"ingress,omitempty" yaml:"ingress,omitempty" toml:"ingress,omitempty"`
	}

	IngressRule struct {
		// Peer is any_ipv4, any_ipv6, default, self, sg:<security group key> or a CIDR.
		Peer string `json:"peer" yaml:"peer" toml:"peer"`
		Port Port   `json:"port" yaml:"port" toml:"port"`
	}

	Instance struct {
		InstanceName  string `json:"instance_name" yaml:"instance_name" toml:"instance_name"`
		KeyName       string `json:"key_name" yaml:"key_name" toml:"key_name"`
		InstanceType  string `json:"instance_type" yaml:"instance_type" toml:"instance_type"`
		SecurityGroup string `json:"security_group" yaml:"security_group" toml:"security_group"`
		Role          string `json:"role" yaml:"role" toml:"role"`
		// Ami maps region to image id.
		Ami    map[string]string `json:"ami" yaml:"ami" toml:"ami"`
		Volume Volume            `json:"volume" yaml:"volume" toml:"volume"`
	}

	Volume struct {
		DeviceName          string `json:"device_name" yaml:"device_name" toml:"device_name"`
		SizeGb              int    `json:"size_gb" yaml:"size_gb" toml:"size_gb"`
		VolumeType          string `json:"volume_type" yaml:"volume_type" toml:"volume_type"`
		DeleteOnTermination bool   `json:"delete_on_termination" yaml:"delete_on_termination" toml:"delete_on_termination"`
	}

	ALB struct {
		ZoneName    string          `json:"zone_name" yaml:"zone_name" toml:"zone_name"`
		Certificate Certificate     `json:"certificate" yaml:"certificate" toml:"certificate"`
		SslPolicy   string          `json:"ssl_policy" yaml:"ssl_policy" toml:"ssl_policy"`
		Sites       map[string]Site `json:"sites" yaml:"sites" toml:"sites"`
	}

	Certificate struct {
		DomainName              string   `json:"domain_name" yaml:"domain_name" toml:"domain_name"`
		SubjectAlternativeNames []string `json:"subject_alternative_names,omitempty" yaml:"subject_alternative_names,omitempty" toml:"subject_alternative_names,omitempty"`
	}

	Site struct {
		Instance         string      `json:"instance" yaml:"instance" toml:"instance"`
		SecurityGroup    string      `json:"security_group" yaml:"security_group" toml:"security_group"`
		LoadBalancerName string      `json:"load_balancer_name" yaml:"load_balancer_name" toml:"load_balancer_name"`
		TargetGroup      TargetGroup `json:"target_group" yaml:"target_group" toml:"target_group"`
		RecordName       string      `json:"record_name" yaml:"record_name" toml:"record_name"`
	}

	TargetGroup struct {
		Name            string `json:"name" yaml:"name" toml:"name"`
		Port            int    `json:"port" yaml:"port" toml:"port"`
		HealthCheckPath string `json:"health_check_path" yaml:"health_check_path" toml:"health_check_path"`
	}

	Storage struct {
		// Imported buckets already exist, only their name is used.
		Imported map[string]string `json:"imported,omitempty" yaml:"imported,omitempty" toml:"imported,omitempty"`
		Buckets  map[string]Bucket `json:"buckets,omitempty" yaml:"buckets,omitempty" toml:"buckets,omitempty"`
	}

	Bucket struct {
		BucketName        string        `json:"bucket_name" yaml:"bucket_name" toml:"bucket_name"`
		AutoDeleteObjects bool          `json:"auto_delete_objects,omitempty" yaml:"auto_delete_objects,omitempty" toml:"auto_delete_objects,omitempty"`
		RemovalPolicy     RemovalPolicy `json:"removal_policy,omitempty" yaml:"removal_policy,omitempty" toml:"removal_policy,omitempty"`
	}

	Redshift struct {
		SubnetGroupName    string   `json:"subnet_group_name" yaml:"subnet_group_name" toml:"subnet_group_name"`
		ClusterIdentifier  string   `json:"cluster_identifier" yaml:"cluster_identifier" toml:"cluster_identifier"`
		ClusterType        string   `json:"cluster_type" yaml:"cluster_type" toml:"cluster_type"`
		NodeType           string   `json:"node_type" yaml:"node_type" toml:"node_type"`
		NumberOfNodes      int      `json:"number_of_nodes" yaml:"number_of_nodes" toml:"number_of_nodes"`
		DbName             string   `json:"db_name" yaml:"db_name" toml:"db_name"`
		Port               int      `json:"port" yaml:"port" toml:"port"`
		MasterUsername     Value    `json:"master_username" yaml:"master_username" toml:"master_username"`
		MasterUserPassword Value    `json:"master_user_password" yaml:"master_user_password" toml:"master_user_password"`
		SecurityGroups     []string `json:"security_groups" yaml:"security_groups" toml:"security_groups"`
	}

	Aurora struct {
		SubnetGroupName   string   `json:"subnet_group_name" yaml:"subnet_group_name" toml:"subnet_group_name"`
		ClusterIdentifier string   `json:"cluster_identifier" yaml:"cluster_identifier" toml:"cluster_identifier"`
		EngineVersion     string   `json:"engine_version" yaml:"engine_version" toml:"engine_version"`
		DatabaseName      string   `json:"database_name" yaml:"database_name" toml:"database_name"`
		EnableDataApi     bool     `json:"enable_data_api" yaml:"enable_data_api" toml:"enable_data_api"`
		Username          Value    `json:"username" yaml:"username" toml:"username"`
		Password          Value    `json:"password" yaml:"password" toml:"password"`
		SecurityGroups    []string `json:"security_groups" yaml:"security_groups" toml:"security_groups"`
	}

	Lambda struct {
		// CodeBucket is a key of Storage.Imported.
		CodeBucket string `json:"code_bucket" yaml:"code_bucket" toml:"code_bucket"`
		// KeyTemplate renders the code object key of a function, eg `lambda_funcs/{{ .FunctionName }}.py`.
		KeyTemplate    string              `json:"key_template" yaml:"key_template" toml:"key_template"`
		Handler        string              `json:"handler" yaml:"handler" toml:"handler"`
		Role           string              `json:"role" yaml:"role" toml:"role"`
		SecurityGroups []string            `json:"security_groups" yaml:"security_groups" toml:"security_groups"`
		Functions      map[string]Function `json:"functions" yaml:"functions" toml:"functions"`
	}

	Function struct {
		FunctionName string            `json:"function_name" yaml:"function_name" toml:"function_name"`
		Description  string            `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
		Runtime      string            `json:"runtime" yaml:"runtime" toml:"runtime"`
		TimeoutSecs  int               `json:"timeout_secs" yaml:"timeout_secs" toml:"timeout_secs"`
		Environment  map[string]string `json:"environment,omitempty" yaml:"environment,omitempty" toml:"environment,omitempty"`
	}

	Glue struct {
		Role           string                `json:"role" yaml:"role" toml:"role"`
		SecurityGroups []string              `json:"security_groups" yaml:"security_groups" toml:"security_groups"`
		Databases      map[string]Database   `json:"databases,omitempty" yaml:"databases,omitempty" toml:"databases,omitempty"`
		Connections    map[string]Connection `json:"connections,omitempty" yaml:"connections,omitempty" toml:"connections,omitempty"`
		JobDefaults    JobDefaults           `json:"job_defaults" yaml:"job_defaults" toml:"job_defaults"`
		// SharedArguments are merged under the arguments of every job set that asks for them.
		SharedArguments map[string]string `json:"shared_arguments,omitempty" yaml:"shared_arguments,omitempty" toml:"shared_arguments,omitempty"`
		JobSets         map[string]JobSet `json:"job_sets,omitempty" yaml:"job_sets,omitempty" toml:"job_sets,omitempty"`
	}

	Database struct {
		Name        string `json:"name" yaml:"name" toml:"name"`
		Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	}

	Connection struct {
		Name string `json:"name" yaml:"name" toml:"name"`
		// UrlFromRedshift builds JDBC_CONNECTION_URL from the data warehouse endpoint.
		UrlFromRedshift bool             `json:"url_from_redshift,omitempty" yaml:"url_from_redshift,omitempty" toml:"url_from_redshift,omitempty"`
		Properties      map[string]Value `json:"properties" yaml:"properties" toml:"properties"`
	}

	JobDefaults struct {
		Command           string `json:"command" yaml:"command" toml:"command"`
		PythonVersion     string `json:"python_version" yaml:"python_version" toml:"python_version"`
		GlueVersion       string `json:"glue_version" yaml:"glue_version" toml:"glue_version"`
		WorkerType        string `json:"worker_type" yaml:"worker_type" toml:"worker_type"`
		NumberOfWorkers   int    `json:"number_of_workers" yaml:"number_of_workers" toml:"number_of_workers"`
		MaxRetries        int    `json:"max_retries" yaml:"max_retries" toml:"max_retries"`
		MaxConcurrentRuns int    `json:"max_concurrent_runs" yaml:"max_concurrent_runs" toml:"max_concurrent_runs"`
	}

	JobSet struct {
		SharedArguments bool           `json:"shared_arguments" yaml:"shared_arguments" toml:"shared_arguments"`
		Jobs            map[string]Job `json:"jobs" yaml:"jobs" toml:"jobs"`
	}

	Job struct {
		Name           string            `json:"name" yaml:"name" toml:"name"`
		Description    string            `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
		ScriptLocation Value             `json:"script_location" yaml:"script_location" toml:"script_location"`
		Arguments      map[string]string `json:"arguments,omitempty" yaml:"arguments,omitempty" toml:"arguments,omitempty"`
	}

	StepFunctions struct {
		Role          string                  `json:"role" yaml:"role" toml:"role"`
		StateMachines map[string]StateMachine `json:"state_machines,omitempty" yaml:"state_machines,omitempty" toml:"state_machines,omitempty"`
	}

	StateMachine struct {
		Name string `json:"name" yaml:"name" toml:"name"`
		// DefinitionFile is a JSON document, relative paths are resolved against the config file's directory.
		DefinitionFile string `json:"definition_file" yaml:"definition_file" toml:"definition_file"`
		Type           string `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
		// Substitutions are rendered as templates and passed as DefinitionSubstitutions.
		Substitutions map[string]string `json:"substitutions,omitempty" yaml:"substitutions,omitempty" toml:"substitutions,omitempty"`
	}

	RemovalPolicy string
)

const (
	RemovalDestroy  RemovalPolicy = "destroy"
	RemovalRetain   RemovalPolicy = "retain"
	RemovalSnapshot RemovalPolicy = "snapshot"
)

// ReadConfig reads a configuration file, picking the format from its extension.
func ReadConfig(fpath string) (Application, error) {
	var appCfg Application
	err := readInto(fpath, &appCfg)
	return appCfg, err
}

// readInto decodes the file on top of appCfg, so fields missing from the file keep their current value.
func readInto(fpath string, appCfg *Application) error {
	f, err := os.Open(fpath)
	if err != nil {
		return err
	}
	defer f.Close() // nolint:errcheck

	format, err := formatOf(fpath)
	if err != nil {
		return err
	}
	if err := decode(f, format, appCfg); err != nil {
		return fmt.Errorf("could not read config %s: %w", fpath, err)
	}
	appCfg.Format = format
	return nil
}

func formatOf(fpath string) (string, error) {
	switch ext := filepath.Ext(fpath); ext {
	case ".json":
		return "json", nil
	case ".yaml", ".yml":
		return "yaml", nil
	case ".toml":
		return "toml", nil
	default:
		return "", fmt.Errorf("unsupported config format %q (expected .json, .yaml, .yml or .toml)", ext)
	}
}

func decode(r io.Reader, format string, appCfg *Application) error {
	switch format {
	case "json":
		return json.NewDecoder(r).Decode(appCfg)
	case "yaml":
		err := yaml.NewDecoder(r).Decode(appCfg)
		if err == io.EOF {
			// empty file
			return nil
		}
		return err
	case "toml":
		return toml.NewDecoder(r).Decode(appCfg)
	}
	return fmt.Errorf("unsupported config format %q", format)
}

// Write encodes the configuration in the given format (json, yaml or toml).
func (a Application) Write(w io.Writer, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(a); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(a)
	}
	return fmt.Errorf("unsupported config format %q", format)
}
