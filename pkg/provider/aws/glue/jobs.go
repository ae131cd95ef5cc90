package glue

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/metasolutions/itada-infra/pkg/config"
	"github.com/metasolutions/itada-infra/pkg/construct"
	"github.com/metasolutions/itada-infra/pkg/provider/aws/resources"
)

const ClientIdArgument = "--CLIENT_ID"

func buildJobs(s *resources.Scope, cfg config.Glue, roles RoleLookup, out *Outputs) error {
	if len(cfg.JobSets) == 0 {
		return nil
	}
	role, err := roles.Role(cfg.Role)
	if err != nil {
		return fmt.Errorf("%s: %w", s.Name, err)
	}
	if err := ValidateArguments(cfg.SharedArguments); err != nil {
		return fmt.Errorf("%s: shared arguments: %w", s.Name, err)
	}

	d := cfg.JobDefaults
	for _, setName := range resources.SortedKeys(cfg.JobSets) {
		set := cfg.JobSets[setName]
		for _, key := range resources.SortedKeys(set.Jobs) {
			job := set.Jobs[key]
			if _, ok := out.Jobs[key]; ok {
				return fmt.Errorf("job %s is in more than one job set", key)
			}

			args := MergeArguments(set, cfg.SharedArguments, job.Arguments)
			if err := ValidateArguments(args); err != nil {
				return fmt.Errorf("job %s: %w", key, err)
			}
			script, err := s.Input(key+"_ScriptLocation", job.ScriptLocation)
			if err != nil {
				return fmt.Errorf("job %s: %w", key, err)
			}

			props := construct.Properties{
				"Name": job.Name,
				"Role": role.Attr("Arn"),
				"Command": map[string]any{
					"Name":           d.Command,
					"PythonVersion":  d.PythonVersion,
					"ScriptLocation": script,
				},
				"GlueVersion":       d.GlueVersion,
				"WorkerType":        d.WorkerType,
				"NumberOfWorkers":   d.NumberOfWorkers,
				"MaxRetries":        d.MaxRetries,
				"ExecutionProperty": map[string]any{"MaxConcurrentRuns": d.MaxConcurrentRuns},
			}
			if job.Description != "" {
				props["Description"] = job.Description
			}
			if len(args) > 0 {
				props["DefaultArguments"] = args
			}
			r, err := s.Add(resources.GlueJobType, key, props)
			if err != nil {
				return err
			}
			out.Jobs[key] = r
		}
	}
	return nil
}

// MergeArguments returns the default arguments of a job. When the job set uses the shared arguments, the job's
// own arguments override them.
func MergeArguments(set config.JobSet, shared, own map[string]string) map[string]string {
	args := make(map[string]string, len(shared)+len(own))
	if set.SharedArguments {
		for k, v := range shared {
			args[k] = v
		}
	}
	for k, v := range own {
		args[k] = v
	}
	return args
}

// ValidateArguments checks the values of arguments the jobs parse themselves.
func ValidateArguments(args map[string]string) error {
	id, ok := args[ClientIdArgument]
	if !ok {
		return nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s %q is not a UUID: %w", ClientIdArgument, id, err)
	}
	return nil
}
